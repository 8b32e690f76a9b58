package services

import (
	"context"
	"time"

	"github.com/plataa/triagem/internal/screening"
)

type ConsentStore interface {
	GetSubject(ctx context.Context, id string) (*screening.Subject, error)
	SetResearchConsent(ctx context.Context, subjectID string, consent bool, at time.Time) error
	AddAudit(ctx context.Context, e AuditEntry) error
}

// ConsentService changes a subject's research consent. Results already
// stored keep the flag they were submitted with.
type ConsentService struct {
	store ConsentStore
	now   func() time.Time
}

func NewConsentService(store ConsentStore) *ConsentService {
	return &ConsentService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConsentService) SetResearchConsent(ctx context.Context, sess screening.Session, subjectID string, consent bool) (*screening.Subject, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	subj, err := s.store.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subj == nil {
		return nil, NewNotFoundError("subject not found")
	}
	if subj.OwnerID != sess.OwnerID {
		return nil, NewForbiddenError("forbidden")
	}
	now := s.now()
	if subj.ResearchConsent != consent {
		if err := s.store.SetResearchConsent(ctx, subj.ID, consent, now); err != nil {
			return nil, err
		}
		subj.ResearchConsent = consent
		subj.UpdatedAt = now
	}
	action := "consent_withdraw"
	if consent {
		action = "consent_grant"
	}
	if err := s.store.AddAudit(ctx, AuditEntry{Time: now, Actor: sess.OwnerID, Action: action, Target: subj.ID}); err != nil {
		return nil, err
	}
	return subj, nil
}
