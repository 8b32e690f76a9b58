package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/plataa/triagem/internal/screening"
)

// SubjectStore is the persistence the subject registry and guard need.
type SubjectStore interface {
	// UpsertSubject inserts s or, when (OwnerID, NationalID) already exists,
	// updates its contact fields and returns the stored row.
	UpsertSubject(ctx context.Context, s *screening.Subject) (*screening.Subject, error)
	// GetSubject returns nil, nil when the id is unknown.
	GetSubject(ctx context.Context, id string) (*screening.Subject, error)
	HasResult(ctx context.Context, subjectID string, test screening.TestType) (bool, error)
}

// SubjectInput is the profile form. Fields are normalized before validation.
type SubjectInput struct {
	FullName        string `json:"full_name" validate:"required,min=3,max=200"`
	NationalID      string `json:"national_id" validate:"required,len=11,numeric"`
	Region          string `json:"region" validate:"required,max=100"`
	Phone           string `json:"phone" validate:"omitempty,min=10,max=11,numeric"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	ResearchConsent bool   `json:"research_consent"`
}

// Normalize trims text fields, reduces national id and phone to digits and
// lower-cases the email.
func (in SubjectInput) Normalize() SubjectInput {
	in.FullName = strings.Join(strings.Fields(in.FullName), " ")
	in.NationalID = screening.DigitsOnly(in.NationalID)
	in.Region = strings.TrimSpace(in.Region)
	in.Phone = screening.DigitsOnly(in.Phone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}

// Eligibility tells the caller whether a test may still be started.
type Eligibility struct {
	SubjectID string             `json:"subject_id"`
	Test      screening.TestType `json:"test_type"`
	Eligible  bool               `json:"eligible"`
}

type SubjectService struct {
	store    SubjectStore
	validate *validator.Validate
	now      func() time.Time
	idGen    func() string
}

func NewSubjectService(store SubjectStore) *SubjectService {
	return &SubjectService{
		store:    store,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		idGen:    newID,
	}
}

// RegisterOrFetchSubject upserts the subject keyed by (owner, national id).
// Resubmitting updates contact fields; the national id and owner never change.
func (s *SubjectService) RegisterOrFetchSubject(ctx context.Context, sess screening.Session, in SubjectInput) (*screening.Subject, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	in = in.Normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	now := s.now()
	subj := &screening.Subject{
		ID:              s.idGen(),
		OwnerID:         sess.OwnerID,
		FullName:        in.FullName,
		NationalID:      in.NationalID,
		Region:          in.Region,
		Phone:           in.Phone,
		Email:           in.Email,
		ResearchConsent: in.ResearchConsent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	stored, err := s.store.UpsertSubject(ctx, subj)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return subj, nil
	}
	return stored, nil
}

// AssertNoExistingResult fails with a duplicate error when the subject
// already has a result for test.
func (s *SubjectService) AssertNoExistingResult(ctx context.Context, subjectID string, test screening.TestType) error {
	exists, err := s.store.HasResult(ctx, subjectID, test)
	if err != nil {
		return err
	}
	if exists {
		return &ServiceError{
			Code:    ErrorDuplicate,
			Message: fmt.Sprintf("subject already has a %s result", test),
			Err:     screening.ErrDuplicateSubmission,
		}
	}
	return nil
}

// Subject loads a subject the session may act on.
func (s *SubjectService) Subject(ctx context.Context, sess screening.Session, id string) (*screening.Subject, error) {
	return loadSubject(ctx, s.store, sess, id)
}

type subjectGetter interface {
	GetSubject(ctx context.Context, id string) (*screening.Subject, error)
}

// loadSubject applies the read rule shared by every per-subject endpoint:
// owners see their own subjects, specialists see all.
func loadSubject(ctx context.Context, store subjectGetter, sess screening.Session, id string) (*screening.Subject, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	subj, err := store.GetSubject(ctx, id)
	if err != nil {
		return nil, err
	}
	if subj == nil {
		return nil, NewNotFoundError("subject not found")
	}
	if subj.OwnerID != sess.OwnerID && !sess.IsSpecialist() {
		return nil, NewForbiddenError("forbidden")
	}
	return subj, nil
}

// Eligibility runs the guard without submitting anything.
func (s *SubjectService) Eligibility(ctx context.Context, sess screening.Session, subjectID string, test screening.TestType) (*Eligibility, error) {
	subj, err := s.Subject(ctx, sess, subjectID)
	if err != nil {
		return nil, err
	}
	out := &Eligibility{SubjectID: subj.ID, Test: test, Eligible: true}
	if err := s.AssertNoExistingResult(ctx, subj.ID, test); err != nil {
		if !errors.Is(err, screening.ErrDuplicateSubmission) {
			return nil, err
		}
		out.Eligible = false
	}
	return out, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return &ServiceError{Code: ErrorInvalid, Message: "invalid fields: " + strings.Join(fields, ", ")}
	}
	return &ServiceError{Code: ErrorInvalid, Message: err.Error()}
}
