package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/plataa/triagem/internal/screening"
)

// SubmissionStore abstracts the writes performed when a questionnaire is submitted.
type SubmissionStore interface {
	SubjectStore
	// AddResult must return an error wrapping screening.ErrUniqueViolation
	// when (subject, test type) already has a result.
	AddResult(ctx context.Context, r *screening.ResultRecord) error
	AddResearchRecord(ctx context.Context, r *screening.ResearchRecord) error
	AddAudit(ctx context.Context, e AuditEntry) error
}

// SubmissionRequest carries the sanitized handler input into the service layer.
type SubmissionRequest struct {
	SubjectID  string
	Test       screening.TestType
	Answers    screening.AnswerSet
	Age        int
	Respondent string
}

// SubmissionService runs guard, scoring and persistence for one submission.
type SubmissionService struct {
	store    SubmissionStore
	engine   *screening.Engine
	subjects *SubjectService
	log      zerolog.Logger
	now      func() time.Time
	idGen    func() string
}

func NewSubmissionService(store SubmissionStore, engine *screening.Engine, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		store:    store,
		engine:   engine,
		subjects: NewSubjectService(store),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		idGen:    newID,
	}
}

// Submit scores req and persists exactly one ResultRecord. Nothing is
// written when any check fails, and a write is never retried.
func (s *SubmissionService) Submit(ctx context.Context, sess screening.Session, req SubmissionRequest) (*screening.ResultRecord, error) {
	if s.store == nil || s.engine == nil {
		return nil, errors.New("submission service not configured")
	}
	def, err := s.engine.Definition(req.Test)
	if err != nil {
		return nil, fromCoreError(err)
	}
	subj, err := s.subjects.Subject(ctx, sess, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if subj.OwnerID != sess.OwnerID {
		return nil, NewForbiddenError("only the subject's owner can submit")
	}
	if err := def.ValidateContext(req.Age, req.Respondent); err != nil {
		return nil, fromCoreError(err)
	}
	if err := s.subjects.AssertNoExistingResult(ctx, subj.ID, def.Test); err != nil {
		return nil, err
	}
	out, err := s.engine.ScoreAndClassify(def.Test, req.Answers)
	if err != nil {
		return nil, fromCoreError(err)
	}

	now := s.now()
	rec := &screening.ResultRecord{
		ID:                s.idGen(),
		SubjectID:         subj.ID,
		OwnerID:           sess.OwnerID,
		Test:              out.Test,
		DefinitionVersion: out.DefinitionVersion,
		RawScore:          out.RawScore,
		Risk:              out.Risk,
		ResearchConsent:   subj.ResearchConsent,
		Age:               req.Age,
		Respondent:        req.Respondent,
		Answers:           normalizedAnswers(out.Items),
		Items:             out.Items,
		CreatedAt:         now,
	}
	if err := s.store.AddResult(ctx, rec); err != nil {
		if errors.Is(err, screening.ErrUniqueViolation) {
			return nil, &ServiceError{
				Code:    ErrorDuplicate,
				Message: fmt.Sprintf("subject already has a %s result", def.Test),
				Err:     err,
			}
		}
		return nil, err
	}

	research := &screening.ResearchRecord{
		ID:              s.idGen(),
		OwnerID:         sess.OwnerID,
		Test:            rec.Test,
		AgeBand:         def.AgeBand(req.Age),
		Region:          subj.Region,
		RawScore:        rec.RawScore,
		ResearchConsent: subj.ResearchConsent,
		CreatedAt:       now,
	}
	if err := s.store.AddResearchRecord(ctx, research); err != nil {
		s.log.Warn().Err(err).Str("result_id", rec.ID).Msg("research record not stored")
	}
	if err := s.store.AddAudit(ctx, AuditEntry{
		Time:   now,
		Actor:  sess.OwnerID,
		Action: "submit_" + string(rec.Test),
		Target: rec.ID,
		Note:   string(rec.Risk),
	}); err != nil {
		s.log.Warn().Err(err).Str("result_id", rec.ID).Msg("audit entry not stored")
	}
	s.log.Info().
		Str("result_id", rec.ID).
		Str("test_type", string(rec.Test)).
		Int("raw_score", rec.RawScore).
		Str("risk", string(rec.Risk)).
		Msg("screening stored")
	return rec, nil
}

// normalizedAnswers keeps the canonical tokens the engine accepted rather
// than the aliases the client sent.
func normalizedAnswers(items []screening.ItemScore) screening.AnswerSet {
	out := make(screening.AnswerSet, len(items))
	for _, it := range items {
		out[it.ItemID] = it.Answer
	}
	return out
}
