package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plataa/triagem/internal/screening"
)

type stubStore struct {
	subjects  map[string]*screening.Subject
	results   []screening.ResultRecord
	research  []screening.ResearchRecord
	audit     []AuditEntry
	failWrite error
	failAudit error
	failRsrch error
}

func newStubStore() *stubStore {
	return &stubStore{subjects: map[string]*screening.Subject{}}
}

func (s *stubStore) UpsertSubject(_ context.Context, in *screening.Subject) (*screening.Subject, error) {
	for _, cur := range s.subjects {
		if cur.OwnerID == in.OwnerID && cur.NationalID == in.NationalID {
			cur.FullName = in.FullName
			cur.Region = in.Region
			cur.Phone = in.Phone
			cur.Email = in.Email
			cur.ResearchConsent = in.ResearchConsent
			cur.UpdatedAt = in.UpdatedAt
			cp := *cur
			return &cp, nil
		}
	}
	cp := *in
	s.subjects[in.ID] = &cp
	out := cp
	return &out, nil
}

func (s *stubStore) GetSubject(_ context.Context, id string) (*screening.Subject, error) {
	if cur, ok := s.subjects[id]; ok {
		cp := *cur
		return &cp, nil
	}
	return nil, nil
}

func (s *stubStore) SetResearchConsent(_ context.Context, id string, consent bool, at time.Time) error {
	cur, ok := s.subjects[id]
	if !ok {
		return errors.New("no subject")
	}
	cur.ResearchConsent = consent
	cur.UpdatedAt = at
	return nil
}

func (s *stubStore) HasResult(_ context.Context, subjectID string, test screening.TestType) (bool, error) {
	for _, r := range s.results {
		if r.SubjectID == subjectID && r.Test == test {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) AddResult(ctx context.Context, r *screening.ResultRecord) error {
	if s.failWrite != nil {
		return s.failWrite
	}
	if ok, _ := s.HasResult(ctx, r.SubjectID, r.Test); ok {
		return fmt.Errorf("results: %w", screening.ErrUniqueViolation)
	}
	s.results = append(s.results, *r)
	return nil
}

func (s *stubStore) AddResearchRecord(_ context.Context, r *screening.ResearchRecord) error {
	if s.failRsrch != nil {
		return s.failRsrch
	}
	s.research = append(s.research, *r)
	return nil
}

func (s *stubStore) AddAudit(_ context.Context, e AuditEntry) error {
	if s.failAudit != nil {
		return s.failAudit
	}
	s.audit = append(s.audit, e)
	return nil
}

func (s *stubStore) ListSubjects(_ context.Context, ownerID string) ([]screening.Subject, error) {
	out := []screening.Subject{}
	for _, cur := range s.subjects {
		if ownerID == "" || cur.OwnerID == ownerID {
			out = append(out, *cur)
		}
	}
	return out, nil
}

func (s *stubStore) ListResults(_ context.Context, ownerID string) ([]screening.ResultRecord, error) {
	out := []screening.ResultRecord{}
	for _, r := range s.results {
		if ownerID == "" || r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) ListResultsByTest(_ context.Context, test screening.TestType) ([]screening.ResultRecord, error) {
	out := []screening.ResultRecord{}
	for _, r := range s.results {
		if r.Test == test {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) ListResearchRecords(context.Context) ([]screening.ResearchRecord, error) {
	return append([]screening.ResearchRecord(nil), s.research...), nil
}

var (
	owner      = screening.Session{OwnerID: "u-owner", Role: screening.RoleUser}
	other      = screening.Session{OwnerID: "u-other", Role: screening.RoleUser}
	specialist = screening.Session{OwnerID: "u-spec", Role: screening.RoleSpecialist}
)

func testEngine() *screening.Engine {
	e, err := screening.DefaultEngine()
	if err != nil {
		panic(err)
	}
	return e
}

// assqAnswers answers all 27 ASSQ items with v.
func assqAnswers(v string) screening.AnswerSet {
	out := screening.AnswerSet{}
	for i := 1; i <= 27; i++ {
		out[i] = v
	}
	return out
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}
