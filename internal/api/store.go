package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/plataa/triagem/internal/screening"
	"github.com/plataa/triagem/internal/services"
)

type resultKey struct {
	subjectID string
	test      screening.TestType
}

type subjectKey struct {
	ownerID    string
	nationalID string
}

// memoryStore keeps everything in maps guarded by one RWMutex. Reads hand
// out copies so callers never alias stored records.
type memoryStore struct {
	mu           sync.RWMutex
	users        map[string]*services.User // by lower-cased email
	subjects     map[string]*screening.Subject
	subjectByKey map[subjectKey]string
	results      []*screening.ResultRecord
	resultByKey  map[resultKey]string
	research     []*screening.ResearchRecord
	audit        []services.AuditEntry
}

// NewMemoryStore returns a volatile Store for development and tests.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:        map[string]*services.User{},
		subjects:     map[string]*screening.Subject{},
		subjectByKey: map[subjectKey]string{},
		resultByKey:  map[resultKey]string{},
	}
}

func (s *memoryStore) Ping(context.Context) error { return nil }

func (s *memoryStore) Close() error { return nil }

// users

func (s *memoryStore) AddUser(_ context.Context, u *services.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := strings.ToLower(u.Email)
	if _, ok := s.users[k]; ok {
		return fmt.Errorf("users.email: %w", screening.ErrUniqueViolation)
	}
	cp := *u
	cp.PassHash = append([]byte(nil), u.PassHash...)
	s.users[k] = &cp
	return nil
}

func (s *memoryStore) FindUserByEmail(_ context.Context, email string) (*services.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// subjects

func (s *memoryStore) UpsertSubject(_ context.Context, in *screening.Subject) (*screening.Subject, error) {
	if in == nil {
		return nil, errors.New("nil subject")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subjectKey{in.OwnerID, in.NationalID}
	if id, ok := s.subjectByKey[k]; ok {
		cur := s.subjects[id]
		cur.FullName = in.FullName
		cur.Region = in.Region
		cur.Phone = in.Phone
		cur.Email = in.Email
		cur.ResearchConsent = in.ResearchConsent
		cur.UpdatedAt = in.UpdatedAt
		cp := *cur
		return &cp, nil
	}
	if _, ok := s.subjects[in.ID]; ok {
		return nil, fmt.Errorf("subjects.id: %w", screening.ErrUniqueViolation)
	}
	cp := *in
	s.subjects[in.ID] = &cp
	s.subjectByKey[k] = in.ID
	out := cp
	return &out, nil
}

func (s *memoryStore) GetSubject(_ context.Context, id string) (*screening.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.subjects[id]
	if !ok {
		return nil, nil
	}
	cp := *cur
	return &cp, nil
}

func (s *memoryStore) ListSubjects(_ context.Context, ownerID string) ([]screening.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []screening.Subject{}
	for _, cur := range s.subjects {
		if ownerID == "" || cur.OwnerID == ownerID {
			out = append(out, *cur)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryStore) SetResearchConsent(_ context.Context, subjectID string, consent bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.subjects[subjectID]
	if !ok {
		return fmt.Errorf("set consent: subject %s not found", subjectID)
	}
	cur.ResearchConsent = consent
	cur.UpdatedAt = at
	return nil
}

// results

func (s *memoryStore) HasResult(_ context.Context, subjectID string, test screening.TestType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resultByKey[resultKey{subjectID, test}]
	return ok, nil
}

// AddResult enforces the (subject, test type) constraint under the write
// lock, so of two racing submissions exactly one wins.
func (s *memoryStore) AddResult(_ context.Context, r *screening.ResultRecord) error {
	if r == nil {
		return errors.New("nil result")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := resultKey{r.SubjectID, r.Test}
	if _, ok := s.resultByKey[k]; ok {
		return fmt.Errorf("results(subject_id, test_type): %w", screening.ErrUniqueViolation)
	}
	if _, ok := s.subjects[r.SubjectID]; !ok {
		return fmt.Errorf("results.subject_id: subject %s not found", r.SubjectID)
	}
	s.results = append(s.results, copyResult(r))
	s.resultByKey[k] = r.ID
	return nil
}

func copyResult(r *screening.ResultRecord) *screening.ResultRecord {
	cp := *r
	if r.Answers != nil {
		cp.Answers = make(screening.AnswerSet, len(r.Answers))
		for k, v := range r.Answers {
			cp.Answers[k] = v
		}
	}
	cp.Items = append([]screening.ItemScore(nil), r.Items...)
	return &cp
}

func (s *memoryStore) listResults(keep func(*screening.ResultRecord) bool) []screening.ResultRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []screening.ResultRecord{}
	for _, r := range s.results {
		if keep(r) {
			out = append(out, *copyResult(r))
		}
	}
	return out
}

func (s *memoryStore) ListResults(_ context.Context, ownerID string) ([]screening.ResultRecord, error) {
	return s.listResults(func(r *screening.ResultRecord) bool {
		return ownerID == "" || r.OwnerID == ownerID
	}), nil
}

func (s *memoryStore) ListResultsByTest(_ context.Context, test screening.TestType) ([]screening.ResultRecord, error) {
	return s.listResults(func(r *screening.ResultRecord) bool { return r.Test == test }), nil
}

// research and audit

func (s *memoryStore) AddResearchRecord(_ context.Context, r *screening.ResearchRecord) error {
	if r == nil {
		return errors.New("nil research record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.research = append(s.research, &cp)
	return nil
}

func (s *memoryStore) ListResearchRecords(context.Context) ([]screening.ResearchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]screening.ResearchRecord, 0, len(s.research))
	for _, r := range s.research {
		out = append(out, *r)
	}
	return out, nil
}

func (s *memoryStore) AddAudit(_ context.Context, e services.AuditEntry) error {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) ListAudit(_ context.Context, limit int) ([]services.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.audit)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]services.AuditEntry, 0, n)
	for i := len(s.audit) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}
