package services

import (
	"context"
	"sort"

	"github.com/plataa/triagem/internal/screening"
)

// DashboardStore lists subjects and results. An empty ownerID lists every owner.
type DashboardStore interface {
	GetSubject(ctx context.Context, id string) (*screening.Subject, error)
	ListSubjects(ctx context.Context, ownerID string) ([]screening.Subject, error)
	ListResults(ctx context.Context, ownerID string) ([]screening.ResultRecord, error)
}

type DashboardQuery struct {
	Risk   string
	Region string
	Search string
}

type Dashboard struct {
	Rows    []screening.Row   `json:"rows"`
	Summary screening.Summary `json:"summary"`
	Regions []string          `json:"regions"`
}

type DashboardService struct {
	store DashboardStore
}

func NewDashboardService(store DashboardStore) *DashboardService {
	return &DashboardService{store: store}
}

// scope returns the owner filter the session is allowed to read.
func scope(sess screening.Session) string {
	if sess.IsSpecialist() {
		return ""
	}
	return sess.OwnerID
}

// Overview builds the one-row-per-subject view: latest result per subject,
// filtered, then tallied. Region choices come from the unfiltered rows.
func (s *DashboardService) Overview(ctx context.Context, sess screening.Session, q DashboardQuery) (*Dashboard, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	owner := scope(sess)
	subjects, err := s.store.ListSubjects(ctx, owner)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(ctx, owner)
	if err != nil {
		return nil, err
	}
	all := screening.JoinRows(subjects, screening.LatestResultPerSubject(results))
	rows := screening.FilterByRiskAndRegion(all, q.Risk, q.Region, q.Search)
	return &Dashboard{
		Rows:    rows,
		Summary: screening.Summarize(rows),
		Regions: screening.Regions(all),
	}, nil
}

// SubjectResults lists every stored result of one subject, newest first.
// Unknown subjects are not_found and other owners' subjects forbidden.
func (s *DashboardService) SubjectResults(ctx context.Context, sess screening.Session, subjectID string) ([]screening.ResultRecord, error) {
	subj, err := loadSubject(ctx, s.store, sess, subjectID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(ctx, subj.OwnerID)
	if err != nil {
		return nil, err
	}
	out := make([]screening.ResultRecord, 0, 3)
	for _, r := range results {
		if r.SubjectID == subj.ID {
			out = append(out, r)
		}
	}
	sortResultsNewestFirst(out)
	return out, nil
}

func sortResultsNewestFirst(rs []screening.ResultRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].Test < rs[j].Test
	})
}
