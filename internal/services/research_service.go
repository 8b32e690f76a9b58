package services

import (
	"context"
	"sort"

	"github.com/plataa/triagem/internal/screening"
)

type ResearchStore interface {
	ListResearchRecords(ctx context.Context) ([]screening.ResearchRecord, error)
}

// ResearchCount aggregates anonymised records sharing test type, age band and region.
type ResearchCount struct {
	Test      screening.TestType `json:"test_type"`
	AgeBand   string             `json:"age_band"`
	Region    string             `json:"region"`
	Total     int                `json:"total"`
	Consented int                `json:"consented"`
	MeanScore float64            `json:"mean_score"`
}

type ResearchService struct {
	store ResearchStore
}

func NewResearchService(store ResearchStore) *ResearchService {
	return &ResearchService{store: store}
}

// Summary groups every research record. Only specialists may read it.
func (s *ResearchService) Summary(ctx context.Context, sess screening.Session) ([]ResearchCount, error) {
	if err := requireSpecialist(sess); err != nil {
		return nil, err
	}
	recs, err := s.store.ListResearchRecords(ctx)
	if err != nil {
		return nil, err
	}
	return countResearch(recs), nil
}

// Consented returns the records whose subject agreed to research use, oldest first.
func (s *ResearchService) Consented(ctx context.Context, sess screening.Session) ([]screening.ResearchRecord, error) {
	if err := requireSpecialist(sess); err != nil {
		return nil, err
	}
	recs, err := s.store.ListResearchRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]screening.ResearchRecord, 0, len(recs))
	for _, r := range recs {
		if r.ResearchConsent {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func countResearch(recs []screening.ResearchRecord) []ResearchCount {
	type key struct {
		test    screening.TestType
		ageBand string
		region  string
	}
	idx := map[key]int{}
	var sums []int
	out := []ResearchCount{}
	for _, r := range recs {
		k := key{r.Test, r.AgeBand, r.Region}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, ResearchCount{Test: r.Test, AgeBand: r.AgeBand, Region: r.Region})
			sums = append(sums, 0)
		}
		out[i].Total++
		if r.ResearchConsent {
			out[i].Consented++
		}
		sums[i] += r.RawScore
	}
	for i := range out {
		out[i].MeanScore = float64(sums[i]) / float64(out[i].Total)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Test != b.Test {
			return a.Test < b.Test
		}
		if a.AgeBand != b.AgeBand {
			return a.AgeBand < b.AgeBand
		}
		return a.Region < b.Region
	})
	return out
}
