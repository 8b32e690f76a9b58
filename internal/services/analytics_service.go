package services

import (
	"context"
	"sort"

	"github.com/plataa/triagem/internal/screening"
)

type AnalyticsStore interface {
	// ListResultsByTest returns results with their per-item contributions.
	ListResultsByTest(ctx context.Context, test screening.TestType) ([]screening.ResultRecord, error)
}

type AnalyticsService struct {
	store  AnalyticsStore
	engine *screening.Engine
}

// AnalyticsItem is the contribution histogram of one item: Histogram[p]
// counts results where the item scored p points.
type AnalyticsItem struct {
	ID        int    `json:"id"`
	Prompt    string `json:"prompt"`
	Histogram []int  `json:"histogram"`
	Endorsed  int    `json:"endorsed"`
	Total     int    `json:"total"`
}

type AnalyticsTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AnalyticsSummary struct {
	Test         screening.TestType             `json:"test_type"`
	MaxScore     int                            `json:"max_score"`
	TotalResults int                            `json:"total_results"`
	Risk         map[screening.RiskCategory]int `json:"risk"`
	Items        []AnalyticsItem                `json:"items"`
	Timeseries   []AnalyticsTimeseries          `json:"timeseries"`
	Alpha        float64                        `json:"alpha"`
	N            int                            `json:"n"`
}

func NewAnalyticsService(store AnalyticsStore, engine *screening.Engine) *AnalyticsService {
	return &AnalyticsService{store: store, engine: engine}
}

// Summary reports item endorsement and internal consistency for one test.
func (s *AnalyticsService) Summary(ctx context.Context, sess screening.Session, test screening.TestType) (*AnalyticsSummary, error) {
	if err := requireSpecialist(sess); err != nil {
		return nil, err
	}
	def, err := s.engine.Definition(test)
	if err != nil {
		return nil, fromCoreError(err)
	}
	results, err := s.store.ListResultsByTest(ctx, def.Test)
	if err != nil {
		return nil, err
	}
	items, countsByDay := buildAnalyticsItems(def, results)
	matrix, n := buildAlphaMatrix(def, results)
	risk := map[screening.RiskCategory]int{}
	for _, b := range def.Bands {
		risk[b.Risk] = 0
	}
	for _, r := range results {
		risk[r.Risk]++
	}
	return &AnalyticsSummary{
		Test:         def.Test,
		MaxScore:     def.MaxScore(),
		TotalResults: len(results),
		Risk:         risk,
		Items:        items,
		Timeseries:   buildTimeseries(countsByDay),
		Alpha:        CronbachAlpha(matrix),
		N:            n,
	}, nil
}

// ItemsCSV exports the per-item answers of every stored result for test.
func (s *AnalyticsService) ItemsCSV(ctx context.Context, sess screening.Session, test screening.TestType) ([]byte, error) {
	if err := requireSpecialist(sess); err != nil {
		return nil, err
	}
	def, err := s.engine.Definition(test)
	if err != nil {
		return nil, fromCoreError(err)
	}
	results, err := s.store.ListResultsByTest(ctx, def.Test)
	if err != nil {
		return nil, err
	}
	return ExportItemsCSV(def, results)
}

func buildAnalyticsItems(def *screening.Definition, results []screening.ResultRecord) ([]AnalyticsItem, map[string]int) {
	itemIndex := make(map[int]int, len(def.Items))
	out := make([]AnalyticsItem, 0, len(def.Items))
	for i, it := range def.Items {
		out = append(out, AnalyticsItem{
			ID:        it.ID,
			Prompt:    it.Prompt,
			Histogram: make([]int, def.PointsPerItem+1),
		})
		itemIndex[it.ID] = i
	}
	countsByDay := map[string]int{}
	for _, r := range results {
		for _, sc := range r.Items {
			idx, ok := itemIndex[sc.ItemID]
			if !ok || sc.Points < 0 || sc.Points > def.PointsPerItem {
				continue
			}
			out[idx].Histogram[sc.Points]++
			out[idx].Total++
			if sc.Points > 0 {
				out[idx].Endorsed++
			}
		}
		countsByDay[r.CreatedAt.UTC().Format("2006-01-02")]++
	}
	return out, countsByDay
}

// buildAlphaMatrix keeps only results that carry a contribution for every item.
func buildAlphaMatrix(def *screening.Definition, results []screening.ResultRecord) ([][]float64, int) {
	ids := make([]int, 0, len(def.Items))
	for _, it := range def.Items {
		ids = append(ids, it.ID)
	}
	sort.Ints(ids)
	matrix := make([][]float64, 0, len(results))
	for _, r := range results {
		byItem := make(map[int]int, len(r.Items))
		for _, sc := range r.Items {
			byItem[sc.ItemID] = sc.Points
		}
		row := make([]float64, 0, len(ids))
		for _, id := range ids {
			v, ok := byItem[id]
			if !ok {
				break
			}
			row = append(row, float64(v))
		}
		if len(row) == len(ids) {
			matrix = append(matrix, row)
		}
	}
	return matrix, len(matrix)
}

func buildTimeseries(counts map[string]int) []AnalyticsTimeseries {
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]AnalyticsTimeseries, 0, len(days))
	for _, d := range days {
		out = append(out, AnalyticsTimeseries{Date: d, Count: counts[d]})
	}
	return out
}
