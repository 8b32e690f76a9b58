package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/plataa/triagem/internal/screening"
)

func TestAnalyticsSummary(t *testing.T) {
	eng := testEngine()
	store := newStubStore()
	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, v := range []string{"0", "1", "2", "1"} {
		out, err := eng.ScoreAndClassify(screening.ASSQ, assqAnswers(v))
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		store.results = append(store.results, screening.ResultRecord{
			ID:        string(rune('a' + i)),
			SubjectID: string(rune('a' + i)),
			Test:      screening.ASSQ,
			RawScore:  out.RawScore,
			Risk:      out.Risk,
			Items:     out.Items,
			CreatedAt: day1.Add(time.Duration(i) * 12 * time.Hour),
		})
	}
	svc := NewAnalyticsService(store, eng)
	ctx := context.Background()

	if _, err := svc.Summary(ctx, owner, screening.ASSQ); err == nil {
		t.Fatalf("expected forbidden for ordinary user")
	}
	if _, err := svc.Summary(ctx, specialist, "cars"); err == nil {
		t.Fatalf("expected invalid for unknown test")
	}

	sum, err := svc.Summary(ctx, specialist, screening.ASSQ)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if sum.TotalResults != 4 || sum.MaxScore != 54 || len(sum.Items) != 27 {
		t.Fatalf("unexpected summary header: %+v", sum)
	}
	first := sum.Items[0]
	if len(first.Histogram) != 3 || first.Histogram[0] != 1 || first.Histogram[1] != 2 || first.Histogram[2] != 1 {
		t.Fatalf("unexpected histogram: %v", first.Histogram)
	}
	if first.Endorsed != 3 || first.Total != 4 {
		t.Fatalf("unexpected endorsement: %+v", first)
	}
	if sum.Risk[screening.RiskLow] != 1 || sum.Risk[screening.RiskHigh] != 3 || sum.Risk[screening.RiskModerate] != 0 {
		t.Fatalf("unexpected risk distribution: %v", sum.Risk)
	}
	if len(sum.Timeseries) != 2 || sum.Timeseries[0].Count != 2 {
		t.Fatalf("unexpected timeseries: %+v", sum.Timeseries)
	}
	if sum.N != 4 || sum.Alpha < 0.999 {
		t.Fatalf("identical items should give alpha ~1, got %f over %d", sum.Alpha, sum.N)
	}
}

func TestAnalyticsItemsCSV(t *testing.T) {
	eng := testEngine()
	store := newStubStore()
	out, err := eng.ScoreAndClassify(screening.ASSQ, assqAnswers("2"))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	store.results = append(store.results, screening.ResultRecord{ID: "r1", SubjectID: "s1", Test: screening.ASSQ, RawScore: out.RawScore, Items: out.Items})
	svc := NewAnalyticsService(store, eng)
	ctx := context.Background()

	if _, err := svc.ItemsCSV(ctx, owner, screening.ASSQ); ErrorCategory(err) != screening.CategoryInvalid {
		t.Fatalf("expected ordinary user to be refused, got %v", err)
	}
	b, err := svc.ItemsCSV(ctx, specialist, screening.ASSQ)
	if err != nil {
		t.Fatalf("ItemsCSV returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "r1,s1,54,2,") {
		t.Fatalf("unexpected csv: %q", b)
	}
}
