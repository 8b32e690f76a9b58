package services

import (
	"context"
	"testing"
	"time"

	"github.com/plataa/triagem/internal/screening"
)

func TestResearchSummaryAndConsented(t *testing.T) {
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	store := newStubStore()
	store.research = []screening.ResearchRecord{
		{ID: "a", Test: screening.MCHAT, AgeBand: "19-24 months", Region: "Sul", RawScore: 2, ResearchConsent: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "b", Test: screening.MCHAT, AgeBand: "19-24 months", Region: "Sul", RawScore: 8, ResearchConsent: false, CreatedAt: base},
		{ID: "c", Test: screening.ASSQ, AgeBand: "6-8 years", Region: "Norte", RawScore: 20, ResearchConsent: true, CreatedAt: base.Add(time.Hour)},
	}
	svc := NewResearchService(store)
	ctx := context.Background()

	if _, err := svc.Summary(ctx, owner); err == nil {
		t.Fatalf("ordinary users must not read research data")
	}

	counts, err := svc.Summary(ctx, specialist)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected two groups, got %+v", counts)
	}
	if counts[0].Test != screening.ASSQ || counts[0].Total != 1 {
		t.Fatalf("groups must be sorted by test type: %+v", counts)
	}
	m := counts[1]
	if m.Total != 2 || m.Consented != 1 || m.MeanScore != 5 {
		t.Fatalf("unexpected mchat group: %+v", m)
	}

	recs, err := svc.Consented(ctx, specialist)
	if err != nil {
		t.Fatalf("Consented returned error: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "a" {
		t.Fatalf("expected consented records oldest first, got %+v", recs)
	}
}
