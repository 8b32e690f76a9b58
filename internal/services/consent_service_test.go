package services

import (
	"context"
	"testing"
	"time"

	"github.com/plataa/triagem/internal/screening"
)

func TestSetResearchConsent(t *testing.T) {
	store := newStubStore()
	store.subjects["s1"] = &screening.Subject{ID: "s1", OwnerID: owner.OwnerID, FullName: "Ana", NationalID: "11111111111"}
	svc := NewConsentService(store)
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }
	ctx := context.Background()

	subj, err := svc.SetResearchConsent(ctx, owner, "s1", true)
	if err != nil {
		t.Fatalf("SetResearchConsent returned error: %v", err)
	}
	if !subj.ResearchConsent || !store.subjects["s1"].ResearchConsent || !store.subjects["s1"].UpdatedAt.Equal(at) {
		t.Fatalf("consent not stored: %+v", store.subjects["s1"])
	}
	if len(store.audit) != 1 || store.audit[0].Action != "consent_grant" {
		t.Fatalf("unexpected audit: %+v", store.audit)
	}

	if _, err := svc.SetResearchConsent(ctx, owner, "s1", false); err != nil {
		t.Fatalf("withdraw returned error: %v", err)
	}
	if store.subjects["s1"].ResearchConsent || store.audit[1].Action != "consent_withdraw" {
		t.Fatalf("withdrawal not recorded")
	}

	if _, err := svc.SetResearchConsent(ctx, other, "s1", true); err == nil {
		t.Fatalf("expected forbidden for another owner")
	}
	if _, err := svc.SetResearchConsent(ctx, owner, "missing", true); err == nil {
		t.Fatalf("expected not found")
	}
}
