package api

import (
	"context"

	"github.com/plataa/triagem/internal/services"
)

// Store is everything the HTTP layer persists. The memory store below, the
// SQLite store and the Postgres store in internal/db implement it.
type Store interface {
	services.SubmissionStore
	services.DashboardStore
	services.ResearchStore
	services.AnalyticsStore
	services.ConsentStore
	services.AuthStore

	// ListAudit returns the newest entries first; limit <= 0 returns all.
	ListAudit(ctx context.Context, limit int) ([]services.AuditEntry, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*memoryStore)(nil)
