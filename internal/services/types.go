package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plataa/triagem/internal/screening"
)

// User is an account that owns subjects. Specialists can read every
// subject's results; ordinary users only their own.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name"`
	Role      screening.Role `json:"role"`
	PassHash  []byte         `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditEntry records who submitted what. Submissions write one per result.
type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func newID() string { return uuid.NewString() }

// requireSession rejects calls without an authenticated owner.
func requireSession(sess screening.Session) error {
	if strings.TrimSpace(sess.OwnerID) == "" {
		return NewUnauthorizedError("unauthorized")
	}
	return nil
}

func requireSpecialist(sess screening.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if !sess.IsSpecialist() {
		return NewForbiddenError("specialist role required")
	}
	return nil
}
