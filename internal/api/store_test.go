package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plataa/triagem/internal/screening"
	"github.com/plataa/triagem/internal/services"
)

func TestMemoryStoreSubjectUpsert(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.UpsertSubject(ctx, &screening.Subject{ID: "s1", OwnerID: "u1", NationalID: "12345678901", FullName: "Ana", Region: "Sul", CreatedAt: t0, UpdatedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, "s1", first.ID)

	second, err := s.UpsertSubject(ctx, &screening.Subject{ID: "s2", OwnerID: "u1", NationalID: "12345678901", FullName: "Ana Maria", Region: "Norte", UpdatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "s1", second.ID)
	assert.Equal(t, "Ana Maria", second.FullName)
	assert.Equal(t, t0, second.CreatedAt)

	// another owner gets its own subject for the same national id
	third, err := s.UpsertSubject(ctx, &screening.Subject{ID: "s3", OwnerID: "u2", NationalID: "12345678901", FullName: "Ana", Region: "Sul"})
	require.NoError(t, err)
	assert.Equal(t, "s3", third.ID)

	all, err := s.ListSubjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	mine, err := s.ListSubjects(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "s3", mine[0].ID)

	missing, err := s.GetSubject(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreResultUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()
	_, err := s.UpsertSubject(ctx, &screening.Subject{ID: "s1", OwnerID: "u1", NationalID: "1"})
	require.NoError(t, err)

	rec := &screening.ResultRecord{ID: "r1", SubjectID: "s1", OwnerID: "u1", Test: screening.ASSQ, Answers: screening.AnswerSet{1: "2"}}
	require.NoError(t, s.AddResult(ctx, rec))
	err = s.AddResult(ctx, &screening.ResultRecord{ID: "r2", SubjectID: "s1", OwnerID: "u1", Test: screening.ASSQ})
	assert.ErrorIs(t, err, screening.ErrUniqueViolation)
	require.NoError(t, s.AddResult(ctx, &screening.ResultRecord{ID: "r3", SubjectID: "s1", OwnerID: "u1", Test: screening.AQ10}))

	err = s.AddResult(ctx, &screening.ResultRecord{ID: "r4", SubjectID: "ghost", Test: screening.AQ10})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, screening.ErrUniqueViolation)

	// reads are copies
	rec.Answers[1] = "0"
	got, err := s.ListResultsByTest(ctx, screening.ASSQ)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Answers[1])
	got[0].Answers[1] = "1"
	again, _ := s.ListResults(ctx, "u1")
	assert.Equal(t, "2", again[0].Answers[1])

	has, err := s.HasResult(ctx, "s1", screening.MCHAT)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryStoreUsersAndAudit(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()
	require.NoError(t, s.AddUser(ctx, &services.User{ID: "u1", Email: "a@example.com"}))
	assert.ErrorIs(t, s.AddUser(ctx, &services.User{ID: "u2", Email: "A@example.com"}), screening.ErrUniqueViolation)
	u, err := s.FindUserByEmail(ctx, "A@EXAMPLE.COM")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	for _, a := range []string{"one", "two", "three"} {
		require.NoError(t, s.AddAudit(ctx, services.AuditEntry{Action: a}))
	}
	entries, err := s.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "three", entries[0].Action)
	assert.Equal(t, "two", entries[1].Action)
	entries, _ = s.ListAudit(ctx, 0)
	assert.Len(t, entries, 3)
}
