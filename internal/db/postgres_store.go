package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/plataa/triagem/internal/api"
	"github.com/plataa/triagem/internal/screening"
	"github.com/plataa/triagem/internal/services"
)

var _ api.Store = (*PostgresStore)(nil)

const pgUniqueViolation = "23505"

// NewPool connects and pings before returning.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, log zerolog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("nil pool")
	}
	return &PostgresStore{pool: pool, log: log.With().Str("store", "postgres").Logger()}, nil
}

func pgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, screening.ErrUniqueViolation, pe.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AddUser(ctx context.Context, u *services.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO users (id, email, full_name, role, pass_hash, created_at)
      VALUES ($1, $2, $3, $4, $5, $6)`, u.ID, u.Email, u.FullName, string(u.Role), u.PassHash, u.CreatedAt.UTC())
	return pgErr("add user", err)
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*services.User, error) {
	var (
		u    services.User
		role string
	)
	err := s.pool.QueryRow(ctx, `SELECT id, email, full_name, role, pass_hash, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.FullName, &role, &u.PassHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, pgErr("find user", err)
	}
	u.Role = screening.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func scanPgSubject(r pgx.Row) (*screening.Subject, error) {
	var subj screening.Subject
	if err := r.Scan(&subj.ID, &subj.OwnerID, &subj.FullName, &subj.NationalID, &subj.Region,
		&subj.Phone, &subj.Email, &subj.ResearchConsent, &subj.CreatedAt, &subj.UpdatedAt); err != nil {
		return nil, err
	}
	subj.CreatedAt = subj.CreatedAt.UTC()
	subj.UpdatedAt = subj.UpdatedAt.UTC()
	return &subj, nil
}

func (s *PostgresStore) UpsertSubject(ctx context.Context, in *screening.Subject) (*screening.Subject, error) {
	if in == nil {
		return nil, errors.New("nil subject")
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO subjects (`+subjectColumns+`)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
      ON CONFLICT (owner_id, national_id) DO UPDATE SET
        full_name = EXCLUDED.full_name,
        region = EXCLUDED.region,
        phone = EXCLUDED.phone,
        email = EXCLUDED.email,
        research_consent = EXCLUDED.research_consent,
        updated_at = EXCLUDED.updated_at
      RETURNING `+subjectColumns,
		in.ID, in.OwnerID, in.FullName, in.NationalID, in.Region, in.Phone, in.Email,
		in.ResearchConsent, in.CreatedAt.UTC(), in.UpdatedAt.UTC())
	subj, err := scanPgSubject(row)
	if err != nil {
		return nil, pgErr("upsert subject", err)
	}
	return subj, nil
}

func (s *PostgresStore) GetSubject(ctx context.Context, id string) (*screening.Subject, error) {
	subj, err := scanPgSubject(s.pool.QueryRow(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, pgErr("get subject", err)
	}
	return subj, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context, ownerID string) ([]screening.Subject, error) {
	q := `SELECT ` + subjectColumns + ` FROM subjects`
	var args []any
	if ownerID != "" {
		q += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	rows, err := s.pool.Query(ctx, q+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, pgErr("list subjects", err)
	}
	defer rows.Close()
	out := []screening.Subject{}
	for rows.Next() {
		subj, err := scanPgSubject(rows)
		if err != nil {
			return nil, pgErr("scan subject", err)
		}
		out = append(out, *subj)
	}
	return out, pgErr("list subjects", rows.Err())
}

func (s *PostgresStore) SetResearchConsent(ctx context.Context, subjectID string, consent bool, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE subjects SET research_consent = $1, updated_at = $2 WHERE id = $3`,
		consent, at.UTC(), subjectID)
	if err != nil {
		return pgErr("set consent", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set consent: subject %s not found", subjectID)
	}
	return nil
}

func (s *PostgresStore) HasResult(ctx context.Context, subjectID string, test screening.TestType) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM results WHERE subject_id = $1 AND test_type = $2)`,
		subjectID, string(test)).Scan(&exists)
	if err != nil {
		return false, pgErr("has result", err)
	}
	return exists, nil
}

func (s *PostgresStore) AddResult(ctx context.Context, r *screening.ResultRecord) error {
	if r == nil {
		return errors.New("nil result")
	}
	answers, err := encodeAnswers(r.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	items, err := encodeItems(r.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO results (`+resultColumns+`)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.SubjectID, r.OwnerID, string(r.Test), r.DefinitionVersion, r.RawScore, string(r.Risk),
		r.ResearchConsent, r.Age, r.Respondent, answers, items, r.CreatedAt.UTC())
	return pgErr("add result", err)
}

func (s *PostgresStore) queryResults(ctx context.Context, op, where string, args ...any) ([]screening.ResultRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+resultColumns+` FROM results`+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, pgErr(op, err)
	}
	defer rows.Close()
	out := []screening.ResultRecord{}
	for rows.Next() {
		var (
			rec            screening.ResultRecord
			test, risk     string
			answers, items []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.OwnerID, &test, &rec.DefinitionVersion, &rec.RawScore, &risk,
			&rec.ResearchConsent, &rec.Age, &rec.Respondent, &answers, &items, &rec.CreatedAt); err != nil {
			return nil, pgErr(op, err)
		}
		rec.Test = screening.TestType(test)
		rec.Risk = parseRisk(s.log, rec.ID, risk)
		rec.Answers = decodeAnswers(s.log, rec.ID, answers)
		rec.Items = decodeItems(s.log, rec.ID, items)
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, pgErr(op, rows.Err())
}

func (s *PostgresStore) ListResults(ctx context.Context, ownerID string) ([]screening.ResultRecord, error) {
	if ownerID == "" {
		return s.queryResults(ctx, "list results", "")
	}
	return s.queryResults(ctx, "list results", ` WHERE owner_id = $1`, ownerID)
}

func (s *PostgresStore) ListResultsByTest(ctx context.Context, test screening.TestType) ([]screening.ResultRecord, error) {
	return s.queryResults(ctx, "list results by test", ` WHERE test_type = $1`, string(test))
}

func (s *PostgresStore) AddResearchRecord(ctx context.Context, r *screening.ResearchRecord) error {
	if r == nil {
		return errors.New("nil research record")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO research_records (id, owner_id, test_type, age_band, region, raw_score, research_consent, created_at)
      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.ID, r.OwnerID, string(r.Test), r.AgeBand, r.Region,
		r.RawScore, r.ResearchConsent, r.CreatedAt.UTC())
	return pgErr("add research record", err)
}

func (s *PostgresStore) ListResearchRecords(ctx context.Context) ([]screening.ResearchRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, owner_id, test_type, age_band, region, raw_score, research_consent, created_at
      FROM research_records ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, pgErr("list research", err)
	}
	defer rows.Close()
	out := []screening.ResearchRecord{}
	for rows.Next() {
		var (
			r    screening.ResearchRecord
			test string
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &test, &r.AgeBand, &r.Region, &r.RawScore, &r.ResearchConsent, &r.CreatedAt); err != nil {
			return nil, pgErr("scan research", err)
		}
		r.Test = screening.TestType(test)
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, pgErr("list research", rows.Err())
}

func (s *PostgresStore) AddAudit(ctx context.Context, e services.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO audit_log (time, actor, action, target, note) VALUES ($1, $2, $3, $4, $5)`,
		e.Time.UTC(), e.Actor, e.Action, e.Target, e.Note)
	return pgErr("add audit", err)
}

func (s *PostgresStore) ListAudit(ctx context.Context, limit int) ([]services.AuditEntry, error) {
	q := `SELECT time, actor, action, target, note FROM audit_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, pgErr("list audit", err)
	}
	defer rows.Close()
	out := []services.AuditEntry{}
	for rows.Next() {
		var e services.AuditEntry
		if err := rows.Scan(&e.Time, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			return nil, pgErr("scan audit", err)
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	return out, pgErr("list audit", rows.Err())
}
