package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/plataa/triagem/internal/api"
	"github.com/plataa/triagem/internal/screening"
	"github.com/plataa/triagem/internal/services"
)

var _ api.Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// sqliteDSNParams are applied by the driver on every pooled connection;
// foreign_keys and synchronous are per-connection settings.
const sqliteDSNParams = "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL"

// OpenSQLite opens (creating its directory when needed) the database file at path.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+sqliteDSNParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func NewSQLiteStore(db *sql.DB, log zerolog.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		return nil, fmt.Errorf("read sqlite pragma foreign_keys: %w", err)
	}
	if fk != 1 {
		return nil, errors.New("sqlite foreign keys are off; open the database with OpenSQLite")
	}
	return &SQLiteStore{db: db, log: log.With().Str("store", "sqlite").Logger()}, nil
}

// sqliteErr wraps constraint failures in screening.ErrUniqueViolation.
func sqliteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%s: %w: %v", op, screening.ErrUniqueViolation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// --- Users ---

func (s *SQLiteStore) AddUser(ctx context.Context, u *services.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, full_name, role, pass_hash, created_at)
      VALUES (?, ?, ?, ?, ?, ?)`, u.ID, u.Email, u.FullName, string(u.Role), u.PassHash, formatTime(u.CreatedAt))
	return sqliteErr("add user", err)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*services.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, email, full_name, role, pass_hash, created_at FROM users WHERE email = ?`, email)
	var (
		u       services.User
		role    string
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.PassHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, sqliteErr("find user", err)
	}
	u.Role = screening.Role(role)
	u.CreatedAt = parseTime(created)
	return &u, nil
}

// --- Subjects ---

const subjectColumns = `id, owner_id, full_name, national_id, region, phone, email, research_consent, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(r rowScanner) (*screening.Subject, error) {
	var (
		subj             screening.Subject
		phone, email     sql.NullString
		consent          int64
		created, updated string
	)
	if err := r.Scan(&subj.ID, &subj.OwnerID, &subj.FullName, &subj.NationalID, &subj.Region,
		&phone, &email, &consent, &created, &updated); err != nil {
		return nil, err
	}
	subj.Phone = phone.String
	subj.Email = email.String
	subj.ResearchConsent = int64ToBool(consent)
	subj.CreatedAt = parseTime(created)
	subj.UpdatedAt = parseTime(updated)
	return &subj, nil
}

// UpsertSubject keeps the first id and created_at for (owner_id, national_id).
func (s *SQLiteStore) UpsertSubject(ctx context.Context, in *screening.Subject) (*screening.Subject, error) {
	if in == nil {
		return nil, errors.New("nil subject")
	}
	row := s.db.QueryRowContext(ctx, `INSERT INTO subjects (`+subjectColumns+`)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
      ON CONFLICT(owner_id, national_id) DO UPDATE SET
        full_name = excluded.full_name,
        region = excluded.region,
        phone = excluded.phone,
        email = excluded.email,
        research_consent = excluded.research_consent,
        updated_at = excluded.updated_at
      RETURNING `+subjectColumns,
		in.ID, in.OwnerID, in.FullName, in.NationalID, in.Region, toNullString(in.Phone), toNullString(in.Email),
		boolToInt64(in.ResearchConsent), formatTime(in.CreatedAt), formatTime(in.UpdatedAt))
	subj, err := scanSubject(row)
	if err != nil {
		return nil, sqliteErr("upsert subject", err)
	}
	return subj, nil
}

func (s *SQLiteStore) GetSubject(ctx context.Context, id string) (*screening.Subject, error) {
	subj, err := scanSubject(s.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, sqliteErr("get subject", err)
	}
	return subj, nil
}

func (s *SQLiteStore) ListSubjects(ctx context.Context, ownerID string) ([]screening.Subject, error) {
	q := `SELECT ` + subjectColumns + ` FROM subjects`
	var args []any
	if ownerID != "" {
		q += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, sqliteErr("list subjects", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("list subjects: rows.Close")
		}
	}()
	out := []screening.Subject{}
	for rows.Next() {
		subj, err := scanSubject(rows)
		if err != nil {
			return nil, sqliteErr("scan subject", err)
		}
		out = append(out, *subj)
	}
	return out, sqliteErr("list subjects", rows.Err())
}

func (s *SQLiteStore) SetResearchConsent(ctx context.Context, subjectID string, consent bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE subjects SET research_consent = ?, updated_at = ? WHERE id = ?`,
		boolToInt64(consent), formatTime(at), subjectID)
	if err != nil {
		return sqliteErr("set consent", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set consent: subject %s not found", subjectID)
	}
	return nil
}

// --- Results ---

const resultColumns = `id, subject_id, owner_id, test_type, definition_version, raw_score, risk_category,
      research_consent, age, respondent, answers, items, created_at`

func (s *SQLiteStore) scanResult(r rowScanner) (*screening.ResultRecord, error) {
	var (
		rec            screening.ResultRecord
		test, risk     string
		consent        int64
		age            sql.NullInt64
		respondent     sql.NullString
		answers, items []byte
		created        string
	)
	if err := r.Scan(&rec.ID, &rec.SubjectID, &rec.OwnerID, &test, &rec.DefinitionVersion, &rec.RawScore, &risk,
		&consent, &age, &respondent, &answers, &items, &created); err != nil {
		return nil, err
	}
	rec.Test = screening.TestType(test)
	rec.Risk = parseRisk(s.log, rec.ID, risk)
	rec.ResearchConsent = int64ToBool(consent)
	rec.Age = int(age.Int64)
	rec.Respondent = respondent.String
	rec.Answers = decodeAnswers(s.log, rec.ID, answers)
	rec.Items = decodeItems(s.log, rec.ID, items)
	rec.CreatedAt = parseTime(created)
	return &rec, nil
}

func (s *SQLiteStore) HasResult(ctx context.Context, subjectID string, test screening.TestType) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM results WHERE subject_id = ? AND test_type = ?`,
		subjectID, string(test)).Scan(&n)
	if err != nil {
		return false, sqliteErr("has result", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) AddResult(ctx context.Context, r *screening.ResultRecord) error {
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
	_, err = s.db.ExecContext(ctx, `INSERT INTO results (`+resultColumns+`)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SubjectID, r.OwnerID, string(r.Test), r.DefinitionVersion, r.RawScore, string(r.Risk),
		boolToInt64(r.ResearchConsent), toNullInt(r.Age), toNullString(r.Respondent), nullableText(answers),
		nullableText(items), formatTime(r.CreatedAt))
	return sqliteErr("add result", err)
}

func nullableText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func (s *SQLiteStore) queryResults(ctx context.Context, op, where string, args ...any) ([]screening.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM results`+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, sqliteErr(op, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Str("op", op).Msg("rows.Close")
		}
	}()
	out := []screening.ResultRecord{}
	for rows.Next() {
		rec, err := s.scanResult(rows)
		if err != nil {
			return nil, sqliteErr(op, err)
		}
		out = append(out, *rec)
	}
	return out, sqliteErr(op, rows.Err())
}

func (s *SQLiteStore) ListResults(ctx context.Context, ownerID string) ([]screening.ResultRecord, error) {
	if ownerID == "" {
		return s.queryResults(ctx, "list results", "")
	}
	return s.queryResults(ctx, "list results", ` WHERE owner_id = ?`, ownerID)
}

func (s *SQLiteStore) ListResultsByTest(ctx context.Context, test screening.TestType) ([]screening.ResultRecord, error) {
	return s.queryResults(ctx, "list results by test", ` WHERE test_type = ?`, string(test))
}

// --- Research ---

func (s *SQLiteStore) AddResearchRecord(ctx context.Context, r *screening.ResearchRecord) error {
	if r == nil {
		return errors.New("nil research record")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO research_records (id, owner_id, test_type, age_band, region, raw_score, research_consent, created_at)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.ID, r.OwnerID, string(r.Test), toNullString(r.AgeBand), toNullString(r.Region),
		r.RawScore, boolToInt64(r.ResearchConsent), formatTime(r.CreatedAt))
	return sqliteErr("add research record", err)
}

func (s *SQLiteStore) ListResearchRecords(ctx context.Context) ([]screening.ResearchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, owner_id, test_type, age_band, region, raw_score, research_consent, created_at
      FROM research_records ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, sqliteErr("list research", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("list research: rows.Close")
		}
	}()
	out := []screening.ResearchRecord{}
	for rows.Next() {
		var (
			r             screening.ResearchRecord
			test, created string
			band, region  sql.NullString
			consent       int64
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &test, &band, &region, &r.RawScore, &consent, &created); err != nil {
			return nil, sqliteErr("scan research", err)
		}
		r.Test = screening.TestType(test)
		r.AgeBand = band.String
		r.Region = region.String
		r.ResearchConsent = int64ToBool(consent)
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, sqliteErr("list research", rows.Err())
}

// --- Audit ---

func (s *SQLiteStore) AddAudit(ctx context.Context, e services.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_log (time, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		formatTime(e.Time), e.Actor, e.Action, toNullString(e.Target), toNullString(e.Note))
	return sqliteErr("add audit", err)
}

// ListAudit returns the newest entries first. limit <= 0 means no limit.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]services.AuditEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT time, actor, action, target, note FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, sqliteErr("list audit", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("list audit: rows.Close")
		}
	}()
	out := []services.AuditEntry{}
	for rows.Next() {
		var (
			e            services.AuditEntry
			at           string
			target, note sql.NullString
		)
		if err := rows.Scan(&at, &e.Actor, &e.Action, &target, &note); err != nil {
			return nil, sqliteErr("scan audit", err)
		}
		e.Time = parseTime(at)
		e.Target = target.String
		e.Note = note.String
		out = append(out, e)
	}
	return out, sqliteErr("list audit", rows.Err())
}
