package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"job-ingest/internal/domain/job"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Fixed width so that timestamps compare correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS job_records (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	job_url TEXT NOT NULL,
	canonical_url TEXT NOT NULL,
	title TEXT,
	company TEXT,
	location TEXT,
	salary TEXT,
	description TEXT,
	job_type TEXT,
	experience_level TEXT,
	remote_work INTEGER NOT NULL DEFAULT 0,
	benefits TEXT NOT NULL DEFAULT '[]',
	requirements TEXT NOT NULL DEFAULT '[]',
	skills TEXT NOT NULL DEFAULT '[]',
	stage TEXT NOT NULL DEFAULT 'Bookmarked',
	excitement INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	enrichment_attempts INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	enriched_at TEXT,
	source_html TEXT,
	UNIQUE (user_id, canonical_url)
);
CREATE INDEX IF NOT EXISTS job_records_pending_idx ON job_records (status, updated_at);`

// SQLiteJobRepository is the single-node store. Lists are kept as JSON text.
type SQLiteJobRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJobRepository opens (or creates) the database at path and ensures
// the schema exists. ":memory:" is accepted for tests.
func NewSQLiteJobRepository(path string) (*SQLiteJobRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// one connection: an in-memory database exists per connection, and
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating job_records table: %w", err)
	}
	if err := ensureSQLiteColumn(db, "job_records", "source_html", "TEXT"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *SQLiteJobRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteJobRepository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil db")
	}
	return r.db.PingContext(ctx)
}

func (r *SQLiteJobRepository) Insert(ctx context.Context, rec job.Record) (uuid.UUID, error) {
	rec = prepareInsert(rec, r.now())

	benefits, requirements, skills, err := encodeLists(rec.Benefits, rec.Requirements, rec.Skills)
	if err != nil {
		return uuid.Nil, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO job_records (`+recordColumns+`, source_html)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT (user_id, canonical_url) DO NOTHING`,
		rec.ID.String(), rec.UserID.String(), rec.JobURL, rec.CanonicalURL,
		rec.Title, rec.Company, rec.Location, rec.Salary, rec.Description, rec.JobType, rec.ExperienceLevel,
		rec.RemoteWork, benefits, requirements, skills,
		rec.Stage, rec.Excitement, string(rec.Status), rec.EnrichmentAttempts,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), formatTimePtr(rec.EnrichedAt), nullIfBlank(rec.SourceHTML),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting job record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return uuid.Nil, err
	}
	if n == 0 {
		return uuid.Nil, ErrDuplicateJob
	}
	return rec.ID, nil
}

func (r *SQLiteJobRepository) FindByUserAndURL(ctx context.Context, userID uuid.UUID, canonicalURL string) (*job.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM job_records WHERE user_id = ? AND canonical_url = ? LIMIT 1`,
		userID.String(), canonicalURL,
	)
	return scanSQLiteRecord(row)
}

func (r *SQLiteJobRepository) FindByID(ctx context.Context, id, userID uuid.UUID) (*job.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM job_records WHERE id = ? AND user_id = ?`,
		id.String(), userID.String(),
	)
	return scanSQLiteRecord(row)
}

func (r *SQLiteJobRepository) UpdateFields(ctx context.Context, id, userID uuid.UUID, upd job.Update) error {
	benefits, requirements, skills, err := encodeOptionalLists(upd.Benefits, upd.Requirements, upd.Skills)
	if err != nil {
		return err
	}
	now := formatTime(r.now())

	res, err := r.db.ExecContext(ctx,
		`UPDATE job_records SET
			title = COALESCE(?, title),
			company = COALESCE(?, company),
			location = COALESCE(?, location),
			salary = COALESCE(?, salary),
			description = COALESCE(?, description),
			job_type = COALESCE(?, job_type),
			experience_level = COALESCE(?, experience_level),
			remote_work = (remote_work OR ?),
			benefits = COALESCE(?, benefits),
			requirements = COALESCE(?, requirements),
			skills = COALESCE(?, skills),
			status = ?,
			updated_at = ?,
			enriched_at = ?,
			source_html = NULL
		 WHERE id = ? AND user_id = ?`,
		upd.Title, upd.Company, upd.Location, upd.Salary, upd.Description, upd.JobType, upd.ExperienceLevel,
		upd.RemoteWork, benefits, requirements, skills,
		string(job.StatusEnriched), now, now,
		id.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating job record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *SQLiteJobRepository) MarkAttempt(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE job_records SET enrichment_attempts = enrichment_attempts + 1, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		formatTime(r.now()), id.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("marking attempt on %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *SQLiteJobRepository) ListPendingForRetry(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]job.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+`, COALESCE(source_html, '') FROM job_records
		 WHERE status = ? AND enrichment_attempts < ? AND updated_at < ?
		 ORDER BY updated_at ASC
		 LIMIT ?`,
		string(job.StatusPending), maxAttempts, formatTime(olderThan), clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending job records: %w", err)
	}
	defer rows.Close()

	out := make([]job.Record, 0)
	for rows.Next() {
		var html string
		rec, err := scanSQLiteRecord(rows, &html)
		if err != nil {
			return nil, err
		}
		rec.SourceHTML = html
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteRecord scans recordColumns followed by any extra columns.
func scanSQLiteRecord(row rowScanner, extra ...any) (*job.Record, error) {
	var (
		rec                            job.Record
		id, userID, status             string
		benefits, requirements, skills string
		createdAt, updatedAt           string
		enrichedAt                     sql.NullString
	)
	dest := []any{
		&id, &userID, &rec.JobURL, &rec.CanonicalURL,
		&rec.Title, &rec.Company, &rec.Location, &rec.Salary, &rec.Description, &rec.JobType, &rec.ExperienceLevel,
		&rec.RemoteWork, &benefits, &requirements, &skills,
		&rec.Stage, &rec.Excitement, &status, &rec.EnrichmentAttempts,
		&createdAt, &updatedAt, &enrichedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing job id: %w", err)
	}
	if rec.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	rec.Status = job.Status(status)
	if err := decodeList(benefits, &rec.Benefits); err != nil {
		return nil, err
	}
	if err := decodeList(requirements, &rec.Requirements); err != nil {
		return nil, err
	}
	if err := decodeList(skills, &rec.Skills); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, err
	}
	if enrichedAt.Valid {
		t, err := time.Parse(sqliteTimeLayout, enrichedAt.String)
		if err != nil {
			return nil, err
		}
		rec.EnrichedAt = &t
	}
	return &rec, nil
}

// ensureSQLiteColumn adds column to databases created before it existed.
func ensureSQLiteColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("reading %s columns: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	if _, err := db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + column + ` ` + decl); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func encodeLists(lists ...[]string) (string, string, string, error) {
	out := make([]string, 3)
	for i, l := range lists[:3] {
		b, err := json.Marshal(nonNilList(l))
		if err != nil {
			return "", "", "", err
		}
		out[i] = string(b)
	}
	return out[0], out[1], out[2], nil
}

// encodeOptionalLists maps empty lists to nil so COALESCE keeps the stored
// value.
func encodeOptionalLists(lists ...[]string) (any, any, any, error) {
	out := make([]any, 3)
	for i, l := range lists[:3] {
		if len(l) == 0 {
			continue
		}
		b, err := json.Marshal(l)
		if err != nil {
			return nil, nil, nil, err
		}
		out[i] = string(b)
	}
	return out[0], out[1], out[2], nil
}

func decodeList(raw string, out *[]string) error {
	if strings.TrimSpace(raw) == "" {
		*out = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding list column: %w", err)
	}
	return nil
}

var _ JobStore = (*SQLiteJobRepository)(nil)
