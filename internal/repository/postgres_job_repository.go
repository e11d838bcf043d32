package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"job-ingest/internal/database"
	"job-ingest/internal/domain/job"

	"github.com/google/uuid"
)

type PostgresJobRepository struct {
	db  database.DB
	now func() time.Time
}

func NewPostgresJobRepository(db database.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *PostgresJobRepository) Ping(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil db")
	}
	return r.db.Ping(ctx)
}

func (r *PostgresJobRepository) Insert(ctx context.Context, rec job.Record) (uuid.UUID, error) {
	if r == nil || r.db == nil {
		return uuid.Nil, fmt.Errorf("nil db")
	}
	rec = prepareInsert(rec, r.now())

	row := r.db.QueryRow(ctx,
		`INSERT INTO job_records (`+recordColumns+`, source_html)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		 ON CONFLICT (user_id, canonical_url) DO NOTHING
		 RETURNING id`,
		rec.ID, rec.UserID, rec.JobURL, rec.CanonicalURL,
		rec.Title, rec.Company, rec.Location, rec.Salary, rec.Description, rec.JobType, rec.ExperienceLevel,
		rec.RemoteWork, rec.Benefits, rec.Requirements, rec.Skills,
		rec.Stage, rec.Excitement, string(rec.Status), rec.EnrichmentAttempts,
		rec.CreatedAt, rec.UpdatedAt, rec.EnrichedAt, nullIfBlank(rec.SourceHTML),
	)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if isNoRows(err) {
			return uuid.Nil, ErrDuplicateJob
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PostgresJobRepository) FindByUserAndURL(ctx context.Context, userID uuid.UUID, canonicalURL string) (*job.Record, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("nil db")
	}
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM job_records WHERE user_id = $1 AND canonical_url = $2 LIMIT 1`,
		userID, canonicalURL,
	)
	return scanPostgresRecord(row)
}

func (r *PostgresJobRepository) FindByID(ctx context.Context, id, userID uuid.UUID) (*job.Record, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("nil db")
	}
	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM job_records WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return scanPostgresRecord(row)
}

// UpdateFields only overwrites columns the update carries, and marks the
// record enriched.
func (r *PostgresJobRepository) UpdateFields(ctx context.Context, id, userID uuid.UUID, upd job.Update) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil db")
	}
	now := r.now()
	n, err := r.db.Exec(ctx,
		`UPDATE job_records SET
			title = COALESCE($3, title),
			company = COALESCE($4, company),
			location = COALESCE($5, location),
			salary = COALESCE($6, salary),
			description = COALESCE($7, description),
			job_type = COALESCE($8, job_type),
			experience_level = COALESCE($9, experience_level),
			remote_work = remote_work OR $10,
			benefits = COALESCE($11, benefits),
			requirements = COALESCE($12, requirements),
			skills = COALESCE($13, skills),
			status = $14,
			updated_at = $15,
			enriched_at = $15,
			source_html = NULL
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
		upd.Title, upd.Company, upd.Location, upd.Salary, upd.Description, upd.JobType, upd.ExperienceLevel,
		upd.RemoteWork, nilIfEmpty(upd.Benefits), nilIfEmpty(upd.Requirements), nilIfEmpty(upd.Skills),
		string(job.StatusEnriched), now,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PostgresJobRepository) MarkAttempt(ctx context.Context, id, userID uuid.UUID) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("nil db")
	}
	n, err := r.db.Exec(ctx,
		`UPDATE job_records SET enrichment_attempts = enrichment_attempts + 1, updated_at = $3
		 WHERE id = $1 AND user_id = $2`,
		id, userID, r.now(),
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *PostgresJobRepository) ListPendingForRetry(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]job.Record, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("nil db")
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+`, COALESCE(source_html, '') FROM job_records
		 WHERE status = $1 AND enrichment_attempts < $2 AND updated_at < $3
		 ORDER BY updated_at ASC
		 LIMIT $4`,
		string(job.StatusPending), maxAttempts, olderThan.UTC(), clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]job.Record, 0)
	for rows.Next() {
		var html string
		rec, err := scanPostgresRecord(rows, &html)
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

// scanPostgresRecord scans recordColumns followed by any extra columns.
func scanPostgresRecord(row database.Row, extra ...any) (*job.Record, error) {
	var rec job.Record
	var status string
	dest := []any{
		&rec.ID, &rec.UserID, &rec.JobURL, &rec.CanonicalURL,
		&rec.Title, &rec.Company, &rec.Location, &rec.Salary, &rec.Description, &rec.JobType, &rec.ExperienceLevel,
		&rec.RemoteWork, &rec.Benefits, &rec.Requirements, &rec.Skills,
		&rec.Stage, &rec.Excitement, &status, &rec.EnrichmentAttempts,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.EnrichedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	rec.Status = job.Status(status)
	return &rec, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, database.ErrNoRows)
}

var _ JobStore = (*PostgresJobRepository)(nil)
