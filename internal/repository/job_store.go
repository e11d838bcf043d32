package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"job-ingest/internal/domain/job"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrDuplicateJob = errors.New("job already saved for this user")
)

// JobStore persists job records. (user_id, canonical_url) is unique, and
// every write after Insert is scoped by both the record id and its owner.
type JobStore interface {
	Insert(ctx context.Context, rec job.Record) (uuid.UUID, error)
	FindByUserAndURL(ctx context.Context, userID uuid.UUID, canonicalURL string) (*job.Record, error)
	FindByID(ctx context.Context, id, userID uuid.UUID) (*job.Record, error)
	UpdateFields(ctx context.Context, id, userID uuid.UUID, upd job.Update) error
	MarkAttempt(ctx context.Context, id, userID uuid.UUID) error
	ListPendingForRetry(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]job.Record, error)
	Ping(ctx context.Context) error
}

const recordColumns = `id, user_id, job_url, canonical_url,
	title, company, location, salary, description, job_type, experience_level,
	remote_work, benefits, requirements, skills,
	stage, excitement, status, enrichment_attempts,
	created_at, updated_at, enriched_at`

// nullIfBlank maps an empty string to SQL NULL.
func nullIfBlank(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// prepareInsert fills the defaults every store applies before writing.
func prepareInsert(rec job.Record, now time.Time) job.Record {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if strings.TrimSpace(rec.Stage) == "" {
		rec.Stage = job.DefaultStage
	}
	if rec.Status == "" {
		rec.Status = job.StatusPending
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Benefits = nonNilList(rec.Benefits)
	rec.Requirements = nonNilList(rec.Requirements)
	rec.Skills = nonNilList(rec.Skills)
	if rec.Status != job.StatusPending {
		rec.SourceHTML = ""
	}
	return rec
}

func nonNilList(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nilIfEmpty(v []string) []string {
	if len(v) == 0 {
		return nil
	}
	return v
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
