package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"job-ingest/internal/domain/job"
	"job-ingest/internal/extraction"
	"job-ingest/internal/infrastructure/fetcher"
	"job-ingest/internal/repository"
	"job-ingest/internal/worker"

	"github.com/google/uuid"
)

var ErrNothingExtracted = errors.New("nothing extracted")

// Task is one enrichment job. HTML is what the client captured, if anything.
type Task struct {
	JobID    uuid.UUID
	UserID   uuid.UUID
	FetchURL string
	HTML     string
	Fallback job.Fields
}

type Coordinator interface {
	Coordinate(ctx context.Context, src extraction.Source) (extraction.Result, error)
}

// Notifier is told about every record that reached the enriched state.
type Notifier interface {
	JobEnriched(rec job.Record)
}

type Enricher struct {
	store        repository.JobStore
	fetcher      fetcher.Fetcher
	coordinator  Coordinator
	notifier     Notifier
	fetchTimeout time.Duration
	logger       *log.Logger
}

func NewEnricher(store repository.JobStore, f fetcher.Fetcher, c Coordinator, n Notifier, fetchTimeout time.Duration, logger *log.Logger) *Enricher {
	if fetchTimeout <= 0 {
		fetchTimeout = fetcher.DefaultTimeout
	}
	return &Enricher{
		store:        store,
		fetcher:      f,
		coordinator:  c,
		notifier:     n,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// TaskFunc adapts t for the worker pool. Failures end in the log, never in
// the pool, so the placeholder record is left as it is.
func (e *Enricher) TaskFunc(t Task) worker.Task {
	return func(ctx context.Context) error {
		_ = e.Enrich(ctx, t)
		return nil
	}
}

// Enrich fetches (or reuses) the page, runs extraction and writes the result
// onto the record. Any error or panic leaves the record untouched.
func (e *Enricher) Enrich(ctx context.Context, t Task) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panic: %v", r)
			e.logf("[Enrich] panic job_id=%s err=%v\n%s", t.JobID, r, debug.Stack())
			return
		}
		if err != nil {
			e.logf("[Enrich] failed job_id=%s user_id=%s url=%s duration=%s err=%v", t.JobID, t.UserID, t.FetchURL, time.Since(start), err)
		}
	}()

	if e == nil || e.store == nil || e.coordinator == nil {
		return errors.New("enricher not configured")
	}

	if err := e.store.MarkAttempt(ctx, t.JobID, t.UserID); err != nil {
		return fmt.Errorf("mark attempt: %w", err)
	}

	html, source, err := e.page(ctx, t)
	if err != nil {
		return err
	}

	res, err := e.coordinator.Coordinate(ctx, extraction.Source{HTML: html, URL: t.FetchURL})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	// extracted values win; the client fallback fills gaps and competes on
	// description length
	merged := extraction.Merge(res.Job, t.Fallback.Normalized().Extracted())
	if merged.IsEmpty() {
		return ErrNothingExtracted
	}

	if err := e.store.UpdateFields(ctx, t.JobID, t.UserID, job.Update{Extracted: merged}); err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	e.logf("[Enrich] done job_id=%s source=%s stages=%v fallback=%t duration=%s", t.JobID, source, res.Stages, res.Fallback, time.Since(start))

	if e.notifier != nil {
		rec, err := e.store.FindByID(ctx, t.JobID, t.UserID)
		if err != nil {
			e.logf("[Enrich] reload for notify failed job_id=%s err=%v", t.JobID, err)
			return nil
		}
		e.notifier.JobEnriched(*rec)
	}
	return nil
}

func (e *Enricher) page(ctx context.Context, t Task) (string, string, error) {
	if strings.TrimSpace(t.HTML) != "" {
		return t.HTML, "client", nil
	}
	if e.fetcher == nil {
		return "", "", errors.New("no html supplied and no fetcher configured")
	}
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	html, err := e.fetcher.Fetch(fetchCtx, t.FetchURL)
	if err != nil {
		return "", "", fmt.Errorf("fetch: %w", err)
	}
	return html, "fetched", nil
}

func (e *Enricher) logf(format string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}
