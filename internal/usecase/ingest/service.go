package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"job-ingest/internal/domain/job"
	"job-ingest/internal/extraction"
	"job-ingest/internal/repository"
	"job-ingest/internal/worker"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrPersistence  = errors.New("failed to save job")
	ErrExtraction   = errors.New("failed to extract job")
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

const (
	MessageSaved     = "Job saved. Enrichment in progress."
	MessageIngested  = "Job ingested successfully"
	MessageDuplicate = "Job already exists in your dashboard"
)

type Result struct {
	JobID        uuid.UUID
	Status       Status
	Message      string
	CanonicalURL string
}

// Dispatcher hands enrichment off without blocking the caller.
type Dispatcher interface {
	TrySubmit(t worker.Task) bool
}

// Service writes the placeholder record synchronously and queues enrichment.
// IngestHTML is the synchronous variant for callers that already hold the
// page and want the extraction in the response.
type Service struct {
	store       repository.JobStore
	gate        *Gate
	coordinator Coordinator
	enricher    *Enricher
	dispatcher  Dispatcher
	logger      *log.Logger
	now         func() time.Time
}

func NewService(store repository.JobStore, coordinator Coordinator, enricher *Enricher, dispatcher Dispatcher, logger *log.Logger) *Service {
	return &Service{
		store:       store,
		gate:        NewGate(store),
		coordinator: coordinator,
		enricher:    enricher,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Ingest(ctx context.Context, userID uuid.UUID, sub job.Submission) (Result, error) {
	if s == nil || s.store == nil {
		return Result{Status: StatusError}, fmt.Errorf("%w: nil job store", ErrPersistence)
	}
	if userID == uuid.Nil {
		return Result{Status: StatusError}, fmt.Errorf("%w: missing user", ErrInvalidInput)
	}

	v, err := s.check(ctx, userID, sub)
	if err != nil {
		return Result{Status: StatusError}, err
	}
	canonical := v.CanonicalURL
	if v.Duplicate() {
		return s.duplicate(v.Existing.ID, canonical), nil
	}

	fb := sub.Fallback.Normalized()
	rec := job.Record{
		UserID:       userID,
		JobURL:       strings.TrimSpace(sub.URL),
		CanonicalURL: canonical,
		Extracted:    fb.Extracted(),
		Stage:        sub.Stage,
		Excitement:   sub.Excitement,
		Status:       job.StatusPending,
		SourceHTML:   sub.HTMLContent,
	}

	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateJob) {
			return s.duplicate(uuid.Nil, canonical), nil
		}
		s.logf("[Ingest] placeholder insert failed user_id=%s url=%s err=%v", userID, canonical, err)
		return Result{Status: StatusError, CanonicalURL: canonical}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	task := Task{
		JobID:    id,
		UserID:   userID,
		FetchURL: canonical,
		HTML:     sub.HTMLContent,
		Fallback: fb,
	}
	if s.enricher == nil || s.dispatcher == nil {
		s.logf("[Ingest] enrichment disabled job_id=%s", id)
	} else if !s.dispatcher.TrySubmit(s.enricher.TaskFunc(task)) {
		s.logf("[Ingest] enrichment queue full, leaving job for sweeper job_id=%s", id)
	}

	s.logf("[Ingest] placeholder saved job_id=%s user_id=%s url=%s", id, userID, canonical)
	return Result{JobID: id, Status: StatusSuccess, Message: MessageSaved, CanonicalURL: canonical}, nil
}

// IngestHTML extracts from the supplied page before saving, so the record is
// written once with the extracted fields and the caller gets them back. A
// page that yields nothing is saved as pending for the sweeper to retry.
func (s *Service) IngestHTML(ctx context.Context, userID uuid.UUID, sub job.Submission) (Result, job.Extracted, error) {
	if s == nil || s.store == nil {
		return Result{Status: StatusError}, job.Extracted{}, fmt.Errorf("%w: nil job store", ErrPersistence)
	}
	if userID == uuid.Nil {
		return Result{Status: StatusError}, job.Extracted{}, fmt.Errorf("%w: missing user", ErrInvalidInput)
	}
	if strings.TrimSpace(sub.HTMLContent) == "" {
		return Result{Status: StatusError}, job.Extracted{}, fmt.Errorf("%w: missing html", ErrInvalidInput)
	}
	if s.coordinator == nil {
		return Result{Status: StatusError}, job.Extracted{}, fmt.Errorf("%w: no coordinator configured", ErrExtraction)
	}

	v, err := s.check(ctx, userID, sub)
	if err != nil {
		return Result{Status: StatusError}, job.Extracted{}, err
	}
	canonical := v.CanonicalURL
	if v.Duplicate() {
		return s.duplicate(v.Existing.ID, canonical), job.Extracted{}, nil
	}

	res, err := s.coordinator.Coordinate(ctx, extraction.Source{HTML: sub.HTMLContent, URL: canonical})
	if err != nil {
		return Result{Status: StatusError, CanonicalURL: canonical}, job.Extracted{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	merged := extraction.Merge(res.Job, sub.Fallback.Normalized().Extracted())

	rec := job.Record{
		UserID:       userID,
		JobURL:       strings.TrimSpace(sub.URL),
		CanonicalURL: canonical,
		Extracted:    merged,
		Stage:        sub.Stage,
		Excitement:   sub.Excitement,
		Status:       job.StatusPending,
		SourceHTML:   sub.HTMLContent,
	}
	if !merged.IsEmpty() {
		now := s.now()
		rec.Status = job.StatusEnriched
		rec.EnrichedAt = &now
		rec.SourceHTML = ""
	}

	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateJob) {
			return s.duplicate(uuid.Nil, canonical), job.Extracted{}, nil
		}
		s.logf("[Ingest] html insert failed user_id=%s url=%s err=%v", userID, canonical, err)
		return Result{Status: StatusError, CanonicalURL: canonical}, job.Extracted{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logf("[Ingest] html ingested job_id=%s user_id=%s url=%s stages=%s status=%s",
		id, userID, canonical, strings.Join(res.Stages, ","), rec.Status)
	return Result{JobID: id, Status: StatusSuccess, Message: MessageIngested, CanonicalURL: canonical}, merged, nil
}

// check runs the duplicate gate. Lookup failures are logged and ignored
// because Insert still enforces uniqueness.
func (s *Service) check(ctx context.Context, userID uuid.UUID, sub job.Submission) (Verdict, error) {
	v, err := s.gate.Check(ctx, userID, sub.URL, sub.CanonicalURL)
	switch {
	case errors.Is(err, ErrInvalidURL):
		return Verdict{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case err != nil:
		s.logf("[Ingest] duplicate check failed, relying on unique constraint user_id=%s url=%s err=%v", userID, v.CanonicalURL, err)
		return Verdict{CanonicalURL: v.CanonicalURL}, nil
	}
	return v, nil
}

// Get returns one of the user's saved jobs.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*job.Record, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("nil job store")
	}
	return s.store.FindByID(ctx, id, userID)
}

func (s *Service) duplicate(id uuid.UUID, canonical string) Result {
	return Result{JobID: id, Status: StatusDuplicate, Message: MessageDuplicate, CanonicalURL: canonical}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
