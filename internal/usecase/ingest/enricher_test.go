package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"job-ingest/internal/domain/job"
	"job-ingest/internal/extraction"
	"job-ingest/internal/infrastructure/llm"
	"job-ingest/internal/repository"

	"github.com/google/uuid"
)

type stubCoordinator struct {
	res   extraction.Result
	err   error
	calls int
	last  extraction.Source
}

func (c *stubCoordinator) Coordinate(_ context.Context, src extraction.Source) (extraction.Result, error) {
	c.calls++
	c.last = src
	return c.res, c.err
}

type stubFetcher struct {
	html  string
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, _ string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.html, f.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	recs []job.Record
}

func (n *recordingNotifier) JobEnriched(rec job.Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recs = append(n.recs, rec)
}

// blockingProvider never answers before its context ends.
type blockingProvider struct{}

func (blockingProvider) Complete(ctx context.Context, _ string, _ llm.CompletionOptions) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

const pageHTML = `<html><body>
<header><h1>Boards</h1></header>
<main>
  <h1 class="job-title">Site Reliability Engineer</h1>
  <a class="company-name" href="/c/initech">Initech</a>
  <span class="job-location">Austin, TX</span>
  <div class="job-description">
    <p>Keep the ingestion fleet healthy and on call rotations humane.</p>
    <p>Salary range is $150,000 - $170,000 per year.</p>
  </div>
</main>
</body></html>`

func insertPending(t *testing.T, store repository.JobStore, userID uuid.UUID, fields job.Fields) uuid.UUID {
	t.Helper()
	id, err := store.Insert(context.Background(), job.Record{
		UserID:       userID,
		JobURL:       "https://example.com/jobs/1",
		CanonicalURL: "https://example.com/jobs/1",
		Extracted:    fields.Extracted(),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return id
}

func TestEnrich_MergesExtractionWithFallback(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()
	longDesc := "A long description captured by the browser extension, covering the team, the stack and the interview loop in detail."
	fb := job.Fields{Title: strp("Eng"), Company: strp("Initech"), Description: strp(longDesc)}
	id := insertPending(t, store, userID, fb)

	coord := &stubCoordinator{res: extraction.Result{Job: job.Extracted{
		Title:       strp("Senior Engineer"),
		Location:    strp("Remote"),
		Description: strp("Short blurb."),
		Skills:      []string{"Go", "Postgres"},
		RemoteWork:  true,
	}}}
	n := &recordingNotifier{}
	e := NewEnricher(store, &stubFetcher{}, coord, n, time.Second, discardLogger())

	err := e.Enrich(context.Background(), Task{JobID: id, UserID: userID, FetchURL: "https://example.com/jobs/1", HTML: "<p>page</p>", Fallback: fb})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if coord.last.HTML != "<p>page</p>" {
		t.Fatalf("client html should be used, got %q", coord.last.HTML)
	}

	rec, err := store.FindByID(context.Background(), id, userID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if rec.Status != job.StatusEnriched || rec.EnrichedAt == nil {
		t.Fatalf("expected enriched record, got %+v", rec)
	}
	if job.Deref(rec.Title) != "Senior Engineer" {
		t.Fatalf("extracted title should win, got %q", job.Deref(rec.Title))
	}
	if job.Deref(rec.Company) != "Initech" || job.Deref(rec.Location) != "Remote" {
		t.Fatalf("gaps not filled: company=%q location=%q", job.Deref(rec.Company), job.Deref(rec.Location))
	}
	if job.Deref(rec.Description) != longDesc {
		t.Fatalf("longer description should win, got %q", job.Deref(rec.Description))
	}
	if !rec.RemoteWork || len(rec.Skills) != 2 || rec.EnrichmentAttempts != 1 {
		t.Fatalf("unexpected enrichment: %+v", rec)
	}
	if len(n.recs) != 1 || n.recs[0].ID != id {
		t.Fatalf("expected one notification for %s, got %+v", id, n.recs)
	}
}

func TestEnrich_FetchesWhenNoHTML(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()
	id := insertPending(t, store, userID, job.Fields{})

	f := &stubFetcher{html: pageHTML}
	coord := extraction.NewDefaultCoordinator(nil, extraction.Config{}, discardLogger())
	e := NewEnricher(store, f, coord, nil, time.Second, discardLogger())

	if err := e.Enrich(context.Background(), Task{JobID: id, UserID: userID, FetchURL: "https://example.com/jobs/1"}); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("expected one fetch, got %d", f.calls)
	}

	rec, err := store.FindByID(context.Background(), id, userID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if job.Deref(rec.Title) != "Site Reliability Engineer" || job.Deref(rec.Company) != "Initech" {
		t.Fatalf("unexpected fields: title=%q company=%q", job.Deref(rec.Title), job.Deref(rec.Company))
	}
	if !strings.Contains(job.Deref(rec.Salary), "150,000") {
		t.Fatalf("expected salary from page text, got %q", job.Deref(rec.Salary))
	}
}

func TestEnrich_FetchFailureLeavesRecordPending(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()
	id := insertPending(t, store, userID, job.Fields{Title: strp("Placeholder Title")})

	coord := &stubCoordinator{}
	e := NewEnricher(store, &stubFetcher{err: errors.New("403 forbidden")}, coord, nil, time.Second, discardLogger())

	if err := e.Enrich(context.Background(), Task{JobID: id, UserID: userID, FetchURL: "https://example.com/jobs/1"}); err == nil {
		t.Fatalf("expected fetch error")
	}
	if coord.calls != 0 {
		t.Fatalf("extraction must not run without a page")
	}

	rec, err := store.FindByID(context.Background(), id, userID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if rec.Status != job.StatusPending || job.Deref(rec.Title) != "Placeholder Title" || rec.EnrichedAt != nil {
		t.Fatalf("record should be untouched, got %+v", rec)
	}
	if rec.EnrichmentAttempts != 1 {
		t.Fatalf("attempt should be counted, got %d", rec.EnrichmentAttempts)
	}
}

func TestEnrich_NothingExtractedStaysPending(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()
	id := insertPending(t, store, userID, job.Fields{})

	e := NewEnricher(store, nil, &stubCoordinator{}, nil, time.Second, discardLogger())
	err := e.Enrich(context.Background(), Task{JobID: id, UserID: userID, HTML: "<html></html>"})
	if !errors.Is(err, ErrNothingExtracted) {
		t.Fatalf("expected ErrNothingExtracted, got %v", err)
	}
	rec, _ := store.FindByID(context.Background(), id, userID)
	if rec.Status != job.StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
}

func TestEnrich_SemanticTimeoutKeepsStructuralFields(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()
	id := insertPending(t, store, userID, job.Fields{})

	coord := extraction.NewDefaultCoordinator(blockingProvider{}, extraction.Config{
		Semantic: extraction.SemanticConfig{Timeout: 20 * time.Millisecond},
	}, discardLogger())
	e := NewEnricher(store, nil, coord, nil, time.Second, discardLogger())

	if err := e.Enrich(context.Background(), Task{JobID: id, UserID: userID, HTML: pageHTML}); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	rec, _ := store.FindByID(context.Background(), id, userID)
	if rec.Status != job.StatusEnriched || job.Deref(rec.Location) != "Austin, TX" {
		t.Fatalf("expected structural fields to survive the timeout, got %+v", rec)
	}
}

func TestEnrich_RecoversPanic(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()
	id := insertPending(t, store, userID, job.Fields{})

	e := NewEnricher(store, nil, panickingCoordinator{}, nil, time.Second, discardLogger())
	err := e.Enrich(context.Background(), Task{JobID: id, UserID: userID, HTML: "<p>x</p>"})
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("expected panic to become an error, got %v", err)
	}
	if task := e.TaskFunc(Task{JobID: id, UserID: userID, HTML: "<p>x</p>"}); task(context.Background()) != nil {
		t.Fatalf("task func must swallow enrichment errors")
	}
}

type panickingCoordinator struct{}

func (panickingCoordinator) Coordinate(context.Context, extraction.Source) (extraction.Result, error) {
	panic("selector table corrupted")
}
