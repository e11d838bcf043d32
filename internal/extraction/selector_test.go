package extraction

import (
	"context"
	"strings"
	"testing"

	"job-ingest/internal/domain/job"
)

const postingHTML = `<html><head><style>.x{color:red}</style><script>var title = "not this";</script></head>
<body>
<header><h1>JobBoard</h1></header>
<nav>Home | Jobs | Login</nav>
<main>
  <h1 class="top-card job-title">Backend Engineer</h1>
  <a class="company-name" href="/c/acme">Acme</a>
  <span class="job-location">Remote, US</span>
  <div class="job-description">
    <p>We are hiring a backend engineer to build ingestion pipelines.</p>
    <p>Compensation is $120,000 - $140,000 per year.</p>
  </div>
</main>
<footer>Copyright</footer>
</body></html>`

func TestExtractSelectors_Posting(t *testing.T) {
	got := ExtractSelectors(postingHTML)

	if job.Deref(got.Title) != "Backend Engineer" {
		t.Fatalf("unexpected title: %q", job.Deref(got.Title))
	}
	if job.Deref(got.Company) != "Acme" {
		t.Fatalf("unexpected company: %q", job.Deref(got.Company))
	}
	if job.Deref(got.Location) != "Remote, US" {
		t.Fatalf("unexpected location: %q", job.Deref(got.Location))
	}
	if got.Salary != nil {
		t.Fatalf("expected no salary from selectors, got %q", *got.Salary)
	}
	desc := job.Deref(got.Description)
	if !strings.Contains(desc, "ingestion pipelines.\nCompensation") {
		t.Fatalf("expected newline separated description, got %q", desc)
	}
}

func TestExtractSelectors_GenericHeadingIgnoresChrome(t *testing.T) {
	html := `<body><header><h1>Site Name</h1></header><nav><h1>Menu</h1></nav><main><h1>Data Engineer</h1></main></body>`
	got := ExtractSelectors(html)
	if job.Deref(got.Title) != "Data Engineer" {
		t.Fatalf("expected heading from main, got %q", job.Deref(got.Title))
	}
}

func TestExtractSelectors_ShortTextRejected(t *testing.T) {
	html := `<body><h1 class="job-title">QA</h1><div class="description">too short</div></body>`
	got := ExtractSelectors(html)
	if got.Title != nil {
		t.Fatalf("expected nil title for short text, got %q", *got.Title)
	}
	if got.Description != nil {
		t.Fatalf("expected nil description for short text, got %q", *got.Description)
	}
}

func TestExtractSelectors_SentinelRejected(t *testing.T) {
	html := `<body><h1 class="job-title">Unknown Job Title</h1><span class="job-location">Lisbon</span></body>`
	got := ExtractSelectors(html)
	if got.Title != nil {
		t.Fatalf("expected sentinel title to be dropped, got %q", *got.Title)
	}
	if job.Deref(got.Location) != "Lisbon" {
		t.Fatalf("unexpected location: %q", job.Deref(got.Location))
	}
}

func TestSelectorExtractor_NeverFails(t *testing.T) {
	e := NewSelectorExtractor()
	got, err := e.Extract(context.Background(), Input{RawHTML: ""})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !got.IsEmpty() {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestCleanText_TruncatesAndDropsChrome(t *testing.T) {
	text, err := CleanText(postingHTML, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(text, "JobBoard") || strings.Contains(text, "Login") || strings.Contains(text, "not this") {
		t.Fatalf("expected chrome to be stripped, got %q", text)
	}
	if !strings.HasPrefix(text, "Backend Engineer\nAcme") {
		t.Fatalf("unexpected text start: %q", text)
	}

	short, err := CleanText(postingHTML, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if short != "Backend En" {
		t.Fatalf("expected head of text, got %q", short)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	got := truncate("héllo", 2)
	if got != "h" {
		t.Fatalf("expected cut before multibyte rune, got %q", got)
	}
}
