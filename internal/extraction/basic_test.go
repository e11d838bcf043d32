package extraction

import (
	"testing"

	"job-ingest/internal/domain/job"
)

func TestExtractBasic(t *testing.T) {
	html := `<div>
<h1 class="top">  Staff &amp; Principal <em>Engineer</em></h1>
<a class="link company-name" href="#">Acme Corp</a>
<span class="job-location">Berlin</span>
</div>`

	got := ExtractBasic(html)
	if job.Deref(got.Title) != "Staff & Principal Engineer" {
		t.Fatalf("unexpected title: %q", job.Deref(got.Title))
	}
	if job.Deref(got.Company) != "Acme Corp" {
		t.Fatalf("unexpected company: %q", job.Deref(got.Company))
	}
	if job.Deref(got.Location) != "Berlin" {
		t.Fatalf("unexpected location: %q", job.Deref(got.Location))
	}
	if got.Description != nil || got.Salary != nil {
		t.Fatalf("basic extraction must not yield description or salary")
	}
}

func TestExtractBasic_NothingFound(t *testing.T) {
	got := ExtractBasic(`<p>Please sign in</p>`)
	if !got.IsEmpty() {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
