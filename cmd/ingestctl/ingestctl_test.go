package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"job-ingest/internal/database/migration"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCanonicalizeCommand(t *testing.T) {
	out, err := run(t, "canonicalize", "https://boards.example.com/job?currentJobId=42&ref=email")
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if strings.TrimSpace(out) != "https://boards.example.com/jobs/view/42" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExtractCommand_File(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	path := filepath.Join(t.TempDir(), "posting.html")
	page := `<html><body><main>
<h1 class="job-title">Staff Engineer</h1>
<a class="company-name">Hooli</a>
<span class="job-location">Palo Alto, CA</span>
</main></body></html>`
	if err := os.WriteFile(path, []byte(page), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := run(t, "extract", "--file", path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var got extractOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, out)
	}
	if got.Title == nil || *got.Title != "Staff Engineer" || got.Company == nil || *got.Company != "Hooli" {
		t.Fatalf("unexpected extraction: %s", out)
	}
	if !got.Fallback {
		t.Fatalf("without an LLM key the fallback stage should run")
	}
}

func TestExtractCommand_RequiresOneSource(t *testing.T) {
	extractURL, extractFile = "", ""
	if _, err := run(t, "extract"); err == nil {
		t.Fatalf("expected error without --url or --file")
	}
}

func TestExtractCommand_TextOnly(t *testing.T) {
	defer func() { extractTextOnly, extractFile = false, "" }()
	path := filepath.Join(t.TempDir(), "posting.html")
	page := `<html><body><nav>Sign in</nav><main><h1>Data Engineer</h1><p>Build pipelines.</p></main></body></html>`
	if err := os.WriteFile(path, []byte(page), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := run(t, "extract", "--file", path, "--text-only")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(out, "Data Engineer") || !strings.Contains(out, "Build pipelines.") {
		t.Fatalf("expected posting text, got %q", out)
	}
	if strings.Contains(out, "Sign in") {
		t.Fatalf("expected navigation to be stripped, got %q", out)
	}
}

func TestPrintMigrationStates(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printMigrationStates(&out, []migration.State{
		{Migration: migration.Migration{Version: 1, Name: "create_job_records"}, AppliedAt: &at},
		{Migration: migration.Migration{Version: 2, Name: "add_source_html"}},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.Contains(lines[0], "create_job_records") || !strings.HasSuffix(lines[0], "2024-05-01T12:00:00Z") {
		t.Fatalf("unexpected applied line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "V2") || !strings.HasSuffix(lines[1], "pending") {
		t.Fatalf("unexpected pending line %q", lines[1])
	}
}
