package extraction

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"job-ingest/internal/domain/job"
	"job-ingest/internal/infrastructure/llm"
)

//go:embed prompts/job_extraction.md
var jobExtractionPromptRaw string

var jobExtractionTemplate = template.Must(template.New("job_extraction").Parse(jobExtractionPromptRaw))

const (
	DefaultSemanticMaxChars    = 20000
	DefaultSemanticTimeout     = 30 * time.Second
	DefaultSemanticMaxTokens   = 2000
	DefaultSemanticTemperature = 0.1

	hintDescriptionChars = 300
)

type SemanticConfig struct {
	MaxChars    int
	Timeout     time.Duration
	MaxTokens   int
	// Temperature is nil for the default. Zero is a valid setting.
	Temperature *float64
}

func (c SemanticConfig) withDefaults() SemanticConfig {
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultSemanticMaxChars
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultSemanticTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultSemanticMaxTokens
	}
	if c.Temperature == nil || *c.Temperature < 0 {
		t := DefaultSemanticTemperature
		c.Temperature = &t
	}
	return c
}

type SemanticExtractor struct {
	provider llm.Provider
	cfg      SemanticConfig
	logger   *log.Logger
}

func NewSemanticExtractor(provider llm.Provider, cfg SemanticConfig, logger *log.Logger) *SemanticExtractor {
	return &SemanticExtractor{provider: provider, cfg: cfg.withDefaults(), logger: logger}
}

func (e *SemanticExtractor) Name() string { return "semantic" }

func (e *SemanticExtractor) Extract(ctx context.Context, in Input) (job.Extracted, error) {
	if e == nil || e.provider == nil {
		return job.Extracted{}, fmt.Errorf("%w: no llm provider configured", ErrExtractionFailed)
	}

	prompt, err := e.render(in)
	if err != nil {
		return job.Extracted{}, fmt.Errorf("%w: render prompt: %w", ErrExtractionFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.provider.Complete(callCtx, prompt, llm.CompletionOptions{
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: *e.cfg.Temperature,
	})
	if err != nil {
		return job.Extracted{}, fmt.Errorf("%w: llm complete: %w", ErrExtractionFailed, err)
	}
	if e.logger != nil {
		e.logger.Printf("[Extract] semantic completion url=%s prompt_chars=%d latency=%s", in.SourceURL, len(prompt), time.Since(start))
	}

	return ParseCompletion(raw)
}

type promptData struct {
	Title       string
	Company     string
	Location    string
	Salary      string
	Description string
	Content     string
	SourceURL   string
}

func (e *SemanticExtractor) render(in Input) (string, error) {
	h := in.Hints
	desc := job.Deref(h.Description)
	if len(desc) > hintDescriptionChars {
		desc = truncate(desc, hintDescriptionChars) + "..."
	}

	var b bytes.Buffer
	err := jobExtractionTemplate.Execute(&b, promptData{
		Title:       job.OrDefault(h.Title, job.UnknownTitle),
		Company:     job.OrDefault(h.Company, job.UnknownCompany),
		Location:    job.OrDefault(h.Location, job.UnknownLocation),
		Salary:      job.OrDefault(h.Salary, "Not specified"),
		Description: desc,
		Content:     truncate(hintLines(h)+"\n\n"+in.Text, e.cfg.MaxChars),
		SourceURL:   in.SourceURL,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func hintLines(h job.Extracted) string {
	lines := make([]string, 0, 5)
	add := func(label string, v *string) {
		if v != nil {
			lines = append(lines, label+": "+*v)
		}
	}
	add("Job Title", h.Title)
	add("Company", h.Company)
	add("Location", h.Location)
	add("Salary", h.Salary)
	if h.Description != nil {
		lines = append(lines, "Description: "+truncate(*h.Description, 200)+"...")
	}
	return strings.Join(lines, "\n")
}
