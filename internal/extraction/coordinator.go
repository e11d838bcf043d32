package extraction

import (
	"context"
	"log"
	"time"

	"job-ingest/internal/domain/job"
	"job-ingest/internal/infrastructure/llm"
)

const DefaultMaxTextChars = 20000

type Config struct {
	MaxTextChars int
	Semantic     SemanticConfig
}

type Source struct {
	HTML string
	URL  string
}

type Result struct {
	Job      job.Extracted
	Stages   []string
	Fallback bool
}

// Coordinator runs an ordered chain of extractors, each one seeing what the
// earlier ones found, and falls back to a single last-resort extractor when
// any stage in the chain fails.
type Coordinator struct {
	chain    []Extractor
	fallback Extractor
	maxText  int
	logger   *log.Logger
}

func NewCoordinator(chain []Extractor, fallback Extractor, maxText int, logger *log.Logger) *Coordinator {
	if maxText <= 0 {
		maxText = DefaultMaxTextChars
	}
	return &Coordinator{chain: chain, fallback: fallback, maxText: maxText, logger: logger}
}

// NewDefaultCoordinator wires selector, pattern and semantic extraction with
// the regex extractor as fallback. A nil provider makes the semantic stage
// fail every time, so the fallback always runs.
func NewDefaultCoordinator(provider llm.Provider, cfg Config, logger *log.Logger) *Coordinator {
	return NewCoordinator(
		[]Extractor{
			NewSelectorExtractor(),
			NewPatternExtractor(),
			NewSemanticExtractor(provider, cfg.Semantic, logger),
		},
		NewBasicExtractor(),
		cfg.MaxTextChars,
		logger,
	)
}

// Coordinate only returns an error when ctx is done.
func (c *Coordinator) Coordinate(ctx context.Context, src Source) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	in := Input{RawHTML: src.HTML, SourceURL: src.URL}
	if doc, err := parseCleaned(src.HTML); err != nil {
		c.logf("[Extract] parse failed url=%s err=%v", src.URL, err)
	} else {
		in.Doc = doc
		in.Text = truncate(blockText(contentRoot(doc)), c.maxText)
	}

	var res Result
	failed := false
	for _, stage := range c.chain {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		in.Hints = res.Job
		out, err := stage.Extract(ctx, in)
		if err != nil {
			failed = true
			c.logf("[Extract] stage failed stage=%s url=%s err=%v", stage.Name(), src.URL, err)
			continue
		}
		if out.IsEmpty() {
			continue
		}
		res.Job = Merge(res.Job, out)
		res.Stages = append(res.Stages, stage.Name())
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if failed && c.fallback != nil {
		in.Hints = res.Job
		out, err := c.fallback.Extract(ctx, in)
		if err != nil {
			c.logf("[Extract] fallback failed stage=%s url=%s err=%v", c.fallback.Name(), src.URL, err)
		} else {
			res.Fallback = true
			if !out.IsEmpty() {
				res.Job = Merge(res.Job, out)
				res.Stages = append(res.Stages, c.fallback.Name())
			}
		}
	}

	c.logf("[Extract] done url=%s stages=%v fallback=%t duration=%s", src.URL, res.Stages, res.Fallback, time.Since(start))
	return res, nil
}

func (c *Coordinator) logf(format string, args ...any) {
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}
