package extraction

import (
	"context"
	"errors"

	"job-ingest/internal/domain/job"

	"github.com/PuerkitoBio/goquery"
)

var ErrExtractionFailed = errors.New("extraction failed")

// Input is what every stage of the chain sees. Doc and Text are derived from
// RawHTML once by the Coordinator; Hints holds the merged result of the stages
// that already ran.
type Input struct {
	RawHTML   string
	Doc       *goquery.Document
	Text      string
	SourceURL string
	Hints     job.Extracted
}

type Extractor interface {
	Name() string
	Extract(ctx context.Context, in Input) (job.Extracted, error)
}
