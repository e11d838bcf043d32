package extraction

import (
	"context"
	"unicode/utf8"

	"job-ingest/internal/domain/job"

	"github.com/PuerkitoBio/goquery"
)

type fieldSelectors struct {
	selectors []string
	minLen    int
	block     bool
}

// Selector lists are ordered from the most site-specific to the most generic.
var (
	titleSelectors = fieldSelectors{
		minLen: 3,
		selectors: []string{
			`h1[class*="job-title"]`,
			`h1[class*="jobs-unified-top-card__job-title"]`,
			`h1[class*="jobs-details-top-card__job-title"]`,
			`[data-testid*="job-title"]`,
			`.job-title`,
			`.jobs-unified-top-card__job-title`,
			`.jobs-details-top-card__job-title`,
			`h1`,
		},
	}

	companySelectors = fieldSelectors{
		minLen: 1,
		selectors: []string{
			`[data-testid*="company"]`,
			`.company-name`,
			`.jobs-unified-top-card__company-name`,
			`.jobs-details-top-card__company-name`,
			`a[class*="company"]`,
		},
	}

	locationSelectors = fieldSelectors{
		minLen: 2,
		selectors: []string{
			`[data-testid*="location"]`,
			`.job-location`,
			`.jobs-unified-top-card__bullet`,
			`.jobs-details-top-card__bullet`,
			`span[class*="location"]`,
		},
	}

	salarySelectors = fieldSelectors{
		minLen: 3,
		selectors: []string{
			`[data-testid*="salary"]`,
			`[data-testid*="compensation"]`,
			`.salary`,
			`.compensation`,
			`.jobs-unified-top-card__salary`,
			`.jobs-details-top-card__salary`,
			`.job-details-jobs-unified-top-card__salary`,
			`.job-salary`,
			`.pay-range`,
			`.salary-range`,
			`.compensation-range`,
			`.job-pay`,
			`.wage`,
			`.remuneration`,
			`.job-details__salary`,
			`.jobs-unified-top-card__primary-description`,
			`.jobs-unified-top-card__subtitle-primary-grouping`,
			`.jobs-details__main-content .salary`,
			`.jobs-details__main-content .compensation`,
			`span[class*="salary"]`,
			`div[class*="salary"]`,
			`span[class*="compensation"]`,
			`div[class*="compensation"]`,
			`span[class*="pay"]`,
			`div[class*="pay"]`,
			`span[class*="wage"]`,
			`div[class*="wage"]`,
		},
	}

	descriptionSelectors = fieldSelectors{
		minLen: 50,
		block:  true,
		selectors: []string{
			`.jobs-description-content__text`,
			`.jobs-box__html-content`,
			`.jobs-details__main-content`,
			`[data-testid*="job-details"]`,
			`.job-description`,
			`.description`,
		},
	}
)

type SelectorExtractor struct{}

func NewSelectorExtractor() *SelectorExtractor {
	return &SelectorExtractor{}
}

func (e *SelectorExtractor) Name() string { return "selector" }

func (e *SelectorExtractor) Extract(_ context.Context, in Input) (job.Extracted, error) {
	doc := in.Doc
	if doc == nil {
		d, err := parseCleaned(in.RawHTML)
		if err != nil {
			return job.Extracted{}, nil
		}
		doc = d
	}
	return extractSelectors(doc), nil
}

// ExtractSelectors runs the selector chains over rawHTML after stripping
// non-content nodes.
func ExtractSelectors(rawHTML string) job.Extracted {
	doc, err := parseCleaned(rawHTML)
	if err != nil {
		return job.Extracted{}
	}
	return extractSelectors(doc)
}

func extractSelectors(doc *goquery.Document) job.Extracted {
	return job.Extracted{
		Title:       firstMatch(doc, titleSelectors),
		Company:     firstMatch(doc, companySelectors),
		Location:    firstMatch(doc, locationSelectors),
		Salary:      firstMatch(doc, salarySelectors),
		Description: firstMatch(doc, descriptionSelectors),
	}
}

// firstMatch only looks at the first element each selector hits. Short text
// on that element means a decorative match, so the next selector is tried.
func firstMatch(doc *goquery.Document, fs fieldSelectors) *string {
	for _, sel := range fs.selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		var text string
		if fs.block {
			text = blockText(s)
		} else {
			text = inlineText(s)
		}
		if utf8.RuneCountInString(text) <= fs.minLen {
			continue
		}
		if v := job.Text(text); v != nil {
			return v
		}
	}
	return nil
}
