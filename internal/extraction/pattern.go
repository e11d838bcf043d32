package extraction

import (
	"context"
	"regexp"
	"strings"

	"job-ingest/internal/domain/job"
)

var salaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?\s*(?:-\s*\$?[\d,]+(?:\.\d{2})?)?\s*(?:per\s+(?:year|month|hour|week))?`),
	regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?\s*(?:to\s*\$?[\d,]+(?:\.\d{2})?)?\s*(?:per\s+(?:year|month|hour|week))?`),
	regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?\s*(?:-\s*\$?[\d,]+(?:\.\d{2})?)?\s*(?:annually|monthly|hourly|weekly)`),
	regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?\s*(?:to\s*\$?[\d,]+(?:\.\d{2})?)?\s*(?:annually|monthly|hourly|weekly)`),
	regexp.MustCompile(`(?i)(?:salary|pay|compensation|wage):\s*\$?[\d,]+(?:\.\d{2})?(?:\s*-\s*\$?[\d,]+(?:\.\d{2})?)?`),
	regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?\s*k\s*(?:per\s+(?:year|month|hour|week))?`),
	regexp.MustCompile(`(?i)\$[\d,]+(?:\.\d{2})?\s*k\s*(?:annually|monthly|hourly|weekly)`),
}

var salaryKeywords = []string{"per", "annually", "monthly", "hourly", "weekly", "k"}

// ExtractSalary returns the first pattern match that looks like pay rather
// than an arbitrary dollar amount.
func ExtractSalary(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, re := range salaryPatterns {
		for _, m := range re.FindAllString(text, -1) {
			if !strings.Contains(m, "$") || !hasSalaryKeyword(m) {
				continue
			}
			if v := job.Text(m); v != nil {
				return v
			}
		}
	}
	return nil
}

func hasSalaryKeyword(s string) bool {
	s = strings.ToLower(s)
	for _, k := range salaryKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

type PatternExtractor struct{}

func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

func (e *PatternExtractor) Name() string { return "pattern" }

func (e *PatternExtractor) Extract(_ context.Context, in Input) (job.Extracted, error) {
	if in.Hints.Salary != nil {
		return job.Extracted{}, nil
	}
	return job.Extracted{Salary: ExtractSalary(in.Text)}, nil
}
