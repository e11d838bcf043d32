package extraction

import (
	"context"
	"regexp"
	"strings"

	"job-ingest/internal/domain/job"

	"golang.org/x/net/html"
)

// Basic extraction runs regular expressions over the raw markup. It is the
// last resort when the semantic stage is unavailable; any <h1> on the page
// ends up as the title, which is best-effort by nature.
var (
	basicTitlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<h1[^>]*class="[^"]*job-title[^"]*"[^>]*>(.*?)</h1>`),
		regexp.MustCompile(`(?is)<h1[^>]*class="[^"]*jobs-unified-top-card__job-title[^"]*"[^>]*>(.*?)</h1>`),
		regexp.MustCompile(`(?is)<h1[^>]*class="[^"]*jobs-details-top-card__job-title[^"]*"[^>]*>(.*?)</h1>`),
		regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`),
	}

	basicCompanyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<a[^>]*class="[^"]*company-name[^"]*"[^>]*>(.*?)</a>`),
		regexp.MustCompile(`(?is)<a[^>]*class="[^"]*jobs-unified-top-card__company-name[^"]*"[^>]*>(.*?)</a>`),
		regexp.MustCompile(`(?is)<a[^>]*class="[^"]*jobs-details-top-card__company-name[^"]*"[^>]*>(.*?)</a>`),
	}

	basicLocationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<span[^>]*class="[^"]*location[^"]*"[^>]*>(.*?)</span>`),
		regexp.MustCompile(`(?is)<span[^>]*class="[^"]*jobs-unified-top-card__bullet[^"]*"[^>]*>(.*?)</span>`),
		regexp.MustCompile(`(?is)<span[^>]*class="[^"]*jobs-details-top-card__bullet[^"]*"[^>]*>(.*?)</span>`),
	}

	tagRe = regexp.MustCompile(`<[^>]+>`)
)

type BasicExtractor struct{}

func NewBasicExtractor() *BasicExtractor {
	return &BasicExtractor{}
}

func (e *BasicExtractor) Name() string { return "basic" }

func (e *BasicExtractor) Extract(_ context.Context, in Input) (job.Extracted, error) {
	return ExtractBasic(in.RawHTML), nil
}

// ExtractBasic only ever yields title, company and location.
func ExtractBasic(rawHTML string) job.Extracted {
	return job.Extracted{
		Title:    firstPattern(rawHTML, basicTitlePatterns),
		Company:  firstPattern(rawHTML, basicCompanyPatterns),
		Location: firstPattern(rawHTML, basicLocationPatterns),
	}
}

func firstPattern(rawHTML string, patterns []*regexp.Regexp) *string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(rawHTML)
		if len(m) < 2 {
			continue
		}
		if v := job.Text(stripTags(m[1])); v != nil {
			return v
		}
	}
	return nil
}

func stripTags(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
