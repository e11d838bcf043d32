package extraction

import (
	"strings"

	"job-ingest/internal/domain/job"
)

// Merge folds next into prior. Short fields keep the earlier value, the
// description keeps the longer one, and a populated field is never cleared.
func Merge(prior, next job.Extracted) job.Extracted {
	return job.Extracted{
		Title:           firstNonEmpty(prior.Title, next.Title),
		Company:         firstNonEmpty(prior.Company, next.Company),
		Location:        firstNonEmpty(prior.Location, next.Location),
		Salary:          firstNonEmpty(prior.Salary, next.Salary),
		Description:     job.Longer(nonEmpty(prior.Description), nonEmpty(next.Description)),
		JobType:         firstNonEmpty(prior.JobType, next.JobType),
		ExperienceLevel: firstNonEmpty(prior.ExperienceLevel, next.ExperienceLevel),
		RemoteWork:      prior.RemoteWork || next.RemoteWork,
		Benefits:        union(prior.Benefits, next.Benefits),
		Requirements:    union(prior.Requirements, next.Requirements),
		Skills:          union(prior.Skills, next.Skills),
	}
}

func nonEmpty(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return p
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if nonEmpty(v) != nil {
			return v
		}
	}
	return nil
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			key := strings.ToLower(v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
