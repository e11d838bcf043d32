package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"job-ingest/internal/domain/job"
)

// ParseCompletion maps the first balanced JSON object in a model completion
// that decodes onto job.Extracted. Brace runs in surrounding prose that are
// not JSON are skipped.
func ParseCompletion(raw string) (job.Extracted, error) {
	var lastErr error
	for _, obj := range jsonCandidates(raw) {
		var r rawExtraction
		if err := json.Unmarshal([]byte(obj), &r); err != nil {
			lastErr = err
			continue
		}
		return r.toExtracted(), nil
	}
	if lastErr != nil {
		return job.Extracted{}, fmt.Errorf("%w: decode completion: %w", ErrExtractionFailed, lastErr)
	}
	return job.Extracted{}, fmt.Errorf("%w: no JSON object in completion", ErrExtractionFailed)
}

type rawExtraction struct {
	JobTitle        looseString `json:"job_title"`
	Company         looseString `json:"company"`
	Location        looseString `json:"location"`
	Salary          looseString `json:"salary"`
	Description     looseString `json:"description"`
	JobType         looseString `json:"job_type"`
	ExperienceLevel looseString `json:"experience_level"`
	RemoteWork      looseBool   `json:"remote_work"`
	Benefits        looseList   `json:"benefits"`
	Requirements    looseList   `json:"requirements"`
	Skills          looseList   `json:"skills"`
}

func (r rawExtraction) toExtracted() job.Extracted {
	return job.Extracted{
		Title:           job.Text(string(r.JobTitle)),
		Company:         job.Text(string(r.Company)),
		Location:        job.Text(string(r.Location)),
		Salary:          job.Text(string(r.Salary)),
		Description:     job.Text(string(r.Description)),
		JobType:         job.Text(string(r.JobType)),
		ExperienceLevel: job.Text(string(r.ExperienceLevel)),
		RemoteWork:      bool(r.RemoteWork),
		Benefits:        []string(r.Benefits),
		Requirements:    []string(r.Requirements),
		Skills:          []string(r.Skills),
	}
}

// jsonCandidates returns every balanced {...} run in s, in order of its
// opening brace. Braces inside string literals are ignored.
func jsonCandidates(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if end, ok := matchBrace(s, i); ok {
			out = append(out, s[i:end+1])
		}
	}
	return out
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*l = ""
	case string:
		*l = looseString(t)
	case float64:
		*l = looseString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*l = looseString(strconv.FormatBool(t))
	default:
		*l = ""
	}
	return nil
}

type looseBool bool

func (l *looseBool) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*l = looseBool(t)
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		*l = looseBool(s == "true" || s == "yes" || s == "remote")
	default:
		*l = false
	}
	return nil
}

type looseList []string

func (l *looseList) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	out := make([]string, 0)
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				continue
			}
			if p := job.Text(s); p != nil {
				out = append(out, *p)
			}
		}
	case string:
		if p := job.Text(t); p != nil {
			out = append(out, *p)
		}
	}
	*l = out
	return nil
}
