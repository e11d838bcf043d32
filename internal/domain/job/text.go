package job

import "strings"

const (
	UnknownTitle    = "Unknown Job Title"
	UnknownCompany  = "Unknown Company"
	UnknownLocation = "Unknown Location"
)

// Text trims s and returns nil when nothing meaningful is left, including the
// placeholder strings LLMs and older clients use for "absent".
func Text(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || IsSentinel(s) {
		return nil
	}
	return &s
}

// IsSentinel reports whether s is one of the placeholder strings used for an
// absent value. Matching is exact, so values like "NA" or "Unknown Worlds"
// survive.
func IsSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unknown", "unknown job title", "unknown company", "unknown location",
		"unknown salary", "not specified", "n/a", "null":
		return true
	}
	return false
}

func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func OrDefault(p *string, def string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return def
	}
	return *p
}

// Longer returns whichever value has more text, preferring a when equal.
func Longer(a, b *string) *string {
	if b == nil {
		return a
	}
	if a == nil {
		return b
	}
	if len(strings.TrimSpace(*b)) > len(strings.TrimSpace(*a)) {
		return b
	}
	return a
}

func normalize(p *string) *string {
	if p == nil {
		return nil
	}
	return Text(*p)
}

// Normalized drops blank and placeholder values.
func (f Fields) Normalized() Fields {
	return Fields{
		Title:       normalize(f.Title),
		Company:     normalize(f.Company),
		Location:    normalize(f.Location),
		Salary:      normalize(f.Salary),
		Description: normalize(f.Description),
	}
}

func (f Fields) Extracted() Extracted {
	return Extracted{
		Title:       f.Title,
		Company:     f.Company,
		Location:    f.Location,
		Salary:      f.Salary,
		Description: f.Description,
	}
}
