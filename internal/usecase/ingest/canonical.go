package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidURL = errors.New("invalid job url")

var jobIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// idRule rebuilds a short canonical URL from a query parameter that carries
// a stable posting id. Boards append many tracking params around it.
type idRule struct {
	param string
	build func(u *url.URL, id string) string
}

var idRules = []idRule{
	{param: "currentJobId", build: func(u *url.URL, id string) string {
		return fmt.Sprintf("%s://%s/jobs/view/%s", u.Scheme, u.Host, id)
	}},
	{param: "jk", build: func(u *url.URL, id string) string {
		return fmt.Sprintf("%s://%s/viewjob?jk=%s", u.Scheme, u.Host, id)
	}},
	{param: "gh_jid", build: func(u *url.URL, id string) string {
		return fmt.Sprintf("%s://%s%s?gh_jid=%s", u.Scheme, u.Host, u.EscapedPath(), id)
	}},
}

// Canonicalize returns the deduplication key for rawURL. A valid hint wins;
// otherwise a known id parameter is used; otherwise the URL minus its
// fragment.
func Canonicalize(rawURL, hint string) (string, error) {
	u, err := parseJobURL(rawURL)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(hint) != "" {
		if h, err := parseJobURL(hint); err == nil {
			return h.String(), nil
		}
	}

	q := u.Query()
	for _, rule := range idRules {
		id := strings.TrimSpace(q.Get(rule.param))
		if jobIDRe.MatchString(id) {
			return rule.build(u, id), nil
		}
	}
	return u.String(), nil
}

func parseJobURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u, nil
}
