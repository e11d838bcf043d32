package ingest

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		hint string
		want string
	}{
		{
			name: "current job id",
			raw:  "https://boards.example.com/job?currentJobId=42&ref=email",
			want: "https://boards.example.com/jobs/view/42",
		},
		{
			name: "jk param",
			raw:  "https://www.Board.example/rc/clk?jk=abc123&from=serp&vjs=3",
			want: "https://www.board.example/viewjob?jk=abc123",
		},
		{
			name: "gh_jid keeps path",
			raw:  "https://careers.example.com/open-roles/?gh_jid=4455667&utm_source=x",
			want: "https://careers.example.com/open-roles/?gh_jid=4455667",
		},
		{
			name: "fragment and userinfo dropped",
			raw:  "HTTPS://user:pw@Example.com/jobs/1?a=b#apply",
			want: "https://example.com/jobs/1?a=b",
		},
		{
			name: "hint wins",
			raw:  "https://example.com/jobs/1?trk=1",
			hint: "https://example.com/jobs/1",
			want: "https://example.com/jobs/1",
		},
		{
			name: "invalid hint ignored",
			raw:  "https://boards.example.com/job?currentJobId=7",
			hint: "not a url",
			want: "https://boards.example.com/jobs/view/7",
		},
		{
			name: "malformed id ignored",
			raw:  "https://boards.example.com/job?currentJobId=../../etc",
			want: "https://boards.example.com/job?currentJobId=../../etc",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(tc.raw, tc.hint)
			if err != nil {
				t.Fatalf("Canonicalize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCanonicalize_Rejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com/x", "/jobs/1", "https://"} {
		if _, err := Canonicalize(raw, ""); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("expected ErrInvalidURL for %q, got %v", raw, err)
		}
	}
}

func TestCanonicalize_StableAcrossTrackingParams(t *testing.T) {
	a, err := Canonicalize("https://boards.example.com/jobs/search?currentJobId=99&refId=aaa", "")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	b, err := Canonicalize("https://boards.example.com/jobs/collections?currentJobId=99&trackingId=bbb#top", "")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if a != b {
		t.Fatalf("expected same key, got %q and %q", a, b)
	}
}
