package middleware

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestIsAIPath(t *testing.T) {
	cases := map[string]bool{
		"/jobs/ingest":             true,
		"/api/v1/jobs/ingest":      true,
		"/jobs/ingest-html":        true,
		"/api/v1/jobs/ingest-html": true,
		"/api/v1/jobs/123":         false,
		"/ws/jobs":                 false,
		"/health":                  false,
	}
	for path, want := range cases {
		if got := IsAIPath(path); got != want {
			t.Fatalf("IsAIPath(%q) = %t, want %t", path, got, want)
		}
	}
}

func TestErrorMiddleware_HidesInternalErrors(t *testing.T) {
	app := fiber.New()
	app.Use(NewErrorMiddleware(log.New(io.Discard, "", 0)).Middleware())
	app.Get("/boom", func(c fiber.Ctx) error {
		return NewAppError(fiber.StatusInternalServerError, "db password is hunter2", nil, errors.New("boom"))
	})
	app.Get("/panic", func(c fiber.Ctx) error {
		panic("unexpected")
	})
	app.Get("/bad", func(c fiber.Ctx) error {
		return NewAppError(fiber.StatusBadRequest, "", nil, nil)
	})

	for path, want := range map[string]int{"/boom": 500, "/panic": 500, "/bad": 400} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("app.Test %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
		if want == 500 && string(body) != `{"status":500,"message":"internal server error","data":null}` {
			t.Fatalf("%s: unexpected body %s", path, body)
		}
	}
}

func TestBearerTokenFromHeader(t *testing.T) {
	if tok, ok := bearerTokenFromHeader("bearer  abc "); !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q %t", tok, ok)
	}
	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer   "} {
		if _, ok := bearerTokenFromHeader(h); ok {
			t.Fatalf("expected rejection for %q", h)
		}
	}
}
