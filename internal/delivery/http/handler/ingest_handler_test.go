package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"job-ingest/internal/delivery/http/dto"
	"job-ingest/internal/delivery/http/middleware"
	"job-ingest/internal/domain/job"
	"job-ingest/internal/pkg/jwt"
	"job-ingest/internal/pkg/response"
	"job-ingest/internal/ratelimit"
	"job-ingest/internal/repository"
	"job-ingest/internal/usecase/ingest"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type fakeIngestUsecase struct {
	res       ingest.Result
	err       error
	extracted job.Extracted
	rec       *job.Record
	getErr    error

	gotUser uuid.UUID
	gotSub  job.Submission
}

func (f *fakeIngestUsecase) Ingest(_ context.Context, userID uuid.UUID, sub job.Submission) (ingest.Result, error) {
	f.gotUser = userID
	f.gotSub = sub
	return f.res, f.err
}

func (f *fakeIngestUsecase) IngestHTML(_ context.Context, userID uuid.UUID, sub job.Submission) (ingest.Result, job.Extracted, error) {
	f.gotUser = userID
	f.gotSub = sub
	return f.res, f.extracted, f.err
}

func (f *fakeIngestUsecase) Get(_ context.Context, _, _ uuid.UUID) (*job.Record, error) {
	return f.rec, f.getErr
}

type testApp struct {
	app    *fiber.App
	jwt    *jwt.HMACService
	userID uuid.UUID
}

func newTestApp(uc IngestUsecase, limits ratelimit.Limits) testApp {
	logger := log.New(io.Discard, "", 0)
	jwtSvc := jwt.NewHMACService("test-secret", time.Hour)
	gov := ratelimit.NewGovernor(ratelimit.NewMemoryStore(), limits, logger)

	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware(logger).Middleware())
	app.Use(middleware.NewRateLimitMiddleware(gov, jwtSvc, logger).Middleware())

	h := NewIngestHandler(uc, logger)
	app.Post("/jobs/ingest", middleware.NewAuthMiddleware(jwtSvc).Middleware(), h.HandleIngest)
	app.Post("/jobs/ingest-html", middleware.NewAuthMiddleware(jwtSvc).Middleware(), h.HandleIngestHTML)
	h.RegisterRoutes(app.Group("/api/v1", middleware.NewAuthMiddleware(jwtSvc).Middleware()))

	return testApp{app: app, jwt: jwtSvc, userID: uuid.New()}
}

func (ta testApp) do(t *testing.T, method, path string, body any, authed bool) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		tok, err := ta.jwt.GenerateAccessToken(ta.userID, "")
		if err != nil {
			t.Fatalf("GenerateAccessToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := ta.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, raw
}

func TestHandleIngest_Success(t *testing.T) {
	id := uuid.New()
	uc := &fakeIngestUsecase{res: ingest.Result{JobID: id, Status: ingest.StatusSuccess, Message: ingest.MessageSaved}}
	ta := newTestApp(uc, ratelimit.Limits{})

	resp, raw := ta.do(t, http.MethodPost, "/jobs/ingest", map[string]any{
		"url":       "https://example.com/jobs/1",
		"job_title": "Top-level Title",
		"company":   "Top-level Co",
		"fallback_data": map[string]any{
			"job_title": "Extension Title",
			"location":  "Not specified",
		},
		"stage":      "Applied",
		"excitement": 4,
	}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var out dto.IngestResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.JobID == nil || *out.JobID != id.String() || out.Status != "success" || out.IsDuplicate {
		t.Fatalf("unexpected response: %s", raw)
	}
	if resp.Header.Get("X-RateLimit-Limit") == "" || resp.Header.Get("X-RateLimit-Remaining") == "" {
		t.Fatalf("rate limit headers missing")
	}

	if uc.gotUser != ta.userID {
		t.Fatalf("principal not passed through")
	}
	fb := uc.gotSub.Fallback
	if job.Deref(fb.Title) != "Extension Title" || job.Deref(fb.Company) != "Top-level Co" || fb.Location != nil {
		t.Fatalf("unexpected fallback merge: %+v", fb)
	}
	if uc.gotSub.Stage != "Applied" || uc.gotSub.Excitement != 4 {
		t.Fatalf("metadata not passed through: %+v", uc.gotSub)
	}
}

func TestHandleIngest_Duplicate(t *testing.T) {
	id := uuid.New()
	uc := &fakeIngestUsecase{res: ingest.Result{JobID: id, Status: ingest.StatusDuplicate, Message: ingest.MessageDuplicate}}
	ta := newTestApp(uc, ratelimit.Limits{})

	resp, raw := ta.do(t, http.MethodPost, "/api/v1/jobs/ingest", map[string]any{"url": "https://example.com/jobs/1"}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out dto.IngestResponse
	_ = json.Unmarshal(raw, &out)
	if !out.IsDuplicate || out.Status != "duplicate" || out.Message != ingest.MessageDuplicate {
		t.Fatalf("unexpected response: %s", raw)
	}
}

func TestHandleIngest_Errors(t *testing.T) {
	cases := []struct {
		name   string
		uc     *fakeIngestUsecase
		body   any
		authed bool
		want   int
	}{
		{name: "missing url", uc: &fakeIngestUsecase{}, body: map[string]any{"stage": "x"}, authed: true, want: http.StatusBadRequest},
		{name: "invalid url", uc: &fakeIngestUsecase{err: ingest.ErrInvalidInput}, body: map[string]any{"url": "nope"}, authed: true, want: http.StatusBadRequest},
		{name: "persistence", uc: &fakeIngestUsecase{err: ingest.ErrPersistence}, body: map[string]any{"url": "https://example.com/a"}, authed: true, want: http.StatusInternalServerError},
		{name: "unauthenticated", uc: &fakeIngestUsecase{}, body: map[string]any{"url": "https://example.com/a"}, authed: false, want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(tc.uc, ratelimit.Limits{})
			resp, raw := ta.do(t, http.MethodPost, "/jobs/ingest", tc.body, tc.authed)
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.StatusCode, raw)
			}
		})
	}
}

func TestHandleIngest_RateLimited(t *testing.T) {
	uc := &fakeIngestUsecase{res: ingest.Result{JobID: uuid.New(), Status: ingest.StatusSuccess}}
	ta := newTestApp(uc, ratelimit.Limits{IPAI: 2})

	for i := 0; i < 2; i++ {
		resp, _ := ta.do(t, http.MethodPost, "/jobs/ingest", map[string]any{"url": "https://example.com/a"}, false)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401, got %d", i, resp.StatusCode)
		}
	}

	resp, raw := ta.do(t, http.MethodPost, "/jobs/ingest", map[string]any{"url": "https://example.com/a"}, false)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", resp.StatusCode, raw)
	}
	if resp.Header.Get("Retry-After") != "60" || resp.Header.Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected headers: retry-after=%q remaining=%q", resp.Header.Get("Retry-After"), resp.Header.Get("X-RateLimit-Remaining"))
	}
	var env response.SemanticResponse
	if err := json.Unmarshal(raw, &env); err != nil || env.Message != response.MessageTooManyRequests {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestHandleIngestHTML(t *testing.T) {
	id := uuid.New()
	title := "Data Engineer"
	uc := &fakeIngestUsecase{
		res:       ingest.Result{JobID: id, Status: ingest.StatusSuccess, Message: ingest.MessageIngested},
		extracted: job.Extracted{Title: &title, Skills: []string{"Go"}},
	}
	ta := newTestApp(uc, ratelimit.Limits{})

	resp, raw := ta.do(t, http.MethodPost, "/jobs/ingest-html", map[string]any{
		"html":       "<html><body><h1>Data Engineer</h1></body></html>",
		"source_url": "https://example.com/jobs/8",
		"metadata":   map[string]any{"stage": "Interviewing", "excitement": 5},
	}, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var out dto.IngestResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.JobID == nil || *out.JobID != id.String() || out.ExtractedData == nil {
		t.Fatalf("unexpected response: %s", raw)
	}
	if out.ExtractedData.Title != "Data Engineer" || out.ExtractedData.Company != job.UnknownCompany {
		t.Fatalf("expected extracted fields with boundary placeholders, got %+v", out.ExtractedData)
	}
	if uc.gotSub.URL != "https://example.com/jobs/8" || uc.gotSub.HTMLContent == "" || uc.gotSub.Stage != "Interviewing" || uc.gotSub.Excitement != 5 {
		t.Fatalf("submission not mapped: %+v", uc.gotSub)
	}

	resp, raw = ta.do(t, http.MethodPost, "/api/v1/jobs/ingest-html", map[string]any{"source_url": "https://example.com/jobs/8"}, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without html, got %d: %s", resp.StatusCode, raw)
	}

	failing := newTestApp(&fakeIngestUsecase{err: ingest.ErrExtraction}, ratelimit.Limits{})
	resp, raw = failing.do(t, http.MethodPost, "/jobs/ingest-html", map[string]any{
		"html":       "<html></html>",
		"source_url": "https://example.com/jobs/9",
	}, true)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", resp.StatusCode, raw)
	}
	var errOut dto.IngestResponse
	_ = json.Unmarshal(raw, &errOut)
	if errOut.Status != "error" || errOut.ExtractedData != nil {
		t.Fatalf("unexpected error body: %s", raw)
	}
}

func TestHandleGetJob(t *testing.T) {
	rec := &job.Record{ID: uuid.New(), Status: job.StatusPending, Stage: job.DefaultStage}
	ta := newTestApp(&fakeIngestUsecase{rec: rec}, ratelimit.Limits{})

	resp, raw := ta.do(t, http.MethodGet, "/api/v1/jobs/"+rec.ID.String(), nil, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	var env struct {
		Data dto.JobResponse `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Data.Title != job.UnknownTitle || env.Data.Company != job.UnknownCompany || env.Data.Status != "pending" {
		t.Fatalf("expected placeholders at the boundary, got %+v", env.Data)
	}

	missing := newTestApp(&fakeIngestUsecase{getErr: repository.ErrJobNotFound}, ratelimit.Limits{})
	resp, _ = missing.do(t, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil, true)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = missing.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubQueue int

func (q stubQueue) QueueLen() int { return int(q) }

func TestHealth(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(stubPinger{}, stubPinger{err: errors.New("down")}).WithQueue(stubQueue(3)).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redis outage should not fail health, got %d", resp.StatusCode)
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Data["redis"] != "unavailable" || env.Data["enrichment_queue"] != float64(3) {
		t.Fatalf("unexpected health payload: %s", raw)
	}

	app = fiber.New()
	NewHealthHandler(stubPinger{err: errors.New("no db")}, nil).RegisterRoutes(app)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
