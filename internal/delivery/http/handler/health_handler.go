package handler

import (
	"context"
	"time"

	"job-ingest/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueReporter exposes the enrichment backlog.
type QueueReporter interface {
	QueueLen() int
}

// HealthHandler reports the store as required and redis as optional; a
// redis outage degrades to in-memory rate limiting, so it never fails health.
type HealthHandler struct {
	db    Pinger
	redis Pinger
	queue QueueReporter
}

func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// WithQueue adds the enrichment queue length to the health payload.
func (h *HealthHandler) WithQueue(q QueueReporter) *HealthHandler {
	h.queue = q
	return h
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/health", h.HandleHealth)
}

func (h *HealthHandler) HandleHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{"database": "ok", "redis": "disabled"}
	status := fiber.StatusOK

	if h.db == nil {
		checks["database"] = "missing"
		status = fiber.StatusServiceUnavailable
	} else if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		status = fiber.StatusServiceUnavailable
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.queue != nil {
		checks["enrichment_queue"] = h.queue.QueueLen()
	}

	if status != fiber.StatusOK {
		return response.Error(c, status, response.MessageServiceUnavailable, checks)
	}
	return response.Success(c, status, response.MessageOK, checks)
}
