package routes

import (
	"job-ingest/internal/delivery/http/handler"
	"job-ingest/internal/delivery/http/middleware"
	"job-ingest/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	health *handler.HealthHandler
	ingest *handler.IngestHandler
	ws     *ws.Handler
	auth   *middleware.AuthMiddleware
}

func NewRegistry(health *handler.HealthHandler, ingest *handler.IngestHandler, wsHandler *ws.Handler, auth *middleware.AuthMiddleware) *Registry {
	return &Registry{health: health, ingest: ingest, ws: wsHandler, auth: auth}
}

// Register mounts the ingest routes twice: at the root for the browser
// extension and under /api/v1 for everything else.
func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	if r.health != nil {
		r.health.RegisterRoutes(app)
	}
	if r.ws != nil {
		r.ws.RegisterRoutes(app)
	}
	if r.ingest == nil || r.auth == nil {
		return
	}

	app.Post("/jobs/ingest", r.auth.Middleware(), r.ingest.HandleIngest)
	app.Post("/jobs/ingest-html", r.auth.Middleware(), r.ingest.HandleIngestHTML)

	v1 := app.Group("/api/v1", r.auth.Middleware())
	r.ingest.RegisterRoutes(v1)
}
