package app

import (
	"fmt"
	"strings"

	"job-ingest/internal/config"
	"job-ingest/internal/delivery/http/handler"
	"job-ingest/internal/delivery/http/middleware"
	"job-ingest/internal/delivery/http/routes"
	"job-ingest/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

// New builds the HTTP app around an already constructed container.
func New(c *Container) *App {
	f := fiber.New(fiber.Config{
		AppName:   c.Config.App.AppName,
		BodyLimit: 10 << 20,
	})

	registerGlobalMiddleware(f, c)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

func Bootstrap(cfg config.Config) (*App, func() error, error) {
	c, err := NewContainer(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := c.Start(); err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return New(c), c.Close, nil
}

func registerGlobalMiddleware(app *fiber.App, c *Container) {
	app.Use(middleware.NewAccessLogMiddleware(c.Logger).Middleware())
	app.Use(middleware.NewErrorMiddleware(c.Logger).Middleware())
	app.Use(middleware.NewRateLimitMiddleware(c.Governor, c.JWT, c.Logger).Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	var redis handler.Pinger
	if c.Config.Redis.Enabled && c.Redis != nil {
		redis = c.Redis
	}

	routes.NewRegistry(
		handler.NewHealthHandler(c.Store, redis).WithQueue(c.Pool),
		handler.NewIngestHandler(c.Ingest, c.Logger),
		ws.NewHandler(c.Hub, c.JWT, c.Logger),
		middleware.NewAuthMiddleware(c.JWT),
	).Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
