package middleware

import (
	"log"
	"strconv"
	"strings"

	"job-ingest/internal/pkg/jwt"
	"job-ingest/internal/pkg/response"
	"job-ingest/internal/ratelimit"

	"github.com/gofiber/fiber/v3"
)

// aiPathMarkers select the stricter AI window. Both ingest routes
// (/jobs/ingest and /jobs/ingest-html) run semantic extraction.
var aiPathMarkers = []string{"/jobs/ingest"}

type RateLimitMiddleware struct {
	governor *ratelimit.Governor
	jwt      jwt.Service
	logger   *log.Logger
}

func NewRateLimitMiddleware(g *ratelimit.Governor, jwtSvc jwt.Service, logger *log.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{governor: g, jwt: jwtSvc, logger: logger}
}

func (m *RateLimitMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if m == nil || m.governor == nil {
			return c.Next()
		}

		subject := ratelimit.Subject{IP: c.IP(), UserID: peekUserID(c, m.jwt)}
		d := m.governor.Admit(c.Context(), subject, IsAIPath(c.Path()))

		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			secs := int(d.RetryAfter.Seconds())
			c.Set("Retry-After", strconv.Itoa(secs))
			if m.logger != nil {
				m.logger.Printf("[RateLimit] rejected ip=%s user_id=%s path=%s limit=%d", subject.IP, subject.UserID, c.Path(), d.Limit)
			}
			return response.Error(c, fiber.StatusTooManyRequests, response.MessageTooManyRequests, fiber.Map{
				"retry_after": secs,
			})
		}
		return c.Next()
	}
}

func IsAIPath(path string) bool {
	p := strings.ToLower(path)
	for _, marker := range aiPathMarkers {
		if strings.Contains(p, marker) {
			return true
		}
	}
	return false
}
