package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
)

// CorrelationIDHeader is the header clients may set to trace a request
// across services; one is generated when absent.
const CorrelationIDHeader = "X-Request-Id"

// WithCorrelationID ensures every request has a correlation id, echoing it
// back on the response.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDHeader, id)
		c.Locals(CorrelationIDHeader, id)

		return c.Next()
	}
}

// WithLogging attaches a request-scoped logger (carrying the correlation
// id) to the fiber user context and logs method/path/status/latency on
// completion, matching the teacher's withLogging middleware.
func WithLogging(base mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		corrID, _ := c.Locals(CorrelationIDHeader).(string)
		reqLogger := base.WithFields("request_id", corrID, "path", c.Path(), "method", c.Method())

		ctx := pkg.ContextWithLogger(c.UserContext(), reqLogger)
		c.SetUserContext(ctx)

		err := c.Next()

		reqLogger.Infof("handled in %s status=%d", time.Since(start), c.Response().StatusCode())

		return err
	}
}

// Pagination extracts pageNum/pageSize query parameters with the defaults
// from spec.md §4.4.
func Pagination(c *fiber.Ctx) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	limit, _ = strconv.Atoi(c.Query("limit", "20"))

	if page < 1 {
		page = 1
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	return page, limit
}
