package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/analytics/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// PingFunc checks one backing store
type PingFunc func(ctx context.Context) error

// HealthCheck is a named store check
type HealthCheck struct {
	Name string
	Ping PingFunc
}

// HealthHandler reports the status of the stores the service depends on
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
	clock   clockwork.Clock
}

// NewHealthHandler creates a new HealthHandler. Each check gets timeout to answer.
func NewHealthHandler(timeout time.Duration, clock clockwork.Clock, checks ...HealthCheck) *HealthHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout, clock: clock}
}

// Health godoc
// @Summary      Health check
// @Description  Pings the database, the aggregate store and the cache
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	reqLog := logger.GetGinLogger(c)
	body := gin.H{}
	healthy := true

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			healthy = false
			body[check.Name] = "error"
			reqLog.Warn("Health check failed", zap.String("component", check.Name), zap.Error(err))
			continue
		}
		body[check.Name] = "ok"
	}

	body["time"] = h.clock.Now().UTC().Format(time.RFC3339)
	if !healthy {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "healthy"
	c.JSON(http.StatusOK, body)
}
