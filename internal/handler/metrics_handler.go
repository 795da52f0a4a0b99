package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/service"
	"github.com/noah-isme/institute-compass-api/pkg/database"
)

const healthPingTimeout = 2 * time.Second

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	db      *sqlx.DB
	logger  *zap.Logger
	now     func() time.Time
}

// NewMetricsHandler constructs a metrics handler. db may be nil when the pool could not be opened.
func NewMetricsHandler(metrics *service.MetricsService, db *sqlx.DB, logger *zap.Logger) *MetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsHandler{metrics: metrics, db: db, logger: logger, now: time.Now}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health godoc
// @Summary Liveness and database reachability
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *MetricsHandler) Health(c *gin.Context) {
	state := "connected"
	if err := database.Ping(c.Request.Context(), h.db, healthPingTimeout); err != nil {
		state = "disconnected"
		h.logger.Warn("health check database ping failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"database":  state,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
