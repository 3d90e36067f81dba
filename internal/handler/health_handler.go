package handler

import (
	"context"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/dto"
	"lms-assessment/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports database and cache reachability.
type HealthHandler struct {
	db    Pinger
	cache domain.Cache // nil when running without Redis
}

func NewHealthHandler(db Pinger, cache domain.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	resp := dto.HealthResponse{Status: "ok", Database: "ok", Cache: "disabled"}
	status := fiber.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		logger.Get().Error("Database health check failed", zap.Error(err))
		resp.Status, resp.Database = "unavailable", "down"
		status = fiber.StatusServiceUnavailable
	}
	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			// The catalog cache is optional, so a cache outage only degrades.
			logger.Get().Warn("Cache health check failed", zap.Error(err))
			resp.Cache = "down"
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	}
	return c.Status(status).JSON(resp)
}
