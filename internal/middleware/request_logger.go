package middleware

import (
	"time"

	"lms-assessment/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with its status and latency.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if id, ok := LearnerID(c); ok {
			fields = append(fields, zap.Int64("learnerID", id))
		}
		if err != nil {
			// The status is set later by the error handler.
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", c.Response().StatusCode()))
		}
		logger.Get().Info("HTTP request", fields...)
		return err
	}
}
