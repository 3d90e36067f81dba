package middleware

import (
	"strings"

	"lms-assessment/internal/dto"
	"lms-assessment/internal/logger"
	"lms-assessment/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	AuthorizationHeader = "Authorization"
	BearerSchema        = "Bearer "
	LearnerIDKey        = "learnerID" // Key for storing the learner id in fiber.Ctx locals
	ClaimsKey           = "claims"
)

func unauthorized(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Code:    code,
		Message: message,
		Status:  fiber.StatusUnauthorized,
	})
}

// Protected is a middleware function that protects routes by requiring a valid JWT.
// It stores the learner id taken from the token subject in the context.
func Protected(authService service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(AuthorizationHeader)
		if authHeader == "" {
			return unauthorized(c, "MISSING_AUTH_HEADER", "Authorization header is missing")
		}
		if !strings.HasPrefix(authHeader, BearerSchema) {
			return unauthorized(c, "INVALID_AUTH_SCHEME", "Authorization scheme is not Bearer")
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerSchema))
		if tokenString == "" {
			return unauthorized(c, "EMPTY_TOKEN", "Token is empty")
		}

		claims, err := authService.ValidateJWT(c.UserContext(), tokenString)
		if err != nil {
			logger.Get().Debug("Rejected bearer token", zap.String("path", c.Path()), zap.Error(err))
			return unauthorized(c, "INVALID_TOKEN", "Token is invalid or expired")
		}
		learnerID, err := claims.LearnerID()
		if err != nil {
			return unauthorized(c, "INVALID_TOKEN", "Token subject is not a learner id")
		}

		c.Locals(LearnerIDKey, learnerID)
		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// RequireRole rejects callers whose token lacks role. It must run after Protected.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(ClaimsKey).(*dto.AuthClaims)
		if !ok || !claims.HasRole(role) {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Code:    "FORBIDDEN",
				Message: "The " + role + " role is required",
				Status:  fiber.StatusForbidden,
			})
		}
		return c.Next()
	}
}

// LearnerID returns the authenticated learner id set by Protected.
func LearnerID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(LearnerIDKey).(int64)
	return id, ok
}

// IsReviewer reports whether the authenticated caller holds the reviewer role.
func IsReviewer(c *fiber.Ctx) bool {
	claims, ok := c.Locals(ClaimsKey).(*dto.AuthClaims)
	return ok && claims.HasRole(dto.RoleReviewer)
}
