package middleware

import (
	"strconv"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Locals keys of validated parameters.
const (
	QuizIDKey    = "validated_quiz_id"
	CourseIDKey  = "validated_course_id"
	AttemptIDKey = "validated_attempt_id"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware(v *validation.Validator) *ValidationMiddleware {
	return &ValidationMiddleware{validator: v}
}

// ValidateIDParam validates a numeric path parameter and stores it under key.
func (vm *ValidationMiddleware) ValidateIDParam(param, key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Params(param)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.ValidationErrors{domain.NewInvalidFormatError(param, raw)}
		}
		if errs := vm.validator.ValidateID(param, id); len(errs) > 0 {
			return errs // This will be handled by ErrorHandler middleware
		}
		c.Locals(key, id)
		return c.Next()
	}
}

// ValidateCourseQuery validates the optional course_id query parameter; an
// absent value is stored as 0.
func (vm *ValidationMiddleware) ValidateCourseQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var courseID int64
		if raw := c.Query("course_id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 0 {
				return domain.ValidationErrors{domain.NewInvalidFormatError("course_id", raw)}
			}
			courseID = parsed
		}
		c.Locals(CourseIDKey, courseID)
		return c.Next()
	}
}

// ValidateAttemptID validates the attemptID path parameter.
func (vm *ValidationMiddleware) ValidateAttemptID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		attemptID := c.Params("attemptID")
		if errs := vm.validator.ValidateAttemptID(attemptID); len(errs) > 0 {
			return errs
		}
		c.Locals(AttemptIDKey, attemptID)
		return c.Next()
	}
}
