package handler

import (
	"lms-assessment/internal/dto"
	"lms-assessment/internal/middleware"
	"lms-assessment/internal/service"
	"lms-assessment/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the health check and the /api routes on app.
func RegisterRoutes(app *fiber.App, attempts *AttemptHandler, health *HealthHandler, authService service.AuthService, validator *validation.Validator) {
	vm := middleware.NewValidationMiddleware(validator)
	quizID := vm.ValidateIDParam("quizID", middleware.QuizIDKey)
	courseParam := vm.ValidateIDParam("courseID", middleware.CourseIDKey)
	attemptID := vm.ValidateAttemptID()

	app.Get("/healthz", health.Healthz)

	api := app.Group("/api", middleware.Protected(authService))

	courseQuery := vm.ValidateCourseQuery()
	api.Get("/quizzes/:quizID/eligibility", quizID, courseQuery, attempts.CheckEligibility)
	api.Get("/quizzes/:quizID/attempt", quizID, courseQuery, attempts.GetAttemptState)
	api.Get("/quizzes/:quizID/attempts", quizID, courseQuery, attempts.ListAttempts)
	api.Post("/quizzes/:quizID/answers", quizID, attempts.SubmitAnswer)

	api.Get("/attempts/:attemptID/result", attemptID, attempts.ViewResult)
	api.Post("/attempts/:attemptID/review", middleware.RequireRole(dto.RoleReviewer), attemptID, attempts.RecordReview)

	api.Post("/courses/:courseID/progress/recompute", courseParam, attempts.RecomputeProgress)
}
