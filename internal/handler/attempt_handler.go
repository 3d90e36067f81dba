package handler

import (
	"encoding/json"
	"strconv"
	"strings"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/dto"
	"lms-assessment/internal/logger"
	"lms-assessment/internal/middleware"
	"lms-assessment/internal/service"
	"lms-assessment/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AttemptHandler handles quiz attempt HTTP requests
type AttemptHandler struct {
	service   service.AttemptService
	validator *validation.Validator
}

// NewAttemptHandler creates a new AttemptHandler instance
func NewAttemptHandler(service service.AttemptService, validator *validation.Validator) *AttemptHandler {
	return &AttemptHandler{service: service, validator: validator}
}

func learnerFrom(c *fiber.Ctx) (int64, error) {
	id, ok := middleware.LearnerID(c)
	if !ok || id <= 0 {
		logger.Get().Warn("Learner ID not found in context", zap.String("path", c.Path()))
		return 0, domain.NewError(domain.CodeUnauthorized, "Learner ID not found in context", nil)
	}
	return id, nil
}

func quizAndCourse(c *fiber.Ctx) (int64, int64) {
	quizID, _ := c.Locals(middleware.QuizIDKey).(int64)
	courseID, _ := c.Locals(middleware.CourseIDKey).(int64)
	return quizID, courseID
}

func toEligibilityResponse(r *service.EligibilityResult) *dto.EligibilityResponse {
	if r == nil {
		return nil
	}
	return &dto.EligibilityResponse{Allowed: r.Allowed, Code: r.Code, Reason: r.Reason, CourseID: r.CourseID}
}

// CheckEligibility handles GET /api/quizzes/:quizID/eligibility
func (h *AttemptHandler) CheckEligibility(c *fiber.Ctx) error {
	learnerID, err := learnerFrom(c)
	if err != nil {
		return err
	}
	quizID, courseID := quizAndCourse(c)

	result, err := h.service.CheckEligibility(c.UserContext(), learnerID, quizID, courseID)
	if err != nil {
		return err
	}
	return c.JSON(toEligibilityResponse(result))
}

// GetAttemptState handles GET /api/quizzes/:quizID/attempt
func (h *AttemptHandler) GetAttemptState(c *fiber.Ctx) error {
	learnerID, err := learnerFrom(c)
	if err != nil {
		return err
	}
	quizID, courseID := quizAndCourse(c)

	state, err := h.service.GetAttemptState(c.UserContext(), learnerID, quizID, courseID)
	if err != nil {
		return err
	}
	resp := dto.AttemptStateResponse{
		NextQuestionID: state.NextQuestionID,
		HasNext:        state.HasNext,
		Eligibility:    toEligibilityResponse(state.Eligibility),
	}
	if state.Attempt != nil {
		a := dto.ToAttemptResponse(state.Attempt, true)
		resp.Attempt = &a
	}
	return c.JSON(resp)
}

// ListAttempts handles GET /api/quizzes/:quizID/attempts
func (h *AttemptHandler) ListAttempts(c *fiber.Ctx) error {
	learnerID, err := learnerFrom(c)
	if err != nil {
		return err
	}
	quizID, courseID := quizAndCourse(c)

	attempts, err := h.service.ListAttempts(c.UserContext(), learnerID, quizID, courseID)
	if err != nil {
		return err
	}
	resp := dto.AttemptListResponse{Attempts: make([]dto.AttemptResponse, 0, len(attempts))}
	for i := range attempts {
		resp.Attempts = append(resp.Attempts, dto.ToAttemptResponse(&attempts[i], false))
	}
	return c.JSON(resp)
}

// SubmitAnswer handles POST /api/quizzes/:quizID/answers. The body is JSON,
// or multipart form data with a "file" part for file questions.
func (h *AttemptHandler) SubmitAnswer(c *fiber.Ctx) error {
	learnerID, err := learnerFrom(c)
	if err != nil {
		return err
	}
	quizID, _ := c.Locals(middleware.QuizIDKey).(int64)

	cmd := service.SubmitAnswerCommand{LearnerID: learnerID, QuizID: quizID, IP: c.IP()}
	var req dto.SubmitAnswerRequest

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if req, err = parseMultipartRequest(c); err != nil {
			return err
		}
		fh, err := c.FormFile("file")
		if err == nil {
			f, err := fh.Open()
			if err != nil {
				return domain.NewInternalError("Failed to read uploaded file", err)
			}
			defer f.Close()
			cmd.Upload = &service.FileUpload{Name: fh.Filename, Size: fh.Size, Content: f}
		}
	} else if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("Request body is not valid JSON")
	}

	if err := h.validator.Struct(req); err != nil {
		return err
	}
	cmd.QuestionID = req.QuestionID
	cmd.CourseID = req.CourseID
	cmd.Answer = req.Answer

	result, err := h.service.SubmitAnswer(c.UserContext(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(dto.SubmitAnswerResponse{
		Attempt:        dto.ToAttemptResponse(result.Attempt, false),
		Completed:      result.Completed,
		NextQuestionID: result.NextQuestionID,
		Evaluation:     dto.ToEvaluationResponse(result.Evaluation),
		Feedback:       dto.ToFeedbackResponse(result.Feedback),
		Progress:       dto.ToProgressResponse(result.Progress),
	})
}

func parseMultipartRequest(c *fiber.Ctx) (dto.SubmitAnswerRequest, error) {
	var req dto.SubmitAnswerRequest
	var errs domain.ValidationErrors
	if raw := c.FormValue("question_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, domain.NewInvalidFormatError("question_id", raw))
		}
		req.QuestionID = id
	}
	if raw := c.FormValue("course_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, domain.NewInvalidFormatError("course_id", raw))
		}
		req.CourseID = id
	}
	if raw := c.FormValue("answer"); raw != "" {
		if json.Valid([]byte(raw)) {
			req.Answer = json.RawMessage(raw)
		} else {
			// Plain text form fields are sent unquoted.
			req.Answer, _ = json.Marshal(raw)
		}
	}
	if len(errs) > 0 {
		return req, errs
	}
	return req, nil
}

// ViewResult handles GET /api/attempts/:attemptID/result
func (h *AttemptHandler) ViewResult(c *fiber.Ctx) error {
	learnerID, err := learnerFrom(c)
	if err != nil {
		return err
	}
	attemptID, _ := c.Locals(middleware.AttemptIDKey).(string)

	view, err := h.service.ViewResult(c.UserContext(), attemptID, service.Viewer{ID: learnerID, Reviewer: middleware.IsReviewer(c)})
	if err != nil {
		return err
	}
	return c.JSON(dto.AttemptResultResponse{
		Attempt:    dto.ToAttemptResponse(view.Attempt, true),
		Evaluation: dto.ToEvaluationResponse(view.Evaluation),
		Feedback:   dto.ToFeedbackResponse(view.Feedback),
	})
}

// RecordReview handles POST /api/attempts/:attemptID/review
func (h *AttemptHandler) RecordReview(c *fiber.Ctx) error {
	reviewerID, err := learnerFrom(c)
	if err != nil {
		return err
	}
	attemptID, _ := c.Locals(middleware.AttemptIDKey).(string)

	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("Request body is not valid JSON")
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	view, err := h.service.RecordReview(c.UserContext(), service.ReviewCommand{
		AttemptID:  attemptID,
		ReviewerID: reviewerID,
		Status:     domain.AttemptStatus(req.Status),
		Message:    req.Message,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.AttemptResultResponse{
		Attempt:  dto.ToAttemptResponse(view.Attempt, false),
		Feedback: dto.ToFeedbackResponse(view.Feedback),
	})
}

// RecomputeProgress handles POST /api/courses/:courseID/progress/recompute
func (h *AttemptHandler) RecomputeProgress(c *fiber.Ctx) error {
	learnerID, err := learnerFrom(c)
	if err != nil {
		return err
	}
	courseID, _ := c.Locals(middleware.CourseIDKey).(int64)

	progress, err := h.service.RecomputeProgress(c.UserContext(), learnerID, courseID)
	if err != nil {
		return err
	}
	return c.JSON(dto.ToProgressResponse(progress))
}
