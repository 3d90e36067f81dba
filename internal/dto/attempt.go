package dto

import (
	"encoding/json"
	"time"

	"lms-assessment/internal/domain"
)

// SubmitAnswerRequest is the JSON body of an answer submission. Multipart
// submissions carry the same fields as form values plus a "file" part.
type SubmitAnswerRequest struct {
	QuestionID int64           `json:"question_id" form:"question_id" validate:"required,gt=0"`
	CourseID   int64           `json:"course_id" form:"course_id" validate:"gte=0"`
	Answer     json.RawMessage `json:"answer" form:"-"`
}

// ReviewRequest is a reviewer's verdict on a submitted attempt.
type ReviewRequest struct {
	Status  string `json:"status" validate:"required,oneof=SATISFACTORY FAIL RETURNED"`
	Message string `json:"message" validate:"max=4000"`
}

// QuestionResponse is a snapshot question as shown to the learner. The
// correct answer is never exposed.
type QuestionResponse struct {
	ID         int64               `json:"id"`
	Title      string              `json:"title"`
	AnswerType domain.AnswerType   `json:"answer_type"`
	Required   bool                `json:"required"`
	Options    []string            `json:"options,omitempty"`
	Table      *domain.TableLayout `json:"table,omitempty"`
	Position   int                 `json:"position"`
}

// AttemptResponse represents an attempt in the API response
type AttemptResponse struct {
	ID           string                    `json:"id"`
	LearnerID    int64                     `json:"learner_id"`
	QuizID       int64                     `json:"quiz_id"`
	CourseID     int64                     `json:"course_id"`
	LessonID     int64                     `json:"lesson_id"`
	TopicID      int64                     `json:"topic_id"`
	Attempt      int                       `json:"attempt"`
	SystemResult domain.SystemResult       `json:"system_result"`
	Status       domain.AttemptStatus      `json:"status"`
	Questions    []QuestionResponse        `json:"questions,omitempty"`
	Answers      map[int64]json.RawMessage `json:"answers"`
	SubmittedAt  *time.Time                `json:"submitted_at,omitempty"`
	AccessedAt   *time.Time                `json:"accessed_at,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

type EvaluationResponse struct {
	ID      string                           `json:"id"`
	Verdict domain.Verdict                   `json:"verdict"`
	Results map[int64]domain.QuestionVerdict `json:"results"`
}

type FeedbackResponse struct {
	AuthorID  int64     `json:"author_id,omitempty"`
	Obtained  float64   `json:"obtained"`
	Passing   int       `json:"passing"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ProgressResponse struct {
	CourseID         int64     `json:"course_id"`
	CompletedQuizzes int       `json:"completed_quizzes"`
	TotalQuizzes     int       `json:"total_quizzes"`
	Percentage       float64   `json:"percentage"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SubmitAnswerResponse is returned after every accepted answer.
type SubmitAnswerResponse struct {
	Attempt        AttemptResponse     `json:"attempt"`
	Completed      bool                `json:"completed"`
	NextQuestionID int64               `json:"next_question_id,omitempty"`
	Evaluation     *EvaluationResponse `json:"evaluation,omitempty"`
	Feedback       *FeedbackResponse   `json:"feedback,omitempty"`
	Progress       *ProgressResponse   `json:"progress,omitempty"`
}

// AttemptStateResponse is the learner's current position in a quiz.
type AttemptStateResponse struct {
	Attempt        *AttemptResponse     `json:"attempt"`
	NextQuestionID int64                `json:"next_question_id,omitempty"`
	HasNext        bool                 `json:"has_next"`
	Eligibility    *EligibilityResponse `json:"eligibility,omitempty"`
}

// EligibilityResponse tells whether the learner may attempt the quiz and
// which course the attempt counts for.
type EligibilityResponse struct {
	Allowed  bool             `json:"allowed"`
	Code     domain.ErrorCode `json:"code,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	CourseID int64            `json:"course_id"`
}

type AttemptListResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
}

// AttemptResultResponse is a closed attempt with its grading artefacts.
type AttemptResultResponse struct {
	Attempt    AttemptResponse     `json:"attempt"`
	Evaluation *EvaluationResponse `json:"evaluation,omitempty"`
	Feedback   *FeedbackResponse   `json:"feedback,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

func ToAttemptResponse(a *domain.Attempt, withQuestions bool) AttemptResponse {
	resp := AttemptResponse{
		ID:           a.ID,
		LearnerID:    a.LearnerID,
		QuizID:       a.QuizID,
		CourseID:     a.CourseID,
		LessonID:     a.LessonID,
		TopicID:      a.TopicID,
		Attempt:      a.Number,
		SystemResult: a.SystemResult,
		Status:       a.Status,
		Answers:      map[int64]json.RawMessage(a.Answers),
		SubmittedAt:  a.SubmittedAt,
		AccessedAt:   a.AccessedAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if resp.Answers == nil {
		resp.Answers = map[int64]json.RawMessage{}
	}
	if withQuestions {
		resp.Questions = make([]QuestionResponse, 0, len(a.Questions))
		for _, q := range a.Questions {
			resp.Questions = append(resp.Questions, QuestionResponse{
				ID:         q.ID,
				Title:      q.Title,
				AnswerType: q.AnswerType,
				Required:   q.Required,
				Options:    q.Options,
				Table:      q.Table,
				Position:   q.Position,
			})
		}
	}
	return resp
}

func ToEvaluationResponse(e *domain.Evaluation) *EvaluationResponse {
	if e == nil {
		return nil
	}
	return &EvaluationResponse{ID: e.ID, Verdict: e.Verdict, Results: e.Results}
}

func ToFeedbackResponse(f *domain.Feedback) *FeedbackResponse {
	if f == nil {
		return nil
	}
	return &FeedbackResponse{
		AuthorID:  f.AuthorID,
		Obtained:  f.Obtained,
		Passing:   f.Passing,
		Message:   f.Message,
		CreatedAt: f.CreatedAt,
	}
}

func ToProgressResponse(p *domain.Progress) *ProgressResponse {
	if p == nil {
		return nil
	}
	return &ProgressResponse{
		CourseID:         p.CourseID,
		CompletedQuizzes: p.CompletedQuizzes,
		TotalQuizzes:     p.TotalQuizzes,
		Percentage:       p.Percentage,
		UpdatedAt:        p.UpdatedAt,
	}
}
