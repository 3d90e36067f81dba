package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/repository/models"
	"lms-assessment/internal/util"

	"github.com/jmoiron/sqlx"
)

// sqlxEvaluationRepository implements domain.EvaluationRepository using sqlx.
type sqlxEvaluationRepository struct {
	db DBTX
}

// NewSQLXEvaluationRepository creates a new instance of sqlxEvaluationRepository.
func NewSQLXEvaluationRepository(db *sqlx.DB) domain.EvaluationRepository {
	return &sqlxEvaluationRepository{db: db}
}

// CreateEvaluation inserts the write-once grading record of an attempt.
func (r *sqlxEvaluationRepository) CreateEvaluation(ctx context.Context, e *domain.Evaluation) error {
	results := e.Results
	if results == nil {
		results = map[int64]domain.QuestionVerdict{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation results: %w", err)
	}
	m := models.Evaluation{
		ID:        e.ID,
		AttemptID: e.AttemptID,
		LearnerID: e.LearnerID,
		QuizID:    e.QuizID,
		Results:   string(raw),
		Verdict:   string(e.Verdict),
		CreatedAt: e.CreatedAt,
	}
	query := `INSERT INTO evaluations (id, attempt_id, learner_id, quiz_id, results, verdict, created_at)
	VALUES (:id, :attempt_id, :learner_id, :quiz_id, :results, :verdict, :created_at)`
	if _, err := execNamed(ctx, GetExecutor(ctx, r.db), query, m); err != nil {
		return fmt.Errorf("failed to create evaluation for attempt %s: %w", e.AttemptID, err)
	}
	return nil
}

// GetEvaluationByAttempt returns the evaluation of an attempt, or nil.
func (r *sqlxEvaluationRepository) GetEvaluationByAttempt(ctx context.Context, attemptID string) (*domain.Evaluation, error) {
	exec := GetExecutor(ctx, r.db)
	var m models.Evaluation
	query := `SELECT
		id "id",
		attempt_id "attempt_id",
		learner_id "learner_id",
		quiz_id "quiz_id",
		results "results",
		verdict "verdict",
		created_at "created_at"
	FROM evaluations
	WHERE attempt_id = ?`
	if err := exec.GetContext(ctx, &m, exec.Rebind(query), attemptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluation for attempt %s: %w", attemptID, err)
	}

	e := &domain.Evaluation{
		ID:        m.ID,
		AttemptID: m.AttemptID,
		LearnerID: m.LearnerID,
		QuizID:    m.QuizID,
		Verdict:   domain.Verdict(m.Verdict),
		CreatedAt: m.CreatedAt,
	}
	if err := json.Unmarshal([]byte(m.Results), &e.Results); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation results of attempt %s: %w", attemptID, err)
	}
	return e, nil
}

// CreateFeedback inserts the feedback of an attempt.
func (r *sqlxEvaluationRepository) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	m := models.Feedback{
		ID:        f.ID,
		AttemptID: f.AttemptID,
		LearnerID: f.LearnerID,
		QuizID:    f.QuizID,
		CourseID:  f.CourseID,
		AuthorID:  f.AuthorID,
		Obtained:  f.Obtained,
		Passing:   f.Passing,
		Message:   util.StringToNullString(f.Message),
		CreatedAt: f.CreatedAt,
	}
	query := `INSERT INTO feedbacks (id, attempt_id, learner_id, quiz_id, course_id, author_id, obtained, passing, message, created_at)
	VALUES (:id, :attempt_id, :learner_id, :quiz_id, :course_id, :author_id, :obtained, :passing, :message, :created_at)`
	if _, err := execNamed(ctx, GetExecutor(ctx, r.db), query, m); err != nil {
		return fmt.Errorf("failed to create feedback for attempt %s: %w", f.AttemptID, err)
	}
	return nil
}

// GetFeedbackByAttempt returns the feedback of an attempt, or nil.
func (r *sqlxEvaluationRepository) GetFeedbackByAttempt(ctx context.Context, attemptID string) (*domain.Feedback, error) {
	exec := GetExecutor(ctx, r.db)
	var m models.Feedback
	query := `SELECT
		id "id",
		attempt_id "attempt_id",
		learner_id "learner_id",
		quiz_id "quiz_id",
		course_id "course_id",
		author_id "author_id",
		obtained "obtained",
		passing "passing",
		message "message",
		created_at "created_at"
	FROM feedbacks
	WHERE attempt_id = ?`
	if err := exec.GetContext(ctx, &m, exec.Rebind(query), attemptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get feedback for attempt %s: %w", attemptID, err)
	}
	return &domain.Feedback{
		ID:        m.ID,
		AttemptID: m.AttemptID,
		LearnerID: m.LearnerID,
		QuizID:    m.QuizID,
		CourseID:  m.CourseID,
		AuthorID:  m.AuthorID,
		Obtained:  m.Obtained,
		Passing:   m.Passing,
		Message:   m.Message.String,
		CreatedAt: m.CreatedAt,
	}, nil
}
