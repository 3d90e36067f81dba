package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/repository/models"
	"lms-assessment/internal/util"

	"github.com/jmoiron/sqlx"
)

const attemptColumns = `
		id "id",
		learner_id "learner_id",
		course_id "course_id",
		lesson_id "lesson_id",
		topic_id "topic_id",
		quiz_id "quiz_id",
		course_key "course_key",
		attempt "attempt",
		questions "questions",
		answers "answers",
		system_result "system_result",
		status "status",
		submitted_at "submitted_at",
		accessed_at "accessed_at",
		submitted_ip "submitted_ip",
		version "version",
		created_at "created_at",
		updated_at "updated_at"`

// sqlxAttemptRepository implements domain.AttemptRepository using sqlx.
type sqlxAttemptRepository struct {
	db  DBTX
	now func() time.Time
}

// NewSQLXAttemptRepository creates a new instance of sqlxAttemptRepository.
func NewSQLXAttemptRepository(db *sqlx.DB) domain.AttemptRepository {
	return &sqlxAttemptRepository{db: db, now: time.Now}
}

func (r *sqlxAttemptRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Attempt, error) {
	exec := GetExecutor(ctx, r.db)
	var m models.QuizAttempt
	if err := exec.GetContext(ctx, &m, exec.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainAttempt(&m)
}

// GetAttempt retrieves an attempt by id.
func (r *sqlxAttemptRepository) GetAttempt(ctx context.Context, attemptID string) (*domain.Attempt, error) {
	a, err := r.getOne(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = ?`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt %s: %w", attemptID, err)
	}
	return a, nil
}

// GetOpenAttempt retrieves the in-progress attempt of the key, if any.
func (r *sqlxAttemptRepository) GetOpenAttempt(ctx context.Context, key domain.AttemptKey) (*domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM quiz_attempts
	WHERE learner_id = ? AND quiz_id = ? AND course_key = ? AND system_result = ?`
	a, err := r.getOne(ctx, query, key.LearnerID, key.QuizID, key.CourseID, string(domain.ResultInProgress))
	if err != nil {
		return nil, fmt.Errorf("failed to get open attempt %s: %w", key, err)
	}
	return a, nil
}

// GetLatestAttempt retrieves the highest numbered attempt of the key.
func (r *sqlxAttemptRepository) GetLatestAttempt(ctx context.Context, key domain.AttemptKey) (*domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM quiz_attempts
	WHERE learner_id = ? AND quiz_id = ? AND course_key = ?
	AND attempt = (
		SELECT MAX(attempt) FROM quiz_attempts
		WHERE learner_id = ? AND quiz_id = ? AND course_key = ?
	)`
	a, err := r.getOne(ctx, query,
		key.LearnerID, key.QuizID, key.CourseID,
		key.LearnerID, key.QuizID, key.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest attempt %s: %w", key, err)
	}
	return a, nil
}

// ListAttempts returns every attempt of the key, oldest first.
func (r *sqlxAttemptRepository) ListAttempts(ctx context.Context, key domain.AttemptKey) ([]domain.Attempt, error) {
	exec := GetExecutor(ctx, r.db)
	query := `SELECT ` + attemptColumns + `
	FROM quiz_attempts
	WHERE learner_id = ? AND quiz_id = ? AND course_key = ?
	ORDER BY attempt`
	var rows []models.QuizAttempt
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), key.LearnerID, key.QuizID, key.CourseID); err != nil {
		return nil, fmt.Errorf("failed to list attempts %s: %w", key, err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for i := range rows {
		a, err := toDomainAttempt(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// CreateAttempt inserts a new attempt. A concurrent insert of the same
// attempt number, or of a second open attempt, yields domain.ErrUniqueViolation.
func (r *sqlxAttemptRepository) CreateAttempt(ctx context.Context, attempt *domain.Attempt) error {
	m, err := fromDomainAttempt(attempt)
	if err != nil {
		return err
	}
	if m.Version == 0 {
		m.Version = 1
	}
	query := `INSERT INTO quiz_attempts (
		id, learner_id, course_id, lesson_id, topic_id, quiz_id, course_key, attempt,
		questions, answers, system_result, status, submitted_at, accessed_at,
		submitted_ip, version, created_at, updated_at
	) VALUES (
		:id, :learner_id, :course_id, :lesson_id, :topic_id, :quiz_id, :course_key, :attempt,
		:questions, :answers, :system_result, :status, :submitted_at, :accessed_at,
		:submitted_ip, :version, :created_at, :updated_at
	)`
	if _, err := execNamed(ctx, GetExecutor(ctx, r.db), query, m); err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	attempt.Version = m.Version
	return nil
}

// UpdateAttempt writes the mutable columns when the stored version still
// matches attempt.Version, then bumps attempt.Version.
func (r *sqlxAttemptRepository) UpdateAttempt(ctx context.Context, attempt *domain.Attempt) error {
	m, err := fromDomainAttempt(attempt)
	if err != nil {
		return err
	}
	query := `UPDATE quiz_attempts SET
		answers = :answers,
		system_result = :system_result,
		status = :status,
		submitted_at = :submitted_at,
		accessed_at = :accessed_at,
		submitted_ip = :submitted_ip,
		version = version + 1,
		updated_at = :updated_at
	WHERE id = :id AND version = :version`
	n, err := execNamed(ctx, GetExecutor(ctx, r.db), query, m)
	if err != nil {
		return fmt.Errorf("failed to update attempt %s: %w", attempt.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("attempt %s at version %d: %w", attempt.ID, attempt.Version, domain.ErrStaleWrite)
	}
	attempt.Version++
	return nil
}

// TouchAttempt records an access to the attempt without bumping its version.
func (r *sqlxAttemptRepository) TouchAttempt(ctx context.Context, attemptID string) error {
	exec := GetExecutor(ctx, r.db)
	query := `UPDATE quiz_attempts SET accessed_at = ? WHERE id = ?`
	if _, err := exec.ExecContext(ctx, exec.Rebind(query), r.now(), attemptID); err != nil {
		return fmt.Errorf("failed to touch attempt %s: %w", attemptID, err)
	}
	return nil
}

// HasSatisfactoryAttemptOfKind reports whether the learner passed any quiz of the kind.
func (r *sqlxAttemptRepository) HasSatisfactoryAttemptOfKind(ctx context.Context, learnerID int64, kind domain.QuizKind) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	query := `SELECT COUNT(*)
	FROM quiz_attempts a
	JOIN quizzes q ON q.id = a.quiz_id
	WHERE a.learner_id = ? AND q.kind = ? AND a.status = ?`
	var n int
	if err := exec.GetContext(ctx, &n, exec.Rebind(query), learnerID, string(kind), string(domain.StatusSatisfactory)); err != nil {
		return false, fmt.Errorf("failed to check %s attempts of learner %d: %w", kind, learnerID, err)
	}
	return n > 0, nil
}

func toDomainAttempt(m *models.QuizAttempt) (*domain.Attempt, error) {
	a := &domain.Attempt{
		ID:           m.ID,
		LearnerID:    m.LearnerID,
		CourseID:     m.CourseID,
		LessonID:     m.LessonID,
		TopicID:      m.TopicID,
		QuizID:       m.QuizID,
		CourseKey:    m.CourseKey,
		Number:       m.Attempt,
		SystemResult: domain.SystemResult(m.SystemResult),
		Status:       domain.AttemptStatus(m.Status),
		SubmittedAt:  util.NullTimeToPtr(m.SubmittedAt),
		AccessedAt:   util.NullTimeToPtr(m.AccessedAt),
		SubmittedIP:  m.SubmittedIP.String,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(m.Questions), &a.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions of attempt %s: %w", m.ID, err)
	}
	a.Answers = domain.AnswerMap{}
	if m.Answers != "" {
		if err := json.Unmarshal([]byte(m.Answers), &a.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers of attempt %s: %w", m.ID, err)
		}
	}
	return a, nil
}

func fromDomainAttempt(a *domain.Attempt) (*models.QuizAttempt, error) {
	questions := a.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	qs, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode questions of attempt %s: %w", a.ID, err)
	}
	answers := a.Answers
	if answers == nil {
		answers = domain.AnswerMap{}
	}
	as, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers of attempt %s: %w", a.ID, err)
	}
	return &models.QuizAttempt{
		ID:           a.ID,
		LearnerID:    a.LearnerID,
		CourseID:     a.CourseID,
		LessonID:     a.LessonID,
		TopicID:      a.TopicID,
		QuizID:       a.QuizID,
		CourseKey:    a.CourseKey,
		Attempt:      a.Number,
		Questions:    string(qs),
		Answers:      string(as),
		SystemResult: string(a.SystemResult),
		Status:       string(a.Status),
		SubmittedAt:  util.TimePtrToNullTime(a.SubmittedAt),
		AccessedAt:   util.TimePtrToNullTime(a.AccessedAt),
		SubmittedIP:  util.StringToNullString(a.SubmittedIP),
		Version:      a.Version,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}, nil
}
