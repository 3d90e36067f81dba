package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lms-assessment/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var attemptRowColumns = []string{
	"id", "learner_id", "course_id", "lesson_id", "topic_id", "quiz_id", "course_key", "attempt",
	"questions", "answers", "system_result", "status", "submitted_at", "accessed_at",
	"submitted_ip", "version", "created_at", "updated_at",
}

func sampleAttempt(now time.Time) *domain.Attempt {
	return &domain.Attempt{
		ID: "01HZXATTEMPT", LearnerID: 7, CourseID: 10, LessonID: 100, TopicID: 1000, QuizID: 5,
		Number: 1,
		Questions: []domain.Question{
			{ID: 51, QuizID: 5, Title: "Pick one", AnswerType: domain.AnswerSingleChoice, Options: []string{"a", "b"}, CorrectAnswer: "a"},
		},
		Answers:      domain.AnswerMap{51: json.RawMessage(`"a"`)},
		SystemResult: domain.ResultInProgress,
		Status:       domain.StatusAttempting,
		AccessedAt:   &now,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAttemptMapping_RoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	a := sampleAttempt(now)

	m, err := fromDomainAttempt(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"51":"a"}`, m.Answers)
	assert.False(t, m.SubmittedAt.Valid)
	assert.False(t, m.SubmittedIP.Valid)

	back, err := toDomainAttempt(m)
	require.NoError(t, err)
	assert.Equal(t, a, back)
}

func TestAttemptRepository_GetLatestAttempt(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXAttemptRepository(db)
	now := time.Now().Truncate(time.Second)
	key := domain.AttemptKey{LearnerID: 7, QuizID: 5, CourseID: 0}

	mock.ExpectQuery(`FROM quiz_attempts\s+WHERE learner_id = \? AND quiz_id = \? AND course_key = \?\s+AND attempt = \(\s+SELECT MAX\(attempt\)`).
		WithArgs(int64(7), int64(5), int64(0), int64(7), int64(5), int64(0)).
		WillReturnRows(sqlmock.NewRows(attemptRowColumns).AddRow(
			"a2", 7, 10, 100, 1000, 5, 0, 2,
			`[{"id":51,"quiz_id":5,"title":"Pick one","answer_type":"single_choice","required":true,"position":1}]`,
			`{"51":"b"}`, "EVALUATED", "FAIL", now, now, "10.0.0.1", 3, now, now))

	a, err := repo.GetLatestAttempt(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, 2, a.Number)
	assert.Equal(t, domain.StatusFail, a.Status)
	assert.True(t, a.IsRetryable())
	assert.Equal(t, 3, a.Version)
	assert.Equal(t, "10.0.0.1", a.SubmittedIP)
	assert.JSONEq(t, `"b"`, string(a.Answers[51]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepository_GetOpenAttempt_None(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXAttemptRepository(db)

	mock.ExpectQuery(`AND system_result = \?`).
		WithArgs(int64(7), int64(5), int64(10), "INPROGRESS").
		WillReturnError(sql.ErrNoRows)

	a, err := repo.GetOpenAttempt(context.Background(), domain.AttemptKey{LearnerID: 7, QuizID: 5, CourseID: 10})
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestAttemptRepository_CreateAttempt_UniqueViolation(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXAttemptRepository(db)

	mock.ExpectExec(`INSERT INTO quiz_attempts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_quiz_attempts_open"})

	err := repo.CreateAttempt(context.Background(), sampleAttempt(time.Now()))
	assert.ErrorIs(t, err, domain.ErrUniqueViolation)
}

func TestAttemptRepository_UpdateAttempt(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXAttemptRepository(db)
	a := sampleAttempt(time.Now())

	mock.ExpectExec(`UPDATE quiz_attempts SET .+version = version \+ 1.+WHERE id = \? AND version = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateAttempt(context.Background(), a))
	assert.Equal(t, 2, a.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepository_UpdateAttempt_Stale(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXAttemptRepository(db)
	a := sampleAttempt(time.Now())

	mock.ExpectExec(`UPDATE quiz_attempts SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAttempt(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrStaleWrite)
	assert.Equal(t, 1, a.Version)
}

func TestAttemptRepository_HasSatisfactoryAttemptOfKind(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSQLXAttemptRepository(db)

	mock.ExpectQuery(`JOIN quizzes q ON q.id = a.quiz_id`).
		WithArgs(int64(7), "llnd", "SATISFACTORY").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`JOIN quizzes q ON q.id = a.quiz_id`).
		WillReturnError(errors.New("db down"))

	ok, err := repo.HasSatisfactoryAttemptOfKind(context.Background(), 7, domain.QuizKindLLND)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.HasSatisfactoryAttemptOfKind(context.Background(), 7, domain.QuizKindLLND)
	assert.Error(t, err)
}
