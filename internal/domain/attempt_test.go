package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuiz(kind QuizKind) *Quiz {
	deleted := time.Now()
	return &Quiz{
		ID: 5, CourseID: 10, LessonID: 100, TopicID: 1000, Kind: kind, PassingPercentage: 50,
		Questions: []Question{
			{ID: 51, Title: "one", AnswerType: AnswerText, Position: 1},
			{ID: 52, Title: "gone", AnswerType: AnswerText, Position: 2, DeletedAt: &deleted},
			{ID: 53, Title: "two", AnswerType: AnswerText, Position: 3},
		},
	}
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, AttemptKey{LearnerID: 7, QuizID: 5}, KeyFor(7, testQuiz(QuizKindRegular), 10))
	assert.Equal(t, AttemptKey{LearnerID: 7, QuizID: 5, CourseID: 20}, KeyFor(7, testQuiz(QuizKindLLND), 20))
	assert.Equal(t, "7:5:20", KeyFor(7, testQuiz(QuizKindPTR), 20).String())
}

func TestAnswerMap(t *testing.T) {
	m := AnswerMap{51: json.RawMessage(`"a"`)}
	merged := m.Merge(53, json.RawMessage(`"b"`))

	assert.Len(t, m, 1, "merge must not mutate the receiver")
	assert.True(t, merged.Has(51))
	assert.True(t, merged.Has(53))

	merged = merged.Merge(51, json.RawMessage(`"c"`))
	assert.JSONEq(t, `"c"`, string(merged[51]))

	assert.False(t, AnswerMap{1: json.RawMessage(`null`)}.Has(1))
	assert.False(t, AnswerMap{1: json.RawMessage(` `)}.Has(1))
	assert.False(t, AnswerMap{}.Has(1))
}

func TestNewAttempt_SnapshotsLiveQuestions(t *testing.T) {
	now := time.Now()
	quiz := testQuiz(QuizKindRegular)
	a := NewAttempt("a1", KeyFor(7, quiz, 10), quiz, 10, 1, now)

	require.Len(t, a.Questions, 2)
	assert.Equal(t, int64(0), a.CourseKey)
	assert.Equal(t, int64(10), a.CourseID)
	assert.True(t, a.IsOpen())
	assert.Equal(t, StatusAttempting, a.Status)
	assert.Equal(t, 1, a.Version)

	// later catalog edits do not leak into the snapshot
	quiz.Questions[0].Title = "edited"
	assert.Equal(t, "one", a.Questions[0].Title)

	next, ok := a.NextQuestionID()
	assert.True(t, ok)
	assert.Equal(t, int64(51), next)

	a.Answers = a.Answers.Merge(51, json.RawMessage(`"x"`))
	next, _ = a.NextQuestionID()
	assert.Equal(t, int64(53), next)
	assert.False(t, a.AllAnswered())

	a.Answers = a.Answers.Merge(53, json.RawMessage(`"y"`))
	_, ok = a.NextQuestionID()
	assert.False(t, ok)
	assert.True(t, a.AllAnswered())
	assert.Equal(t, 2, a.AnsweredCount())

	_, ok = a.SnapshotQuestion(52)
	assert.False(t, ok)
}

func TestAttempt_StatusPredicates(t *testing.T) {
	tests := []struct {
		result         SystemResult
		status         AttemptStatus
		terminal       bool
		retryable      bool
		satisfactorily bool
	}{
		{ResultInProgress, StatusAttempting, false, false, false},
		{ResultCompleted, StatusSubmitted, true, false, false},
		{ResultEvaluated, StatusSatisfactory, true, false, true},
		{ResultEvaluated, StatusFail, false, true, false},
		{ResultMarked, StatusSatisfactory, true, false, true},
		{ResultMarked, StatusReturned, false, true, false},
		{ResultMarked, StatusFail, false, true, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.result, tt.status), func(t *testing.T) {
			a := &Attempt{SystemResult: tt.result, Status: tt.status}
			assert.Equal(t, tt.terminal, a.IsTerminalSuccess())
			assert.Equal(t, tt.retryable, a.IsRetryable())
			assert.Equal(t, tt.satisfactorily, a.IsSatisfactory())
		})
	}
}

func TestAttempt_Transitions(t *testing.T) {
	now := time.Now()

	a := &Attempt{ID: "a1", SystemResult: ResultInProgress, Status: StatusAttempting}
	err := a.Mark(StatusSatisfactory, now)
	assert.Equal(t, CodeInvalidState, CodeOf(err))

	a.Submit(now)
	assert.Equal(t, ResultCompleted, a.SystemResult)
	assert.Equal(t, StatusSubmitted, a.Status)
	require.NotNil(t, a.SubmittedAt)

	err = a.Mark(StatusAttempting, now)
	assert.Equal(t, CodeInvalidInput, CodeOf(err))
	assert.Equal(t, StatusSubmitted, a.Status)

	require.NoError(t, a.Mark(StatusReturned, now))
	assert.Equal(t, ResultMarked, a.SystemResult)
	assert.True(t, a.IsRetryable())

	// a marked attempt cannot be marked again
	assert.Error(t, a.Mark(StatusSatisfactory, now))

	b := &Attempt{SystemResult: ResultInProgress}
	b.Evaluate(StatusFail, now)
	assert.Equal(t, ResultEvaluated, b.SystemResult)
	assert.Equal(t, StatusFail, b.Status)

	change := ChangeOf(b, now)
	assert.Equal(t, StatusFail, change.Status)
	assert.Equal(t, now, change.OccurredAt)
}

func TestDomainError(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternalError("Failed to load", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to load: db down", err.Error())

	raw, mErr := json.Marshal(NewQuizNotFoundError(3).WithContext("quiz_id", 3))
	require.NoError(t, mErr)
	assert.JSONEq(t, `{"code":"QUIZ_NOT_FOUND","message":"Quiz not found with ID: 3"}`, string(raw))

	wrapped := fmt.Errorf("outer: %w", NewAttemptConflictError(ErrStaleWrite))
	assert.Equal(t, CodeAttemptConflict, CodeOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrStaleWrite)
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	assert.True(t, IsEligibilityCode(CodePrerequisiteNotMet))
	assert.False(t, IsEligibilityCode(CodeAttemptConflict))

	verrs := ValidationErrors{NewMissingFieldError("answer"), NewOutOfRangeError("quizID", -1, 1, 100)}
	assert.Equal(t, "answer: answer is required (and 1 more)", verrs.Error())
}
