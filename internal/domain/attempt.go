package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SystemResult is the engine-side lifecycle of an attempt.
type SystemResult string

const (
	ResultInProgress SystemResult = "INPROGRESS"
	ResultCompleted  SystemResult = "COMPLETED"
	ResultEvaluated  SystemResult = "EVALUATED"
	ResultMarked     SystemResult = "MARKED"
)

// AttemptStatus is the learner-facing status of an attempt.
type AttemptStatus string

const (
	StatusAttempting   AttemptStatus = "ATTEMPTING"
	StatusSubmitted    AttemptStatus = "SUBMITTED"
	StatusSatisfactory AttemptStatus = "SATISFACTORY"
	StatusFail         AttemptStatus = "FAIL"
	StatusReturned     AttemptStatus = "RETURNED"
)

// AttemptKey identifies the attempt series of a learner on a quiz. CourseID
// is zero for quizzes that are not course-scoped.
type AttemptKey struct {
	LearnerID int64
	QuizID    int64
	CourseID  int64
}

func (k AttemptKey) String() string {
	return fmt.Sprintf("%d:%d:%d", k.LearnerID, k.QuizID, k.CourseID)
}

// KeyFor builds the attempt key of a learner on a quiz taken for courseID.
func KeyFor(learnerID int64, quiz *Quiz, courseID int64) AttemptKey {
	key := AttemptKey{LearnerID: learnerID, QuizID: quiz.ID}
	if quiz.IsSpecial() {
		key.CourseID = courseID
	}
	return key
}

// AnswerMap holds the submitted answer of each question, keyed by question id.
// It is treated as immutable: Merge returns a new map.
type AnswerMap map[int64]json.RawMessage

// Merge returns a copy of m with questionID set to answer. The last write for
// a question wins.
func (m AnswerMap) Merge(questionID int64, answer json.RawMessage) AnswerMap {
	out := make(AnswerMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[questionID] = append(json.RawMessage(nil), answer...)
	return out
}

// Has reports whether a non-null answer exists for the question.
func (m AnswerMap) Has(questionID int64) bool {
	v, ok := m[questionID]
	return ok && len(bytes.TrimSpace(v)) > 0 && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Attempt is one learner's pass through a quiz.
type Attempt struct {
	ID           string
	LearnerID    int64
	CourseID     int64
	LessonID     int64
	TopicID      int64
	QuizID       int64
	CourseKey    int64
	Number       int
	Questions    []Question
	Answers      AnswerMap
	SystemResult SystemResult
	Status       AttemptStatus
	SubmittedAt  *time.Time
	AccessedAt   *time.Time
	SubmittedIP  string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAttempt starts attempt number n of the key, snapshotting the quiz's
// current live questions.
func NewAttempt(id string, key AttemptKey, quiz *Quiz, courseID int64, n int, now time.Time) *Attempt {
	return &Attempt{
		ID:           id,
		LearnerID:    key.LearnerID,
		CourseID:     courseID,
		LessonID:     quiz.LessonID,
		TopicID:      quiz.TopicID,
		QuizID:       quiz.ID,
		CourseKey:    key.CourseID,
		Number:       n,
		Questions:    quiz.LiveQuestions(),
		Answers:      AnswerMap{},
		SystemResult: ResultInProgress,
		Status:       StatusAttempting,
		AccessedAt:   &now,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Key returns the attempt series key.
func (a *Attempt) Key() AttemptKey {
	return AttemptKey{LearnerID: a.LearnerID, QuizID: a.QuizID, CourseID: a.CourseKey}
}

// IsOpen reports whether answers may still be merged into the attempt.
func (a *Attempt) IsOpen() bool {
	return a.SystemResult == ResultInProgress
}

// IsTerminalSuccess reports whether the attempt finished and is either
// accepted or awaiting a result. Such an attempt blocks new attempts.
func (a *Attempt) IsTerminalSuccess() bool {
	switch a.SystemResult {
	case ResultCompleted, ResultEvaluated, ResultMarked:
	default:
		return false
	}
	switch a.Status {
	case StatusFail, StatusReturned, StatusAttempting:
		return false
	}
	return true
}

// IsRetryable reports whether the attempt is closed with an unsatisfactory
// outcome, so the next submission starts a new attempt.
func (a *Attempt) IsRetryable() bool {
	return !a.IsOpen() && (a.Status == StatusFail || a.Status == StatusReturned)
}

// IsSatisfactory reports whether the attempt was accepted.
func (a *Attempt) IsSatisfactory() bool {
	return a.Status == StatusSatisfactory
}

// SnapshotQuestion finds a question in the attempt snapshot, deleted or not.
func (a *Attempt) SnapshotQuestion(id int64) (*Question, bool) {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

// AnsweredCount is the number of snapshot questions that carry an answer.
func (a *Attempt) AnsweredCount() int {
	n := 0
	for _, q := range a.Questions {
		if a.Answers.Has(q.ID) {
			n++
		}
	}
	return n
}

// AllAnswered reports whether every snapshot question has an answer.
func (a *Attempt) AllAnswered() bool {
	return len(a.Questions) > 0 && a.AnsweredCount() >= len(a.Questions)
}

// NextQuestionID returns the first snapshot question without an answer.
func (a *Attempt) NextQuestionID() (int64, bool) {
	for _, q := range a.Questions {
		if !a.Answers.Has(q.ID) {
			return q.ID, true
		}
	}
	return 0, false
}

// Submit closes the attempt for manual review.
func (a *Attempt) Submit(now time.Time) {
	a.SystemResult = ResultCompleted
	a.Status = StatusSubmitted
	a.SubmittedAt = &now
	a.UpdatedAt = now
}

// Evaluate closes the attempt with the grader's verdict.
func (a *Attempt) Evaluate(status AttemptStatus, now time.Time) {
	a.SystemResult = ResultEvaluated
	a.Status = status
	a.SubmittedAt = &now
	a.UpdatedAt = now
}

// Mark records a reviewer's verdict on a submitted attempt.
func (a *Attempt) Mark(status AttemptStatus, now time.Time) error {
	if a.SystemResult != ResultCompleted || a.Status != StatusSubmitted {
		return NewInvalidStateError(fmt.Sprintf("attempt %s is %s/%s and cannot be reviewed", a.ID, a.SystemResult, a.Status))
	}
	switch status {
	case StatusSatisfactory, StatusFail, StatusReturned:
	default:
		return NewInvalidInputError(fmt.Sprintf("review status %q is not allowed", status))
	}
	a.SystemResult = ResultMarked
	a.Status = status
	a.UpdatedAt = now
	return nil
}

// AttemptChange is the payload of the status-changed event.
type AttemptChange struct {
	AttemptID    string        `json:"attempt_id"`
	LearnerID    int64         `json:"learner_id"`
	QuizID       int64         `json:"quiz_id"`
	CourseID     int64         `json:"course_id"`
	Attempt      int           `json:"attempt"`
	SystemResult SystemResult  `json:"system_result"`
	Status       AttemptStatus `json:"status"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// ChangeOf builds the status-changed payload for the attempt.
func ChangeOf(a *Attempt, now time.Time) AttemptChange {
	return AttemptChange{
		AttemptID:    a.ID,
		LearnerID:    a.LearnerID,
		QuizID:       a.QuizID,
		CourseID:     a.CourseID,
		Attempt:      a.Number,
		SystemResult: a.SystemResult,
		Status:       a.Status,
		OccurredAt:   now,
	}
}
