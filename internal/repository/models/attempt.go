package models

import (
	"database/sql"
	"time"
)

// QuizAttempt is a row of quiz_attempts. Questions and Answers hold the JSON
// snapshot and answer map.
type QuizAttempt struct {
	ID           string         `db:"id"`
	LearnerID    int64          `db:"learner_id"`
	CourseID     int64          `db:"course_id"`
	LessonID     int64          `db:"lesson_id"`
	TopicID      int64          `db:"topic_id"`
	QuizID       int64          `db:"quiz_id"`
	CourseKey    int64          `db:"course_key"`
	Attempt      int            `db:"attempt"`
	Questions    string         `db:"questions"`
	Answers      string         `db:"answers"`
	SystemResult string         `db:"system_result"`
	Status       string         `db:"status"`
	SubmittedAt  sql.NullTime   `db:"submitted_at"`
	AccessedAt   sql.NullTime   `db:"accessed_at"`
	SubmittedIP  sql.NullString `db:"submitted_ip"`
	Version      int            `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Evaluation is a row of evaluations
type Evaluation struct {
	ID        string    `db:"id"`
	AttemptID string    `db:"attempt_id"`
	LearnerID int64     `db:"learner_id"`
	QuizID    int64     `db:"quiz_id"`
	Results   string    `db:"results"`
	Verdict   string    `db:"verdict"`
	CreatedAt time.Time `db:"created_at"`
}

// Feedback is a row of feedbacks
type Feedback struct {
	ID        string         `db:"id"`
	AttemptID string         `db:"attempt_id"`
	LearnerID int64          `db:"learner_id"`
	QuizID    int64          `db:"quiz_id"`
	CourseID  int64          `db:"course_id"`
	AuthorID  int64          `db:"author_id"`
	Obtained  float64        `db:"obtained"`
	Passing   int            `db:"passing"`
	Message   sql.NullString `db:"message"`
	CreatedAt time.Time      `db:"created_at"`
}
