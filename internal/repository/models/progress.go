package models

import (
	"database/sql"
	"time"
)

// ProgressItem is a row of progress_items
type ProgressItem struct {
	LearnerID   int64     `db:"learner_id"`
	CourseID    int64     `db:"course_id"`
	NodeType    string    `db:"node_type"`
	NodeID      int64     `db:"node_id"`
	CompletedAt time.Time `db:"completed_at"`
}

// CourseProgress is a row of course_progress
type CourseProgress struct {
	LearnerID        int64     `db:"learner_id"`
	CourseID         int64     `db:"course_id"`
	CompletedQuizzes int       `db:"completed_quizzes"`
	TotalQuizzes     int       `db:"total_quizzes"`
	Percentage       float64   `db:"percentage"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Competency is a row of competencies
type Competency struct {
	LearnerID   int64     `db:"learner_id"`
	CourseID    int64     `db:"course_id"`
	LessonID    int64     `db:"lesson_id"`
	CompletedAt time.Time `db:"completed_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Notification is a row of notifications
type Notification struct {
	ID        string       `db:"id"`
	LearnerID int64        `db:"learner_id"`
	AttemptID string       `db:"attempt_id"`
	Kind      string       `db:"kind"`
	IsRead    int          `db:"is_read"`
	CreatedAt time.Time    `db:"created_at"`
	ReadAt    sql.NullTime `db:"read_at"`
}

// EventLog is a row of event_log
type EventLog struct {
	ID        string    `db:"id"`
	EventType string    `db:"event_type"`
	EventKey  string    `db:"event_key"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}
