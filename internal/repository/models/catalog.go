package models

import (
	"database/sql"
	"time"
)

// Course is a row of courses
type Course struct {
	ID         int64  `db:"id"`
	Title      string `db:"title"`
	CategoryID int64  `db:"category_id"`
}

// Lesson is a row of lessons
type Lesson struct {
	ID       int64  `db:"id"`
	CourseID int64  `db:"course_id"`
	Title    string `db:"title"`
	Position int    `db:"position"`
}

// Topic is a row of topics
type Topic struct {
	ID       int64  `db:"id"`
	LessonID int64  `db:"lesson_id"`
	Title    string `db:"title"`
	Position int    `db:"position"`
}

// Quiz is a row of quizzes
type Quiz struct {
	ID                int64     `db:"id"`
	CourseID          int64     `db:"course_id"`
	LessonID          int64     `db:"lesson_id"`
	TopicID           int64     `db:"topic_id"`
	Title             string    `db:"title"`
	Kind              string    `db:"kind"`
	PassingPercentage int       `db:"passing_percentage"`
	AllowedAttempts   int       `db:"allowed_attempts"`
	HasChecklist      int       `db:"has_checklist"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Question is a row of questions. TableLayout holds the JSON layout of
// table questions.
type Question struct {
	ID            int64          `db:"id"`
	QuizID        int64          `db:"quiz_id"`
	Title         string         `db:"title"`
	AnswerType    string         `db:"answer_type"`
	Required      int            `db:"required"`
	Options       StringSlice    `db:"option_list"`
	CorrectAnswer sql.NullString `db:"correct_answer"`
	TableLayout   sql.NullString `db:"table_layout"`
	Position      int            `db:"position"`
	DeletedAt     sql.NullTime   `db:"deleted_at"`
}

// Enrolment is a row of enrolments joined with its course.
type Enrolment struct {
	ID          int64  `db:"id"`
	LearnerID   int64  `db:"learner_id"`
	CourseID    int64  `db:"course_id"`
	CourseTitle string `db:"course_title"`
	CategoryID  int64  `db:"category_id"`
	IsMain      int    `db:"is_main"`
	Delisted    int    `db:"delisted"`
}
