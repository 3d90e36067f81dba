package domain

import (
	"strings"
	"time"
)

// AnswerType is the input kind of a question.
type AnswerType string

const (
	AnswerSingleChoice AnswerType = "single_choice"
	AnswerMultiChoice  AnswerType = "multi_choice"
	AnswerText         AnswerType = "text"
	AnswerTextarea     AnswerType = "textarea"
	AnswerTable        AnswerType = "table"
	AnswerFile         AnswerType = "file"
)

// Valid reports whether t is a known answer type.
func (t AnswerType) Valid() bool {
	switch t {
	case AnswerSingleChoice, AnswerMultiChoice, AnswerText, AnswerTextarea, AnswerTable, AnswerFile:
		return true
	}
	return false
}

// QuizKind separates ordinary quizzes from the special assessments that are
// shared across a learner's qualifying enrolments.
type QuizKind string

const (
	QuizKindRegular QuizKind = "regular"
	// QuizKindLLND is the literacy/numeracy diagnostic taken before a course.
	QuizKindLLND QuizKind = "llnd"
	// QuizKindPTR is the pre-training review.
	QuizKindPTR QuizKind = "ptr"
)

// Quiz represents an assessable unit of a topic
type Quiz struct {
	ID                int64
	TopicID           int64
	LessonID          int64
	CourseID          int64
	Title             string
	Kind              QuizKind
	PassingPercentage int // 0 means the quiz is reviewed manually
	AllowedAttempts   int // 0 means unlimited
	HasChecklist      bool
	Questions         []Question
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsSpecial reports whether the quiz is shared across enrolments rather than
// bound to the course it lives in.
func (q *Quiz) IsSpecial() bool {
	return q.Kind == QuizKindLLND || q.Kind == QuizKindPTR
}

// AutoGraded reports whether completed attempts are scored by the system.
func (q *Quiz) AutoGraded() bool {
	return q.PassingPercentage > 0
}

// Family returns the gating rule family of a special quiz.
func (q *Quiz) Family() RuleFamily {
	switch q.Kind {
	case QuizKindLLND:
		return FamilyLLND
	case QuizKindPTR:
		return FamilyPTR
	}
	return ""
}

// Question finds a live question of the quiz by id.
func (q *Quiz) Question(id int64) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id && q.Questions[i].DeletedAt == nil {
			return &q.Questions[i], true
		}
	}
	return nil, false
}

// LiveQuestions returns the non-deleted questions in position order.
func (q *Quiz) LiveQuestions() []Question {
	out := make([]Question, 0, len(q.Questions))
	for _, question := range q.Questions {
		if question.DeletedAt == nil {
			out = append(out, question)
		}
	}
	return out
}

// Validate validates the quiz
func (q *Quiz) Validate() error {
	if q.CourseID == 0 || q.LessonID == 0 || q.TopicID == 0 {
		return NewIntegrityError("quiz is not attached to a course, lesson and topic")
	}
	if q.PassingPercentage < 0 || q.PassingPercentage > 100 {
		return NewIntegrityError("passing percentage must be between 0 and 100")
	}
	return nil
}

// TableInput is the input control used by every cell of a table question.
type TableInput string

const (
	TableInputRadio    TableInput = "radio"
	TableInputCheckbox TableInput = "checkbox"
	TableInputText     TableInput = "text"
)

// TableRow is one row of a table question.
type TableRow struct {
	Key      string `json:"key"`
	Question string `json:"question"`
}

// TableLayout describes the structure of a table question.
type TableLayout struct {
	Input   TableInput `json:"input"`
	Rows    []TableRow `json:"rows"`
	Columns []string   `json:"columns"`
}

// Row finds a row by key.
func (l *TableLayout) Row(key string) (TableRow, bool) {
	for _, r := range l.Rows {
		if r.Key == key {
			return r, true
		}
	}
	return TableRow{}, false
}

// Question represents a single question of a quiz
type Question struct {
	ID            int64        `json:"id"`
	QuizID        int64        `json:"quiz_id"`
	Title         string       `json:"title"`
	AnswerType    AnswerType   `json:"answer_type"`
	Required      bool         `json:"required"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Table         *TableLayout `json:"table,omitempty"`
	Position      int          `json:"position"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty"`
}

// Gradable reports whether the question carries a correct answer.
func (q *Question) Gradable() bool {
	return strings.TrimSpace(q.CorrectAnswer) != ""
}

// Course is the read-only view of a course used for gating.
type Course struct {
	ID         int64
	Title      string
	CategoryID int64
}

// Lesson is a course section in course order.
type Lesson struct {
	ID       int64
	CourseID int64
	Title    string
	Position int
}

// Topic is a lesson section in lesson order.
type Topic struct {
	ID       int64
	LessonID int64
	Title    string
	Position int
}
