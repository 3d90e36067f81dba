package domain

import (
	"strings"
	"time"
)

// NodeType is the kind of course content tracked in progress.
type NodeType string

const (
	NodeLesson NodeType = "lesson"
	NodeTopic  NodeType = "topic"
	NodeQuiz   NodeType = "quiz"
	// NodeRequirement records a special quiz satisfied on behalf of a
	// course. It never counts toward the course percentage.
	NodeRequirement NodeType = "required"
)

// ProgressNode is a completed piece of course content.
type ProgressNode struct {
	LearnerID   int64
	CourseID    int64
	Type        NodeType
	NodeID      int64
	CompletedAt time.Time
}

// Progress is the course-level snapshot of a learner.
type Progress struct {
	LearnerID        int64
	CourseID         int64
	CompletedQuizzes int
	TotalQuizzes     int
	Percentage       float64
	UpdatedAt        time.Time
}

// Competency marks a lesson whose grading criteria are all satisfied.
type Competency struct {
	LearnerID   int64
	CourseID    int64
	LessonID    int64
	CompletedAt time.Time
	UpdatedAt   time.Time
}

// Enrolment is a learner's registration in a course.
type Enrolment struct {
	ID          int64
	LearnerID   int64
	CourseID    int64
	CourseTitle string
	CategoryID  int64
	IsMain      bool
	Delisted    bool
}

// Qualifies reports whether the enrolment counts for special quizzes: it is
// not delisted and its course is not a secondary-term variant.
func (e Enrolment) Qualifies(secondaryTermMarkers []string) bool {
	if e.Delisted {
		return false
	}
	title := strings.ToLower(e.CourseTitle)
	for _, marker := range secondaryTermMarkers {
		if marker != "" && strings.Contains(title, strings.ToLower(marker)) {
			return false
		}
	}
	return true
}

// RuleFamily groups gating rules that share a category exclusion list.
type RuleFamily string

const (
	FamilyLLND RuleFamily = "llnd"
	FamilyPTR  RuleFamily = "ptr"
)

// GatingPolicy is resolved once per request and read by every gating rule.
type GatingPolicy struct {
	Excluded             map[RuleFamily]map[int64]struct{}
	SecondaryTermMarkers []string
}

// NewGatingPolicy builds a policy from per-family category id lists.
func NewGatingPolicy(llnd, ptr []int64, markers []string) GatingPolicy {
	toSet := func(ids []int64) map[int64]struct{} {
		s := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			s[id] = struct{}{}
		}
		return s
	}
	return GatingPolicy{
		Excluded: map[RuleFamily]map[int64]struct{}{
			FamilyLLND: toSet(llnd),
			FamilyPTR:  toSet(ptr),
		},
		SecondaryTermMarkers: markers,
	}
}

// IsExcluded reports whether the category skips the family's gating rules.
func (p GatingPolicy) IsExcluded(family RuleFamily, categoryID int64) bool {
	set, ok := p.Excluded[family]
	if !ok {
		return false
	}
	_, excluded := set[categoryID]
	return excluded
}

// QualifyingEnrolments filters enrolments down to those that qualify.
func (p GatingPolicy) QualifyingEnrolments(enrolments []Enrolment) []Enrolment {
	out := make([]Enrolment, 0, len(enrolments))
	for _, e := range enrolments {
		if e.Qualifies(p.SecondaryTermMarkers) {
			out = append(out, e)
		}
	}
	return out
}
