package domain

import "time"

// Verdict of a single graded question or of a whole evaluation.
type Verdict string

const (
	VerdictCorrect        Verdict = "correct"
	VerdictIncorrect      Verdict = "incorrect"
	VerdictSatisfactory   Verdict = "satisfactory"
	VerdictUnsatisfactory Verdict = "unsatisfactory"
)

// MarkedBySystem annotates verdicts produced by the auto-grader.
const MarkedBySystem = "marked by system"

// QuestionVerdict is the grading outcome for one question.
type QuestionVerdict struct {
	Verdict  Verdict `json:"verdict"`
	MarkedBy string  `json:"marked_by"`
}

// Evaluation is the write-once auto-grading record of an attempt.
type Evaluation struct {
	ID        string
	AttemptID string
	LearnerID int64
	QuizID    int64
	Results   map[int64]QuestionVerdict
	Verdict   Verdict
	CreatedAt time.Time
}

// CorrectCount counts the questions graded correct.
func (e *Evaluation) CorrectCount() int {
	n := 0
	for _, r := range e.Results {
		if r.Verdict == VerdictCorrect {
			n++
		}
	}
	return n
}

// Feedback is a message attached to a learner's quiz result.
type Feedback struct {
	ID        string
	AttemptID string
	LearnerID int64
	QuizID    int64
	CourseID  int64
	AuthorID  int64 // 0 for system-authored feedback
	Obtained  float64
	Passing   int
	Message   string
	CreatedAt time.Time
}
