package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"
	"lms-assessment/internal/util"

	"go.uber.org/zap"
)

// GradingOutcome is the result of auto-grading a completed attempt.
type GradingOutcome struct {
	Status     domain.AttemptStatus
	Score      float64
	Correct    int
	Evaluation *domain.Evaluation
	Feedback   *domain.Feedback
}

// Grader scores completed attempts of auto-graded quizzes.
type Grader struct {
	newID func() string
	now   func() time.Time
}

// NewGrader creates a new Grader
func NewGrader() *Grader {
	return &Grader{newID: util.NewULID, now: time.Now}
}

// Evaluate compares every gradable snapshot question against its correct answer.
// The score is taken over all snapshot questions, so ungradable ones count
// as not correct.
func (g *Grader) Evaluate(quiz *domain.Quiz, attempt *domain.Attempt) *GradingOutcome {
	now := g.now()
	results := make(map[int64]domain.QuestionVerdict)
	correct := 0

	for i := range attempt.Questions {
		q := &attempt.Questions[i]
		if !q.Gradable() {
			continue
		}
		ok, err := answerMatches(q, attempt.Answers[q.ID])
		if err != nil {
			logger.Get().Warn("Skipping question with malformed correct answer",
				zap.Int64("quiz_id", quiz.ID),
				zap.Int64("question_id", q.ID),
				zap.Error(err))
			continue
		}
		verdict := domain.VerdictIncorrect
		if ok {
			verdict = domain.VerdictCorrect
			correct++
		}
		results[q.ID] = domain.QuestionVerdict{Verdict: verdict, MarkedBy: domain.MarkedBySystem}
	}

	score := 0.0
	if n := len(attempt.Questions); n > 0 {
		score = float64(correct) / float64(n) * 100
	}
	score = math.Round(score*100) / 100

	status := domain.StatusFail
	verdict := domain.VerdictUnsatisfactory
	if correct > 0 && score >= float64(quiz.PassingPercentage) {
		status = domain.StatusSatisfactory
		verdict = domain.VerdictSatisfactory
	}

	return &GradingOutcome{
		Status:  status,
		Score:   score,
		Correct: correct,
		Evaluation: &domain.Evaluation{
			ID:        g.newID(),
			AttemptID: attempt.ID,
			LearnerID: attempt.LearnerID,
			QuizID:    attempt.QuizID,
			Results:   results,
			Verdict:   verdict,
			CreatedAt: now,
		},
		Feedback: &domain.Feedback{
			ID:        g.newID(),
			AttemptID: attempt.ID,
			LearnerID: attempt.LearnerID,
			QuizID:    attempt.QuizID,
			CourseID:  attempt.CourseID,
			Obtained:  score,
			Passing:   quiz.PassingPercentage,
			Message:   feedbackMessage(status, correct, len(attempt.Questions), score, quiz.PassingPercentage),
			CreatedAt: now,
		},
	}
}

func feedbackMessage(status domain.AttemptStatus, correct, total int, score float64, passing int) string {
	msg := fmt.Sprintf("You answered %d of %d questions correctly (%s%%). The passing mark is %d%%.",
		correct, total, strconv.FormatFloat(score, 'f', -1, 64), passing)
	if status == domain.StatusSatisfactory {
		return msg + " Result: satisfactory."
	}
	return msg + " Result: not yet satisfactory, you may attempt the assessment again."
}

// answerMatches reports whether the submitted answer equals the question's
// correct answer. An error means the correct answer itself is malformed.
func answerMatches(q *domain.Question, submitted json.RawMessage) (bool, error) {
	if q.AnswerType == domain.AnswerMultiChoice {
		want, err := decodeCorrectSet(q.CorrectAnswer)
		if err != nil {
			return false, err
		}
		got, err := decodeValueList(submitted)
		if err != nil {
			return false, nil
		}
		return sameSet(want, got), nil
	}

	want := strings.TrimSpace(q.CorrectAnswer)
	got, err := decodeScalar(submitted)
	if err != nil {
		return false, nil
	}
	return scalarEqual(want, got), nil
}

// decodeCorrectSet reads a multi-choice correct answer, stored as a JSON array.
func decodeCorrectSet(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") {
		return nil, fmt.Errorf("multi-choice correct answer is not a list: %q", raw)
	}
	values, err := decodeValueList(json.RawMessage(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode multi-choice correct answer: %w", err)
	}
	return values, nil
}

// decodeScalar reads a JSON string, number or bool as text.
func decodeScalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("empty answer")
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("answer is not a scalar value")
}

// decodeValueList reads a JSON array of scalars. A lone scalar is treated as a
// one-element list.
func decodeValueList(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("empty answer")
	}
	if raw[0] != '[' {
		v, err := decodeScalar(raw)
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		v, err := decodeScalar(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// scalarEqual compares numerically when both sides are numbers and as trimmed
// text otherwise.
func scalarEqual(want, got string) bool {
	want, got = strings.TrimSpace(want), strings.TrimSpace(got)
	wf, werr := strconv.ParseFloat(want, 64)
	gf, gerr := strconv.ParseFloat(got, 64)
	if werr == nil && gerr == nil {
		return wf == gf
	}
	return want == got
}

// sameSet compares two lists as sets, ignoring order and duplicates.
func sameSet(want, got []string) bool {
	ws := make(map[string]struct{}, len(want))
	for _, w := range want {
		ws[strings.TrimSpace(w)] = struct{}{}
	}
	gs := make(map[string]struct{}, len(got))
	for _, g := range got {
		gs[strings.TrimSpace(g)] = struct{}{}
	}
	if len(ws) != len(gs) {
		return false
	}
	for k := range ws {
		if _, ok := gs[k]; !ok {
			return false
		}
	}
	return true
}
