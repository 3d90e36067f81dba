package service

import (
	"context"
	"sort"
	"sync"

	"lms-assessment/internal/domain"
)

// memCatalog is a fixed course structure.
type memCatalog struct {
	quizzes map[int64]*domain.Quiz
	courses map[int64]*domain.Course
	lessons map[int64][]domain.Lesson // by course
	topics  map[int64][]domain.Topic  // by lesson
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		quizzes: map[int64]*domain.Quiz{},
		courses: map[int64]*domain.Course{},
		lessons: map[int64][]domain.Lesson{},
		topics:  map[int64][]domain.Topic{},
	}
}

func (c *memCatalog) GetQuiz(_ context.Context, quizID int64) (*domain.Quiz, error) {
	q, ok := c.quizzes[quizID]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (c *memCatalog) GetCourse(_ context.Context, courseID int64) (*domain.Course, error) {
	return c.courses[courseID], nil
}

func (c *memCatalog) GetLessons(_ context.Context, courseID int64) ([]domain.Lesson, error) {
	return c.lessons[courseID], nil
}

func (c *memCatalog) GetTopics(_ context.Context, lessonID int64) ([]domain.Topic, error) {
	return c.topics[lessonID], nil
}

func (c *memCatalog) GetQuizzesByLesson(_ context.Context, lessonID int64) ([]domain.Quiz, error) {
	var out []domain.Quiz
	for _, q := range c.quizzes {
		if q.LessonID == lessonID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memCatalog) CountQuizzesByCourse(_ context.Context, courseID int64) (int, error) {
	n := 0
	for _, q := range c.quizzes {
		if q.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// memAttempts enforces the same uniqueness rules as the SQL schema.
type memAttempts struct {
	mu       sync.Mutex
	attempts []*domain.Attempt
	touched  []string
	kinds    map[int64]domain.QuizKind // quiz id -> kind
}

func cloneAttempt(a *domain.Attempt) *domain.Attempt {
	cp := *a
	cp.Answers = make(domain.AnswerMap, len(a.Answers))
	for k, v := range a.Answers {
		cp.Answers[k] = v
	}
	cp.Questions = append([]domain.Question(nil), a.Questions...)
	return &cp
}

func (r *memAttempts) GetAttempt(_ context.Context, attemptID string) (*domain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.ID == attemptID {
			return cloneAttempt(a), nil
		}
	}
	return nil, nil
}

func (r *memAttempts) GetOpenAttempt(_ context.Context, key domain.AttemptKey) (*domain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.Key() == key && a.IsOpen() {
			return cloneAttempt(a), nil
		}
	}
	return nil, nil
}

func (r *memAttempts) GetLatestAttempt(_ context.Context, key domain.AttemptKey) (*domain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Attempt
	for _, a := range r.attempts {
		if a.Key() == key && (latest == nil || a.Number > latest.Number) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneAttempt(latest), nil
}

func (r *memAttempts) ListAttempts(_ context.Context, key domain.AttemptKey) ([]domain.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attempt
	for _, a := range r.attempts {
		if a.Key() == key {
			out = append(out, *cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memAttempts) CreateAttempt(_ context.Context, attempt *domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.Key() != attempt.Key() {
			continue
		}
		if a.Number == attempt.Number || (a.IsOpen() && attempt.IsOpen()) {
			return domain.ErrUniqueViolation
		}
	}
	r.attempts = append(r.attempts, cloneAttempt(attempt))
	return nil
}

func (r *memAttempts) UpdateAttempt(_ context.Context, attempt *domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.attempts {
		if a.ID != attempt.ID {
			continue
		}
		if a.Version != attempt.Version {
			return domain.ErrStaleWrite
		}
		attempt.Version++
		r.attempts[i] = cloneAttempt(attempt)
		return nil
	}
	return domain.ErrStaleWrite
}

func (r *memAttempts) TouchAttempt(_ context.Context, attemptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched = append(r.touched, attemptID)
	return nil
}

func (r *memAttempts) HasSatisfactoryAttemptOfKind(_ context.Context, learnerID int64, kind domain.QuizKind) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.LearnerID == learnerID && a.IsSatisfactory() && r.kinds[a.QuizID] == kind {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAttempts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

type memEvaluations struct {
	mu          sync.Mutex
	evaluations map[string]*domain.Evaluation
	feedbacks   map[string]*domain.Feedback
}

func newMemEvaluations() *memEvaluations {
	return &memEvaluations{evaluations: map[string]*domain.Evaluation{}, feedbacks: map[string]*domain.Feedback{}}
}

func (r *memEvaluations) CreateEvaluation(_ context.Context, e *domain.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.evaluations[e.AttemptID]; dup {
		return domain.ErrUniqueViolation
	}
	r.evaluations[e.AttemptID] = e
	return nil
}

func (r *memEvaluations) GetEvaluationByAttempt(_ context.Context, attemptID string) (*domain.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evaluations[attemptID], nil
}

func (r *memEvaluations) CreateFeedback(_ context.Context, f *domain.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.feedbacks[f.AttemptID]; dup {
		return domain.ErrUniqueViolation
	}
	r.feedbacks[f.AttemptID] = f
	return nil
}

func (r *memEvaluations) GetFeedbackByAttempt(_ context.Context, attemptID string) (*domain.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feedbacks[attemptID], nil
}

type nodeKey struct {
	learnerID, courseID int64
	nodeType            domain.NodeType
	nodeID              int64
}

type memProgress struct {
	mu           sync.Mutex
	nodes        map[nodeKey]domain.ProgressNode
	snapshots    map[[2]int64]*domain.Progress
	competencies map[[3]int64]*domain.Competency
}

func newMemProgress() *memProgress {
	return &memProgress{
		nodes:        map[nodeKey]domain.ProgressNode{},
		snapshots:    map[[2]int64]*domain.Progress{},
		competencies: map[[3]int64]*domain.Competency{},
	}
}

func (r *memProgress) MarkNodeComplete(_ context.Context, n domain.ProgressNode) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := nodeKey{n.LearnerID, n.CourseID, n.Type, n.NodeID}
	if _, ok := r.nodes[k]; ok {
		return false, nil
	}
	r.nodes[k] = n
	return true, nil
}

func (r *memProgress) IsNodeComplete(_ context.Context, learnerID, courseID int64, t domain.NodeType, nodeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.nodes[nodeKey{learnerID, courseID, t, nodeID}]
	return ok, nil
}

func (r *memProgress) CountCompletedNodes(_ context.Context, learnerID, courseID int64, t domain.NodeType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.nodes {
		if k.learnerID == learnerID && k.courseID == courseID && k.nodeType == t {
			n++
		}
	}
	return n, nil
}

func (r *memProgress) SaveProgress(_ context.Context, p *domain.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.snapshots[[2]int64{p.LearnerID, p.CourseID}] = &cp
	return nil
}

func (r *memProgress) GetProgress(_ context.Context, learnerID, courseID int64) (*domain.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots[[2]int64{learnerID, courseID}], nil
}

func (r *memProgress) UpsertCompetency(_ context.Context, c *domain.Competency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [3]int64{c.LearnerID, c.CourseID, c.LessonID}
	if existing, ok := r.competencies[k]; ok {
		existing.UpdatedAt = c.UpdatedAt
		return nil
	}
	cp := *c
	r.competencies[k] = &cp
	return nil
}

func (r *memProgress) has(learnerID, courseID int64, t domain.NodeType, nodeID int64) bool {
	ok, _ := r.IsNodeComplete(context.Background(), learnerID, courseID, t, nodeID)
	return ok
}

type staticPolicy struct {
	policy domain.GatingPolicy
}

func (p staticPolicy) GatingPolicy(context.Context) (domain.GatingPolicy, error) {
	return p.policy, nil
}

// passTx runs fn directly; rollback is not simulated.
type passTx struct{}

func (passTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// rollbackTx restores the attempt and evaluation stores when fn fails.
type rollbackTx struct {
	attempts *memAttempts
	evals    *memEvaluations
}

func (tx rollbackTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.attempts.mu.Lock()
	attempts := append([]*domain.Attempt(nil), tx.attempts.attempts...)
	tx.attempts.mu.Unlock()
	tx.evals.mu.Lock()
	evaluations := make(map[string]*domain.Evaluation, len(tx.evals.evaluations))
	for k, v := range tx.evals.evaluations {
		evaluations[k] = v
	}
	feedbacks := make(map[string]*domain.Feedback, len(tx.evals.feedbacks))
	for k, v := range tx.evals.feedbacks {
		feedbacks[k] = v
	}
	tx.evals.mu.Unlock()

	if err := fn(ctx); err != nil {
		tx.attempts.mu.Lock()
		tx.attempts.attempts = attempts
		tx.attempts.mu.Unlock()
		tx.evals.mu.Lock()
		tx.evals.evaluations, tx.evals.feedbacks = evaluations, feedbacks
		tx.evals.mu.Unlock()
		return err
	}
	return nil
}

// keyLocker serializes callers per key with one mutex per key.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *keyLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*sync.Mutex{}
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

// nopLocker never serializes, leaving races to the storage guards.
type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
