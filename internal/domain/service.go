package domain

import (
	"context"
	"io"
)

// QuizCatalog is the read-only view of course structure and questions.
// Lookups by id return (nil, nil) when the record does not exist.
type QuizCatalog interface {
	// GetQuiz returns a quiz with its questions ordered by position,
	// soft-deleted questions included.
	GetQuiz(ctx context.Context, quizID int64) (*Quiz, error)

	GetCourse(ctx context.Context, courseID int64) (*Course, error)

	// GetLessons returns the lessons of a course in course order.
	GetLessons(ctx context.Context, courseID int64) ([]Lesson, error)

	// GetTopics returns the topics of a lesson in lesson order.
	GetTopics(ctx context.Context, lessonID int64) ([]Topic, error)

	// GetQuizzesByLesson returns the quizzes of a lesson without questions.
	GetQuizzesByLesson(ctx context.Context, lessonID int64) ([]Quiz, error)

	CountQuizzesByCourse(ctx context.Context, courseID int64) (int, error)
}

// AttemptRepository persists attempts. Writes return ErrUniqueViolation when
// a concurrent writer created the same attempt first, and ErrStaleWrite when
// the optimistic version check fails.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, attemptID string) (*Attempt, error)
	GetOpenAttempt(ctx context.Context, key AttemptKey) (*Attempt, error)
	GetLatestAttempt(ctx context.Context, key AttemptKey) (*Attempt, error)
	ListAttempts(ctx context.Context, key AttemptKey) ([]Attempt, error)
	CreateAttempt(ctx context.Context, attempt *Attempt) error
	UpdateAttempt(ctx context.Context, attempt *Attempt) error
	TouchAttempt(ctx context.Context, attemptID string) error
	HasSatisfactoryAttemptOfKind(ctx context.Context, learnerID int64, kind QuizKind) (bool, error)
}

// EvaluationRepository persists the write-once grading artefacts.
type EvaluationRepository interface {
	CreateEvaluation(ctx context.Context, evaluation *Evaluation) error
	GetEvaluationByAttempt(ctx context.Context, attemptID string) (*Evaluation, error)
	CreateFeedback(ctx context.Context, feedback *Feedback) error
	GetFeedbackByAttempt(ctx context.Context, attemptID string) (*Feedback, error)
}

// ProgressRepository persists course progress and competencies.
type ProgressRepository interface {
	// MarkNodeComplete records the node and reports whether it was new.
	MarkNodeComplete(ctx context.Context, node ProgressNode) (bool, error)
	IsNodeComplete(ctx context.Context, learnerID, courseID int64, nodeType NodeType, nodeID int64) (bool, error)
	CountCompletedNodes(ctx context.Context, learnerID, courseID int64, nodeType NodeType) (int, error)
	SaveProgress(ctx context.Context, progress *Progress) error
	GetProgress(ctx context.Context, learnerID, courseID int64) (*Progress, error)
	UpsertCompetency(ctx context.Context, competency *Competency) error
}

// EnrolmentStore lists a learner's enrolments with their course category.
type EnrolmentStore interface {
	ListEnrolments(ctx context.Context, learnerID int64) ([]Enrolment, error)
}

// PolicyProvider resolves the category exclusion lists of both rule families.
type PolicyProvider interface {
	GatingPolicy(ctx context.Context) (GatingPolicy, error)
}

// NotificationStore manages "assessment returned" notifications.
type NotificationStore interface {
	CreateReturnedNotice(ctx context.Context, learnerID int64, attemptID string) error
	MarkReturnedRead(ctx context.Context, learnerID int64, attemptID string) (int64, error)
}

// FileStorage stores uploaded answer files by path.
type FileStorage interface {
	Store(ctx context.Context, path string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// EventSink receives the attempt status-changed event. Delivery is fire and
// forget; callers only log failures.
type EventSink interface {
	Publish(ctx context.Context, change AttemptChange) error
}

// AttemptLocker serializes writers of one attempt key.
type AttemptLocker interface {
	// Lock blocks until the key is held or ctx ends. The returned func
	// releases the lock.
	Lock(ctx context.Context, key string) (func(), error)
}

// TransactionManager runs fn in a transaction carried by the context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
