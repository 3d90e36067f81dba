package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"

	"go.uber.org/zap"
)

// ProgressEngine rolls satisfied attempts up into course progress.
type ProgressEngine struct {
	catalog    domain.QuizCatalog
	progress   domain.ProgressRepository
	enrolments domain.EnrolmentStore
	policies   domain.PolicyProvider
	now        func() time.Time
}

// NewProgressEngine creates a new ProgressEngine
func NewProgressEngine(
	catalog domain.QuizCatalog,
	progress domain.ProgressRepository,
	enrolments domain.EnrolmentStore,
	policies domain.PolicyProvider,
) *ProgressEngine {
	return &ProgressEngine{
		catalog:    catalog,
		progress:   progress,
		enrolments: enrolments,
		policies:   policies,
		now:        time.Now,
	}
}

// OnAttemptFinalized records the completion of a satisfactory attempt and
// returns the refreshed progress of the attempt's course. It runs inside the
// transaction that finalizes the attempt. Re-running it for the same attempt
// changes nothing.
func (e *ProgressEngine) OnAttemptFinalized(ctx context.Context, attempt *domain.Attempt, policy domain.GatingPolicy) (*domain.Progress, error) {
	if !attempt.IsSatisfactory() {
		return e.progress.GetProgress(ctx, attempt.LearnerID, attempt.CourseID)
	}

	quiz, err := e.catalog.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz %d: %w", attempt.QuizID, err)
	}
	if quiz == nil {
		return nil, domain.NewQuizNotFoundError(attempt.QuizID)
	}

	if err := e.satisfy(ctx, attempt.LearnerID, attempt.CourseID, quiz); err != nil {
		return nil, err
	}

	if quiz.Kind == domain.QuizKindLLND {
		courses, err := e.fanOutCourses(ctx, attempt.LearnerID, attempt.CourseID, policy)
		if err != nil {
			return nil, err
		}
		for _, courseID := range courses {
			if err := e.satisfy(ctx, attempt.LearnerID, courseID, quiz); err != nil {
				return nil, err
			}
			if _, err := e.Recompute(ctx, attempt.LearnerID, courseID); err != nil {
				return nil, err
			}
		}
		logger.Get().Info("Replicated diagnostic completion",
			zap.Int64("learner_id", attempt.LearnerID),
			zap.Int64("quiz_id", quiz.ID),
			zap.Int64s("course_ids", courses))
	}

	return e.Recompute(ctx, attempt.LearnerID, attempt.CourseID)
}

// GatingPolicy resolves the policy for callers that finalize attempts without
// an eligibility decision at hand.
func (e *ProgressEngine) GatingPolicy(ctx context.Context) (domain.GatingPolicy, error) {
	policy, err := e.policies.GatingPolicy(ctx)
	if err != nil {
		return domain.GatingPolicy{}, fmt.Errorf("failed to resolve gating policy: %w", err)
	}
	return policy, nil
}

// satisfy records quiz as satisfied for courseID. Quiz, topic and lesson
// nodes only exist in the quiz's own course; any other course gets the
// requirement node alone.
func (e *ProgressEngine) satisfy(ctx context.Context, learnerID, courseID int64, quiz *domain.Quiz) error {
	if quiz.IsSpecial() {
		if err := e.markNode(ctx, learnerID, courseID, domain.NodeRequirement, quiz.ID); err != nil {
			return err
		}
	}
	if quiz.CourseID == courseID {
		if err := e.completeQuiz(ctx, learnerID, courseID, quiz); err != nil {
			return err
		}
	}
	if quiz.Kind == domain.QuizKindLLND {
		return e.completeFirstTopic(ctx, learnerID, courseID)
	}
	return nil
}

// Recompute recalculates and stores the course percentage snapshot.
func (e *ProgressEngine) Recompute(ctx context.Context, learnerID, courseID int64) (*domain.Progress, error) {
	total, err := e.catalog.CountQuizzesByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to count quizzes of course %d: %w", courseID, err)
	}
	completed, err := e.progress.CountCompletedNodes(ctx, learnerID, courseID, domain.NodeQuiz)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed quizzes: %w", err)
	}
	if completed > total {
		completed = total
	}

	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(completed)/float64(total)*10000) / 100
	}
	p := &domain.Progress{
		LearnerID:        learnerID,
		CourseID:         courseID,
		CompletedQuizzes: completed,
		TotalQuizzes:     total,
		Percentage:       pct,
		UpdatedAt:        e.now(),
	}
	if err := e.progress.SaveProgress(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	return p, nil
}

// completeQuiz marks the quiz node and rolls completion up to its topic,
// lesson and lesson competency.
func (e *ProgressEngine) completeQuiz(ctx context.Context, learnerID, courseID int64, quiz *domain.Quiz) error {
	if err := e.markNode(ctx, learnerID, courseID, domain.NodeQuiz, quiz.ID); err != nil {
		return err
	}

	lessonQuizzes, err := e.catalog.GetQuizzesByLesson(ctx, quiz.LessonID)
	if err != nil {
		return fmt.Errorf("failed to get quizzes of lesson %d: %w", quiz.LessonID, err)
	}

	topicDone := true
	lessonQuizzesDone := true
	for _, q := range lessonQuizzes {
		done, err := e.progress.IsNodeComplete(ctx, learnerID, courseID, domain.NodeQuiz, q.ID)
		if err != nil {
			return fmt.Errorf("failed to read quiz progress: %w", err)
		}
		if !done {
			lessonQuizzesDone = false
			if q.TopicID == quiz.TopicID {
				topicDone = false
			}
		}
	}

	if topicDone {
		if err := e.markNode(ctx, learnerID, courseID, domain.NodeTopic, quiz.TopicID); err != nil {
			return err
		}
		if err := e.completeLessonIfDone(ctx, learnerID, courseID, quiz.LessonID, lessonQuizzes); err != nil {
			return err
		}
	}

	if lessonQuizzesDone {
		now := e.now()
		err := e.progress.UpsertCompetency(ctx, &domain.Competency{
			LearnerID:   learnerID,
			CourseID:    courseID,
			LessonID:    quiz.LessonID,
			CompletedAt: now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("failed to save competency: %w", err)
		}
	}
	return nil
}

// completeLessonIfDone marks the lesson once all of its topics are complete.
// A topic without quizzes has nothing to assess and does not hold the lesson
// back.
func (e *ProgressEngine) completeLessonIfDone(ctx context.Context, learnerID, courseID, lessonID int64, lessonQuizzes []domain.Quiz) error {
	topics, err := e.catalog.GetTopics(ctx, lessonID)
	if err != nil {
		return fmt.Errorf("failed to get topics of lesson %d: %w", lessonID, err)
	}
	assessed := make(map[int64]struct{}, len(lessonQuizzes))
	for _, q := range lessonQuizzes {
		assessed[q.TopicID] = struct{}{}
	}
	for _, t := range topics {
		if _, ok := assessed[t.ID]; !ok {
			continue
		}
		done, err := e.progress.IsNodeComplete(ctx, learnerID, courseID, domain.NodeTopic, t.ID)
		if err != nil {
			return fmt.Errorf("failed to read topic progress: %w", err)
		}
		if !done {
			return nil
		}
	}
	return e.markNode(ctx, learnerID, courseID, domain.NodeLesson, lessonID)
}

// completeFirstTopic marks the first topic of the first lesson so a learner
// with a satisfied diagnostic can enter the course.
func (e *ProgressEngine) completeFirstTopic(ctx context.Context, learnerID, courseID int64) error {
	lessons, err := e.catalog.GetLessons(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to get lessons of course %d: %w", courseID, err)
	}
	if len(lessons) == 0 {
		return nil
	}
	topics, err := e.catalog.GetTopics(ctx, lessons[0].ID)
	if err != nil {
		return fmt.Errorf("failed to get topics of lesson %d: %w", lessons[0].ID, err)
	}
	if len(topics) == 0 {
		return nil
	}
	return e.markNode(ctx, learnerID, courseID, domain.NodeTopic, topics[0].ID)
}

// fanOutCourses lists the other courses a diagnostic counts for.
func (e *ProgressEngine) fanOutCourses(ctx context.Context, learnerID, sourceCourseID int64, policy domain.GatingPolicy) ([]int64, error) {
	enrolments, err := e.enrolments.ListEnrolments(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrolments: %w", err)
	}
	seen := map[int64]struct{}{sourceCourseID: {}}
	var out []int64
	for _, en := range policy.QualifyingEnrolments(enrolments) {
		if policy.IsExcluded(domain.FamilyLLND, en.CategoryID) {
			continue
		}
		if _, dup := seen[en.CourseID]; dup {
			continue
		}
		seen[en.CourseID] = struct{}{}
		out = append(out, en.CourseID)
	}
	return out, nil
}

func (e *ProgressEngine) markNode(ctx context.Context, learnerID, courseID int64, nodeType domain.NodeType, nodeID int64) error {
	created, err := e.progress.MarkNodeComplete(ctx, domain.ProgressNode{
		LearnerID:   learnerID,
		CourseID:    courseID,
		Type:        nodeType,
		NodeID:      nodeID,
		CompletedAt: e.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s %d complete: %w", nodeType, nodeID, err)
	}
	if created {
		logger.Get().Debug("Progress node completed",
			zap.Int64("learner_id", learnerID),
			zap.Int64("course_id", courseID),
			zap.String("node_type", string(nodeType)),
			zap.Int64("node_id", nodeID))
	}
	return nil
}
