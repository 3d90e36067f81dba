package service

import (
	"context"
	"fmt"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EligibilityResult tells whether a learner may start or continue a quiz and
// for which course the attempt counts.
type EligibilityResult struct {
	Allowed  bool             `json:"allowed"`
	Code     domain.ErrorCode `json:"code,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	CourseID int64            `json:"course_id"`

	// Policy is the gating policy the decision was made under.
	Policy domain.GatingPolicy `json:"-"`
}

// Err converts a denial into a DomainError; it is nil when allowed.
func (r *EligibilityResult) Err() error {
	if r.Allowed {
		return nil
	}
	return domain.NewError(r.Code, r.Reason, nil).WithContext("course_id", r.CourseID)
}

func allow(courseID int64) *EligibilityResult {
	return &EligibilityResult{Allowed: true, CourseID: courseID}
}

func deny(courseID int64, code domain.ErrorCode, reason string) *EligibilityResult {
	return &EligibilityResult{Allowed: false, Code: code, Reason: reason, CourseID: courseID}
}

// EligibilityEvaluator applies the gating rules in order. It never writes.
type EligibilityEvaluator struct {
	catalog    domain.QuizCatalog
	attempts   domain.AttemptRepository
	progress   domain.ProgressRepository
	enrolments domain.EnrolmentStore
	policies   domain.PolicyProvider
}

// NewEligibilityEvaluator creates a new EligibilityEvaluator
func NewEligibilityEvaluator(
	catalog domain.QuizCatalog,
	attempts domain.AttemptRepository,
	progress domain.ProgressRepository,
	enrolments domain.EnrolmentStore,
	policies domain.PolicyProvider,
) *EligibilityEvaluator {
	return &EligibilityEvaluator{
		catalog:    catalog,
		attempts:   attempts,
		progress:   progress,
		enrolments: enrolments,
		policies:   policies,
	}
}

// Evaluate decides whether learnerID may attempt quiz. requestedCourseID is
// only consulted for special quizzes; 0 means none was requested.
func (e *EligibilityEvaluator) Evaluate(ctx context.Context, learnerID int64, quiz *domain.Quiz, requestedCourseID int64) (*EligibilityResult, error) {
	policy, err := e.policies.GatingPolicy(ctx)
	if err != nil {
		return nil, domain.NewInternalError("Failed to resolve gating policy", err)
	}

	courseID := quiz.CourseID
	if quiz.IsSpecial() {
		resolved, ok, err := e.resolveSpecialCourse(ctx, learnerID, quiz, requestedCourseID, policy)
		if err != nil {
			return nil, err
		}
		if !ok {
			return deny(0, domain.CodeNoQualifyingEnrolment,
				"No qualifying enrolment is available for this assessment"), nil
		}
		courseID = resolved
	}

	course, err := e.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get course", err)
	}
	if course == nil {
		return nil, domain.NewIntegrityError(fmt.Sprintf("course %d of quiz %d does not exist", courseID, quiz.ID))
	}

	key := domain.KeyFor(learnerID, quiz, courseID)
	latest, err := e.attempts.GetLatestAttempt(ctx, key)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get latest attempt", err)
	}

	if latest != nil && latest.IsTerminalSuccess() {
		return deny(courseID, domain.CodeAlreadyAttempted,
			"You have already attempted this assessment, please wait for the result"), nil
	}

	if quiz.IsSpecial() && (latest == nil || !latest.IsOpen()) {
		satisfied, err := e.progress.IsNodeComplete(ctx, learnerID, courseID, domain.NodeRequirement, quiz.ID)
		if err != nil {
			return nil, domain.NewInternalError("Failed to read progress", err)
		}
		if satisfied {
			return deny(courseID, domain.CodeRequirementSatisfied,
				"This assessment has already been satisfied for the course"), nil
		}
	}

	if quiz.AllowedAttempts > 0 && latest != nil && !latest.IsOpen() && latest.Number >= quiz.AllowedAttempts {
		return deny(courseID, domain.CodeMaxAttemptsReached,
			fmt.Sprintf("Maximum number of attempts (%d) reached for this assessment", quiz.AllowedAttempts)), nil
	}

	if quiz.Kind == domain.QuizKindRegular && !policy.IsExcluded(domain.FamilyLLND, course.CategoryID) {
		result, err := e.checkPrerequisite(ctx, learnerID, quiz, courseID)
		if err != nil || result != nil {
			return result, err
		}
	}

	result := allow(courseID)
	result.Policy = policy
	return result, nil
}

// resolveSpecialCourse loads the learner's enrolments and the requested course
// concurrently, then runs the resolution pipeline.
func (e *EligibilityEvaluator) resolveSpecialCourse(ctx context.Context, learnerID int64, quiz *domain.Quiz, requestedCourseID int64, policy domain.GatingPolicy) (int64, bool, error) {
	var (
		enrolments []domain.Enrolment
		requested  *domain.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrolments, err = e.enrolments.ListEnrolments(gctx, learnerID)
		return err
	})
	if requestedCourseID != 0 {
		g.Go(func() error {
			var err error
			requested, err = e.catalog.GetCourse(gctx, requestedCourseID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, false, domain.NewInternalError("Failed to load enrolments", err)
	}

	courseID, ok := resolveCourse(resolutionInput{
		Family:     quiz.Family(),
		Policy:     policy,
		Requested:  requested,
		Enrolments: policy.QualifyingEnrolments(enrolments),
	}, specialQuizCourseRules...)

	logger.Get().Debug("Resolved course for special quiz",
		zap.Int64("learner_id", learnerID),
		zap.Int64("quiz_id", quiz.ID),
		zap.Int64("requested_course_id", requestedCourseID),
		zap.Int64("course_id", courseID),
		zap.Bool("resolved", ok),
	)
	return courseID, ok, nil
}

// checkPrerequisite returns a denial when the lesson before the quiz's lesson
// is incomplete and no satisfied diagnostic waives the guard.
func (e *EligibilityEvaluator) checkPrerequisite(ctx context.Context, learnerID int64, quiz *domain.Quiz, courseID int64) (*EligibilityResult, error) {
	lessons, err := e.catalog.GetLessons(ctx, courseID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get lessons", err)
	}
	idx := -1
	for i, l := range lessons {
		if l.ID == quiz.LessonID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.NewIntegrityError(fmt.Sprintf("lesson %d of quiz %d is not part of course %d", quiz.LessonID, quiz.ID, courseID))
	}
	if idx == 0 {
		return nil, nil
	}

	previous := lessons[idx-1]
	done, err := e.progress.IsNodeComplete(ctx, learnerID, courseID, domain.NodeLesson, previous.ID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to read progress", err)
	}
	if done {
		return nil, nil
	}

	waived, err := e.attempts.HasSatisfactoryAttemptOfKind(ctx, learnerID, domain.QuizKindLLND)
	if err != nil {
		return nil, domain.NewInternalError("Failed to check diagnostic assessment", err)
	}
	if waived {
		return nil, nil
	}
	return deny(courseID, domain.CodePrerequisiteNotMet,
		fmt.Sprintf("Complete the lesson %q before attempting this assessment", previous.Title)), nil
}
