package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"
	"lms-assessment/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SubmitAnswerCommand carries one answer submission.
type SubmitAnswerCommand struct {
	LearnerID  int64
	QuizID     int64
	QuestionID int64
	CourseID   int64 // requested course, 0 for none
	Answer     json.RawMessage
	Upload     *FileUpload
	IP         string
}

// ReviewCommand carries a reviewer's verdict on a submitted attempt.
type ReviewCommand struct {
	AttemptID  string
	ReviewerID int64
	Status     domain.AttemptStatus
	Message    string
}

// Viewer identifies who reads an attempt result.
type Viewer struct {
	ID       int64
	Reviewer bool
}

// AttemptResult is returned by SubmitAnswer.
type AttemptResult struct {
	Attempt        *domain.Attempt
	Completed      bool
	NextQuestionID int64
	Evaluation     *domain.Evaluation
	Feedback       *domain.Feedback
	Progress       *domain.Progress
}

// AttemptState is the learner's current position in a quiz.
type AttemptState struct {
	Attempt        *domain.Attempt
	NextQuestionID int64
	HasNext        bool
	Eligibility    *EligibilityResult
}

// AttemptView is a closed attempt with its grading artefacts.
type AttemptView struct {
	Attempt    *domain.Attempt
	Evaluation *domain.Evaluation
	Feedback   *domain.Feedback
}

// AttemptService defines the operations of the attempt engine
type AttemptService interface {
	CheckEligibility(ctx context.Context, learnerID, quizID, courseID int64) (*EligibilityResult, error)
	SubmitAnswer(ctx context.Context, cmd SubmitAnswerCommand) (*AttemptResult, error)
	GetAttemptState(ctx context.Context, learnerID, quizID, courseID int64) (*AttemptState, error)
	ListAttempts(ctx context.Context, learnerID, quizID, courseID int64) ([]domain.Attempt, error)
	ViewResult(ctx context.Context, attemptID string, viewer Viewer) (*AttemptView, error)
	RecordReview(ctx context.Context, cmd ReviewCommand) (*AttemptView, error)
	RecomputeProgress(ctx context.Context, learnerID, courseID int64) (*domain.Progress, error)
}

// AttemptServiceDeps groups the collaborators of the attempt service.
type AttemptServiceDeps struct {
	Catalog       domain.QuizCatalog
	Attempts      domain.AttemptRepository
	Evaluations   domain.EvaluationRepository
	Notifications domain.NotificationStore
	Files         domain.FileStorage
	Events        domain.EventSink
	Locker        domain.AttemptLocker
	Tx            domain.TransactionManager
	Eligibility   *EligibilityEvaluator
	Grader        *Grader
	Normalizer    *AnswerNormalizer
	Progress      *ProgressEngine
}

// attemptService implements AttemptService
type attemptService struct {
	AttemptServiceDeps
	now   func() time.Time
	newID func() string
}

// NewAttemptService creates a new instance of attemptService
func NewAttemptService(deps AttemptServiceDeps) AttemptService {
	return &attemptService{
		AttemptServiceDeps: deps,
		now:                time.Now,
		newID:              util.NewULID,
	}
}

func (s *attemptService) loadQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error) {
	quiz, err := s.Catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get quiz", err)
	}
	if quiz == nil {
		return nil, domain.NewQuizNotFoundError(quizID)
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	return quiz, nil
}

// CheckEligibility implements AttemptService
func (s *attemptService) CheckEligibility(ctx context.Context, learnerID, quizID, courseID int64) (*EligibilityResult, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.Eligibility.Evaluate(ctx, learnerID, quiz, courseID)
}

// SubmitAnswer implements AttemptService
func (s *attemptService) SubmitAnswer(ctx context.Context, cmd SubmitAnswerCommand) (*AttemptResult, error) {
	log := logger.Get().With(
		zap.Int64("learner_id", cmd.LearnerID),
		zap.Int64("quiz_id", cmd.QuizID),
		zap.Int64("question_id", cmd.QuestionID),
	)

	quiz, err := s.loadQuiz(ctx, cmd.QuizID)
	if err != nil {
		return nil, err
	}
	question, ok := quiz.Question(cmd.QuestionID)
	if !ok {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("question %d does not belong to quiz %d", cmd.QuestionID, cmd.QuizID))
	}

	elig, err := s.Eligibility.Evaluate(ctx, cmd.LearnerID, quiz, cmd.CourseID)
	if err != nil {
		return nil, err
	}
	if !elig.Allowed {
		log.Info("Answer rejected by eligibility", zap.String("code", string(elig.Code)))
		return nil, elig.Err()
	}
	courseID := elig.CourseID
	key := domain.KeyFor(cmd.LearnerID, quiz, courseID)

	var answer json.RawMessage
	storing := question.AnswerType == domain.AnswerFile && !missingUpload(cmd.Upload)
	if question.AnswerType == domain.AnswerFile {
		if err := s.Normalizer.ValidateUpload(question, cmd.Upload); err != nil {
			return nil, err
		}
		if !storing {
			answer = skippedFileAnswer
		}
	} else {
		answer, err = s.Normalizer.Normalize(question, cmd.Answer)
		if err != nil {
			return nil, err
		}
	}

	unlock, err := s.Locker.Lock(ctx, "attempt:"+key.String())
	if err != nil {
		log.Warn("Failed to acquire attempt lock", zap.Error(err))
		return nil, domain.NewAttemptConflictError(err)
	}
	defer unlock()

	var storedPath string
	if storing {
		path := answerFilePath(key, courseID, s.newID(), cmd.Upload.Name)
		storedPath, err = s.Files.Store(ctx, path, cmd.Upload.Content)
		if err != nil {
			return nil, domain.NewInternalError("Failed to store answer file", err)
		}
		answer, _ = json.Marshal(storedPath)
	}

	var (
		result  *AttemptResult
		effects effectList
	)
	err = s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var txErr error
		result, effects, txErr = s.applyAnswer(txCtx, quiz, question, key, elig, answer, cmd)
		return txErr
	})
	if err != nil {
		if storedPath != "" {
			if delErr := s.Files.Delete(context.WithoutCancel(ctx), storedPath); delErr != nil {
				log.Error("Failed to remove uploaded file after failed write", zap.String("path", storedPath), zap.Error(delErr))
			}
		}
		return nil, mapWriteError(err)
	}

	if n := effects.runAll(ctx, log.With(zap.String("attempt_id", result.Attempt.ID))); n > 0 {
		log.Warn("Answer recorded with failed side effects", zap.Int("failed", n))
	}
	log.Info("Answer recorded",
		zap.String("attempt_id", result.Attempt.ID),
		zap.Int("attempt", result.Attempt.Number),
		zap.String("system_result", string(result.Attempt.SystemResult)),
		zap.String("status", string(result.Attempt.Status)))
	return result, nil
}

// applyAnswer performs the state transition inside the transaction and
// collects the effects to run once it commits.
func (s *attemptService) applyAnswer(
	ctx context.Context,
	quiz *domain.Quiz,
	question *domain.Question,
	key domain.AttemptKey,
	elig *EligibilityResult,
	answer json.RawMessage,
	cmd SubmitAnswerCommand,
) (*AttemptResult, effectList, error) {
	var effects effectList
	courseID := elig.CourseID
	now := s.now()

	attempt, err := s.Attempts.GetOpenAttempt(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get open attempt: %w", err)
	}

	creating := attempt == nil
	if creating {
		latest, err := s.Attempts.GetLatestAttempt(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get latest attempt: %w", err)
		}
		n := 1
		if latest != nil {
			if latest.IsOpen() {
				return nil, nil, domain.NewAttemptConflictError(nil)
			}
			if !latest.IsRetryable() {
				return nil, nil, domain.NewError(domain.CodeAlreadyAttempted,
					"You have already attempted this assessment, please wait for the result", nil)
			}
			n = latest.Number + 1
			previousID := latest.ID
			effects.add("mark returned notices read", func(ctx context.Context) error {
				_, err := s.Notifications.MarkReturnedRead(ctx, key.LearnerID, previousID)
				return err
			})
		}
		attempt = domain.NewAttempt(s.newID(), key, quiz, courseID, n, now)
	} else {
		if _, ok := attempt.SnapshotQuestion(question.ID); !ok {
			return nil, nil, domain.NewInvalidInputError(fmt.Sprintf("question %d is not part of attempt %s", question.ID, attempt.ID))
		}
		if question.AnswerType == domain.AnswerFile {
			if previous := storedFilePath(attempt.Answers[question.ID]); previous != "" {
				effects.add("delete superseded file", func(ctx context.Context) error {
					return s.Files.Delete(ctx, previous)
				})
			}
		}
	}

	attempt.Answers = attempt.Answers.Merge(question.ID, answer)
	attempt.SubmittedIP = cmd.IP
	attempt.AccessedAt = &now
	attempt.UpdatedAt = now

	result := &AttemptResult{Attempt: attempt}
	if attempt.AllAnswered() {
		result.Completed = true
		var outcome *GradingOutcome
		if len(attempt.Questions) == 1 || !quiz.AutoGraded() {
			attempt.Submit(now)
		} else {
			outcome = s.Grader.Evaluate(quiz, attempt)
			attempt.Evaluate(outcome.Status, now)
			result.Evaluation = outcome.Evaluation
			result.Feedback = outcome.Feedback
		}

		if err := s.saveAttempt(ctx, attempt, creating); err != nil {
			return nil, nil, err
		}
		if outcome != nil {
			if err := s.Evaluations.CreateEvaluation(ctx, outcome.Evaluation); err != nil {
				return nil, nil, fmt.Errorf("failed to create evaluation: %w", err)
			}
			if err := s.Evaluations.CreateFeedback(ctx, outcome.Feedback); err != nil {
				return nil, nil, fmt.Errorf("failed to create feedback: %w", err)
			}
		}
		result.Progress, err = s.finalize(ctx, &effects, attempt, elig.Policy)
		if err != nil {
			return nil, nil, err
		}
		return result, effects, nil
	}

	if err := s.saveAttempt(ctx, attempt, creating); err != nil {
		return nil, nil, err
	}
	result.NextQuestionID, _ = attempt.NextQuestionID()
	return result, effects, nil
}

func (s *attemptService) saveAttempt(ctx context.Context, attempt *domain.Attempt, creating bool) error {
	if creating {
		return s.Attempts.CreateAttempt(ctx, attempt)
	}
	return s.Attempts.UpdateAttempt(ctx, attempt)
}

// finalize records the progress of a satisfied attempt in the caller's
// transaction and queues the status-changed event of a terminal transition.
// A progress failure fails the whole write.
func (s *attemptService) finalize(ctx context.Context, effects *effectList, attempt *domain.Attempt, policy domain.GatingPolicy) (*domain.Progress, error) {
	var progress *domain.Progress
	if attempt.IsSatisfactory() {
		p, err := s.Progress.OnAttemptFinalized(ctx, attempt, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to record progress: %w", err)
		}
		progress = p
	}
	change := domain.ChangeOf(attempt, s.now())
	effects.add("publish status change", func(ctx context.Context) error {
		return s.Events.Publish(ctx, change)
	})
	return progress, nil
}

// mapWriteError turns lost races into a retryable conflict.
func mapWriteError(err error) error {
	if errors.Is(err, domain.ErrUniqueViolation) || errors.Is(err, domain.ErrStaleWrite) {
		return domain.NewAttemptConflictError(err)
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de
	}
	return domain.NewInternalError("Failed to record answer", err)
}

// GetAttemptState implements AttemptService
func (s *attemptService) GetAttemptState(ctx context.Context, learnerID, quizID, courseID int64) (*AttemptState, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	elig, err := s.Eligibility.Evaluate(ctx, learnerID, quiz, courseID)
	if err != nil {
		return nil, err
	}
	if elig.Code == domain.CodeNoQualifyingEnrolment {
		return nil, elig.Err()
	}

	key := domain.KeyFor(learnerID, quiz, elig.CourseID)
	state := &AttemptState{Eligibility: elig}

	open, err := s.Attempts.GetOpenAttempt(ctx, key)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get open attempt", err)
	}
	if open != nil {
		if err := s.Attempts.TouchAttempt(ctx, open.ID); err != nil {
			logger.Get().Warn("Failed to update attempt access time", zap.String("attempt_id", open.ID), zap.Error(err))
		}
		state.Attempt = open
		state.NextQuestionID, state.HasNext = open.NextQuestionID()
		return state, nil
	}

	latest, err := s.Attempts.GetLatestAttempt(ctx, key)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get latest attempt", err)
	}
	state.Attempt = latest
	if elig.Allowed {
		if live := quiz.LiveQuestions(); len(live) > 0 {
			state.NextQuestionID, state.HasNext = live[0].ID, true
		}
	}
	return state, nil
}

// ListAttempts implements AttemptService
func (s *attemptService) ListAttempts(ctx context.Context, learnerID, quizID, courseID int64) ([]domain.Attempt, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.IsSpecial() && courseID == 0 {
		elig, err := s.Eligibility.Evaluate(ctx, learnerID, quiz, 0)
		if err != nil {
			return nil, err
		}
		courseID = elig.CourseID
	}
	attempts, err := s.Attempts.ListAttempts(ctx, domain.KeyFor(learnerID, quiz, courseID))
	if err != nil {
		return nil, domain.NewInternalError("Failed to list attempts", err)
	}
	return attempts, nil
}

// ViewResult implements AttemptService
func (s *attemptService) ViewResult(ctx context.Context, attemptID string, viewer Viewer) (*AttemptView, error) {
	attempt, err := s.Attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get attempt", err)
	}
	if attempt == nil || (!viewer.Reviewer && attempt.LearnerID != viewer.ID) {
		return nil, domain.NewAttemptNotFoundError(attemptID)
	}
	if attempt.IsOpen() {
		return nil, domain.NewInvalidStateError("Attempt is still in progress")
	}

	view := &AttemptView{Attempt: attempt}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view.Evaluation, err = s.Evaluations.GetEvaluationByAttempt(gctx, attemptID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Feedback, err = s.Evaluations.GetFeedbackByAttempt(gctx, attemptID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.NewInternalError("Failed to load attempt result", err)
	}
	return view, nil
}

// RecordReview implements AttemptService
func (s *attemptService) RecordReview(ctx context.Context, cmd ReviewCommand) (*AttemptView, error) {
	log := logger.Get().With(zap.String("attempt_id", cmd.AttemptID), zap.Int64("reviewer_id", cmd.ReviewerID))

	current, err := s.Attempts.GetAttempt(ctx, cmd.AttemptID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get attempt", err)
	}
	if current == nil {
		return nil, domain.NewAttemptNotFoundError(cmd.AttemptID)
	}
	quiz, err := s.loadQuiz(ctx, current.QuizID)
	if err != nil {
		return nil, err
	}

	var policy domain.GatingPolicy
	if cmd.Status == domain.StatusSatisfactory {
		if policy, err = s.Progress.GatingPolicy(ctx); err != nil {
			return nil, domain.NewInternalError("Failed to resolve gating policy", err)
		}
	}

	unlock, err := s.Locker.Lock(ctx, "attempt:"+current.Key().String())
	if err != nil {
		return nil, domain.NewAttemptConflictError(err)
	}
	defer unlock()

	var (
		view    *AttemptView
		effects effectList
	)
	err = s.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		attempt, err := s.Attempts.GetAttempt(txCtx, cmd.AttemptID)
		if err != nil {
			return fmt.Errorf("failed to reload attempt: %w", err)
		}
		if attempt == nil {
			return domain.NewAttemptNotFoundError(cmd.AttemptID)
		}
		now := s.now()
		if err := attempt.Mark(cmd.Status, now); err != nil {
			return err
		}
		if err := s.Attempts.UpdateAttempt(txCtx, attempt); err != nil {
			return err
		}
		feedback := &domain.Feedback{
			ID:        s.newID(),
			AttemptID: attempt.ID,
			LearnerID: attempt.LearnerID,
			QuizID:    attempt.QuizID,
			CourseID:  attempt.CourseID,
			AuthorID:  cmd.ReviewerID,
			Passing:   quiz.PassingPercentage,
			Message:   cmd.Message,
			CreatedAt: now,
		}
		if err := s.Evaluations.CreateFeedback(txCtx, feedback); err != nil {
			return fmt.Errorf("failed to create feedback: %w", err)
		}

		if attempt.Status == domain.StatusReturned {
			effects.add("create returned notice", func(ctx context.Context) error {
				return s.Notifications.CreateReturnedNotice(ctx, attempt.LearnerID, attempt.ID)
			})
		}
		if _, err := s.finalize(txCtx, &effects, attempt, policy); err != nil {
			return err
		}
		view = &AttemptView{Attempt: attempt, Feedback: feedback}
		return nil
	})
	if err != nil {
		return nil, mapWriteError(err)
	}

	effects.runAll(ctx, log)
	log.Info("Attempt reviewed", zap.String("status", string(view.Attempt.Status)))
	return view, nil
}

// RecomputeProgress implements AttemptService
func (s *attemptService) RecomputeProgress(ctx context.Context, learnerID, courseID int64) (*domain.Progress, error) {
	course, err := s.Catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to get course", err)
	}
	if course == nil {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Course not found with ID: %d", courseID))
	}
	p, err := s.Progress.Recompute(ctx, learnerID, courseID)
	if err != nil {
		return nil, domain.NewInternalError("Failed to recompute progress", err)
	}
	return p, nil
}
