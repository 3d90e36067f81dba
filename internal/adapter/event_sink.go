package adapter

import (
	"context"
	"errors"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"

	"go.uber.org/zap"
)

// LogEventSink writes attempt changes to the structured log.
type LogEventSink struct{}

func (LogEventSink) Publish(_ context.Context, change domain.AttemptChange) error {
	logger.Get().Info("Attempt status changed",
		zap.String("attemptID", change.AttemptID),
		zap.Int64("learnerID", change.LearnerID),
		zap.Int64("quizID", change.QuizID),
		zap.Int64("courseID", change.CourseID),
		zap.Int("attempt", change.Attempt),
		zap.String("systemResult", string(change.SystemResult)),
		zap.String("status", string(change.Status)),
		zap.Time("occurredAt", change.OccurredAt))
	return nil
}

// MultiEventSink fans a change out to every sink. All sinks are tried; the
// errors are joined.
type MultiEventSink []domain.EventSink

func (m MultiEventSink) Publish(ctx context.Context, change domain.AttemptChange) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
