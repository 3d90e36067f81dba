package repository

import (
	"context"
	"fmt"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/repository/models"
	"lms-assessment/internal/util"

	"github.com/jmoiron/sqlx"
)

// NotificationKindReturned marks "assessment returned" notices.
const NotificationKindReturned = "assessment_returned"

// sqlxNotificationRepository implements domain.NotificationStore using sqlx.
type sqlxNotificationRepository struct {
	db  DBTX
	now func() time.Time
}

// NewSQLXNotificationRepository creates a new instance of sqlxNotificationRepository.
func NewSQLXNotificationRepository(db *sqlx.DB) domain.NotificationStore {
	return &sqlxNotificationRepository{db: db, now: time.Now}
}

// CreateReturnedNotice stores an unread notice for a returned attempt.
func (r *sqlxNotificationRepository) CreateReturnedNotice(ctx context.Context, learnerID int64, attemptID string) error {
	m := models.Notification{
		ID:        util.NewULID(),
		LearnerID: learnerID,
		AttemptID: attemptID,
		Kind:      NotificationKindReturned,
		CreatedAt: r.now(),
	}
	query := `INSERT INTO notifications (id, learner_id, attempt_id, kind, is_read, created_at, read_at)
	VALUES (:id, :learner_id, :attempt_id, :kind, :is_read, :created_at, :read_at)`
	if _, err := execNamed(ctx, GetExecutor(ctx, r.db), query, m); err != nil {
		return fmt.Errorf("failed to create returned notice for attempt %s: %w", attemptID, err)
	}
	return nil
}

// MarkReturnedRead marks the learner's unread returned notices of the
// attempt as read and reports how many changed.
func (r *sqlxNotificationRepository) MarkReturnedRead(ctx context.Context, learnerID int64, attemptID string) (int64, error) {
	exec := GetExecutor(ctx, r.db)
	query := `UPDATE notifications SET is_read = 1, read_at = ?
	WHERE learner_id = ? AND attempt_id = ? AND kind = ? AND is_read = 0`
	res, err := exec.ExecContext(ctx, exec.Rebind(query), r.now(), learnerID, attemptID, NotificationKindReturned)
	if err != nil {
		return 0, fmt.Errorf("failed to mark returned notices read for attempt %s: %w", attemptID, err)
	}
	return res.RowsAffected()
}
