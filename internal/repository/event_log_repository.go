package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/repository/models"
	"lms-assessment/internal/util"

	"github.com/jmoiron/sqlx"
)

// EventTypeAttemptStatusChanged is the event_log type of attempt changes.
const EventTypeAttemptStatusChanged = "attempt.status_changed"

// sqlxEventLogRepository implements domain.EventSink by appending to event_log.
type sqlxEventLogRepository struct {
	db DBTX
}

// NewSQLXEventLogRepository creates a new instance of sqlxEventLogRepository.
func NewSQLXEventLogRepository(db *sqlx.DB) domain.EventSink {
	return &sqlxEventLogRepository{db: db}
}

// Publish appends the change to event_log keyed by attempt id.
func (r *sqlxEventLogRepository) Publish(ctx context.Context, change domain.AttemptChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode attempt change: %w", err)
	}
	at := change.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	m := models.EventLog{
		ID:        util.NewULIDAt(at),
		EventType: EventTypeAttemptStatusChanged,
		EventKey:  change.AttemptID,
		Payload:   string(payload),
		CreatedAt: at,
	}
	query := `INSERT INTO event_log (id, event_type, event_key, payload, created_at)
	VALUES (:id, :event_type, :event_key, :payload, :created_at)`
	if _, err := execNamed(ctx, GetExecutor(ctx, r.db), query, m); err != nil {
		return fmt.Errorf("failed to append event for attempt %s: %w", change.AttemptID, err)
	}
	return nil
}
