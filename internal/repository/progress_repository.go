package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/repository/models"

	"github.com/jmoiron/sqlx"
)

// sqlxProgressRepository implements domain.ProgressRepository using sqlx.
type sqlxProgressRepository struct {
	db DBTX
}

// NewSQLXProgressRepository creates a new instance of sqlxProgressRepository.
func NewSQLXProgressRepository(db *sqlx.DB) domain.ProgressRepository {
	return &sqlxProgressRepository{db: db}
}

// MarkNodeComplete records a completed node. It reports false when the node
// was already complete.
func (r *sqlxProgressRepository) MarkNodeComplete(ctx context.Context, node domain.ProgressNode) (bool, error) {
	done, err := r.IsNodeComplete(ctx, node.LearnerID, node.CourseID, node.Type, node.NodeID)
	if err != nil || done {
		return false, err
	}

	m := models.ProgressItem{
		LearnerID:   node.LearnerID,
		CourseID:    node.CourseID,
		NodeType:    string(node.Type),
		NodeID:      node.NodeID,
		CompletedAt: node.CompletedAt,
	}
	query := `INSERT INTO progress_items (learner_id, course_id, node_type, node_id, completed_at)
	VALUES (:learner_id, :course_id, :node_type, :node_id, :completed_at)`
	if _, err := execNamed(ctx, GetExecutor(ctx, r.db), query, m); err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return false, nil
		}
		return false, fmt.Errorf("failed to mark %s %d complete: %w", node.Type, node.NodeID, err)
	}
	return true, nil
}

// IsNodeComplete reports whether the node was recorded as complete.
func (r *sqlxProgressRepository) IsNodeComplete(ctx context.Context, learnerID, courseID int64, nodeType domain.NodeType, nodeID int64) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	var n int
	query := `SELECT COUNT(*) FROM progress_items
	WHERE learner_id = ? AND course_id = ? AND node_type = ? AND node_id = ?`
	if err := exec.GetContext(ctx, &n, exec.Rebind(query), learnerID, courseID, string(nodeType), nodeID); err != nil {
		return false, fmt.Errorf("failed to check %s %d: %w", nodeType, nodeID, err)
	}
	return n > 0, nil
}

// CountCompletedNodes counts the completed nodes of a type in a course.
func (r *sqlxProgressRepository) CountCompletedNodes(ctx context.Context, learnerID, courseID int64, nodeType domain.NodeType) (int, error) {
	exec := GetExecutor(ctx, r.db)
	var n int
	query := `SELECT COUNT(*) FROM progress_items
	WHERE learner_id = ? AND course_id = ? AND node_type = ?`
	if err := exec.GetContext(ctx, &n, exec.Rebind(query), learnerID, courseID, string(nodeType)); err != nil {
		return 0, fmt.Errorf("failed to count completed %s nodes: %w", nodeType, err)
	}
	return n, nil
}

// SaveProgress stores the course snapshot, replacing any previous one.
func (r *sqlxProgressRepository) SaveProgress(ctx context.Context, p *domain.Progress) error {
	m := models.CourseProgress{
		LearnerID:        p.LearnerID,
		CourseID:         p.CourseID,
		CompletedQuizzes: p.CompletedQuizzes,
		TotalQuizzes:     p.TotalQuizzes,
		Percentage:       p.Percentage,
		UpdatedAt:        p.UpdatedAt,
	}
	err := saveRow(ctx, GetExecutor(ctx, r.db),
		`UPDATE course_progress SET
			completed_quizzes = :completed_quizzes, total_quizzes = :total_quizzes,
			percentage = :percentage, updated_at = :updated_at
		WHERE learner_id = :learner_id AND course_id = :course_id`,
		`INSERT INTO course_progress (learner_id, course_id, completed_quizzes, total_quizzes, percentage, updated_at)
		VALUES (:learner_id, :course_id, :completed_quizzes, :total_quizzes, :percentage, :updated_at)`,
		m)
	if err != nil {
		return fmt.Errorf("failed to save progress of learner %d in course %d: %w", p.LearnerID, p.CourseID, err)
	}
	return nil
}

// GetProgress returns the stored snapshot, or nil.
func (r *sqlxProgressRepository) GetProgress(ctx context.Context, learnerID, courseID int64) (*domain.Progress, error) {
	exec := GetExecutor(ctx, r.db)
	var m models.CourseProgress
	query := `SELECT
		learner_id "learner_id",
		course_id "course_id",
		completed_quizzes "completed_quizzes",
		total_quizzes "total_quizzes",
		percentage "percentage",
		updated_at "updated_at"
	FROM course_progress
	WHERE learner_id = ? AND course_id = ?`
	if err := exec.GetContext(ctx, &m, exec.Rebind(query), learnerID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get progress of learner %d in course %d: %w", learnerID, courseID, err)
	}
	return &domain.Progress{
		LearnerID:        m.LearnerID,
		CourseID:         m.CourseID,
		CompletedQuizzes: m.CompletedQuizzes,
		TotalQuizzes:     m.TotalQuizzes,
		Percentage:       m.Percentage,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

// UpsertCompetency records a competent lesson. An existing row keeps its
// completion time and only has updated_at refreshed.
func (r *sqlxProgressRepository) UpsertCompetency(ctx context.Context, c *domain.Competency) error {
	m := models.Competency{
		LearnerID:   c.LearnerID,
		CourseID:    c.CourseID,
		LessonID:    c.LessonID,
		CompletedAt: c.CompletedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	err := saveRow(ctx, GetExecutor(ctx, r.db),
		`UPDATE competencies SET updated_at = :updated_at
		WHERE learner_id = :learner_id AND course_id = :course_id AND lesson_id = :lesson_id`,
		`INSERT INTO competencies (learner_id, course_id, lesson_id, completed_at, updated_at)
		VALUES (:learner_id, :course_id, :lesson_id, :completed_at, :updated_at)`,
		m)
	if err != nil {
		return fmt.Errorf("failed to upsert competency for lesson %d: %w", c.LessonID, err)
	}
	return nil
}
