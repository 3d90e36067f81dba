package repository

import (
	"context"
	"fmt"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/repository/models"
	"lms-assessment/internal/util"

	"github.com/jmoiron/sqlx"
)

// SQLXEnrolmentRepository implements domain.EnrolmentStore using sqlx.
type SQLXEnrolmentRepository struct {
	db DBTX
}

// NewSQLXEnrolmentRepository creates a new instance of SQLXEnrolmentRepository.
func NewSQLXEnrolmentRepository(db *sqlx.DB) *SQLXEnrolmentRepository {
	return &SQLXEnrolmentRepository{db: db}
}

// ListEnrolments returns every enrolment of the learner with its course
// title and category.
func (r *SQLXEnrolmentRepository) ListEnrolments(ctx context.Context, learnerID int64) ([]domain.Enrolment, error) {
	exec := GetExecutor(ctx, r.db)
	var rows []models.Enrolment
	query := `SELECT
		e.id "id",
		e.learner_id "learner_id",
		e.course_id "course_id",
		c.title "course_title",
		c.category_id "category_id",
		e.is_main "is_main",
		e.delisted "delisted"
	FROM enrolments e
	JOIN courses c ON c.id = e.course_id
	WHERE e.learner_id = ?
	ORDER BY e.id`
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), learnerID); err != nil {
		return nil, fmt.Errorf("failed to list enrolments of learner %d: %w", learnerID, err)
	}

	out := make([]domain.Enrolment, 0, len(rows))
	for _, e := range rows {
		out = append(out, domain.Enrolment{
			ID:          e.ID,
			LearnerID:   e.LearnerID,
			CourseID:    e.CourseID,
			CourseTitle: e.CourseTitle,
			CategoryID:  e.CategoryID,
			IsMain:      e.IsMain != 0,
			Delisted:    e.Delisted != 0,
		})
	}
	return out, nil
}

// SaveEnrolment inserts or updates an enrolment.
func (r *SQLXEnrolmentRepository) SaveEnrolment(ctx context.Context, e *domain.Enrolment) error {
	return saveRow(ctx, GetExecutor(ctx, r.db),
		`UPDATE enrolments SET learner_id = :learner_id, course_id = :course_id, is_main = :is_main, delisted = :delisted
		WHERE id = :id`,
		`INSERT INTO enrolments (id, learner_id, course_id, is_main, delisted)
		VALUES (:id, :learner_id, :course_id, :is_main, :delisted)`,
		models.Enrolment{
			ID:        e.ID,
			LearnerID: e.LearnerID,
			CourseID:  e.CourseID,
			IsMain:    util.BoolToInt(e.IsMain),
			Delisted:  util.BoolToInt(e.Delisted),
		})
}
