package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lms-assessment/internal/domain"
	"lms-assessment/internal/repository/models"
	"lms-assessment/internal/util"

	"github.com/jmoiron/sqlx"
)

const quizColumns = `
		id "id",
		course_id "course_id",
		lesson_id "lesson_id",
		topic_id "topic_id",
		title "title",
		kind "kind",
		passing_percentage "passing_percentage",
		allowed_attempts "allowed_attempts",
		has_checklist "has_checklist",
		created_at "created_at",
		updated_at "updated_at"`

const questionColumns = `
		id "id",
		quiz_id "quiz_id",
		title "title",
		answer_type "answer_type",
		required "required",
		option_list "option_list",
		correct_answer "correct_answer",
		table_layout "table_layout",
		position "position",
		deleted_at "deleted_at"`

// QuizDatabaseAdapter implements domain.QuizCatalog using sqlx.DB
type QuizDatabaseAdapter struct {
	db DBTX
}

// NewQuizDatabaseAdapter creates a new instance of QuizDatabaseAdapter
func NewQuizDatabaseAdapter(db *sqlx.DB) *QuizDatabaseAdapter {
	return &QuizDatabaseAdapter{db: db}
}

// GetQuiz implements domain.QuizCatalog
func (a *QuizDatabaseAdapter) GetQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error) {
	exec := GetExecutor(ctx, a.db)

	var modelQuiz models.Quiz
	query := `SELECT ` + quizColumns + `
	FROM quizzes
	WHERE id = ?`
	if err := exec.GetContext(ctx, &modelQuiz, exec.Rebind(query), quizID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz %d: %w", quizID, err)
	}

	var modelQuestions []models.Question
	query = `SELECT ` + questionColumns + `
	FROM questions
	WHERE quiz_id = ?
	ORDER BY position, id`
	if err := exec.SelectContext(ctx, &modelQuestions, exec.Rebind(query), quizID); err != nil {
		return nil, fmt.Errorf("failed to get questions of quiz %d: %w", quizID, err)
	}

	quiz := toDomainQuiz(&modelQuiz)
	quiz.Questions = make([]domain.Question, 0, len(modelQuestions))
	for i := range modelQuestions {
		q, err := toDomainQuestion(&modelQuestions[i])
		if err != nil {
			return nil, err
		}
		quiz.Questions = append(quiz.Questions, *q)
	}
	return quiz, nil
}

// GetCourse implements domain.QuizCatalog
func (a *QuizDatabaseAdapter) GetCourse(ctx context.Context, courseID int64) (*domain.Course, error) {
	exec := GetExecutor(ctx, a.db)
	var c models.Course
	query := `SELECT id "id", title "title", category_id "category_id" FROM courses WHERE id = ?`
	if err := exec.GetContext(ctx, &c, exec.Rebind(query), courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get course %d: %w", courseID, err)
	}
	return &domain.Course{ID: c.ID, Title: c.Title, CategoryID: c.CategoryID}, nil
}

// GetLessons implements domain.QuizCatalog
func (a *QuizDatabaseAdapter) GetLessons(ctx context.Context, courseID int64) ([]domain.Lesson, error) {
	exec := GetExecutor(ctx, a.db)
	var rows []models.Lesson
	query := `SELECT id "id", course_id "course_id", title "title", position "position"
	FROM lessons
	WHERE course_id = ?
	ORDER BY position, id`
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), courseID); err != nil {
		return nil, fmt.Errorf("failed to get lessons of course %d: %w", courseID, err)
	}
	out := make([]domain.Lesson, 0, len(rows))
	for _, l := range rows {
		out = append(out, domain.Lesson{ID: l.ID, CourseID: l.CourseID, Title: l.Title, Position: l.Position})
	}
	return out, nil
}

// GetTopics implements domain.QuizCatalog
func (a *QuizDatabaseAdapter) GetTopics(ctx context.Context, lessonID int64) ([]domain.Topic, error) {
	exec := GetExecutor(ctx, a.db)
	var rows []models.Topic
	query := `SELECT id "id", lesson_id "lesson_id", title "title", position "position"
	FROM topics
	WHERE lesson_id = ?
	ORDER BY position, id`
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), lessonID); err != nil {
		return nil, fmt.Errorf("failed to get topics of lesson %d: %w", lessonID, err)
	}
	out := make([]domain.Topic, 0, len(rows))
	for _, t := range rows {
		out = append(out, domain.Topic{ID: t.ID, LessonID: t.LessonID, Title: t.Title, Position: t.Position})
	}
	return out, nil
}

// GetQuizzesByLesson implements domain.QuizCatalog
func (a *QuizDatabaseAdapter) GetQuizzesByLesson(ctx context.Context, lessonID int64) ([]domain.Quiz, error) {
	exec := GetExecutor(ctx, a.db)
	var rows []models.Quiz
	query := `SELECT ` + quizColumns + `
	FROM quizzes
	WHERE lesson_id = ?
	ORDER BY id`
	if err := exec.SelectContext(ctx, &rows, exec.Rebind(query), lessonID); err != nil {
		return nil, fmt.Errorf("failed to get quizzes of lesson %d: %w", lessonID, err)
	}
	out := make([]domain.Quiz, 0, len(rows))
	for i := range rows {
		out = append(out, *toDomainQuiz(&rows[i]))
	}
	return out, nil
}

// CountQuizzesByCourse implements domain.QuizCatalog
func (a *QuizDatabaseAdapter) CountQuizzesByCourse(ctx context.Context, courseID int64) (int, error) {
	exec := GetExecutor(ctx, a.db)
	var n int
	query := `SELECT COUNT(*) FROM quizzes WHERE course_id = ?`
	if err := exec.GetContext(ctx, &n, exec.Rebind(query), courseID); err != nil {
		return 0, fmt.Errorf("failed to count quizzes of course %d: %w", courseID, err)
	}
	return n, nil
}

// SaveCourse inserts or updates a course.
func (a *QuizDatabaseAdapter) SaveCourse(ctx context.Context, c *domain.Course) error {
	return saveRow(ctx, GetExecutor(ctx, a.db),
		`UPDATE courses SET title = :title, category_id = :category_id WHERE id = :id`,
		`INSERT INTO courses (id, title, category_id) VALUES (:id, :title, :category_id)`,
		models.Course{ID: c.ID, Title: c.Title, CategoryID: c.CategoryID})
}

// SaveLesson inserts or updates a lesson.
func (a *QuizDatabaseAdapter) SaveLesson(ctx context.Context, l *domain.Lesson) error {
	return saveRow(ctx, GetExecutor(ctx, a.db),
		`UPDATE lessons SET course_id = :course_id, title = :title, position = :position WHERE id = :id`,
		`INSERT INTO lessons (id, course_id, title, position) VALUES (:id, :course_id, :title, :position)`,
		models.Lesson{ID: l.ID, CourseID: l.CourseID, Title: l.Title, Position: l.Position})
}

// SaveTopic inserts or updates a topic.
func (a *QuizDatabaseAdapter) SaveTopic(ctx context.Context, t *domain.Topic) error {
	return saveRow(ctx, GetExecutor(ctx, a.db),
		`UPDATE topics SET lesson_id = :lesson_id, title = :title, position = :position WHERE id = :id`,
		`INSERT INTO topics (id, lesson_id, title, position) VALUES (:id, :lesson_id, :title, :position)`,
		models.Topic{ID: t.ID, LessonID: t.LessonID, Title: t.Title, Position: t.Position})
}

// SaveQuiz inserts or updates a quiz and its questions.
func (a *QuizDatabaseAdapter) SaveQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	exec := GetExecutor(ctx, a.db)
	now := time.Now()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now

	err := saveRow(ctx, exec,
		`UPDATE quizzes SET
			course_id = :course_id, lesson_id = :lesson_id, topic_id = :topic_id, title = :title,
			kind = :kind, passing_percentage = :passing_percentage, allowed_attempts = :allowed_attempts,
			has_checklist = :has_checklist, updated_at = :updated_at
		WHERE id = :id`,
		`INSERT INTO quizzes (
			id, course_id, lesson_id, topic_id, title, kind, passing_percentage,
			allowed_attempts, has_checklist, created_at, updated_at
		) VALUES (
			:id, :course_id, :lesson_id, :topic_id, :title, :kind, :passing_percentage,
			:allowed_attempts, :has_checklist, :created_at, :updated_at
		)`,
		toModelQuiz(quiz))
	if err != nil {
		return err
	}

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		q.QuizID = quiz.ID
		m, err := toModelQuestion(q)
		if err != nil {
			return err
		}
		err = saveRow(ctx, exec,
			`UPDATE questions SET
				quiz_id = :quiz_id, title = :title, answer_type = :answer_type, required = :required,
				option_list = :option_list, correct_answer = :correct_answer, table_layout = :table_layout,
				position = :position, deleted_at = :deleted_at
			WHERE id = :id`,
			`INSERT INTO questions (
				id, quiz_id, title, answer_type, required, option_list,
				correct_answer, table_layout, position, deleted_at
			) VALUES (
				:id, :quiz_id, :title, :answer_type, :required, :option_list,
				:correct_answer, :table_layout, :position, :deleted_at
			)`,
			m)
		if err != nil {
			return err
		}
	}
	return nil
}

// saveRow updates a row and inserts it when nothing was updated.
func saveRow(ctx context.Context, exec DBTX, update, insert string, arg interface{}) error {
	n, err := execNamed(ctx, exec, update, arg)
	if err != nil {
		return fmt.Errorf("failed to update row: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := execNamed(ctx, exec, insert, arg); err != nil {
		return fmt.Errorf("failed to insert row: %w", err)
	}
	return nil
}

func toDomainQuiz(m *models.Quiz) *domain.Quiz {
	return &domain.Quiz{
		ID:                m.ID,
		TopicID:           m.TopicID,
		LessonID:          m.LessonID,
		CourseID:          m.CourseID,
		Title:             m.Title,
		Kind:              domain.QuizKind(m.Kind),
		PassingPercentage: m.PassingPercentage,
		AllowedAttempts:   m.AllowedAttempts,
		HasChecklist:      m.HasChecklist != 0,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toModelQuiz(q *domain.Quiz) models.Quiz {
	kind := q.Kind
	if kind == "" {
		kind = domain.QuizKindRegular
	}
	return models.Quiz{
		ID:                q.ID,
		CourseID:          q.CourseID,
		LessonID:          q.LessonID,
		TopicID:           q.TopicID,
		Title:             q.Title,
		Kind:              string(kind),
		PassingPercentage: q.PassingPercentage,
		AllowedAttempts:   q.AllowedAttempts,
		HasChecklist:      util.BoolToInt(q.HasChecklist),
		CreatedAt:         q.CreatedAt,
		UpdatedAt:         q.UpdatedAt,
	}
}

func toDomainQuestion(m *models.Question) (*domain.Question, error) {
	q := &domain.Question{
		ID:            m.ID,
		QuizID:        m.QuizID,
		Title:         m.Title,
		AnswerType:    domain.AnswerType(m.AnswerType),
		Required:      m.Required != 0,
		CorrectAnswer: m.CorrectAnswer.String,
		Position:      m.Position,
		DeletedAt:     util.NullTimeToPtr(m.DeletedAt),
	}
	if len(m.Options) > 0 {
		q.Options = []string(m.Options)
	}
	if m.TableLayout.Valid && m.TableLayout.String != "" {
		var layout domain.TableLayout
		if err := json.Unmarshal([]byte(m.TableLayout.String), &layout); err != nil {
			return nil, fmt.Errorf("failed to decode table layout of question %d: %w", m.ID, err)
		}
		q.Table = &layout
	}
	return q, nil
}

func toModelQuestion(q *domain.Question) (models.Question, error) {
	m := models.Question{
		ID:            q.ID,
		QuizID:        q.QuizID,
		Title:         q.Title,
		AnswerType:    string(q.AnswerType),
		Required:      util.BoolToInt(q.Required),
		Options:       models.StringSlice(q.Options),
		CorrectAnswer: util.StringToNullString(q.CorrectAnswer),
		Position:      q.Position,
		DeletedAt:     util.TimePtrToNullTime(q.DeletedAt),
	}
	if q.Table != nil {
		layout, err := json.Marshal(q.Table)
		if err != nil {
			return m, fmt.Errorf("failed to encode table layout of question %d: %w", q.ID, err)
		}
		m.TableLayout = util.StringToNullString(string(layout))
	}
	return m, nil
}
