package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"lms-assessment/internal/database"
	"lms-assessment/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLiteDB opens a migrated in-memory database seeded with one course.
func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLXDB(ctx, database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(ctx, db))

	catalog := NewQuizDatabaseAdapter(db)
	require.NoError(t, catalog.SaveCourse(ctx, &domain.Course{ID: 10, Title: "Forklift Operation", CategoryID: 2}))
	require.NoError(t, catalog.SaveCourse(ctx, &domain.Course{ID: 20, Title: "Forklift Operation Term 2", CategoryID: 2}))
	require.NoError(t, catalog.SaveLesson(ctx, &domain.Lesson{ID: 100, CourseID: 10, Title: "Safety", Position: 1}))
	require.NoError(t, catalog.SaveTopic(ctx, &domain.Topic{ID: 1000, LessonID: 100, Title: "Signs", Position: 1}))
	require.NoError(t, catalog.SaveQuiz(ctx, &domain.Quiz{
		ID: 5, CourseID: 10, LessonID: 100, TopicID: 1000, Title: "Signs quiz",
		Kind: domain.QuizKindLLND, PassingPercentage: 50,
		Questions: []domain.Question{
			{ID: 51, Title: "Pick one", AnswerType: domain.AnswerSingleChoice, Required: true, Options: []string{"a", "b"}, CorrectAnswer: "a", Position: 1},
			{ID: 52, Title: "Explain", AnswerType: domain.AnswerTextarea, Position: 2},
		},
	}))
	return db
}

func TestSQLite_CatalogRoundTrip(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	catalog := NewQuizDatabaseAdapter(db)

	quiz, err := catalog.GetQuiz(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, quiz)
	assert.Equal(t, domain.QuizKindLLND, quiz.Kind)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, []string{"a", "b"}, quiz.Questions[0].Options)
	assert.Equal(t, "", quiz.Questions[1].CorrectAnswer)

	// saving again updates in place
	quiz.Title = "Signs quiz v2"
	require.NoError(t, catalog.SaveQuiz(ctx, quiz))
	quizzes, err := catalog.GetQuizzesByLesson(ctx, 100)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, "Signs quiz v2", quizzes[0].Title)

	n, err := catalog.CountQuizzesByCourse(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := catalog.GetCourse(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	enrolments := NewSQLXEnrolmentRepository(db)
	require.NoError(t, enrolments.SaveEnrolment(ctx, &domain.Enrolment{ID: 1, LearnerID: 7, CourseID: 10, IsMain: true}))
	require.NoError(t, enrolments.SaveEnrolment(ctx, &domain.Enrolment{ID: 2, LearnerID: 7, CourseID: 20, Delisted: true}))
	list, err := enrolments.ListEnrolments(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsMain)
	assert.Equal(t, int64(2), list[0].CategoryID)
	assert.Equal(t, "Forklift Operation Term 2", list[1].CourseTitle)
	assert.True(t, list[1].Delisted)
}

func TestSQLite_AttemptLifecycle(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	repo := NewSQLXAttemptRepository(db)
	catalog := NewQuizDatabaseAdapter(db)

	quiz, err := catalog.GetQuiz(ctx, 5)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Millisecond)
	key := domain.KeyFor(7, quiz, 10)

	first := domain.NewAttempt("01HZX0000000000000000000A1", key, quiz, 10, 1, now)
	require.NoError(t, repo.CreateAttempt(ctx, first))

	// a second open attempt on the same key is rejected
	dup := domain.NewAttempt("01HZX0000000000000000000A2", key, quiz, 10, 2, now)
	err = repo.CreateAttempt(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrUniqueViolation)

	open, err := repo.GetOpenAttempt(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, first.ID, open.ID)
	assert.Len(t, open.Questions, 2)

	open.Answers = open.Answers.Merge(51, json.RawMessage(`"b"`))
	open.Evaluate(domain.StatusFail, now)
	require.NoError(t, repo.UpdateAttempt(ctx, open))
	assert.Equal(t, 2, open.Version)

	// a writer holding the old version loses
	stale := *first
	stale.Answers = stale.Answers.Merge(52, json.RawMessage(`"late"`))
	assert.ErrorIs(t, repo.UpdateAttempt(ctx, &stale), domain.ErrStaleWrite)

	// the closed attempt frees the open slot
	second := domain.NewAttempt("01HZX0000000000000000000A3", key, quiz, 10, 2, now)
	require.NoError(t, repo.CreateAttempt(ctx, second))
	require.NoError(t, repo.TouchAttempt(ctx, second.ID))

	latest, err := repo.GetLatestAttempt(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.NotNil(t, latest.AccessedAt)

	all, err := repo.ListAttempts(ctx, key)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.StatusFail, all[0].Status)
	assert.JSONEq(t, `"b"`, string(all[0].Answers[51]))

	passed, err := repo.HasSatisfactoryAttemptOfKind(ctx, 7, domain.QuizKindLLND)
	require.NoError(t, err)
	assert.False(t, passed)

	second.Answers = second.Answers.Merge(51, json.RawMessage(`"a"`))
	second.Evaluate(domain.StatusSatisfactory, now)
	require.NoError(t, repo.UpdateAttempt(ctx, second))
	passed, err = repo.HasSatisfactoryAttemptOfKind(ctx, 7, domain.QuizKindLLND)
	require.NoError(t, err)
	assert.True(t, passed)

	// evaluations and feedback are write-once per attempt
	evals := NewSQLXEvaluationRepository(db)
	eval := &domain.Evaluation{
		ID: "01HZX0000000000000000000E1", AttemptID: second.ID, LearnerID: 7, QuizID: 5,
		Results:   map[int64]domain.QuestionVerdict{51: {Verdict: domain.VerdictCorrect, MarkedBy: domain.MarkedBySystem}},
		Verdict:   domain.VerdictSatisfactory,
		CreatedAt: now,
	}
	require.NoError(t, evals.CreateEvaluation(ctx, eval))
	eval.ID = "01HZX0000000000000000000E2"
	assert.ErrorIs(t, evals.CreateEvaluation(ctx, eval), domain.ErrUniqueViolation)

	gotEval, err := evals.GetEvaluationByAttempt(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotEval.CorrectCount())

	fb := &domain.Feedback{
		ID: "01HZX0000000000000000000F1", AttemptID: second.ID, LearnerID: 7, QuizID: 5, CourseID: 10,
		Obtained: 50, Passing: 50, CreatedAt: now,
	}
	require.NoError(t, evals.CreateFeedback(ctx, fb))
	gotFb, err := evals.GetFeedbackByAttempt(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, gotFb.Obtained)
	assert.Equal(t, "", gotFb.Message)

	none, err := evals.GetFeedbackByAttempt(ctx, first.ID)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLite_ProgressAndNotifications(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	progress := NewSQLXProgressRepository(db)
	now := time.Now().UTC().Truncate(time.Millisecond)

	node := domain.ProgressNode{LearnerID: 7, CourseID: 10, Type: domain.NodeQuiz, NodeID: 5, CompletedAt: now}
	created, err := progress.MarkNodeComplete(ctx, node)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = progress.MarkNodeComplete(ctx, node)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := progress.CountCompletedNodes(ctx, 7, 10, domain.NodeQuiz)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := progress.GetProgress(ctx, 7, 10)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, progress.SaveProgress(ctx, &domain.Progress{LearnerID: 7, CourseID: 10, CompletedQuizzes: 1, TotalQuizzes: 2, Percentage: 50, UpdatedAt: now}))
	require.NoError(t, progress.SaveProgress(ctx, &domain.Progress{LearnerID: 7, CourseID: 10, CompletedQuizzes: 2, TotalQuizzes: 2, Percentage: 100, UpdatedAt: now}))
	p, err := progress.GetProgress(ctx, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Percentage)

	require.NoError(t, progress.UpsertCompetency(ctx, &domain.Competency{LearnerID: 7, CourseID: 10, LessonID: 100, CompletedAt: now, UpdatedAt: now}))
	require.NoError(t, progress.UpsertCompetency(ctx, &domain.Competency{LearnerID: 7, CourseID: 10, LessonID: 100, CompletedAt: now.Add(time.Hour), UpdatedAt: now.Add(time.Hour)}))
	var completedAt time.Time
	require.NoError(t, db.GetContext(ctx, &completedAt, `SELECT completed_at FROM competencies WHERE lesson_id = 100`))
	assert.True(t, completedAt.Equal(now))

	notices := NewSQLXNotificationRepository(db)
	require.NoError(t, notices.CreateReturnedNotice(ctx, 7, "attempt-1"))
	read, err := notices.MarkReturnedRead(ctx, 7, "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), read)
	read, err = notices.MarkReturnedRead(ctx, 7, "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), read)

	events := NewSQLXEventLogRepository(db)
	require.NoError(t, events.Publish(ctx, domain.AttemptChange{AttemptID: "attempt-1", Status: domain.StatusReturned, OccurredAt: now}))
	var payload string
	require.NoError(t, db.GetContext(ctx, &payload, `SELECT payload FROM event_log WHERE event_key = 'attempt-1'`))
	assert.Contains(t, payload, `"status":"RETURNED"`)
}

func TestSQLite_TransactionRollsBack(t *testing.T) {
	db := newSQLiteDB(t)
	ctx := context.Background()
	tm := NewTransactionManagerAdapter(db)
	progress := NewSQLXProgressRepository(db)

	err := tm.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := progress.MarkNodeComplete(txCtx, domain.ProgressNode{LearnerID: 7, CourseID: 10, Type: domain.NodeTopic, NodeID: 1000, CompletedAt: time.Now()}); err != nil {
			return err
		}
		return domain.NewAttemptConflictError(nil)
	})
	assert.Equal(t, domain.CodeAttemptConflict, domain.CodeOf(err))

	done, err := progress.IsNodeComplete(ctx, 7, 10, domain.NodeTopic, 1000)
	require.NoError(t, err)
	assert.False(t, done)
}
