package seedmodels

import (
	"fmt"

	"lms-assessment/internal/domain"
)

// SeedQuestion defines a question of a quiz in the JSON seed file.
type SeedQuestion struct {
	ID            int64               `json:"id"`
	Title         string              `json:"title"`
	AnswerType    domain.AnswerType   `json:"answer_type"`
	Required      bool                `json:"required"`
	Options       []string            `json:"options"`
	CorrectAnswer string              `json:"correct_answer"`
	Table         *domain.TableLayout `json:"table"`
}

// SeedQuiz defines a quiz attached to a topic.
type SeedQuiz struct {
	ID                int64          `json:"id"`
	Title             string         `json:"title"`
	Kind              string         `json:"kind"`
	PassingPercentage int            `json:"passing_percentage"`
	AllowedAttempts   int            `json:"allowed_attempts"`
	HasChecklist      bool           `json:"has_checklist"`
	Questions         []SeedQuestion `json:"questions"`
}

// SeedTopic defines a topic of a lesson.
type SeedTopic struct {
	ID      int64      `json:"id"`
	Title   string     `json:"title"`
	Quizzes []SeedQuiz `json:"quizzes"`
}

// SeedLesson defines a lesson of a course.
type SeedLesson struct {
	ID     int64       `json:"id"`
	Title  string      `json:"title"`
	Topics []SeedTopic `json:"topics"`
}

// SeedCourse defines a course with its whole lesson tree.
type SeedCourse struct {
	ID         int64        `json:"id"`
	Title      string       `json:"title"`
	CategoryID int64        `json:"category_id"`
	Lessons    []SeedLesson `json:"lessons"`
}

// SeedEnrolment enrols a learner in a course.
type SeedEnrolment struct {
	ID        int64 `json:"id"`
	LearnerID int64 `json:"learner_id"`
	CourseID  int64 `json:"course_id"`
	IsMain    bool  `json:"is_main"`
	Delisted  bool  `json:"delisted"`
}

// SeedData is the root of the JSON seed file.
type SeedData struct {
	Courses    []SeedCourse    `json:"courses"`
	Enrolments []SeedEnrolment `json:"enrolments"`
}

// CourseTree is a seed course converted to domain objects. Positions follow
// the order of the seed file, starting at 1.
type CourseTree struct {
	Course  domain.Course
	Lessons []domain.Lesson
	Topics  []domain.Topic
	Quizzes []domain.Quiz
}

// LessonIDs returns the ids of the tree's lessons.
func (t *CourseTree) LessonIDs() []int64 {
	ids := make([]int64, 0, len(t.Lessons))
	for _, l := range t.Lessons {
		ids = append(ids, l.ID)
	}
	return ids
}

// QuizIDs returns the ids of the tree's quizzes.
func (t *CourseTree) QuizIDs() []int64 {
	ids := make([]int64, 0, len(t.Quizzes))
	for _, q := range t.Quizzes {
		ids = append(ids, q.ID)
	}
	return ids
}

// ToDomain converts the seed course and checks that every node has an id.
func (sc SeedCourse) ToDomain() (*CourseTree, error) {
	if sc.ID <= 0 {
		return nil, fmt.Errorf("course %q has no id", sc.Title)
	}
	tree := &CourseTree{Course: domain.Course{ID: sc.ID, Title: sc.Title, CategoryID: sc.CategoryID}}

	for li, sl := range sc.Lessons {
		if sl.ID <= 0 {
			return nil, fmt.Errorf("lesson %q of course %d has no id", sl.Title, sc.ID)
		}
		tree.Lessons = append(tree.Lessons, domain.Lesson{ID: sl.ID, CourseID: sc.ID, Title: sl.Title, Position: li + 1})

		for ti, st := range sl.Topics {
			if st.ID <= 0 {
				return nil, fmt.Errorf("topic %q of lesson %d has no id", st.Title, sl.ID)
			}
			tree.Topics = append(tree.Topics, domain.Topic{ID: st.ID, LessonID: sl.ID, Title: st.Title, Position: ti + 1})

			for _, sq := range st.Quizzes {
				quiz, err := sq.toDomain(sc.ID, sl.ID, st.ID)
				if err != nil {
					return nil, err
				}
				tree.Quizzes = append(tree.Quizzes, *quiz)
			}
		}
	}
	return tree, nil
}

func (sq SeedQuiz) toDomain(courseID, lessonID, topicID int64) (*domain.Quiz, error) {
	if sq.ID <= 0 {
		return nil, fmt.Errorf("quiz %q of topic %d has no id", sq.Title, topicID)
	}
	kind := domain.QuizKind(sq.Kind)
	switch kind {
	case "":
		kind = domain.QuizKindRegular
	case domain.QuizKindRegular, domain.QuizKindLLND, domain.QuizKindPTR:
	default:
		return nil, fmt.Errorf("quiz %d has unknown kind %q", sq.ID, sq.Kind)
	}

	quiz := &domain.Quiz{
		ID:                sq.ID,
		CourseID:          courseID,
		LessonID:          lessonID,
		TopicID:           topicID,
		Title:             sq.Title,
		Kind:              kind,
		PassingPercentage: sq.PassingPercentage,
		AllowedAttempts:   sq.AllowedAttempts,
		HasChecklist:      sq.HasChecklist,
	}
	for i, q := range sq.Questions {
		if q.ID <= 0 {
			return nil, fmt.Errorf("question %q of quiz %d has no id", q.Title, sq.ID)
		}
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:            q.ID,
			QuizID:        sq.ID,
			Title:         q.Title,
			AnswerType:    q.AnswerType,
			Required:      q.Required,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Table:         q.Table,
			Position:      i + 1,
		})
	}
	return quiz, nil
}

// ToDomain converts the seed enrolment.
func (se SeedEnrolment) ToDomain() domain.Enrolment {
	return domain.Enrolment{
		ID:        se.ID,
		LearnerID: se.LearnerID,
		CourseID:  se.CourseID,
		IsMain:    se.IsMain,
		Delisted:  se.Delisted,
	}
}
