package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lms-assessment/internal/cache"
	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedQuizCatalog is a read-through cache in front of a QuizCatalog.
// Cache failures are logged and fall through to the underlying catalog.
type CachedQuizCatalog struct {
	next    domain.QuizCatalog
	cache   domain.Cache
	ttl     time.Duration
	sfGroup singleflight.Group
}

func NewCachedQuizCatalog(next domain.QuizCatalog, c domain.Cache, ttl time.Duration) *CachedQuizCatalog {
	return &CachedQuizCatalog{next: next, cache: c, ttl: ttl}
}

var _ domain.QuizCatalog = (*CachedQuizCatalog)(nil)

func (c *CachedQuizCatalog) GetQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error) {
	return readThrough(ctx, c, cache.CatalogKey("quiz", quizID), func() (*domain.Quiz, error) {
		return c.next.GetQuiz(ctx, quizID)
	})
}

func (c *CachedQuizCatalog) GetCourse(ctx context.Context, courseID int64) (*domain.Course, error) {
	return readThrough(ctx, c, cache.CatalogKey("course", courseID), func() (*domain.Course, error) {
		return c.next.GetCourse(ctx, courseID)
	})
}

func (c *CachedQuizCatalog) GetLessons(ctx context.Context, courseID int64) ([]domain.Lesson, error) {
	return readThrough(ctx, c, cache.CatalogKey("lessons", courseID), func() ([]domain.Lesson, error) {
		return c.next.GetLessons(ctx, courseID)
	})
}

func (c *CachedQuizCatalog) GetTopics(ctx context.Context, lessonID int64) ([]domain.Topic, error) {
	return readThrough(ctx, c, cache.CatalogKey("topics", lessonID), func() ([]domain.Topic, error) {
		return c.next.GetTopics(ctx, lessonID)
	})
}

func (c *CachedQuizCatalog) GetQuizzesByLesson(ctx context.Context, lessonID int64) ([]domain.Quiz, error) {
	return readThrough(ctx, c, cache.CatalogKey("lesson_quizzes", lessonID), func() ([]domain.Quiz, error) {
		return c.next.GetQuizzesByLesson(ctx, lessonID)
	})
}

// CountQuizzesByCourse is not cached: the count backs the progress percentage
// and must follow catalog edits immediately.
func (c *CachedQuizCatalog) CountQuizzesByCourse(ctx context.Context, courseID int64) (int, error) {
	return c.next.CountQuizzesByCourse(ctx, courseID)
}

// InvalidateCourse drops the cached course structure after the catalog changes.
func (c *CachedQuizCatalog) InvalidateCourse(ctx context.Context, courseID int64, lessonIDs []int64, quizIDs []int64) error {
	keys := []string{cache.CatalogKey("course", courseID), cache.CatalogKey("lessons", courseID)}
	for _, id := range lessonIDs {
		keys = append(keys, cache.CatalogKey("topics", id), cache.CatalogKey("lesson_quizzes", id))
	}
	for _, id := range quizIDs {
		keys = append(keys, cache.CatalogKey("quiz", id))
	}
	var errs []error
	for _, key := range keys {
		if err := c.cache.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func readThrough[T any](ctx context.Context, c *CachedQuizCatalog, key string, fetch func() (T, error)) (T, error) {
	var zero T
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var v T
		errUnmarshal := json.Unmarshal([]byte(raw), &v)
		if errUnmarshal == nil {
			return v, nil
		}
		logger.Get().Warn("Discarding undecodable catalog cache entry", zap.String("key", key), zap.Error(errUnmarshal))
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		logger.Get().Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	res, err, _ := c.sfGroup.Do(key, func() (interface{}, error) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		if isAbsent(v) {
			return v, nil
		}
		data, errMarshal := json.Marshal(v)
		if errMarshal != nil {
			logger.Get().Warn("Failed to encode catalog entry", zap.String("key", key), zap.Error(errMarshal))
			return v, nil
		}
		if errSet := c.cache.Set(ctx, key, string(data), c.ttl); errSet != nil {
			logger.Get().Warn("Catalog cache write failed", zap.String("key", key), zap.Error(errSet))
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type from singleflight.Do for %s: %T", key, res)
	}
	return v, nil
}

// isAbsent reports whether v is a not-found result that must not be cached.
func isAbsent(v interface{}) bool {
	switch t := v.(type) {
	case *domain.Quiz:
		return t == nil
	case *domain.Course:
		return t == nil
	}
	return false
}
