package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"lms-assessment/cmd/seed_initial_data/internal/seedmodels"
	"lms-assessment/internal/adapter"
	"lms-assessment/internal/cache"
	"lms-assessment/internal/config"
	"lms-assessment/internal/database"
	"lms-assessment/internal/domain"
	"lms-assessment/internal/logger"
	"lms-assessment/internal/repository"

	"go.uber.org/zap"
)

const defaultSeedFilePath = "configs/seed_data/catalog.json"

func main() {
	seedFilePath := flag.String("file", defaultSeedFilePath, "path of the JSON seed file")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("Starting catalog seeding process...")
	db, err := database.NewSQLXDB(ctx, cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	log.Info("Loading seed data from file", zap.String("path", *seedFilePath))
	byteValue, err := os.ReadFile(*seedFilePath)
	if err != nil {
		log.Fatal("Failed to read seed file", zap.String("path", *seedFilePath), zap.Error(err))
	}

	var data seedmodels.SeedData
	if err := json.Unmarshal(byteValue, &data); err != nil {
		log.Fatal("Failed to unmarshal seed data", zap.Error(err))
	}
	log.Info("Successfully unmarshalled seed data",
		zap.Int("courses_loaded", len(data.Courses)),
		zap.Int("enrolments_loaded", len(data.Enrolments)))

	s := &seeder{
		tx:         repository.NewTransactionManagerAdapter(db),
		catalog:    repository.NewQuizDatabaseAdapter(db),
		enrolments: repository.NewSQLXEnrolmentRepository(db),
		log:        log,
	}

	// Cached catalog entries of reseeded courses must not outlive the seed.
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, catalog cache will not be invalidated", zap.Error(err))
		} else {
			defer redisClient.Close()
			s.cached = adapter.NewCachedQuizCatalog(s.catalog, adapter.NewRedisCacheAdapter(redisClient), cfg.Catalog.CacheTTL)
		}
	}

	failed := 0
	for _, sc := range data.Courses {
		if err := s.seedCourse(ctx, sc); err != nil {
			failed++
			log.Error("Error seeding course, transaction rolled back", zap.Int64("courseID", sc.ID), zap.Error(err))
		}
	}
	if err := s.seedEnrolments(ctx, data.Enrolments); err != nil {
		failed++
		log.Error("Error seeding enrolments, transaction rolled back", zap.Error(err))
	}

	if failed > 0 {
		log.Fatal("Catalog seeding finished with errors", zap.Int("failed", failed))
	}
	log.Info("Catalog seeding process completed.")
}

type seeder struct {
	tx         domain.TransactionManager
	catalog    *repository.QuizDatabaseAdapter
	enrolments *repository.SQLXEnrolmentRepository
	cached     *adapter.CachedQuizCatalog
	log        *zap.Logger
}

// seedCourse writes one course tree in a single transaction.
func (s *seeder) seedCourse(ctx context.Context, sc seedmodels.SeedCourse) error {
	tree, err := sc.ToDomain()
	if err != nil {
		return err
	}
	s.log.Info("Processing course", zap.Int64("courseID", tree.Course.ID), zap.String("title", tree.Course.Title))

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.catalog.SaveCourse(txCtx, &tree.Course); err != nil {
			return fmt.Errorf("failed to save course %d: %w", tree.Course.ID, err)
		}
		for i := range tree.Lessons {
			if err := s.catalog.SaveLesson(txCtx, &tree.Lessons[i]); err != nil {
				return fmt.Errorf("failed to save lesson %d: %w", tree.Lessons[i].ID, err)
			}
		}
		for i := range tree.Topics {
			if err := s.catalog.SaveTopic(txCtx, &tree.Topics[i]); err != nil {
				return fmt.Errorf("failed to save topic %d: %w", tree.Topics[i].ID, err)
			}
		}
		for i := range tree.Quizzes {
			if err := s.catalog.SaveQuiz(txCtx, &tree.Quizzes[i]); err != nil {
				return fmt.Errorf("failed to save quiz %d: %w", tree.Quizzes[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("Successfully committed course",
		zap.Int64("courseID", tree.Course.ID),
		zap.Int("lessons", len(tree.Lessons)),
		zap.Int("topics", len(tree.Topics)),
		zap.Int("quizzes", len(tree.Quizzes)))

	if s.cached != nil {
		if err := s.cached.InvalidateCourse(ctx, tree.Course.ID, tree.LessonIDs(), tree.QuizIDs()); err != nil {
			s.log.Warn("Failed to invalidate cached catalog", zap.Int64("courseID", tree.Course.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *seeder) seedEnrolments(ctx context.Context, enrolments []seedmodels.SeedEnrolment) error {
	if len(enrolments) == 0 {
		return nil
	}
	return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, se := range enrolments {
			e := se.ToDomain()
			if err := s.enrolments.SaveEnrolment(txCtx, &e); err != nil {
				return fmt.Errorf("failed to save enrolment %d: %w", e.ID, err)
			}
		}
		s.log.Info("Successfully committed enrolments", zap.Int("count", len(enrolments)))
		return nil
	})
}
