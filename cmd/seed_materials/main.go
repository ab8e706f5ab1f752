package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"coursequiz/cmd/seed_materials/internal/seedmodels"
	"coursequiz/internal/config"
	"coursequiz/internal/database"
	"coursequiz/internal/domain"
	"coursequiz/internal/logger"
	"coursequiz/internal/repository"
	"coursequiz/internal/validation"

	"go.uber.org/zap"
)

const defaultSeedFilePath = "configs/seed_data/materials.json"

func main() {
	seedFilePath := flag.String("file", defaultSeedFilePath, "seed manifest of already-uploaded materials")
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

	log.Info("Starting material seeding process...")
	db, err := database.Open(cfg.DB.Driver, cfg.GetDSN(), log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("Loading seed data from file", zap.String("path", *seedFilePath))
	byteValue, err := os.ReadFile(*seedFilePath)
	if err != nil {
		log.Fatal("Failed to read seed file", zap.String("path", *seedFilePath), zap.Error(err))
	}
	courses, err := parseManifest(byteValue)
	if err != nil {
		log.Fatal("Invalid seed data", zap.Error(err))
	}
	log.Info("Successfully parsed seed data", zap.Int("courses_loaded", len(courses)))

	s := &seeder{
		tm:           repository.NewTransactionManagerAdapter(db),
		materials:    repository.NewMaterialDatabaseAdapter(db),
		quizzes:      repository.NewQuizDatabaseAdapter(db),
		standbyCount: cfg.Generation.StandbyQuestionCount,
		log:          log,
	}
	total := 0
	for _, sc := range courses {
		n, err := s.seedCourse(ctx, sc)
		if err != nil {
			log.Error("Error seeding course, transaction rolled back", zap.String("course_id", sc.CourseID), zap.Error(err))
			continue
		}
		total += n
	}
	// Standby quizzes start empty; the reconciler fills them on its next pass.
	log.Info("Material seeding process completed.", zap.Int("materials_created", total))
}

func parseManifest(data []byte) ([]seedmodels.SeedCourse, error) {
	var courses []seedmodels.SeedCourse
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seed data: %w", err)
	}
	v := validation.NewValidator()
	for i := range courses {
		if errs := v.ValidateStruct(&courses[i]); len(errs) > 0 {
			return nil, fmt.Errorf("course %d: %w", i, errs)
		}
	}
	return courses, nil
}

type seeder struct {
	tm           domain.TransactionManager
	materials    domain.MaterialRepository
	quizzes      domain.QuizRepository
	standbyCount int
	log          *zap.Logger
}

// seedCourse registers the course's new materials with their standby quizzes in one
// transaction. Materials that already exist are left alone, so reruns are harmless.
func (s *seeder) seedCourse(ctx context.Context, sc seedmodels.SeedCourse) (int, error) {
	created := 0
	err := s.tm.WithTransaction(ctx, func(ctx context.Context) error {
		for _, sm := range sc.Materials {
			existing, err := s.materials.GetMaterialByID(ctx, sm.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				s.log.Info("Material exists.", zap.String("id", sm.ID))
				continue
			}
			m := &domain.Material{ID: sm.ID, CourseID: sc.CourseID, FilePath: sm.FilePath, FileName: sm.FileName}
			if err := s.materials.CreateMaterial(ctx, m); err != nil {
				return err
			}
			if err := s.quizzes.CreateQuiz(ctx, domain.NewStandbyQuiz(m, s.standbyCount)); err != nil {
				return fmt.Errorf("failed to create standby quiz for material %s: %w", m.ID, err)
			}
			s.log.Info("Created material.", zap.String("id", m.ID), zap.String("course_id", sc.CourseID))
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
