package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursequiz/internal/domain"
	"coursequiz/internal/repository/models"
	"coursequiz/internal/util"

	"github.com/jmoiron/sqlx"
)

// MaterialDatabaseAdapter implements domain.MaterialRepository using sqlx.DB.
type MaterialDatabaseAdapter struct {
	db *sqlx.DB
}

func NewMaterialDatabaseAdapter(db *sqlx.DB) domain.MaterialRepository {
	return &MaterialDatabaseAdapter{db: db}
}

func (a *MaterialDatabaseAdapter) CreateMaterial(ctx context.Context, m *domain.Material) error {
	if m == nil {
		return fmt.Errorf("cannot save nil material")
	}
	if m.ID == "" {
		m.ID = util.NewULID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	ex := GetExecutor(ctx, a.db)
	query := ex.Rebind(`INSERT INTO materials (id, course_id, file_path, file_name, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := ex.ExecContext(ctx, query, m.ID, m.CourseID, m.FilePath, m.FileName, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to save material: %w", err)
	}
	return nil
}

// GetMaterialByID returns nil, nil when the material does not exist.
func (a *MaterialDatabaseAdapter) GetMaterialByID(ctx context.Context, id string) (*domain.Material, error) {
	ex := GetExecutor(ctx, a.db)
	var m models.Material
	query := ex.Rebind(`SELECT
		id "id",
		course_id "course_id",
		file_path "file_path",
		file_name "file_name",
		created_at "created_at"
	FROM materials WHERE id = ?`)
	if err := ex.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get material by ID %s: %w", id, err)
	}
	return toDomainMaterial(&m), nil
}

// ListMaterialsByQuiz returns the quiz's materials in id order.
func (a *MaterialDatabaseAdapter) ListMaterialsByQuiz(ctx context.Context, quizID string) ([]*domain.Material, error) {
	ex := GetExecutor(ctx, a.db)
	var rows []models.Material
	query := ex.Rebind(`SELECT
		m.id "id",
		m.course_id "course_id",
		m.file_path "file_path",
		m.file_name "file_name",
		m.created_at "created_at"
	FROM materials m
	JOIN quiz_materials qm ON qm.material_id = m.id
	WHERE qm.quiz_id = ?
	ORDER BY m.id`)
	if err := ex.SelectContext(ctx, &rows, query, quizID); err != nil {
		return nil, fmt.Errorf("failed to list materials of quiz %s: %w", quizID, err)
	}
	out := make([]*domain.Material, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainMaterial(&rows[i]))
	}
	return out, nil
}
