package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
)

func (db *DB) CreateProject(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, title, status)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		project.ID, project.Title, project.Status,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
}

func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		SELECT id, title, status, generation_progress, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	var progress models.GenerationProgress
	var progressRaw []byte

	err := db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Title, &project.Status,
		&progressRaw, &project.CreatedAt, &project.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if progressRaw != nil {
		if err := progress.Scan(progressRaw); err != nil {
			return nil, fmt.Errorf("failed to decode generation progress: %w", err)
		}
		project.GenerationProgress = &progress
	}

	return project, nil
}

// ListProjectSummaries returns all projects newest first, with chapter and
// character counts.
func (db *DB) ListProjectSummaries(ctx context.Context) ([]models.ProjectSummary, error) {
	query := `
		SELECT
			p.id, p.title, p.status,
			(SELECT COUNT(*) FROM chapters c WHERE c.project_id = p.id),
			(SELECT COUNT(*) FROM characters ch WHERE ch.project_id = p.id),
			p.created_at, p.updated_at
		FROM projects p
		ORDER BY p.created_at DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var summaries []models.ProjectSummary
	for rows.Next() {
		var s models.ProjectSummary
		if err := rows.Scan(
			&s.ID, &s.Title, &s.Status,
			&s.ChapterCount, &s.CharacterCount,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (db *DB) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	query := `UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "project not found")
	}
	return nil
}

// UpdateGenerationProgress writes the in-flight generation marker. A nil
// progress clears it.
func (db *DB) UpdateGenerationProgress(ctx context.Context, id uuid.UUID, progress *models.GenerationProgress) error {
	query := `UPDATE projects SET generation_progress = $1, updated_at = NOW() WHERE id = $2`

	var value interface{}
	if progress != nil {
		v, err := progress.Value()
		if err != nil {
			return fmt.Errorf("failed to encode generation progress: %w", err)
		}
		value = v
	}

	_, err := db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update generation progress: %w", err)
	}
	return nil
}

func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "project not found")
	}
	return nil
}
