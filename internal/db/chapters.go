package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
)

// CreateChapter appends the chapter after the project's current last one.
func (db *DB) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	query := `
		INSERT INTO chapters (id, project_id, idx, title, raw_text)
		VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(idx), 0) + 1 FROM chapters WHERE project_id = $2),
			$3, $4
		)
		RETURNING idx
	`

	return db.QueryRowContext(
		ctx, query,
		chapter.ID, chapter.ProjectID, chapter.Title, chapter.RawText,
	).Scan(&chapter.Idx)
}

func (db *DB) GetChapter(ctx context.Context, id uuid.UUID) (*models.Chapter, error) {
	query := `
		SELECT id, project_id, idx, title, raw_text
		FROM chapters
		WHERE id = $1
	`

	chapter := &models.Chapter{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&chapter.ID, &chapter.ProjectID, &chapter.Idx,
		&chapter.Title, &chapter.RawText,
	)

	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "chapter not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}

	return chapter, nil
}

func (db *DB) GetProjectChapters(ctx context.Context, projectID uuid.UUID) ([]models.Chapter, error) {
	query := `
		SELECT id, project_id, idx, title, raw_text
		FROM chapters
		WHERE project_id = $1
		ORDER BY idx
	`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []models.Chapter
	for rows.Next() {
		var c models.Chapter
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Idx, &c.Title, &c.RawText); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}

	return chapters, rows.Err()
}

// UpdateChapter applies the non-nil fields. Changing raw_text does not
// touch existing blocks; they are replaced on the next analysis.
func (db *DB) UpdateChapter(ctx context.Context, id uuid.UUID, req models.UpdateChapterRequest) error {
	query := `
		UPDATE chapters
		SET title = COALESCE($1, title),
		    raw_text = COALESCE($2, raw_text)
		WHERE id = $3
	`

	result, err := db.ExecContext(ctx, query, req.Title, req.RawText, id)
	if err != nil {
		return fmt.Errorf("failed to update chapter: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "chapter not found")
	}
	return nil
}

func (db *DB) DeleteChapter(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM chapters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chapter: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "chapter not found")
	}
	return nil
}
