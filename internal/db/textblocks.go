package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
)

// DeleteChapterBlocks removes all of a chapter's blocks. Audio segments
// hang off blocks and go with them.
func (db *DB) DeleteChapterBlocks(ctx context.Context, chapterID uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM text_blocks WHERE chapter_id = $1`, chapterID)
	if err != nil {
		return fmt.Errorf("failed to delete chapter blocks: %w", err)
	}
	return nil
}

func (db *DB) CreateTextBlock(ctx context.Context, block *models.TextBlock) error {
	query := `
		INSERT INTO text_blocks (id, chapter_id, idx, kind, speaker_character_id, text, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := db.ExecContext(
		ctx, query,
		block.ID, block.ChapterID, block.Idx, block.Kind,
		block.SpeakerCharacterID, block.Text, block.Meta,
	)
	if err != nil {
		return fmt.Errorf("failed to create text block: %w", err)
	}
	return nil
}

// GetChapterBlocks returns the chapter's blocks in reading order.
func (db *DB) GetChapterBlocks(ctx context.Context, chapterID uuid.UUID) ([]models.TextBlock, error) {
	query := `
		SELECT id, chapter_id, idx, kind, speaker_character_id, text, meta
		FROM text_blocks
		WHERE chapter_id = $1
		ORDER BY idx
	`

	rows, err := db.QueryContext(ctx, query, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query text blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.TextBlock
	for rows.Next() {
		var b models.TextBlock
		if err := rows.Scan(
			&b.ID, &b.ChapterID, &b.Idx, &b.Kind,
			&b.SpeakerCharacterID, &b.Text, &b.Meta,
		); err != nil {
			return nil, fmt.Errorf("failed to scan text block: %w", err)
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}

func (db *DB) GetTextBlock(ctx context.Context, id uuid.UUID) (*models.TextBlock, error) {
	query := `
		SELECT id, chapter_id, idx, kind, speaker_character_id, text, meta
		FROM text_blocks
		WHERE id = $1
	`

	block := &models.TextBlock{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&block.ID, &block.ChapterID, &block.Idx, &block.Kind,
		&block.SpeakerCharacterID, &block.Text, &block.Meta,
	)

	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "text block not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get text block: %w", err)
	}

	return block, nil
}

// UpdateDirectorNotes rewrites the block's notes, keeping its emotion.
func (db *DB) UpdateDirectorNotes(ctx context.Context, id uuid.UUID, notes string) error {
	block, err := db.GetTextBlock(ctx, id)
	if err != nil {
		return err
	}

	block.Meta.DirectorNotes = notes

	result, err := db.ExecContext(
		ctx,
		`UPDATE text_blocks SET meta = $1 WHERE id = $2`,
		block.Meta, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update director notes: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "text block not found")
	}
	return nil
}
