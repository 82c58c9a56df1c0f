package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/models"
)

// UpsertAudioSegment persists a block's audio segment. A block has at most
// one segment; regeneration replaces it in place, keeping the row id.
func (db *DB) UpsertAudioSegment(ctx context.Context, segment *models.AudioSegment) error {
	query := `
		INSERT INTO audio_segments (id, text_block_id, provider, voice_id, audio_url, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (text_block_id) DO UPDATE
		SET provider = EXCLUDED.provider,
		    voice_id = EXCLUDED.voice_id,
		    audio_url = EXCLUDED.audio_url,
		    duration_ms = EXCLUDED.duration_ms,
		    created_at = NOW()
		RETURNING id, created_at
	`

	return db.QueryRowContext(
		ctx, query,
		segment.ID, segment.TextBlockID, segment.Provider,
		segment.VoiceID, segment.AudioURL, segment.DurationMs,
	).Scan(&segment.ID, &segment.CreatedAt)
}

// GetChapterSegments returns every segment for a chapter's blocks keyed by
// block id.
func (db *DB) GetChapterSegments(ctx context.Context, chapterID uuid.UUID) (map[uuid.UUID]models.AudioSegment, error) {
	query := `
		SELECT s.id, s.text_block_id, s.provider, s.voice_id, s.audio_url, s.duration_ms, s.created_at
		FROM audio_segments s
		JOIN text_blocks b ON b.id = s.text_block_id
		WHERE b.chapter_id = $1
	`

	rows, err := db.QueryContext(ctx, query, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audio segments: %w", err)
	}
	defer rows.Close()

	segments := make(map[uuid.UUID]models.AudioSegment)
	for rows.Next() {
		var s models.AudioSegment
		if err := rows.Scan(
			&s.ID, &s.TextBlockID, &s.Provider, &s.VoiceID,
			&s.AudioURL, &s.DurationMs, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audio segment: %w", err)
		}
		segments[s.TextBlockID] = s
	}

	return segments, rows.Err()
}
