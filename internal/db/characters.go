package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
)

func (db *DB) CreateCharacter(ctx context.Context, character *models.Character) error {
	query := `
		INSERT INTO characters (id, project_id, name, description)
		VALUES ($1, $2, $3, $4)
	`

	_, err := db.ExecContext(
		ctx, query,
		character.ID, character.ProjectID, character.Name, character.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create character: %w", err)
	}
	return nil
}

func (db *DB) GetCharacter(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	query := `
		SELECT id, project_id, name, description
		FROM characters
		WHERE id = $1
	`

	character := &models.Character{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&character.ID, &character.ProjectID, &character.Name, &character.Description,
	)

	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "character not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}

	return character, nil
}

// GetCharacterByName looks up a project's character by exact name. Returns
// (nil, nil) when absent so cast reconciliation can distinguish "create it"
// from a query failure.
func (db *DB) GetCharacterByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Character, error) {
	query := `
		SELECT id, project_id, name, description
		FROM characters
		WHERE project_id = $1 AND name = $2
	`

	character := &models.Character{}
	err := db.QueryRowContext(ctx, query, projectID, name).Scan(
		&character.ID, &character.ProjectID, &character.Name, &character.Description,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character by name: %w", err)
	}

	return character, nil
}

func (db *DB) UpdateCharacterDescription(ctx context.Context, id uuid.UUID, description *string) error {
	query := `UPDATE characters SET description = $1 WHERE id = $2`
	result, err := db.ExecContext(ctx, query, description, id)
	if err != nil {
		return fmt.Errorf("failed to update character: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "character not found")
	}
	return nil
}

// GetProjectCharacters returns the project's cast with voice assignments
// attached, Narrator first, then alphabetical.
func (db *DB) GetProjectCharacters(ctx context.Context, projectID uuid.UUID) ([]models.CharacterResponse, error) {
	query := `
		SELECT
			c.id, c.project_id, c.name, c.description,
			va.id, va.character_id, va.provider, va.voice_id, va.settings
		FROM characters c
		LEFT JOIN voice_assignments va ON va.character_id = c.id
		WHERE c.project_id = $1
		ORDER BY (c.name <> $2), c.name
	`

	rows, err := db.QueryContext(ctx, query, projectID, models.NarratorName)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer rows.Close()

	var characters []models.CharacterResponse
	for rows.Next() {
		var c models.CharacterResponse
		var vaID, vaCharacterID *uuid.UUID
		var vaProvider, vaVoiceID *string
		var vaSettings models.JSONB

		if err := rows.Scan(
			&c.ID, &c.ProjectID, &c.Name, &c.Description,
			&vaID, &vaCharacterID, &vaProvider, &vaVoiceID, &vaSettings,
		); err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}

		if vaID != nil {
			c.VoiceAssignment = &models.VoiceAssignment{
				ID:          *vaID,
				CharacterID: *vaCharacterID,
				Provider:    *vaProvider,
				VoiceID:     *vaVoiceID,
				Settings:    vaSettings,
			}
		}

		characters = append(characters, c)
	}

	return characters, rows.Err()
}

// SetVoiceAssignment upserts the character's single voice assignment.
func (db *DB) SetVoiceAssignment(ctx context.Context, assignment *models.VoiceAssignment) error {
	query := `
		INSERT INTO voice_assignments (id, character_id, provider, voice_id, settings)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (character_id) DO UPDATE
		SET provider = EXCLUDED.provider,
		    voice_id = EXCLUDED.voice_id,
		    settings = EXCLUDED.settings
		RETURNING id
	`

	return db.QueryRowContext(
		ctx, query,
		assignment.ID, assignment.CharacterID, assignment.Provider,
		assignment.VoiceID, assignment.Settings,
	).Scan(&assignment.ID)
}

func (db *DB) RemoveVoiceAssignment(ctx context.Context, characterID uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM voice_assignments WHERE character_id = $1`, characterID)
	if err != nil {
		return fmt.Errorf("failed to remove voice assignment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.New(apperr.KindNotFound, "voice assignment not found")
	}
	return nil
}
