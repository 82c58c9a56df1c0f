package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/models"
	"github.com/inkvoice/inkvoice/internal/services"
)

// CharacterStore is the slice of the database the cast resolver needs.
type CharacterStore interface {
	GetCharacterByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Character, error)
	CreateCharacter(ctx context.Context, character *models.Character) error
	UpdateCharacterDescription(ctx context.Context, id uuid.UUID, description *string) error
}

// CastResolver reconciles analyzer-detected characters against a project's
// persistent cast. Names are the identity: re-analysis never duplicates a
// character, and manual voice assignments survive because the existing row
// is reused.
type CastResolver struct {
	store CharacterStore
}

func NewCastResolver(store CharacterStore) *CastResolver {
	return &CastResolver{store: store}
}

// Resolve ensures the Narrator and every detected character exist, and
// returns name -> character id for speaker attribution. The Narrator is
// resolved first so it is present even for chapters with no dialogue.
func (r *CastResolver) Resolve(ctx context.Context, projectID uuid.UUID, detected []services.CharacterCandidate) (map[string]uuid.UUID, error) {
	cast := make(map[string]uuid.UUID, len(detected)+1)

	narrator, err := r.ensureCharacter(ctx, projectID, models.NarratorName, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve narrator: %w", err)
	}
	cast[models.NarratorName] = narrator.ID

	for _, candidate := range detected {
		name := strings.TrimSpace(candidate.Name)
		if name == "" || name == models.NarratorName {
			continue
		}
		if _, ok := cast[name]; ok {
			continue
		}

		character, err := r.ensureCharacter(ctx, projectID, name, candidate.Description)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve character %q: %w", name, err)
		}
		cast[name] = character.ID
	}

	return cast, nil
}

// ensureCharacter reuses an existing character by exact name or creates
// one. A non-empty detected description replaces the stored one; a blank
// detection leaves it untouched.
func (r *CastResolver) ensureCharacter(ctx context.Context, projectID uuid.UUID, name, description string) (*models.Character, error) {
	existing, err := r.store.GetCharacterByName(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if description != "" {
			if err := r.store.UpdateCharacterDescription(ctx, existing.ID, &description); err != nil {
				return nil, err
			}
			existing.Description = &description
		}
		return existing, nil
	}

	character := &models.Character{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
	}
	if description != "" {
		character.Description = &description
	}

	if err := r.store.CreateCharacter(ctx, character); err != nil {
		return nil, err
	}
	return character, nil
}
