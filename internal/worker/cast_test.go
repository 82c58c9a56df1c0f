package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/models"
	"github.com/inkvoice/inkvoice/internal/services"
)

type fakeCastStore struct {
	characters []*models.Character
	created    int
	updated    int
}

func (f *fakeCastStore) GetCharacterByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Character, error) {
	for _, c := range f.characters {
		if c.ProjectID == projectID && c.Name == name {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCastStore) CreateCharacter(ctx context.Context, character *models.Character) error {
	f.created++
	f.characters = append(f.characters, character)
	return nil
}

func (f *fakeCastStore) UpdateCharacterDescription(ctx context.Context, id uuid.UUID, description *string) error {
	f.updated++
	for _, c := range f.characters {
		if c.ID == id {
			c.Description = description
			return nil
		}
	}
	return nil
}

func TestResolveCreatesNarratorFirst(t *testing.T) {
	store := &fakeCastStore{}
	projectID := uuid.New()

	cast, err := NewCastResolver(store).Resolve(context.Background(), projectID, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if _, ok := cast[models.NarratorName]; !ok {
		t.Fatal("narrator missing from cast")
	}
	if store.created != 1 {
		t.Errorf("expected 1 created character, got %d", store.created)
	}
	if store.characters[0].Name != models.NarratorName {
		t.Errorf("first created character should be the Narrator, got %q", store.characters[0].Name)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	store := &fakeCastStore{}
	projectID := uuid.New()
	detected := []services.CharacterCandidate{
		{Name: "Mary", Description: "A villager"},
		{Name: "John"},
	}

	resolver := NewCastResolver(store)
	first, err := resolver.Resolve(context.Background(), projectID, detected)
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), projectID, detected)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	if store.created != 3 { // Narrator + Mary + John, once each
		t.Errorf("expected 3 created characters total, got %d", store.created)
	}
	for name, id := range first {
		if second[name] != id {
			t.Errorf("%s: id changed across resolves: %s vs %s", name, id, second[name])
		}
	}
}

func TestResolveBackfillsEmptyDescription(t *testing.T) {
	projectID := uuid.New()
	store := &fakeCastStore{characters: []*models.Character{
		{ID: uuid.New(), ProjectID: projectID, Name: "Mary"},
	}}

	_, err := NewCastResolver(store).Resolve(context.Background(), projectID, []services.CharacterCandidate{
		{Name: "Mary", Description: "A villager"},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if store.characters[0].Description == nil || *store.characters[0].Description != "A villager" {
		t.Errorf("empty description should be backfilled, got %v", store.characters[0].Description)
	}
}

func TestResolveRefreshesDescription(t *testing.T) {
	projectID := uuid.New()
	stale := "old description"
	store := &fakeCastStore{characters: []*models.Character{
		{ID: uuid.New(), ProjectID: projectID, Name: "Mary", Description: &stale},
	}}

	_, err := NewCastResolver(store).Resolve(context.Background(), projectID, []services.CharacterCandidate{
		{Name: "Mary", Description: "new description"},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if store.updated != 1 {
		t.Errorf("expected 1 description update, got %d", store.updated)
	}
	if *store.characters[0].Description != "new description" {
		t.Errorf("description not refreshed, got %q", *store.characters[0].Description)
	}
}

func TestResolveBlankDetectionKeepsDescription(t *testing.T) {
	projectID := uuid.New()
	kept := "Hand-written bio"
	store := &fakeCastStore{characters: []*models.Character{
		{ID: uuid.New(), ProjectID: projectID, Name: "Mary", Description: &kept},
	}}

	_, err := NewCastResolver(store).Resolve(context.Background(), projectID, []services.CharacterCandidate{
		{Name: "Mary"},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if store.updated != 0 {
		t.Error("a blank detection must not touch the description")
	}
	if *store.characters[0].Description != kept {
		t.Errorf("description changed to %q", *store.characters[0].Description)
	}
}

func TestResolveSkipsNarratorAndBlankCandidates(t *testing.T) {
	store := &fakeCastStore{}

	cast, err := NewCastResolver(store).Resolve(context.Background(), uuid.New(), []services.CharacterCandidate{
		{Name: models.NarratorName},
		{Name: "  "},
		{Name: "Mary"},
		{Name: "Mary"}, // duplicate entry in one batch
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if len(cast) != 2 { // Narrator + Mary
		t.Errorf("expected 2 cast entries, got %d: %v", len(cast), cast)
	}
	if store.created != 2 {
		t.Errorf("expected 2 created characters, got %d", store.created)
	}
}
