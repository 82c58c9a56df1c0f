package worker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
	"github.com/inkvoice/inkvoice/internal/services"
)

// AnalysisStore is the slice of the database chapter analysis needs.
type AnalysisStore interface {
	CharacterStore
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetChapter(ctx context.Context, id uuid.UUID) (*models.Chapter, error)
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error
	DeleteChapterBlocks(ctx context.Context, chapterID uuid.UUID) error
	CreateTextBlock(ctx context.Context, block *models.TextBlock) error
}

// ChapterAnalyzer runs the full analysis pipeline for one chapter: LLM
// segmentation, cast reconciliation, and block replacement.
type ChapterAnalyzer struct {
	store    AnalysisStore
	analyzer *services.ManuscriptAnalyzer
	cast     *CastResolver
}

func NewChapterAnalyzer(store AnalysisStore, analyzer *services.ManuscriptAnalyzer) *ChapterAnalyzer {
	return &ChapterAnalyzer{
		store:    store,
		analyzer: analyzer,
		cast:     NewCastResolver(store),
	}
}

// Analyze segments a chapter's raw text into typed blocks and reconciles
// the cast. Re-running replaces the chapter's blocks wholesale, along with
// any audio hanging off them; characters and their voice assignments
// survive. The project sits in analyzing for the duration and rolls back
// to draft if the language model fails.
func (a *ChapterAnalyzer) Analyze(ctx context.Context, projectID, chapterID uuid.UUID) (*models.AnalysisSummary, error) {
	project, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	chapter, err := a.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter.ProjectID != projectID {
		return nil, apperr.New(apperr.KindNotFound, "chapter not found in project")
	}

	if chapter.RawText == nil || strings.TrimSpace(*chapter.RawText) == "" {
		return nil, apperr.New(apperr.KindPreconditionFailed, "chapter has no manuscript text")
	}
	if project.Status == models.ProjectStatusGenerating {
		return nil, apperr.New(apperr.KindAlreadyGenerating, "audio generation is in progress")
	}

	if err := a.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusAnalyzing); err != nil {
		return nil, err
	}

	result, err := a.analyzer.Analyze(ctx, *chapter.RawText)
	if err != nil {
		// Roll back so the project is not stuck in analyzing.
		a.rollbackToDraft(ctx, projectID)
		return nil, err
	}

	cast, err := a.cast.Resolve(ctx, projectID, result.Characters)
	if err != nil {
		a.rollbackToDraft(ctx, projectID)
		return nil, err
	}

	// Replace the chapter's blocks wholesale. Model idx values are the
	// ordering key but may have gaps, so renumber densely on insert.
	blocks := append([]services.BlockCandidate(nil), result.Blocks...)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Idx < blocks[j].Idx })

	if err := a.store.DeleteChapterBlocks(ctx, chapterID); err != nil {
		a.rollbackToDraft(ctx, projectID)
		return nil, fmt.Errorf("failed to clear chapter blocks: %w", err)
	}

	for i, candidate := range blocks {
		speakerID := cast[models.NarratorName]
		if candidate.Kind == models.BlockKindDialogue {
			if id, ok := cast[candidate.Speaker]; ok {
				speakerID = id
			} else {
				// Unattributed dialogue falls back to the Narrator.
				log.Printf("[Analyze] Unknown speaker %q in chapter %s, attributing to Narrator", candidate.Speaker, chapterID)
			}
		}

		block := &models.TextBlock{
			ID:                 uuid.New(),
			ChapterID:          chapterID,
			Idx:                i,
			Kind:               candidate.Kind,
			SpeakerCharacterID: &speakerID,
			Text:               candidate.Text,
			Meta:               models.BlockMeta{Emotion: candidate.Emotion},
		}
		if err := a.store.CreateTextBlock(ctx, block); err != nil {
			a.rollbackToDraft(ctx, projectID)
			return nil, fmt.Errorf("failed to insert block %d: %w", i, err)
		}
	}

	if err := a.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusReady); err != nil {
		a.rollbackToDraft(ctx, projectID)
		return nil, err
	}

	log.Printf("[Analyze] Chapter %s: %d characters, %d blocks", chapterID, len(result.Characters), len(blocks))

	return &models.AnalysisSummary{
		CharactersFound: len(result.Characters),
		BlocksCreated:   len(blocks),
	}, nil
}

func (a *ChapterAnalyzer) rollbackToDraft(ctx context.Context, projectID uuid.UUID) {
	if err := a.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusDraft); err != nil {
		log.Printf("[Analyze] Failed to roll back project %s to draft: %v", projectID, err)
	}
}
