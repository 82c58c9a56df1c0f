package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
	"github.com/inkvoice/inkvoice/internal/services"
)

// GenerationStore is the slice of the database audio generation needs.
type GenerationStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetChapter(ctx context.Context, id uuid.UUID) (*models.Chapter, error)
	GetChapterBlocks(ctx context.Context, chapterID uuid.UUID) ([]models.TextBlock, error)
	GetProjectCharacters(ctx context.Context, projectID uuid.UUID) ([]models.CharacterResponse, error)
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error
	UpdateGenerationProgress(ctx context.Context, id uuid.UUID, progress *models.GenerationProgress) error
	UpsertAudioSegment(ctx context.Context, segment *models.AudioSegment) error
	GetTextBlock(ctx context.Context, id uuid.UUID) (*models.TextBlock, error)
}

// AudioUploader stores block audio and returns public URLs. The bucket
// check is idempotent and cheap; chapter runs and single-block
// regenerations both perform it once before synthesizing anything.
type AudioUploader interface {
	UploadAudio(ctx context.Context, projectID, chapterID uuid.UUID, blockIdx int, data []byte) (string, error)
	EnsureBucketExists(ctx context.Context) error
}

// Generator drives voiced-audio synthesis for chapters and single blocks.
type Generator struct {
	store    GenerationStore
	uploader AudioUploader
	tts      services.SpeechService

	retryOpts      services.RetryOptions
	wordsPerSecond float64

	// Pause between synthesized blocks so the provider is not hammered.
	// Tests set it to zero.
	interBlockDelay time.Duration
}

func NewGenerator(store GenerationStore, uploader AudioUploader, tts services.SpeechService, retryOpts services.RetryOptions, wordsPerSecond float64, interBlockDelay time.Duration) *Generator {
	return &Generator{
		store:           store,
		uploader:        uploader,
		tts:             tts,
		retryOpts:       retryOpts,
		wordsPerSecond:  wordsPerSecond,
		interBlockDelay: interBlockDelay,
	}
}

// GenerateChapter synthesizes audio for every eligible block of a chapter,
// strictly in reading order. Per-block failures are recorded and the walk
// continues; the summary reports both counts. The project ends published
// only when every processed block succeeded, otherwise ready.
func (g *Generator) GenerateChapter(ctx context.Context, projectID, chapterID uuid.UUID) (*models.GenerationSummary, error) {
	var (
		project    *models.Project
		chapter    *models.Chapter
		blocks     []models.TextBlock
		characters []models.CharacterResponse
	)

	// The four precondition reads are independent.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		project, err = g.store.GetProject(egCtx, projectID)
		return err
	})
	eg.Go(func() error {
		var err error
		chapter, err = g.store.GetChapter(egCtx, chapterID)
		return err
	})
	eg.Go(func() error {
		var err error
		blocks, err = g.store.GetChapterBlocks(egCtx, chapterID)
		return err
	})
	eg.Go(func() error {
		var err error
		characters, err = g.store.GetProjectCharacters(egCtx, projectID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if chapter.ProjectID != projectID {
		return nil, apperr.New(apperr.KindNotFound, "chapter not found in project")
	}
	if len(blocks) == 0 {
		return nil, apperr.New(apperr.KindPreconditionFailed, "chapter has no blocks; analyze it first")
	}
	if project.Status == models.ProjectStatusGenerating {
		return nil, apperr.New(apperr.KindAlreadyGenerating, "audio generation is already in progress")
	}

	assignments := make(map[uuid.UUID]*models.VoiceAssignment, len(characters))
	var narratorVoice *models.VoiceAssignment
	for _, c := range characters {
		assignments[c.ID] = c.VoiceAssignment
		if c.Name == models.NarratorName {
			narratorVoice = c.VoiceAssignment
		}
	}

	// The Narrator's voice doubles as the fallback for every block whose
	// speaker has no assignment of their own, so it is the one hard
	// requirement before anything is synthesized.
	if narratorVoice == nil {
		return nil, apperr.Newf(apperr.KindPreconditionFailed, "%s has no voice assignment", models.NarratorName)
	}

	if err := g.uploader.EnsureBucketExists(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "audio bucket unavailable", err)
	}

	if err := g.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusGenerating); err != nil {
		return nil, err
	}
	if err := g.store.UpdateGenerationProgress(ctx, projectID, &models.GenerationProgress{
		ChapterID: chapterID,
		Total:     len(blocks),
	}); err != nil {
		// Status is already generating; put the project back before
		// reporting the abort.
		g.finishGeneration(ctx, projectID, models.ProjectStatusReady)
		return nil, err
	}

	summary := &models.GenerationSummary{TotalBlocks: len(blocks)}

	for _, block := range blocks {
		// Unassigned speakers, and blocks whose speaker row was removed,
		// are voiced by the Narrator.
		assignment := narratorVoice
		if block.SpeakerCharacterID != nil {
			if own := assignments[*block.SpeakerCharacterID]; own != nil {
				assignment = own
			}
		}

		// Other providers are skipped without counting: their blocks
		// simply keep whatever audio they had.
		if assignment.Provider != models.ProviderElevenLabs {
			log.Printf("[Generate] Skipping block %d: provider %q not supported", block.Idx, assignment.Provider)
			continue
		}

		if summary.SuccessCount+summary.ErrorCount > 0 && g.interBlockDelay > 0 {
			select {
			case <-ctx.Done():
				g.finishGeneration(ctx, projectID, models.ProjectStatusReady)
				return nil, ctx.Err()
			case <-time.After(g.interBlockDelay):
			}
		}

		if _, err := g.synthesizeBlock(ctx, projectID, chapterID, &block, assignment); err != nil {
			log.Printf("[Generate] Block %d failed: %v", block.Idx, err)
			summary.ErrorCount++
		} else {
			summary.SuccessCount++
		}

		if err := g.store.UpdateGenerationProgress(ctx, projectID, &models.GenerationProgress{
			ChapterID: chapterID,
			Current:   summary.SuccessCount + summary.ErrorCount,
			Total:     len(blocks),
		}); err != nil {
			log.Printf("[Generate] Failed to persist progress for project %s: %v", projectID, err)
		}
	}

	finalStatus := models.ProjectStatusPublished
	if summary.ErrorCount > 0 {
		finalStatus = models.ProjectStatusReady
	}
	g.finishGeneration(ctx, projectID, finalStatus)

	log.Printf("[Generate] Chapter %s: %d succeeded, %d failed of %d blocks",
		chapterID, summary.SuccessCount, summary.ErrorCount, summary.TotalBlocks)

	return summary, nil
}

// RegenerateBlock re-synthesizes a single block, replacing its audio in
// place. Project status is untouched; a block-level retry is an editing
// action, not a pipeline run.
func (g *Generator) RegenerateBlock(ctx context.Context, blockID uuid.UUID) (*models.RegenerateBlockResponse, error) {
	block, err := g.store.GetTextBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}

	chapter, err := g.store.GetChapter(ctx, block.ChapterID)
	if err != nil {
		return nil, err
	}

	characters, err := g.store.GetProjectCharacters(ctx, chapter.ProjectID)
	if err != nil {
		return nil, err
	}

	// Same resolution as the chapter run: the speaker's own voice when
	// assigned, the Narrator's otherwise.
	var assignment, narratorVoice *models.VoiceAssignment
	for _, c := range characters {
		if c.Name == models.NarratorName {
			narratorVoice = c.VoiceAssignment
		}
		if block.SpeakerCharacterID != nil && c.ID == *block.SpeakerCharacterID {
			assignment = c.VoiceAssignment
		}
	}
	if assignment == nil {
		assignment = narratorVoice
	}

	if assignment == nil {
		return nil, apperr.Newf(apperr.KindPreconditionFailed, "%s has no voice assignment", models.NarratorName)
	}
	if assignment.Provider != models.ProviderElevenLabs {
		return nil, apperr.Newf(apperr.KindPreconditionFailed, "provider %q is not supported for synthesis", assignment.Provider)
	}

	if err := g.uploader.EnsureBucketExists(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "audio bucket unavailable", err)
	}

	audioURL, err := g.synthesizeBlock(ctx, chapter.ProjectID, chapter.ID, block, assignment)
	if err != nil {
		return nil, err
	}

	return &models.RegenerateBlockResponse{AudioURL: audioURL}, nil
}

// synthesizeBlock runs the synthesize-upload-persist sequence for one
// block. The provider call is retried; upload and persistence failures are
// not, the block just counts as failed.
func (g *Generator) synthesizeBlock(ctx context.Context, projectID, chapterID uuid.UUID, block *models.TextBlock, assignment *models.VoiceAssignment) (string, error) {
	settings := services.DeriveVoiceSettings(block.Meta.Emotion, block.Meta.DirectorNotes)

	resp, err := services.Retry(ctx, func() (*services.TTSResponse, error) {
		return g.tts.Synthesize(ctx, block.Text, assignment.VoiceID, settings)
	}, g.retryOpts)
	if err != nil {
		return "", err
	}

	audioURL, err := g.uploader.UploadAudio(ctx, projectID, chapterID, block.Idx, resp.AudioData)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "failed to upload audio", err)
	}

	segment := &models.AudioSegment{
		ID:          uuid.New(),
		TextBlockID: block.ID,
		Provider:    assignment.Provider,
		VoiceID:     assignment.VoiceID,
		AudioURL:    audioURL,
		DurationMs:  services.EstimateSpeechDurationMs(block.Text, g.wordsPerSecond),
	}
	if err := g.store.UpsertAudioSegment(ctx, segment); err != nil {
		return "", fmt.Errorf("failed to persist audio segment: %w", err)
	}

	return audioURL, nil
}

// finishGeneration sets the project's final status and clears the
// progress marker. It must run even when the run was cancelled, so the
// writes are detached from the caller's cancellation.
func (g *Generator) finishGeneration(ctx context.Context, projectID uuid.UUID, status models.ProjectStatus) {
	ctx = context.WithoutCancel(ctx)

	if err := g.store.UpdateProjectStatus(ctx, projectID, status); err != nil {
		log.Printf("[Generate] Failed to set project %s status to %s: %v", projectID, status, err)
	}
	if err := g.store.UpdateGenerationProgress(ctx, projectID, nil); err != nil {
		log.Printf("[Generate] Failed to clear progress for project %s: %v", projectID, err)
	}
}
