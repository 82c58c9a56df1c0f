package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
	"github.com/inkvoice/inkvoice/internal/services"
)

type fakeAnalysisStore struct {
	fakeCastStore

	project *models.Project
	chapter *models.Chapter

	statusHistory []models.ProjectStatus
	blocks        []models.TextBlock
	deleteCalls   int

	failStatus models.ProjectStatus // status whose write fails; "" disables
}

func (f *fakeAnalysisStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if f.project == nil || f.project.ID != id {
		return nil, apperr.New(apperr.KindNotFound, "project not found")
	}
	return f.project, nil
}

func (f *fakeAnalysisStore) GetChapter(ctx context.Context, id uuid.UUID) (*models.Chapter, error) {
	if f.chapter == nil || f.chapter.ID != id {
		return nil, apperr.New(apperr.KindNotFound, "chapter not found")
	}
	return f.chapter, nil
}

func (f *fakeAnalysisStore) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	if f.failStatus != "" && status == f.failStatus {
		return errors.New("status write refused")
	}
	f.statusHistory = append(f.statusHistory, status)
	f.project.Status = status
	return nil
}

func (f *fakeAnalysisStore) DeleteChapterBlocks(ctx context.Context, chapterID uuid.UUID) error {
	f.deleteCalls++
	f.blocks = nil
	return nil
}

func (f *fakeAnalysisStore) CreateTextBlock(ctx context.Context, block *models.TextBlock) error {
	f.blocks = append(f.blocks, *block)
	return nil
}

type cannedCompleter struct {
	response string
	err      error
}

func (c *cannedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.response, c.err
}

func newAnalysisFixture(response string, llmErr error) (*fakeAnalysisStore, *ChapterAnalyzer) {
	raw := `Mary said, "Hello there." The sun set.`
	store := &fakeAnalysisStore{
		project: &models.Project{ID: uuid.New(), Status: models.ProjectStatusDraft},
		chapter: &models.Chapter{ID: uuid.New(), RawText: &raw},
	}
	store.chapter.ProjectID = store.project.ID

	analyzer := NewChapterAnalyzer(store, services.NewManuscriptAnalyzer(&cannedCompleter{response: response, err: llmErr}))
	return store, analyzer
}

const maryResponse = `{
	"characters": [{"name": "Mary", "description": "A villager"}],
	"blocks": [
		{"idx": 3, "kind": "dialogue", "speaker": "Mary", "text": "\"Hello there.\"", "emotion": "happy"},
		{"idx": 1, "kind": "narration", "speaker": "Narrator", "text": "Mary said,"},
		{"idx": 7, "kind": "narration", "speaker": "Narrator", "text": "The sun set."}
	]
}`

func TestAnalyzeHappyPath(t *testing.T) {
	store, analyzer := newAnalysisFixture(maryResponse, nil)

	summary, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	if summary.CharactersFound != 1 || summary.BlocksCreated != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	wantStatuses := []models.ProjectStatus{models.ProjectStatusAnalyzing, models.ProjectStatusReady}
	if len(store.statusHistory) != 2 || store.statusHistory[0] != wantStatuses[0] || store.statusHistory[1] != wantStatuses[1] {
		t.Errorf("status history %v, want %v", store.statusHistory, wantStatuses)
	}

	// Blocks come back in model order, renumbered densely.
	if len(store.blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(store.blocks))
	}
	wantTexts := []string{"Mary said,", "\"Hello there.\"", "The sun set."}
	for i, b := range store.blocks {
		if b.Idx != i {
			t.Errorf("block %d: idx %d, want %d", i, b.Idx, i)
		}
		if b.Text != wantTexts[i] {
			t.Errorf("block %d: text %q, want %q", i, b.Text, wantTexts[i])
		}
		if b.SpeakerCharacterID == nil {
			t.Errorf("block %d: speaker not attributed", i)
		}
	}

	// Dialogue carries the analyzer's emotion; narration defaults to neutral.
	if store.blocks[1].Meta.Emotion != models.EmotionHappy {
		t.Errorf("dialogue emotion %v, want happy", store.blocks[1].Meta.Emotion)
	}
	if store.blocks[0].Meta.Emotion != models.EmotionNeutral {
		t.Errorf("narration emotion %v, want neutral", store.blocks[0].Meta.Emotion)
	}

	// Dialogue and narration resolve to different characters.
	if *store.blocks[0].SpeakerCharacterID == *store.blocks[1].SpeakerCharacterID {
		t.Error("narration and Mary's dialogue should not share a speaker")
	}
}

func TestAnalyzeReplacesBlocksOnRerun(t *testing.T) {
	store, analyzer := newAnalysisFixture(maryResponse, nil)

	if _, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID); err != nil {
		t.Fatalf("first analysis failed: %v", err)
	}
	firstIDs := make(map[uuid.UUID]bool)
	for _, b := range store.blocks {
		firstIDs[b.ID] = true
	}

	if _, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID); err != nil {
		t.Fatalf("second analysis failed: %v", err)
	}

	if store.deleteCalls != 2 {
		t.Errorf("expected delete before each insert pass, got %d calls", store.deleteCalls)
	}
	if len(store.blocks) != 3 {
		t.Errorf("re-analysis should leave exactly 3 blocks, got %d", len(store.blocks))
	}
	for _, b := range store.blocks {
		if firstIDs[b.ID] {
			t.Error("re-analysis must mint new block rows")
		}
	}
	// The cast is reconciled, not duplicated.
	if store.created != 2 { // Narrator + Mary, once each
		t.Errorf("expected 2 characters after two runs, got %d", store.created)
	}
}

func TestAnalyzeUnknownSpeakerFallsBackToNarrator(t *testing.T) {
	response := `{
		"characters": [],
		"blocks": [
			{"idx": 0, "kind": "dialogue", "speaker": "Stranger", "text": "Who goes there?", "emotion": "tense"}
		]
	}`
	store, analyzer := newAnalysisFixture(response, nil)

	if _, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}

	var narratorID uuid.UUID
	for _, c := range store.characters {
		if c.Name == models.NarratorName {
			narratorID = c.ID
		}
	}
	if *store.blocks[0].SpeakerCharacterID != narratorID {
		t.Error("unattributed dialogue should fall back to the Narrator")
	}
}

func TestAnalyzeRollsBackOnModelFailure(t *testing.T) {
	store, analyzer := newAnalysisFixture("", errors.New("model unavailable"))

	_, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID)
	if err == nil {
		t.Fatal("expected error")
	}

	if store.project.Status != models.ProjectStatusDraft {
		t.Errorf("project should roll back to draft, got %s", store.project.Status)
	}
	if store.deleteCalls != 0 {
		t.Error("existing blocks must survive a failed analysis")
	}
}

func TestAnalyzeRollsBackOnMalformedResponse(t *testing.T) {
	store, analyzer := newAnalysisFixture("not json at all", nil)

	_, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID)
	if !apperr.IsKind(err, apperr.KindUpstreamMalformed) {
		t.Fatalf("expected upstream_malformed, got %v", err)
	}
	if store.project.Status != models.ProjectStatusDraft {
		t.Errorf("project should roll back to draft, got %s", store.project.Status)
	}
}

func TestAnalyzeRollsBackWhenReadyWriteFails(t *testing.T) {
	store, analyzer := newAnalysisFixture(maryResponse, nil)
	store.failStatus = models.ProjectStatusReady

	_, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID)
	if err == nil {
		t.Fatal("expected error from the status write")
	}

	if store.project.Status != models.ProjectStatusDraft {
		t.Errorf("project should roll back to draft, got %s", store.project.Status)
	}
}

func TestAnalyzeRequiresManuscriptText(t *testing.T) {
	store, analyzer := newAnalysisFixture(maryResponse, nil)
	empty := "   "
	store.chapter.RawText = &empty

	_, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID)
	if !apperr.IsKind(err, apperr.KindPreconditionFailed) {
		t.Errorf("expected precondition_failed, got %v", err)
	}
	if len(store.statusHistory) != 0 {
		t.Error("status must not change when preconditions fail")
	}
}

func TestAnalyzeRejectedWhileGenerating(t *testing.T) {
	store, analyzer := newAnalysisFixture(maryResponse, nil)
	store.project.Status = models.ProjectStatusGenerating

	_, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID)
	if !apperr.IsKind(err, apperr.KindAlreadyGenerating) {
		t.Errorf("expected already_generating, got %v", err)
	}
}

func TestAnalyzeChapterMustBelongToProject(t *testing.T) {
	store, analyzer := newAnalysisFixture(maryResponse, nil)
	store.chapter.ProjectID = uuid.New() // some other project

	_, err := analyzer.Analyze(context.Background(), store.project.ID, store.chapter.ID)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}
