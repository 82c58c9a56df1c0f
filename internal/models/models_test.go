package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestBlockMetaValue(t *testing.T) {
	m := BlockMeta{
		Emotion:       EmotionAngry,
		DirectorNotes: "shout this line",
	}

	data, err := m.Value()
	if err != nil {
		t.Fatalf("failed to marshal BlockMeta: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["emotion"] != "angry" {
		t.Errorf("expected emotion=angry, got %v", result["emotion"])
	}
	if result["director_notes"] != "shout this line" {
		t.Errorf("expected director_notes to round-trip, got %v", result["director_notes"])
	}
}

func TestBlockMetaScan(t *testing.T) {
	var m BlockMeta
	if err := m.Scan([]byte(`{"emotion": "whisper", "director_notes": "softly"}`)); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if m.Emotion != EmotionWhisper {
		t.Errorf("expected whisper, got %v", m.Emotion)
	}
	if m.DirectorNotes != "softly" {
		t.Errorf("expected director notes, got %q", m.DirectorNotes)
	}
}

func TestBlockMetaScanNil(t *testing.T) {
	m := BlockMeta{Emotion: EmotionShout, DirectorNotes: "x"}
	if err := m.Scan(nil); err != nil {
		t.Fatalf("failed to scan nil: %v", err)
	}
	if m.Emotion != EmotionNeutral {
		t.Errorf("nil meta should default to neutral, got %v", m.Emotion)
	}
	if m.DirectorNotes != "" {
		t.Errorf("nil meta should clear director notes, got %q", m.DirectorNotes)
	}
}

func TestGenerationProgressRoundTrip(t *testing.T) {
	chapterID := uuid.New()
	p := GenerationProgress{ChapterID: chapterID, Current: 3, Total: 10}

	data, err := p.Value()
	if err != nil {
		t.Fatalf("failed to marshal progress: %v", err)
	}

	var back GenerationProgress
	if err := back.Scan(data.([]byte)); err != nil {
		t.Fatalf("failed to scan progress: %v", err)
	}

	if back.ChapterID != chapterID || back.Current != 3 || back.Total != 10 {
		t.Errorf("progress did not round-trip: %+v", back)
	}
}

func TestValidEmotion(t *testing.T) {
	for _, e := range Emotions {
		if !ValidEmotion(e) {
			t.Errorf("emotion %q should be valid", e)
		}
	}

	for _, bad := range []Emotion{"", "furious", "NEUTRAL"} {
		if ValidEmotion(bad) {
			t.Errorf("emotion %q should be invalid", bad)
		}
	}
}

func TestProjectStatus(t *testing.T) {
	statuses := []ProjectStatus{
		ProjectStatusDraft,
		ProjectStatusAnalyzing,
		ProjectStatusReady,
		ProjectStatusGenerating,
		ProjectStatusPublished,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}
