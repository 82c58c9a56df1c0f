package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusAnalyzing  ProjectStatus = "analyzing"
	ProjectStatusReady      ProjectStatus = "ready"
	ProjectStatusGenerating ProjectStatus = "generating"
	ProjectStatusPublished  ProjectStatus = "published"
)

type BlockKind string

const (
	BlockKindNarration BlockKind = "narration"
	BlockKindDialogue  BlockKind = "dialogue"
)

// Emotion is the closed delivery vocabulary the analyzer may tag blocks with.
type Emotion string

const (
	EmotionNeutral    Emotion = "neutral"
	EmotionHappy      Emotion = "happy"
	EmotionSad        Emotion = "sad"
	EmotionAngry      Emotion = "angry"
	EmotionTense      Emotion = "tense"
	EmotionExcited    Emotion = "excited"
	EmotionWhisper    Emotion = "whisper"
	EmotionShout      Emotion = "shout"
	EmotionCurious    Emotion = "curious"
	EmotionNervous    Emotion = "nervous"
	EmotionCalm       Emotion = "calm"
	EmotionPlayful    Emotion = "playful"
	EmotionThoughtful Emotion = "thoughtful"
)

// Emotions lists every valid emotion tag.
var Emotions = []Emotion{
	EmotionNeutral, EmotionHappy, EmotionSad, EmotionAngry, EmotionTense,
	EmotionExcited, EmotionWhisper, EmotionShout, EmotionCurious,
	EmotionNervous, EmotionCalm, EmotionPlayful, EmotionThoughtful,
}

// ValidEmotion reports whether e is in the closed vocabulary.
func ValidEmotion(e Emotion) bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// NarratorName is the reserved character name for narration and any
// dialogue whose speaker could not be attributed. Exactly one character
// with this name exists per project.
const NarratorName = "Narrator"

// ProviderElevenLabs is the one synthesis provider this pipeline speaks to.
// Assignments pointing at any other provider are soft-skipped during
// chapter generation.
const ProviderElevenLabs = "elevenlabs"

// BlockMeta is the closed per-block metadata structure stored as JSONB.
// The analyzer writes the emotion; director notes are user-authored and
// survive until the next re-analysis replaces the block.
type BlockMeta struct {
	Emotion       Emotion `json:"emotion"`
	DirectorNotes string  `json:"director_notes,omitempty"`
}

func (m BlockMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *BlockMeta) Scan(value interface{}) error {
	if value == nil {
		*m = BlockMeta{Emotion: EmotionNeutral}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into BlockMeta", value)
	}
	return json.Unmarshal(bytes, m)
}

// GenerationProgress tracks the single in-flight chapter generation for a
// project. Stored as a nullable JSONB column; nil means nothing is
// generating.
type GenerationProgress struct {
	ChapterID uuid.UUID `json:"chapterId"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
}

func (p GenerationProgress) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *GenerationProgress) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into GenerationProgress", value)
	}
	return json.Unmarshal(bytes, p)
}

// JSONB is a generic carrier for open JSONB columns (voice assignment
// settings). Block metadata uses the closed BlockMeta type instead.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

type Project struct {
	ID                 uuid.UUID           `json:"id"`
	Title              string              `json:"title"`
	Status             ProjectStatus       `json:"status"`
	GenerationProgress *GenerationProgress `json:"generation_progress,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

type Chapter struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Idx       int       `json:"idx"`
	Title     string    `json:"title"`
	RawText   *string   `json:"raw_text,omitempty"`
}

type Character struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

type VoiceAssignment struct {
	ID          uuid.UUID `json:"id"`
	CharacterID uuid.UUID `json:"character_id"`
	Provider    string    `json:"provider"`
	VoiceID     string    `json:"voice_id"`
	Settings    JSONB     `json:"settings,omitempty"`
}

type TextBlock struct {
	ID                 uuid.UUID  `json:"id"`
	ChapterID          uuid.UUID  `json:"chapter_id"`
	Idx                int        `json:"idx"`
	Kind               BlockKind  `json:"kind"`
	SpeakerCharacterID *uuid.UUID `json:"speaker_character_id,omitempty"`
	Text               string     `json:"text"`
	Meta               BlockMeta  `json:"meta"`
}

type AudioSegment struct {
	ID          uuid.UUID `json:"id"`
	TextBlockID uuid.UUID `json:"text_block_id"`
	Provider    string    `json:"provider"`
	VoiceID     string    `json:"voice_id"`
	AudioURL    string    `json:"audio_url"`
	DurationMs  int       `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// DTOs for API responses

type CharacterResponse struct {
	Character
	VoiceAssignment *VoiceAssignment `json:"voice_assignment,omitempty"`
}

type TextBlockResponse struct {
	TextBlock
	AudioSegment *AudioSegment `json:"audio_segment,omitempty"`
}

type ChapterResponse struct {
	Chapter
	Blocks []TextBlockResponse `json:"blocks,omitempty"`
}

type ProjectResponse struct {
	Project
	Chapters   []ChapterResponse   `json:"chapters,omitempty"`
	Characters []CharacterResponse `json:"characters,omitempty"`
}

// ProjectSummary is a lightweight DTO for the list endpoint.
type ProjectSummary struct {
	ID             uuid.UUID     `json:"id"`
	Title          string        `json:"title"`
	Status         ProjectStatus `json:"status"`
	ChapterCount   int           `json:"chapter_count"`
	CharacterCount int           `json:"character_count"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type CreateProjectRequest struct {
	Title string `json:"title"`
}

type CreateChapterRequest struct {
	Title   string  `json:"title"`
	RawText *string `json:"raw_text,omitempty"`
}

type UpdateChapterRequest struct {
	Title   *string `json:"title,omitempty"`
	RawText *string `json:"raw_text,omitempty"`
}

type SetVoiceAssignmentRequest struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voice_id"`
	Settings JSONB  `json:"settings,omitempty"`
}

type SaveDirectorNotesRequest struct {
	DirectorNotes string `json:"director_notes"`
}

type UpdateProjectStatusRequest struct {
	Status ProjectStatus `json:"status"`
}

// AnalysisSummary is returned by the analyze operation.
type AnalysisSummary struct {
	CharactersFound int `json:"characters_found"`
	BlocksCreated   int `json:"blocks_created"`
}

// GenerationSummary is returned by whole-chapter generation. Partial
// failure is still a summary, never an error: ErrorCount > 0 simply means
// some blocks need regeneration.
type GenerationSummary struct {
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
	TotalBlocks  int `json:"total_blocks"`
}

type RegenerateBlockResponse struct {
	AudioURL string `json:"audio_url"`
}
