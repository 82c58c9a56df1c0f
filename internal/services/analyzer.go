package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/inkvoice/inkvoice/internal/apperr"
	"github.com/inkvoice/inkvoice/internal/models"
)

// Analysis failure modes. Both are fatal to the call and carry the
// upstream-malformed kind; ErrEmptyResponse distinguishes a missing model
// reply from one that failed to parse or validate.
var (
	ErrEmptyResponse     = errors.New("empty response from language model")
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// ---------------------------------------------------------------------------
// Manuscript analysis
// Sends chapter text to the language model and validates the structured
// response into character candidates and typed, speaker-attributed blocks.
// ---------------------------------------------------------------------------

const analysisSystemPrompt = `You are an expert literary analyzer specializing in narrative and dialogue extraction for audiobook production.

Your task is to analyze manuscript text and extract:
1. All characters that appear in the text
2. Break the text into narrative blocks and dialogue blocks

CRITICAL INSTRUCTIONS:
- You MUST respond with ONLY valid JSON. No markdown, no code blocks, no explanations.
- DO NOT wrap your response in ` + "```json" + ` or any markdown formatting.
- Return raw JSON only.
- PRESERVE the original text EXACTLY as written. DO NOT rewrite, paraphrase, or modify any text.
- Use "Narrator" as the speaker for ALL narration blocks.
- For dialogue, detect and use the character's name as the speaker.
- If you cannot determine who is speaking, use "Narrator" as the speaker.
- If speaker attribution is unclear or ambiguous, default to "Narrator".
- Assign appropriate emotions to each block based on context.

SPEAKER RULES:
- Narration (descriptions, actions, scene-setting) -> speaker: "Narrator"
- Dialogue with clear speaker -> speaker: "Character Name"
- Dialogue with unclear/unknown speaker -> speaker: "Narrator"
- When in doubt -> speaker: "Narrator"

TEXT PRESERVATION:
- Copy text EXACTLY from the manuscript
- Do NOT add, remove, or change any words
- Preserve punctuation, capitalization, and formatting
- Keep the original wording verbatim

RESPONSE FORMAT (raw JSON only):
{
  "characters": [
    {"name": "Character Name", "description": "Brief description"}
  ],
  "blocks": [
    {"idx": 0, "kind": "narration", "speaker": "Narrator", "text": "...", "emotion": "neutral"},
    {"idx": 1, "kind": "dialogue", "speaker": "Character Name", "text": "...", "emotion": "happy"}
  ]
}

EMOTION OPTIONS: neutral, happy, sad, angry, tense, excited, whisper, shout, curious, nervous, calm, playful, thoughtful
KIND OPTIONS: narration, dialogue

Remember: ONLY return the JSON object. No additional text.`

func analysisUserPrompt(chapterText string) string {
	return fmt.Sprintf(`Analyze the following manuscript text and extract characters and text blocks.

Manuscript:
%s

Return ONLY the JSON object with characters and blocks. No markdown formatting.`, chapterText)
}

// CharacterCandidate is one character the model detected in the text.
type CharacterCandidate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// BlockCandidate is one typed, speaker-attributed block from the model.
// Idx values are usable as a stable sort key but are not guaranteed to
// start at 0 or be gap-free.
type BlockCandidate struct {
	Idx     int              `json:"idx"`
	Kind    models.BlockKind `json:"kind"`
	Speaker string           `json:"speaker"`
	Text    string           `json:"text"`
	Emotion models.Emotion   `json:"emotion,omitempty"`
}

// AnalysisResult is the validated output of one analysis call.
type AnalysisResult struct {
	Characters []CharacterCandidate `json:"characters"`
	Blocks     []BlockCandidate     `json:"blocks"`
}

// ManuscriptAnalyzer converts raw chapter text into an AnalysisResult via
// the language-model capability. Failures are fatal to the call; retry
// policy belongs to the caller.
type ManuscriptAnalyzer struct {
	llm ChatCompleter
}

func NewManuscriptAnalyzer(llm ChatCompleter) *ManuscriptAnalyzer {
	return &ManuscriptAnalyzer{llm: llm}
}

// Analyze runs the analysis prompt against rawText and validates the
// response. An empty model response or a response that fails to parse or
// validate is an upstream-malformed fault.
func (a *ManuscriptAnalyzer) Analyze(ctx context.Context, rawText string) (*AnalysisResult, error) {
	responseText, err := a.llm.Complete(ctx, analysisSystemPrompt, analysisUserPrompt(rawText))
	if err != nil {
		return nil, fmt.Errorf("analysis completion failed: %w", err)
	}

	if strings.TrimSpace(responseText) == "" {
		return nil, apperr.Wrap(apperr.KindUpstreamMalformed, "language model returned nothing", ErrEmptyResponse)
	}

	cleaned := stripMarkdownFences(responseText)

	var result AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		log.Printf("[Analyzer] parse failed: %v", err)
		log.Printf("[Analyzer] raw response: %s", truncateString(responseText, 2000))
		return nil, apperr.Wrap(apperr.KindUpstreamMalformed, "failed to parse analysis response",
			fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	if err := validateAnalysisResult(&result); err != nil {
		log.Printf("[Analyzer] validation failed: %v", err)
		log.Printf("[Analyzer] raw response: %s", truncateString(responseText, 2000))
		return nil, apperr.Wrap(apperr.KindUpstreamMalformed, "analysis response failed validation",
			fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	log.Printf("[Analyzer] analysis complete: %d characters, %d blocks",
		len(result.Characters), len(result.Blocks))

	return &result, nil
}

// validateAnalysisResult enforces the strict response schema, defaulting
// absent emotions to neutral.
func validateAnalysisResult(result *AnalysisResult) error {
	if len(result.Blocks) == 0 {
		return fmt.Errorf("response has no blocks")
	}

	for i, char := range result.Characters {
		if strings.TrimSpace(char.Name) == "" {
			return fmt.Errorf("character %d has an empty name", i)
		}
	}

	for i := range result.Blocks {
		block := &result.Blocks[i]

		if block.Idx < 0 {
			return fmt.Errorf("block %d has negative idx %d", i, block.Idx)
		}
		if block.Kind != models.BlockKindNarration && block.Kind != models.BlockKindDialogue {
			return fmt.Errorf("block %d has invalid kind %q", i, block.Kind)
		}
		if strings.TrimSpace(block.Speaker) == "" {
			return fmt.Errorf("block %d has an empty speaker", i)
		}
		if block.Text == "" {
			return fmt.Errorf("block %d has empty text", i)
		}
		if block.Emotion == "" {
			block.Emotion = models.EmotionNeutral
		} else if !models.ValidEmotion(block.Emotion) {
			return fmt.Errorf("block %d has invalid emotion %q", i, block.Emotion)
		}
	}

	return nil
}

// stripMarkdownFences removes a surrounding ```json ... ``` wrapper if the
// model ignored the raw-JSON instruction.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
