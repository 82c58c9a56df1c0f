package services

import (
	"strings"

	"github.com/inkvoice/inkvoice/internal/models"
)

// ---------------------------------------------------------------------------
// Voice parameter synthesis
// Maps a block's detected emotion and free-text director notes onto the
// bounded acoustic control triple (stability / similarity boost / style)
// the synthesis provider accepts. Pure: no I/O, never fails.
// ---------------------------------------------------------------------------

// VoiceSettings is the acoustic control triple, each value in [0,1].
type VoiceSettings struct {
	Stability       float64
	SimilarityBoost float64
	Style           float64
}

// Neutral baseline when neither emotion nor notes say otherwise.
const (
	baseStability       = 0.5
	baseSimilarityBoost = 0.75
	baseStyle           = 0.5
)

// emotionSettings is the starting triple per emotion tag. Emotions absent
// from the table (neutral, curious, playful, thoughtful) keep the baseline.
var emotionSettings = map[models.Emotion]VoiceSettings{
	models.EmotionExcited: {Stability: 0.2, SimilarityBoost: 0.85, Style: 0.8},
	models.EmotionHappy:   {Stability: 0.2, SimilarityBoost: 0.85, Style: 0.8},
	models.EmotionAngry:   {Stability: 0.15, SimilarityBoost: 0.95, Style: 0.9},
	models.EmotionSad:     {Stability: 0.75, SimilarityBoost: 0.6, Style: 0.3},
	models.EmotionWhisper: {Stability: 0.8, SimilarityBoost: 0.5, Style: 0.2},
	models.EmotionCalm:    {Stability: 0.8, SimilarityBoost: 0.5, Style: 0.2},
	models.EmotionTense:   {Stability: 0.3, SimilarityBoost: 0.8, Style: 0.6},
	models.EmotionNervous: {Stability: 0.3, SimilarityBoost: 0.8, Style: 0.6},
	models.EmotionShout:   {Stability: 0.1, SimilarityBoost: 0.95, Style: 1.0},
}

// noteRule is one director-note trigger. Rules are applied in slice order
// so the outcome is deterministic regardless of phrase position in the
// notes; a later rule may override an earlier one when both match.
type noteRule struct {
	match func(notes string) bool
	apply func(s *VoiceSettings)
}

func contains(notes string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(notes, w) {
			return true
		}
	}
	return false
}

var noteRules = []noteRule{
	// Whisper: near-monotone, zero expressiveness
	{
		match: func(n string) bool {
			return strings.Contains(n, "whisper") ||
				(strings.Contains(n, "quiet") && strings.Contains(n, "soft"))
		},
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.95, 0.3, 0.0
		},
	},
	// Shout: extreme variability, maximum strength and expression
	{
		match: func(n string) bool { return contains(n, "shout", "yell", "scream") },
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.05, 0.98, 1.0
		},
	},
	// Loud without shout: strong but bounded
	{
		match: func(n string) bool {
			return strings.Contains(n, "loud") && !strings.Contains(n, "shout")
		},
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.3, 0.9, 0.75
		},
	},
	// Quiet/soft without whisper: gentle
	{
		match: func(n string) bool {
			return contains(n, "quiet", "soft") && !strings.Contains(n, "whisper")
		},
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.7, 0.5, 0.3
		},
	},
	// Slow/calm/steady: nudge stability up and style down, never overwrite
	{
		match: func(n string) bool { return contains(n, "slow", "calm", "steady") },
		apply: func(s *VoiceSettings) {
			s.Stability = min(0.85, s.Stability+0.3)
			s.Style = max(0.2, s.Style-0.2)
		},
	},
	// Fast/rapid/rushed: energetic nudges
	{
		match: func(n string) bool { return contains(n, "fast", "rapid", "rushed") },
		apply: func(s *VoiceSettings) {
			s.Stability = max(0.15, s.Stability-0.3)
			s.SimilarityBoost = min(0.9, s.SimilarityBoost+0.15)
			s.Style = min(0.9, s.Style+0.3)
		},
	},
	// Dramatic/theatrical/expressive: near-maximal expression
	{
		match: func(n string) bool { return contains(n, "dramatic", "theatrical", "expressive") },
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.2, 0.85, 0.95
		},
	},
	// Monotone/flat/boring/robotic: zero expression
	{
		match: func(n string) bool { return contains(n, "monotone", "flat", "boring", "robotic") },
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.95, 0.4, 0.0
		},
	},
	// Nervous/hesitant/uncertain: shaky
	{
		match: func(n string) bool { return contains(n, "nervous", "hesitant", "uncertain") },
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.25, 0.7, 0.5
		},
	},
	// Confident/strong/assertive
	{
		match: func(n string) bool { return contains(n, "confident", "strong", "assertive") },
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.4, 0.88, 0.7
		},
	},
	// Crying/emotional/tearful: very expressive
	{
		match: func(n string) bool { return contains(n, "crying", "emotional", "tearful") },
		apply: func(s *VoiceSettings) {
			s.Stability, s.SimilarityBoost, s.Style = 0.2, 0.75, 0.85
		},
	},
}

// DeriveVoiceSettings computes the control triple for a block. The emotion
// picks a starting point from the table; director notes are scanned
// case-insensitively against every rule in order; intensity qualifiers
// push values further toward their extreme. All outputs are clamped to
// [0,1].
func DeriveVoiceSettings(emotion models.Emotion, directorNotes string) VoiceSettings {
	s := VoiceSettings{
		Stability:       baseStability,
		SimilarityBoost: baseSimilarityBoost,
		Style:           baseStyle,
	}

	if preset, ok := emotionSettings[emotion]; ok {
		s = preset
	}

	if directorNotes != "" {
		notes := strings.ToLower(directorNotes)

		for _, rule := range noteRules {
			if rule.match(notes) {
				rule.apply(&s)
			}
		}

		// Intensity qualifiers push every value toward its extreme.
		if contains(notes, "very", "extremely", "incredibly") {
			if s.Stability < 0.5 {
				s.Stability = max(0.0, s.Stability-0.1)
			} else if s.Stability > 0.5 {
				s.Stability = min(1.0, s.Stability+0.1)
			}
			if s.Style < 0.5 {
				s.Style = max(0.0, s.Style-0.1)
			} else if s.Style > 0.5 {
				s.Style = min(1.0, s.Style+0.15)
			}
		}
	}

	return VoiceSettings{
		Stability:       clamp01(s.Stability),
		SimilarityBoost: clamp01(s.SimilarityBoost),
		Style:           clamp01(s.Style),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
