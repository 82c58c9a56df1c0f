package services

import (
	"context"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Speech synthesis capability. The orchestrator only sees the interface;
// the concrete client lives in elevenlabs.go.
// ---------------------------------------------------------------------------

// TTSResponse is the result of one synthesis call.
type TTSResponse struct {
	AudioData []byte
	Format    string // "mp3", "wav", etc.
}

// SpeechService converts a text block to audio with explicit acoustic
// control parameters. Implementations must treat all three settings as
// values in [0,1].
type SpeechService interface {
	Synthesize(ctx context.Context, text, voiceID string, settings VoiceSettings) (*TTSResponse, error)
}

// EstimateSpeechDurationMs estimates spoken duration from word count at
// the given speech rate. The provider does not report duration for this
// endpoint, so the estimate is what gets persisted.
func EstimateSpeechDurationMs(text string, wordsPerSecond float64) int {
	if wordsPerSecond <= 0 {
		wordsPerSecond = 2.5
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) / wordsPerSecond * 1000))
}
