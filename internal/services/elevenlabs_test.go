package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestElevenLabs(t *testing.T, handler http.HandlerFunc) *ElevenLabsService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewElevenLabsService("test-key", "")
	svc.baseURL = server.URL
	return svc
}

func TestSynthesizeSendsSettingsAndSpeakerBoost(t *testing.T) {
	var captured elevenLabsRequest
	var gotPath, gotKey, gotFormat string

	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotFormat = r.URL.Query().Get("output_format")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte("fake mp3 bytes"))
	})

	settings := VoiceSettings{Stability: 0.2, SimilarityBoost: 0.85, Style: 0.8}
	resp, err := svc.Synthesize(context.Background(), "Hello there.", "voice-1", settings)
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	if gotPath != "/v1/text-to-speech/voice-1" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("unexpected api key header %q", gotKey)
	}
	if gotFormat != "mp3_44100_128" {
		t.Errorf("unexpected output format %q", gotFormat)
	}
	if captured.ModelID != elevenLabsDefaultModel {
		t.Errorf("empty model should fall back to default, got %q", captured.ModelID)
	}
	if captured.VoiceSettings == nil || !captured.VoiceSettings.UseSpeakerBoost {
		t.Error("speaker boost must always be enabled")
	}
	if captured.VoiceSettings.Stability != 0.2 || captured.VoiceSettings.Style != 0.8 {
		t.Errorf("settings not forwarded: %+v", captured.VoiceSettings)
	}
	if string(resp.AudioData) != "fake mp3 bytes" || resp.Format != "mp3" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSynthesizeErrorKeepsStatusCode(t *testing.T) {
	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail": "rate limited"}`))
	})

	_, err := svc.Synthesize(context.Background(), "text", "voice-1", VoiceSettings{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status code for retry classification: %v", err)
	}
	if !IsRetryable(err) {
		t.Errorf("a 429 must classify as retryable: %v", err)
	}
}

func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := svc.Synthesize(context.Background(), "text", "voice-1", VoiceSettings{})
	if err == nil || !strings.Contains(err.Error(), "empty audio") {
		t.Errorf("expected empty audio error, got %v", err)
	}
}

func TestListVoices(t *testing.T) {
	svc := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"voices": []Voice{
				{VoiceID: "v1", Name: "Rachel", Category: "premade"},
				{VoiceID: "v2", Name: "Adam"},
			},
		})
	})

	voices, err := svc.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("list voices failed: %v", err)
	}
	if len(voices) != 2 || voices[0].Name != "Rachel" {
		t.Errorf("unexpected voices: %+v", voices)
	}
}
