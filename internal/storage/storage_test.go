package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func TestAudioPathLayout(t *testing.T) {
	projectID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	chapterID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	got := AudioPath(projectID, chapterID, 4)
	want := "11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/block_4.mp3"
	if got != want {
		t.Errorf("AudioPath = %q, want %q", got, want)
	}
}

func TestUploadAudioReturnsPublicURL(t *testing.T) {
	var gotPath, gotUpsert, gotType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUpsert = r.Header.Get("x-upsert")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := New(server.URL, "service-key", "audio-segments")
	projectID, chapterID := uuid.New(), uuid.New()

	url, err := s.UploadAudio(context.Background(), projectID, chapterID, 0, []byte("mp3 data"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	wantPath := fmt.Sprintf("/storage/v1/object/audio-segments/%s/%s/block_0.mp3", projectID, chapterID)
	if gotPath != wantPath {
		t.Errorf("uploaded to %q, want %q", gotPath, wantPath)
	}
	if gotUpsert != "true" {
		t.Error("uploads must upsert so regeneration overwrites in place")
	}
	if gotType != "audio/mpeg" {
		t.Errorf("content type %q, want audio/mpeg", gotType)
	}
	if string(gotBody) != "mp3 data" {
		t.Errorf("body %q not forwarded", gotBody)
	}

	wantURL := fmt.Sprintf("%s/storage/v1/object/public/audio-segments/%s/%s/block_0.mp3", server.URL, projectID, chapterID)
	if url != wantURL {
		t.Errorf("public URL %q, want %q", url, wantURL)
	}
}

func TestUploadRetriesTransientFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := New(server.URL, "service-key", "audio-segments")
	if err := s.Upload(context.Background(), "a/b/block_0.mp3", []byte("x"), "audio/mpeg"); err != nil {
		t.Fatalf("upload should recover from a 503: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestUploadDoesNotRetryClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := New(server.URL, "service-key", "audio-segments")
	if err := s.Upload(context.Background(), "a/b/block_0.mp3", []byte("x"), "audio/mpeg"); err == nil {
		t.Fatal("expected error on 403")
	}
	if attempts != 1 {
		t.Errorf("403 must not be retried, got %d attempts", attempts)
	}
}

func TestEnsureBucketExistsTreatsConflictAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/bucket" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	s := New(server.URL, "service-key", "audio-segments")
	if err := s.EnsureBucketExists(context.Background()); err != nil {
		t.Errorf("existing bucket should not be an error: %v", err)
	}
}
