package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(filepath.Join(t.TempDir(), "library.sqlite"), logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)

	meta := &SessionMeta{
		ID:             "abc-123",
		Title:          "Weekly review",
		Summary:        "Talked through the week.",
		Duration:       "12.5 min",
		RecordedAt:     time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
		Cleaned:        true,
		Source:         "session_20260820_093000.wav",
		AudioPath:      "/recordings/session_20260820_093000.wav",
		TranscriptPath: "/recordings/session_20260820_093000.txt",
	}

	if err := s.Save(meta); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get("abc-123")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected session, got nil")
	}
	if got.Title != meta.Title || got.Summary != meta.Summary {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if !got.RecordedAt.Equal(meta.RecordedAt) {
		t.Errorf("Expected recorded_at %v, got %v", meta.RecordedAt, got.RecordedAt)
	}
	if !got.Cleaned {
		t.Error("Cleaned flag lost in round trip")
	}
}

func TestSaveUpserts(t *testing.T) {
	s := openTestStore(t)

	meta := &SessionMeta{ID: "x", Title: "before", RecordedAt: time.Now().UTC()}
	if err := s.Save(meta); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	meta.Title = "after"
	if err := s.Save(meta); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := s.Get("x")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "after" {
		t.Errorf("Expected updated title 'after', got %q", got.Title)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Upsert must not duplicate rows, got %d", len(all))
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("Expected nil for missing session")
	}
}

func TestListOrdersByDateDescending(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		meta := &SessionMeta{
			ID:         id,
			Title:      id,
			RecordedAt: base.AddDate(0, 0, i),
		}
		if err := s.Save(meta); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	sessions, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}

	expected := []string{"c", "b", "a"}
	for i, id := range expected {
		if sessions[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, sessions[i].ID)
		}
	}
}

func TestScanDirRegistersRawRecordings(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	// Two raw recordings, one with a transcript, plus noise files.
	files := []string{
		"session_20260824_100000.wav",
		"session_20260824_110000.wav",
		"unrelated.wav",
		"notes.txt",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "session_20260824_100000.txt"), []byte("line"), 0o644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}

	added, err := s.ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}
	if added != 2 {
		t.Errorf("Expected 2 sessions added, got %d", added)
	}

	sessions, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}

	var withTranscript int
	for _, meta := range sessions {
		if meta.TranscriptPath != "" {
			withTranscript++
		}
	}
	if withTranscript != 1 {
		t.Errorf("Expected 1 session with transcript, got %d", withTranscript)
	}

	// A second scan finds nothing new.
	added, err = s.ScanDir(dir)
	if err != nil {
		t.Fatalf("second ScanDir failed: %v", err)
	}
	if added != 0 {
		t.Errorf("Expected 0 sessions on rescan, got %d", added)
	}
}
