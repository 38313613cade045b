package postprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kwasblue/whisper/internal/audio"
	"github.com/kwasblue/whisper/internal/config"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantTitle   string
		wantSummary string
	}{
		{
			name:        "strict JSON",
			reply:       `{"title": "Team standup", "summary": "Daily sync notes."}`,
			wantTitle:   "Team standup",
			wantSummary: "Daily sync notes.",
		},
		{
			name:        "trailing comma repaired",
			reply:       `{"title": "Broken JSON", "summary": "Still parsed.",}`,
			wantTitle:   "Broken JSON",
			wantSummary: "Still parsed.",
		},
		{
			name:        "JSON wrapped in prose",
			reply:       "Here is the result:\n```json\n{\"title\": \"Wrapped\", \"summary\": \"In a code fence.\"}\n```\nDone.",
			wantTitle:   "Wrapped",
			wantSummary: "In a code fence.",
		},
		{
			name:      "no JSON at all falls back to heuristic",
			reply:     "I cannot produce JSON today.",
			wantTitle: "First line of the transcript",
		},
	}

	transcriptText := "First line of the transcript\nMore content follows here."

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := parseMetadata(tt.reply, transcriptText)
			if meta.Title != tt.wantTitle {
				t.Errorf("Expected title %q, got %q", tt.wantTitle, meta.Title)
			}
			if tt.wantSummary != "" && meta.Summary != tt.wantSummary {
				t.Errorf("Expected summary %q, got %q", tt.wantSummary, meta.Summary)
			}
		})
	}
}

func TestParseMetadataFallbackKeepsRunesIntact(t *testing.T) {
	// A multi-byte first line longer than the title limit must be cut
	// on a rune boundary, not mid-sequence.
	firstLine := strings.Repeat("ü", 80)
	transcriptText := firstLine + "\n" + strings.Repeat("日本語のテキスト", 40)

	meta := parseMetadata("no JSON here", transcriptText)

	if !utf8.ValidString(meta.Title) {
		t.Errorf("Title is not valid UTF-8: %q", meta.Title)
	}
	if got := utf8.RuneCountInString(meta.Title); got != 60 {
		t.Errorf("Expected title of 60 runes, got %d", got)
	}
	if !utf8.ValidString(meta.Summary) {
		t.Errorf("Summary is not valid UTF-8: %q", meta.Summary)
	}
	if got := utf8.RuneCountInString(meta.Summary); got != 200 {
		t.Errorf("Expected summary of 200 runes, got %d", got)
	}
}

// chatServer returns an httptest server speaking just enough of the
// OpenAI chat completion protocol, replying with canned content per call.
func chatServer(t *testing.T, replies []string) (*httptest.Server, *int) {
	t.Helper()
	calls := new(int)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}

		idx := *calls
		*calls++
		if idx >= len(replies) {
			idx = len(replies) - 1
		}

		resp := map[string]any{
			"id":     fmt.Sprintf("chatcmpl-%d", idx),
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": replies[idx]},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, calls
}

func newTestProcessor(t *testing.T, endpoint string) *Processor {
	t.Helper()
	cfg := &config.PostProcessConfig{
		Enabled:    true,
		Endpoint:   endpoint,
		APIKey:     "test",
		Model:      "test-model",
		Timeout:    5,
		MaxRetries: 0,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewProcessor(cfg, nil, logger)
}

func TestCleanMergesAndWrites(t *testing.T) {
	server, calls := chatServer(t, []string{"First utterance. Second utterance."})

	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "session.txt")
	content := "[00:05] second utterance\n[00:02] first utterance\n"
	if err := os.WriteFile(transcriptPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}

	p := newTestProcessor(t, server.URL+"/v1")
	cleanPath, err := p.Clean(context.Background(), transcriptPath)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if cleanPath != filepath.Join(dir, "session_clean.txt") {
		t.Errorf("Unexpected clean path: %s", cleanPath)
	}
	if *calls != 1 {
		t.Errorf("Expected 1 model call, got %d", *calls)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		t.Fatalf("failed to read cleaned file: %v", err)
	}
	if string(data) != "First utterance. Second utterance.\n" {
		t.Errorf("Unexpected cleaned content: %q", string(data))
	}
}

func TestCleanEmptyTranscript(t *testing.T) {
	server, _ := chatServer(t, []string{"unused"})

	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(transcriptPath, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}

	p := newTestProcessor(t, server.URL+"/v1")
	if _, err := p.Clean(context.Background(), transcriptPath); err == nil {
		t.Error("Expected error for empty transcript")
	}
}

func TestSummarizeWritesSidecar(t *testing.T) {
	server, _ := chatServer(t, []string{`{"title": "Planning call", "summary": "We planned the quarter."}`})

	dir := t.TempDir()
	cleanedPath := filepath.Join(dir, "session_clean.txt")
	if err := os.WriteFile(cleanedPath, []byte("We planned the quarter in detail.\n"), 0o644); err != nil {
		t.Fatalf("failed to write cleaned transcript: %v", err)
	}

	// One minute of 16 kHz audio for the duration field.
	samples := make([]int16, 60*16000)
	wavData, err := audio.EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	audioPath := filepath.Join(dir, "session.wav")
	if err := os.WriteFile(audioPath, wavData, 0o644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}

	p := newTestProcessor(t, server.URL+"/v1")
	meta, err := p.Summarize(context.Background(), cleanedPath, audioPath)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if meta.Title != "Planning call" {
		t.Errorf("Expected title 'Planning call', got %q", meta.Title)
	}
	if meta.Duration != "1.0 min" {
		t.Errorf("Expected duration '1.0 min', got %q", meta.Duration)
	}
	if !meta.Cleaned {
		t.Error("Expected cleaned flag to be set")
	}

	sidecar := filepath.Join(dir, "session.json")
	data, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}

	var onDisk Metadata
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("sidecar is not valid JSON: %v", err)
	}
	if onDisk.Title != "Planning call" {
		t.Errorf("Sidecar title mismatch: %q", onDisk.Title)
	}
}

func TestCompleteRetriesOnFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"object": "chat.completion",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "recovered"}, "finish_reason": "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	cfg := &config.PostProcessConfig{
		Enabled:    true,
		Endpoint:   server.URL + "/v1",
		APIKey:     "test",
		Model:      "test-model",
		Timeout:    5,
		MaxRetries: 2,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	p := NewProcessor(cfg, nil, logger)

	got, err := p.complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if got != "recovered" {
		t.Errorf("Expected 'recovered', got %q", got)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}
