package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperEngine runs speech-to-text through the whisper.cpp bindings.
// The model is loaded once and reused for every call; a fresh decoding
// context is created per transcription.
type WhisperEngine struct {
	model    whisper.Model
	language string
	logger   *slog.Logger

	mu sync.Mutex
}

// NewWhisperEngine loads a ggml model from modelPath. The caller must
// Close the engine to release model memory.
func NewWhisperEngine(modelPath, language string, logger *slog.Logger) (*WhisperEngine, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model %s: %w", modelPath, err)
	}

	logger.Info("whisper model loaded",
		slog.String("model", modelPath),
		slog.String("language", language))

	return &WhisperEngine{
		model:    model,
		language: language,
		logger:   logger,
	}, nil
}

// Transcribe converts mono 16 kHz float32 samples to text. Segment texts
// are joined with single spaces and trimmed; whole-result empty text is
// a valid outcome for non-speech audio.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	wctx, err := e.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create whisper context: %w", err)
	}

	if err := wctx.SetLanguage(e.language); err != nil {
		return Result{}, fmt.Errorf("failed to set language %s: %w", e.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper process failed: %w", err)
	}

	var result Result
	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("failed to read segment: %w", err)
		}

		text := strings.TrimSpace(seg.Text)
		result.Segments = append(result.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
		if text != "" {
			parts = append(parts, text)
		}
	}
	result.Text = strings.Join(parts, " ")

	e.logger.Debug("transcription completed",
		slog.Int("samples", len(samples)),
		slog.Int("segments", len(result.Segments)),
		slog.Duration("elapsed", time.Since(start)))

	return result, nil
}

// Close releases the whisper model.
func (e *WhisperEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}
