package postprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kwasblue/whisper/internal/audio"
	"github.com/kwasblue/whisper/internal/config"
	"github.com/kwasblue/whisper/internal/metrics"
	"github.com/kwasblue/whisper/internal/transcript"
)

const cleanPrompt = `Fix grammar, punctuation and capitalization in the following transcript. Do not rephrase, summarize, or add content. Return only the corrected text.`

const summaryPrompt = `You are given a cleaned transcript of a recording. Respond with strict JSON only, no prose, in exactly this shape: {"title": "...", "summary": "..."}. The title is at most 8 words; the summary is 2-3 sentences.`

// jsonBlockPattern extracts the first JSON object from a model reply
// that wrapped it in prose or code fences.
var jsonBlockPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// Metadata is the model-produced session description.
type Metadata struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Duration string `json:"duration,omitempty"`
	Cleaned  bool   `json:"cleaned,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Processor runs transcript cleanup and summarization against an
// OpenAI-compatible chat completion endpoint, typically a local
// llama.cpp server. All of its failures are non-fatal to the recording
// that produced the transcript.
type Processor struct {
	client  openai.Client
	model   string
	timeout time.Duration
	retries int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProcessor creates a processor from the postprocess configuration.
func NewProcessor(cfg *config.PostProcessConfig, m *metrics.Metrics, logger *slog.Logger) *Processor {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Local llama.cpp servers ignore the key but the client
		// requires one.
		apiKey = "local"
	}

	// Retry policy is handled here, not by the client library.
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.Endpoint),
		option.WithMaxRetries(0),
	)

	return &Processor{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.GetTimeoutDuration(),
		retries: cfg.MaxRetries,
		logger:  logger,
		metrics: m,
	}
}

// Clean merges a timestamped transcript into plain text, asks the model
// to fix grammar and punctuation only, and writes the result next to the
// input with a _clean suffix. It returns the cleaned file path.
func (p *Processor) Clean(ctx context.Context, transcriptPath string) (string, error) {
	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript %s: %w", transcriptPath, err)
	}

	text := string(raw)
	if transcript.HasTimestamps(text) {
		merged, err := transcript.MergeFile(transcriptPath)
		if err != nil {
			return "", fmt.Errorf("failed to merge transcript: %w", err)
		}
		mergedData, err := os.ReadFile(merged)
		if err != nil {
			return "", fmt.Errorf("failed to read merged transcript: %w", err)
		}
		text = string(mergedData)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("transcript %s is empty", transcriptPath)
	}

	cleaned, err := p.complete(ctx, cleanPrompt, text)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordPostProcessFailure()
		}
		return "", fmt.Errorf("cleanup request failed: %w", err)
	}

	cleanPath := suffixPath(transcriptPath, "_clean")
	if err := os.WriteFile(cleanPath, []byte(cleaned+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write cleaned transcript %s: %w", cleanPath, err)
	}

	if p.metrics != nil {
		p.metrics.RecordPostProcessSuccess()
	}

	p.logger.Info("transcript cleaned",
		slog.String("input", transcriptPath),
		slog.String("output", cleanPath))

	return cleanPath, nil
}

// Summarize asks the model for a strict-JSON title and summary of the
// cleaned transcript, computes the session duration from the audio
// file, and writes a metadata sidecar next to the transcript. The
// parsed metadata is returned even when the model's JSON needed repair.
func (p *Processor) Summarize(ctx context.Context, cleanedPath, audioPath string) (*Metadata, error) {
	raw, err := os.ReadFile(cleanedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cleaned transcript %s: %w", cleanedPath, err)
	}

	reply, err := p.complete(ctx, summaryPrompt, string(raw))
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordPostProcessFailure()
		}
		return nil, fmt.Errorf("summary request failed: %w", err)
	}

	meta := parseMetadata(reply, string(raw))
	meta.Cleaned = true
	meta.Source = filepath.Base(cleanedPath)

	if audioPath != "" {
		if seconds, err := audio.FileDuration(audioPath); err == nil {
			meta.Duration = fmt.Sprintf("%.1f min", seconds/60)
		} else {
			p.logger.Warn("failed to read audio duration", slog.String("error", err.Error()))
		}
	}

	base := strings.TrimSuffix(cleanedPath, filepath.Ext(cleanedPath))
	base = strings.TrimSuffix(base, "_clean")
	sidecar := base + ".json"

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(sidecar, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write metadata %s: %w", sidecar, err)
	}

	if p.metrics != nil {
		p.metrics.RecordPostProcessSuccess()
	}

	p.logger.Info("session summarized",
		slog.String("title", meta.Title),
		slog.String("sidecar", sidecar))

	return meta, nil
}

// complete sends one chat completion with retries and exponential
// backoff.
func (p *Processor) complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			if p.metrics != nil {
				p.metrics.RecordPostProcessRetry()
			}
			p.logger.Warn("retrying post-process request",
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()))

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		resp, err := p.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
			Model: p.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
		})
		cancel()

		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model returned no choices")
			continue
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}

	return "", fmt.Errorf("request failed after %d attempts: %w", p.retries+1, lastErr)
}

// parseMetadata extracts {title, summary} from a model reply. It tries
// strict JSON, then jsonrepair, then the first JSON-looking block, and
// finally falls back to a heuristic built from the transcript itself.
func parseMetadata(reply, transcriptText string) *Metadata {
	var meta Metadata

	if err := json.Unmarshal([]byte(reply), &meta); err == nil && meta.Title != "" {
		return &meta
	}

	if fixed, err := jsonrepair.JSONRepair(reply); err == nil {
		if err := json.Unmarshal([]byte(fixed), &meta); err == nil && meta.Title != "" {
			return &meta
		}
	}

	if block := jsonBlockPattern.FindString(reply); block != "" {
		if fixed, err := jsonrepair.JSONRepair(block); err == nil {
			if err := json.Unmarshal([]byte(fixed), &meta); err == nil && meta.Title != "" {
				return &meta
			}
		}
	}

	// Heuristic fallback: first transcript line as title, leading text
	// as summary.
	lines := strings.Split(strings.TrimSpace(transcriptText), "\n")
	title := "Untitled session"
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		title = truncateRunes(strings.TrimSpace(lines[0]), 60)
	}
	summary := truncateRunes(strings.TrimSpace(transcriptText), 200)

	return &Metadata{Title: title, Summary: summary}
}

// truncateRunes shortens s to at most n runes, never splitting a
// multi-byte sequence.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func suffixPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
