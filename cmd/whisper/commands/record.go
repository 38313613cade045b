package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kwasblue/whisper/internal/capture"
	"github.com/kwasblue/whisper/internal/config"
	"github.com/kwasblue/whisper/internal/metrics"
	"github.com/kwasblue/whisper/internal/postprocess"
	"github.com/kwasblue/whisper/internal/server"
	"github.com/kwasblue/whisper/internal/session"
	"github.com/kwasblue/whisper/internal/store"
	"github.com/kwasblue/whisper/internal/transcribe"
	"github.com/kwasblue/whisper/internal/vad"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone with live transcription",
	Long: `Record starts a live session: microphone audio is saved to a WAV
file while voice activity detection segments it into utterances, each
transcribed as it completes. Transcript lines print as they are written.
Stop the session with Ctrl-C; post-processing and the session library
update run after the recording is safely on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Logging)
		return runRecord(cfg, logger)
	},
}

func runRecord(cfg *config.Config, logger *slog.Logger) error {
	appMetrics := metrics.NewMetrics()

	lib, err := store.Open(filepath.Join(cfg.Paths.RecordingsDir, "sessions.db"), logger)
	if err != nil {
		return fmt.Errorf("failed to open session library: %w", err)
	}
	defer lib.Close()

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, cfg, lib, appMetrics, logger)
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("failed to start monitoring endpoint: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Stop(ctx); err != nil {
				logger.Warn("monitoring endpoint stop failed", slog.String("error", err.Error()))
			}
		}()
	}

	classifier, err := vad.NewWebRTCClassifier(cfg.Audio.SampleRate, cfg.VAD.Aggressiveness)
	if err != nil {
		return fmt.Errorf("failed to create voice activity classifier: %w", err)
	}

	segmenter, err := vad.NewSegmenter(classifier, cfg.VAD.TrailingSilenceFrames)
	if err != nil {
		return fmt.Errorf("failed to create segmenter: %w", err)
	}

	engine, err := transcribe.NewWhisperEngine(cfg.ResolveModelPath(), cfg.Transcription.Language, logger)
	if err != nil {
		return fmt.Errorf("failed to load transcription model: %w", err)
	}
	defer engine.Close()

	queue := capture.NewQueue(cfg.Audio.QueueCapacity)
	source := capture.NewMicSource(&cfg.Audio, queue, appMetrics, logger)

	rec, err := session.NewRecorder(session.Options{
		Queue:         queue,
		Source:        source,
		Segmenter:     segmenter,
		Engine:        engine,
		RecordingsDir: cfg.Paths.RecordingsDir,
		SampleRate:    cfg.Audio.SampleRate,
		PopTimeout:    cfg.VAD.GetPopTimeout(),
		Metrics:       appMetrics,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}

	recordedAt := time.Now()
	if err := rec.Start(); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Println("Recording. Press Ctrl-C to stop.")

	// Session events reach the terminal through the queued stream, never
	// directly from the consumer goroutine.
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for e := range rec.Events() {
			switch e.Kind {
			case session.EventLine:
				fmt.Println(e.Text)
			case session.EventWarning:
				fmt.Fprintln(os.Stderr, "warning:", e.Text)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	signal.Stop(sigChan)
	logger.Info("stop requested", slog.String("signal", sig.String()))

	if err := rec.Stop(); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	<-eventsDone

	fmt.Printf("Saved audio:      %s\n", rec.AudioPath())
	fmt.Printf("Saved transcript: %s\n", rec.TranscriptPath())

	meta := &store.SessionMeta{
		ID:             rec.ID(),
		Title:          strings.TrimSuffix(filepath.Base(rec.AudioPath()), ".wav"),
		RecordedAt:     recordedAt,
		Source:         filepath.Base(rec.AudioPath()),
		AudioPath:      rec.AudioPath(),
		TranscriptPath: rec.TranscriptPath(),
	}

	// Post-processing failures leave the raw transcript as the durable
	// artifact; the session record is saved either way.
	if cfg.PostProcess.Enabled {
		applyPostProcessing(cfg, meta, rec.AudioPath(), rec.TranscriptPath(), appMetrics, logger)
	}

	if err := lib.Save(meta); err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}

	fmt.Printf("Session saved:    %s\n", meta.Title)
	return nil
}

// applyPostProcessing runs transcript cleanup and summarization, folding
// the results into meta. Failures are reported and swallowed.
func applyPostProcessing(cfg *config.Config, meta *store.SessionMeta, audioPath, transcriptPath string,
	m *metrics.Metrics, logger *slog.Logger) {

	processor := postprocess.NewProcessor(&cfg.PostProcess, m, logger)
	ctx := context.Background()

	cleanedPath, err := processor.Clean(ctx, transcriptPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: transcript cleanup failed:", err)
		return
	}

	summary, err := processor.Summarize(ctx, cleanedPath, audioPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: summarization failed:", err)
		meta.Cleaned = true
		return
	}

	meta.Title = summary.Title
	meta.Summary = summary.Summary
	meta.Duration = summary.Duration
	meta.Cleaned = true
}
