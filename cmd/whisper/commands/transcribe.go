package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kwasblue/whisper/internal/metrics"
	"github.com/kwasblue/whisper/internal/transcribe"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a recorded audio file",
	Long: `Transcribe runs batch speech-to-text over an existing audio file.
Input of any sample rate or channel count is converted to mono 16 kHz
before transcription. Progress and an ETA print as the job advances.
Ctrl-C cancels cleanly: a canceled job writes no output file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Logging)
		appMetrics := metrics.NewMetrics()

		inputPath := args[0]
		if _, err := os.Stat(inputPath); err != nil {
			return fmt.Errorf("cannot read input file: %w", err)
		}

		engine, err := transcribe.NewWhisperEngine(cfg.ResolveModelPath(), cfg.Transcription.Language, logger)
		if err != nil {
			return fmt.Errorf("failed to load transcription model: %w", err)
		}
		defer engine.Close()

		if err := os.MkdirAll(cfg.Paths.RecordingsDir, 0o755); err != nil {
			return fmt.Errorf("failed to create recordings directory: %w", err)
		}

		stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outputPath := filepath.Join(cfg.Paths.RecordingsDir, stem+"_transcript.txt")

		job := transcribe.NewFileJob(engine, logger)
		job.OnProgress = func(p transcribe.Progress) {
			if p.ETA > 0 {
				fmt.Printf("\rTranscribing: %3.0f%%  (ETA %s)   ", p.Fraction*100, p.ETA.Round(time.Second))
			} else {
				fmt.Printf("\rTranscribing: %3.0f%%              ", p.Fraction*100)
			}
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			if _, ok := <-sigChan; ok {
				job.Cancel()
			}
		}()

		err = job.Run(context.Background(), inputPath, outputPath)
		signal.Stop(sigChan)
		close(sigChan)
		fmt.Println()

		switch {
		case errors.Is(err, transcribe.ErrCanceled):
			appMetrics.RecordBatchJob("canceled")
			fmt.Println("Transcription canceled. No output written.")
			return nil
		case err != nil:
			appMetrics.RecordBatchJob("failed")
			return fmt.Errorf("transcription failed: %w", err)
		}

		appMetrics.RecordBatchJob("completed")
		fmt.Printf("Transcript written: %s\n", outputPath)
		return nil
	},
}
