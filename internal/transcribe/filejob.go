package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-audio/wav"

	"github.com/kwasblue/whisper/internal/audio"
)

// ErrCanceled is returned by Run when the job was canceled. Canceled is
// a distinct terminal state from failed; neither produces an output file.
var ErrCanceled = errors.New("transcription job canceled")

// targetRate is the sample rate the engine expects.
const targetRate = 16000

// defaultChunkSeconds is the window fed to the engine per step. The
// cancellation token and progress callback are checked between windows.
const defaultChunkSeconds = 30

// Progress reports batch job advancement after each processed window.
type Progress struct {
	Fraction float64       // 0..1 of input samples processed
	Elapsed  time.Duration // wall time since Run started
	ETA      time.Duration // estimated remaining time, 0 until measurable
}

// FileJob transcribes a recorded audio file of arbitrary sample rate
// and channel count. Input is decoded, downmixed to mono, resampled to
// 16 kHz and fed to the engine in windows.
type FileJob struct {
	engine Engine
	logger *slog.Logger

	chunkSeconds int
	canceled     atomic.Bool

	// OnProgress, when set, is invoked after every processed window.
	OnProgress func(Progress)
}

// NewFileJob creates a batch transcription job around the given engine.
func NewFileJob(engine Engine, logger *slog.Logger) *FileJob {
	return &FileJob{
		engine:       engine,
		logger:       logger,
		chunkSeconds: defaultChunkSeconds,
	}
}

// Cancel requests termination. The job stops at the next window
// boundary; a partially processed file leaves no output artifact.
func (j *FileJob) Cancel() {
	j.canceled.Store(true)
}

// Run transcribes inputPath and writes the text to outputPath. On
// cancellation it returns ErrCanceled; on failure it returns the error.
// In both cases no output file is created.
func (j *FileJob) Run(ctx context.Context, inputPath, outputPath string) error {
	start := time.Now()

	samples, err := j.loadMono16k(inputPath)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return fmt.Errorf("no audio data in %s", inputPath)
	}

	j.logger.Info("batch transcription started",
		slog.String("input", inputPath),
		slog.Float64("duration_seconds", float64(len(samples))/targetRate))

	chunkSamples := j.chunkSeconds * targetRate
	var parts []string

	for offset := 0; offset < len(samples); offset += chunkSamples {
		if j.canceled.Load() {
			j.logger.Info("batch transcription canceled",
				slog.String("input", inputPath),
				slog.Float64("fraction", float64(offset)/float64(len(samples))))
			return ErrCanceled
		}
		// Only a caller cancel maps to the canceled terminal state; a
		// deadline expiring is a failure.
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return ErrCanceled
			}
			return fmt.Errorf("transcription aborted: %w", err)
		}

		end := offset + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}

		result, err := j.engine.Transcribe(ctx, samples[offset:end])
		if err != nil {
			return fmt.Errorf("transcription failed at %ds: %w",
				offset/targetRate, err)
		}
		if result.Text != "" {
			parts = append(parts, result.Text)
		}

		j.reportProgress(float64(end)/float64(len(samples)), time.Since(start))
	}

	text := strings.Join(parts, "\n")
	if err := os.WriteFile(outputPath, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write transcript %s: %w", outputPath, err)
	}

	j.logger.Info("batch transcription completed",
		slog.String("output", outputPath),
		slog.Duration("elapsed", time.Since(start)))

	return nil
}

func (j *FileJob) reportProgress(fraction float64, elapsed time.Duration) {
	if j.OnProgress == nil {
		return
	}

	var eta time.Duration
	if fraction > 0 && fraction < 1 {
		eta = time.Duration(float64(elapsed) * (1 - fraction) / fraction)
	}

	j.OnProgress(Progress{Fraction: fraction, Elapsed: elapsed, ETA: eta})
}

// loadMono16k decodes a WAV file and converts it to mono 16 kHz float32.
func (j *FileJob) loadMono16k(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}

	mono, err := audio.DownmixMono(buf.Data, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to downmix %s: %w", path, err)
	}

	// Normalize by the source bit depth: a 24-bit sample scaled as if it
	// were 16-bit would wrap into garbage amplitudes.
	samples, err := audio.IntsToFloat32(mono, bitDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", path, err)
	}

	if rate != targetRate {
		j.logger.Debug("resampling input",
			slog.Int("from_rate", rate),
			slog.Int("to_rate", targetRate))
		samples, err = audio.Resample(samples, rate, targetRate)
		if err != nil {
			return nil, fmt.Errorf("failed to resample %s: %w", path, err)
		}
	}

	return samples, nil
}
