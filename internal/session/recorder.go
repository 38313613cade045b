package session

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kwasblue/whisper/internal/audio"
	"github.com/kwasblue/whisper/internal/capture"
	"github.com/kwasblue/whisper/internal/metrics"
	"github.com/kwasblue/whisper/internal/transcribe"
	"github.com/kwasblue/whisper/internal/transcript"
	"github.com/kwasblue/whisper/internal/vad"
)

// Options configures a Recorder. Queue, Segmenter and Engine are
// required; Source may be nil when the caller feeds the queue itself.
type Options struct {
	Queue         *capture.Queue
	Source        capture.Source
	Segmenter     *vad.Segmenter
	Engine        transcribe.Engine
	RecordingsDir string
	SampleRate    int
	PopTimeout    time.Duration
	EventBuffer   int
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Recorder owns one live recording session: it drains the frame queue,
// writes every accepted frame to the WAV sink, runs segmentation and
// synchronous transcription, and appends timestamped lines to the
// transcript sink. One Recorder records one session.
type Recorder struct {
	id        string
	opts      Options
	clock     func() time.Time
	logger    *slog.Logger
	notifier  *Notifier
	wavSink   *audio.Writer
	textFile  *os.File
	textSink  *bufio.Writer
	startTime time.Time

	audioPath      string
	transcriptPath string

	stopping atomic.Bool
	started  atomic.Bool
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// NewRecorder validates options and creates an idle recorder.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if opts.Segmenter == nil {
		return nil, fmt.Errorf("segmenter is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if opts.RecordingsDir == "" {
		return nil, fmt.Errorf("recordings directory is required")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", opts.SampleRate)
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Recorder{
		id:       uuid.New().String(),
		opts:     opts,
		clock:    clock,
		logger:   opts.Logger,
		notifier: NewNotifier(opts.EventBuffer),
	}, nil
}

// ID returns the session identifier.
func (r *Recorder) ID() string {
	return r.id
}

// Events returns the session event stream. It is closed after Stop.
func (r *Recorder) Events() <-chan Event {
	return r.notifier.Events()
}

// AudioPath returns the session WAV path, valid after Start.
func (r *Recorder) AudioPath() string {
	return r.audioPath
}

// TranscriptPath returns the session transcript path, valid after Start.
func (r *Recorder) TranscriptPath() string {
	return r.transcriptPath
}

// Start opens the session sinks, starts the capture source, and launches
// the consumer goroutine.
func (r *Recorder) Start() error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("recorder already started")
	}

	if err := os.MkdirAll(r.opts.RecordingsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create recordings directory: %w", err)
	}

	r.startTime = r.clock()
	stem := "session_" + r.startTime.Format("20060102_150405")
	r.audioPath = filepath.Join(r.opts.RecordingsDir, stem+".wav")
	r.transcriptPath = filepath.Join(r.opts.RecordingsDir, stem+".txt")

	wavSink, err := audio.NewWriter(r.audioPath, r.opts.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to open audio sink: %w", err)
	}
	r.wavSink = wavSink

	textFile, err := os.Create(r.transcriptPath)
	if err != nil {
		r.wavSink.Close()
		return fmt.Errorf("failed to open transcript sink: %w", err)
	}
	r.textFile = textFile
	r.textSink = bufio.NewWriter(textFile)

	if r.opts.Source != nil {
		if err := r.opts.Source.Start(); err != nil {
			r.wavSink.Close()
			r.textFile.Close()
			return fmt.Errorf("failed to start capture source: %w", err)
		}
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordSessionStarted()
	}

	r.logger.Info("session started",
		slog.String("session_id", r.id),
		slog.String("audio", r.audioPath),
		slog.String("transcript", r.transcriptPath))

	r.notifier.Post(Event{
		Kind:           EventStarted,
		AudioPath:      r.audioPath,
		TranscriptPath: r.transcriptPath,
		Time:           r.startTime,
	})

	r.wg.Add(1)
	go r.consumeLoop()

	return nil
}

// consumeLoop is the single consumer of the frame queue. It runs until
// Stop is requested and the queue is drained.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		frame, ok := r.opts.Queue.Pop(r.opts.PopTimeout)
		if ok {
			r.processFrame(frame)
		}

		if r.stopping.Load() {
			// Every frame accepted before stop still gets written
			// and classified exactly once.
			for {
				frame, ok := r.opts.Queue.TryPop()
				if !ok {
					break
				}
				r.processFrame(frame)
			}
			if u := r.opts.Segmenter.Flush(); u != nil {
				r.handleUtterance(u)
			}
			return
		}
	}
}

// processFrame writes one frame to the audio sink and advances the
// segmenter. Sink errors are warnings; the session keeps going.
func (r *Recorder) processFrame(frame []byte) {
	if err := r.wavSink.WriteFrame(frame); err != nil {
		r.warn(fmt.Sprintf("audio sink write failed: %v", err))
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordFrameConsumed()
		r.opts.Metrics.SetQueueDepth(r.opts.Queue.Len())
	}

	u, err := r.opts.Segmenter.ProcessFrame(frame, r.clock())
	if err != nil {
		r.warn(fmt.Sprintf("frame classification failed: %v", err))
		return
	}
	if u != nil {
		r.handleUtterance(u)
	}
}

// handleUtterance transcribes one closed utterance synchronously and
// appends its line to the transcript. Engine failures and empty
// transcriptions produce no line.
func (r *Recorder) handleUtterance(u *vad.Utterance) {
	utteranceSeconds := float64(len(u.Data)) / float64(r.opts.SampleRate*2)
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordUtteranceEmitted(utteranceSeconds)
	}

	samples, err := audio.BytesToFloat32(u.Data)
	if err != nil {
		r.warn(fmt.Sprintf("utterance conversion failed: %v", err))
		return
	}

	start := time.Now()
	result, err := r.opts.Engine.Transcribe(context.Background(), samples)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordTranscriptionFailure(elapsed)
		}
		r.warn(fmt.Sprintf("transcription failed: %v", err))
		return
	}

	if result.Text == "" {
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordTranscriptionEmpty(elapsed)
		}
		return
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordTranscriptionSuccess(elapsed)
	}

	line := transcript.FormatLine(u.Start.Sub(r.startTime), result.Text)
	r.writeLine(line)
}

// writeLine appends one line to the transcript sink and flushes so the
// file is readable while the session is live.
func (r *Recorder) writeLine(line string) {
	if _, err := r.textSink.WriteString(line + "\n"); err != nil {
		r.warn(fmt.Sprintf("transcript write failed: %v", err))
		return
	}
	if err := r.textSink.Flush(); err != nil {
		r.warn(fmt.Sprintf("transcript flush failed: %v", err))
		return
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordLineWritten()
	}

	r.logger.Debug("transcript line written", slog.String("line", line))
	r.notifier.Post(Event{Kind: EventLine, Text: line, Time: r.clock()})
}

func (r *Recorder) warn(msg string) {
	r.logger.Warn(msg, slog.String("session_id", r.id))
	r.notifier.Post(Event{Kind: EventWarning, Text: msg, Time: r.clock()})
}

// Stop ends the session: the source stops pushing, the consumer drains
// the queue and flushes the open utterance, then both sinks are closed.
// Stop is idempotent and blocks until the pipeline has settled.
func (r *Recorder) Stop() error {
	// Checked outside stopOnce so a premature Stop cannot burn the
	// one real shutdown.
	if !r.started.Load() {
		return fmt.Errorf("recorder not started")
	}

	r.stopOnce.Do(func() {
		if r.opts.Source != nil {
			if err := r.opts.Source.Stop(); err != nil {
				r.logger.Warn("capture source stop failed", slog.String("error", err.Error()))
			}
		}

		r.stopping.Store(true)
		r.wg.Wait()

		var firstErr error
		if err := r.textSink.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to flush transcript: %w", err)
		}
		if err := r.textFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close transcript: %w", err)
		}
		if err := r.wavSink.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close audio sink: %w", err)
		}

		duration := r.clock().Sub(r.startTime)
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordSessionStopped(duration.Seconds())
		}

		r.logger.Info("session stopped",
			slog.String("session_id", r.id),
			slog.Duration("duration", duration),
			slog.Uint64("dropped_events", r.notifier.Dropped()))

		r.notifier.Post(Event{
			Kind:           EventStopped,
			AudioPath:      r.audioPath,
			TranscriptPath: r.transcriptPath,
			Time:           r.clock(),
		})
		r.notifier.Close()

		r.stopErr = firstErr
	})

	return r.stopErr
}
