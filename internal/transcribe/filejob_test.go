package transcribe

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// scriptedEngine returns canned texts in order and optionally fails or
// triggers a cancel partway through.
type scriptedEngine struct {
	texts       []string
	calls       int
	failAt      int // 1-based call index that returns an error, 0 = never
	onCall      func(call int)
	lastCtx     context.Context
	lastSamples []float32
}

func (e *scriptedEngine) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	e.calls++
	e.lastCtx = ctx
	e.lastSamples = samples
	if e.onCall != nil {
		e.onCall(e.calls)
	}
	if e.failAt > 0 && e.calls == e.failAt {
		return Result{}, errors.New("engine failure")
	}
	idx := e.calls - 1
	if idx >= len(e.texts) {
		return Result{}, nil
	}
	return Result{Text: e.texts[idx]}, nil
}

func (e *scriptedEngine) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// writeTestWAV writes a mono 16 kHz WAV with the given number of samples.
func writeTestWAV(t *testing.T, path string, numSamples int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test WAV: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, numSamples),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 2000) - 1000
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write test WAV: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close test WAV: %v", err)
	}
}

// writeTestWAV24 writes a mono 16 kHz 24-bit WAV holding a constant
// sample value.
func writeTestWAV24(t *testing.T, path string, numSamples, value int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test WAV: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 24, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, numSamples),
		SourceBitDepth: 24,
	}
	for i := range buf.Data {
		buf.Data[i] = value
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write test WAV: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close test WAV: %v", err)
	}
}

func TestFileJob24BitInputNormalized(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	output := filepath.Join(dir, "input_transcript.txt")

	// One second of constant amplitude 4,000,000: just under half of
	// 24-bit full scale. Scaled as 16-bit it would wrap to noise.
	writeTestWAV24(t, input, 16000, 4000000)

	engine := &scriptedEngine{texts: []string{"steady tone"}}
	job := NewFileJob(engine, testLogger())

	if err := job.Run(context.Background(), input, output); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(engine.lastSamples) == 0 {
		t.Fatal("Engine received no samples")
	}
	want := 4000000.0 / 8388608.0
	got := float64(engine.lastSamples[0])
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("Expected normalized sample %.6f, got %.6f", want, got)
	}
	for i, s := range engine.lastSamples {
		if s > 1 || s < -1 {
			t.Fatalf("Sample %d out of [-1, 1]: %f", i, s)
		}
	}
}

func TestFileJobTranscribesInWindows(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	output := filepath.Join(dir, "input_transcript.txt")

	// 65 seconds at 16 kHz: three 30-second windows.
	writeTestWAV(t, input, 65*16000)

	engine := &scriptedEngine{texts: []string{"first window", "second window", "tail"}}
	job := NewFileJob(engine, testLogger())

	var progress []Progress
	job.OnProgress = func(p Progress) { progress = append(progress, p) }

	if err := job.Run(context.Background(), input, output); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if engine.calls != 3 {
		t.Errorf("Expected 3 engine calls, got %d", engine.calls)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("failed to read transcript: %v", err)
	}
	expected := "first window\nsecond window\ntail\n"
	if string(data) != expected {
		t.Errorf("Expected transcript %q, got %q", expected, string(data))
	}

	if len(progress) != 3 {
		t.Fatalf("Expected 3 progress reports, got %d", len(progress))
	}
	if progress[len(progress)-1].Fraction != 1.0 {
		t.Errorf("Final progress fraction must be 1.0, got %f", progress[len(progress)-1].Fraction)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i].Fraction <= progress[i-1].Fraction {
			t.Error("Progress fraction must be strictly increasing")
		}
	}
}

func TestFileJobCancelLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	output := filepath.Join(dir, "input_transcript.txt")

	// 100 seconds: four windows, cancel after the second.
	writeTestWAV(t, input, 100*16000)

	job := NewFileJob(nil, testLogger())
	engine := &scriptedEngine{
		texts: []string{"one", "two", "three", "four"},
		onCall: func(call int) {
			if call == 2 {
				job.Cancel()
			}
		},
	}
	job.engine = engine

	err := job.Run(context.Background(), input, output)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("Expected ErrCanceled, got %v", err)
	}

	if engine.calls != 2 {
		t.Errorf("Expected 2 engine calls before cancel, got %d", engine.calls)
	}

	if _, err := os.Stat(output); !errors.Is(err, fs.ErrNotExist) {
		t.Error("Canceled job must not leave an output file")
	}
}

func TestFileJobEngineFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	output := filepath.Join(dir, "input_transcript.txt")

	writeTestWAV(t, input, 70*16000)

	engine := &scriptedEngine{texts: []string{"one", "two", "three"}, failAt: 2}
	job := NewFileJob(engine, testLogger())

	err := job.Run(context.Background(), input, output)
	if err == nil {
		t.Fatal("Expected engine failure to propagate")
	}
	if errors.Is(err, ErrCanceled) {
		t.Error("Failure must not be reported as canceled")
	}

	if _, err := os.Stat(output); !errors.Is(err, fs.ErrNotExist) {
		t.Error("Failed job must not leave an output file")
	}
}

func TestFileJobContextCancellation(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	output := filepath.Join(dir, "input_transcript.txt")

	writeTestWAV(t, input, 70*16000)

	ctx, cancel := context.WithCancel(context.Background())
	engine := &scriptedEngine{
		texts: []string{"one", "two", "three"},
		onCall: func(call int) {
			if call == 1 {
				cancel()
			}
		},
	}
	job := NewFileJob(engine, testLogger())

	err := job.Run(ctx, input, output)
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("Expected ErrCanceled on context cancellation, got %v", err)
	}
}

func TestFileJobDeadlineExpiryIsFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	output := filepath.Join(dir, "input_transcript.txt")

	writeTestWAV(t, input, 70*16000)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	engine := &scriptedEngine{texts: []string{"one", "two", "three"}}
	job := NewFileJob(engine, testLogger())

	err := job.Run(ctx, input, output)
	if err == nil {
		t.Fatal("Expected error for expired deadline")
	}
	if errors.Is(err, ErrCanceled) {
		t.Error("Deadline expiry must be a failure, not canceled")
	}

	if _, err := os.Stat(output); !errors.Is(err, fs.ErrNotExist) {
		t.Error("Failed job must not leave an output file")
	}
}

func TestFileJobInvalidInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(input, []byte("not a wav file"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	job := NewFileJob(&scriptedEngine{}, testLogger())
	err := job.Run(context.Background(), input, filepath.Join(dir, "out.txt"))
	if err == nil {
		t.Error("Expected error for invalid WAV input")
	}
}

func TestFileJobMissingInput(t *testing.T) {
	job := NewFileJob(&scriptedEngine{}, testLogger())
	err := job.Run(context.Background(), "/nonexistent.wav", "/tmp/out.txt")
	if err == nil {
		t.Error("Expected error for missing input file")
	}
}
