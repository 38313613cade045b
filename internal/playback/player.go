package playback

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

// speakerInit guards the process-wide speaker initialization.
var speakerInit sync.Once

// Player plays one recorded WAV file through the system output and
// drives a position cursor independent of the capture pipeline.
type Player struct {
	logger *slog.Logger

	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl

	length   time.Duration
	position atomic.Int64 // nanoseconds into the file

	done    chan struct{}
	stopped atomic.Bool
}

// Load opens a WAV file for playback.
func Load(path string, logger *slog.Logger) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file %s: %w", path, err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode audio file %s: %w", path, err)
	}

	var initErr error
	speakerInit.Do(func() {
		initErr = speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond))
	})
	if initErr != nil {
		streamer.Close()
		f.Close()
		return nil, fmt.Errorf("failed to initialize speaker: %w", initErr)
	}

	return &Player{
		logger:   logger,
		file:     f,
		streamer: streamer,
		format:   format,
		length:   format.SampleRate.D(streamer.Len()),
		done:     make(chan struct{}),
	}, nil
}

// Play starts playback and the position cursor goroutine. It returns
// immediately; Done signals completion.
func (p *Player) Play() {
	p.ctrl = &beep.Ctrl{Streamer: p.streamer}

	speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
		p.stopped.Store(true)
	})))

	// The cursor ticks at 20ms, decoupled from both the audio
	// callback and any capture activity.
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		defer close(p.done)

		for range ticker.C {
			if p.stopped.Load() {
				return
			}
			speaker.Lock()
			pos := p.format.SampleRate.D(p.streamer.Position())
			speaker.Unlock()
			p.position.Store(int64(pos))
		}
	}()

	p.logger.Info("playback started", slog.Duration("length", p.length))
}

// Pause suspends playback; the cursor holds its position.
func (p *Player) Pause() {
	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
}

// Resume continues paused playback.
func (p *Player) Resume() {
	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
}

// Stop ends playback and releases the file.
func (p *Player) Stop() error {
	if p.stopped.CompareAndSwap(false, true) {
		speaker.Lock()
		if p.ctrl != nil {
			p.ctrl.Streamer = nil
		}
		speaker.Unlock()
	}

	err := p.streamer.Close()
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Position returns the current playback offset.
func (p *Player) Position() time.Duration {
	return time.Duration(p.position.Load())
}

// Length returns the total file duration.
func (p *Player) Length() time.Duration {
	return p.length
}

// Done is closed when playback finishes or is stopped.
func (p *Player) Done() <-chan struct{} {
	return p.done
}
