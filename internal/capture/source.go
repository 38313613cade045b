package capture

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/kwasblue/whisper/internal/config"
	"github.com/kwasblue/whisper/internal/metrics"
)

// Source pushes fixed-size PCM frames from an audio device into a Queue.
// Implementations must never block inside the device callback.
type Source interface {
	Start() error
	Stop() error
}

// MicSource captures from the default microphone via malgo at
// 16 kHz mono PCM-16 and assembles fixed-duration frames. Frames
// arriving after Stop are discarded and counted, never enqueued.
type MicSource struct {
	queue   *Queue
	logger  *slog.Logger
	metrics *metrics.Metrics

	frameBytes int
	sampleRate int

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	running   atomic.Bool
	discarded atomic.Uint64

	// partial frame being assembled across callbacks; only the
	// device callback touches it
	pending []byte
}

// NewMicSource creates a microphone source feeding the given queue.
func NewMicSource(cfg *config.AudioConfig, queue *Queue, m *metrics.Metrics, logger *slog.Logger) *MicSource {
	return &MicSource{
		queue:      queue,
		logger:     logger,
		metrics:    m,
		frameBytes: cfg.FrameBytes(),
		sampleRate: cfg.SampleRate,
		pending:    make([]byte, 0, cfg.FrameBytes()),
	}
}

// Start initializes the audio backend and begins capturing.
func (s *MicSource) Start() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		s.logger.Debug("audio backend", slog.String("message", message))
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}
	s.ctx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(s.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: s.onFrames,
		Stop: func() {
			// Device-initiated stop (unplugged, backend error) is
			// logged, never fatal to the session.
			if s.running.Load() {
				s.logger.Warn("capture device stopped unexpectedly")
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		s.teardownContext()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	s.device = device

	s.running.Store(true)
	if err := device.Start(); err != nil {
		s.running.Store(false)
		device.Uninit()
		s.teardownContext()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	s.logger.Info("microphone capture started",
		slog.Int("sample_rate", s.sampleRate),
		slog.Int("frame_bytes", s.frameBytes))

	return nil
}

// onFrames is the device data callback. It only copies bytes and
// pushes completed frames; all heavy work happens on the consumer side.
func (s *MicSource) onFrames(_, pSample []byte, framecount uint32) {
	if framecount == 0 {
		return
	}

	if !s.running.Load() {
		s.discarded.Add(1)
		if s.metrics != nil {
			s.metrics.RecordFrameDiscarded()
		}
		return
	}

	s.pending = append(s.pending, pSample...)
	for len(s.pending) >= s.frameBytes {
		frame := make([]byte, s.frameBytes)
		copy(frame, s.pending[:s.frameBytes])
		s.pending = s.pending[:copy(s.pending, s.pending[s.frameBytes:])]

		s.queue.Push(frame)
		if s.metrics != nil {
			s.metrics.RecordFrameCaptured()
			s.metrics.SetQueueDepth(s.queue.Len())
		}
	}
}

// Stop stops the device. Frames already queued remain for the consumer
// to drain; frames still arriving from the backend are discarded.
func (s *MicSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.device != nil {
		if err := s.device.Stop(); err != nil {
			s.logger.Warn("failed to stop capture device", slog.String("error", err.Error()))
		}
		s.device.Uninit()
		s.device = nil
	}
	s.teardownContext()

	s.logger.Info("microphone capture stopped",
		slog.Uint64("discarded_callbacks", s.discarded.Load()))

	return nil
}

func (s *MicSource) teardownContext() {
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
}

// Discarded returns the number of device callbacks dropped after Stop.
func (s *MicSource) Discarded() uint64 {
	return s.discarded.Load()
}
