package vad

import (
	"fmt"
	"math"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// Classifier decides whether a single PCM-16 frame contains speech.
// Frames must be 10, 20 or 30 ms of 16 kHz mono little-endian PCM-16.
type Classifier interface {
	IsSpeech(frame []byte) (bool, error)
}

// WebRTCClassifier wraps the WebRTC voice activity detector. It is the
// default live-path classifier.
type WebRTCClassifier struct {
	vad        *webrtcvad.VAD
	sampleRate int

	mu sync.Mutex
}

// NewWebRTCClassifier creates a classifier with the given aggressiveness
// (0 most permissive, 3 most strict).
func NewWebRTCClassifier(sampleRate, aggressiveness int) (*WebRTCClassifier, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("aggressiveness must be between 0 and 3, got %d", aggressiveness)
	}

	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create VAD: %w", err)
	}

	if err := vad.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode %d: %w", aggressiveness, err)
	}

	return &WebRTCClassifier{vad: vad, sampleRate: sampleRate}, nil
}

// IsSpeech classifies one frame. A frame of unsupported length is a
// caller contract violation and returns an error.
func (c *WebRTCClassifier) IsSpeech(frame []byte) (bool, error) {
	if !c.vad.ValidRateAndFrameLength(c.sampleRate, len(frame)) {
		return false, fmt.Errorf("invalid frame length %d for sample rate %d", len(frame), c.sampleRate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.vad.Process(c.sampleRate, frame)
	if err != nil {
		return false, fmt.Errorf("VAD process failed: %w", err)
	}
	return active, nil
}

// EnergyClassifier is a simple RMS-energy classifier. It serves as a
// fallback when the WebRTC detector is unavailable and as a deterministic
// classifier in tests.
type EnergyClassifier struct {
	frameBytes int
	threshold  float64 // RMS threshold in raw sample units

	mu           sync.Mutex
	totalFrames  uint64
	speechFrames uint64
}

// NewEnergyClassifier creates an energy classifier. A threshold around
// 500 works for typical close-mic speech.
func NewEnergyClassifier(frameBytes int, threshold float64) (*EnergyClassifier, error) {
	if frameBytes <= 0 || frameBytes%2 != 0 {
		return nil, fmt.Errorf("frame bytes must be positive and even, got %d", frameBytes)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("threshold cannot be negative, got %f", threshold)
	}
	return &EnergyClassifier{frameBytes: frameBytes, threshold: threshold}, nil
}

// IsSpeech reports whether the frame's RMS energy exceeds the threshold.
func (c *EnergyClassifier) IsSpeech(frame []byte) (bool, error) {
	if len(frame) != c.frameBytes {
		return false, fmt.Errorf("expected %d frame bytes, got %d", c.frameBytes, len(frame))
	}

	var energy float64
	for i := 0; i < len(frame); i += 2 {
		sample := float64(int16(uint16(frame[i]) | uint16(frame[i+1])<<8))
		energy += sample * sample
	}
	rms := math.Sqrt(energy / float64(len(frame)/2))

	speech := rms >= c.threshold

	c.mu.Lock()
	c.totalFrames++
	if speech {
		c.speechFrames++
	}
	c.mu.Unlock()

	return speech, nil
}

// Stats returns the frame counts seen so far.
func (c *EnergyClassifier) Stats() (total, speech uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalFrames, c.speechFrames
}
