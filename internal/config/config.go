package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Paths         PathsConfig         `yaml:"paths"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	PostProcess   PostProcessConfig   `yaml:"postprocess"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// PathsConfig contains filesystem locations used by the application.
// All components receive these explicitly; there is no process-wide
// path state.
type PathsConfig struct {
	RecordingsDir string `yaml:"recordings_dir"`
	ModelsDir     string `yaml:"models_dir"`
}

// AudioConfig contains capture and audio processing parameters
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`    // Hz
	Channels      int `yaml:"channels"`       // mono capture only
	BitDepth      int `yaml:"bit_depth"`      // bits per sample
	FrameDuration int `yaml:"frame_duration"` // milliseconds per frame
	QueueCapacity int `yaml:"queue_capacity"` // frames buffered between callback and consumer
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Aggressiveness        int     `yaml:"aggressiveness"`          // 0 (permissive) to 3 (strict)
	TrailingSilenceFrames int     `yaml:"trailing_silence_frames"` // silence frames that close an utterance
	PopTimeout            float64 `yaml:"pop_timeout"`             // seconds the consumer waits per dequeue
}

// TranscriptionConfig contains speech-to-text model configuration
type TranscriptionConfig struct {
	ModelPath string `yaml:"model_path"` // ggml model file, relative paths resolve under models_dir
	Language  string `yaml:"language"`
}

// PostProcessConfig contains transcript cleanup and summary configuration.
// The endpoint is an OpenAI-compatible chat completion server, typically
// a local llama.cpp instance.
type PostProcessConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// HTTPConfig contains the optional status/metrics endpoint configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Paths: PathsConfig{
			RecordingsDir: filepath.Join(home, "whisper", "recordings"),
			ModelsDir:     filepath.Join(home, "whisper", "models"),
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			BitDepth:      16,
			FrameDuration: 30,
			QueueCapacity: 4096,
		},
		VAD: VADConfig{
			Aggressiveness:        2,
			TrailingSilenceFrames: 10,
			PopTimeout:            1.0,
		},
		Transcription: TranscriptionConfig{
			ModelPath: "ggml-small.bin",
			Language:  "en",
		},
		PostProcess: PostProcessConfig{
			Enabled:    false,
			Endpoint:   "http://127.0.0.1:8080/v1",
			APIKey:     "local",
			Model:      "mistral-7b-instruct",
			Timeout:    120,
			MaxRetries: 2,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8765,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.PostProcess.Validate(); err != nil {
		return fmt.Errorf("postprocess config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates path configuration
func (p *PathsConfig) Validate() error {
	if p.RecordingsDir == "" {
		return fmt.Errorf("recordings_dir cannot be empty")
	}

	if p.ModelsDir == "" {
		return fmt.Errorf("models_dir cannot be empty")
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	// The frame classifier only accepts 10, 20 or 30 ms frames.
	switch a.FrameDuration {
	case 10, 20, 30:
	default:
		return fmt.Errorf("frame_duration must be 10, 20 or 30 ms, got %d", a.FrameDuration)
	}

	if a.QueueCapacity < 16 {
		return fmt.Errorf("queue_capacity must be at least 16 frames, got %d", a.QueueCapacity)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Aggressiveness < 0 || v.Aggressiveness > 3 {
		return fmt.Errorf("aggressiveness must be between 0 and 3, got %d", v.Aggressiveness)
	}

	if v.TrailingSilenceFrames < 1 {
		return fmt.Errorf("trailing_silence_frames must be at least 1, got %d", v.TrailingSilenceFrames)
	}

	if v.PopTimeout <= 0 {
		return fmt.Errorf("pop_timeout must be positive, got %v", v.PopTimeout)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.ModelPath == "" {
		return fmt.Errorf("model_path cannot be empty")
	}

	if t.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	return nil
}

// Validate validates post-processing configuration
func (p *PostProcessConfig) Validate() error {
	if !p.Enabled {
		return nil
	}

	if p.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when postprocess is enabled")
	}

	if p.Model == "" {
		return fmt.Errorf("model cannot be empty when postprocess is enabled")
	}

	if p.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", p.Timeout)
	}

	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", p.MaxRetries)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if !h.Enabled {
		return nil
	}

	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty when HTTP is enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// FrameSamples returns the number of samples in one capture frame
func (a *AudioConfig) FrameSamples() int {
	return a.SampleRate * a.FrameDuration / 1000
}

// FrameBytes returns the number of bytes in one capture frame
func (a *AudioConfig) FrameBytes() int {
	return a.FrameSamples() * a.BitDepth / 8
}

// FrameDurationTime returns the frame duration as a time.Duration
func (a *AudioConfig) FrameDurationTime() time.Duration {
	return time.Duration(a.FrameDuration) * time.Millisecond
}

// GetPopTimeout returns the consumer dequeue timeout as a time.Duration
func (v *VADConfig) GetPopTimeout() time.Duration {
	return time.Duration(v.PopTimeout * float64(time.Second))
}

// GetTimeoutDuration returns the post-processing request timeout as a time.Duration
func (p *PostProcessConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// ResolveModelPath resolves the transcription model path against the
// models directory when it is not absolute.
func (c *Config) ResolveModelPath() string {
	if filepath.IsAbs(c.Transcription.ModelPath) {
		return c.Transcription.ModelPath
	}
	return filepath.Join(c.Paths.ModelsDir, c.Transcription.ModelPath)
}
