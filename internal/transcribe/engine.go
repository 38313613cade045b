package transcribe

import (
	"context"
	"time"
)

// Segment is one recognized span of speech within a transcription.
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Result holds the outcome of a transcription call. Text may be empty
// even on success; empty text is not an error.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// Engine converts mono 16 kHz float32 samples to text. Implementations
// are safe for sequential use from one goroutine; the live session
// calls Transcribe synchronously from its consumer loop.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32) (Result, error)
	Close() error
}
