package vad

import (
	"fmt"
	"time"
)

// state is the segmenter's position in the speech/silence hysteresis.
type state int

const (
	stateSilence state = iota
	stateSpeaking
)

// Utterance is a contiguous run of speech frames ready for transcription.
type Utterance struct {
	Data   []byte    // concatenated PCM-16 frames
	Start  time.Time // wall-clock time of the first speech frame
	Frames int       // number of speech frames included
}

// Segmenter groups classified frames into utterances. It stays in
// Silence until the classifier reports speech, accumulates speech
// frames while Speaking, and closes the utterance once the trailing
// silence run exceeds the configured threshold. Trailing silence
// frames are not included in the utterance data.
type Segmenter struct {
	classifier      Classifier
	silenceFrames   int // threshold that closes an utterance
	currentState    state
	currentData     []byte
	currentStart    time.Time
	currentFrames   int
	silenceRun      int
	emitted         uint64
	discardedEmpty  uint64
	classifierFails uint64
}

// NewSegmenter creates a segmenter emitting utterances after
// silenceFrames consecutive non-speech frames.
func NewSegmenter(classifier Classifier, silenceFrames int) (*Segmenter, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if silenceFrames < 1 {
		return nil, fmt.Errorf("silence frame threshold must be at least 1, got %d", silenceFrames)
	}
	return &Segmenter{
		classifier:    classifier,
		silenceFrames: silenceFrames,
		currentState:  stateSilence,
	}, nil
}

// ProcessFrame feeds one frame through the classifier and advances the
// state machine. now is the arrival time of the frame and becomes the
// utterance start time on a Silence->Speaking transition. The returned
// utterance is non-nil only when a segment just closed.
func (s *Segmenter) ProcessFrame(frame []byte, now time.Time) (*Utterance, error) {
	speech, err := s.classifier.IsSpeech(frame)
	if err != nil {
		s.classifierFails++
		return nil, fmt.Errorf("failed to classify frame: %w", err)
	}

	switch s.currentState {
	case stateSilence:
		if speech {
			s.currentState = stateSpeaking
			s.currentStart = now
			s.currentData = append(s.currentData[:0], frame...)
			s.currentFrames = 1
			s.silenceRun = 0
		}

	case stateSpeaking:
		if speech {
			s.currentData = append(s.currentData, frame...)
			s.currentFrames++
			s.silenceRun = 0
		} else {
			s.silenceRun++
			if s.silenceRun > s.silenceFrames {
				return s.close(), nil
			}
		}
	}

	return nil, nil
}

// Flush closes and returns any open utterance. Called at session stop
// so the in-flight utterance is not lost.
func (s *Segmenter) Flush() *Utterance {
	if s.currentState != stateSpeaking {
		return nil
	}
	return s.close()
}

// close resets to Silence and returns the accumulated utterance, or nil
// if it carried no audio.
func (s *Segmenter) close() *Utterance {
	data := make([]byte, len(s.currentData))
	copy(data, s.currentData)

	u := &Utterance{
		Data:   data,
		Start:  s.currentStart,
		Frames: s.currentFrames,
	}

	s.currentState = stateSilence
	s.currentData = s.currentData[:0]
	s.currentFrames = 0
	s.silenceRun = 0

	if len(u.Data) == 0 {
		s.discardedEmpty++
		return nil
	}
	s.emitted++
	return u
}

// Stats reports utterance counters for observability.
type Stats struct {
	Emitted         uint64 `json:"emitted"`
	DiscardedEmpty  uint64 `json:"discarded_empty"`
	ClassifierFails uint64 `json:"classifier_fails"`
}

// GetStats returns current segmenter counters.
func (s *Segmenter) GetStats() Stats {
	return Stats{
		Emitted:         s.emitted,
		DiscardedEmpty:  s.discardedEmpty,
		ClassifierFails: s.classifierFails,
	}
}
