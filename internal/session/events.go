package session

import (
	"sync/atomic"
	"time"
)

// EventKind identifies the type of a session event.
type EventKind int

const (
	// EventStarted is emitted once when the session begins.
	EventStarted EventKind = iota
	// EventLine carries one finished transcript line.
	EventLine
	// EventWarning carries a non-fatal problem (transcription failure,
	// classifier error). The session continues.
	EventWarning
	// EventStopped is emitted once after all sinks are closed.
	EventStopped
)

// Event is a queued notification from the recording pipeline to the
// presentation layer. The capture path never blocks on delivery.
type Event struct {
	Kind           EventKind
	Text           string
	AudioPath      string
	TranscriptPath string
	Time           time.Time
}

// Notifier fans session events out to a single consumer over a
// buffered channel. Posting never blocks; events the consumer cannot
// keep up with are dropped and counted.
type Notifier struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewNotifier creates a notifier with the given buffer size.
func NewNotifier(buffer int) *Notifier {
	if buffer < 1 {
		buffer = 1
	}
	return &Notifier{ch: make(chan Event, buffer)}
}

// Post enqueues an event without blocking.
func (n *Notifier) Post(e Event) {
	select {
	case n.ch <- e:
	default:
		n.dropped.Add(1)
	}
}

// Events returns the receive side of the event stream.
func (n *Notifier) Events() <-chan Event {
	return n.ch
}

// Dropped returns the number of events discarded because the buffer
// was full.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close closes the event stream. Only the recorder calls this, after
// the consumer loop has exited.
func (n *Notifier) Close() {
	close(n.ch)
}
