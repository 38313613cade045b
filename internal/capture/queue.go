package capture

import (
	"sync"
	"time"
)

// Queue is the FIFO handing frames from the capture callback to the
// consumer goroutine. Push never blocks: a buffered channel covers the
// steady state and a mutex-guarded overflow slice absorbs inference
// backlog without dropping or reordering frames. Latency may grow under
// backlog, frame loss may not.
type Queue struct {
	ch chan []byte

	mu       sync.Mutex
	overflow [][]byte
}

// NewQueue creates a queue with the given channel capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan []byte, capacity)}
}

// Push enqueues a frame without blocking. The frame must not be reused
// by the caller after Push.
func (q *Queue) Push(frame []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Once the overflow is non-empty every new frame goes there,
	// otherwise frames would overtake the backlog.
	if len(q.overflow) == 0 {
		select {
		case q.ch <- frame:
			return
		default:
		}
	}
	q.overflow = append(q.overflow, frame)
}

// refill moves backlogged frames into the channel while there is room.
func (q *Queue) refill() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.overflow) > 0 {
		select {
		case q.ch <- q.overflow[0]:
			q.overflow[0] = nil
			q.overflow = q.overflow[1:]
		default:
			return
		}
	}
}

// Pop dequeues one frame, waiting up to timeout. The second return is
// false when the timeout expired with no frame available.
func (q *Queue) Pop(timeout time.Duration) ([]byte, bool) {
	q.refill()

	select {
	case frame := <-q.ch:
		q.refill()
		return frame, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-q.ch:
		q.refill()
		return frame, true
	case <-timer.C:
		return nil, false
	}
}

// TryPop dequeues one frame without waiting. Used to drain the queue
// at session stop.
func (q *Queue) TryPop() ([]byte, bool) {
	q.refill()

	select {
	case frame := <-q.ch:
		q.refill()
		return frame, true
	default:
		return nil, false
	}
}

// Len returns the number of frames currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch) + len(q.overflow)
}
