package capture

import (
	"testing"
	"time"
)

func frameWithTag(tag byte) []byte {
	frame := make([]byte, 960)
	frame[0] = tag
	return frame
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(16)

	for i := 0; i < 10; i++ {
		q.Push(frameWithTag(byte(i)))
	}

	for i := 0; i < 10; i++ {
		frame, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("Pop %d timed out", i)
		}
		if frame[0] != byte(i) {
			t.Errorf("Expected frame %d, got %d", i, frame[0])
		}
	}
}

func TestQueuePopTimeout(t *testing.T) {
	q := NewQueue(16)

	start := time.Now()
	_, ok := q.Pop(50 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Error("Expected timeout on empty queue")
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Pop returned too early: %v", elapsed)
	}
}

func TestQueueOverflowKeepsAllFrames(t *testing.T) {
	// Capacity 4 with 100 pushes forces the overflow path; every
	// frame must still come out exactly once, in order.
	q := NewQueue(4)

	total := 100
	for i := 0; i < total; i++ {
		q.Push(frameWithTag(byte(i)))
	}

	if got := q.Len(); got != total {
		t.Errorf("Expected queue length %d, got %d", total, got)
	}

	for i := 0; i < total; i++ {
		frame, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("Pop %d timed out", i)
		}
		if frame[0] != byte(i) {
			t.Errorf("Frame %d out of order: got tag %d", i, frame[0])
		}
	}

	if got := q.Len(); got != 0 {
		t.Errorf("Expected empty queue, got length %d", got)
	}
}

func TestQueueInterleavedPushPop(t *testing.T) {
	q := NewQueue(2)

	next := byte(0)
	popped := 0
	for round := 0; round < 20; round++ {
		for i := 0; i < 5; i++ {
			q.Push(frameWithTag(next))
			next++
		}
		for i := 0; i < 3; i++ {
			frame, ok := q.Pop(time.Second)
			if !ok {
				t.Fatal("Pop timed out")
			}
			if frame[0] != byte(popped) {
				t.Fatalf("Expected tag %d, got %d", popped, frame[0])
			}
			popped++
		}
	}

	// Drain the remainder.
	for {
		frame, ok := q.TryPop()
		if !ok {
			break
		}
		if frame[0] != byte(popped) {
			t.Fatalf("Drain: expected tag %d, got %d", popped, frame[0])
		}
		popped++
	}

	if popped != int(next) && popped != 100 {
		t.Errorf("Expected to pop %d frames, got %d", next, popped)
	}
}

func TestQueueTryPopEmpty(t *testing.T) {
	q := NewQueue(4)
	if _, ok := q.TryPop(); ok {
		t.Error("TryPop on empty queue must return false")
	}
}

func TestQueueConcurrentPush(t *testing.T) {
	q := NewQueue(8)
	total := 500

	go func() {
		for i := 0; i < total; i++ {
			q.Push(frameWithTag(byte(i % 256)))
		}
	}()

	received := 0
	for received < total {
		if _, ok := q.Pop(time.Second); !ok {
			t.Fatalf("Pop timed out after %d frames", received)
		}
		received++
	}
}
