package containers

import (
	"testing"

	"github.com/spaghettifunk/skybox/engine/core"
)

func TestRingQueueWrapAround(t *testing.T) {
	rq := NewRingQueue[int](3)

	for round := 0; round < 4; round++ {
		for i := 0; i < 3; i++ {
			if err := rq.Enqueue(round*10 + i); err != nil {
				t.Fatalf("Enqueue: unexpected error: %v", err)
			}
		}
		if !rq.IsFull() {
			t.Fatal("IsFull: expected full queue")
		}
		if err := rq.Enqueue(99); !core.Is(err, core.ErrQueueFull) {
			t.Fatalf("Enqueue on full queue: got %v, want ErrQueueFull", err)
		}
		if v, _ := rq.Peek(); v != round*10 {
			t.Fatalf("Peek = %d, want %d", v, round*10)
		}
		for i := 0; i < 3; i++ {
			v, err := rq.Dequeue()
			if err != nil {
				t.Fatalf("Dequeue: unexpected error: %v", err)
			}
			if v != round*10+i {
				t.Fatalf("Dequeue = %d, want %d", v, round*10+i)
			}
		}
	}

	if _, err := rq.Dequeue(); !core.Is(err, core.ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue: got %v, want ErrQueueEmpty", err)
	}
	if rq.Len() != 0 || rq.Cap() != 3 {
		t.Fatalf("Len/Cap = %d/%d, want 0/3", rq.Len(), rq.Cap())
	}
}

func TestRingQueueMinimumSize(t *testing.T) {
	rq := NewRingQueue[string](0)
	if rq.Cap() != 1 {
		t.Fatalf("Cap = %d, want 1", rq.Cap())
	}
	if err := rq.Enqueue("a"); err != nil {
		t.Fatalf("Enqueue: unexpected error: %v", err)
	}
}
