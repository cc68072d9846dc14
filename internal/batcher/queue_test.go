package batcher

import "testing"

func TestQueueOrderPriorityThenFIFO(t *testing.T) {
	q := newTaskQueue()
	// seq assigned in submission order; priorities deliberately interleaved
	for i, prio := range []int{0, 2, 1, 2, 0} {
		q.push(&task{seq: uint64(i + 1), priority: prio})
	}
	wantSeq := []uint64{2, 4, 3, 1, 5}
	for i, want := range wantSeq {
		got := q.pop()
		if got == nil {
			t.Fatalf("pop %d: queue empty", i)
		}
		if got.seq != want {
			t.Fatalf("pop %d: got seq %d want %d", i, got.seq, want)
		}
	}
	if q.pop() != nil {
		t.Fatalf("expected empty queue")
	}
}

func TestQueueDrain(t *testing.T) {
	q := newTaskQueue()
	for i := 1; i <= 5; i++ {
		q.push(&task{seq: uint64(i)})
	}
	batch := q.drain(3)
	if len(batch) != 3 {
		t.Fatalf("expected 3 drained, got %d", len(batch))
	}
	for i, tk := range batch {
		if tk.seq != uint64(i+1) {
			t.Fatalf("drain order broken at %d: seq %d", i, tk.seq)
		}
	}
	if q.len() != 2 {
		t.Fatalf("expected 2 left, got %d", q.len())
	}
	if got := q.drain(0); got != nil {
		t.Fatalf("drain(0) should return nil, got %v", got)
	}
}
