package queue

import "testing"

func TestPushLen(t *testing.T) {
	q := New[int]()
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got length %d", q.Len())
	}
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	if q.Len() != 10 {
		t.Errorf("expected length 10, got %d", q.Len())
	}
}

func TestDispatchOrderAndAck(t *testing.T) {
	q := New[string]()
	items := []string{"a", "b", "c"}
	for _, item := range items {
		q.Push(item)
	}
	for _, want := range items {
		got, ok := q.TryDispatch()
		if !ok {
			t.Fatalf("expected to dispatch %q", want)
		}
		if got != want {
			t.Errorf("dispatched %q, want %q", got, want)
		}
		// A second dispatch attempt must fail while one is in flight.
		if _, ok := q.TryDispatch(); ok {
			t.Error("expected TryDispatch to fail while an item is in flight")
		}
		q.Ack()
	}
	if q.Len() != 0 {
		t.Errorf("expected queue to be drained, got length %d", q.Len())
	}
}

func TestQuiesceRedispatchesSameItem(t *testing.T) {
	q := New[int]()
	q.Push(42)
	got, ok := q.TryDispatch()
	if !ok || got != 42 {
		t.Fatalf("expected to dispatch 42, got %v %v", got, ok)
	}
	q.Quiesce()
	got, ok = q.TryDispatch()
	if !ok || got != 42 {
		t.Fatalf("expected redispatch of 42 after quiesce, got %v %v", got, ok)
	}
}

func TestDrain(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)
	q.TryDispatch()
	drained := q.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained items, got %d", len(drained))
	}
	if q.Len() != 0 {
		t.Errorf("expected queue empty after drain, got %d", q.Len())
	}
}
