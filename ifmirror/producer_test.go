package ifmirror

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeTransport records every delivered command per replicator, and can
// be told to fail the next Send for a given replicator exactly once.
type fakeTransport struct {
	mu       sync.Mutex
	sent     map[string][]Command
	failOnce map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][]Command), failOnce: make(map[string]bool)}
}

func (f *fakeTransport) Send(_ context.Context, replicator string, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnce[replicator] {
		f.failOnce[replicator] = false
		return errors.New("simulated transport failure")
	}
	f.sent[replicator] = append(f.sent[replicator], cmd)
	return nil
}

func (f *fakeTransport) count(replicator string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[replicator])
}

func TestProducerAttachRejectsDuplicateName(t *testing.T) {
	p := NewProducer()
	if err := p.Attach("mirror-a"); err != nil {
		t.Fatalf("first Attach: %v", err)
	}
	if err := p.Attach("mirror-a"); err == nil {
		t.Fatalf("expected the second Attach with the same name to fail")
	}
}

func TestProducerAttachSeedsSnapshotAndTreeComplete(t *testing.T) {
	p := NewProducer()
	p.Apply(AddInterface("eth0"))
	p.Apply(SetInterfaceEnabled("eth0", true))

	if err := p.Attach("mirror-a"); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	transport := newFakeTransport()
	if err := p.Flush(context.Background(), transport); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got := transport.sent["mirror-a"]
	if len(got) == 0 {
		t.Fatalf("expected a non-empty backlog delivered to a freshly attached replicator")
	}
	last := got[len(got)-1]
	if !last.IsHint() || last.Hint != HintTreeComplete {
		t.Fatalf("expected the snapshot backlog to end with TreeComplete, got %+v", last)
	}
}

func TestProducerApplyFansOutInAttachOrder(t *testing.T) {
	p := NewProducer()
	p.Attach("first")
	p.Attach("second")

	transport := newFakeTransport()
	p.Flush(context.Background(), transport) // drain the (empty) snapshot + TreeComplete for both

	p.Apply(AddInterface("eth0"))
	if err := p.Flush(context.Background(), transport); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if transport.count("first") == 0 || transport.count("second") == 0 {
		t.Fatalf("expected both replicators to observe the mutation")
	}
}

func TestProducerApplyNoopDoesNotEnqueue(t *testing.T) {
	p := NewProducer()
	p.Apply(AddInterface("eth0"))
	p.Attach("mirror-a")

	transport := newFakeTransport()
	p.Flush(context.Background(), transport)
	before := transport.count("mirror-a")

	if changed := p.Apply(AddInterface("eth0")); changed {
		t.Fatalf("expected re-adding an existing interface to report no change")
	}
	p.Flush(context.Background(), transport)
	if transport.count("mirror-a") != before {
		t.Fatalf("expected no additional delivery for a no-op apply")
	}
}

func TestProducerDetachStopsFutureDelivery(t *testing.T) {
	p := NewProducer()
	p.Attach("mirror-a")
	p.Detach("mirror-a")

	p.Apply(AddInterface("eth0"))
	transport := newFakeTransport()
	if err := p.Flush(context.Background(), transport); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if transport.count("mirror-a") != 0 {
		t.Fatalf("expected a detached replicator to receive nothing")
	}
}

func TestProducerUpdatesMadeEnqueuesHintOnAllReplicators(t *testing.T) {
	p := NewProducer()
	p.Attach("mirror-a")
	transport := newFakeTransport()
	p.Flush(context.Background(), transport) // drain initial snapshot

	p.Apply(AddInterface("eth0"))
	p.UpdatesMade()
	if err := p.Flush(context.Background(), transport); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got := transport.sent["mirror-a"]
	last := got[len(got)-1]
	if !last.IsHint() || last.Hint != HintUpdatesMade {
		t.Fatalf("expected the batch to end with UpdatesMade, got %+v", last)
	}
}

func TestProducerFlushQuiescesReplicatorOnTransportError(t *testing.T) {
	p := NewProducer()
	p.Attach("mirror-a")

	transport := newFakeTransport()
	transport.failOnce["mirror-a"] = true
	if err := p.Flush(context.Background(), transport); err != nil {
		t.Fatalf("Flush should not propagate a per-replicator transport error: %v", err)
	}
	if transport.count("mirror-a") != 0 {
		t.Fatalf("expected the failed send to not count as delivered")
	}

	// Next flush should redeliver the same head item since Quiesce keeps it queued.
	if err := p.Flush(context.Background(), transport); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if transport.count("mirror-a") == 0 {
		t.Fatalf("expected the quiesced item to be redelivered on retry")
	}
}
