package ifmirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/netrib/rib/queue"
	"golang.org/x/sync/errgroup"
)

// Transport delivers one Command to one named replicator. A non-nil
// error means the replicator is temporarily unreachable; the command
// stays queued and that replicator alone is quiesced (§4.6, §5).
type Transport interface {
	Send(ctx context.Context, replicator string, cmd Command) error
}

// replicatorState is one attached mirror's view, as tracked by the
// Producer: a FIFO pre-seeded with the full snapshot on attach, onto
// which every subsequent live command is appended in the same order for
// every replicator (§4.6's "ordering guarantee across subscribers" —
// delivering every replicator the identical command sequence makes a
// single global queue and N per-replicator queues observationally
// equivalent, without tracking cross-queue dequeue coupling explicitly).
type replicatorState struct {
	name  string
	queue *queue.FIFO[Command]
}

// Producer is the authoritative side of the mirror: it owns the one
// writable Tree and fans every mutation out, in order, to every attached
// replicator (§4.6).
type Producer struct {
	mu    sync.Mutex
	tree  *Tree
	order []string
	byName map[string]*replicatorState
}

// NewProducer creates a producer with an empty tree.
func NewProducer() *Producer {
	return &Producer{
		tree:   NewTree(),
		byName: make(map[string]*replicatorState),
	}
}

// Tree returns the live authoritative tree. Callers must not mutate it
// directly; use the Add*/Remove*/Set* command constructors and Apply.
func (p *Producer) Tree() *Tree { return p.tree }

// Attach registers a new replicator by name, rejecting duplicates (§4.6:
// "The producer rejects duplicate registrations by name"), and seeds its
// FIFO with the entire current tree via TreeToCommands, terminated by a
// TreeComplete hint.
func (p *Producer) Attach(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byName[name]; exists {
		return fmt.Errorf("ifmirror: replicator %q already registered", name)
	}
	rs := &replicatorState{name: name, queue: queue.New[Command]()}
	for _, cmd := range TreeToCommands(p.tree) {
		rs.queue.Push(cmd)
	}
	rs.queue.Push(treeCompleteCmd())
	p.byName[name] = rs
	p.order = append(p.order, name)
	return nil
}

// Detach removes a replicator, e.g. on transport disconnect.
func (p *Producer) Detach(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byName[name]; !ok {
		return
	}
	delete(p.byName, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Apply mutates the authoritative tree and, if the command applied
// (see Command.Apply), enqueues it on every currently attached
// replicator in attach order.
func (p *Producer) Apply(cmd Command) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := cmd.Apply(p.tree)
	if !changed {
		return false
	}
	for _, name := range p.order {
		p.byName[name].queue.Push(cmd)
	}
	return true
}

// UpdatesMade enqueues the UpdatesMade hint on every replicator,
// signaling the end of a batch of live commands.
func (p *Producer) UpdatesMade() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range p.order {
		p.byName[name].queue.Push(updatesMadeCmd())
	}
}

// Flush drains every replicator's FIFO through transport as far as
// at-most-one-in-flight allows, fanning the per-replicator drains out
// concurrently since they share no state (§5: "per-subscriber FIFOs
// with at-most-one-in-flight discipline").
func (p *Producer) Flush(ctx context.Context, transport Transport) error {
	p.mu.Lock()
	states := make([]*replicatorState, 0, len(p.order))
	for _, name := range p.order {
		states = append(states, p.byName[name])
	}
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, rs := range states {
		rs := rs
		g.Go(func() error {
			drainReplicator(gctx, transport, rs)
			return nil
		})
	}
	return g.Wait()
}

func drainReplicator(ctx context.Context, transport Transport, rs *replicatorState) {
	for {
		cmd, ok := rs.queue.TryDispatch()
		if !ok {
			return
		}
		if err := transport.Send(ctx, rs.name, cmd); err != nil {
			glog.Warningf("ifmirror: replicator %s quiesced: %v", rs.name, err)
			rs.queue.Quiesce()
			return
		}
		rs.queue.Ack()
	}
}
