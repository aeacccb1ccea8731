package ifmirror

import "testing"

type recordingHintObserver struct {
	treeCompletes int
	updates       int
	lastOld       *Tree
	lastNew       *Tree
}

func (o *recordingHintObserver) OnTreeComplete(tree *Tree) { o.treeCompletes++ }
func (o *recordingHintObserver) OnUpdatesMade(old, new *Tree) {
	o.updates++
	o.lastOld, o.lastNew = old, new
}

func TestMirrorTreeIsEmptyOutsideRunning(t *testing.T) {
	m := NewMirror("m1")
	if len(m.Tree().Interfaces) != 0 {
		t.Fatalf("expected an empty tree in Ready state")
	}

	m.NotifyTransportReady()
	if m.State() != Starting {
		t.Fatalf("expected Starting, got %v", m.State())
	}
	m.Receive(AddInterface("eth0"))
	if len(m.Tree().Interfaces) != 0 {
		t.Fatalf("expected the tree to stay hidden while Starting, even with buffered mutations")
	}
}

func TestMirrorBecomesRunningOnTreeComplete(t *testing.T) {
	m := NewMirror("m1")
	m.NotifyTransportReady()
	m.Receive(AddInterface("eth0"))
	m.Receive(treeCompleteCmd())

	if m.State() != Running {
		t.Fatalf("expected Running after TreeComplete, got %v", m.State())
	}
	if _, ok := m.Tree().Interfaces["eth0"]; !ok {
		t.Fatalf("expected eth0 to be visible once Running")
	}
}

func TestMirrorFiresTreeCompleteHintToObservers(t *testing.T) {
	m := NewMirror("m1")
	obs := &recordingHintObserver{}
	m.AddObserver(obs)

	m.NotifyTransportReady()
	m.Receive(AddInterface("eth0"))
	m.Receive(treeCompleteCmd())

	if obs.treeCompletes != 1 {
		t.Fatalf("expected exactly 1 TreeComplete hint, got %d", obs.treeCompletes)
	}
}

func TestMirrorFiresUpdatesMadeHintWithOldAndNewSnapshots(t *testing.T) {
	m := NewMirror("m1")
	obs := &recordingHintObserver{}
	m.AddObserver(obs)

	m.NotifyTransportReady()
	m.Receive(treeCompleteCmd())

	m.Receive(AddInterface("eth1"))
	m.Receive(updatesMadeCmd())

	if obs.updates != 1 {
		t.Fatalf("expected exactly 1 UpdatesMade hint, got %d", obs.updates)
	}
	if _, ok := obs.lastOld.Interfaces["eth1"]; ok {
		t.Fatalf("expected the old snapshot to predate the mutation")
	}
	if _, ok := obs.lastNew.Interfaces["eth1"]; !ok {
		t.Fatalf("expected the new snapshot to include the mutation")
	}
}

func TestMirrorDisconnectResetsTreeAndReturnsToStarting(t *testing.T) {
	m := NewMirror("m1")
	m.NotifyTransportReady()
	m.Receive(AddInterface("eth0"))
	m.Receive(treeCompleteCmd())

	m.NotifyDisconnect()
	if m.State() != Starting {
		t.Fatalf("expected Starting after disconnect, got %v", m.State())
	}
	m.Receive(treeCompleteCmd())
	if _, ok := m.Tree().Interfaces["eth0"]; ok {
		t.Fatalf("expected the tree to have been cleared on disconnect")
	}
}

func TestMirrorNotifyDisconnectDropsRapidRepeats(t *testing.T) {
	m := NewMirror("m1")
	m.NotifyTransportReady()
	m.Receive(treeCompleteCmd())
	if m.State() != Running {
		t.Fatalf("setup: expected Running, got %v", m.State())
	}

	m.NotifyDisconnect()
	if m.State() != Starting {
		t.Fatalf("expected the first disconnect to fire, got %v", m.State())
	}

	// A second disconnect immediately after should be rate-limited away:
	// first complete the tree (an event handled only in Starting) to bring
	// the machine back to Running, so a second entry into Starting would
	// be visible.
	m.machine.Fire(EvTreeComplete)
	if m.State() != Running {
		t.Fatalf("expected the machine to have advanced to Running via the one real disconnect, got %v", m.State())
	}

	m.NotifyDisconnect()
	if m.State() != Running {
		t.Fatalf("expected the rapid second disconnect to be dropped by the reconnect limiter, got %v", m.State())
	}
}

func TestMirrorShutdownLifecycle(t *testing.T) {
	m := NewMirror("m1")
	m.NotifyTransportReady()
	m.Receive(treeCompleteCmd())

	m.NotifyShutdown()
	if m.State() != ShuttingDown {
		t.Fatalf("expected ShuttingDown, got %v", m.State())
	}
	m.machine.Fire(EvShutdownComplete)
	if m.State() != Shutdown {
		t.Fatalf("expected Shutdown, got %v", m.State())
	}
}

func TestMirrorFailureFromStarting(t *testing.T) {
	m := NewMirror("m1")
	m.NotifyTransportReady()
	m.NotifyFailure()
	if m.State() != Failed {
		t.Fatalf("expected Failed, got %v", m.State())
	}
}
