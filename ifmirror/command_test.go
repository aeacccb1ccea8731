package ifmirror

import (
	"net/netip"
	"testing"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q): %v", s, err)
	}
	return p
}

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", s, err)
	}
	return a
}

func TestCommandApplyAddInterfaceIsIdempotent(t *testing.T) {
	tree := NewTree()
	cmd := AddInterface("eth0")
	if !cmd.Apply(tree) {
		t.Fatalf("first apply should report a change")
	}
	if cmd.Apply(tree) {
		t.Fatalf("re-applying Add on an existing interface should report no change")
	}
}

func TestCommandApplyVifRequiresParentInterface(t *testing.T) {
	tree := NewTree()
	cmd := AddVif("eth0", "eth0.1")
	if cmd.Apply(tree) {
		t.Fatalf("adding a vif under a nonexistent interface should report no change")
	}
}

func TestCommandApplyV4AddressLifecycle(t *testing.T) {
	tree := NewTree()
	AddInterface("eth0").Apply(tree)
	AddVif("eth0", "eth0.1").Apply(tree)

	addCmd := AddV4Addr("eth0", "eth0.1", mustAddr(t, "192.0.2.1"), mustPrefix(t, "192.0.2.0/24"), mustAddr(t, "192.0.2.255"))
	if !addCmd.Apply(tree) {
		t.Fatalf("expected the address add to change the tree")
	}
	v := tree.Interfaces["eth0"].Vifs["eth0.1"]
	if len(v.V4) != 1 {
		t.Fatalf("expected 1 v4 address, got %d", len(v.V4))
	}

	removeCmd := RemoveV4Addr("eth0", "eth0.1", mustAddr(t, "192.0.2.1"))
	if !removeCmd.Apply(tree) {
		t.Fatalf("expected the address remove to change the tree")
	}
	if len(v.V4) != 0 {
		t.Fatalf("expected the address to be gone")
	}
}

func TestCommandApplySetInterfaceEnabled(t *testing.T) {
	tree := NewTree()
	AddInterface("eth0").Apply(tree)
	SetInterfaceEnabled("eth0", true).Apply(tree)
	if !tree.Interfaces["eth0"].Enabled {
		t.Fatalf("expected the interface to be marked enabled")
	}
}

func TestCommandIsHint(t *testing.T) {
	if !treeCompleteCmd().IsHint() {
		t.Fatalf("treeCompleteCmd should report IsHint")
	}
	if AddInterface("eth0").IsHint() {
		t.Fatalf("a mutation command should not report IsHint")
	}
}
