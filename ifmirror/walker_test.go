package ifmirror

import "testing"

func buildSampleTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree()
	AddInterface("eth1").Apply(tree)
	AddInterface("eth0").Apply(tree)
	SetInterfaceEnabled("eth0", true).Apply(tree)
	SetInterfaceMTU("eth0", 1500).Apply(tree)
	AddVif("eth0", "eth0.2").Apply(tree)
	AddVif("eth0", "eth0.1").Apply(tree)
	SetVifEnabled("eth0", "eth0.1", true).Apply(tree)
	AddV4Addr("eth0", "eth0.1", mustAddr(t, "192.0.2.2"), mustPrefix(t, "192.0.2.0/24"), mustAddr(t, "192.0.2.255")).Apply(tree)
	AddV4Addr("eth0", "eth0.1", mustAddr(t, "192.0.2.1"), mustPrefix(t, "192.0.2.0/24"), mustAddr(t, "192.0.2.255")).Apply(tree)
	AddV6Addr("eth0", "eth0.1", mustAddr(t, "2001:db8::1"), mustPrefix(t, "2001:db8::/64")).Apply(tree)
	return tree
}

func TestTreeToCommandsOrdersInterfacesByName(t *testing.T) {
	tree := buildSampleTree(t)
	cmds := TreeToCommands(tree)
	if len(cmds) == 0 {
		t.Fatalf("expected a non-empty command backlog")
	}
	if cmds[0].Entity != EntityIf || cmds[0].IfName != "eth0" {
		t.Fatalf("expected eth0 (sorted before eth1) first, got %+v", cmds[0])
	}
}

func TestTreeToCommandsOrdersAddressesByValue(t *testing.T) {
	tree := buildSampleTree(t)
	cmds := TreeToCommands(tree)

	var v4Addrs []string
	for _, c := range cmds {
		if c.Entity == EntityV4Addr && c.Op == OpAdd {
			v4Addrs = append(v4Addrs, c.Addr.String())
		}
	}
	if len(v4Addrs) != 2 || v4Addrs[0] != "192.0.2.1" || v4Addrs[1] != "192.0.2.2" {
		t.Fatalf("expected v4 addresses in sorted order, got %v", v4Addrs)
	}
}

func TestTreeToCommandsIsDeterministicAcrossCalls(t *testing.T) {
	tree := buildSampleTree(t)
	first := TreeToCommands(tree)
	second := TreeToCommands(tree)
	if len(first) != len(second) {
		t.Fatalf("expected identical command counts, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("command %d differs between calls: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestTreeToCommandsReplayReconstructsTree(t *testing.T) {
	tree := buildSampleTree(t)
	cmds := TreeToCommands(tree)

	replay := NewTree()
	for _, c := range cmds {
		c.Apply(replay)
	}

	if len(replay.Interfaces) != len(tree.Interfaces) {
		t.Fatalf("replayed tree has %d interfaces, want %d", len(replay.Interfaces), len(tree.Interfaces))
	}
	v, ok := replay.Interfaces["eth0"].Vifs["eth0.1"]
	if !ok {
		t.Fatalf("expected eth0.1 to survive replay")
	}
	if len(v.V4) != 2 || len(v.V6) != 1 {
		t.Fatalf("expected addresses to survive replay, got v4=%d v6=%d", len(v.V4), len(v.V6))
	}
}

func TestTreeToCommandsOmitsUnsetAttributes(t *testing.T) {
	tree := NewTree()
	AddInterface("eth2").Apply(tree)
	cmds := TreeToCommands(tree)

	for _, c := range cmds {
		if c.Entity == EntityIf && c.Op == OpSet {
			t.Fatalf("expected no Set command for a disabled, zero-MTU interface, got %+v", c)
		}
	}
}
