package ifmirror

import (
	"net/netip"
	"sort"
)

// TreeToCommands serializes the entire tree into the canonical command
// order (§4.6): If → attrs → vifs → vif-attrs → v4-addrs → v6-addrs.
// Iteration order within each level is sorted by name/address so two
// calls against an unchanged tree always produce byte-identical output,
// which matters for tests asserting a new mirror's backlog.
func TreeToCommands(tree *Tree) []Command {
	var out []Command
	for _, ifName := range sortedKeys(tree.Interfaces) {
		i := tree.Interfaces[ifName]
		out = append(out, AddInterface(ifName))
		if i.Enabled {
			out = append(out, SetInterfaceEnabled(ifName, true))
		}
		if i.MTU != 0 {
			out = append(out, SetInterfaceMTU(ifName, i.MTU))
		}
		for _, vifName := range sortedKeys(i.Vifs) {
			v := i.Vifs[vifName]
			out = append(out, AddVif(ifName, vifName))
			if v.Enabled {
				out = append(out, SetVifEnabled(ifName, vifName, true))
			}
			for _, addr := range sortedAddrKeys(v.V4) {
				a := v.V4[addr]
				out = append(out, AddV4Addr(ifName, vifName, a.Addr, a.Prefix, a.Broadcast))
			}
			for _, addr := range sortedAddrKeys(v.V6) {
				a := v.V6[addr]
				out = append(out, AddV6Addr(ifName, vifName, a.Addr, a.Prefix))
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedAddrKeys[V any](m map[netip.Addr]V) []netip.Addr {
	keys := make([]netip.Addr, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
