package rib

import "net/netip"

// recordingTable is a minimal Table used across tests to observe what a
// table under test propagates downstream.
type recordingTable struct {
	tableCore

	added    []*RouteEntry
	deleted  []netip.Prefix
	replaced [][2]*RouteEntry
	flushes  int
}

func newRecordingTable(name string) *recordingTable {
	return &recordingTable{tableCore: newTableCore(name, Export)}
}

func (r *recordingTable) Parents() []TableID { return nil }

func (r *recordingTable) AddRoute(route *RouteEntry) Code {
	r.added = append(r.added, route)
	return OK
}

func (r *recordingTable) DeleteRoute(net netip.Prefix) Code {
	r.deleted = append(r.deleted, net)
	return OK
}

func (r *recordingTable) ReplaceRoute(old, new *RouteEntry) Code {
	r.replaced = append(r.replaced, [2]*RouteEntry{old, new})
	return OK
}

func (r *recordingTable) LookupRoute(netip.Addr) (*RouteEntry, bool) { return nil, false }

func (r *recordingTable) LookupRouteRange(addr netip.Addr) RouteRange {
	return RouteRange{ValidNet: netip.PrefixFrom(addr, addr.BitLen())}
}

func (r *recordingTable) Flush() { r.flushes++ }
