package rib

import (
	"net/netip"

	"github.com/golang/glog"
)

// OriginTable is the root of one protocol's route announcements (§4.2):
// it has no parents and stamps every route with the protocol's name and
// admin distance before propagating it downstream. The protocol type is
// kept on the table only; routes do not carry it.
type OriginTable struct {
	tableCore

	ProtocolName  string
	ProtocolType  ProtocolType
	AdminDistance uint8

	routes *trie[*RouteEntry]
}

// NewOriginTable creates an origin table for one protocol instance.
func NewOriginTable(name, protocolName string, ptype ProtocolType, adminDistance uint8) *OriginTable {
	return &OriginTable{
		tableCore:     newTableCore(name, Origin),
		ProtocolName:  protocolName,
		ProtocolType:  ptype,
		AdminDistance: adminDistance,
		routes:        newTrie[*RouteEntry](),
	}
}

func (t *OriginTable) Parents() []TableID { return nil }

func (t *OriginTable) replaceParent(TableID, TableID) {}

func (t *OriginTable) stamp(r *RouteEntry) *RouteEntry {
	cp := r.Clone()
	cp.ProtocolOrigin = ProtocolOrigin{Name: t.ProtocolName, Generation: cp.ProtocolOrigin.Generation}
	cp.AdminDistance = t.AdminDistance
	if t.ProtocolType == IGP && cp.Metric > 0xffff {
		glog.Warningf("origin %s: truncating IGP metric %d to 16 bits for %s", t.name, cp.Metric, cp.Net)
		cp.Metric &= 0xffff
	}
	return cp
}

// AddRoute announces a new route from the owning protocol (§4.2). It is
// rejected if the prefix is already present; use ReplaceRoute to change
// an existing announcement.
func (t *OriginTable) AddRoute(r *RouteEntry) Code {
	if _, ok := t.routes.get(r.Net); ok {
		return CommandFailed
	}
	stamped := t.stamp(r)
	if err := validateRoute(stamped); err != nil {
		return CommandFailed
	}
	t.routes.insert(stamped.Net, stamped)
	if next := t.next(); next != nil {
		return next.AddRoute(stamped)
	}
	return OK
}

// DeleteRoute withdraws a previously announced route.
func (t *OriginTable) DeleteRoute(net netip.Prefix) Code {
	if _, ok := t.routes.get(net); !ok {
		return NoSuchEntity
	}
	t.routes.remove(net)
	if next := t.next(); next != nil {
		return next.DeleteRoute(net)
	}
	return OK
}

// ReplaceRoute swaps the announcement for an existing prefix without a
// transient withdrawal.
func (t *OriginTable) ReplaceRoute(old, new *RouteEntry) Code {
	if _, ok := t.routes.get(old.Net); !ok {
		return NoSuchEntity
	}
	stamped := t.stamp(new)
	if err := validateRoute(stamped); err != nil {
		return CommandFailed
	}
	prev, _ := t.routes.get(old.Net)
	t.routes.insert(stamped.Net, stamped)
	if next := t.next(); next != nil {
		return next.ReplaceRoute(prev, stamped)
	}
	return OK
}

// RoutingProtocolShutdown withdraws every route this protocol instance
// had announced, as if each had received an explicit DeleteRoute (§4.2,
// "a protocol's registration can be revoked wholesale on shutdown").
func (t *OriginTable) RoutingProtocolShutdown() {
	var nets []netip.Prefix
	t.routes.all(func(p netip.Prefix, _ *RouteEntry) { nets = append(nets, p) })
	for _, n := range nets {
		t.DeleteRoute(n)
	}
}

func (t *OriginTable) LookupRoute(addr netip.Addr) (*RouteEntry, bool) {
	r, _, ok := t.routes.lookup(addr)
	return r, ok
}

func (t *OriginTable) LookupRouteRange(addr netip.Addr) RouteRange {
	r, net, _ := t.routes.lookupRange(addr)
	return RouteRange{Matched: r, ValidNet: net}
}

func (t *OriginTable) Flush() {
	if next := t.next(); next != nil {
		next.Flush()
	}
}
