package rib

import (
	"net/netip"

	"github.com/netrib/rib/fibsink"
)

// SinkTable adapts a fibsink.Sink into a terminal Table, suitable for
// SetFinalTable: it forwards every winning route to the forwarding
// plane and has no downstream of its own.
type SinkTable struct {
	tableCore

	parent TableID
	sink   fibsink.Sink
}

// NewSinkTable creates a terminal table that programs sink with every
// route it receives.
func NewSinkTable(name string, sink fibsink.Sink) *SinkTable {
	return &SinkTable{tableCore: newTableCore(name, Export), sink: sink}
}

func (t *SinkTable) SetParent(id TableID) { t.parent = id }

func (t *SinkTable) Parents() []TableID { return []TableID{t.parent} }

func (t *SinkTable) replaceParent(oldID, newID TableID) {
	if t.parent == oldID {
		t.parent = newID
	}
}

func (t *SinkTable) update(r *RouteEntry, withdrawn bool) Code {
	vifName := ""
	if r.Vif != nil {
		vifName = r.Vif.Name
	}
	var nh netip.Addr
	if r.NextHop != nil {
		nh = r.NextHop.Addr
	}
	if err := t.sink.Program(fibsink.Update{Net: r.Net, NextHop: nh, Vif: vifName, Withdrawn: withdrawn}); err != nil {
		return CommandFailed
	}
	return OK
}

func (t *SinkTable) AddRoute(r *RouteEntry) Code { return t.update(r, false) }

func (t *SinkTable) DeleteRoute(net netip.Prefix) Code {
	return t.update(&RouteEntry{Net: net}, true)
}

func (t *SinkTable) ReplaceRoute(_, new *RouteEntry) Code { return t.update(new, false) }

func (t *SinkTable) LookupRoute(netip.Addr) (*RouteEntry, bool) { return nil, false }

func (t *SinkTable) LookupRouteRange(addr netip.Addr) RouteRange {
	return RouteRange{ValidNet: netip.PrefixFrom(addr, addr.BitLen())}
}

func (t *SinkTable) Flush() {}
