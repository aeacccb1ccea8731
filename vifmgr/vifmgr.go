// Package vifmgr bridges the replicated interface mirror (ifmirror) to
// one process's RIB instances: it is the IfMgrHintObserver of §4.7,
// translating tree diffs into vif/address mutations and synthesizing
// connected routes.
package vifmgr

import (
	"net/netip"

	"github.com/golang/glog"
	"github.com/netrib/rib/ifmirror"
	"github.com/netrib/rib/rib"
)

// connectedProtocol names the origin table every synthesized route is
// installed into, per §4.7 ("synthesizes the corresponding 'connected'
// routes into its connected-origin table").
const connectedProtocol = "connected"

// Target is one RIB instance the manager keeps in sync with the mirror.
type Target struct {
	RIB *rib.RIB
	Key rib.InstanceKey
}

// Manager is the vif manager: an ifmirror.HintObserver that diffs
// successive tree snapshots and replays the difference onto every
// registered target RIB instance.
type Manager struct {
	targets []Target
}

// New creates a vif manager driving the given RIB instances (typically
// v4-unicast, v4-multicast, v6-unicast, v6-multicast, per §4.7).
func New(targets ...Target) *Manager {
	for _, t := range targets {
		t.RIB.AddIGPTable(t.Key, connectedProtocol, 0)
	}
	return &Manager{targets: targets}
}

// OnTreeComplete treats the initial snapshot as a diff from empty.
func (m *Manager) OnTreeComplete(tree *ifmirror.Tree) {
	m.OnUpdatesMade(ifmirror.NewTree(), tree)
}

// OnUpdatesMade diffs old against new and issues the corresponding
// vif/address operations to every target RIB (§4.7).
func (m *Manager) OnUpdatesMade(old, new *ifmirror.Tree) {
	for _, t := range m.targets {
		m.sync(t, old, new)
	}
}

func (m *Manager) sync(t Target, old, new *ifmirror.Tree) {
	for ifName, newIf := range new.Interfaces {
		oldIf := old.Interfaces[ifName]
		for vifName, newVif := range newIf.Vifs {
			var oldVif *ifmirror.Vif
			if oldIf != nil {
				oldVif = oldIf.Vifs[vifName]
			}
			m.syncVif(t, ifName, vifName, oldVif, newVif)
		}
	}
	for ifName, oldIf := range old.Interfaces {
		newIf := new.Interfaces[ifName]
		for vifName, oldVif := range oldIf.Vifs {
			if newIf != nil {
				if _, stillThere := newIf.Vifs[vifName]; stillThere {
					continue
				}
			}
			m.deleteVif(t, vifName, oldVif)
		}
	}
}

func (m *Manager) syncVif(t Target, ifName, vifName string, old, new *ifmirror.Vif) {
	if old == nil {
		if code := t.RIB.NewVif(t.Key, vifName, ifName); code != rib.OK {
			glog.Warningf("vifmgr: new_vif %s on %s: %s", vifName, t.Key, code)
			return
		}
	}
	v, ok := t.RIB.Vif(t.Key, vifName)
	if !ok {
		return
	}
	if old == nil || old.Enabled != new.Enabled {
		v.IsUp = new.Enabled
	}

	for addr, a := range new.V4 {
		if old == nil || old.V4[addr] == nil {
			m.addAddress(t, vifName, v, a.Addr, a.Prefix, a.Broadcast)
		}
	}
	for addr, a := range new.V6 {
		if old == nil || old.V6[addr] == nil {
			m.addAddress(t, vifName, v, a.Addr, a.Prefix, netip.Addr{})
		}
	}
	if old != nil {
		for addr := range old.V4 {
			if _, stillThere := new.V4[addr]; !stillThere {
				m.removeAddress(t, vifName, v, addr)
			}
		}
		for addr := range old.V6 {
			if _, stillThere := new.V6[addr]; !stillThere {
				m.removeAddress(t, vifName, v, addr)
			}
		}
	}
}

func (m *Manager) addAddress(t Target, vifName string, v *rib.Vif, addr netip.Addr, subnet netip.Prefix, bcast netip.Addr) {
	va := &rib.VifAddr{Addr: addr, Subnet: subnet, Broadcast: bcast}
	if code := t.RIB.AddVifAddr(t.Key, vifName, va); code != rib.OK {
		glog.Warningf("vifmgr: add_vif_address %s/%s on %s: %s", vifName, addr, t.Key, code)
		return
	}
	m.synthesizeConnected(t, v, addr, subnet)
}

func (m *Manager) removeAddress(t Target, vifName string, v *rib.Vif, addr netip.Addr) {
	subnet := netip.Prefix{}
	if a, ok := v.Addresses[addr]; ok {
		subnet = a.Subnet
	}
	v.RemoveAddress(addr)
	if subnet.IsValid() {
		t.RIB.DeleteRoute(t.Key, connectedProtocol, subnet.Masked())
	}
}

// synthesizeConnected installs the directly-connected route §4.7
// describes for a newly bound vif address.
func (m *Manager) synthesizeConnected(t Target, v *rib.Vif, addr netip.Addr, subnet netip.Prefix) {
	nh := &rib.NextHop{Kind: rib.NextHopPeer, Addr: addr}
	route := &rib.RouteEntry{
		Net:            subnet,
		NextHop:        nh,
		Vif:            v,
		ProtocolOrigin: rib.ProtocolOrigin{Name: connectedProtocol},
	}
	if code := t.RIB.AddRoute(t.Key, connectedProtocol, route); code != rib.OK {
		glog.Warningf("vifmgr: synthesize connected route %s on %s: %s", subnet, t.Key, code)
	}
}

func (m *Manager) deleteVif(t Target, vifName string, old *ifmirror.Vif) {
	v, ok := t.RIB.Vif(t.Key, vifName)
	if ok {
		for addr := range old.V4 {
			m.removeAddress(t, vifName, v, addr)
		}
		for addr := range old.V6 {
			m.removeAddress(t, vifName, v, addr)
		}
	}
	if code := t.RIB.DeleteVif(t.Key, vifName); code != rib.OK {
		glog.Warningf("vifmgr: delete_vif %s on %s: %s", vifName, t.Key, code)
	}
}
