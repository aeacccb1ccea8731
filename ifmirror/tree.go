// Package ifmirror implements the replicated interface/vif/address tree
// described in §4.6: a single authoritative Producer holds the writable
// tree and fans every mutation out, in order, to any number of attached
// Mirrors over per-mirror FIFOs.
package ifmirror

import "net/netip"

// V4Addr is one IPv4 address bound to a vif.
type V4Addr struct {
	Addr      netip.Addr
	Prefix    netip.Prefix
	Broadcast netip.Addr
	Enabled   bool
}

// V6Addr is one IPv6 address bound to a vif.
type V6Addr struct {
	Addr    netip.Addr
	Prefix  netip.Prefix
	Enabled bool
}

// Vif is a virtual interface nested under an Interface.
type Vif struct {
	Name    string
	Enabled bool
	V4      map[netip.Addr]*V4Addr
	V6      map[netip.Addr]*V6Addr
}

func newVif(name string) *Vif {
	return &Vif{Name: name, V4: make(map[netip.Addr]*V4Addr), V6: make(map[netip.Addr]*V6Addr)}
}

func (v *Vif) clone() *Vif {
	cp := &Vif{Name: v.Name, Enabled: v.Enabled, V4: make(map[netip.Addr]*V4Addr, len(v.V4)), V6: make(map[netip.Addr]*V6Addr, len(v.V6))}
	for k, a := range v.V4 {
		av := *a
		cp.V4[k] = &av
	}
	for k, a := range v.V6 {
		av := *a
		cp.V6[k] = &av
	}
	return cp
}

// Interface is one physical or logical interface, holding zero or more
// vifs.
type Interface struct {
	Name    string
	Enabled bool
	MTU     uint32
	Vifs    map[string]*Vif
}

func newInterface(name string) *Interface {
	return &Interface{Name: name, Vifs: make(map[string]*Vif)}
}

func (i *Interface) clone() *Interface {
	cp := &Interface{Name: i.Name, Enabled: i.Enabled, MTU: i.MTU, Vifs: make(map[string]*Vif, len(i.Vifs))}
	for k, v := range i.Vifs {
		cp.Vifs[k] = v.clone()
	}
	return cp
}

// Tree is the full interface/vif/address snapshot, on either the
// producer or a mirror's side (§4.6).
type Tree struct {
	Interfaces map[string]*Interface
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{Interfaces: make(map[string]*Interface)}
}

// Clone returns a deep copy, used both to hand observers an immutable
// snapshot and to diff old against new on an UpdatesMade hint.
func (t *Tree) Clone() *Tree {
	cp := NewTree()
	for k, i := range t.Interfaces {
		cp.Interfaces[k] = i.clone()
	}
	return cp
}
