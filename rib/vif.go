package rib

import "net/netip"

// VifAddr is one address bound to a Vif. Invariant (§3): subnet.Contains
// (addr) for non-p2p; for p2p, peer_addr != addr.
type VifAddr struct {
	Addr      netip.Addr
	Subnet    netip.Prefix
	Broadcast netip.Addr // IsValid() false if unset
	Peer      netip.Addr // IsValid() false if unset
}

func (a VifAddr) validate(p2p bool) error {
	if p2p {
		if a.Peer.IsValid() && a.Peer == a.Addr {
			return errf(CommandFailed, "p2p address %s equals its own peer address", a.Addr)
		}
		return nil
	}
	if !a.Subnet.Contains(a.Addr) {
		return errf(CommandFailed, "address %s is not contained in subnet %s", a.Addr, a.Subnet)
	}
	return nil
}

// Vif is a virtual interface: a named logical interface bound to a
// physical one, carrying zero or more addresses (§3).
//
// A Vif is *logically deleted* once IsDeleted is true; storage persists
// until usageCounter drops to zero so routes may keep a reference across
// a brief delete/add cycle (§4.7).
type Vif struct {
	Name        string
	IfName      string
	IsUp        bool
	IsP2P       bool
	IsLoopback  bool
	IsMulticast bool
	IsBroadcast bool
	MTU         uint32

	Addresses map[netip.Addr]*VifAddr

	usageCounter int
	IsDeleted    bool
}

// NewVif creates a vif with no addresses, matching the zero value every
// field not explicitly set would have.
func NewVif(name, ifname string) *Vif {
	return &Vif{
		Name:      name,
		IfName:    ifname,
		Addresses: make(map[netip.Addr]*VifAddr),
	}
}

// Live reports whether the vif is usable as a route's next-hop interface:
// not logically deleted.
func (v *Vif) Live() bool {
	return v != nil && !v.IsDeleted
}

// AddAddress attaches addr to the vif, validating the p2p/subnet
// invariant first.
func (v *Vif) AddAddress(a *VifAddr) error {
	if err := a.validate(v.IsP2P); err != nil {
		return err
	}
	v.Addresses[a.Addr] = a
	return nil
}

// RemoveAddress detaches addr, if present.
func (v *Vif) RemoveAddress(addr netip.Addr) {
	delete(v.Addresses, addr)
}

// HasAddress reports whether addr is one of the vif's own addresses,
// used by invariant 3 ("a connected route's next_hop is a peer next-hop
// whose address is one of vif's own addresses").
func (v *Vif) HasAddress(addr netip.Addr) bool {
	_, ok := v.Addresses[addr]
	return ok
}

func (v *Vif) retain() { v.usageCounter++ }

func (v *Vif) release() int {
	if v.usageCounter > 0 {
		v.usageCounter--
	}
	return v.usageCounter
}
