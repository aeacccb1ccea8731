// Package fibsink names the forwarding-plane export boundary: the
// opaque terminal a RIB instance's Redist:all tap can be wired into via
// rib.RIB.SetFinalTable so winning routes reach a kernel or hardware FIB.
// No concrete sink is implemented here; only the contract.
package fibsink

import "net/netip"

// Update is the minimal forwarding-plane programming instruction a Sink
// needs: install or withdraw a prefix's next hop.
type Update struct {
	Net       netip.Prefix
	NextHop   netip.Addr
	Vif       string
	Withdrawn bool
}

// Sink receives a stream of forwarding-plane updates.
type Sink interface {
	Program(u Update) error
}
