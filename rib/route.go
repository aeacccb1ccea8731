package rib

import (
	"net/netip"

	"go.uber.org/multierr"
)

// NextHopKind classifies how a route's next hop resolves (§3).
type NextHopKind int

const (
	// NextHopPeer resolves to a directly-connected neighbor on some vif.
	NextHopPeer NextHopKind = iota
	// NextHopExternal is not directly connected; it must be re-resolved
	// via another route (ExtIntTable recursion, §4.3).
	NextHopExternal
	// NextHopDiscard drops matching packets silently.
	NextHopDiscard
	// NextHopUnreachable drops matching packets and signals unreachability.
	NextHopUnreachable
)

func (k NextHopKind) String() string {
	switch k {
	case NextHopPeer:
		return "peer"
	case NextHopExternal:
		return "external"
	case NextHopDiscard:
		return "discard"
	case NextHopUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// NextHop is a route's next hop: a peer or external address, or a
// discard/unreachable sentinel. Peer and external next hops are interned
// by NextHopRegistry so identity comparisons are cheap and subscribers
// can share state (§3).
type NextHop struct {
	Kind NextHopKind
	Addr netip.Addr // zero value for Discard/Unreachable
}

// IsConnected reports whether this next hop requires the resolving vif's
// address to equal Addr, the third §3 invariant for connected routes.
func (n NextHop) IsConnected() bool { return n.Kind == NextHopPeer }

// NextHopRegistry interns peer and external next hops per address family
// instance, per §3 ("NextHop registry").
type NextHopRegistry struct {
	peer     map[netip.Addr]*NextHop
	external map[netip.Addr]*NextHop
}

// NewNextHopRegistry creates an empty registry.
func NewNextHopRegistry() *NextHopRegistry {
	return &NextHopRegistry{
		peer:     make(map[netip.Addr]*NextHop),
		external: make(map[netip.Addr]*NextHop),
	}
}

// InternPeer returns the interned peer next hop for addr, creating it if
// this is the first reference.
func (r *NextHopRegistry) InternPeer(addr netip.Addr) *NextHop {
	if nh, ok := r.peer[addr]; ok {
		return nh
	}
	nh := &NextHop{Kind: NextHopPeer, Addr: addr}
	r.peer[addr] = nh
	return nh
}

// InternExternal returns the interned external next hop for addr,
// creating it if this is the first reference.
func (r *NextHopRegistry) InternExternal(addr netip.Addr) *NextHop {
	if nh, ok := r.external[addr]; ok {
		return nh
	}
	nh := &NextHop{Kind: NextHopExternal, Addr: addr}
	r.external[addr] = nh
	return nh
}

// ProtocolOrigin names the protocol instance that announced a route, plus
// a generation id bumped each time the protocol re-registers so stale
// announcements can be identified (§3).
type ProtocolOrigin struct {
	Name       string
	Generation uint64
}

// ProtocolType classifies an origin table as interior or exterior
// gateway protocol (§4.3). It is held on the OriginTable and is not
// recorded in the routes the table emits.
type ProtocolType int

const (
	IGP ProtocolType = iota
	EGP
)

// RouteEntry is one route, keyed by Net (§3).
type RouteEntry struct {
	Net            netip.Prefix
	NextHop        *NextHop
	Vif            *Vif // optional; mandatory iff NextHop is peer or connected
	ProtocolOrigin ProtocolOrigin
	AdminDistance  uint8
	Metric         uint32
	PolicyTags     map[uint32]struct{}
}

// Clone returns a deep-enough copy safe to mutate (PolicyTags) without
// aliasing the original entry. Vif and NextHop are shared pointers by
// design (interned / usage-counted).
func (r *RouteEntry) Clone() *RouteEntry {
	cp := *r
	cp.PolicyTags = make(map[uint32]struct{}, len(r.PolicyTags))
	for t := range r.PolicyTags {
		cp.PolicyTags[t] = struct{}{}
	}
	return &cp
}

// HasTag reports whether tag is attached to the route.
func (r *RouteEntry) HasTag(tag uint32) bool {
	_, ok := r.PolicyTags[tag]
	return ok
}

// SameAnnouncement reports whether two winning candidates are
// indistinguishable from a downstream subscriber's point of view: same
// next hop, metric, admin distance and protocol origin (§4.5's Changed
// notification criterion).
func (r *RouteEntry) SameAnnouncement(o *RouteEntry) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.NextHop == o.NextHop &&
		r.Metric == o.Metric &&
		r.AdminDistance == o.AdminDistance &&
		r.ProtocolOrigin == o.ProtocolOrigin
}

// validateRoute checks every §3 invariant on r, aggregating every violation
// with multierr rather than stopping at the first — there is no reason
// to force the caller through three separate admission round-trips to
// discover three separate mistakes.
func validateRoute(r *RouteEntry) error {
	var err error

	isConnected := r.ProtocolOrigin.Name == "connected"
	if (r.AdminDistance == 0) != isConnected {
		err = multierr.Append(err, errf(CommandFailed,
			"admin_distance==0 iff protocol_origin==connected (got distance=%d origin=%s)",
			r.AdminDistance, r.ProtocolOrigin.Name))
	}

	if r.NextHop != nil && (r.NextHop.Kind == NextHopPeer || isConnected) {
		if r.Vif == nil {
			err = multierr.Append(err, errf(CommandFailed,
				"vif is required when next_hop is a peer or the route is connected"))
		}
	}

	if r.Vif != nil {
		if !r.Vif.Live() {
			err = multierr.Append(err, errf(CommandFailed, "vif %s is not live", r.Vif.Name))
		} else if r.NextHop != nil && r.NextHop.Kind == NextHopPeer {
			matches := false
			for _, a := range r.Vif.Addresses {
				if a.Addr == r.NextHop.Addr {
					matches = true
					break
				}
				if a.Subnet.Contains(r.NextHop.Addr) {
					matches = true
					break
				}
				if r.Vif.IsP2P && a.Peer == r.NextHop.Addr {
					matches = true
					break
				}
			}
			if !matches {
				err = multierr.Append(err, errf(CommandFailed,
					"next hop %s does not match vif %s's subnet or p2p peer", r.NextHop.Addr, r.Vif.Name))
			}
		}
	}

	if isConnected {
		if r.NextHop == nil || r.NextHop.Kind != NextHopPeer {
			err = multierr.Append(err, errf(CommandFailed, "connected route must have a peer next hop"))
		} else if r.Vif == nil || !r.Vif.HasAddress(r.NextHop.Addr) {
			err = multierr.Append(err, errf(CommandFailed,
				"connected route's next hop must be one of its vif's own addresses"))
		}
	}

	return err
}
