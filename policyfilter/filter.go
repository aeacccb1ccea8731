// Package policyfilter defines the classification boundary the route
// table graph's PolicyConnectedTable calls into (§4.4): given a route,
// decide which policy tags apply to it. The actual policy language and
// its evaluation engine live outside this repository; this package only
// names the contract.
package policyfilter

import "net/netip"

// RouteView is the subset of a route's fields a filter needs to reach a
// classification decision, kept independent of the rib package's
// internal RouteEntry representation so this boundary doesn't import it.
type RouteView struct {
	Net            netip.Prefix
	NextHop        netip.Addr
	ProtocolOrigin string
	AdminDistance  uint8
	Metric         uint32
}

// Filter classifies routes into policy tags.
type Filter interface {
	// Classify returns the set of tags that should be attached to r.
	// An empty result clears every tag the route previously carried.
	Classify(r RouteView) []uint32
}

// NopFilter attaches no tags to any route; it's the zero-configuration
// default and a convenient test double.
type NopFilter struct{}

func (NopFilter) Classify(RouteView) []uint32 { return nil }
