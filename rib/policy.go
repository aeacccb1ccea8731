package rib

import (
	"net/netip"

	"github.com/netrib/rib/policyfilter"
)

// PolicyConnectedTable is the point in the graph where an external
// policy filter gets to classify and tag every route before it
// continues downstream (§4.4). Tagging never changes a route's
// forwarding semantics by itself — PolicyRedistTable is what turns tags
// into redistribution decisions.
type PolicyConnectedTable struct {
	tableCore

	parent TableID
	filter policyfilter.Filter

	current *trie[*RouteEntry]
}

// NewPolicyConnectedTable creates a tagging point using filter to
// classify every route that passes through.
func NewPolicyConnectedTable(name string, filter policyfilter.Filter) *PolicyConnectedTable {
	if filter == nil {
		filter = policyfilter.NopFilter{}
	}
	return &PolicyConnectedTable{
		tableCore: newTableCore(name, PolicyConnected),
		filter:    filter,
		current:   newTrie[*RouteEntry](),
	}
}

func (t *PolicyConnectedTable) SetParent(id TableID) { t.parent = id }

func (t *PolicyConnectedTable) Parents() []TableID { return []TableID{t.parent} }

func (t *PolicyConnectedTable) replaceParent(oldID, newID TableID) {
	if t.parent == oldID {
		t.parent = newID
	}
}

func (t *PolicyConnectedTable) tag(r *RouteEntry) *RouteEntry {
	view := policyfilter.RouteView{
		Net:            r.Net,
		ProtocolOrigin: r.ProtocolOrigin.Name,
		AdminDistance:  r.AdminDistance,
		Metric:         r.Metric,
	}
	if r.NextHop != nil {
		view.NextHop = r.NextHop.Addr
	}
	tags := t.filter.Classify(view)
	cp := r.Clone()
	cp.PolicyTags = make(map[uint32]struct{}, len(tags))
	for _, tg := range tags {
		cp.PolicyTags[tg] = struct{}{}
	}
	return cp
}

func (t *PolicyConnectedTable) AddRoute(r *RouteEntry) Code {
	tagged := t.tag(r)
	t.current.insert(tagged.Net, tagged)
	if next := t.next(); next != nil {
		return next.AddRoute(tagged)
	}
	return OK
}

func (t *PolicyConnectedTable) DeleteRoute(net netip.Prefix) Code {
	t.current.remove(net)
	if next := t.next(); next != nil {
		return next.DeleteRoute(net)
	}
	return OK
}

func (t *PolicyConnectedTable) ReplaceRoute(old, new *RouteEntry) Code {
	prev, _ := t.current.get(old.Net)
	tagged := t.tag(new)
	t.current.insert(tagged.Net, tagged)
	if next := t.next(); next != nil {
		return next.ReplaceRoute(prev, tagged)
	}
	return OK
}

// PushRoutes re-runs the filter over every route currently held and
// propagates a Replace for each whose tag set changed, without waiting
// for the parent to re-announce anything. Call this after reloading
// filter configuration.
func (t *PolicyConnectedTable) PushRoutes() {
	var prior []*RouteEntry
	t.current.all(func(_ netip.Prefix, r *RouteEntry) { prior = append(prior, r) })
	for _, old := range prior {
		tagged := t.tag(old)
		same := len(tagged.PolicyTags) == len(old.PolicyTags)
		for tg := range tagged.PolicyTags {
			if !old.HasTag(tg) {
				same = false
				break
			}
		}
		if same {
			continue
		}
		t.current.insert(tagged.Net, tagged)
		if next := t.next(); next != nil {
			next.ReplaceRoute(old, tagged)
		}
	}
}

func (t *PolicyConnectedTable) LookupRoute(addr netip.Addr) (*RouteEntry, bool) {
	r, _, ok := t.current.lookup(addr)
	return r, ok
}

func (t *PolicyConnectedTable) LookupRouteRange(addr netip.Addr) RouteRange {
	r, net, _ := t.current.lookupRange(addr)
	return RouteRange{Matched: r, ValidNet: net}
}

func (t *PolicyConnectedTable) Flush() {
	if next := t.next(); next != nil {
		next.Flush()
	}
}

// RedistNotifier receives side-effect notifications from
// PolicyRedistTable when a tagged route's protocol-interest set says a
// protocol should learn about it. It does not affect the table graph's
// forwarded stream.
type RedistNotifier interface {
	NotifyRedist(protocol string, r *RouteEntry, withdrawn bool)
}

// PolicyRedistTable maps policy tags to the set of protocols interested
// in redistributing routes carrying them (§4.4). It passes every route
// through unchanged; tag membership only drives NotifyRedist
// side-effects toward a RedistNotifier (typically the protocol manager
// that owns the corresponding OriginTable instances).
type PolicyRedistTable struct {
	tableCore

	parent   TableID
	notifier RedistNotifier

	tagProtocols map[uint32]map[string]struct{}
	current      *trie[*RouteEntry]
}

// NewPolicyRedistTable creates a redistribution-decision tap.
func NewPolicyRedistTable(name string, notifier RedistNotifier) *PolicyRedistTable {
	return &PolicyRedistTable{
		tableCore:    newTableCore(name, PolicyRedist),
		notifier:     notifier,
		tagProtocols: make(map[uint32]map[string]struct{}),
		current:      newTrie[*RouteEntry](),
	}
}

func (t *PolicyRedistTable) SetParent(id TableID) { t.parent = id }

func (t *PolicyRedistTable) Parents() []TableID { return []TableID{t.parent} }

func (t *PolicyRedistTable) replaceParent(oldID, newID TableID) {
	if t.parent == oldID {
		t.parent = newID
	}
}

// InsertPolicyRedistTags records that protocol should be notified of
// every route carrying tag.
func (t *PolicyRedistTable) InsertPolicyRedistTags(tag uint32, protocol string) {
	set, ok := t.tagProtocols[tag]
	if !ok {
		set = make(map[string]struct{})
		t.tagProtocols[tag] = set
	}
	set[protocol] = struct{}{}
}

// ResetPolicyRedistTags clears every protocol interest registered for
// tag.
func (t *PolicyRedistTable) ResetPolicyRedistTags(tag uint32) {
	delete(t.tagProtocols, tag)
}

func (t *PolicyRedistTable) interestedProtocols(r *RouteEntry) map[string]struct{} {
	out := make(map[string]struct{})
	for tag := range r.PolicyTags {
		for p := range t.tagProtocols[tag] {
			out[p] = struct{}{}
		}
	}
	return out
}

func (t *PolicyRedistTable) notify(r *RouteEntry, withdrawn bool) {
	if t.notifier == nil {
		return
	}
	for p := range t.interestedProtocols(r) {
		t.notifier.NotifyRedist(p, r, withdrawn)
	}
}

func (t *PolicyRedistTable) AddRoute(r *RouteEntry) Code {
	t.current.insert(r.Net, r)
	t.notify(r, false)
	if next := t.next(); next != nil {
		return next.AddRoute(r)
	}
	return OK
}

func (t *PolicyRedistTable) DeleteRoute(net netip.Prefix) Code {
	if r, ok := t.current.get(net); ok {
		t.notify(r, true)
	}
	t.current.remove(net)
	if next := t.next(); next != nil {
		return next.DeleteRoute(net)
	}
	return OK
}

func (t *PolicyRedistTable) ReplaceRoute(old, new *RouteEntry) Code {
	t.current.insert(new.Net, new)
	t.notify(new, false)
	if next := t.next(); next != nil {
		return next.ReplaceRoute(old, new)
	}
	return OK
}

func (t *PolicyRedistTable) LookupRoute(addr netip.Addr) (*RouteEntry, bool) {
	r, _, ok := t.current.lookup(addr)
	return r, ok
}

func (t *PolicyRedistTable) LookupRouteRange(addr netip.Addr) RouteRange {
	r, net, _ := t.current.lookupRange(addr)
	return RouteRange{Matched: r, ValidNet: net}
}

func (t *PolicyRedistTable) Flush() {
	if next := t.next(); next != nil {
		next.Flush()
	}
}
