// Package rib implements a control-plane routing information base: a
// graph of route tables that incrementally propagate announcements from
// routing protocols down to redistribution subscribers, merging and
// resolving next hops along the way.
package rib

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/golang/glog"
	"github.com/netrib/rib/config"
	"github.com/netrib/rib/policyfilter"
)

// InstanceKey identifies one independent route-table graph. A RIB
// process commonly runs one instance per (table-name, target-class,
// target-instance) triple — e.g. separate graphs for "ipv4 unicast" and
// "ipv6 unicast" — rather than a single global table (§4, §6).
type InstanceKey struct {
	TableName      string
	TargetClass    string
	TargetInstance string
}

func (k InstanceKey) String() string {
	return k.TableName + " " + k.TargetClass + " " + k.TargetInstance
}

// ErrFinalTableExists is returned by SetFinalTable when an instance
// already has a custom terminal table attached (Open Question 2,
// SPEC_FULL.md §7): "final == nil" is the documented precondition for
// attaching one, so a second attempt is rejected rather than silently
// replacing the first subscriber's tail.
var ErrFinalTableExists = errf(CommandFailed, "instance already has a final table attached")

// Instance is one InstanceKey's route-table graph: a set of per-protocol
// origin tables feeding two merge folds (IGP and EGP), converging on an
// ExtIntTable, then a fixed PolicyConnected -> Register -> PolicyRedist
// -> Redist:all spine.
type Instance struct {
	mu sync.Mutex

	key       InstanceKey
	arena     *arena
	nextHops  *NextHopRegistry
	vifs      map[string]*Vif
	origins   map[string]*OriginTable
	distances map[string]uint8

	igpTables []*OriginTable
	egpTables []*OriginTable

	extint          *ExtIntTable
	policyConnected *PolicyConnectedTable
	policyRedist    *PolicyRedistTable
	register        *RegisterTable
	redistAll       *RedistTable
	protoRedists    map[string]*RedistTable

	final Table
}

func newInstance(key InstanceKey, notifier RedistNotifier, filter policyfilter.Filter, dispatcher EventDispatcher) *Instance {
	a := newArena()

	extint := NewExtIntTable("ExtInt")
	a.register(extint)
	policyConnected := NewPolicyConnectedTable("PolicyConnected", filter)
	a.register(policyConnected)
	policyRedist := NewPolicyRedistTable("PolicyRedist", notifier)
	a.register(policyRedist)
	register := NewRegisterTable("Register", dispatcher)
	a.register(register)
	redistAll := NewRedistTable("Redist:all")
	a.register(redistAll)

	extint.SetNext(policyConnected)
	policyConnected.SetParent(extint.ID())
	policyConnected.SetNext(register)
	register.SetParent(policyConnected.ID())
	register.SetNext(policyRedist)
	policyRedist.SetParent(register.ID())
	policyRedist.SetNext(redistAll)
	redistAll.SetParent(policyRedist.ID())
	redistAll.SetEnabled(true)

	return &Instance{
		key:             key,
		arena:           a,
		nextHops:        NewNextHopRegistry(),
		vifs:            make(map[string]*Vif),
		origins:         make(map[string]*OriginTable),
		distances:       make(map[string]uint8),
		extint:          extint,
		policyConnected: policyConnected,
		policyRedist:    policyRedist,
		register:        register,
		redistAll:       redistAll,
		protoRedists:    make(map[string]*RedistTable),
	}
}

// foldMerge folds a list of origin tables into a single binary-merge
// tree, returning its head. Re-running this after adding or removing a
// protocol simply rebuilds the fold; the old intermediate MergedTable
// nodes are abandoned in the arena, which is cheap at the scale a
// handful of routing protocol instances represents.
func (inst *Instance) foldMerge(tables []*OriginTable, namePrefix string) Table {
	if len(tables) == 0 {
		return nil
	}
	var cur Table = tables[0]
	for i := 1; i < len(tables); i++ {
		m := NewMergedTable(fmt.Sprintf("%s-%d", namePrefix, i))
		inst.arena.register(m)
		cur.SetNext(m.LeftInput())
		tables[i].SetNext(m.RightInput())
		m.SetParents(cur.ID(), tables[i].ID())
		cur = m
	}
	return cur
}

func (inst *Instance) rebuildChains() {
	if head := inst.foldMerge(inst.igpTables, "Merged:igp"); head != nil {
		head.SetNext(inst.extint.IGPInput())
		inst.extint.SetParents(head.ID(), inst.extint.parentEGP)
	}
	if head := inst.foldMerge(inst.egpTables, "Merged:egp"); head != nil {
		head.SetNext(inst.extint.EGPInput())
		inst.extint.SetParents(inst.extint.parentIGP, head.ID())
	}
}

// SetFinalTable attaches a custom terminal table beyond Redist:all (for
// example a FIB export sink). It may be called at most once per
// instance.
func (inst *Instance) SetFinalTable(t Table) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.final != nil {
		return ErrFinalTableExists
	}
	inst.arena.register(t)
	if ps, ok := t.(interface{ SetParent(TableID) }); ok {
		ps.SetParent(inst.redistAll.ID())
	}
	inst.final = t
	inst.redistAll.SetNext(t)
	return nil
}

// instanceOriginName names an origin table per protocol for logging and
// chain-description purposes.
func instanceOriginName(protocol string) string { return "Origin:" + protocol }

// releaseVif drops one route's reference to v and, if v was already
// logically deleted and nothing references it anymore, finally removes
// it from the instance's vif table (§4.7's deleted-vifs holding
// behavior).
func (inst *Instance) releaseVif(v *Vif) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if v.release() == 0 && v.IsDeleted {
		delete(inst.vifs, v.Name)
	}
}

// RIB owns every independent route-table graph (§4, §6).
type RIB struct {
	mu        sync.RWMutex
	instances map[string]*Instance

	notifier   RedistNotifier
	filter     policyfilter.Filter
	dispatcher EventDispatcher
}

// New creates an empty RIB. notifier, filter, and dispatcher may be nil;
// they are supplied by the composition root (cmd/ribd) and wired into
// every instance created afterward.
func New(notifier RedistNotifier, filter policyfilter.Filter, dispatcher EventDispatcher) *RIB {
	return &RIB{
		instances:  make(map[string]*Instance),
		notifier:   notifier,
		filter:     filter,
		dispatcher: dispatcher,
	}
}

func (r *RIB) getOrCreate(key InstanceKey) *Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key.String()
	if inst, ok := r.instances[k]; ok {
		return inst
	}
	inst := newInstance(key, r.notifier, r.filter, r.dispatcher)
	r.instances[k] = inst
	return inst
}

func (r *RIB) lookupInstance(key InstanceKey) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[key.String()]
	return inst, ok
}

// AddIGPTable registers a new IGP-origin protocol instance. distance is
// the protocol's administrative distance; a zero value is resolved
// through config.AdminDistanceFor(protocol).
func (r *RIB) AddIGPTable(key InstanceKey, protocol string, distance uint8) Code {
	return r.addOriginTable(key, protocol, IGP, distance)
}

// AddEGPTable registers a new EGP-origin protocol instance.
func (r *RIB) AddEGPTable(key InstanceKey, protocol string, distance uint8) Code {
	return r.addOriginTable(key, protocol, EGP, distance)
}

func (r *RIB) addOriginTable(key InstanceKey, protocol string, ptype ProtocolType, distance uint8) Code {
	inst := r.getOrCreate(key)
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.final != nil {
		glog.Warningf("rib %s: %s (protocol %s)", key, ErrFinalTableExists, protocol)
		return CommandFailed
	}
	if _, exists := inst.origins[protocol]; exists {
		return CommandFailed
	}
	if distance == 0 {
		distance = config.AdminDistanceFor(protocol)
	}
	ot := NewOriginTable(instanceOriginName(protocol), protocol, ptype, distance)
	inst.arena.register(ot)
	inst.origins[protocol] = ot
	inst.distances[protocol] = distance

	if ptype == IGP {
		inst.igpTables = append(inst.igpTables, ot)
	} else {
		inst.egpTables = append(inst.egpTables, ot)
	}
	inst.rebuildChains()

	if ptype == IGP {
		rt := NewRedistTable("Redist:" + protocol)
		inst.arena.register(rt)
		inst.protoRedists[protocol] = rt
	}

	return OK
}

// DeleteOriginTable withdraws every route a protocol instance had
// announced and removes it from the graph (§4.2).
func (r *RIB) DeleteOriginTable(key InstanceKey, protocol string) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	ot, ok := inst.origins[protocol]
	if !ok {
		return NoSuchEntity
	}
	ot.RoutingProtocolShutdown()
	delete(inst.origins, protocol)
	delete(inst.distances, protocol)
	delete(inst.protoRedists, protocol)
	inst.igpTables = removeOrigin(inst.igpTables, ot)
	inst.egpTables = removeOrigin(inst.egpTables, ot)
	inst.rebuildChains()
	return OK
}

func removeOrigin(tables []*OriginTable, target *OriginTable) []*OriginTable {
	out := tables[:0]
	for _, t := range tables {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}

// AddRoute announces a route from protocol into its origin table and,
// for an IGP protocol, mirrors it into that protocol's dedicated
// Redist:<protocol> tap (§4.2, §4.4). EGP protocols have no such tap.
func (r *RIB) AddRoute(key InstanceKey, protocol string, route *RouteEntry) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	ot, ok := inst.origins[protocol]
	if !ok {
		return NoSuchEntity
	}
	if code := ot.AddRoute(route); code != OK {
		return code
	}
	if route.Vif != nil {
		route.Vif.retain()
	}
	if rt, ok := inst.protoRedists[protocol]; ok {
		rt.AddRoute(route)
	}
	return OK
}

// ReplaceRoute replaces an existing announcement from protocol.
func (r *RIB) ReplaceRoute(key InstanceKey, protocol string, old, new *RouteEntry) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	ot, ok := inst.origins[protocol]
	if !ok {
		return NoSuchEntity
	}
	if code := ot.ReplaceRoute(old, new); code != OK {
		return code
	}
	if old.Vif != nil {
		inst.releaseVif(old.Vif)
	}
	if new.Vif != nil {
		new.Vif.retain()
	}
	if rt, ok := inst.protoRedists[protocol]; ok {
		rt.ReplaceRoute(old, new)
	}
	return OK
}

// DeleteRoute withdraws a route announced by protocol.
func (r *RIB) DeleteRoute(key InstanceKey, protocol string, net netip.Prefix) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	ot, ok := inst.origins[protocol]
	if !ok {
		return NoSuchEntity
	}
	withdrawn, _ := ot.routes.get(net)
	if code := ot.DeleteRoute(net); code != OK {
		return code
	}
	if withdrawn != nil && withdrawn.Vif != nil {
		inst.releaseVif(withdrawn.Vif)
	}
	if rt, ok := inst.protoRedists[protocol]; ok {
		rt.DeleteRoute(net)
	}
	return OK
}

// LookupRouteByDest resolves addr against the fully merged and resolved
// table at the head of the instance's spine.
func (r *RIB) LookupRouteByDest(key InstanceKey, addr netip.Addr) (*RouteEntry, bool) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return nil, false
	}
	return inst.extint.LookupRoute(addr)
}

// LookupRouteRange is LookupRouteByDest plus the validity range of the
// answer (§4.1).
func (r *RIB) LookupRouteRange(key InstanceKey, addr netip.Addr) (RouteRange, Code) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return RouteRange{}, NoSuchEntity
	}
	return inst.extint.LookupRouteRange(addr), OK
}

// RegisterInterest subscribes subscriber to changes affecting addr's
// current answer (§4.5).
func (r *RIB) RegisterInterest(key InstanceKey, subscriber string, addr netip.Addr) (RouteRange, Code) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return RouteRange{}, NoSuchEntity
	}
	return inst.register.RegisterInterest(subscriber, addr), OK
}

// DeregisterInterest cancels a previously registered interest.
func (r *RIB) DeregisterInterest(key InstanceKey, subscriber string, addr netip.Addr) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.register.DeregisterInterest(subscriber, addr)
	return OK
}

// Flush drains pending notification and redistribution work across the
// whole instance (§4.5/§4.6); callers typically invoke this once per
// batch of upstream mutations rather than after every single one.
func (r *RIB) Flush(key InstanceKey) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.extint.Flush()
	return OK
}

// SetProtocolAdminDistance overrides the administrative distance used
// for future announcements from protocol. Existing routes already
// admitted keep the distance they were stamped with.
func (r *RIB) SetProtocolAdminDistance(key InstanceKey, protocol string, distance uint8) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	ot, ok := inst.origins[protocol]
	if !ok {
		return NoSuchEntity
	}
	ot.AdminDistance = distance
	inst.distances[protocol] = distance
	return OK
}

// GetProtocolAdminDistance returns the administrative distance currently
// configured for protocol.
func (r *RIB) GetProtocolAdminDistance(key InstanceKey, protocol string) (uint8, Code) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return 0, NoSuchEntity
	}
	d, ok := inst.distances[protocol]
	if !ok {
		return 0, NoSuchEntity
	}
	return d, OK
}

// GetProtocolAdminDistances returns every protocol's configured
// administrative distance for the instance.
func (r *RIB) GetProtocolAdminDistances(key InstanceKey) (map[string]uint8, Code) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return nil, NoSuchEntity
	}
	out := make(map[string]uint8, len(inst.distances))
	for k, v := range inst.distances {
		out[k] = v
	}
	return out, OK
}

// RedistEnable turns on forwarding for protocol's redistribution tap
// (or every protocol's, via Redist:all) and backfills the caller with
// whatever is already installed.
func (r *RIB) RedistEnable(key InstanceKey, protocol string) ([]*RouteEntry, Code) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return nil, NoSuchEntity
	}
	rt, code := inst.redistTable(protocol)
	if code != OK {
		return nil, code
	}
	rt.SetEnabled(true)
	return rt.Snapshot(), OK
}

// RedistDisable turns off forwarding for protocol's tap (or Redist:all).
func (r *RIB) RedistDisable(key InstanceKey, protocol string) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	rt, code := inst.redistTable(protocol)
	if code != OK {
		return code
	}
	rt.SetEnabled(false)
	return OK
}

func (inst *Instance) redistTable(protocol string) (*RedistTable, Code) {
	if protocol == "" || protocol == "all" {
		return inst.redistAll, OK
	}
	rt, ok := inst.protoRedists[protocol]
	if !ok {
		return nil, NoSuchEntity
	}
	return rt, OK
}

// InsertPolicyRedistTags records that protocol should be notified of
// every route carrying tag (§4.4).
func (r *RIB) InsertPolicyRedistTags(key InstanceKey, tag uint32, protocol string) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.policyRedist.InsertPolicyRedistTags(tag, protocol)
	return OK
}

// ResetPolicyRedistTags clears every protocol interest registered for
// tag.
func (r *RIB) ResetPolicyRedistTags(key InstanceKey, tag uint32) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.policyRedist.ResetPolicyRedistTags(tag)
	return OK
}

// PushPolicyRoutes re-runs the policy filter over every currently
// installed route, e.g. after reloading filter configuration.
func (r *RIB) PushPolicyRoutes(key InstanceKey) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.policyConnected.PushRoutes()
	return OK
}

// NewVif creates a vif with no addresses in the instance's vif table.
func (r *RIB) NewVif(key InstanceKey, name, ifname string) Code {
	inst := r.getOrCreate(key)
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if _, exists := inst.vifs[name]; exists {
		return CommandFailed
	}
	inst.vifs[name] = NewVif(name, ifname)
	return OK
}

// DeleteVif marks a vif logically deleted; it is retained in storage
// until every route referencing it is withdrawn (§4.7).
func (r *RIB) DeleteVif(key InstanceKey, name string) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	v, ok := inst.vifs[name]
	if !ok {
		return NoSuchEntity
	}
	v.IsDeleted = true
	if v.usageCounter == 0 {
		delete(inst.vifs, name)
	}
	return OK
}

// AddVifAddr is a fast test-rig path (grounded on original_source's
// dummy_rib_manager.cc) that binds an address to an existing vif without
// routing it through a separate interface-mirror negotiation.
func (r *RIB) AddVifAddr(key InstanceKey, vifName string, addr *VifAddr) Code {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return NoSuchEntity
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	v, ok := inst.vifs[vifName]
	if !ok {
		return NoSuchEntity
	}
	if err := v.AddAddress(addr); err != nil {
		return CommandFailed
	}
	return OK
}

// Vif returns the named vif, if it exists in the instance.
func (r *RIB) Vif(key InstanceKey, name string) (*Vif, bool) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return nil, false
	}
	v, ok := inst.vifs[name]
	return v, ok
}

// SetFinalTable attaches a custom terminal table (e.g. a fibsink.Sink
// adapter) beyond Redist:all. See ErrFinalTableExists.
func (r *RIB) SetFinalTable(key InstanceKey, t Table) error {
	inst := r.getOrCreate(key)
	return inst.SetFinalTable(t)
}

// ChainSummary walks from protocol's origin table to the instance's tail
// one next-table link at a time, returning the sequence of table names an
// announcement passes through. It exists for operational debugging, the
// same purpose Design Note 1's arena indices are meant to serve.
func (r *RIB) ChainSummary(key InstanceKey, protocol string) ([]string, Code) {
	inst, ok := r.lookupInstance(key)
	if !ok {
		return nil, NoSuchEntity
	}
	ot, ok := inst.origins[protocol]
	if !ok {
		return nil, NoSuchEntity
	}

	var names []string
	cur := ot.ID()
	for {
		t := inst.arena.get(cur)
		if t == nil {
			break
		}
		names = append(names, t.TableName())
		next := t.NextTable()
		if next == noTable || next == cur {
			break
		}
		cur = next
	}
	return names, OK
}
