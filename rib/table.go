package rib

import "net/netip"

// TableType is a bitmask classifying a table's role in the graph so
// track_forward/track_back (§4.1) can filter by type without a dynamic
// type switch.
type TableType uint32

const (
	Origin TableType = 1 << iota
	Merged
	ExtInt
	Redist
	PolicyRedist
	PolicyConnected
	Register
	Export
)

func (t TableType) String() string {
	names := []struct {
		bit  TableType
		name string
	}{
		{Origin, "ORIGIN"}, {Merged, "MERGED"}, {ExtInt, "EXTINT"},
		{Redist, "REDIST"}, {PolicyRedist, "POLICY_REDIST"},
		{PolicyConnected, "POLICY_CONNECTED"}, {Register, "REGISTER"},
		{Export, "EXPORT"},
	}
	s := ""
	for _, n := range names {
		if t&n.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "NONE"
	}
	return s
}

// RouteRange is the result of a lookup_route_range query (§4.1):
// the matched route, if any, and the largest prefix containing the
// queried address for which the answer is guaranteed stable.
type RouteRange struct {
	Matched  *RouteEntry
	ValidNet netip.Prefix
}

// TableID is a stable arena index, used instead of raw pointers for
// parent/next links so structural mutation (replumb, track_back,
// track_forward) and teardown never have to worry about reference
// cycles (Design Note 1).
type TableID int

const noTable TableID = -1

// Table is the contract every node in the route-table graph implements
// (§4.1).
type Table interface {
	// AddRoute is an upstream announcement. It must result in exactly
	// one of AddRoute, ReplaceRoute, or nothing being propagated to the
	// next table.
	AddRoute(r *RouteEntry) Code
	// DeleteRoute is an upstream withdrawal.
	DeleteRoute(net netip.Prefix) Code
	// ReplaceRoute is a semantic shortcut equivalent to delete+add
	// without transiently exposing an empty prefix.
	ReplaceRoute(old, new *RouteEntry) Code
	// LookupRoute performs a synchronous longest-prefix match, recursing
	// into parents as needed.
	LookupRoute(addr netip.Addr) (*RouteEntry, bool)
	// LookupRouteRange additionally reports the validity range of the
	// answer.
	LookupRouteRange(addr netip.Addr) RouteRange
	// Flush hints that a burst of events has finished; subscribers
	// should coalesce and publish.
	Flush()

	TableName() string
	Type() TableType
	ID() TableID
	Parents() []TableID
	NextTable() TableID
	// SetNext wires t as this table's downstream dispatch target.
	SetNext(Table)

	setID(TableID)
	setArena(*arena)
	setNextID(TableID)
}

// tableCore is the shared state every concrete table embeds: identity,
// arena membership, and the single downstream link. Parent links are
// concrete typed fields on each variant (OriginTable has none,
// MergedTable/ExtIntTable have exactly two, everything else has exactly
// one) rather than a generic slice, since the graph's shape (§4.2) fixes
// each table type's parent arity; Parents() below still exposes them
// uniformly for the structural helpers.
type tableCore struct {
	id     TableID
	name   string
	kind   TableType
	arena  *arena
	nextID TableID

	// nextTable is the live dispatch target. It is kept alongside nextID
	// (rather than resolved through the arena on every call) because a
	// table's actual downstream neighbor is sometimes a thin per-side
	// adapter (mergedSide, extIntSide) that is never itself registered
	// in the arena — only the real table it wraps is. nextID still
	// tracks that real table's id so trackForward's structural walk
	// (Design Note 1) stays arena-based.
	nextTable Table
}

func newTableCore(name string, kind TableType) tableCore {
	return tableCore{name: name, kind: kind, nextID: noTable}
}

func (c *tableCore) TableName() string  { return c.name }
func (c *tableCore) Type() TableType    { return c.kind }
func (c *tableCore) ID() TableID        { return c.id }
func (c *tableCore) NextTable() TableID { return c.nextID }
func (c *tableCore) setID(id TableID)   { c.id = id }
func (c *tableCore) setArena(a *arena)  { c.arena = a }

func (c *tableCore) setNextID(id TableID) { c.nextID = id }

// SetNext wires t as this table's downstream dispatch target.
func (c *tableCore) SetNext(t Table) {
	c.nextTable = t
	if t != nil {
		c.nextID = t.ID()
	} else {
		c.nextID = noTable
	}
}

func (c *tableCore) next() Table {
	return c.nextTable
}

// arena owns every table belonging to one address-family RIB instance,
// indexed by stable TableID (Design Note 1).
type arena struct {
	tables []Table
}

func newArena() *arena {
	return &arena{}
}

func (a *arena) register(t Table) TableID {
	id := TableID(len(a.tables))
	t.setID(id)
	t.setArena(a)
	a.tables = append(a.tables, t)
	return id
}

func (a *arena) get(id TableID) Table {
	if id == noTable || int(id) >= len(a.tables) {
		return nil
	}
	return a.tables[id]
}

func (a *arena) replumb(oldParent, newParent Table) {
	oldID, newID := oldParent.ID(), newParent.ID()
	for _, t := range a.tables {
		for i, p := range t.Parents() {
			if p == oldID {
				_ = i
				setParentAt(t, oldID, newID)
			}
		}
	}
}

// setParentAt is implemented per concrete table type (parentSetter)
// since parent slots are named fields, not a generic slice.
func setParentAt(t Table, oldID, newID TableID) {
	if ps, ok := t.(parentSetter); ok {
		ps.replaceParent(oldID, newID)
	}
}

type parentSetter interface {
	replaceParent(oldID, newID TableID)
}

// trackBack walks upstream from t along single-parent chains while the
// current table's type is in mask (§4.1). It stops at the first table
// whose type is not in mask, or at a table with more than one parent.
func trackBack(a *arena, start TableID, mask TableType) TableID {
	cur := start
	for {
		t := a.get(cur)
		if t == nil || t.Type()&mask == 0 {
			return cur
		}
		parents := t.Parents()
		if len(parents) != 1 {
			return cur
		}
		cur = parents[0]
	}
}

// trackForward walks downstream from t along the next_table chain while
// the current table's type is in mask (§4.1).
func trackForward(a *arena, start TableID, mask TableType) TableID {
	cur := start
	for {
		t := a.get(cur)
		if t == nil || t.Type()&mask == 0 {
			return cur
		}
		next := t.NextTable()
		if next == noTable {
			return cur
		}
		cur = next
	}
}
