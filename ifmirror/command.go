package ifmirror

import "net/netip"

// Entity names which level of the tree a Command targets (§4.6: command
// families are {If,Vif,V4Addr,V6Addr} × {Add,Remove,Set<attr>}).
type Entity int

const (
	EntityIf Entity = iota
	EntityVif
	EntityV4Addr
	EntityV6Addr
	// entityHint marks the two out-of-band hints, which never mutate
	// the tree themselves.
	entityHint
)

// Op is the mutation family applied to an Entity.
type Op int

const (
	OpAdd Op = iota
	OpRemove
	OpSet
)

// Hint distinguishes the two out-of-band signals carried by a Command
// with Entity == entityHint.
type Hint int

const (
	HintNone Hint = iota
	// HintTreeComplete is sent once, after a new mirror has received
	// the full initial snapshot.
	HintTreeComplete
	// HintUpdatesMade is sent after a batch of live commands.
	HintUpdatesMade
)

// Command is one mutation (or hint) in the replicated stream (§4.6).
// Only the fields relevant to Entity/Op/Attr are populated.
type Command struct {
	Entity Entity
	Op     Op
	Hint   Hint

	IfName  string
	VifName string
	Addr    netip.Addr

	Attr  string
	Bool  bool
	Uint  uint32
	Net   netip.Prefix
	Bcast netip.Addr
}

// IsHint reports whether this command is a TreeComplete/UpdatesMade hint
// rather than a tree mutation.
func (c Command) IsHint() bool { return c.Entity == entityHint }

func treeCompleteCmd() Command { return Command{Entity: entityHint, Hint: HintTreeComplete} }
func updatesMadeCmd() Command  { return Command{Entity: entityHint, Hint: HintUpdatesMade} }

// Apply mutates tree according to the command and reports whether it
// was applied (§4.6: "apply(tree) → bool"): a Set on an existing target
// reports true even when the new value equals the old one. Hints never
// mutate and always report false.
func (c Command) Apply(tree *Tree) bool {
	switch c.Entity {
	case entityHint:
		return false
	case EntityIf:
		return c.applyIf(tree)
	case EntityVif:
		return c.applyVif(tree)
	case EntityV4Addr:
		return c.applyV4(tree)
	case EntityV6Addr:
		return c.applyV6(tree)
	default:
		return false
	}
}

func (c Command) applyIf(tree *Tree) bool {
	switch c.Op {
	case OpAdd:
		if _, ok := tree.Interfaces[c.IfName]; ok {
			return false
		}
		tree.Interfaces[c.IfName] = newInterface(c.IfName)
		return true
	case OpRemove:
		if _, ok := tree.Interfaces[c.IfName]; !ok {
			return false
		}
		delete(tree.Interfaces, c.IfName)
		return true
	case OpSet:
		i, ok := tree.Interfaces[c.IfName]
		if !ok {
			return false
		}
		switch c.Attr {
		case "enabled":
			i.Enabled = c.Bool
		case "mtu":
			i.MTU = c.Uint
		}
		return true
	}
	return false
}

func (c Command) applyVif(tree *Tree) bool {
	i, ok := tree.Interfaces[c.IfName]
	if !ok {
		return false
	}
	switch c.Op {
	case OpAdd:
		if _, ok := i.Vifs[c.VifName]; ok {
			return false
		}
		i.Vifs[c.VifName] = newVif(c.VifName)
		return true
	case OpRemove:
		if _, ok := i.Vifs[c.VifName]; !ok {
			return false
		}
		delete(i.Vifs, c.VifName)
		return true
	case OpSet:
		v, ok := i.Vifs[c.VifName]
		if !ok {
			return false
		}
		if c.Attr == "enabled" {
			v.Enabled = c.Bool
		}
		return true
	}
	return false
}

func (c Command) applyV4(tree *Tree) bool {
	v := lookupVif(tree, c.IfName, c.VifName)
	if v == nil {
		return false
	}
	switch c.Op {
	case OpAdd:
		if _, ok := v.V4[c.Addr]; ok {
			return false
		}
		v.V4[c.Addr] = &V4Addr{Addr: c.Addr, Prefix: c.Net, Broadcast: c.Bcast, Enabled: true}
		return true
	case OpRemove:
		if _, ok := v.V4[c.Addr]; !ok {
			return false
		}
		delete(v.V4, c.Addr)
		return true
	case OpSet:
		a, ok := v.V4[c.Addr]
		if !ok {
			return false
		}
		if c.Attr == "enabled" {
			a.Enabled = c.Bool
		}
		return true
	}
	return false
}

func (c Command) applyV6(tree *Tree) bool {
	v := lookupVif(tree, c.IfName, c.VifName)
	if v == nil {
		return false
	}
	switch c.Op {
	case OpAdd:
		if _, ok := v.V6[c.Addr]; ok {
			return false
		}
		v.V6[c.Addr] = &V6Addr{Addr: c.Addr, Prefix: c.Net, Enabled: true}
		return true
	case OpRemove:
		if _, ok := v.V6[c.Addr]; !ok {
			return false
		}
		delete(v.V6, c.Addr)
		return true
	case OpSet:
		a, ok := v.V6[c.Addr]
		if !ok {
			return false
		}
		if c.Attr == "enabled" {
			a.Enabled = c.Bool
		}
		return true
	}
	return false
}

func lookupVif(tree *Tree, ifName, vifName string) *Vif {
	i, ok := tree.Interfaces[ifName]
	if !ok {
		return nil
	}
	return i.Vifs[vifName]
}

// AddInterface builds an Add command for an interface.
func AddInterface(name string) Command { return Command{Entity: EntityIf, Op: OpAdd, IfName: name} }

// RemoveInterface builds a Remove command for an interface.
func RemoveInterface(name string) Command {
	return Command{Entity: EntityIf, Op: OpRemove, IfName: name}
}

// SetInterfaceEnabled builds a Set command for an interface's enabled
// attribute.
func SetInterfaceEnabled(name string, enabled bool) Command {
	return Command{Entity: EntityIf, Op: OpSet, IfName: name, Attr: "enabled", Bool: enabled}
}

// SetInterfaceMTU builds a Set command for an interface's MTU.
func SetInterfaceMTU(name string, mtu uint32) Command {
	return Command{Entity: EntityIf, Op: OpSet, IfName: name, Attr: "mtu", Uint: mtu}
}

// AddVif builds an Add command for a vif nested under ifName.
func AddVif(ifName, vifName string) Command {
	return Command{Entity: EntityVif, Op: OpAdd, IfName: ifName, VifName: vifName}
}

// RemoveVif builds a Remove command for a vif.
func RemoveVif(ifName, vifName string) Command {
	return Command{Entity: EntityVif, Op: OpRemove, IfName: ifName, VifName: vifName}
}

// SetVifEnabled builds a Set command for a vif's enabled attribute.
func SetVifEnabled(ifName, vifName string, enabled bool) Command {
	return Command{Entity: EntityVif, Op: OpSet, IfName: ifName, VifName: vifName, Attr: "enabled", Bool: enabled}
}

// AddV4Addr builds an Add command for an IPv4 vif address.
func AddV4Addr(ifName, vifName string, addr netip.Addr, net netip.Prefix, bcast netip.Addr) Command {
	return Command{Entity: EntityV4Addr, Op: OpAdd, IfName: ifName, VifName: vifName, Addr: addr, Net: net, Bcast: bcast}
}

// RemoveV4Addr builds a Remove command for an IPv4 vif address.
func RemoveV4Addr(ifName, vifName string, addr netip.Addr) Command {
	return Command{Entity: EntityV4Addr, Op: OpRemove, IfName: ifName, VifName: vifName, Addr: addr}
}

// AddV6Addr builds an Add command for an IPv6 vif address.
func AddV6Addr(ifName, vifName string, addr netip.Addr, net netip.Prefix) Command {
	return Command{Entity: EntityV6Addr, Op: OpAdd, IfName: ifName, VifName: vifName, Addr: addr, Net: net}
}

// RemoveV6Addr builds a Remove command for an IPv6 vif address.
func RemoveV6Addr(ifName, vifName string, addr netip.Addr) Command {
	return Command{Entity: EntityV6Addr, Op: OpRemove, IfName: ifName, VifName: vifName, Addr: addr}
}
