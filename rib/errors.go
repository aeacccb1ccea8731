package rib

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

// Code is the uniform exit status returned by every control-surface
// operation in §6 of the spec.
type Code int

const (
	// OK indicates the operation succeeded.
	OK Code = iota
	// CommandFailed indicates a structural or routing-semantic error;
	// the operation failed and left state untouched.
	CommandFailed
	// ResolveFailed indicates the external transport could not be
	// reached.
	ResolveFailed
	// NoSuchEntity indicates the operation named a table, protocol,
	// vif, or registration that does not exist.
	NoSuchEntity
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case CommandFailed:
		return "COMMAND_FAILED"
	case ResolveFailed:
		return "RESOLVE_FAILED"
	case NoSuchEntity:
		return "NO_SUCH_ENTITY"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// GRPCCode maps a Code onto the google.golang.org/grpc/codes vocabulary
// used at the transport boundary (transport.Dispatcher), since the RPC
// layer itself is an external collaborator (§1, §6) that this repository
// never implements but whose error surface it must speak.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case OK:
		return codes.OK
	case CommandFailed:
		return codes.Internal
	case ResolveFailed:
		return codes.Unavailable
	case NoSuchEntity:
		return codes.NotFound
	default:
		return codes.Unknown
	}
}

// Error is a Code carrying a human-readable reason, satisfying the error
// interface so callers that want a plain Go error can use it directly.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ErrSelfNextHop is logged (the add returns CommandFailed) when an IGP
// route's next hop resolves to
// one of its own resolving vif's addresses. Open Question 3 (SPEC_FULL.md
// §7) decides this is rejected rather than silently accepted as a
// connected route, since the originating protocol never said "connected".
var ErrSelfNextHop = errf(CommandFailed, "next hop resolves to its own resolving vif address")

// ErrNoDirectNextHop is logged (the add returns CommandFailed) when an
// IGP-origin route's next hop
// does not resolve to a directly connected peer (§4.3: "hard error on an
// IGP route with no directly connected next hop").
var ErrNoDirectNextHop = errf(CommandFailed, "IGP route's next hop is not directly connected")
