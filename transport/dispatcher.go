// Package transport names the external RPC boundary's error vocabulary
// and the contracts the rib and ifmirror packages dispatch through. The
// wire protocol itself — XRL, gRPC, or otherwise — is explicitly out of
// scope (§1, §6) and is never implemented here.
package transport

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/netrib/rib/ifmirror"
	"github.com/netrib/rib/rib"
)

// Dispatcher is the contract RegisterTable calls into to deliver a
// queued notification to a registered subscriber (§4.5). A concrete
// implementation owns whatever RPC client/session maps a subscriber id
// to a live connection.
type Dispatcher interface {
	rib.EventDispatcher
}

// MirrorTransport is the contract the Producer side of the interface
// mirror calls into to deliver a queued command to an attached
// replicator (§4.6).
type MirrorTransport interface {
	ifmirror.Transport
}

// StatusError wraps a rib.Code as a gRPC status error, the shape a
// Dispatcher/MirrorTransport implementation is expected to surface to
// its RPC layer.
func StatusError(code rib.Code, reason string) error {
	if code == rib.OK {
		return nil
	}
	return status.Error(codesFor(code), reason)
}

func codesFor(code rib.Code) codes.Code { return code.GRPCCode() }

// Ctx is a convenience alias so callers implementing Dispatcher /
// MirrorTransport against a context-aware RPC client don't need to
// import context solely for that purpose in small files.
type Ctx = context.Context
