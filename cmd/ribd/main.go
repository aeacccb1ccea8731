// Command ribd is the process composition root: it wires together the
// route-table graph, the interface mirror, and the vif manager the way
// a production deployment would, using flags for the knobs an operator
// needs at startup.
package main

import (
	goflag "flag"

	"github.com/golang/glog"
	flag "github.com/spf13/pflag"

	"github.com/netrib/rib/ifmirror"
	"github.com/netrib/rib/policyfilter"
	"github.com/netrib/rib/rib"
	"github.com/netrib/rib/vifmgr"
)

var (
	listenAddr = flag.String("listen", ":19999", "control-surface listen address")
	v4Unicast  = flag.Bool("v4-unicast", true, "instantiate the IPv4 unicast RIB")
	v6Unicast  = flag.Bool("v6-unicast", true, "instantiate the IPv6 unicast RIB")
)

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	defer glog.Flush()

	r := rib.New(nil, policyfilter.NopFilter{}, nil)

	var targets []vifmgr.Target
	if *v4Unicast {
		key := rib.InstanceKey{TableName: "rib", TargetClass: "ipv4", TargetInstance: "unicast"}
		targets = append(targets, vifmgr.Target{RIB: r, Key: key})
	}
	if *v6Unicast {
		key := rib.InstanceKey{TableName: "rib", TargetClass: "ipv6", TargetInstance: "unicast"}
		targets = append(targets, vifmgr.Target{RIB: r, Key: key})
	}
	if len(targets) == 0 {
		glog.Exit("ribd: at least one of --v4-unicast/--v6-unicast must be set")
	}

	mgr := vifmgr.New(targets...)

	producer := ifmirror.NewProducer()
	mirror := ifmirror.NewMirror("local")
	mirror.AddObserver(mgr)
	mirror.NotifyTransportReady()

	glog.Infof("ribd: listening on %s with %d rib instance(s), %d interface(s) mirrored",
		*listenAddr, len(targets), len(producer.Tree().Interfaces))

	// A real deployment would now start the control-surface RPC server
	// (transport.Dispatcher) and the mirror's transport loop; both are
	// external collaborators this repository only defines the contract
	// for (§1, §6).
	select {}
}
