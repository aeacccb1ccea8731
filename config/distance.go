// Package config holds administrative values that would otherwise be
// scattered magic numbers: per-protocol default administrative
// distances and their environment overrides.
package config

import (
	"os"
	"strconv"

	"github.com/golang/glog"
)

// DefaultAdminDistances are the conventional per-protocol administrative
// distances used when a protocol instance registers without specifying
// its own, lowest-wins (§3, §6's supplemented default table).
var DefaultAdminDistances = map[string]uint8{
	"connected":      0,
	"static":         1,
	"eigrp-summary":  5,
	"ebgp":           20,
	"eigrp-internal": 90,
	"igrp":           100,
	"ospf":           110,
	"is-is":          115,
	"rip":            120,
	"eigrp-external": 170,
	"ibgp":           200,
	"fib2mrib":       254,
	"unknown":        255,
}

// StaticAdminDistance returns the administrative distance to use for the
// "static" protocol, honoring the RIB_STATIC_DISTANCE environment
// override when present and parseable as a uint8.
func StaticAdminDistance() uint8 {
	v, ok := os.LookupEnv("RIB_STATIC_DISTANCE")
	if !ok {
		return DefaultAdminDistances["static"]
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		glog.Warningf("config: ignoring malformed RIB_STATIC_DISTANCE=%q: %v", v, err)
		return DefaultAdminDistances["static"]
	}
	return uint8(n)
}

// AdminDistanceFor returns the default administrative distance for a
// named protocol, falling back to the "unknown" entry if protocol isn't
// recognized. "static" is resolved through StaticAdminDistance so the
// environment override always applies.
func AdminDistanceFor(protocol string) uint8 {
	if protocol == "static" {
		return StaticAdminDistance()
	}
	if d, ok := DefaultAdminDistances[protocol]; ok {
		return d
	}
	return DefaultAdminDistances["unknown"]
}
