package rib

import "net/netip"

// NewPrefix masks addr to bits and reports an error if the result is not
// already in canonical (host-bits-zero) form — invariant 1 of §3:
// "net.host_bits == 0".
func NewPrefix(addr netip.Addr, bits int) (netip.Prefix, error) {
	p := netip.PrefixFrom(addr, bits)
	if !p.IsValid() {
		return netip.Prefix{}, errf(CommandFailed, "invalid prefix %s/%d", addr, bits)
	}
	masked := p.Masked()
	if masked.Addr() != p.Addr() {
		return netip.Prefix{}, errf(CommandFailed, "prefix %s has non-zero host bits", p)
	}
	return masked, nil
}
