// Package firewall implements the kill switch: an egress filter that only
// lets traffic reach loopback, private ranges and the Tor SOCKS port.
//
// Two backends exist. The iptables backend manages a named chain bound into
// OUTPUT; the nftables backend manages a dedicated inet table. Either way the
// presence of the marker (chain or table) is the enabled state, so the
// switch is a binary toggle rather than a counter.
//
// Ordering is fail-safe: allow rules precede the final drop, the binding
// into the global egress path is created last on enable and removed first
// on disable, so a drop rule is never active without its exceptions.
package firewall
