package firewall

import (
	"fmt"
	"net"
	"strconv"

	"grimm.is/tornet/internal/config"
)

// Default marker names.
const (
	ChainName = "TORNET-KILLSWITCH"
	TableName = "tornet_killswitch"
)

// DefaultSocksPort is Tor's SOCKS port.
const DefaultSocksPort = 9050

// DefaultAllowCIDRs are the destinations that stay reachable with the kill
// switch on: loopback and the RFC1918 ranges.
var DefaultAllowCIDRs = []string{
	"127.0.0.1/8",
	"192.168.0.0/16",
	"172.16.0.0/12",
	"10.0.0.0/8",
}

// RuleSet is the kill switch policy: allowed destinations and the SOCKS port.
type RuleSet struct {
	AllowCIDRs []string
	SocksPort  int
}

// DefaultRuleSet returns the stock policy.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		AllowCIDRs: append([]string(nil), DefaultAllowCIDRs...),
		SocksPort:  DefaultSocksPort,
	}
}

// RuleSetFromConfig overlays config values onto the default policy.
func RuleSetFromConfig(c config.FirewallConfig) (RuleSet, error) {
	rs := DefaultRuleSet()
	if len(c.AllowCIDRs) > 0 {
		rs.AllowCIDRs = append([]string(nil), c.AllowCIDRs...)
	}
	if c.SocksPort != 0 {
		rs.SocksPort = c.SocksPort
	}
	return rs, rs.Validate()
}

// Validate checks every CIDR and the port range.
func (rs RuleSet) Validate() error {
	for _, c := range rs.AllowCIDRs {
		if _, _, err := net.ParseCIDR(c); err != nil {
			return fmt.Errorf("invalid allow_cidrs entry %q: %w", c, err)
		}
	}
	if rs.SocksPort < 1 || rs.SocksPort > 65535 {
		return fmt.Errorf("invalid socks_port %d", rs.SocksPort)
	}
	return nil
}

func (rs RuleSet) port() string {
	return strconv.Itoa(rs.SocksPort)
}
