package firewall

import (
	"fmt"
	"net"

	"github.com/google/nftables"

	"grimm.is/tornet/internal/host"
)

// NFTablesConn is the part of *nftables.Conn the kill switch uses.
type NFTablesConn interface {
	ListTables() ([]*nftables.Table, error)
	DelTable(t *nftables.Table)
	Flush() error
}

// NFTables manages the kill switch as a dedicated inet table.
type NFTables struct {
	Table  string
	Rules  RuleSet
	Conn   NFTablesConn
	Runner host.CommandRunner
}

// NewNFTables returns the nftables backend on a fresh netlink connection.
func NewNFTables(runner host.CommandRunner, rules RuleSet) (*NFTables, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("open nftables connection: %w", err)
	}
	return &NFTables{Table: TableName, Rules: rules, Conn: conn, Runner: runner}, nil
}

func (b *NFTables) Name() string   { return "nftables" }
func (b *NFTables) Tool() string   { return "nft" }
func (b *NFTables) Marker() string { return "inet " + b.Table }

func (b *NFTables) table() *nftables.Table {
	return &nftables.Table{Name: b.Table, Family: nftables.TableFamilyINet}
}

// Enabled reports whether the kill switch table exists.
func (b *NFTables) Enabled() (bool, error) {
	tables, err := b.Conn.ListTables()
	if err != nil {
		return false, fmt.Errorf("list nftables tables: %w", err)
	}
	for _, t := range tables {
		if t.Name == b.Table && t.Family == nftables.TableFamilyINet {
			return true, nil
		}
	}
	return false, nil
}

// Script renders the table. The hooked output chain is declared after the
// rule chain; nft applies the whole script as one transaction.
func (b *NFTables) Script() (string, error) {
	sb := NewScriptBuilder(b.Table, "inet")
	sb.AddTable("tornet kill switch")

	sb.AddChain("killswitch", "", "", 0, "")
	for _, cidr := range b.Rules.AllowCIDRs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return "", fmt.Errorf("invalid allow CIDR %q: %w", cidr, err)
		}
		proto := "ip"
		if ipnet.IP.To4() == nil {
			proto = "ip6"
		}
		sb.AddRule("killswitch", fmt.Sprintf("%s daddr %s accept", proto, ipnet.String()))
	}
	sb.AddRule("killswitch", fmt.Sprintf("tcp dport %d accept", b.Rules.SocksPort))
	sb.AddRule("killswitch", "drop")

	sb.AddChain("output", "filter", "output", 0, "accept")
	sb.AddRule("output", "jump killswitch")

	return sb.Build(), nil
}

// Enable loads the table atomically through nft.
func (b *NFTables) Enable() error {
	script, err := b.Script()
	if err != nil {
		return err
	}
	if err := b.Runner.RunInput(script, "nft", "-f", "-"); err != nil {
		return fmt.Errorf("enable kill switch: %w", err)
	}
	return nil
}

// Disable deletes the table, which drops its hook and rules together.
func (b *NFTables) Disable() error {
	b.Conn.DelTable(b.table())
	if err := b.Conn.Flush(); err != nil {
		return fmt.Errorf("disable kill switch: %w", err)
	}
	return nil
}
