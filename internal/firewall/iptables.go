package firewall

import (
	"fmt"
	"strings"

	"grimm.is/tornet/internal/host"
)

// IPTables manages the kill switch as a chain bound into OUTPUT.
type IPTables struct {
	Binary string
	Chain  string
	Rules  RuleSet
	Runner host.CommandRunner
}

// NewIPTables returns the iptables backend.
func NewIPTables(runner host.CommandRunner, rules RuleSet) *IPTables {
	return &IPTables{Binary: "iptables", Chain: ChainName, Rules: rules, Runner: runner}
}

func (b *IPTables) Name() string   { return "iptables" }
func (b *IPTables) Tool() string   { return b.Binary }
func (b *IPTables) Marker() string { return b.Chain }

// Enabled looks for the chain in the rule listing.
func (b *IPTables) Enabled() (bool, error) {
	out, err := b.Runner.Output(b.Binary, "-L", "-n")
	if err != nil {
		return false, fmt.Errorf("list iptables rules: %w", err)
	}
	return strings.Contains(string(out), b.Chain), nil
}

// EnableCommands returns the argument lists Enable runs, in order: create
// the chain, allow rules, the drop, then the OUTPUT binding.
func (b *IPTables) EnableCommands() [][]string {
	cmds := [][]string{{"-N", b.Chain}}
	for _, cidr := range b.Rules.AllowCIDRs {
		cmds = append(cmds, []string{"-A", b.Chain, "-d", cidr, "-j", "ACCEPT"})
	}
	cmds = append(cmds,
		[]string{"-A", b.Chain, "-p", "tcp", "--dport", b.Rules.port(), "-j", "ACCEPT"},
		[]string{"-A", b.Chain, "-j", "DROP"},
		[]string{"-A", "OUTPUT", "-j", b.Chain},
	)
	return cmds
}

// DisableCommands returns the argument lists Disable runs: unbind, flush,
// delete.
func (b *IPTables) DisableCommands() [][]string {
	return [][]string{
		{"-D", "OUTPUT", "-j", b.Chain},
		{"-F", b.Chain},
		{"-X", b.Chain},
	}
}

// Enable installs the chain. If a step fails after the chain exists, the
// unbound chain is removed again.
func (b *IPTables) Enable() error {
	for i, args := range b.EnableCommands() {
		if err := b.Runner.Run(b.Binary, args...); err != nil {
			if i > 0 {
				b.rollback()
			}
			return fmt.Errorf("enable kill switch (%s): %w", strings.Join(args, " "), err)
		}
	}
	return nil
}

func (b *IPTables) rollback() {
	_ = b.Runner.Run(b.Binary, "-F", b.Chain)
	_ = b.Runner.Run(b.Binary, "-X", b.Chain)
}

// Disable unbinds, flushes and deletes the chain.
func (b *IPTables) Disable() error {
	for _, args := range b.DisableCommands() {
		if err := b.Runner.Run(b.Binary, args...); err != nil {
			return fmt.Errorf("disable kill switch (%s): %w", strings.Join(args, " "), err)
		}
	}
	return nil
}
