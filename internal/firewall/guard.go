package firewall

import (
	"context"
	"fmt"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/config"
	"grimm.is/tornet/internal/host"
	"grimm.is/tornet/internal/logging"
)

// Backend is a kill switch implementation.
type Backend interface {
	Name() string
	// Tool is the binary that must be in PATH.
	Tool() string
	// Marker names the chain or table whose presence means enabled.
	Marker() string
	Enabled() (bool, error)
	Enable() error
	Disable() error
}

// StateObserver is told the observed kill switch state.
type StateObserver interface {
	SetKillSwitch(enabled bool)
}

// Guard checks preconditions and drives a Backend.
type Guard struct {
	Backend  Backend
	Env      host.Env
	Observer StateObserver
	Logger   *logging.Logger
}

// NewGuard selects the backend named by cfg.Backend ("iptables" when empty).
func NewGuard(cfg config.FirewallConfig, env host.Env, runner host.CommandRunner, logger *logging.Logger) (*Guard, error) {
	if logger == nil {
		logger = logging.WithComponent("firewall")
	}
	rules, err := RuleSetFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	var backend Backend
	switch cfg.Backend {
	case "", "iptables":
		backend = NewIPTables(runner, rules)
	case "nftables", "nft":
		nft, err := NewNFTables(runner, rules)
		if err != nil {
			return nil, err
		}
		backend = nft
	default:
		return nil, fmt.Errorf("unknown firewall backend %q (want iptables or nftables)", cfg.Backend)
	}
	return &Guard{Backend: backend, Env: env, Logger: logger}, nil
}

// preflight requires the backend tool and root. It never degrades to a no-op.
func (g *Guard) preflight(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !host.Has(g.Env, g.Backend.Tool()) {
		return apperr.Errorf(apperr.KindMissingFirewallTool,
			"%s not found; kill switch requires %s", g.Backend.Tool(), g.Backend.Tool())
	}
	if !host.IsRoot(g.Env) {
		return apperr.Errorf(apperr.KindRootRequired,
			"kill switch requires root privileges; run with sudo")
	}
	return nil
}

func (g *Guard) observe(enabled bool) {
	if g.Observer != nil {
		g.Observer.SetKillSwitch(enabled)
	}
}

// Enabled inspects the current rule state.
func (g *Guard) Enabled(ctx context.Context) (bool, error) {
	if err := g.preflight(ctx); err != nil {
		return false, err
	}
	on, err := g.Backend.Enabled()
	if err != nil {
		return false, err
	}
	g.observe(on)
	return on, nil
}

// Enable turns the kill switch on. It is a no-op when already on.
func (g *Guard) Enable(ctx context.Context) error {
	on, err := g.Enabled(ctx)
	if err != nil || on {
		return err
	}
	return g.enable()
}

// Disable turns the kill switch off. It is a no-op when already off.
func (g *Guard) Disable(ctx context.Context) error {
	on, err := g.Enabled(ctx)
	if err != nil || !on {
		return err
	}
	return g.disable()
}

// Toggle flips the kill switch and returns the new state.
func (g *Guard) Toggle(ctx context.Context) (bool, error) {
	on, err := g.Enabled(ctx)
	if err != nil {
		return false, err
	}
	if on {
		return false, g.disable()
	}
	return true, g.enable()
}

func (g *Guard) enable() error {
	if err := g.Backend.Enable(); err != nil {
		return err
	}
	g.observe(true)
	g.Logger.Audit("killswitch_enable", g.Backend.Marker(), map[string]any{"backend": g.Backend.Name()})
	return nil
}

func (g *Guard) disable() error {
	if err := g.Backend.Disable(); err != nil {
		return err
	}
	g.observe(false)
	g.Logger.Audit("killswitch_disable", g.Backend.Marker(), map[string]any{"backend": g.Backend.Name()})
	return nil
}
