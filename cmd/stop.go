package cmd

import (
	"context"

	"grimm.is/tornet/internal/brand"
)

// RunStop restores the default Tor configuration and terminates Tor and
// tornet processes.
func (a *App) RunStop(ctx context.Context) error {
	if err := a.Policy.RestoreDefault(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.Logger.Warn("could not restore default Tor configuration", "error", err)
	}

	n := a.Procs.Sweep(brand.DaemonName, brand.LowerName)
	a.Logger.Debug("process sweep", "signalled", n)
	a.print(a.Theme.Success("Tor services and " + brand.LowerName + " processes stopped."))
	return nil
}

// RunRestoreDefault removes the exit region and restarts Tor on its default
// configuration.
func (a *App) RunRestoreDefault(ctx context.Context) error {
	if err := a.Policy.RestoreDefault(ctx); err != nil {
		return err
	}
	a.print(a.Theme.Success("Restored default Tor configuration"))
	return nil
}
