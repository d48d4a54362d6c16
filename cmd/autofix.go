package cmd

import (
	"context"

	"grimm.is/tornet/internal/brand"
)

// RunAutoFix installs Tor through the detected package manager when it is
// missing.
func (a *App) RunAutoFix(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.print(a.Theme.Success("Running auto-fix..."))
	if err := a.Installer.Ensure(brand.DaemonName, brand.DaemonName); err != nil {
		return err
	}
	a.print(a.Theme.Success("Auto-fix complete"))
	return nil
}
