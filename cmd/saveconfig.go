package cmd

import (
	"grimm.is/tornet/internal/config"
)

// SaveConfig writes the effective configuration to a.ConfigPath. Failure is
// only logged.
func (a *App) SaveConfig() {
	if err := config.SaveFile(a.ConfigPath, a.Config); err != nil {
		a.Logger.Warn("could not save config", "path", a.ConfigPath, "error", err)
		return
	}
	a.Logger.Info("config saved", "path", a.ConfigPath)
}
