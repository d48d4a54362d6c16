package cmd

import (
	"context"
	"encoding/json"
)

// RunKillSwitch flips the firewall kill switch.
func (a *App) RunKillSwitch(ctx context.Context) error {
	guard, err := a.NewGuard()
	if err != nil {
		return err
	}
	on, err := guard.Toggle(ctx)
	if err != nil {
		return err
	}

	if a.JSON {
		return json.NewEncoder(a.Out).Encode(map[string]bool{"kill_switch": on})
	}
	if on {
		a.print(a.Theme.Success("Kill switch enabled - All traffic must go through Tor"))
	} else {
		a.print(a.Theme.Success("Kill switch disabled"))
	}
	return nil
}
