package cmd

import (
	"context"
	"encoding/json"
)

// RunIP prints the current address, with ip-api details in JSON mode.
func (a *App) RunIP(ctx context.Context) error {
	res := a.Prober.CurrentAddress(ctx)
	if !res.Known() {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Logger.Warn("could not determine current IP address")
		return nil
	}

	if !a.JSON {
		a.print(a.Theme.Success("Your IP address is: " + res.IP))
		return nil
	}

	out := map[string]any{"ip": res.IP}
	for k, v := range a.Prober.IPInfo(ctx, res.IP) {
		out[k] = v
	}
	return json.NewEncoder(a.Out).Encode(out)
}
