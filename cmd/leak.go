package cmd

import (
	"context"
	"encoding/json"
)

// RunDNSLeakTest fetches the leak-test endpoints through Tor.
func (a *App) RunDNSLeakTest(ctx context.Context) error {
	results := a.Prober.LeakTest(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.JSON {
		return json.NewEncoder(a.Out).Encode(results)
	}
	a.print(a.Theme.LeakTest(results))
	a.print(a.Theme.Notice("For detailed DNS leak test, visit: https://dnsleaktest.com while using Tor"))
	return nil
}
