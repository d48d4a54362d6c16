package cmd

import (
	"context"
	"encoding/json"

	"grimm.is/tornet/internal/pkgmgr"
	"grimm.is/tornet/internal/policy"
	"grimm.is/tornet/internal/services"
	"grimm.is/tornet/internal/ui"
)

// Status gathers the status view. Probe failure leaves the IP empty.
func (a *App) Status(ctx context.Context) ui.Status {
	state := a.Service.State()
	res := a.Prober.AddressWithGeo(ctx)

	s := ui.Status{
		TorInstalled:      state.TorInstalled,
		TorRunning:        state.TorRunning,
		IP:                res.IP,
		CountryCode:       res.CountryCode,
		CountryName:       res.CountryName,
		ConfiguredCountry: a.Policy.CurrentRegion(),
		ConfigFile:        a.ConfigPath,
		LogFile:           a.Paths.LogFile,
	}
	if state.Manager != services.KindNone {
		s.ServiceManager = state.Manager.String()
	}
	if pm := pkgmgr.Detect(a.Env); !pm.IsNone() {
		s.PackageManager = pm.String()
	}
	if s.CountryCode != "" && s.CountryName == "" {
		s.CountryName = policy.CountryName(s.CountryCode)
	}
	return s
}

// RunStatus prints the status view.
func (a *App) RunStatus(ctx context.Context) error {
	s := a.Status(ctx)
	if a.JSON {
		return json.NewEncoder(a.Out).Encode(s)
	}
	a.print(a.Theme.Status(s))
	return nil
}
