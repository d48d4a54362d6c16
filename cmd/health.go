package cmd

import (
	"time"

	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/health"
	"grimm.is/tornet/internal/probe"
)

// HealthChecker registers the checks served on /healthz during long runs.
func (a *App) HealthChecker() *health.Checker {
	socks := brand.SocksAddr
	if p, ok := a.Prober.(*probe.Prober); ok && p.Options.SocksAddr != "" {
		socks = p.Options.SocksAddr
	}

	c := health.NewChecker()
	c.Register("tor", health.CheckService(a.Service))
	c.Register("socks", health.CheckTCP(socks, 2*time.Second))
	c.Register("state_dir", health.CheckWritable(a.Paths.StateDir))
	return c
}
