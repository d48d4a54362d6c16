package cmd

import (
	"context"
	"time"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/policy"
	"grimm.is/tornet/internal/rotation"
	"grimm.is/tornet/internal/scheduler"
)

// InitialWait gives Tor time to build circuits after the service starts.
const InitialWait = 5 * time.Second

// RotateOptions are the inputs of the rotation actions.
type RotateOptions struct {
	Interval string
	Count    int
	Region   string
	// Schedule is a duration literal such as "30m".
	Schedule string
	// Cron is a five-field cron expression; used when Schedule is empty.
	Cron string
}

func (a *App) region(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	return policy.NormalizeRegion(raw)
}

func (a *App) reapply() bool {
	return a.Config != nil && a.Config.ReapplyRegion
}

// RunChange rotates once.
func (a *App) RunChange(ctx context.Context, opts RotateOptions) error {
	region, err := a.region(opts.Region)
	if err != nil {
		return err
	}
	if !a.JSON {
		a.print(a.Theme.Notice("Changing IP address..."))
	}
	return a.engine().Run(ctx, rotation.Run{Mode: rotation.Once, Region: region, ReapplyRegion: a.reapply()})
}

// RunSchedule rotates forever on a duration literal or cron schedule.
func (a *App) RunSchedule(ctx context.Context, opts RotateOptions) error {
	region, err := a.region(opts.Region)
	if err != nil {
		return err
	}

	var sched scheduler.Schedule
	label := opts.Schedule
	if opts.Schedule != "" {
		d, err := scheduler.ParseDuration(opts.Schedule)
		if err != nil {
			return err
		}
		sched = scheduler.Every(d)
	} else {
		sched, err = scheduler.ParseCron(opts.Cron)
		if err != nil {
			return err
		}
		label = "cron " + opts.Cron
	}

	a.Logger.Info("scheduled IP change", "every", label)
	if !a.JSON {
		a.print(a.Theme.Success("Scheduled IP change every " + label))
	}
	return a.engine().Run(ctx, rotation.Run{
		Mode:          rotation.Scheduled,
		Schedule:      sched,
		Region:        region,
		ReapplyRegion: a.reapply(),
	})
}

// RunRotate is the default action: check prerequisites, start Tor, wait for
// circuits, then rotate Count times (0 = until interrupted).
func (a *App) RunRotate(ctx context.Context, opts RotateOptions) error {
	if opts.Count < 0 {
		return apperr.Errorf(apperr.KindGeneric, "invalid count %d: use a positive number, or 0 to rotate until interrupted", opts.Count)
	}
	sched, err := scheduler.ParseInterval(opts.Interval)
	if err != nil {
		return err
	}
	region, err := a.region(opts.Region)
	if err != nil {
		return err
	}

	if !a.Service.Installed() {
		return apperr.Errorf(apperr.KindTorNotInstalled,
			"Tor is not installed. Please install Tor manually then try this command again")
	}
	if err := a.Prober.CheckConnectivity(ctx); err != nil {
		return err
	}

	if !a.JSON {
		a.print(a.Theme.Banner(brand.Version))
	}
	if err := a.Service.Start(ctx); err != nil {
		return err
	}
	a.Logger.Info("tor service started", "socks", brand.SocksAddr)
	if !a.JSON {
		a.print(a.Theme.Success("Tor service started. Please wait for Tor to establish connection."))
		a.print(a.Theme.Success("Configure your browser to use Tor proxy (" + brand.SocksAddr + ") for anonymity."))
	}

	if err := a.Clock.Sleep(ctx, InitialWait); err != nil {
		return err
	}

	run := rotation.Repeat(opts.Count, sched)
	run.Region = region
	run.ReapplyRegion = a.reapply()
	return a.engine().Run(ctx, run)
}
