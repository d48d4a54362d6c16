package services

import (
	"context"
	"time"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/clock"
	"grimm.is/tornet/internal/host"
	"grimm.is/tornet/internal/logging"
)

const (
	// StopSettle is the pause between stopping the daemon and starting it again.
	StopSettle = 1 * time.Second
	// LaunchGrace is waited when the direct daemon launch reports failure.
	LaunchGrace = 3 * time.Second
)

var _ Service = (*Controller)(nil)

// Controller starts, stops and reloads the Tor daemon.
type Controller struct {
	Kind     Kind
	Unit     string
	Binary   string
	Env      host.Env
	Elevator *host.Elevator
	Runner   host.CommandRunner
	Procs    *host.ProcessTable
	Clock    clock.Clock
	Logger   *logging.Logger
}

// NewController detects the service manager on env and returns a Controller
// for the Tor unit.
func NewController(env host.Env, runner host.CommandRunner, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.WithComponent("services")
	}
	return &Controller{
		Kind:     Detect(env),
		Unit:     brand.ServiceName,
		Binary:   brand.DaemonName,
		Env:      env,
		Elevator: &host.Elevator{Env: env, Runner: runner},
		Runner:   runner,
		Procs:    &host.ProcessTable{Env: env, Runner: runner},
		Clock:    &clock.RealClock{},
		Logger:   logger,
	}
}

func (c *Controller) Name() string { return c.Unit }

func (c *Controller) Start(ctx context.Context) error  { return c.control(ctx, "start") }
func (c *Controller) Stop(ctx context.Context) error   { return c.control(ctx, "stop") }
func (c *Controller) Reload(ctx context.Context) error { return c.control(ctx, "reload") }

// Restart stops the daemon, settles, then starts it on its default
// configuration.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	if err := c.Clock.Sleep(ctx, StopSettle); err != nil {
		return err
	}
	return c.Start(ctx)
}

// control runs one service manager action. A missing manager or missing
// privilege is fatal; a failing control command is only logged, so callers
// must re-probe instead of trusting the result.
func (c *Controller) control(ctx context.Context, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, args, ok := c.Kind.Command(action, c.Unit)
	if !ok {
		return apperr.Errorf(apperr.KindNoServiceManager,
			"no supported service manager found (systemctl or service)")
	}

	cmd, argv, err := c.Elevator.Wrap(name, args...)
	if err != nil {
		return err
	}
	if err := c.Runner.Run(cmd, argv...); err != nil {
		c.Logger.Warn("service control failed", "action", action, "unit", c.Unit, "error", err)
		return nil
	}
	c.Logger.Debug("service control", "action", action, "unit", c.Unit, "manager", c.Kind.String())
	return nil
}

// RunWithConfig stops the managed daemon and launches it directly on torrc.
func (c *Controller) RunWithConfig(ctx context.Context, torrc string) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	if err := c.Clock.Sleep(ctx, StopSettle); err != nil {
		return err
	}

	if err := c.Runner.Run(c.Binary, "-f", torrc, "--RunAsDaemon", "1"); err != nil {
		c.Logger.Info("starting tor with custom configuration", "torrc", torrc, "error", err)
		return c.Clock.Sleep(ctx, LaunchGrace)
	}
	c.Logger.Info("tor launched with custom configuration", "torrc", torrc)
	return nil
}

// Installed reports whether the daemon binary is in PATH.
func (c *Controller) Installed() bool {
	return host.Has(c.Env, c.Binary)
}

// Running reports whether a daemon process exists.
func (c *Controller) Running() bool {
	return c.Procs.Running(c.Binary)
}

// State probes the host.
func (c *Controller) State() ServiceState {
	return ServiceState{
		TorInstalled: c.Installed(),
		TorRunning:   c.Running(),
		Manager:      c.Kind,
	}
}

// Status implements Service.
func (c *Controller) Status() ServiceStatus {
	st := ServiceStatus{Name: c.Unit, Running: c.Running()}
	if c.Kind == KindNone {
		st.Error = "no supported service manager"
	}
	return st
}
