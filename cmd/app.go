package cmd

import (
	"context"
	"io"
	"os"

	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/clock"
	"grimm.is/tornet/internal/config"
	"grimm.is/tornet/internal/firewall"
	"grimm.is/tornet/internal/host"
	"grimm.is/tornet/internal/i18n"
	"grimm.is/tornet/internal/logging"
	"grimm.is/tornet/internal/metrics"
	"grimm.is/tornet/internal/pkgmgr"
	"grimm.is/tornet/internal/policy"
	"grimm.is/tornet/internal/probe"
	"grimm.is/tornet/internal/rotation"
	"grimm.is/tornet/internal/services"
	"grimm.is/tornet/internal/ui"
)

// Printer is the global message printer for the CLI
var Printer = i18n.NewCLIPrinter()

// Prober is the part of *probe.Prober the actions use.
type Prober interface {
	CurrentAddress(ctx context.Context) probe.Result
	AddressWithGeo(ctx context.Context) probe.Result
	IPInfo(ctx context.Context, ip string) map[string]any
	LeakTest(ctx context.Context) []probe.LeakResult
	CheckConnectivity(ctx context.Context) error
}

// Sweeper terminates processes by command line pattern.
type Sweeper interface {
	Sweep(patterns ...string) int
}

// KillSwitch toggles the firewall guard.
type KillSwitch interface {
	Toggle(ctx context.Context) (bool, error)
}

// App holds the components one invocation needs.
type App struct {
	Config     *config.Config
	ConfigPath string
	Paths      brand.Paths

	Env       host.Env
	Service   *services.Controller
	Policy    *policy.Store
	Prober    Prober
	Procs     Sweeper
	Installer *pkgmgr.Installer
	Metrics   *metrics.Registry
	// NewGuard builds the kill switch on demand; the nftables backend opens
	// a netlink socket.
	NewGuard func() (KillSwitch, error)

	Clock  clock.Clock
	Logger *logging.Logger
	Out    io.Writer
	Theme  *ui.Theme
	JSON   bool
}

// NewApp wires the real host components from cfg.
func NewApp(cfg *config.Config, configPath string, paths brand.Paths, jsonOut bool, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	env := host.System{}
	runner := host.DefaultCommandRunner
	reg := metrics.New()

	svc := services.NewController(env, runner, logger.WithComponent("services"))
	store := policy.NewStore(paths, svc, logger.WithComponent("policy"))

	opts := probe.DefaultOptions().WithConfig(cfg.ProbeOrEmpty())
	prober, err := probe.New(opts, svc.Running, logger.WithComponent("probe"))
	if err != nil {
		return nil, err
	}
	prober.Observer = reg

	fwCfg := cfg.FirewallOrEmpty()
	newGuard := func() (KillSwitch, error) {
		g, err := firewall.NewGuard(fwCfg, env, runner, logger.WithComponent("firewall"))
		if err != nil {
			return nil, err
		}
		g.Observer = reg
		return g, nil
	}

	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		Paths:      paths,
		Env:        env,
		Service:    svc,
		Policy:     store,
		Prober:     prober,
		Procs:      host.NewProcessTable(),
		Installer:  pkgmgr.NewInstaller(env, runner, logger.WithComponent("pkgmgr")),
		Metrics:    reg,
		NewGuard:   newGuard,
		Clock:      &clock.RealClock{},
		Logger:     logger,
		Out:        os.Stdout,
		Theme:      ui.NewTheme(os.Stdout, ui.Plain(jsonOut)),
		JSON:       jsonOut,
	}, nil
}

func (a *App) print(s string) {
	io.WriteString(a.Out, s)
}

// engine returns a rotation engine reporting to a.Out.
func (a *App) engine() *rotation.Engine {
	var rep rotation.Reporter
	if a.JSON {
		rep = rotation.NewJSONReporter(a.Out)
	} else {
		rep = &rotation.TextReporter{W: a.Out, P: Printer}
	}
	e := &rotation.Engine{
		Service:  a.Service,
		Policy:   a.Policy,
		Prober:   a.Prober,
		Reporter: rep,
		Clock:    a.Clock,
		Logger:   a.Logger.WithComponent("rotation"),
	}
	if a.Metrics != nil {
		e.Recorder = a.Metrics
	}
	return e
}
