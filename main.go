package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/tornet/cmd"
	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/config"
	"grimm.is/tornet/internal/health"
	"grimm.is/tornet/internal/logging"
	"grimm.is/tornet/internal/ui"
)

var printer = cmd.Printer

// cliFlags mirrors the command line. Flags are accepted with one or two
// dashes.
type cliFlags struct {
	ip, change, jsonOut, killSwitch, leakTest   bool
	showLog, follow, status, restore, stop      bool
	listCountries, autoFix, version, saveConfig bool

	interval, country, schedule, configPath, metricsListen string
	count                                                  int

	// set records which flags appeared on the command line.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: map[string]bool{}}
	fs := flag.NewFlagSet(brand.LowerName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&f.ip, "ip", false, "Display current IP address and exit")
	fs.BoolVar(&f.change, "change", false, "Change IP once")
	fs.StringVar(&f.interval, "interval", config.DefaultInterval, `Seconds between IP changes, or a range like "30-120"`)
	fs.IntVar(&f.count, "count", config.DefaultCount, "Number of IP changes; 0 changes indefinitely")
	fs.StringVar(&f.schedule, "schedule", "", `Change IP forever on a fixed period ("30s", "5m", "2h", "1d")`)
	fs.StringVar(&f.country, "country", "", `Use exit nodes in one country ("us", "de", "auto")`)
	fs.BoolVar(&f.jsonOut, "json", false, "Output in JSON format")
	fs.BoolVar(&f.killSwitch, "kill-switch", false, "Toggle the firewall kill switch")
	fs.BoolVar(&f.leakTest, "dns-leak-test", false, "Test for DNS leaks")
	fs.BoolVar(&f.showLog, "log", false, "Show log file")
	fs.BoolVar(&f.follow, "follow", false, "Follow log file (use with --log)")
	fs.BoolVar(&f.status, "status", false, "Show current status")
	fs.BoolVar(&f.restore, "restore-default", false, "Restore default Tor configuration")
	fs.BoolVar(&f.stop, "stop", false, "Stop all Tor services and tornet processes")
	fs.BoolVar(&f.listCountries, "list-countries", false, "List available country codes")
	fs.BoolVar(&f.autoFix, "auto-fix", false, "Install missing dependencies")
	fs.StringVar(&f.configPath, "config", "", "Use custom config file")
	fs.StringVar(&f.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")
	fs.BoolVar(&f.saveConfig, "save-config", false, "Write the effective config to --config and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "%s - %s\n\nUsage: %s [options]\n\n", brand.Name, brand.Description, brand.LowerName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// overlay applies explicitly set flags on top of the file configuration.
func overlay(cfg *config.Config, f *cliFlags) {
	if f.set["interval"] {
		cfg.Interval = f.interval
	}
	if f.set["count"] {
		cfg.Count = config.IntPtr(f.count)
	}
	if f.set["country"] {
		cfg.Country = f.country
	}
	if f.set["schedule"] {
		cfg.Schedule = f.schedule
	}
	if f.set["json"] {
		cfg.JSON = f.jsonOut
	}
	if f.set["metrics-listen"] {
		cfg.MetricsListen = f.metricsListen
	}
}

// action picks the single action to run, in order of precedence.
func action(f *cliFlags, cfg *config.Config) string {
	switch {
	case f.stop:
		return "stop"
	case f.restore:
		return "restore-default"
	case f.listCountries:
		return "list-countries"
	case f.status:
		return "status"
	case f.ip:
		return "ip"
	case f.change:
		return "change"
	case f.leakTest:
		return "dns-leak-test"
	case f.killSwitch:
		return "kill-switch"
	case f.showLog:
		return "log"
	case cfg.Schedule != "" || cfg.Cron != "":
		return "schedule"
	case f.autoFix:
		return "auto-fix"
	default:
		return "rotate"
	}
}

// loadConfig reads the env file and the config file. Problems are warnings.
func loadConfig(f *cliFlags, logger *logging.Logger) (*config.Config, string, brand.Paths) {
	if err := config.LoadEnvFile(brand.DefaultPaths().EnvFile); err != nil {
		logger.Warn("could not load env file", "error", err)
	}
	paths := brand.DefaultPaths()

	path := f.configPath
	if path == "" {
		path = paths.ConfigFile
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		logger.Warn("could not load config file", "path", path, "error", err)
	}
	if err := config.ApplyEnv(cfg, brand.ConfigEnvPrefix, os.LookupEnv); err != nil {
		logger.Warn("ignoring invalid environment override", "error", err)
	}
	overlay(cfg, f)
	return cfg, path, paths
}

func newLogger(cfg *config.Config, paths brand.Paths, bootstrap *logging.Logger) (*logging.Logger, io.Closer) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		bootstrap.Warn("invalid log_level, using info", "error", err)
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	file, err := logging.OpenLogFile(paths.LogFile)
	if err != nil {
		bootstrap.Warn("could not open log file", "path", paths.LogFile, "error", err)
		bootstrap.SetLevel(level)
		return bootstrap, io.NopCloser(nil)
	}
	lc.Output = logging.Tee(os.Stderr, file)
	return logging.New(lc), file
}

func dispatch(ctx context.Context, app *cmd.App, name string, f *cliFlags, cfg *config.Config) error {
	opts := cmd.RotateOptions{
		Interval: cfg.Interval,
		Count:    cfg.CountOr(config.DefaultCount),
		Region:   cfg.Country,
		Schedule: cfg.Schedule,
		Cron:     cfg.Cron,
	}
	if opts.Interval == "" {
		opts.Interval = config.DefaultInterval
	}

	switch name {
	case "stop":
		return app.RunStop(ctx)
	case "restore-default":
		return app.RunRestoreDefault(ctx)
	case "list-countries":
		return app.RunListCountries()
	case "status":
		return app.RunStatus(ctx)
	case "ip":
		return app.RunIP(ctx)
	case "change":
		return app.RunChange(ctx, opts)
	case "dns-leak-test":
		return app.RunDNSLeakTest(ctx)
	case "kill-switch":
		return app.RunKillSwitch(ctx)
	case "log":
		return app.RunLog(ctx, f.follow)
	case "schedule":
		return app.RunSchedule(ctx, opts)
	case "auto-fix":
		return app.RunAutoFix(ctx)
	default:
		return app.RunRotate(ctx, opts)
	}
}

func run(args []string) int {
	f, err := parseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return apperr.KindGeneric.ExitCode()
	}
	if f.version {
		printer.Printf("%s %s\n", brand.LowerName, brand.Version)
		return 0
	}

	logging.SetPrefix(brand.LowerName)
	bootstrap := logging.New(logging.DefaultConfig())
	cfg, configPath, paths := loadConfig(f, bootstrap)

	logger, closer := newLogger(cfg, paths, bootstrap)
	defer closer.Close()
	logging.SetDefault(logger)

	if f.saveConfig {
		app := &cmd.App{Config: cfg, ConfigPath: configPath, Logger: logger}
		app.SaveConfig()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app, err := cmd.NewApp(cfg, configPath, paths, cfg.JSON, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return apperr.ExitCode(err)
	}

	if cfg.MetricsListen != "" {
		checker := app.HealthChecker()
		app.Metrics.Handle("/healthz", checker.Handler())
		app.Metrics.Handle("/livez", health.LivenessHandler())
		go func() {
			if err := app.Metrics.Serve(ctx, cfg.MetricsListen, logger.WithComponent("metrics")); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	name := action(f, cfg)
	logger.Debug("dispatching", "action", name)
	err = dispatch(ctx, app, name, f, cfg)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		theme := ui.NewTheme(os.Stderr, ui.Plain(cfg.JSON))
		io.WriteString(os.Stderr, "\n"+theme.Failure("Program terminated by user."))
		return 0
	default:
		logger.Error(err.Error(), "exit_code", apperr.ExitCode(err))
		return apperr.ExitCode(err)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}
