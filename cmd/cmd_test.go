package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/clock"
	"grimm.is/tornet/internal/config"
	"grimm.is/tornet/internal/health"
	"grimm.is/tornet/internal/host"
	"grimm.is/tornet/internal/logging"
	"grimm.is/tornet/internal/pkgmgr"
	"grimm.is/tornet/internal/policy"
	"grimm.is/tornet/internal/probe"
	"grimm.is/tornet/internal/services"
	"grimm.is/tornet/internal/ui"
)

type fakeProber struct {
	ips     []string
	calls   int
	geo     probe.Result
	info    map[string]any
	leaks   []probe.LeakResult
	connErr error
}

func (f *fakeProber) CurrentAddress(ctx context.Context) probe.Result {
	f.calls++
	if f.calls > len(f.ips) {
		return probe.Result{}
	}
	return probe.Result{IP: f.ips[f.calls-1]}
}

func (f *fakeProber) AddressWithGeo(ctx context.Context) probe.Result { return f.geo }

func (f *fakeProber) IPInfo(ctx context.Context, ip string) map[string]any { return f.info }

func (f *fakeProber) LeakTest(ctx context.Context) []probe.LeakResult { return f.leaks }

func (f *fakeProber) CheckConnectivity(ctx context.Context) error { return f.connErr }

type fakeSweeper struct{ patterns []string }

func (f *fakeSweeper) Sweep(patterns ...string) int {
	f.patterns = append(f.patterns, patterns...)
	return 0
}

type fakeGuard struct {
	on  bool
	err error
}

func (f *fakeGuard) Toggle(ctx context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.on = !f.on
	return f.on, nil
}

type testApp struct {
	*App
	out    *bytes.Buffer
	runner *host.MockCommandRunner
	prober *fakeProber
	clock  *clock.MockClock
	procs  *fakeSweeper
}

// systemdHost has tor, systemd and pgrep, running as root.
func systemdHost() *host.StubEnv {
	return &host.StubEnv{
		Binaries: map[string]string{
			"tor":       "/usr/bin/tor",
			"systemctl": "/usr/bin/systemctl",
			"pgrep":     "/usr/bin/pgrep",
		},
		Paths: map[string]bool{"/run/systemd/system": true},
		EUID:  0,
	}
}

func newTestApp(t *testing.T, env *host.StubEnv) *testApp {
	t.Helper()
	paths := brand.PathsIn(t.TempDir())
	runner := new(host.MockCommandRunner)
	clk := clock.NewMockClock(time.Unix(1700000000, 0))
	logger := logging.Discard()

	svc := services.NewController(env, runner, logger)
	svc.Clock = clk
	svc.Procs.ProcRoot = t.TempDir()
	store := policy.NewStore(paths, svc, logger)
	store.Clock = clk

	out := &bytes.Buffer{}
	prober := &fakeProber{}
	procs := &fakeSweeper{}
	app := &App{
		Config:     &config.Config{},
		ConfigPath: paths.ConfigFile,
		Paths:      paths,
		Env:        env,
		Service:    svc,
		Policy:     store,
		Prober:     prober,
		Procs:      procs,
		Installer:  pkgmgr.NewInstaller(env, runner, logger),
		Clock:      clk,
		Logger:     logger,
		Out:        out,
		Theme:      ui.NewTheme(out, true),
	}
	return &testApp{App: app, out: out, runner: runner, prober: prober, clock: clk, procs: procs}
}

func jsonLines(t *testing.T, s string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestStatusWithoutTor(t *testing.T) {
	app := newTestApp(t, &host.StubEnv{})

	s := app.Status(context.Background())
	assert.False(t, s.TorInstalled)
	assert.False(t, s.TorRunning)
	assert.Empty(t, s.IP)
	assert.Equal(t, policy.AutoLabel, s.ConfiguredCountry)
	assert.Empty(t, s.ServiceManager)

	require.NoError(t, app.RunStatus(context.Background()))
	assert.Contains(t, app.out.String(), " Current IP: Unknown\n")
	assert.Contains(t, app.out.String(), " Service Manager: Unknown\n")
	app.runner.AssertExpectations(t)
}

func TestStatusRunningWithRegion(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.runner.On("Run", "pgrep", "-x", "tor").Return(nil)
	app.prober.geo = probe.Result{IP: "185.220.101.7", CountryCode: "NL"}
	require.NoError(t, os.WriteFile(app.Paths.RegionFile, []byte("NL"), 0600))
	app.JSON = true

	require.NoError(t, app.RunStatus(context.Background()))

	var got ui.Status
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &got))
	assert.True(t, got.TorInstalled)
	assert.True(t, got.TorRunning)
	assert.Equal(t, "185.220.101.7", got.IP)
	assert.Equal(t, "Netherlands", got.CountryName)
	assert.Equal(t, "NL", got.ConfiguredCountry)
	assert.Equal(t, "systemctl", got.ServiceManager)
}

func TestChangeOnceJSON(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.runner.On("Run", "systemctl", "reload", "tor").Return(nil)
	app.prober.ips = []string{"1.2.3.4"}
	app.JSON = true

	require.NoError(t, app.RunChange(context.Background(), RotateOptions{}))

	events := jsonLines(t, app.out.String())
	require.Len(t, events, 1)
	assert.Equal(t, "ip_change", events[0]["action"])
	assert.Equal(t, "1.2.3.4", events[0]["ip"])
	assert.Equal(t, []time.Duration{2 * time.Second}, app.clock.Sleeps())
}

func TestChangeWithRegion(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.runner.On("Run", "systemctl", "stop", "tor").Return(nil)
	app.runner.On("Run", "tor", "-f", app.Paths.TorrcFile, "--RunAsDaemon", "1").Return(nil)
	app.runner.On("Run", "systemctl", "reload", "tor").Return(nil)
	app.prober.ips = []string{"1.2.3.4"}

	require.NoError(t, app.RunChange(context.Background(), RotateOptions{Region: "de"}))

	data, err := os.ReadFile(app.Paths.TorrcFile)
	require.NoError(t, err)
	assert.Equal(t, "ExitNodes {DE}\nStrictNodes 1\n", string(data))
	assert.Equal(t, "DE", app.Policy.CurrentRegion())
	assert.Contains(t, app.out.String(), "[+] IP changed to 1.2.3.4")
}

func TestChangeInvalidRegion(t *testing.T) {
	app := newTestApp(t, systemdHost())
	err := app.RunChange(context.Background(), RotateOptions{Region: "germany"})
	assert.Equal(t, 16, apperr.ExitCode(err))
	app.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestRotatePreconditions(t *testing.T) {
	t.Run("bad interval first", func(t *testing.T) {
		app := newTestApp(t, &host.StubEnv{})
		err := app.RunRotate(context.Background(), RotateOptions{Interval: "abc", Count: 1})
		assert.Equal(t, 8, apperr.ExitCode(err))
	})

	t.Run("negative count", func(t *testing.T) {
		app := newTestApp(t, systemdHost())
		err := app.RunRotate(context.Background(), RotateOptions{Interval: "60", Count: -1})
		require.Error(t, err)
		assert.Equal(t, 1, apperr.ExitCode(err))
		app.runner.AssertNotCalled(t, "Run", "systemctl", "start", "tor")
		assert.Empty(t, app.clock.Sleeps())
	})

	t.Run("tor not installed", func(t *testing.T) {
		app := newTestApp(t, &host.StubEnv{})
		err := app.RunRotate(context.Background(), RotateOptions{Interval: "60", Count: 1})
		assert.Equal(t, 10, apperr.ExitCode(err))
	})

	t.Run("no internet", func(t *testing.T) {
		app := newTestApp(t, systemdHost())
		app.prober.connErr = apperr.Errorf(apperr.KindNoInternet, "internet connection required but not available")
		err := app.RunRotate(context.Background(), RotateOptions{Interval: "60", Count: 1})
		assert.Equal(t, 9, apperr.ExitCode(err))
		app.runner.AssertNotCalled(t, "Run", "systemctl", "start", "tor")
	})
}

func TestRotateCounted(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.runner.On("Run", "systemctl", "start", "tor").Return(nil)
	app.runner.On("Run", "systemctl", "reload", "tor").Return(nil)
	app.prober.ips = []string{"1.1.1.1", "2.2.2.2"}
	app.JSON = true

	require.NoError(t, app.RunRotate(context.Background(), RotateOptions{Interval: "30", Count: 2}))

	events := jsonLines(t, app.out.String())
	require.Len(t, events, 2)
	assert.Equal(t, "2.2.2.2", events[1]["ip"])
	assert.Equal(t, float64(2), events[1]["count"])
	assert.Equal(t, []time.Duration{
		InitialWait,
		30 * time.Second, 2 * time.Second,
		30 * time.Second, 2 * time.Second,
	}, app.clock.Sleeps())
	app.runner.AssertNumberOfCalls(t, "Run", 3)
}

func TestRotateCancelled(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.runner.On("Run", "systemctl", "start", "tor").Return(nil)
	ctx, cancel := context.WithCancel(context.Background())
	app.runner.On("Run", "systemctl", "reload", "tor").Run(func(mock.Arguments) { cancel() }).Return(nil)

	err := app.RunRotate(ctx, RotateOptions{Interval: "1", Count: 0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduleInvalid(t *testing.T) {
	app := newTestApp(t, systemdHost())
	err := app.RunSchedule(context.Background(), RotateOptions{Schedule: "5x"})
	assert.Equal(t, 12, apperr.ExitCode(err))
}

func TestStop(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.runner.On("Run", "systemctl", "stop", "tor").Return(nil)
	app.runner.On("Run", "systemctl", "start", "tor").Return(nil)
	require.NoError(t, os.WriteFile(app.Paths.RegionFile, []byte("US"), 0600))
	require.NoError(t, os.WriteFile(app.Paths.TorrcFile, []byte(policy.Fragment("US")), 0600))

	require.NoError(t, app.RunStop(context.Background()))

	assert.NoFileExists(t, app.Paths.RegionFile)
	assert.NoFileExists(t, app.Paths.TorrcFile)
	assert.Equal(t, []string{"tor", "tornet"}, app.procs.patterns)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, app.clock.Sleeps())
	assert.Contains(t, app.out.String(), "processes stopped")
}

func TestStopWithoutServiceManagerStillSweeps(t *testing.T) {
	app := newTestApp(t, &host.StubEnv{})
	require.NoError(t, app.RunStop(context.Background()))
	assert.Equal(t, []string{"tor", "tornet"}, app.procs.patterns)
}

func TestRestoreDefaultWithoutServiceManager(t *testing.T) {
	app := newTestApp(t, &host.StubEnv{})
	err := app.RunRestoreDefault(context.Background())
	assert.Equal(t, 3, apperr.ExitCode(err))
}

func TestKillSwitch(t *testing.T) {
	app := newTestApp(t, systemdHost())
	guard := &fakeGuard{}
	app.NewGuard = func() (KillSwitch, error) { return guard, nil }

	require.NoError(t, app.RunKillSwitch(context.Background()))
	assert.Contains(t, app.out.String(), "Kill switch enabled")
	require.NoError(t, app.RunKillSwitch(context.Background()))
	assert.Contains(t, app.out.String(), "Kill switch disabled")

	guard.err = apperr.Errorf(apperr.KindRootRequired, "kill switch requires root privileges")
	err := app.RunKillSwitch(context.Background())
	assert.Equal(t, 14, apperr.ExitCode(err))
}

func TestIPJSONMergesInfo(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.prober.ips = []string{"9.9.9.9"}
	app.prober.info = map[string]any{"status": "success", "country": "Switzerland"}
	app.JSON = true

	require.NoError(t, app.RunIP(context.Background()))
	got := jsonLines(t, app.out.String())[0]
	assert.Equal(t, "9.9.9.9", got["ip"])
	assert.Equal(t, "Switzerland", got["country"])
}

func TestIPUnknownPrintsNothing(t *testing.T) {
	for _, jsonOut := range []bool{false, true} {
		app := newTestApp(t, systemdHost())
		app.JSON = jsonOut
		require.NoError(t, app.RunIP(context.Background()))
		assert.Empty(t, app.out.String())
	}
}

func TestListCountriesJSON(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.JSON = true
	require.NoError(t, app.RunListCountries())

	var list []policy.Country
	require.NoError(t, json.Unmarshal(app.out.Bytes(), &list))
	assert.Equal(t, "US", list[0].Code)
	assert.Equal(t, "AUTO", list[len(list)-1].Code)
}

func TestDNSLeakTest(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.prober.leaks = []probe.LeakResult{{URL: "https://ipleak.net", Reachable: true, Status: 200}}
	require.NoError(t, app.RunDNSLeakTest(context.Background()))
	assert.Contains(t, app.out.String(), " https://ipleak.net: Accessible via Tor ✓\n")
}

func TestLog(t *testing.T) {
	t.Run("creates file with header", func(t *testing.T) {
		app := newTestApp(t, systemdHost())
		require.NoError(t, app.RunLog(context.Background(), false))
		assert.Contains(t, app.out.String(), "TorNet Log File - Created")
	})

	t.Run("empty", func(t *testing.T) {
		app := newTestApp(t, systemdHost())
		require.NoError(t, os.WriteFile(app.Paths.LogFile, nil, 0600))
		require.NoError(t, app.RunLog(context.Background(), false))
		assert.Contains(t, app.out.String(), "Log file is empty")
	})

	t.Run("unreadable", func(t *testing.T) {
		app := newTestApp(t, systemdHost())
		require.NoError(t, os.MkdirAll(app.Paths.LogFile, 0700))
		err := app.RunLog(context.Background(), false)
		assert.Equal(t, 15, apperr.ExitCode(err))
	})
}

func TestAutoFixInstallsTor(t *testing.T) {
	env := &host.StubEnv{Binaries: map[string]string{"apt-get": "/usr/bin/apt-get"}, EUID: 0}
	app := newTestApp(t, env)
	app.runner.On("Run", "apt-get", "update").Return(nil)
	app.runner.On("Run", "apt-get", "install", "-y", "tor").Return(nil)

	require.NoError(t, app.RunAutoFix(context.Background()))
	app.runner.AssertExpectations(t)
	assert.Contains(t, app.out.String(), "Auto-fix complete")
}

func TestAutoFixWithoutPackageManager(t *testing.T) {
	app := newTestApp(t, &host.StubEnv{})
	err := app.RunAutoFix(context.Background())
	assert.Equal(t, 4, apperr.ExitCode(err))
}

func TestSaveConfig(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.ConfigPath = filepath.Join(t.TempDir(), "nested", "config.json")
	app.Config = &config.Config{Interval: "30-90", Count: config.IntPtr(0), Country: "SE"}

	app.SaveConfig()

	got, err := config.LoadFile(app.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, app.Config, got)
}

func TestSaveConfigFailureIsNotFatal(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.ConfigPath = filepath.Join(t.TempDir(), "config.ini")
	app.SaveConfig()
	assert.NoFileExists(t, app.ConfigPath)
}


func TestHealthChecker(t *testing.T) {
	app := newTestApp(t, systemdHost())
	app.runner.On("Run", "pgrep", "-x", "tor").Return(errors.New("exit status 1"))

	c := app.HealthChecker()
	assert.Equal(t, []string{"socks", "state_dir", "tor"}, c.Names())

	report := c.Check(context.Background())
	assert.Equal(t, health.StatusUnhealthy, report.Checks["tor"].Status)
	assert.Equal(t, health.StatusHealthy, report.Checks["state_dir"].Status)
}
