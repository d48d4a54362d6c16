package policy

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/clock"
	"grimm.is/tornet/internal/logging"
)

type fakeDaemon struct {
	calls []string
}

func (f *fakeDaemon) Start(ctx context.Context) error   { f.calls = append(f.calls, "start"); return nil }
func (f *fakeDaemon) Stop(ctx context.Context) error    { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeDaemon) Restart(ctx context.Context) error { f.calls = append(f.calls, "restart"); return nil }
func (f *fakeDaemon) RunWithConfig(ctx context.Context, torrc string) error {
	f.calls = append(f.calls, "run:"+torrc)
	return nil
}

func newTestStore(t *testing.T) (*Store, *fakeDaemon, *clock.MockClock) {
	t.Helper()
	d := &fakeDaemon{}
	mc := clock.NewMockClock(time.Unix(0, 0))
	s := NewStore(brand.PathsIn(t.TempDir()), d, logging.Discard())
	s.Clock = mc
	return s, d, mc
}

func TestNormalizeRegion(t *testing.T) {
	for in, want := range map[string]string{"us": "US", " De ": "DE", "AUTO": Auto, "auto": Auto} {
		got, err := NormalizeRegion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "usa", "u", "1a", "ü1", "{US}"} {
		_, err := NormalizeRegion(in)
		require.Error(t, err, in)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidRegion), in)
	}
}

func TestRegionMarkerRoundTrip(t *testing.T) {
	s, d, mc := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, AutoLabel, s.CurrentRegion())

	require.NoError(t, s.Apply(ctx, "us"))
	assert.Equal(t, "US", s.CurrentRegion())
	assert.Equal(t, RotationPolicy{Region: "US", StrictNodes: true}, s.Policy())
	assert.Equal(t, "US", s.PinnedRegion())

	frag, err := os.ReadFile(s.Paths.TorrcFile)
	require.NoError(t, err)
	assert.Equal(t, "ExitNodes {US}\nStrictNodes 1\n", string(frag))

	info, err := os.Stat(s.Paths.TorrcFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, s.RestoreDefault(ctx))
	assert.Equal(t, AutoLabel, s.CurrentRegion())
	assert.Equal(t, RotationPolicy{Region: Auto}, s.Policy())
	assert.Empty(t, s.PinnedRegion())
	assert.NoFileExists(t, s.Paths.TorrcFile)

	assert.Equal(t, []string{"run:" + s.Paths.TorrcFile, "stop", "start"}, d.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, mc.Sleeps())
}

func TestApplyAutoClearsAndRestarts(t *testing.T) {
	s, d, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Apply(ctx, "de"))
	require.NoError(t, s.Apply(ctx, "Auto"))

	assert.Equal(t, AutoLabel, s.CurrentRegion())
	assert.NoFileExists(t, s.Paths.RegionFile)
	assert.Equal(t, "restart", d.calls[len(d.calls)-1])
}

func TestApplyInvalidRegionTouchesNothing(t *testing.T) {
	s, d, _ := newTestStore(t)

	err := s.Apply(context.Background(), "germany")
	assert.Equal(t, 16, apperr.ExitCode(err))
	assert.Empty(t, d.calls)
	assert.NoFileExists(t, s.Paths.TorrcFile)
}

func TestApplyWriteFailure(t *testing.T) {
	d := &fakeDaemon{}
	dir := t.TempDir()
	blocker := dir + "/state"
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0600))

	s := NewStore(brand.PathsIn(blocker), d, logging.Discard())
	err := s.Apply(context.Background(), "us")
	require.Error(t, err)
	assert.Equal(t, 1, apperr.ExitCode(err))
	assert.Empty(t, d.calls)
}

func TestRestoreDefaultWithoutFiles(t *testing.T) {
	s, d, _ := newTestStore(t)
	require.NoError(t, s.RestoreDefault(context.Background()))
	assert.Equal(t, []string{"stop", "start"}, d.calls)
}

func TestRestoreDefaultCancelled(t *testing.T) {
	s, d, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RestoreDefault(ctx), context.Canceled)
	assert.Equal(t, []string{"stop"}, d.calls)
}

func TestCurrentRegionEmptyMarker(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Paths.RegionFile, []byte("  \n"), 0600))
	assert.Equal(t, AutoLabel, s.CurrentRegion())
}

func TestCountries(t *testing.T) {
	list := Countries()
	require.Len(t, list, 22)
	assert.Equal(t, Country{"US", "United States"}, list[0])
	assert.Equal(t, "Germany", CountryName("de"))
	assert.Equal(t, "Saudi Arabia", CountryName("SA"))
	assert.Equal(t, "XY", CountryName("xy"))

	list[0].Name = "changed"
	assert.Equal(t, "United States", Countries()[0].Name)
}
