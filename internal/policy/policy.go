// Package policy persists the exit-region policy: a torrc fragment that pins
// exit nodes to one country and a marker file recording the active region.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/brand"
	"grimm.is/tornet/internal/clock"
	"grimm.is/tornet/internal/logging"
)

// Auto is the region value meaning "let Tor choose".
const Auto = "auto"

// AutoLabel is what CurrentRegion reports when no region is pinned.
const AutoLabel = "Auto (Random)"

const (
	stopSettle  = 1 * time.Second
	startSettle = 2 * time.Second
)

// RotationPolicy is the exit-region constraint in effect.
type RotationPolicy struct {
	Region      string `json:"region"`
	StrictNodes bool   `json:"strict_nodes"`
}

// Daemon is the subset of the service controller the store drives.
type Daemon interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	RunWithConfig(ctx context.Context, torrc string) error
}

// Store owns the torrc fragment and region marker files.
type Store struct {
	Paths  brand.Paths
	Daemon Daemon
	Clock  clock.Clock
	Logger *logging.Logger
}

// NewStore returns a Store writing under paths.
func NewStore(paths brand.Paths, daemon Daemon, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.WithComponent("policy")
	}
	return &Store{Paths: paths, Daemon: daemon, Clock: &clock.RealClock{}, Logger: logger}
}

// NormalizeRegion validates a region argument. "auto" in any case maps to
// Auto; two ASCII letters are upper-cased; anything else is an
// apperr.KindInvalidRegion error.
func NormalizeRegion(region string) (string, error) {
	r := strings.TrimSpace(region)
	if strings.EqualFold(r, Auto) {
		return Auto, nil
	}
	if len(r) != 2 || !isASCIILetter(r[0]) || !isASCIILetter(r[1]) {
		return "", apperr.Errorf(apperr.KindInvalidRegion,
			"invalid country code %q: use a two-letter code such as US or auto", region)
	}
	return strings.ToUpper(r), nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Fragment renders the torrc lines pinning exits to region.
func Fragment(region string) string {
	return fmt.Sprintf("ExitNodes {%s}\nStrictNodes 1\n", region)
}

// Apply pins exits to region and restarts Tor on the fragment, or, for
// Auto, removes the pin and restarts Tor on its default configuration.
func (s *Store) Apply(ctx context.Context, region string) error {
	r, err := NormalizeRegion(region)
	if err != nil {
		return err
	}

	if r == Auto {
		if err := s.clear(); err != nil {
			return err
		}
		s.Logger.Info("exit region constraint removed")
		return s.Daemon.Restart(ctx)
	}

	if err := s.write(r); err != nil {
		return fmt.Errorf("could not configure Tor country: %w", err)
	}
	s.Logger.Info("configured Tor to use exit nodes", "region", r)
	return s.Daemon.RunWithConfig(ctx, s.Paths.TorrcFile)
}

func (s *Store) write(region string) error {
	if err := os.MkdirAll(s.Paths.StateDir, 0700); err != nil {
		return err
	}
	if err := os.WriteFile(s.Paths.TorrcFile, []byte(Fragment(region)), 0600); err != nil {
		return err
	}
	return os.WriteFile(s.Paths.RegionFile, []byte(region), 0600)
}

func (s *Store) clear() error {
	for _, p := range []string{s.Paths.TorrcFile, s.Paths.RegionFile} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// RestoreDefault deletes the fragment and marker, then stops and starts Tor
// so it comes back on the system default configuration.
func (s *Store) RestoreDefault(ctx context.Context) error {
	if err := s.clear(); err != nil {
		return fmt.Errorf("could not restore default Tor configuration: %w", err)
	}
	if err := s.Daemon.Stop(ctx); err != nil {
		return err
	}
	if err := s.Clock.Sleep(ctx, stopSettle); err != nil {
		return err
	}
	if err := s.Daemon.Start(ctx); err != nil {
		return err
	}
	if err := s.Clock.Sleep(ctx, startSettle); err != nil {
		return err
	}
	s.Logger.Info("restored default Tor configuration")
	return nil
}

// CurrentRegion returns the pinned region code, or AutoLabel when the marker
// is absent or unreadable.
func (s *Store) CurrentRegion() string {
	data, err := os.ReadFile(s.Paths.RegionFile)
	if err != nil {
		return AutoLabel
	}
	r := strings.TrimSpace(string(data))
	if r == "" {
		return AutoLabel
	}
	return r
}

// Policy returns the policy implied by the marker file.
func (s *Store) Policy() RotationPolicy {
	r := s.CurrentRegion()
	if r == AutoLabel {
		return RotationPolicy{Region: Auto}
	}
	return RotationPolicy{Region: r, StrictNodes: true}
}

// PinnedRegion returns the marker region, or "" when none is pinned.
func (s *Store) PinnedRegion() string {
	if p := s.Policy(); p.Region != Auto {
		return p.Region
	}
	return ""
}
