// Package rotation drives identity rotation cycles: apply the exit policy,
// reload the daemon, wait for circuits to settle, observe the new address
// and report it.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/clock"
	"grimm.is/tornet/internal/logging"
	"grimm.is/tornet/internal/probe"
	"grimm.is/tornet/internal/scheduler"
)

// SettleDelay is the wait between reloading the daemon and probing.
const SettleDelay = 2 * time.Second

// Mode is the repetition policy of a run.
type Mode int

const (
	// Once runs a single cycle with no pre-sleep.
	Once Mode = iota
	// Counted runs Count cycles, sleeping before each.
	Counted
	// Infinite runs until cancelled.
	Infinite
	// Scheduled is Infinite driven by a duration or cron schedule.
	Scheduled
)

func (m Mode) String() string {
	switch m {
	case Once:
		return "once"
	case Counted:
		return "counted"
	case Infinite:
		return "infinite"
	case Scheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Run describes one rotation session.
type Run struct {
	Mode     Mode
	Count    int
	Schedule scheduler.Schedule

	// Region is applied before every cycle when set.
	Region string
	// ReapplyRegion re-applies the pinned region every cycle when Region is
	// empty.
	ReapplyRegion bool
}

// Repeat returns the run for a repeated rotation: Infinite for 0, Counted
// otherwise. A negative count fails Validate.
func Repeat(count int, s scheduler.Schedule) Run {
	if count == 0 {
		return Run{Mode: Infinite, Schedule: s}
	}
	return Run{Mode: Counted, Count: count, Schedule: s}
}

// Validate checks that the run can start.
func (r Run) Validate() error {
	if r.Mode != Once && r.Schedule == nil {
		return fmt.Errorf("%s run needs a schedule", r.Mode)
	}
	if r.Mode == Counted && r.Count <= 0 {
		return fmt.Errorf("counted run needs a positive count, got %d", r.Count)
	}
	return nil
}

// Reloader reloads the daemon.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Applier applies and reports the exit region.
type Applier interface {
	Apply(ctx context.Context, region string) error
	PinnedRegion() string
}

// AddressProber observes the externally visible address.
type AddressProber interface {
	CurrentAddress(ctx context.Context) probe.Result
}

// Recorder counts completed cycles.
type Recorder interface {
	RecordRotation(ok bool, at time.Time)
}

// Engine executes rotation runs. Service, Prober and Reporter are required.
type Engine struct {
	Service  Reloader
	Policy   Applier
	Prober   AddressProber
	Reporter Reporter
	Recorder Recorder
	Clock    clock.Clock
	Logger   *logging.Logger
}

// Run executes r until its repetition policy is exhausted or ctx is
// cancelled, in which case it returns ctx.Err(). Probe failures are reported
// and do not stop the run.
func (e *Engine) Run(ctx context.Context, r Run) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if e.Clock == nil {
		e.Clock = &clock.RealClock{}
	}
	log := e.logger().WithFields(map[string]any{"run_id": uuid.NewString(), "mode": r.Mode.String()})
	log.Info("rotation started", "count", r.Count, "region", r.Region)

	for n := 1; r.Mode != Counted || n <= r.Count; n++ {
		if r.Mode != Once {
			wait := scheduler.Wait(r.Schedule, e.Clock.Now())
			log.Info("waiting for next rotation", "cycle", n, "wait", wait)
			if err := e.Clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}

		ev, err := e.cycle(ctx, r, n, log)
		if err != nil {
			return err
		}
		if err := e.Reporter.Report(ev); err != nil {
			return fmt.Errorf("report rotation: %w", err)
		}
		if r.Mode == Once {
			break
		}
	}

	log.Info("rotation finished")
	return nil
}

// cycle runs one apply, reload, settle, probe sequence.
func (e *Engine) cycle(ctx context.Context, r Run, n int, log *logging.Logger) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	region := r.Region
	if region == "" && r.ReapplyRegion && e.Policy != nil {
		region = e.Policy.PinnedRegion()
	}
	if region != "" && e.Policy != nil {
		if err := e.Policy.Apply(ctx, region); err != nil {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			var ae *apperr.Error
			if errors.As(err, &ae) {
				return Event{}, err
			}
			log.Warn("could not apply exit region", "region", region, "error", err)
		}
	}

	if err := e.Service.Reload(ctx); err != nil {
		return Event{}, err
	}
	if err := e.Clock.Sleep(ctx, SettleDelay); err != nil {
		return Event{}, err
	}

	res := e.Prober.CurrentAddress(ctx)
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	now := e.Clock.Now()
	if e.Recorder != nil {
		e.Recorder.RecordRotation(res.Known(), now)
	}

	ev := Event{Time: now, Mode: r.Mode, Cycle: n, IP: res.IP}
	if !res.Known() {
		ev.Err = ErrNoAddress.Error()
		log.Warn("rotation cycle could not determine address", "cycle", n)
	} else {
		log.Info("rotation cycle complete", "cycle", n, "ip", res.IP)
	}
	return ev, nil
}

func (e *Engine) logger() *logging.Logger {
	if e.Logger == nil {
		e.Logger = logging.WithComponent("rotation")
	}
	return e.Logger
}
