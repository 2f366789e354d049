package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/resource"
)

// Scheduler owns all systems, orders them within each stage, and
// exposes a single top-level Tick that runs one full cycle
// deterministically.
type Scheduler struct {
	logger  logging.Logger
	store   *resource.Store
	sensor  SensorFunc
	actuate ActuatorFunc

	byStage map[Stage][]System
	order   map[Stage][]batch
	startup []System

	cycle   *atomic.Uint64
	period  time.Duration
	limiter *rate.Limiter
}

// SensorFunc reads one sensor frame into the resource store at Init.
type SensorFunc func(ctx context.Context, store *resource.Store) error

// ActuatorFunc writes the resolved control frame at Write.
type ActuatorFunc func(ctx context.Context, store *resource.Store) error

// New returns a scheduler bound to the given store, sensor source, and
// actuator sink.
func New(logger logging.Logger, store *resource.Store, sensor SensorFunc, actuate ActuatorFunc) *Scheduler {
	return &Scheduler{
		logger:  logger,
		store:   store,
		sensor:  sensor,
		actuate: actuate,
		byStage: make(map[Stage][]System),
		cycle:   atomic.NewUint64(0),
	}
}

// SetCyclePeriod configures the soft real-time budget each Tick is
// expected to complete within: Run paces itself to this rate via a
// rate.Limiter, and a Tick whose stages take longer than the budget is
// logged as a deadline miss but still allowed to complete, per
// spec.md §7. Zero (the default) disables both pacing and deadline-
// miss logging, for tests that drive Tick directly.
func (s *Scheduler) SetCyclePeriod(period time.Duration) {
	s.period = period
	if period > 0 {
		s.limiter = rate.NewLimiter(rate.Every(period), 1)
	} else {
		s.limiter = nil
	}
}

// Store returns the resource store this scheduler runs systems
// against, so a caller can read out final state (e.g. to compose a
// safe frame) after Run returns on a fatal failure.
func (s *Scheduler) Store() *resource.Store {
	return s.store
}

// AddSystem adds a system to a stage, in registration order.
func (s *Scheduler) AddSystem(stage Stage, system System) {
	system.Stage = stage
	s.byStage[stage] = append(s.byStage[stage], system)
}

// AddChain adds each successive system declaring a predecessor edge to
// the preceding one.
func (s *Scheduler) AddChain(stage Stage, systems ...System) {
	for i := 1; i < len(systems); i++ {
		systems[i].After = append(systems[i].After, systems[i-1].Name)
	}
	for _, sys := range systems {
		s.AddSystem(stage, sys)
	}
}

// AddStartup registers a system executed once before the first cycle,
// in registration order.
func (s *Scheduler) AddStartup(system System) {
	s.startup = append(s.startup, system)
}

// CycleIndex returns the monotonically increasing cycle counter.
func (s *Scheduler) CycleIndex() uint64 { return s.cycle.Load() }

// Build computes the per-stage dependency order. It must run after
// all systems are registered and before RunStartup/Run.
func (s *Scheduler) Build() error {
	s.order = make(map[Stage][]batch)
	var stages []Stage
	stages = append(stages, stageOrder...)
	for stage := range s.byStage {
		if stage >= firstCustomStage {
			stages = append(stages, stage)
		}
	}
	for _, stage := range stages {
		systems := s.byStage[stage]
		if len(systems) == 0 {
			continue
		}
		batches, err := buildOrder(stage, systems)
		if err != nil {
			return err
		}
		s.order[stage] = batches
	}
	return nil
}

// RunStartup executes every startup system once, in registration
// order, stopping on the first failure.
func (s *Scheduler) RunStartup(ctx context.Context) error {
	for _, sys := range s.startup {
		if err := sys.Run(ctx, s.store); err != nil {
			return &SystemError{System: sys.Name, Err: err, Fatal: true}
		}
	}
	return nil
}

// Run loops: read one sensor frame, execute all stages in order, emit
// one control frame. It returns a cycle's fatal error, or nil once ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		if err := s.Tick(ctx); err != nil {
			return err
		}
	}
}

// Tick executes one full cycle: Sensor, Execute, Finalize, Write,
// PostWrite, in that order (plus any registered Custom stages). Within
// a stage, batches of conflict-free systems run concurrently via an
// errgroup; the observable effect equals running every system
// sequentially in topo order. Non-fatal system failures are logged and
// the cycle continues; a fatal failure (including a failed sensor read
// or control-frame write) aborts the cycle and returns immediately.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	cycle := s.cycle.Inc() - 1

	if err := s.sensor(ctx, s.store); err != nil {
		return &SystemError{System: "sensor-source", Err: err, Fatal: true}
	}

	for _, stage := range s.tickStages() {
		nonFatal, fatal := s.runStage(ctx, stage)
		if fatal != nil {
			return fatal
		}
		if nonFatal != nil {
			s.logger.Warnw("stage completed with non-fatal system failures", "stage", stage.String(), "err", nonFatal)
		}
	}

	if err := s.actuate(ctx, s.store); err != nil {
		return &SystemError{System: "actuator-sink", Err: err, Fatal: true}
	}

	if elapsed := time.Since(start); elapsed > 0 {
		s.logger.Debugw("cycle complete", "cycle", cycle, "elapsed", elapsed)
		if s.period > 0 && elapsed > s.period {
			s.logger.Warnw("cycle exceeded budget", "cycle", cycle, "elapsed", elapsed, "budget", s.period)
		}
	}
	return nil
}

func (s *Scheduler) tickStages() []Stage {
	var stages []Stage
	stages = append(stages, Sensor, Execute, Finalize, Write, PostWrite)
	for stage := firstCustomStage; stage >= firstCustomStage; stage++ {
		if _, ok := s.order[stage]; ok {
			stages = append(stages, stage)
		}
	}
	return stages
}

// runStage executes one stage's batches, returning a combined
// non-fatal error (logged, cycle continues) and/or a fatal error
// (aborts the cycle).
func (s *Scheduler) runStage(ctx context.Context, stage Stage) (nonFatal, fatal error) {
	systems := s.byStage[stage]
	batches := s.order[stage]
	if len(systems) == 0 {
		return nil, nil
	}

	for _, b := range batches {
		if len(b) == 1 {
			sys := systems[b[0]]
			if err := sys.Run(ctx, s.store); err != nil {
				accumulated, f := classify(sys, err)
				if f != nil {
					return nonFatal, f
				}
				nonFatal = multierr.Append(nonFatal, accumulated)
			}
			continue
		}

		group, gctx := errgroup.WithContext(ctx)
		errsByIndex := make([]error, len(b))
		for slot, idx := range b {
			sys := systems[idx]
			slot := slot
			group.Go(func() error {
				errsByIndex[slot] = sys.Run(gctx, s.store)
				return nil
			})
		}
		_ = group.Wait()
		for slot, idx := range b {
			if errsByIndex[slot] == nil {
				continue
			}
			accumulated, f := classify(systems[idx], errsByIndex[slot])
			if f != nil {
				return nonFatal, f
			}
			nonFatal = multierr.Append(nonFatal, accumulated)
		}
	}

	return nonFatal, nil
}

func classify(sys System, err error) (accumulated, fatal error) {
	se := &SystemError{System: sys.Name, Err: err, Fatal: isFatal(err)}
	if se.Fatal {
		return nil, se
	}
	return se, nil
}

// FatalError marks a system error as fatal (e.g. a required resource
// missing on first access), stopping the cycle immediately.
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return fmt.Sprintf("scheduler: fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// isFatal reports whether err (or anything it wraps) is a FatalError.
// Systems signal a fatal condition — a required resource missing at
// first access, a poisoned lock — by wrapping it in &FatalError{err}.
func isFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
