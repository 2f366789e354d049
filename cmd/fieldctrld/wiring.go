package main

import (
	"context"
	"time"

	"github.com/golang/geo/r2"

	"github.com/spl-robotics/fieldctrld/arbiter"
	"github.com/spl-robotics/fieldctrld/config"
	"github.com/spl-robotics/fieldctrld/localization"
	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/motion/planning"
	"github.com/spl-robotics/fieldctrld/motion/walk"
	"github.com/spl-robotics/fieldctrld/resource"
	"github.com/spl-robotics/fieldctrld/robotapi"
	"github.com/spl-robotics/fieldctrld/scheduler"
)

// Collaborators bundles every out-of-scope interface the core calls
// through, per spec.md §6: sensor frame and vision correspondences in,
// control frame out. Supplying these is the caller's job — cmd/fieldctrld
// itself never implements a transport for them.
type Collaborators struct {
	Sensors   robotapi.SensorSource
	Actuators robotapi.ActuatorSink
	Vision    robotapi.VisionSource
}

// Build wires one runtime instance: a resource store seeded with every
// component the cycle touches, and a Scheduler with every system
// registered in the stage order spec.md §2 describes. The returned
// Scheduler is ready for Build (already called) and RunStartup/Run.
func Build(logger logging.Logger, cfg *config.Config, initial robotapi.Pose, collaborators Collaborators) (*scheduler.Scheduler, error) {
	store := resource.NewStore()

	if err := resource.Insert(store, robotapi.SensorFrame{}); err != nil {
		return nil, err
	}
	if err := resource.Insert(store, robotapi.Odometry{}); err != nil {
		return nil, err
	}
	if err := resource.Insert(store, robotapi.ControlFrame{}); err != nil {
		return nil, err
	}

	field := localization.FieldLayout{Length: cfg.Field.Length, Width: cfg.Field.Width}
	bank := localization.NewBank(logger.Sublogger("localization"), field, initial)
	if err := resource.Insert(store, *bank); err != nil {
		return nil, err
	}

	obstacles := planning.NewObstacleSet(nil, nil)
	if err := resource.Insert(store, *obstacles); err != nil {
		return nil, err
	}

	targetPlanner := planning.NewTargetPlanner(logger.Sublogger("planning"), buildPlannerStrategy(logger, cfg))
	if err := resource.Insert(store, *targetPlanner); err != nil {
		return nil, err
	}

	walkCfg := toWalkConfig(cfg.Walk)
	engine := walk.NewEngine(logger.Sublogger("walk"), walkCfg, walkCfg.SittingHipHeight)
	if err := resource.Insert(store, *engine); err != nil {
		return nil, err
	}

	arb := arbiter.New()
	if err := resource.Insert(store, *arb); err != nil {
		return nil, err
	}

	sched := scheduler.New(logger, store, sensorFunc(collaborators.Sensors), actuatorFunc(collaborators.Actuators))
	sched.SetCyclePeriod(cfg.Cycle.Period)

	predict := system("localization-predict", predictSystem)
	scheduler.ReadsType[robotapi.Odometry](&predict)
	scheduler.WritesType[localization.Bank](&predict)

	visionUpdate := system("vision-update", visionUpdateSystem(collaborators.Vision))
	scheduler.WritesType[localization.Bank](&visionUpdate)

	planStep := system("plan-step", planStepSystem)
	scheduler.ReadsType[localization.Bank](&planStep)
	scheduler.WritesType[planning.ObstacleSet](&planStep)
	scheduler.WritesType[planning.TargetPlanner](&planStep)
	scheduler.WritesType[walk.Engine](&planStep)

	walkAdvance := system("walk-advance", walkAdvanceSystem)
	scheduler.ReadsType[robotapi.SensorFrame](&walkAdvance)
	scheduler.WritesType[walk.Engine](&walkAdvance)
	scheduler.WritesType[robotapi.Odometry](&walkAdvance)

	legIK := system("leg-ik", legIKSystem(logger.Sublogger("walk"), walkCfg))
	scheduler.ReadsType[walk.Engine](&legIK)
	scheduler.WritesType[arbiter.Arbiter](&legIK)

	sched.AddChain(scheduler.Execute, predict, visionUpdate, planStep, walkAdvance, legIK)

	finalize := system("arbiter-finalize", arbiterFinalizeSystem)
	scheduler.ReadsType[arbiter.Arbiter](&finalize)
	scheduler.WritesType[robotapi.ControlFrame](&finalize)
	sched.AddSystem(scheduler.Finalize, finalize)

	prune := system("bank-prune", bankPruneSystem)
	scheduler.WritesType[localization.Bank](&prune)
	sched.AddSystem(scheduler.PostWrite, prune)

	if err := sched.Build(); err != nil {
		return nil, err
	}
	return sched, nil
}

// pathStrategy matches the unexported interface motion/planning.
// TargetPlanner accepts, letting Build pick either concrete strategy
// without motion/planning needing to export the interface itself.
type pathStrategy interface {
	FindPath(start, goal r2.Point, obstacles []planning.Obstacle) (planning.Path, bool)
}

// buildPlannerStrategy selects the path-finding strategy
// cfg.Planner.Strategy names, per spec.md §4.E.1's "either strategy is
// acceptable" clause: A* over straight segments and tangent arcs by
// default, or RRT* sampled over the
// field's bounding rectangle when configured.
func buildPlannerStrategy(logger logging.Logger, cfg *config.Config) pathStrategy {
	if cfg.Planner.Strategy == "rrt" {
		bounds := r2.RectFromPoints(
			r2.Point{X: -cfg.Field.Length / 2, Y: -cfg.Field.Width / 2},
			r2.Point{X: cfg.Field.Length / 2, Y: cfg.Field.Width / 2},
		)
		return planning.NewRRTPlanner(logger.Sublogger("planning"), bounds, nil)
	}
	return planning.NewPlanner(logger.Sublogger("planning"))
}

func system(name string, run scheduler.RunFunc) scheduler.System {
	return scheduler.System{Name: name, Run: run}
}

func toWalkConfig(p config.WalkParams) walk.Config {
	c := walk.DefaultConfig()
	c.BaseStepPeriod = p.BaseStepPeriod
	c.BaseFootLift = p.BaseFootLift
	c.FootLiftModifier.Forward = p.FootLiftModifier.Forward
	c.FootLiftModifier.Left = p.FootLiftModifier.Left
	c.MaxStepSize = walk.Step{Forward: p.MaxStepSize.Forward, Left: p.MaxStepSize.Left, Turn: p.MaxStepSize.Turn}
	c.HipHeight = p.HipHeight
	c.SittingHipHeight = p.SittingHipHeight
	c.CopPressureThreshold = p.CopPressureThreshold
	c.LegStiffness = p.LegStiffness
	c.MinimumStepDurationRatio = p.MinimumStepDurationRatio
	c.Balancing.FilteredGyroYMultiplier = p.Balancing.FilteredGyroYMultiplier
	c.Balancing.FootLevelingPhaseShift = p.Balancing.FootLevelingPhaseShift
	c.Balancing.FootLevelingDecay = p.Balancing.FootLevelingDecay
	return c
}

func sensorFunc(source robotapi.SensorSource) scheduler.SensorFunc {
	return func(ctx context.Context, store *resource.Store) error {
		frame, err := source.ReadSensorFrame(ctx)
		if err != nil {
			return err
		}
		return resource.WithExclusive(store, func(f *robotapi.SensorFrame) error {
			*f = frame
			return nil
		})
	}
}

func actuatorFunc(sink robotapi.ActuatorSink) scheduler.ActuatorFunc {
	return func(ctx context.Context, store *resource.Store) error {
		return resource.WithShared(store, func(frame robotapi.ControlFrame) error {
			return sink.WriteControlFrame(ctx, frame)
		})
	}
}

// predictSystem advances the pose filter bank by the odometry this
// core's own walking engine emitted on its last step-phase switch.
func predictSystem(_ context.Context, store *resource.Store) error {
	odom, err := resource.GetShared[robotapi.Odometry](store)
	if err != nil {
		return err
	}
	o := odom.Get()
	odom.Release()

	return resource.WithExclusive(store, func(b *localization.Bank) error {
		b.Predict(o)
		return nil
	})
}

// visionUpdateSystem polls the vision collaborator for this cycle's
// correspondences and feeds each one through the bank's matching
// measurement update, per spec.md §2's "vision correspondences feed
// line/circle updates" step.
func visionUpdateSystem(source robotapi.VisionSource) scheduler.RunFunc {
	return func(ctx context.Context, store *resource.Store) error {
		frame, err := source.ReadVisionFrame(ctx)
		if err != nil {
			return err
		}
		return resource.WithExclusive(store, func(b *localization.Bank) error {
			for _, l := range frame.Lines {
				b.LineUpdate(l)
			}
			for _, c := range frame.Circles {
				b.CircleUpdate(c)
			}
			return nil
		})
	}
}

// planStepSystem runs the A*-then-velocity-reduction planner against
// the bank's consensus pose and the current obstacle set, producing
// this cycle's holonomic step request for the walking engine.
func planStepSystem(_ context.Context, store *resource.Store) error {
	bankHandle, err := resource.GetShared[localization.Bank](store)
	if err != nil {
		return err
	}
	pose := bankHandle.Get().Consensus()
	bankHandle.Release()

	var obstacles []planning.Obstacle
	if err := resource.WithExclusive(store, func(set *planning.ObstacleSet) error {
		obstacles = set.All()
		return nil
	}); err != nil {
		return err
	}

	var step robotapi.Step
	return resource.WithExclusive(store, func(t *planning.TargetPlanner) error {
		step, _ = t.Plan(pose, obstacles)
		return resource.WithExclusive(store, func(e *walk.Engine) error {
			if !e.IsWalking() && !e.IsStanding() {
				return nil
			}
			e.RequestWalk(step)
			return nil
		})
	})
}

// walkAdvanceSystem advances the gait state machine one cycle and
// stashes any newly emitted odometry for next cycle's prediction.
func walkAdvanceSystem(_ context.Context, store *resource.Store) error {
	frameHandle, err := resource.GetShared[robotapi.SensorFrame](store)
	if err != nil {
		return err
	}
	frame := frameHandle.Get()
	frameHandle.Release()

	cycleTime := frame.CycleTimeHint
	if cycleTime <= 0 {
		cycleTime = 10 * time.Millisecond
	}

	return resource.WithExclusive(store, func(e *walk.Engine) error {
		_, odom, switched := e.Advance(cycleTime, frame.IMU, frame.LeftFSR, frame.RightFSR)
		if !switched {
			return nil
		}
		return resource.WithExclusive(store, func(o *robotapi.Odometry) error {
			*o = odom
			return nil
		})
	})
}

// legIKSystem reduces the engine's current foot offsets to leg joint
// angles and submits them to the arbiter at Medium priority, the
// baseline every walking/standing command runs at.
func legIKSystem(logger logging.Logger, cfg walk.Config) scheduler.RunFunc {
	return func(_ context.Context, store *resource.Store) error {
		var offsets walk.FootOffsets
		var leftPitch, rightPitch float64
		if err := resource.WithExclusive(store, func(e *walk.Engine) error {
			offsets = e.CurrentOffsets()
			leftPitch, rightPitch = e.BalanceAnklePitch()
			return nil
		}); err != nil {
			return err
		}

		legs := walk.Legs(logger, cfg, offsets, leftPitch, rightPitch)
		stiffness := robotapi.LegJoints{
			Left:  robotapi.OneLeg{HipYawPitch: cfg.LegStiffness, HipRoll: cfg.LegStiffness, HipPitch: cfg.LegStiffness, KneePitch: cfg.LegStiffness, AnklePitch: cfg.LegStiffness, AnkleRoll: cfg.LegStiffness},
			Right: robotapi.OneLeg{HipYawPitch: cfg.LegStiffness, HipRoll: cfg.LegStiffness, HipPitch: cfg.LegStiffness, KneePitch: cfg.LegStiffness, AnklePitch: cfg.LegStiffness, AnkleRoll: cfg.LegStiffness},
		}

		return resource.WithExclusive(store, func(a *arbiter.Arbiter) error {
			a.SetLegs(legs, stiffness, arbiter.Medium)
			return nil
		})
	}
}

func arbiterFinalizeSystem(_ context.Context, store *resource.Store) error {
	now := time.Now()
	var frame robotapi.ControlFrame
	if err := resource.WithExclusive(store, func(a *arbiter.Arbiter) error {
		frame = a.Finalize(now)
		return nil
	}); err != nil {
		return err
	}
	return resource.WithExclusive(store, func(f *robotapi.ControlFrame) error {
		*f = frame
		return nil
	})
}

func bankPruneSystem(_ context.Context, store *resource.Store) error {
	return resource.WithExclusive(store, func(b *localization.Bank) error {
		b.Prune()
		return nil
	})
}
