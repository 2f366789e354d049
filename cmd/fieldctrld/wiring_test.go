package main

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/spl-robotics/fieldctrld/config"
	"github.com/spl-robotics/fieldctrld/localization"
	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/resource"
	"github.com/spl-robotics/fieldctrld/robotapi"
	"github.com/spl-robotics/fieldctrld/scheduler"
)

type fakeVisionSource struct {
	frame robotapi.VisionFrame
}

func (f fakeVisionSource) ReadVisionFrame(context.Context) (robotapi.VisionFrame, error) {
	return f.frame, nil
}

func TestBuildProducesARunnableScheduler(t *testing.T) {
	cfg := config.Default()
	logger := logging.NewTestLogger(t)
	collaborators := Collaborators{
		Sensors:   devNullSensors{},
		Actuators: devNullActuators{logger: logger},
		Vision:    devNullVision{},
	}

	sched, err := Build(logger, &cfg, robotapi.Pose{}, collaborators)
	test.That(t, err, test.ShouldBeNil)

	ctx := context.Background()
	test.That(t, sched.RunStartup(ctx), test.ShouldBeNil)

	for i := 0; i < 20; i++ {
		test.That(t, sched.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, sched.CycleIndex(), test.ShouldEqual, uint64(20))
}

// Confirms the vision-correction half of the per-cycle data flow is
// actually reachable: a line correspondence fed through
// visionUpdateSystem pulls a displaced hypothesis's mean toward the
// reference, the same way a direct Bank.LineUpdate call would.
func TestVisionUpdateSystemAppliesLineCorrespondence(t *testing.T) {
	store := resource.NewStore()
	logger := logging.NewTestLogger(t)
	bank := localization.NewBank(logger, localization.FieldLayout{Length: 9, Width: 6}, robotapi.Pose{X: 0.5})
	test.That(t, resource.Insert(store, *bank), test.ShouldBeNil)

	source := fakeVisionSource{frame: robotapi.VisionFrame{
		Lines: []robotapi.LineCorrespondence{{
			DetectedStart: [2]float64{0, -2.25},
			DetectedEnd:   [2]float64{0, 2.25},
			Reference: robotapi.ReferenceLine{
				Start: [2]float64{0, -2.25},
				End:   [2]float64{0, 2.25},
				Axis:  robotapi.AxisY,
			},
			SquaredError: 0.001,
		}},
	}}

	err := visionUpdateSystem(source)(context.Background(), store)
	test.That(t, err, test.ShouldBeNil)

	handle, err := resource.GetShared[localization.Bank](store)
	test.That(t, err, test.ShouldBeNil)
	updated := handle.Get()
	handle.Release()
	test.That(t, updated.Hypotheses[0].Mean.X < 0.5, test.ShouldBeTrue)
}

type capturingActuators struct {
	frames *[]robotapi.ControlFrame
}

func (c capturingActuators) WriteControlFrame(_ context.Context, frame robotapi.ControlFrame) error {
	*c.frames = append(*c.frames, frame)
	return nil
}

// Confirms the fatal-error path actually composes and emits a safe
// frame (every stiffness channel at -1, positions held at the last
// known value) rather than just logging and exiting.
func TestEmitSafeFrameWritesUnstiffenedLastKnownPositions(t *testing.T) {
	store := resource.NewStore()
	last := robotapi.ControlFrame{Positions: robotapi.JointFrame{
		Legs: robotapi.LegJoints{Left: robotapi.OneLeg{HipPitch: 0.3}},
	}}
	test.That(t, resource.Insert(store, last), test.ShouldBeNil)

	sched := scheduler.New(logging.NewTestLogger(t), store,
		func(context.Context, *resource.Store) error { return nil },
		func(context.Context, *resource.Store) error { return nil },
	)

	var written []robotapi.ControlFrame
	sink := capturingActuators{frames: &written}

	emitSafeFrame(context.Background(), logging.NewTestLogger(t), sched, sink)

	test.That(t, len(written), test.ShouldEqual, 1)
	test.That(t, written[0].Positions.Legs.Left.HipPitch, test.ShouldEqual, 0.3)
	test.That(t, written[0].Stiffness.Legs.Left.HipPitch, test.ShouldEqual, robotapi.Unstiff)
}

// The RRT* strategy is reachable through the same Build/Tick path as
// the default A*, selected purely by configuration.
func TestBuildWithRRTStrategyTicksSuccessfully(t *testing.T) {
	cfg := config.Default()
	cfg.Planner.Strategy = "rrt"
	logger := logging.NewTestLogger(t)
	collaborators := Collaborators{
		Sensors:   devNullSensors{},
		Actuators: devNullActuators{logger: logger},
		Vision:    devNullVision{},
	}

	sched, err := Build(logger, &cfg, robotapi.Pose{}, collaborators)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sched.RunStartup(context.Background()), test.ShouldBeNil)
	test.That(t, sched.Tick(context.Background()), test.ShouldBeNil)
}

func TestBuildHonorsCancelledContextInRun(t *testing.T) {
	cfg := config.Default()
	logger := logging.NewTestLogger(t)
	collaborators := Collaborators{
		Sensors:   devNullSensors{},
		Actuators: devNullActuators{logger: logger},
		Vision:    devNullVision{},
	}

	sched, err := Build(logger, &cfg, robotapi.Pose{}, collaborators)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sched.RunStartup(context.Background()), test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	test.That(t, sched.Run(ctx), test.ShouldBeNil)
}
