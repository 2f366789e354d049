package walk

import (
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/robotapi"
)

const cycle = 10 * time.Millisecond

func fullPressure() robotapi.FSR { return robotapi.FSR{1, 1, 1, 1} }

func TestEngineStartsSittingWhenLow(t *testing.T) {
	e := NewEngine(logging.NewTestLogger(t), DefaultConfig(), 0.05)
	test.That(t, e.IsSitting(), test.ShouldBeTrue)
}

func TestEngineStandsUpOnWalkRequest(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(logging.NewTestLogger(t), cfg, cfg.SittingHipHeight)
	e.RequestWalk(Step{Forward: 0.03})

	for i := 0; i < 300; i++ {
		e.Advance(cycle, robotapi.IMU{}, fullPressure(), fullPressure())
	}

	test.That(t, e.IsStanding(), test.ShouldBeTrue)
}

func TestEngineWalksForwardAfterStarting(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(logging.NewTestLogger(t), cfg, cfg.HipHeight)
	test.That(t, e.IsStanding(), test.ShouldBeTrue)

	e.RequestWalk(Step{Forward: 0.03})
	for i := 0; i < 5; i++ {
		e.Advance(cycle, robotapi.IMU{}, fullPressure(), fullPressure())
	}

	test.That(t, e.IsWalking(), test.ShouldBeTrue)
	test.That(t, e.CurrentStep().Forward, test.ShouldBeGreaterThan, 0)
}

// Scenario 5: requested step exceeds the configured limits and must be
// clamped exactly to them.
func TestEngineClampsStepToMaxSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxStepSize = Step{Forward: 0.05, Left: 0.035, Turn: 0.35}
	e := NewEngine(logging.NewTestLogger(t), cfg, cfg.HipHeight)

	e.RequestWalk(Step{Forward: 1.0, Left: 0.5, Turn: 2.0})
	// Drive enough cycles for Starting -> Walking so currentStep takes
	// the requested (oversized) step through the clamp.
	for i := 0; i < 40; i++ {
		e.Advance(cycle, robotapi.IMU{}, fullPressure(), fullPressure())
	}

	test.That(t, e.CurrentStep().Forward, test.ShouldEqual, 0.05)
	test.That(t, e.CurrentStep().Left, test.ShouldEqual, 0.035)
	test.That(t, e.CurrentStep().Turn, test.ShouldEqual, 0.35)
}

func TestEngineZeroPhaseDurationDoesNotPanic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseStepPeriod = 0
	e := NewEngine(logging.NewTestLogger(t), cfg, cfg.HipHeight)
	e.RequestWalk(Step{Forward: 0.02})

	offsets, _, _ := e.Advance(cycle, robotapi.IMU{}, fullPressure(), fullPressure())
	test.That(t, offsets.Left.Forward, test.ShouldNotBeNaN)
	test.That(t, offsets.Right.Forward, test.ShouldNotBeNaN)
}

func TestEngineEmitsOdometryOnNewStepPhase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseStepPeriod = 20 * time.Millisecond
	cfg.MinimumStepDurationRatio = 0.1
	cfg.CopPressureThreshold = 0.01
	e := NewEngine(logging.NewTestLogger(t), cfg, cfg.HipHeight)
	e.RequestWalk(Step{Forward: 0.04})

	var sawNonZeroOdometry bool
	for i := 0; i < 20; i++ {
		_, odom, switched := e.Advance(cycle, robotapi.IMU{}, fullPressure(), fullPressure())
		if switched && odom.Forward != 0 {
			sawNonZeroOdometry = true
		}
	}

	test.That(t, sawNonZeroOdometry, test.ShouldBeTrue)
}

func TestSideNext(t *testing.T) {
	test.That(t, SideLeft.next(), test.ShouldEqual, SideRight)
	test.That(t, SideRight.next(), test.ShouldEqual, SideLeft)
}

func TestParabolicShapes(t *testing.T) {
	test.That(t, parabolicStep(0), test.ShouldEqual, 0.0)
	test.That(t, parabolicStep(1), test.ShouldEqual, 1.0)
	test.That(t, parabolicReturn(0), test.ShouldEqual, 0.0)
	test.That(t, parabolicReturn(1), test.ShouldEqual, 0.0)
	test.That(t, parabolicReturn(0.5), test.ShouldEqual, 1.0)
}
