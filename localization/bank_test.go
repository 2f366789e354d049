package localization

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
	"go.viam.com/test"

	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/robotapi"
)

var spField = FieldLayout{Length: 9, Width: 6}

func traceOf(cov *mat.SymDense) float64 {
	n, _ := cov.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		sum += cov.At(i, i)
	}
	return sum
}

// Scenario 3: penalty reset spawns two ten-point touchline fans on the
// robot's last-known side.
func TestPenalizedResetSpawnsTouchlineFans(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{X: 3.0, Y: 1.0})

	bank.PenalizedReset(robotapi.Pose{X: 3.0, Y: 1.0})

	test.That(t, len(bank.Hypotheses), test.ShouldEqual, 20)
	for _, h := range bank.Hypotheses {
		test.That(t, math.Abs(h.Mean.Y), test.ShouldEqual, spField.Width/2)
		test.That(t, h.Mean.X >= 0, test.ShouldBeTrue)
	}
}

func TestPenalizedResetUsesNegativeHalfOnSignFlip(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{X: -2.0, Y: 0.5})
	bank.PenalizedReset(robotapi.Pose{X: -2.0, Y: 0.5})

	for _, h := range bank.Hypotheses {
		test.That(t, h.Mean.X <= 0, test.ShouldBeTrue)
	}
}

func TestRecentlyReturnedWindow(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{})
	now := time.Now()
	test.That(t, bank.RecentlyReturned(now), test.ShouldBeFalse)

	bank.MarkReturned(now)
	test.That(t, bank.RecentlyReturned(now.Add(3*time.Second)), test.ShouldBeTrue)
	test.That(t, bank.RecentlyReturned(now.Add(9*time.Second)), test.ShouldBeFalse)
}

// Scenario 6: a single, high-confidence line correspondence pulls a
// displaced hypothesis's mean toward the reference and tightens its
// covariance, with a full score bump plus bonus.
func TestLineUpdateImprovesPosterior(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{X: 0.5})
	bank.Hypotheses = []*Hypothesis{{
		Mean:       robotapi.Pose{X: 0.5, Y: 0, Theta: 0},
		Covariance: mat.NewSymDense(3, []float64{0.1, 0, 0, 0, 0.1, 0, 0, 0, 0.1}),
		Score:      particleScoreDefault,
	}}
	initialScore := bank.Hypotheses[0].Score

	centreLine := robotapi.LineCorrespondence{
		DetectedStart: [2]float64{0, -2.25},
		DetectedEnd:   [2]float64{0, 2.25},
		Reference: robotapi.ReferenceLine{
			Start: [2]float64{0, -2.25},
			End:   [2]float64{0, 2.25},
			Axis:  robotapi.AxisY,
		},
		SquaredError: 0.001,
		Anchor:       robotapi.Pose{},
	}

	bank.LineUpdate(centreLine)

	h := bank.Hypotheses[0]
	test.That(t, traceOf(h.Covariance) < 0.3, test.ShouldBeTrue)
	test.That(t, h.Score-initialScore >= particleScoreIncrease+particleScoreBonus-1e-9, test.ShouldBeTrue)
	// The update should have pulled the mean toward the true line (x=0)
	// from its displaced starting point (x=0.5).
	test.That(t, h.Mean.X < 0.5, test.ShouldBeTrue)
}

func TestLineUpdateRejectsOutOfFieldReference(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{})
	h := bank.Hypotheses[0]
	before := h.Score

	bank.LineUpdate(robotapi.LineCorrespondence{
		DetectedStart: [2]float64{0, -2.25},
		DetectedEnd:   [2]float64{0, 2.25},
		Reference: robotapi.ReferenceLine{
			Start: [2]float64{100, -2.25},
			End:   [2]float64{100, 2.25},
			Axis:  robotapi.AxisY,
		},
		SquaredError: 0.001,
	})

	test.That(t, bank.Hypotheses[0].Score, test.ShouldEqual, before)
}

// A circle correspondence seen tangentially, dead ahead of an anchor
// sitting at the world origin: the expected robot position is the
// point on the circle boundary along that bearing, and a displaced
// hypothesis should be pulled toward it with a tightened covariance
// and a full score bump plus bonus.
func TestCircleUpdateImprovesPosterior(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{X: 0.5})
	bank.Hypotheses = []*Hypothesis{{
		Mean:       robotapi.Pose{X: 0.5, Y: 0, Theta: 0},
		Covariance: mat.NewSymDense(3, []float64{0.1, 0, 0, 0, 0.1, 0, 0, 0, 0.1}),
		Score:      particleScoreDefault,
	}}
	initialScore := bank.Hypotheses[0].Score

	centreCircle := robotapi.CircleCorrespondence{
		DetectedStart: [2]float64{0.75, -0.1},
		DetectedEnd:   [2]float64{0.75, 0.1},
		Reference:     robotapi.ReferenceCircle{Center: [2]float64{0, 0}, Radius: 0.75},
		SquaredError:  0.001,
		Anchor:        robotapi.Pose{},
	}

	bank.CircleUpdate(centreCircle)

	h := bank.Hypotheses[0]
	test.That(t, traceOf(h.Covariance) < 0.3, test.ShouldBeTrue)
	test.That(t, h.Score-initialScore >= particleScoreIncrease+particleScoreBonus-1e-9, test.ShouldBeTrue)
	// The update should have pulled the mean toward the circle boundary
	// (x=0.75) from its displaced starting point (x=0.5).
	test.That(t, h.Mean.X > 0.5, test.ShouldBeTrue)
}

func TestCircleUpdateRejectsNonTangentialSegment(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{})
	h := bank.Hypotheses[0]
	before := h.Score

	// Radial, not tangential: its normal is a quarter turn away from the
	// normal of the tangent reference at this bearing, well past the
	// rejection threshold.
	bank.CircleUpdate(robotapi.CircleCorrespondence{
		DetectedStart: [2]float64{0.5, 0},
		DetectedEnd:   [2]float64{1.0, 0},
		Reference:     robotapi.ReferenceCircle{Center: [2]float64{0, 0}, Radius: 0.75},
		SquaredError:  0.001,
	})

	test.That(t, bank.Hypotheses[0].Score, test.ShouldEqual, before)
}

func TestCircleUpdateRejectsOutOfFieldConsensus(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{})
	bank.Hypotheses = []*Hypothesis{{Mean: robotapi.Pose{X: 100}, Score: particleScoreDefault}}
	before := bank.Hypotheses[0].Score

	bank.CircleUpdate(robotapi.CircleCorrespondence{
		DetectedStart: [2]float64{0.75, -0.1},
		DetectedEnd:   [2]float64{0.75, 0.1},
		Reference:     robotapi.ReferenceCircle{Center: [2]float64{0, 0}, Radius: 0.75},
		SquaredError:  0.001,
	})

	test.That(t, bank.Hypotheses[0].Score, test.ShouldEqual, before)
}

func TestConsensusPicksHighestScore(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{})
	bank.Hypotheses = []*Hypothesis{
		{Mean: robotapi.Pose{X: 1}, Score: 5},
		{Mean: robotapi.Pose{X: 2}, Score: 9},
		{Mean: robotapi.Pose{X: 3}, Score: 7},
	}
	test.That(t, bank.Consensus().X, test.ShouldEqual, 2.0)
}

func TestPruneDisabledByDefaultKeepsLowScoringHypotheses(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{})
	bank.Hypotheses = []*Hypothesis{
		{Mean: robotapi.Pose{}, Score: 100},
		{Mean: robotapi.Pose{}, Score: 0.01},
	}
	bank.Prune()
	test.That(t, len(bank.Hypotheses), test.ShouldEqual, 2)
}

func TestPruneRemovesBelowRetainFactor(t *testing.T) {
	bank := NewBank(logging.NewTestLogger(t), spField, robotapi.Pose{})
	bank.RetainPruneEnabled = true
	bank.RetainFactor = 0.5
	bank.Hypotheses = []*Hypothesis{
		{Mean: robotapi.Pose{}, Score: 100},
		{Mean: robotapi.Pose{}, Score: 10},
	}
	bank.Prune()
	test.That(t, len(bank.Hypotheses), test.ShouldEqual, 1)
	test.That(t, bank.Hypotheses[0].Score, test.ShouldEqual, 100.0)
}
