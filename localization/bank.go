package localization

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/robotapi"
)

// ErrEmptyBank is returned when the bank has no hypotheses left; an
// empty bank is an invariant violation the scheduler surfaces fatally.
var ErrEmptyBank = errors.New("localization: hypothesis bank is empty")

// FieldLayout is the subset of field geometry the pose filter needs:
// its extent, for the in-field-with-margin rejection test.
type FieldLayout struct {
	Length float64
	Width  float64
}

// InFieldWithMargin reports whether p lies within the field extent
// inflated by margin on every side, field-centered coordinates.
func (f FieldLayout) InFieldWithMargin(p [2]float64, margin float64) bool {
	return math.Abs(p[0]) <= f.Length/2+margin && math.Abs(p[1]) <= f.Width/2+margin
}

// Bank is the pose filter's bank of hypotheses. Exactly one instance
// runs per robot; the scheduler owns it as a resource.Store entry.
type Bank struct {
	logger logging.Logger
	layout FieldLayout

	Hypotheses []*Hypothesis

	RetainPruneEnabled bool
	RetainFactor       float64

	lastKnownSign float64
	recentReturn  time.Time
	hasReturned   bool
}

// NewBank starts a bank with a single hypothesis at initial.
func NewBank(logger logging.Logger, layout FieldLayout, initial robotapi.Pose) *Bank {
	return &Bank{
		logger:       logger,
		layout:       layout,
		Hypotheses:   []*Hypothesis{NewHypothesis(initial)},
		RetainFactor: defaultRetainFactor,
	}
}

// Predict advances every hypothesis by odometry, per spec §4.D: mean
// composes with the offset, process noise diag(0.05, 0.05, 0.01) is
// added, and score decays by 0.95. A Cholesky failure is isolated to
// its hypothesis and logged, not propagated.
func (b *Bank) Predict(odometry robotapi.Odometry) {
	offset := robotapi.Pose{X: odometry.Forward, Y: odometry.Left, Theta: odometry.Turn}
	noise := mat.NewSymDense(3, []float64{
		0.05, 0, 0,
		0, 0.05, 0,
		0, 0, 0.01,
	})
	transform := func(p robotapi.Pose) robotapi.Pose { return p.Compose(offset) }

	for _, h := range b.Hypotheses {
		if err := predict(h, transform, noise); err != nil {
			b.logger.Warnw("cholesky failed during odometry prediction", "err", err)
		}
		h.Score *= particleScoreDecay
	}
}

// LineUpdate applies one line correspondence to every hypothesis in
// the bank. A rejected or numerically failed correspondence is
// isolated to the offending hypothesis and logged; it never aborts
// the rest of the bank.
func (b *Bank) LineUpdate(corr robotapi.LineCorrespondence) {
	consensus := b.Consensus()
	meas, ok := computeLineMeasurement(b.layout, consensus.Theta, corr)
	if !ok {
		return
	}

	axis := corr.Reference.Axis
	model := measurementModel{
		dim: 2,
		observe: func(p robotapi.Pose) []float64 {
			if axis == robotapi.AxisX {
				return []float64{p.Y, p.Theta}
			}
			return []float64{p.X, p.Theta}
		},
		residual: func(a, b []float64) []float64 {
			return []float64{a[0] - b[0], robotapi.WrapAngle(a[1] - b[1])}
		},
	}

	for _, h := range b.Hypotheses {
		b.applyUpdate(h, model, []float64{meas.distance, meas.angle}, meas.noise, corr.SquaredError)
	}
}

// CircleUpdate applies one circle correspondence to every hypothesis,
// measuring position only (spec §4.D circle branch).
func (b *Bank) CircleUpdate(corr robotapi.CircleCorrespondence) {
	consensus := b.Consensus()
	measurement, noise, ok := computeCircleMeasurement(b.layout, consensus, corr)
	if !ok {
		return
	}

	model := measurementModel{
		dim:      2,
		observe:  func(p robotapi.Pose) []float64 { return []float64{p.X, p.Y} },
		residual: plainResidual,
	}

	for _, h := range b.Hypotheses {
		b.applyUpdate(h, model, []float64{measurement[0], measurement[1]}, noise, corr.SquaredError)
	}
}

// applyUpdate runs one hypothesis through a measurement update,
// re-symmetrizes its covariance, and adjusts its score: a fixed bump,
// plus a bonus when the correspondence's own reported error is small,
// otherwise, on numerical failure, a covariance reset to
// diag(1, 1, π/4) and a decay toward distrust.
func (b *Bank) applyUpdate(h *Hypothesis, model measurementModel, measurement []float64, noise *mat.SymDense, correspondenceError float64) {
	symmetrize(h.Covariance)
	if err := update(h, model, measurement, noise); err != nil {
		b.logger.Warnw("pose filter update failed, isolating to hypothesis", "err", err)
		h.Covariance = mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, math.Pi / 4})
		h.Score *= particleMissDecay
		return
	}
	symmetrize(h.Covariance)

	h.Score += particleScoreIncrease
	if math.Sqrt(math.Abs(correspondenceError)) < particleBonusThreshold {
		h.Score += particleScoreBonus
	}
}

// Prune removes hypotheses scoring below RetainFactor times the best
// score, if RetainPruneEnabled. Disabled by default per spec §4.D.
func (b *Bank) Prune() {
	if !b.RetainPruneEnabled || len(b.Hypotheses) == 0 {
		return
	}
	best := b.bestScore()
	threshold := b.RetainFactor * best
	kept := b.Hypotheses[:0]
	for _, h := range b.Hypotheses {
		if h.Score >= threshold {
			kept = append(kept, h)
		}
	}
	b.Hypotheses = kept
}

func (b *Bank) bestScore() float64 {
	best := math.Inf(-1)
	for _, h := range b.Hypotheses {
		if h.Score > best {
			best = h.Score
		}
	}
	return best
}

// Consensus returns the highest-scoring hypothesis' mean. Calling it
// on an empty bank is a programming error the caller must have
// already guarded against via IsEmpty/ErrEmptyBank.
func (b *Bank) Consensus() robotapi.Pose {
	best := b.Hypotheses[0]
	for _, h := range b.Hypotheses[1:] {
		if h.Score > best.Score {
			best = h
		}
	}
	return best.Mean
}

// IsEmpty reports whether the bank has no hypotheses left, the
// invariant violation the scheduler must treat as fatal.
func (b *Bank) IsEmpty() bool { return len(b.Hypotheses) == 0 }

// PenalizedReset replaces the bank with two touchline fans on the
// robot's last-known side, per spec §4.D: ten evenly spaced
// hypotheses along each touchline, facing into the field.
func (b *Bank) PenalizedReset(lastKnown robotapi.Pose) {
	sign := 1.0
	if lastKnown.X < 0 {
		sign = -1.0
	}
	b.lastKnownSign = sign

	hyps := make([]*Hypothesis, 0, 20)
	for _, side := range []float64{1, -1} {
		for i := 0; i < 10; i++ {
			x := sign * (float64(i) / 10.0) * (b.layout.Length / 2)
			y := side * b.layout.Width / 2
			heading := math.Pi / 2
			if side > 0 {
				heading = -math.Pi / 2
			}
			hyps = append(hyps, NewHypothesis(robotapi.Pose{X: x, Y: y, Theta: heading}))
		}
	}
	b.Hypotheses = hyps
}

// MarkReturned records that the robot transitioned penalized ->
// unpenalized at "now"; RecentlyReturned reports whether that
// transition happened within the last 8 seconds.
func (b *Bank) MarkReturned(now time.Time) {
	b.hasReturned = true
	b.recentReturn = now
}

// RecentlyReturned reports whether the robot returned from a penalty
// within the last 8 seconds of now.
func (b *Bank) RecentlyReturned(now time.Time) bool {
	if !b.hasReturned {
		return false
	}
	return now.Sub(b.recentReturn) < 8*time.Second
}
