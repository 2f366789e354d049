package localization

import (
	"gonum.org/v1/gonum/mat"

	"github.com/spl-robotics/fieldctrld/robotapi"
)

const (
	particleScoreDecay     = 0.95
	particleScoreDefault   = 10.0
	particleScoreIncrease  = 0.5
	particleScoreBonus     = 2.5
	particleBonusThreshold = 0.5
	particleMissDecay      = 0.9
	defaultRetainFactor    = 0.5

	lineRejectionAngle   = 0.5235987755982988 // pi/6
	circleRejectionAngle = 0.39269908169872414 // pi/8
	fieldMargin          = 0.15
)

// Hypothesis is one SE(2) pose estimate in the bank, with its
// covariance and a non-negative score used to pick the consensus pose.
type Hypothesis struct {
	Mean       robotapi.Pose
	Covariance *mat.SymDense
	Score      float64
}

// NewHypothesis returns a hypothesis at mean with a modest starting
// covariance and the default score.
func NewHypothesis(mean robotapi.Pose) *Hypothesis {
	return &Hypothesis{
		Mean: mean,
		Covariance: mat.NewSymDense(3, []float64{
			0.1, 0, 0,
			0, 0.1, 0,
			0, 0, 0.05,
		}),
		Score: particleScoreDefault,
	}
}
