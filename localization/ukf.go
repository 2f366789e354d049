// Package localization maintains a bank of 3-DoF (x, y, heading) pose
// hypotheses, predicted from odometry and corrected against field-line
// and centre-circle correspondences via an unscented Kalman filter
// specialized for SE(2)'s circular heading statistics.
package localization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/spl-robotics/fieldctrld/robotapi"
)

const stateDim = 3

// sigmaLambda is the UKF scaling parameter; sigma points spread at
// sqrt(stateDim+sigmaLambda) standard deviations from the mean.
const sigmaLambda = 1.0

func sigmaWeights() []float64 {
	n := float64(stateDim)
	wCenter := sigmaLambda / (n + sigmaLambda)
	wOther := 1.0 / (2.0 * (n + sigmaLambda))
	w := make([]float64, 2*stateDim+1)
	w[0] = wCenter
	for i := 1; i < len(w); i++ {
		w[i] = wOther
	}
	return w
}

// sigmaPoints generates the 2n+1 sigma points for mean and cov. It
// fails when cov is not positive definite (Cholesky factorization
// failure), which callers treat as a per-hypothesis isolated error.
func sigmaPoints(mean robotapi.Pose, cov *mat.SymDense) ([]robotapi.Pose, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("localization: covariance is not positive definite")
	}
	var L mat.TriDense
	chol.LTo(&L)

	scale := math.Sqrt(stateDim + sigmaLambda)
	pts := make([]robotapi.Pose, 2*stateDim+1)
	pts[0] = mean
	for i := 0; i < stateDim; i++ {
		delta := [3]float64{L.At(0, i) * scale, L.At(1, i) * scale, L.At(2, i) * scale}
		pts[1+i] = addState(mean, delta)
		pts[1+stateDim+i] = addState(mean, [3]float64{-delta[0], -delta[1], -delta[2]})
	}
	return pts, nil
}

func addState(p robotapi.Pose, delta [3]float64) robotapi.Pose {
	return robotapi.Pose{X: p.X + delta[0], Y: p.Y + delta[1], Theta: robotapi.WrapAngle(p.Theta + delta[2])}
}

// stateResidual computes a-b with wraparound on the heading component.
func stateResidual(a, b robotapi.Pose) [3]float64 {
	return [3]float64{a.X - b.X, a.Y - b.Y, robotapi.WrapAngle(a.Theta - b.Theta)}
}

// circularMean averages poses under circular statistics on the
// heading component: translation is a plain weighted sum, heading is
// the argument of the weighted sum of unit phasors.
func circularMean(points []robotapi.Pose, weights []float64) robotapi.Pose {
	var mx, my, sumSin, sumCos float64
	for i, p := range points {
		w := weights[i]
		mx += w * p.X
		my += w * p.Y
		sumSin += w * math.Sin(p.Theta)
		sumCos += w * math.Cos(p.Theta)
	}
	return robotapi.Pose{X: mx, Y: my, Theta: math.Atan2(sumSin, sumCos)}
}

// predict propagates mean and covariance through transform and adds
// processNoise. On Cholesky failure the covariance is reset to the
// recovery diagonal diag(1, 1, pi/4) and the error is returned so the
// caller can log and isolate the failure to this hypothesis.
func predict(hyp *Hypothesis, transform func(robotapi.Pose) robotapi.Pose, processNoise *mat.SymDense) error {
	points, err := sigmaPoints(hyp.Mean, hyp.Covariance)
	if err != nil {
		hyp.Covariance = mat.NewSymDense(3, []float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, math.Pi / 4,
		})
		return err
	}
	weights := sigmaWeights()

	propagated := make([]robotapi.Pose, len(points))
	for i, p := range points {
		propagated[i] = transform(p)
	}
	mean := circularMean(propagated, weights)

	cov := mat.NewSymDense(3, nil)
	for i, p := range propagated {
		r := stateResidual(p, mean)
		addOuter(cov, r, weights[i])
	}
	addSym(cov, processNoise)

	hyp.Mean = mean
	hyp.Covariance = cov
	return nil
}

func addOuter(cov *mat.SymDense, r [3]float64, w float64) {
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			cov.SetSym(i, j, cov.At(i, j)+w*r[i]*r[j])
		}
	}
}

func addSym(dst, src *mat.SymDense) {
	n, _ := dst.Dims()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, dst.At(i, j)+src.At(i, j))
		}
	}
}

// measurementModel adapts a state hypothesis to a predicted
// measurement and back; residual lets the caller wrap angular
// measurement components.
type measurementModel struct {
	dim      int
	observe  func(robotapi.Pose) []float64
	residual func(a, b []float64) []float64
}

func plainResidual(a, b []float64) []float64 {
	r := make([]float64, len(a))
	for i := range a {
		r[i] = a[i] - b[i]
	}
	return r
}

// update performs one measurement correction against model, returning
// an error if the covariance or innovation matrix is singular.
func update(hyp *Hypothesis, model measurementModel, measurement []float64, measurementNoise *mat.SymDense) error {
	points, err := sigmaPoints(hyp.Mean, hyp.Covariance)
	if err != nil {
		return err
	}
	weights := sigmaWeights()

	predictedMeas := make([][]float64, len(points))
	for i, p := range points {
		predictedMeas[i] = model.observe(p)
	}

	meanMeas := make([]float64, model.dim)
	for i, pm := range predictedMeas {
		for k := 0; k < model.dim; k++ {
			meanMeas[k] += weights[i] * pm[k]
		}
	}

	innovationCov := mat.NewSymDense(model.dim, nil)
	crossCov := mat.NewDense(3, model.dim, nil)
	for i, pm := range predictedMeas {
		rz := model.residual(pm, meanMeas)
		rx := stateResidual(points[i], hyp.Mean)
		for a := 0; a < model.dim; a++ {
			for b := a; b < model.dim; b++ {
				innovationCov.SetSym(a, b, innovationCov.At(a, b)+weights[i]*rz[a]*rz[b])
			}
		}
		for a := 0; a < 3; a++ {
			for b := 0; b < model.dim; b++ {
				crossCov.Set(a, b, crossCov.At(a, b)+weights[i]*rx[a]*rz[b])
			}
		}
	}
	addSym(innovationCov, measurementNoise)

	var innovInv mat.Dense
	if err := innovInv.Inverse(innovationCov); err != nil {
		return fmt.Errorf("localization: innovation covariance not invertible: %w", err)
	}

	var gain mat.Dense
	gain.Mul(crossCov, &innovInv)

	innovation := model.residual(measurement, meanMeas)
	innovVec := mat.NewVecDense(model.dim, innovation)
	var correction mat.VecDense
	correction.MulVec(&gain, innovVec)

	hyp.Mean = addState(hyp.Mean, [3]float64{correction.AtVec(0), correction.AtVec(1), correction.AtVec(2)})

	var gainCrossT mat.Dense
	gainCrossT.Mul(&gain, crossCov.T())
	newCov := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			newCov.SetSym(i, j, hyp.Covariance.At(i, j)-gainCrossT.At(i, j))
		}
	}
	hyp.Covariance = newCov
	return nil
}

// symmetrize mitigates numerical drift by averaging a covariance with
// its transpose.
func symmetrize(cov *mat.SymDense) {
	n, _ := cov.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := (cov.At(i, j) + cov.At(j, i)) / 2
			cov.SetSym(i, j, v)
		}
	}
}
