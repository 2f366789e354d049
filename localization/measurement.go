package localization

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/spl-robotics/fieldctrld/robotapi"
)

// lineMeasurement is the (distance, heading) pair read off a single
// line correspondence, computed once against the correspondence's
// anchor pose — independent of any one hypothesis in the bank.
type lineMeasurement struct {
	distance float64
	angle    float64
	noise    *mat.SymDense
}

func vecSub(a, b [2]float64) [2]float64 { return [2]float64{a[0] - b[0], a[1] - b[1]} }
func vecLen(v [2]float64) float64       { return math.Hypot(v[0], v[1]) }

// normalAngle returns the angle of v rotated -90 degrees: the
// direction perpendicular to a segment running along v.
func normalAngle(v [2]float64) float64 { return math.Atan2(-v[0], v[1]) }

func angleBetween(a, b float64) float64 { return math.Abs(robotapi.WrapAngle(a - b)) }

// projectOntoLine returns the orthogonal projection of p onto the
// infinite line through a and b.
func projectOntoLine(p, a, b [2]float64) [2]float64 {
	d := vecSub(b, a)
	lenSq := d[0]*d[0] + d[1]*d[1]
	if lenSq == 0 {
		return a
	}
	t := ((p[0]-a[0])*d[0] + (p[1]-a[1])*d[1]) / lenSq
	return [2]float64{a[0] + t*d[0], a[1] + t*d[1]}
}

// computeLineMeasurement implements spec §4.D's line-update geometry:
// reject on normal-angle or field-margin grounds, otherwise project
// the detected segment (in the anchor's frame) onto the origin,
// resolve the pi-ambiguous heading by proximity to currentHeading, and
// read the signed distance along the reference's off-axis.
func computeLineMeasurement(layout FieldLayout, currentHeading float64, corr robotapi.LineCorrespondence) (lineMeasurement, bool) {
	ref := corr.Reference
	if !layout.InFieldWithMargin(ref.Start, fieldMargin) || !layout.InFieldWithMargin(ref.End, fieldMargin) {
		return lineMeasurement{}, false
	}

	detectedDir := vecSub(corr.DetectedEnd, corr.DetectedStart)
	refDir := vecSub(ref.End, ref.Start)
	if angleBetween(normalAngle(detectedDir), normalAngle(refDir)) > lineRejectionAngle {
		return lineMeasurement{}, false
	}

	relStart := corr.Anchor.ToLocal(corr.DetectedStart)
	relEnd := corr.Anchor.ToLocal(corr.DetectedEnd)
	projection := projectOntoLine([2]float64{0, 0}, relStart, relEnd)

	angle := -math.Atan2(projection[1], projection[0])
	if ref.Axis == robotapi.AxisX {
		angle += math.Pi / 2
	}
	angle = robotapi.WrapAngle(angle)
	if alt := robotapi.WrapAngle(angle - math.Pi); angleBetween(alt, currentHeading) < angleBetween(angle, currentHeading) {
		angle = alt
	}

	sin, cos := math.Sincos(angle)
	rotated := [2]float64{
		cos*projection[0] - sin*projection[1],
		sin*projection[0] + cos*projection[1],
	}

	var distance float64
	if ref.Axis == robotapi.AxisX {
		distance = ref.Start[1] - rotated[1]
	} else {
		distance = ref.Start[0] - rotated[0]
	}

	length := vecLen(refDir)
	lengthWeight := 1.0
	if length != 0 {
		lengthWeight = 1.0 / length
	}
	// An isotropic covariance is unchanged by rotation (R(eI)R^T = eI),
	// so the rotated distance variance is simply the reported error.
	distanceVariance := corr.SquaredError
	angleVariance := 0.0
	if length != 0 {
		angleVariance = math.Pow(math.Atan(math.Sqrt(4*distanceVariance/(length*length))), 2)
	}

	noise := mat.NewSymDense(2, []float64{
		lengthWeight * distanceVariance, 0,
		0, angleVariance,
	})
	return lineMeasurement{distance: distance, angle: angle, noise: noise}, true
}

// computeCircleMeasurement implements spec §4.D's circle-update
// geometry, mirroring computeLineMeasurement's signed-rotation
// construction: the reference is the tangent to the known circle at
// the point nearest the detected segment, and the expected robot
// position is that reference point displaced by the reference
// tangent rotated to match the signed angle between the detected
// segment and the anchor-relative vector to the robot.
func computeCircleMeasurement(layout FieldLayout, currentMean robotapi.Pose, corr robotapi.CircleCorrespondence) ([2]float64, *mat.SymDense, bool) {
	if !layout.InFieldWithMargin([2]float64{currentMean.X, currentMean.Y}, fieldMargin) {
		return [2]float64{}, nil, false
	}

	relStart := corr.Anchor.ToLocal(corr.DetectedStart)
	relEnd := corr.Anchor.ToLocal(corr.DetectedEnd)
	measuredVector := vecSub(relEnd, relStart)

	mid := [2]float64{(corr.DetectedStart[0] + corr.DetectedEnd[0]) / 2, (corr.DetectedStart[1] + corr.DetectedEnd[1]) / 2}
	bearingFromCenter := math.Atan2(mid[1]-corr.Reference.Center[1], mid[0]-corr.Reference.Center[0])
	referenceStart := [2]float64{
		corr.Reference.Center[0] + corr.Reference.Radius*math.Cos(bearingFromCenter),
		corr.Reference.Center[1] + corr.Reference.Radius*math.Sin(bearingFromCenter),
	}
	referenceEnd := [2]float64{
		referenceStart[0] - math.Sin(bearingFromCenter),
		referenceStart[1] + math.Cos(bearingFromCenter),
	}

	relReferenceStart := corr.Anchor.ToLocal(referenceStart)
	relReferenceEnd := corr.Anchor.ToLocal(referenceEnd)
	referenceVector := vecSub(relReferenceEnd, relReferenceStart)

	if angleBetween(normalAngle(measuredVector), normalAngle(referenceVector)) > circleRejectionAngle {
		return [2]float64{}, nil, false
	}

	vectorToRobot := [2]float64{-relStart[0], -relStart[1]}
	measuredRotation := math.Atan2(
		vectorToRobot[1]*measuredVector[0]-vectorToRobot[0]*measuredVector[1],
		vectorToRobot[0]*measuredVector[0]+vectorToRobot[1]*measuredVector[1],
	)

	refLen := vecLen(referenceVector)
	unitRef := referenceVector
	if refLen != 0 {
		unitRef = [2]float64{referenceVector[0] / refLen, referenceVector[1] / refLen}
	}
	robotDist := vecLen(vectorToRobot)
	sin, cos := math.Sincos(measuredRotation)
	rotated := [2]float64{
		(cos*unitRef[0] - sin*unitRef[1]) * robotDist,
		(sin*unitRef[0] + cos*unitRef[1]) * robotDist,
	}

	expectedLocal := [2]float64{relReferenceStart[0] + rotated[0], relReferenceStart[1] + rotated[1]}
	expected := corr.Anchor.ToWorld(expectedLocal)

	length := vecLen(measuredVector)
	weight := corr.SquaredError
	if length != 0 {
		weight = corr.SquaredError / length
	}
	return expected, mat.NewSymDense(2, []float64{weight, 0, 0, weight}), true
}
