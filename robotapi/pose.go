package robotapi

import "math"

// Pose is an SE(2) position: 2D translation plus heading in (-pi, pi].
type Pose struct {
	X, Y, Theta float64
}

// Odometry is an SE(2) offset from the previous cycle's pose to the
// current cycle's pose.
type Odometry struct {
	Forward, Left, Turn float64
}

// WrapAngle normalizes theta to (-pi, pi].
func WrapAngle(theta float64) float64 {
	theta = math.Mod(theta+math.Pi, 2*math.Pi)
	if theta <= 0 {
		theta += 2 * math.Pi
	}
	return theta - math.Pi
}

// Compose returns a ∘ b: b expressed in a's frame, applied after a.
func (a Pose) Compose(b Pose) Pose {
	sin, cos := math.Sincos(a.Theta)
	return Pose{
		X:     a.X + cos*b.X - sin*b.Y,
		Y:     a.Y + sin*b.X + cos*b.Y,
		Theta: WrapAngle(a.Theta + b.Theta),
	}
}

// ToWorld transforms a point from this pose's local frame into world
// coordinates.
func (a Pose) ToWorld(local [2]float64) [2]float64 {
	sin, cos := math.Sincos(a.Theta)
	return [2]float64{
		a.X + cos*local[0] - sin*local[1],
		a.Y + sin*local[0] + cos*local[1],
	}
}

// ToLocal transforms a point from world coordinates into this pose's
// local frame; the inverse of ToWorld.
func (a Pose) ToLocal(world [2]float64) [2]float64 {
	dx, dy := world[0]-a.X, world[1]-a.Y
	sin, cos := math.Sincos(-a.Theta)
	return [2]float64{
		cos*dx - sin*dy,
		sin*dx + cos*dy,
	}
}

// Inverse returns the pose whose frame undoes a: a.Compose(a.Inverse()) is identity.
func (a Pose) Inverse() Pose {
	sin, cos := math.Sincos(-a.Theta)
	return Pose{
		X:     -(cos*a.X - sin*a.Y),
		Y:     -(sin*a.X + cos*a.Y),
		Theta: WrapAngle(-a.Theta),
	}
}

// BehaviorTarget is the position (and optional heading) a behavior
// collaborator asks the planner to reach.
type BehaviorTarget struct {
	Position   [2]float64
	Heading    float64
	HasHeading bool
}

// Step is a single cycle's holonomic walk command: forward/left
// translation plus turn, all in metres (turn in radians) per step.
type Step struct {
	Forward, Left, Turn float64
}

// ReferenceAxis tags which axis a reference line segment runs parallel to.
type ReferenceAxis int

const (
	AxisX ReferenceAxis = iota
	AxisY
)

// ReferenceLine is a known field line, tagged by its dominant axis.
type ReferenceLine struct {
	Start, End [2]float64
	Axis       ReferenceAxis
}

// ReferenceCircle is a known field circle (e.g. the centre circle).
type ReferenceCircle struct {
	Center [2]float64
	Radius float64
}

// LineCorrespondence pairs a detected segment with a matched reference
// line, produced by the vision collaborator and consumed by the pose
// filter bank.
type LineCorrespondence struct {
	DetectedStart, DetectedEnd [2]float64
	Reference                 ReferenceLine
	SquaredError              float64
	Anchor                    Pose
}

// CircleCorrespondence pairs a detected segment with a matched
// reference circle.
type CircleCorrespondence struct {
	DetectedStart, DetectedEnd [2]float64
	Reference                 ReferenceCircle
	SquaredError              float64
	Anchor                    Pose
}

// BallObservation is a ball sighting in the robot frame.
type BallObservation struct {
	Position [2]float64
	Cycle    uint64
}
