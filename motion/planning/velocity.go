package planning

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/spl-robotics/fieldctrld/logging"
	"github.com/spl-robotics/fieldctrld/robotapi"
)

// Speed limits, attraction/rotation gains, and thresholds, per
// spec.md §4.E.1 and `original_source/yggdrasil/src/motion/
// step_planner.rs`.
const (
	maxWalkSpeed = 0.05
	maxSideSpeed = 0.035
	maxTurnSpeed = 0.35

	attractionGain = 1.2
	rotationGain   = 2.5

	pureTurnAngleThreshold = 0.8
	sideBlendAngleHigh     = 2.5
	sideBlendAngleMid      = 0.5
	sideBlendAngleLow      = 0.2
	preciseDistance        = 0.15
	backupDistance         = 0.5

	positionReachedTolerance = 0.05
	headingReachedTolerance  = 0.2

	lookaheadDistance = 0.3

	minimumProgress = 0.005
)

// TargetPlanner picks a collision-free path toward a BehaviorTarget and
// reduces it to one cycle's holonomic Step, tracking static and
// dynamic obstacles and whether the target has been reached.
type TargetPlanner struct {
	logger   logging.Logger
	strategy strategy

	target     robotapi.BehaviorTarget
	hasTarget  bool
	reachedPos bool
	reachedRot bool
}

type strategy interface {
	FindPath(start, goal r2.Point, obstacles []Obstacle) (Path, bool)
}

// NewTargetPlanner wraps a path-finding strategy (Planner or
// RRTPlanner) with the velocity-reduction and target-tracking layer.
func NewTargetPlanner(logger logging.Logger, strategy strategy) *TargetPlanner {
	return &TargetPlanner{logger: logger, strategy: strategy}
}

// SetTarget sets (or replaces) the active target, resetting reached flags.
func (t *TargetPlanner) SetTarget(target robotapi.BehaviorTarget) {
	t.target = target
	t.hasTarget = true
	t.reachedPos = false
	t.reachedRot = false
}

// SetTargetIfUnset sets the target only when none is currently active.
func (t *TargetPlanner) SetTargetIfUnset(target robotapi.BehaviorTarget) {
	if !t.hasTarget {
		t.SetTarget(target)
	}
}

// ClearTarget drops the active target.
func (t *TargetPlanner) ClearTarget() {
	t.hasTarget = false
	t.reachedPos = false
	t.reachedRot = false
}

// HasTarget reports whether a target is currently active.
func (t *TargetPlanner) HasTarget() bool { return t.hasTarget }

// Reached reports whether both the position and (if requested) heading
// components of the active target have been satisfied.
func (t *TargetPlanner) Reached() bool { return t.reachedPos && t.reachedRot }

// Plan computes this cycle's Step given the robot's current pose and
// the live obstacle set, or returns ok=false when there is no active
// target, the target has been reached, or no path exists.
func (t *TargetPlanner) Plan(pose robotapi.Pose, obstacles []Obstacle) (robotapi.Step, bool) {
	if !t.hasTarget {
		return robotapi.Step{}, false
	}

	robotPoint := r2.Point{X: pose.X, Y: pose.Y}
	goalPoint := r2.Point{X: t.target.Position[0], Y: t.target.Position[1]}

	path, ok := t.strategy.FindPath(robotPoint, goalPoint, obstacles)
	if !ok {
		t.logger.Warnw("step planner found no path", "goal", t.target.Position)
		return robotapi.Step{}, false
	}

	distanceToGoal := robotPoint.Sub(goalPoint).Norm()
	if distanceToGoal < positionReachedTolerance && len(path.Waypoints) == 2 {
		t.reachedPos = true
		if t.target.HasHeading {
			angleDiff := robotapi.WrapAngle(t.target.Heading - pose.Theta)
			if math.Abs(angleDiff) < headingReachedTolerance {
				t.reachedRot = true
				return robotapi.Step{}, false
			}
			return robotapi.Step{Turn: maxTurnSpeed * sign(angleDiff)}, true
		}
		t.reachedRot = true
		return robotapi.Step{}, false
	}

	waypoint := selectLookahead(path.Waypoints)
	step := t.velocityToStep(pose, waypoint, distanceToGoal)

	total := math.Abs(step.Forward) + math.Abs(step.Left) + 0.1*math.Abs(step.Turn)
	if total < minimumProgress {
		local := pose.ToLocal(t.target.Position)
		angleToTarget := math.Atan2(local[1], local[0])
		if math.Abs(angleToTarget) > sideBlendAngleMid {
			step = robotapi.Step{Turn: maxTurnSpeed * sign(angleToTarget)}
		} else {
			step = robotapi.Step{Forward: maxWalkSpeed * 0.5}
		}
	}

	return step, true
}

// selectLookahead walks the path from its start accumulating length
// until it reaches lookaheadDistance, returning that waypoint (or the
// last one if the path is shorter).
func selectLookahead(waypoints []r2.Point) r2.Point {
	if len(waypoints) <= 2 {
		return waypoints[len(waypoints)-1]
	}
	accumulated := 0.0
	selected := waypoints[1]
	for i := 1; i < len(waypoints); i++ {
		if i > 1 {
			accumulated += waypoints[i].Sub(waypoints[i-1]).Norm()
		}
		selected = waypoints[i]
		if accumulated >= lookaheadDistance {
			break
		}
	}
	return selected
}

func (t *TargetPlanner) velocityToStep(pose robotapi.Pose, waypoint r2.Point, distanceToTarget float64) robotapi.Step {
	local := pose.ToLocal([2]float64{waypoint.X, waypoint.Y})
	d := math.Hypot(local[0], local[1])
	if d < 0.001 {
		local = [2]float64{0.01, 0}
		d = 0.01
	}

	scale := velocityScale(d)
	vx := local[0] / d * attractionGain * scale
	vy := local[1] / d * attractionGain * scale

	alpha := math.Atan2(vy, vx)
	magnitude := math.Hypot(vx, vy)
	absAlpha := math.Abs(alpha)

	switch {
	case absAlpha > pureTurnAngleThreshold && distanceToTarget > preciseDistance:
		return robotapi.Step{
			Left: clamp(maxSideSpeed*sign(alpha)*0.3, -maxSideSpeed, maxSideSpeed),
			Turn: maxTurnSpeed * sign(alpha),
		}

	case distanceToTarget < preciseDistance:
		turn := alpha * rotationGain
		if t.target.HasHeading {
			turn = robotapi.WrapAngle(t.target.Heading-pose.Theta) * rotationGain
		}
		return robotapi.Step{
			Forward: clamp(vx*2, -maxWalkSpeed, maxWalkSpeed),
			Left:    clamp(vy*2.5, -maxSideSpeed, maxSideSpeed),
			Turn:    clamp(turn, -maxTurnSpeed, maxTurnSpeed),
		}

	case absAlpha > sideBlendAngleHigh:
		if distanceToTarget < backupDistance {
			return robotapi.Step{
				Forward: -maxWalkSpeed * 0.7,
				Left:    maxSideSpeed * sign(alpha) * 0.5,
				Turn:    maxTurnSpeed * sign(alpha),
			}
		}
		return robotapi.Step{
			Left: maxSideSpeed * sign(alpha),
			Turn: maxTurnSpeed * sign(alpha),
		}

	case absAlpha > sideBlendAngleMid:
		return robotapi.Step{
			Forward: maxWalkSpeed * math.Max(math.Cos(alpha), 0) * magnitude * 0.6,
			Left:    maxSideSpeed * math.Sin(alpha) * magnitude,
			Turn:    maxTurnSpeed * sign(alpha) * (0.7 + 0.3*(absAlpha/1.2)),
		}

	case absAlpha > sideBlendAngleLow:
		return robotapi.Step{
			Forward: maxWalkSpeed * math.Cos(alpha) * magnitude,
			Left:    maxSideSpeed * math.Sin(alpha) * magnitude,
			Turn:    clamp(alpha*rotationGain, -maxTurnSpeed, maxTurnSpeed),
		}

	default:
		return robotapi.Step{
			Forward: maxWalkSpeed * magnitude,
			Left:    clamp(maxSideSpeed*alpha*3, -maxSideSpeed*0.5, maxSideSpeed*0.5),
			Turn:    clamp(alpha*rotationGain*2, -maxTurnSpeed*0.8, maxTurnSpeed*0.8),
		}
	}
}

func velocityScale(d float64) float64 {
	switch {
	case d <= 0.1:
		return 0.3
	case d <= 0.3:
		return 0.6
	case d <= 0.8:
		return 0.8 + 0.4*(d-0.3)
	default:
		return 1.0
	}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
