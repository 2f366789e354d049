package planning

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"

	"github.com/spl-robotics/fieldctrld/logging"
)

// RRT* tuning, per `original_source/yggdrasil/src/motion/
// rrt_path_planner.rs`.
const (
	rrtGoalBias     = 0.1
	rrtStepSize     = 0.3
	rrtRewireRadius = 0.6
	rrtMaxIterations = 2000
	rrtGoalTolerance = 0.1
)

// RRTPlanner is the randomized alternative to Planner: goal-biased
// sampling, step-bounded steering, and rewiring within a fixed search
// radius, per spec.md §4.E.1's "either strategy is acceptable" clause.
type RRTPlanner struct {
	logger logging.Logger
	rng    *rand.Rand
	bounds r2.Rect
}

// NewRRTPlanner builds an RRT* planner sampling uniformly within
// bounds. rng may be nil to use a new source seeded with 1.
func NewRRTPlanner(logger logging.Logger, bounds r2.Rect, rng *rand.Rand) *RRTPlanner {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &RRTPlanner{logger: logger, rng: rng, bounds: bounds}
}

type rrtNode struct {
	point  r2.Point
	parent int
	cost   float64
}

// FindPath runs RRT* from start toward goal, returning the best path
// found once a node reaches within rrtGoalTolerance of goal, or ok=false
// if no connection is found within rrtMaxIterations.
func (p *RRTPlanner) FindPath(start, goal r2.Point, obstacles []Obstacle) (path Path, ok bool) {
	if !segmentCollides(start, goal, obstacles) {
		return Path{Waypoints: []r2.Point{start, goal}, Length: start.Sub(goal).Norm()}, true
	}

	nodes := []rrtNode{{point: start, parent: -1, cost: 0}}
	bestGoalIdx := -1
	bestGoalCost := math.Inf(1)

	for i := 0; i < rrtMaxIterations; i++ {
		sample := goal
		if p.rng.Float64() > rrtGoalBias {
			sample = r2.Point{
				X: p.bounds.X.Lo + p.rng.Float64()*p.bounds.X.Length(),
				Y: p.bounds.Y.Lo + p.rng.Float64()*p.bounds.Y.Length(),
			}
		}

		nearestIdx := nearest(nodes, sample)
		steered := steer(nodes[nearestIdx].point, sample, rrtStepSize)
		if segmentCollides(nodes[nearestIdx].point, steered, obstacles) {
			continue
		}

		parentIdx := nearestIdx
		parentCost := nodes[nearestIdx].cost + nodes[nearestIdx].point.Sub(steered).Norm()
		for idx, n := range nodes {
			if idx == nearestIdx {
				continue
			}
			d := n.point.Sub(steered).Norm()
			if d > rrtRewireRadius {
				continue
			}
			candidateCost := n.cost + d
			if candidateCost < parentCost && !segmentCollides(n.point, steered, obstacles) {
				parentIdx, parentCost = idx, candidateCost
			}
		}

		newIdx := len(nodes)
		nodes = append(nodes, rrtNode{point: steered, parent: parentIdx, cost: parentCost})

		for idx := range nodes[:newIdx] {
			n := nodes[idx]
			d := n.point.Sub(steered).Norm()
			if d > rrtRewireRadius || idx == parentIdx {
				continue
			}
			if candidateCost := parentCost + d; candidateCost < n.cost && !segmentCollides(steered, n.point, obstacles) {
				nodes[idx].parent = newIdx
				nodes[idx].cost = candidateCost
			}
		}

		if d := steered.Sub(goal).Norm(); d < rrtGoalTolerance && parentCost+d < bestGoalCost {
			bestGoalIdx, bestGoalCost = newIdx, parentCost+d
		}
	}

	if bestGoalIdx == -1 {
		return Path{}, false
	}

	var waypoints []r2.Point
	for idx := bestGoalIdx; idx != -1; idx = nodes[idx].parent {
		waypoints = append([]r2.Point{nodes[idx].point}, waypoints...)
	}
	waypoints = append(waypoints, goal)
	return Path{Waypoints: waypoints, Length: bestGoalCost}, true
}

func nearest(nodes []rrtNode, p r2.Point) int {
	best, bestDist := 0, math.Inf(1)
	for i, n := range nodes {
		if d := n.point.Sub(p).Norm(); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func steer(from, toward r2.Point, maxStep float64) r2.Point {
	delta := toward.Sub(from)
	if d := delta.Norm(); d > maxStep {
		delta = delta.Mul(maxStep / d)
	}
	return from.Add(delta)
}
