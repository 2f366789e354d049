package planning

import (
	"container/heap"
	"math"

	"github.com/golang/geo/r2"

	"github.com/spl-robotics/fieldctrld/logging"
)

// Path is the result of a successful plan: a sequence of XY waypoints
// (start first, goal last) and its total geometric length.
type Path struct {
	Waypoints []r2.Point
	Length    float64
}

// Planner finds an obstacle-aware path via A* over a reduced state
// space of straight segments and tangent arcs, per spec.md §4.E.1.
// The robot's current position is treated as a bare point rather than
// an oriented isometry — unlike a wheeled vehicle a biped can begin
// turning freely on the next step, so no ease-in arc is forced at the
// start; this is a deliberate simplification from `original_source/
// yggdrasil/src/motion/path/finding.rs`'s Position::Isometry branch,
// recorded in DESIGN.md.
type Planner struct {
	logger logging.Logger
}

// NewPlanner builds an A* Planner.
func NewPlanner(logger logging.Logger) *Planner {
	return &Planner{logger: logger}
}

// searchNode is one expanded state: either start, goal, or a point on
// an obstacle's inflated boundary reached travelling in direction
// `arcSide`.
type searchNode struct {
	point       r2.Point
	obstacleIdx int // -1 for start, -2 for goal
	arcSide     side
	cost        float64
	parent      *searchNode
	// via holds the waypoints an arc hop passes through between
	// parent.point and point (the arc's subdivided interior plus its
	// own exit tangent point); empty for a straight-line hop.
	via []r2.Point
}

// arcSubdivisions is the number of interior waypoints generated along
// a tangent-arc hop, so the straight-segment path a consumer walks
// approximates the curve instead of cutting across the obstacle. It is
// odd, so the arc's midpoint is itself one of the waypoints.
const arcSubdivisions = 5

func subdivideArc(o Obstacle, p1, p2 r2.Point, s side) []r2.Point {
	r := o.inflatedRadius()
	a1 := math.Atan2(p1.Y-o.Center.Y, p1.X-o.Center.X)
	a2 := math.Atan2(p2.Y-o.Center.Y, p2.X-o.Center.X)
	delta := math.Mod(a2-a1+2*math.Pi, 2*math.Pi)
	if s == cw {
		delta = -math.Mod(a1-a2+2*math.Pi, 2*math.Pi)
	}
	pts := make([]r2.Point, 0, arcSubdivisions)
	for i := 1; i <= arcSubdivisions; i++ {
		angle := a1 + delta*float64(i)/float64(arcSubdivisions+1)
		pts = append(pts, r2.Point{
			X: o.Center.X + r*math.Cos(angle),
			Y: o.Center.Y + r*math.Sin(angle),
		})
	}
	return pts
}

type nodeKey struct {
	obstacleIdx int
	arcSide     side
}

type pqItem struct {
	node     *searchNode
	priority float64
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *priorityQueue) Push(x interface{}) { item := x.(*pqItem); item.index = len(*pq); *pq = append(*pq, item) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// FindPath searches for a collision-free path from start to goal
// around obstacles. ok is false when no path exists.
func (p *Planner) FindPath(start, goal r2.Point, obstacles []Obstacle) (path Path, ok bool) {
	if !segmentCollides(start, goal, obstacles) {
		return Path{Waypoints: []r2.Point{start, goal}, Length: start.Sub(goal).Norm()}, true
	}

	pq := &priorityQueue{}
	heap.Init(pq)
	startNode := &searchNode{point: start, obstacleIdx: -1}
	heap.Push(pq, &pqItem{node: startNode, priority: start.Sub(goal).Norm()})

	best := map[nodeKey]float64{{obstacleIdx: -1}: 0}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		n := item.node

		if n.obstacleIdx == -2 {
			return buildPath(n), true
		}

		key := nodeKey{obstacleIdx: n.obstacleIdx, arcSide: n.arcSide}
		if recorded, seen := best[key]; seen && n.cost > recorded+1e-9 {
			continue
		}

		for _, succ := range p.successors(n, obstacles, goal) {
			key := nodeKey{obstacleIdx: succ.obstacleIdx, arcSide: succ.arcSide}
			if recorded, seen := best[key]; seen && succ.cost >= recorded-1e-9 {
				continue
			}
			best[key] = succ.cost
			heap.Push(pq, &pqItem{node: succ, priority: succ.cost + succ.point.Sub(goal).Norm()})
		}
	}

	return Path{}, false
}

func (p *Planner) successors(n *searchNode, obstacles []Obstacle, goal r2.Point) []*searchNode {
	var out []*searchNode

	if n.obstacleIdx == -1 {
		if !segmentCollides(n.point, goal, obstacles) {
			out = append(out, &searchNode{
				point: goal, obstacleIdx: -2,
				cost: n.cost + n.point.Sub(goal).Norm(), parent: n,
			})
		}
	} else {
		// Peel off toward the goal along the tangent line that leaves
		// obstacleIdx's boundary without re-crossing it, continuing in
		// the same rotational direction the arc arrived in.
		obstacle := obstacles[n.obstacleIdx]
		for _, exitSide := range []side{ccw, cw} {
			exit, ok := tangentPointToCircle(goal, obstacle, exitSide)
			if !ok || segmentCollidesExcept(exit, goal, obstacles, n.obstacleIdx, -1) {
				continue
			}
			arc := arcLength(obstacle, n.point, exit, n.arcSide)
			via := subdivideArc(obstacle, n.point, exit, n.arcSide)
			via = append(via, exit)
			out = append(out, &searchNode{
				point: goal, obstacleIdx: -2,
				cost: n.cost + arc + exit.Sub(goal).Norm(), parent: n, via: via,
			})
		}
	}

	for j, obstacle := range obstacles {
		if j == n.obstacleIdx {
			continue
		}
		for _, s := range []side{ccw, cw} {
			if n.obstacleIdx == -1 {
				tangent, ok := tangentPointToCircle(n.point, obstacle, s)
				if !ok || segmentCollidesExcept(n.point, tangent, obstacles, j, -1) {
					continue
				}
				out = append(out, &searchNode{
					point: tangent, obstacleIdx: j, arcSide: s,
					cost: n.cost + n.point.Sub(tangent).Norm(), parent: n,
				})
				continue
			}

			pa, pb, ok := externalTangent(obstacles[n.obstacleIdx], obstacle, s)
			if !ok || segmentCollidesExcept(pa, pb, obstacles, n.obstacleIdx, j) {
				continue
			}
			arc := arcLength(obstacles[n.obstacleIdx], n.point, pa, n.arcSide)
			via := subdivideArc(obstacles[n.obstacleIdx], n.point, pa, n.arcSide)
			via = append(via, pa)
			out = append(out, &searchNode{
				point: pb, obstacleIdx: j, arcSide: s,
				cost: n.cost + arc + pa.Sub(pb).Norm(), parent: n, via: via,
			})
		}
	}

	return out
}

func buildPath(n *searchNode) Path {
	var chain []*searchNode
	for cur := n; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}

	var waypoints []r2.Point
	for i := len(chain) - 1; i >= 0; i-- {
		cur := chain[i]
		waypoints = append(waypoints, cur.via...)
		waypoints = append(waypoints, cur.point)
	}
	return Path{Waypoints: waypoints, Length: n.cost}
}
