package planning

import (
	"math"

	"github.com/golang/geo/r2"
)

// side names the rotational direction of travel around an obstacle's
// boundary, following spec.md §4.E.1's Ccw/Cw state naming.
type side int

const (
	ccw side = iota
	cw
)

func (s side) other() side {
	if s == ccw {
		return cw
	}
	return ccw
}

// distancePointToSegment returns the shortest distance from p to the
// line segment ab.
func distancePointToSegment(p, a, b r2.Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq == 0 {
		return p.Sub(a).Norm()
	}
	t := p.Sub(a).Dot(ab) / lenSq
	t = math.Max(0, math.Min(1, t))
	proj := a.Add(ab.Mul(t))
	return p.Sub(proj).Norm()
}

// segmentCollides reports whether the segment ab comes within any
// obstacle's inflated radius, per spec.md §4.E.1's collision test.
func segmentCollides(a, b r2.Point, obstacles []Obstacle) bool {
	return segmentCollidesExcept(a, b, obstacles, -1, -1)
}

// segmentCollidesExcept is segmentCollides but ignores obstacles at
// index except1/except2: a tangent or bitangent line touches its own
// defining obstacle(s) exactly at the inflated radius by construction,
// which is not itself a collision.
func segmentCollidesExcept(a, b r2.Point, obstacles []Obstacle, except1, except2 int) bool {
	const tangentEpsilon = 1e-7
	for i, o := range obstacles {
		if i == except1 || i == except2 {
			continue
		}
		if distancePointToSegment(o.Center, a, b) <= o.inflatedRadius()-tangentEpsilon {
			return true
		}
	}
	return false
}

// tangentPointToCircle returns the point on o's inflated boundary
// tangent to the line from the external point p, on the requested
// side. ok is false when p lies inside (or on) the circle.
func tangentPointToCircle(p r2.Point, o Obstacle, s side) (pt r2.Point, ok bool) {
	r := o.inflatedRadius()
	d := p.Sub(o.Center).Norm()
	if d <= r {
		return r2.Point{}, false
	}
	thetaC := math.Acos(r / d)
	phi := math.Atan2(p.Y-o.Center.Y, p.X-o.Center.X)
	sign := 1.0
	if s == cw {
		sign = -1.0
	}
	angle := phi + sign*thetaC
	return r2.Point{
		X: o.Center.X + r*math.Cos(angle),
		Y: o.Center.Y + r*math.Sin(angle),
	}, true
}

// externalTangent returns the pair of tangent points (one on each
// circle) of the external common tangent line on the requested side —
// the tangent line that does not cross between the two circles.
// ok is false when the circles are concentric or one fully contains
// the tangent construction (|ra-rb| > d).
func externalTangent(a, b Obstacle, s side) (pa, pb r2.Point, ok bool) {
	ra, rb := a.inflatedRadius(), b.inflatedRadius()
	d := b.Center.Sub(a.Center).Norm()
	if d == 0 || math.Abs(ra-rb) > d {
		return r2.Point{}, r2.Point{}, false
	}
	beta := math.Asin((ra - rb) / d)
	phi := math.Atan2(b.Center.Y-a.Center.Y, b.Center.X-a.Center.X)
	sign := 1.0
	if s == cw {
		sign = -1.0
	}
	angle := phi + sign*(math.Pi/2+beta)
	pa = r2.Point{X: a.Center.X + ra*math.Cos(angle), Y: a.Center.Y + ra*math.Sin(angle)}
	pb = r2.Point{X: b.Center.X + rb*math.Cos(angle), Y: b.Center.Y + rb*math.Sin(angle)}
	return pa, pb, true
}

// arcLength is the length of the arc on o's boundary from p1 to p2,
// travelling in direction s.
func arcLength(o Obstacle, p1, p2 r2.Point, s side) float64 {
	a1 := math.Atan2(p1.Y-o.Center.Y, p1.X-o.Center.X)
	a2 := math.Atan2(p2.Y-o.Center.Y, p2.X-o.Center.X)
	var delta float64
	if s == ccw {
		delta = math.Mod(a2-a1+2*math.Pi, 2*math.Pi)
	} else {
		delta = math.Mod(a1-a2+2*math.Pi, 2*math.Pi)
	}
	return o.inflatedRadius() * delta
}
