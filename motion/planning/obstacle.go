// Package planning finds an obstacle-aware path from the robot's
// current position to a behavior target and reduces it to a single
// cycle's holonomic step command.
package planning

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
)

// inflationFactor is applied to every obstacle radius before the
// collision test, per spec.md §4.E.1.
const inflationFactor = 1.01

// Obstacle is a disk the planner must route around.
type Obstacle struct {
	Center r2.Point
	Radius float64
}

func (o Obstacle) inflatedRadius() float64 { return o.Radius * inflationFactor }

type dynamicObstacle struct {
	id       uuid.UUID
	obstacle Obstacle
	deadline time.Time
}

// ObstacleSet holds the static obstacles (fixed for the match, e.g. goal
// posts) plus dynamic obstacles reported with a TTL (e.g. teammates,
// opponents seen by vision). A dynamic obstacle added within
// mergeDistance of an existing one refreshes that obstacle's deadline
// instead of creating a duplicate.
type ObstacleSet struct {
	clock   clock.Clock
	static  []Obstacle
	dynamic []dynamicObstacle
}

// NewObstacleSet starts a set with the given fixed obstacles.
func NewObstacleSet(clk clock.Clock, static []Obstacle) *ObstacleSet {
	if clk == nil {
		clk = clock.New()
	}
	return &ObstacleSet{clock: clk, static: append([]Obstacle(nil), static...)}
}

// AddDynamic inserts or refreshes a dynamic obstacle.
func (s *ObstacleSet) AddDynamic(obs Obstacle, ttl time.Duration, mergeDistance float64) {
	deadline := s.clock.Now().Add(ttl)
	for i := range s.dynamic {
		if s.dynamic[i].obstacle.Center.Sub(obs.Center).Norm() <= mergeDistance {
			s.dynamic[i].deadline = deadline
			return
		}
	}
	s.dynamic = append(s.dynamic, dynamicObstacle{id: uuid.New(), obstacle: obs, deadline: deadline})
}

// All garbage-collects expired dynamic obstacles and returns every
// obstacle (static + live dynamic) currently in effect.
func (s *ObstacleSet) All() []Obstacle {
	now := s.clock.Now()
	kept := s.dynamic[:0]
	for _, d := range s.dynamic {
		if now.Before(d.deadline) {
			kept = append(kept, d)
		}
	}
	s.dynamic = kept

	all := make([]Obstacle, 0, len(s.static)+len(s.dynamic))
	all = append(all, s.static...)
	for _, d := range s.dynamic {
		all = append(all, d.obstacle)
	}
	return all
}

// DynamicCount reports how many live dynamic obstacles remain, for tests.
func (s *ObstacleSet) DynamicCount() int { return len(s.dynamic) }
