package perception

import (
	"fmt"
	"math"

	"github.com/autonav/roadsim/internal/roadgraph"
)

// #region types

// Pose is the agent's raw world observation of itself.
type Pose struct {
	Position roadgraph.Vec2 `json:"position"`
	Heading  float64        `json:"heading"` // radians, counter-clockwise from +X
	Speed    float64        `json:"speed"`
}

// Obstacle is a sensed object in world coordinates.
type Obstacle struct {
	Position roadgraph.Vec2 `json:"position"`
	Radius   float64        `json:"radius"`
}

// Bounds is the axis-aligned world extent obstacles must fall inside.
type Bounds struct {
	Min roadgraph.Vec2 `json:"min"`
	Max roadgraph.Vec2 `json:"max"`
}

// Contains reports whether p lies inside the bounds (inclusive).
func (b Bounds) Contains(p roadgraph.Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Config holds the quantization thresholds. All of it is scenario
// configuration, not hard-coded policy.
type Config struct {
	NearDistance float64 `json:"near_distance"` // distance bucket 0 below this
	MidDistance  float64 `json:"mid_distance"`  // bucket 1 below this, else 2
	SlowSpeed    float64 `json:"slow_speed"`    // speed bucket 0 below this
	FastSpeed    float64 `json:"fast_speed"`    // bucket 2 at or above this
	ConeRadius   float64 `json:"cone_radius"`   // obstacle sensing radius
	Bounds       Bounds  `json:"bounds"`
}

// State is the discrete observation the policy consumes. Produced fresh
// each tick, never mutated.
type State struct {
	Bearing       int  // octant to next waypoint relative to heading, 0 = ahead
	Distance      int  // 0 near, 1 mid, 2 far
	ObstacleAhead bool
	ObstacleLeft  bool
	ObstacleRight bool
	Speed         int  // 0 slow, 1 cruising, 2 fast
	Terminal      bool // route exhausted
}

// InvalidObservationError reports obstacle data outside the world
// bounds. The tick that sensed it aborts and retries next invocation.
type InvalidObservationError struct {
	Position roadgraph.Vec2
}

func (e *InvalidObservationError) Error() string {
	return fmt.Sprintf("obstacle at (%.2f, %.2f) outside world bounds", e.Position.X, e.Position.Y)
}

// #endregion types

// #region state-key

// Key returns the canonical encoding of the state, used as the Q-table
// key and in persisted artifacts.
func (s State) Key() string {
	return fmt.Sprintf("b%d:d%d:o%d%d%d:s%d:t%d",
		s.Bearing, s.Distance,
		boolBit(s.ObstacleAhead), boolBit(s.ObstacleLeft), boolBit(s.ObstacleRight),
		s.Speed, boolBit(s.Terminal))
}

// ParseKey inverts Key. Exact round-trip: ParseKey(s.Key()) == s.
func ParseKey(key string) (State, error) {
	var bearing, distance, ahead, left, right, speed, terminal int
	n, err := fmt.Sscanf(key, "b%d:d%d:o%1d%1d%1d:s%d:t%d",
		&bearing, &distance, &ahead, &left, &right, &speed, &terminal)
	if err != nil || n != 7 {
		return State{}, fmt.Errorf("malformed state key %q", key)
	}
	return State{
		Bearing:       bearing,
		Distance:      distance,
		ObstacleAhead: ahead == 1,
		ObstacleLeft:  left == 1,
		ObstacleRight: right == 1,
		Speed:         speed,
		Terminal:      terminal == 1,
	}, nil
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion state-key

// #region sense

// Sense quantizes a raw observation into a State. Pure: any pose maps
// to exactly one State. When routeDone is set the emitted state carries
// the terminal marker and waypoint-relative fields are zeroed.
func Sense(pose Pose, waypoint roadgraph.Vec2, routeDone bool, obstacles []Obstacle, cfg Config) (State, error) {
	for _, o := range obstacles {
		if !cfg.Bounds.Contains(o.Position) {
			return State{}, &InvalidObservationError{Position: o.Position}
		}
	}

	s := State{Speed: speedBucket(pose.Speed, cfg)}
	s.ObstacleAhead, s.ObstacleLeft, s.ObstacleRight = obstacleFlags(pose, obstacles, cfg)

	if routeDone {
		s.Terminal = true
		return s, nil
	}

	s.Bearing = bearingOctant(pose, waypoint)
	s.Distance = distanceBucket(pose.Position.Dist(waypoint), cfg)
	return s, nil
}

// bearingOctant buckets the waypoint direction into 8 compass octants
// relative to the agent's heading. Octant 0 is dead ahead, octants
// increase counter-clockwise.
func bearingOctant(pose Pose, waypoint roadgraph.Vec2) int {
	abs := math.Atan2(waypoint.Y-pose.Position.Y, waypoint.X-pose.Position.X)
	rel := normalizeAngle(abs - pose.Heading)
	oct := int(math.Floor((rel+math.Pi/8)/(math.Pi/4))) % 8
	if oct < 0 {
		oct += 8
	}
	return oct
}

func distanceBucket(d float64, cfg Config) int {
	switch {
	case d < cfg.NearDistance:
		return 0
	case d < cfg.MidDistance:
		return 1
	default:
		return 2
	}
}

func speedBucket(speed float64, cfg Config) int {
	switch {
	case speed < cfg.SlowSpeed:
		return 0
	case speed < cfg.FastSpeed:
		return 1
	default:
		return 2
	}
}

// obstacleFlags checks occupancy within three 90-degree cones of radius
// cfg.ConeRadius: ahead, left, right. Obstacles behind are ignored.
func obstacleFlags(pose Pose, obstacles []Obstacle, cfg Config) (ahead, left, right bool) {
	for _, o := range obstacles {
		if pose.Position.Dist(o.Position) > cfg.ConeRadius+o.Radius {
			continue
		}
		abs := math.Atan2(o.Position.Y-pose.Position.Y, o.Position.X-pose.Position.X)
		rel := normalizeAngle(abs - pose.Heading)
		switch {
		case math.Abs(rel) <= math.Pi/4:
			ahead = true
		case rel > math.Pi/4 && rel <= 3*math.Pi/4:
			left = true
		case rel < -math.Pi/4 && rel >= -3*math.Pi/4:
			right = true
		}
	}
	return ahead, left, right
}

// normalizeAngle maps an angle into (-pi, pi].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// #endregion sense
