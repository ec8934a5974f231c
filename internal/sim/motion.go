package sim

import (
	"fmt"
	"math"

	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/policy"
	"github.com/autonav/roadsim/internal/roadgraph"
)

// maxSpeed caps the discrete kinematics at two speed steps.
const maxSpeed = 2.0

// #region motion

// GridMotion is the in-process kinematics model: one cell of travel
// per tick along the heading, quarter-turn steering, discrete speed
// steps. Attempting to leave the road halts the agent in place;
// entering an occupied cell is a collision.
type GridMotion struct {
	env *Environment
}

// NewGridMotion binds the model to its world.
func NewGridMotion(env *Environment) *GridMotion {
	return &GridMotion{env: env}
}

// Apply advances one pose by one action. Pure with respect to the
// pose argument; the world itself never changes here.
func (m *GridMotion) Apply(pose perception.Pose, action policy.Action) (perception.Pose, bool, error) {
	next := pose
	moving := false

	switch action {
	case policy.ActionAccelerate:
		next.Speed = math.Min(pose.Speed+1, maxSpeed)
		moving = true
	case policy.ActionBrake:
		next.Speed = 0
	case policy.ActionMaintain:
		moving = pose.Speed >= 1
	case policy.ActionSteerLeft:
		next.Heading = normalizeHeading(pose.Heading + math.Pi/2)
		moving = pose.Speed >= 1
	case policy.ActionSteerRight:
		next.Heading = normalizeHeading(pose.Heading - math.Pi/2)
		moving = pose.Speed >= 1
	default:
		return perception.Pose{}, false, fmt.Errorf("unknown action %d", int(action))
	}

	if !moving {
		return next, false, nil
	}

	x := int(math.Round(next.Position.X)) + int(math.Round(math.Cos(next.Heading)))
	y := int(math.Round(next.Position.Y)) + int(math.Round(math.Sin(next.Heading)))

	if !m.env.layout.IsRoad(x, y) {
		// the curb stops the car
		next.Speed = 0
		return next, false, nil
	}
	next.Position = roadgraph.Vec2{X: float64(x), Y: float64(y)}
	if m.env.HasObstacle(x, y) {
		return next, true, nil
	}
	return next, false, nil
}

// normalizeHeading maps a heading into (-pi, pi].
func normalizeHeading(h float64) float64 {
	for h > math.Pi {
		h -= 2 * math.Pi
	}
	for h <= -math.Pi {
		h += 2 * math.Pi
	}
	return h
}

// #endregion motion
