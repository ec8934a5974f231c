package sim

import (
	"math/rand"

	"github.com/autonav/roadsim/internal/agent"
	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/roadgraph"
	"github.com/autonav/roadsim/internal/scenario"
)

// obstacleRadius is the footprint reported to perception. Obstacles
// occupy a single grid cell.
const obstacleRadius = 0.4

type cell struct{ x, y int }

// #region environment

// Environment owns the simulated world around the road graph: the cell
// layout and the obstacle field. It produces per-tick observations for
// the decision loop.
type Environment struct {
	layout    scenario.GridLayout
	rng       *rand.Rand
	obstacles map[cell]struct{}
	start     cell
	goal      cell
}

// NewEnvironment creates an empty world over the layout. Obstacle
// placement is seeded, so a run is reproducible from its scenario.
func NewEnvironment(layout scenario.GridLayout, seed int64) *Environment {
	sx, sy := layout.StartCell()
	gx, gy := layout.GoalCell()
	return &Environment{
		layout:    layout,
		rng:       rand.New(rand.NewSource(seed)),
		obstacles: make(map[cell]struct{}),
		start:     cell{sx, sy},
		goal:      cell{gx, gy},
	}
}

// PlaceObstacles rejection-samples n obstacles onto road cells,
// avoiding the mission endpoints. Replaces the previous field. Dense
// requests may place fewer after the attempt budget runs out.
func (e *Environment) PlaceObstacles(n int) int {
	e.obstacles = make(map[cell]struct{}, n)
	attempts := 0
	for len(e.obstacles) < n && attempts < n*50 {
		attempts++
		c := cell{e.rng.Intn(e.layout.Width), e.rng.Intn(e.layout.Height)}
		if !e.layout.IsRoad(c.x, c.y) || c == e.start || c == e.goal {
			continue
		}
		e.obstacles[c] = struct{}{}
	}
	return len(e.obstacles)
}

// HasObstacle reports whether the cell is occupied.
func (e *Environment) HasObstacle(x, y int) bool {
	_, ok := e.obstacles[cell{x, y}]
	return ok
}

// Obstacles returns the field in world coordinates.
func (e *Environment) Obstacles() []perception.Obstacle {
	out := make([]perception.Obstacle, 0, len(e.obstacles))
	for c := range e.obstacles {
		out = append(out, perception.Obstacle{
			Position: roadgraph.Vec2{X: float64(c.x), Y: float64(c.y)},
			Radius:   obstacleRadius,
		})
	}
	return out
}

// BlockedEdges lists every graph edge that leads into an occupied
// cell, in both directions.
func (e *Environment) BlockedEdges() []roadgraph.EdgeKey {
	var out []roadgraph.EdgeKey
	for c := range e.obstacles {
		for _, d := range [4]cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			n := cell{c.x + d.x, c.y + d.y}
			if !e.layout.IsRoad(n.x, n.y) {
				continue
			}
			from := scenario.CellID(n.x, n.y)
			to := scenario.CellID(c.x, c.y)
			out = append(out, roadgraph.EdgeKey{From: from, To: to})
			out = append(out, roadgraph.EdgeKey{From: to, To: from})
		}
	}
	return out
}

// Observe assembles the decision loop's world feed for one tick.
func (e *Environment) Observe(explorationRate float64) agent.Observation {
	return agent.Observation{
		Obstacles:       e.Obstacles(),
		BlockedEdges:    e.BlockedEdges(),
		ExplorationRate: explorationRate,
	}
}

// StartPose is the mission's initial pose: at the start cell, facing
// east, stationary.
func (e *Environment) StartPose() perception.Pose {
	return perception.Pose{
		Position: roadgraph.Vec2{X: float64(e.start.x), Y: float64(e.start.y)},
	}
}

// #endregion environment
