package scenario

import (
	"fmt"

	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/reward"
	"github.com/autonav/roadsim/internal/roadgraph"
)

// #region layout

// GridLayout describes a synthetic town: a five-lane horizontal
// arterial across the middle plus two three-lane vertical connectors
// at one third and two thirds of the width.
type GridLayout struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsRoad reports whether the cell belongs to the road surface.
func (gl GridLayout) IsRoad(x, y int) bool {
	if x < 0 || x >= gl.Width || y < 0 || y >= gl.Height {
		return false
	}
	bandStart := gl.Height/2 - 2
	bandEnd := gl.Height/2 + 3
	if y >= bandStart && y < bandEnd {
		return true
	}
	for _, roadX := range []int{gl.Width / 3, 2 * gl.Width / 3} {
		if x >= roadX-1 && x <= roadX+1 {
			return true
		}
	}
	return false
}

// StartCell is the mission start on the arterial's west end.
func (gl GridLayout) StartCell() (int, int) { return 2, gl.Height / 2 }

// GoalCell is the mission goal on the arterial's east end.
func (gl GridLayout) GoalCell() (int, int) { return gl.Width - 3, gl.Height / 2 }

// CellID names a grid cell's graph node.
func CellID(x, y int) roadgraph.NodeID {
	return roadgraph.NodeID(fmt.Sprintf("n%d_%d", x, y))
}

// #endregion layout

// #region generate

// GenerateGrid builds a complete scenario over the synthetic town
// layout: one node per road cell, unit-cost edges between 4-adjacent
// road cells, mission endpoints on the arterial.
func GenerateGrid(name string, width, height int) (*Scenario, error) {
	if width < 12 || height < 8 {
		return nil, fmt.Errorf("grid %dx%d too small for the road layout", width, height)
	}
	gl := GridLayout{Width: width, Height: height}

	var nodes []roadgraph.Node
	var edges []roadgraph.Edge
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !gl.IsRoad(x, y) {
				continue
			}
			nodes = append(nodes, roadgraph.Node{
				ID:  CellID(x, y),
				Pos: roadgraph.Vec2{X: float64(x), Y: float64(y)},
			})
			// east and south neighbors only; undirected build adds the
			// reverse direction
			if gl.IsRoad(x+1, y) {
				edges = append(edges, roadgraph.Edge{From: CellID(x, y), To: CellID(x+1, y), Cost: 1})
			}
			if gl.IsRoad(x, y+1) {
				edges = append(edges, roadgraph.Edge{From: CellID(x, y), To: CellID(x, y+1), Cost: 1})
			}
		}
	}

	sx, sy := gl.StartCell()
	gx, gy := gl.GoalCell()
	s := &Scenario{
		Name:              name,
		Nodes:             nodes,
		Edges:             edges,
		Undirected:        true,
		StartID:           CellID(sx, sy),
		GoalID:            CellID(gx, gy),
		Grid:              &gl,
		WaypointTolerance: 0.5,
		LateralTolerance:  2.0,
		Hyper: Hyperparameters{
			Alpha:        0.1,
			Gamma:        0.95,
			Epsilon:      0.3,
			EpsilonDecay: 0.995,
			EpsilonMin:   0.05,
		},
		Perception: perception.Config{
			NearDistance: 2,
			MidDistance:  6,
			SlowSpeed:    0.5,
			FastSpeed:    4,
			ConeRadius:   3,
			Bounds: perception.Bounds{
				Min: roadgraph.Vec2{X: -1, Y: -1},
				Max: roadgraph.Vec2{X: float64(width), Y: float64(height)},
			},
		},
		Reward:        reward.DefaultConfig(),
		Episodes:      200,
		MaxTicks:      500,
		ObstacleCount: 15,
		Seed:          1,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Default returns the stock 40x30 town scenario.
func Default() *Scenario {
	s, err := GenerateGrid("town-40x30", 40, 30)
	if err != nil {
		// the stock dimensions always satisfy the layout minimums
		panic(err)
	}
	return s
}

// #endregion generate
