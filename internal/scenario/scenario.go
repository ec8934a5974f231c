package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/autonav/roadsim/internal/agent"
	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/reward"
	"github.com/autonav/roadsim/internal/roadgraph"
)

// #region types

// Hyperparameters are the learning knobs for a training run. Epsilon
// anneals per episode: eps = max(EpsilonMin, eps*EpsilonDecay).
type Hyperparameters struct {
	Alpha        float64 `json:"alpha"`
	Gamma        float64 `json:"gamma"`
	Epsilon      float64 `json:"epsilon"`
	EpsilonDecay float64 `json:"epsilon_decay"`
	EpsilonMin   float64 `json:"epsilon_min"`
}

// Scenario is the full declarative description of one simulation
// setup: the road network, the mission endpoints, and every tunable
// the engine consumes. Serialized as JSON on disk.
type Scenario struct {
	Name       string           `json:"name"`
	Nodes      []roadgraph.Node `json:"nodes"`
	Edges      []roadgraph.Edge `json:"edges"`
	Undirected bool             `json:"undirected"`

	StartID roadgraph.NodeID `json:"start_id"`
	GoalID  roadgraph.NodeID `json:"goal_id"`

	// Grid carries the cell layout for scenarios generated over the
	// synthetic town. Hand-built graph scenarios leave it unset.
	Grid *GridLayout `json:"grid,omitempty"`

	WaypointTolerance float64 `json:"waypoint_tolerance"`
	LateralTolerance  float64 `json:"lateral_tolerance"`

	Hyper      Hyperparameters   `json:"hyperparameters"`
	Perception perception.Config `json:"perception"`
	Reward     reward.Config     `json:"reward"`

	Episodes      int   `json:"episodes"`
	MaxTicks      int   `json:"max_ticks_per_episode"`
	ObstacleCount int   `json:"obstacle_count"`
	Seed          int64 `json:"seed"`
}

// #endregion types

// #region io

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the scenario as indented JSON.
func (s *Scenario) Save(path string) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}

// #endregion io

// #region validate

// Validate checks the cross-field constraints the JSON schema cannot
// express. Graph-level validation happens in BuildGraph.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.StartID == "" || s.GoalID == "" {
		return fmt.Errorf("start_id and goal_id are required")
	}
	if s.Hyper.Alpha <= 0 || s.Hyper.Alpha > 1 {
		return fmt.Errorf("alpha %.3f outside (0, 1]", s.Hyper.Alpha)
	}
	if s.Hyper.Gamma < 0 || s.Hyper.Gamma > 1 {
		return fmt.Errorf("gamma %.3f outside [0, 1]", s.Hyper.Gamma)
	}
	if s.Hyper.Epsilon < 0 || s.Hyper.Epsilon > 1 {
		return fmt.Errorf("epsilon %.3f outside [0, 1]", s.Hyper.Epsilon)
	}
	if s.Hyper.EpsilonDecay <= 0 || s.Hyper.EpsilonDecay > 1 {
		return fmt.Errorf("epsilon_decay %.3f outside (0, 1]", s.Hyper.EpsilonDecay)
	}
	if s.Hyper.EpsilonMin < 0 || s.Hyper.EpsilonMin > s.Hyper.Epsilon {
		return fmt.Errorf("epsilon_min %.3f outside [0, epsilon]", s.Hyper.EpsilonMin)
	}
	if s.WaypointTolerance <= 0 {
		return fmt.Errorf("waypoint_tolerance must be positive")
	}
	if s.LateralTolerance <= 0 {
		return fmt.Errorf("lateral_tolerance must be positive")
	}
	if s.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive")
	}
	if s.MaxTicks <= 0 {
		return fmt.Errorf("max_ticks_per_episode must be positive")
	}
	if s.ObstacleCount < 0 {
		return fmt.Errorf("obstacle_count must not be negative")
	}
	return nil
}

// #endregion validate

// #region build

// BuildGraph constructs the immutable road graph and confirms the
// mission endpoints exist on it.
func (s *Scenario) BuildGraph() (*roadgraph.Graph, error) {
	g, err := roadgraph.Build(s.Nodes, s.Edges, s.Undirected)
	if err != nil {
		return nil, err
	}
	if !g.Has(s.StartID) {
		return nil, fmt.Errorf("start node %q not in graph", s.StartID)
	}
	if !g.Has(s.GoalID) {
		return nil, fmt.Errorf("goal node %q not in graph", s.GoalID)
	}
	return g, nil
}

// LoopConfig assembles the decision loop configuration for this
// scenario.
func (s *Scenario) LoopConfig() agent.Config {
	return agent.Config{
		StartID:           s.StartID,
		GoalID:            s.GoalID,
		Alpha:             s.Hyper.Alpha,
		Gamma:             s.Hyper.Gamma,
		WaypointTolerance: s.WaypointTolerance,
		LateralTolerance:  s.LateralTolerance,
		Perception:        s.Perception,
		Reward:            s.Reward,
	}
}

// #endregion build
