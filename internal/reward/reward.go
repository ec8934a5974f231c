package reward

import (
	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/policy"
)

// #region config

// Config holds the reward constants. Scenario configuration, not
// hard-coded policy.
type Config struct {
	GoalReward       float64 `json:"goal_reward"`       // on reaching the goal
	CollisionPenalty float64 `json:"collision_penalty"` // magnitude, applied negative
	ProgressScale    float64 `json:"progress_scale"`    // per distance bucket gained
	StepPenalty      float64 `json:"step_penalty"`      // per tick, discourages stalling
	OffRoutePenalty  float64 `json:"off_route_penalty"` // bearing left the route cone
}

// DefaultConfig returns the baseline constants.
func DefaultConfig() Config {
	return Config{
		GoalReward:       100,
		CollisionPenalty: 100,
		ProgressScale:    2,
		StepPenalty:      1,
		OffRoutePenalty:  2,
	}
}

// #endregion config

// #region reward

// Reward scores one transition. Pure function of its inputs: no
// internal counters, so identical calls always produce identical
// rewards. Collision is checked first and short-circuits the goal
// bonus when both flags are somehow set in the same tick.
func Reward(prev perception.State, action policy.Action, next perception.State, collided, reachedGoal bool, cfg Config) float64 {
	if collided {
		return -cfg.CollisionPenalty
	}
	if reachedGoal {
		return cfg.GoalReward
	}

	r := cfg.ProgressScale*float64(prev.Distance-next.Distance) - cfg.StepPenalty
	if !onRouteBearing(next) {
		r -= cfg.OffRoutePenalty
	}
	return r
}

// onRouteBearing reports whether the waypoint still lies in the forward
// cone (dead ahead or one octant to either side). Terminal states have
// no waypoint to stray from.
func onRouteBearing(s perception.State) bool {
	if s.Terminal {
		return true
	}
	return s.Bearing == 0 || s.Bearing == 1 || s.Bearing == 7
}

// #endregion reward
