package agent

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/planner"
	"github.com/autonav/roadsim/internal/policy"
	"github.com/autonav/roadsim/internal/reward"
	"github.com/autonav/roadsim/internal/roadgraph"
)

// #region phases

// Phase is the decision loop's lifecycle state.
type Phase int

const (
	PhasePlanning Phase = iota
	PhaseFollowing
	PhaseReplanning
	PhaseGoalReached
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePlanning:
		return "planning"
	case PhaseFollowing:
		return "following"
	case PhaseReplanning:
		return "replanning"
	case PhaseGoalReached:
		return "goal_reached"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TerminalPhase reports whether no further ticks will be processed.
func (p Phase) TerminalPhase() bool {
	return p == PhaseGoalReached || p == PhaseFailed
}

// #endregion phases

// #region interfaces

// MotionModel is the external kinematics collaborator: it applies an
// action to a pose and reports the resulting pose plus a collision
// flag. The loop treats it as an opaque synchronous call.
type MotionModel interface {
	Apply(pose perception.Pose, action policy.Action) (perception.Pose, bool, error)
}

// Observation is the per-tick world feed: sensed obstacles, newly
// discovered blocked edges, and the caller-owned exploration rate.
type Observation struct {
	Obstacles       []perception.Obstacle
	BlockedEdges    []roadgraph.EdgeKey
	ExplorationRate float64
}

// #endregion interfaces

// #region config

// Config bundles the loop's injected configuration. Immutable once the
// loop starts.
type Config struct {
	StartID roadgraph.NodeID
	GoalID  roadgraph.NodeID

	Alpha float64 // learning rate
	Gamma float64 // discount factor

	WaypointTolerance float64 // waypoint considered reached within this
	LateralTolerance  float64 // drift beyond this triggers replanning

	Perception perception.Config
	Reward     reward.Config
}

// #endregion config

// #region tick-result

// TickResult reports one completed tick.
type TickResult struct {
	Phase           Phase
	Action          policy.Action
	Reward          float64
	State           perception.State
	NextState       perception.State
	Pose            perception.Pose
	Route           planner.Route
	Collided        bool
	ReachedGoal     bool
	ReplanTriggered bool
	Replanned       bool
	Terminal        bool
	Reason          string
}

// #endregion tick-result

// #region loop

// Loop drives one agent's Sense-Think-Act-Reflect cycle over discrete
// ticks. Single-threaded: one Tick runs to completion before the next,
// and the caller may stop invoking it between ticks at any time.
type Loop struct {
	graph  *roadgraph.Graph
	plan   *planner.Planner
	policy *policy.QPolicy
	motion MotionModel
	cfg    Config

	phase   Phase
	pose    perception.Pose
	route   planner.Route
	wpIdx   int
	blocked map[roadgraph.EdgeKey]bool
	ticks   int
}

// NewLoop creates a loop in the PLANNING phase. The first Tick plans
// the initial route before running its cycle.
func NewLoop(g *roadgraph.Graph, pol *policy.QPolicy, motion MotionModel, cfg Config, start perception.Pose) *Loop {
	return &Loop{
		graph:   g,
		plan:    planner.NewPlanner(g),
		policy:  pol,
		motion:  motion,
		cfg:     cfg,
		phase:   PhasePlanning,
		pose:    start,
		blocked: make(map[roadgraph.EdgeKey]bool),
	}
}

// Phase returns the current lifecycle phase.
func (l *Loop) Phase() Phase { return l.phase }

// Pose returns the agent's current pose.
func (l *Loop) Pose() perception.Pose { return l.pose }

// Route returns the active route.
func (l *Loop) Route() planner.Route { return l.route }

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() int { return l.ticks }

// #endregion loop

// #region tick

// Tick runs one Sense-Think-Act-Reflect cycle. A tick is atomic:
// either the full cycle completes (exactly one policy update), or an
// external-interface fault aborts it with an error and no state
// change, leaving the same tick to retry on the next invocation.
// Ticks after a terminal phase are no-ops.
func (l *Loop) Tick(obs Observation) (TickResult, error) {
	if l.phase.TerminalPhase() {
		return TickResult{Phase: l.phase, Terminal: true, Reason: "terminal phase"}, nil
	}

	// merged block overlay; committed only when the tick completes
	blocked := l.blocked
	if len(obs.BlockedEdges) > 0 {
		blocked = make(map[roadgraph.EdgeKey]bool, len(l.blocked)+len(obs.BlockedEdges))
		for k := range l.blocked {
			blocked[k] = true
		}
		for _, k := range obs.BlockedEdges {
			blocked[k] = true
		}
	}

	res := TickResult{}
	route := l.route
	wpIdx := l.wpIdx
	phase := l.phase

	if phase == PhasePlanning {
		r, err := l.plan.FindRoute(l.cfg.StartID, l.cfg.GoalID, nil)
		if err != nil {
			var noRoute *planner.NoRouteError
			if errors.As(err, &noRoute) {
				log.Printf("[LOOP] initial plan failed: %v", err)
				l.phase = PhaseFailed
				l.blocked = blocked
				l.ticks++
				return TickResult{Phase: PhaseFailed, Terminal: true, Reason: err.Error()}, nil
			}
			return TickResult{Phase: phase}, fmt.Errorf("initial plan: %w", err)
		}
		route = r
		wpIdx = 1
		phase = PhaseFollowing
	}

	// replanning triggers: next edge blocked, or lateral drift
	if trigger, why := l.needsReplan(route, wpIdx, blocked); trigger {
		res.ReplanTriggered = true
		phase = PhaseReplanning
		log.Printf("[LOOP] replanning: %s", why)

		from, err := l.graph.Nearest(l.pose.Position)
		if err != nil {
			return TickResult{Phase: l.phase}, fmt.Errorf("replan origin: %w", err)
		}
		r, err := l.plan.FindRoute(from, l.cfg.GoalID, blocked)
		if err != nil {
			var noRoute *planner.NoRouteError
			if errors.As(err, &noRoute) {
				l.phase = PhaseFailed
				l.blocked = blocked
				l.ticks++
				res.Phase = PhaseFailed
				res.Terminal = true
				res.Reason = fmt.Sprintf("replan: %s", err.Error())
				return res, nil
			}
			return TickResult{Phase: l.phase}, fmt.Errorf("replan: %w", err)
		}
		route = r
		wpIdx = 1
		if wpIdx >= route.Len() {
			wpIdx = route.Len() - 1
		}
		phase = PhaseFollowing
		res.Replanned = true
	}

	// Sense
	waypoint, routeDone, err := l.waypoint(route, wpIdx)
	if err != nil {
		return TickResult{Phase: l.phase}, err
	}
	prevState, err := perception.Sense(l.pose, waypoint, routeDone, obs.Obstacles, l.cfg.Perception)
	if err != nil {
		return TickResult{Phase: l.phase}, fmt.Errorf("sense: %w", err)
	}

	// Think
	action := l.policy.SelectAction(prevState, obs.ExplorationRate)

	// Act
	newPose, collided, err := l.motion.Apply(l.pose, action)
	if err != nil {
		return TickResult{Phase: l.phase}, fmt.Errorf("motion model rejected %s: %w", action, err)
	}

	// advance past any waypoints the move covered
	for wpIdx < route.Len() {
		pos, perr := l.graph.Position(route.Nodes[wpIdx])
		if perr != nil {
			return TickResult{Phase: l.phase}, perr
		}
		if newPose.Position.Dist(pos) > l.cfg.WaypointTolerance {
			break
		}
		wpIdx++
	}

	goalPos, err := l.graph.Position(l.cfg.GoalID)
	if err != nil {
		return TickResult{Phase: l.phase}, err
	}
	reachedGoal := !collided && newPose.Position.Dist(goalPos) <= l.cfg.WaypointTolerance

	nextWaypoint, nextRouteDone, err := l.waypoint(route, wpIdx)
	if err != nil {
		return TickResult{Phase: l.phase}, err
	}
	nextState, err := perception.Sense(newPose, nextWaypoint, nextRouteDone || reachedGoal, obs.Obstacles, l.cfg.Perception)
	if err != nil {
		return TickResult{Phase: l.phase}, fmt.Errorf("sense next: %w", err)
	}

	// Reflect
	r := reward.Reward(prevState, action, nextState, collided, reachedGoal, l.cfg.Reward)
	terminal := collided || reachedGoal
	l.policy.Update(policy.Transition{
		State:    prevState,
		Action:   action,
		Reward:   r,
		Next:     nextState,
		Terminal: terminal,
	}, l.cfg.Alpha, l.cfg.Gamma)

	// commit
	switch {
	case reachedGoal:
		phase = PhaseGoalReached
		res.Reason = "goal reached"
	case collided:
		phase = PhaseFailed
		res.Reason = "collision"
	}
	l.pose = newPose
	l.route = route
	l.wpIdx = wpIdx
	l.blocked = blocked
	l.phase = phase
	l.ticks++

	res.Phase = phase
	res.Action = action
	res.Reward = r
	res.State = prevState
	res.NextState = nextState
	res.Pose = newPose
	res.Route = route
	res.Collided = collided
	res.ReachedGoal = reachedGoal
	res.Terminal = terminal
	return res, nil
}

// #endregion tick

// #region helpers

// waypoint returns the active waypoint position, or routeDone when the
// route is exhausted.
func (l *Loop) waypoint(route planner.Route, wpIdx int) (roadgraph.Vec2, bool, error) {
	if route.Len() == 0 || wpIdx >= route.Len() {
		return roadgraph.Vec2{}, true, nil
	}
	pos, err := l.graph.Position(route.Nodes[wpIdx])
	if err != nil {
		return roadgraph.Vec2{}, false, err
	}
	return pos, false, nil
}

// needsReplan checks the two replanning triggers against the active
// route segment.
func (l *Loop) needsReplan(route planner.Route, wpIdx int, blocked map[roadgraph.EdgeKey]bool) (bool, string) {
	if route.Len() == 0 || wpIdx >= route.Len() {
		return false, ""
	}

	next := route.Nodes[wpIdx]
	if wpIdx > 0 {
		prev := route.Nodes[wpIdx-1]
		if blocked[roadgraph.EdgeKey{From: prev, To: next}] {
			return true, fmt.Sprintf("edge %s->%s blocked", prev, next)
		}
		prevPos, err1 := l.graph.Position(prev)
		nextPos, err2 := l.graph.Position(next)
		if err1 == nil && err2 == nil {
			if d := segmentDist(l.pose.Position, prevPos, nextPos); d > l.cfg.LateralTolerance {
				return true, fmt.Sprintf("drifted %.2f from route segment", d)
			}
		}
	}
	return false, ""
}

// segmentDist returns the distance from p to the segment a-b.
func segmentDist(p, a, b roadgraph.Vec2) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return p.Dist(a)
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / lenSq
	t = math.Max(0, math.Min(1, t))
	return p.Dist(roadgraph.Vec2{X: a.X + t*abx, Y: a.Y + t*aby})
}

// #endregion helpers
