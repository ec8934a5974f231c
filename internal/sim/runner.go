package sim

import (
	"fmt"
	"log"
	"math"

	"github.com/autonav/roadsim/internal/agent"
	"github.com/autonav/roadsim/internal/policy"
	"github.com/autonav/roadsim/internal/roadgraph"
	"github.com/autonav/roadsim/internal/scenario"
	"github.com/autonav/roadsim/internal/telemetry"
	"github.com/autonav/roadsim/internal/viz"
)

// obstacleGrowthCap bounds how much denser the field gets as training
// progresses.
const obstacleGrowthCap = 30

// FramePublisher receives one frame per tick. Implementations must
// not block.
type FramePublisher interface {
	Publish(f viz.Frame)
}

// #region results

// EpisodeResult summarizes one finished episode.
type EpisodeResult struct {
	Episode     int
	Ticks       int
	TotalReward float64
	Outcome     string
	Phase       agent.Phase
}

// TrainingSummary aggregates a full run.
type TrainingSummary struct {
	RunID        string
	Episodes     int
	Goals        int
	Collisions   int
	NoRoutes     int
	Timeouts     int
	TotalReward  float64
	FinalEpsilon float64
	TableSize    int
}

func (s *TrainingSummary) add(r EpisodeResult) {
	s.Episodes++
	s.TotalReward += r.TotalReward
	switch r.Outcome {
	case telemetry.OutcomeGoal:
		s.Goals++
	case telemetry.OutcomeCollision:
		s.Collisions++
	case telemetry.OutcomeNoRoute:
		s.NoRoutes++
	default:
		s.Timeouts++
	}
}

// #endregion results

// #region runner

// Runner drives training runs: one decision loop per episode over a
// shared policy, with obstacle fields regenerated between episodes.
type Runner struct {
	scen      *scenario.Scenario
	graph     *roadgraph.Graph
	pol       *policy.QPolicy
	env       *Environment
	tlog      *telemetry.Log
	publisher FramePublisher
}

// NewRunner assembles a runner for a grid scenario. The telemetry log
// and the publisher are both optional.
func NewRunner(scen *scenario.Scenario, pol *policy.QPolicy, tlog *telemetry.Log, publisher FramePublisher) (*Runner, error) {
	if scen.Grid == nil {
		return nil, fmt.Errorf("scenario %q has no grid layout", scen.Name)
	}
	graph, err := scen.BuildGraph()
	if err != nil {
		return nil, err
	}
	return &Runner{
		scen:      scen,
		graph:     graph,
		pol:       pol,
		env:       NewEnvironment(*scen.Grid, scen.Seed),
		tlog:      tlog,
		publisher: publisher,
	}, nil
}

// Env exposes the world, mainly for tests.
func (r *Runner) Env() *Environment { return r.env }

// obstacleCount grows the field density with training progress, the
// way a driver graduates from empty streets to traffic.
func (r *Runner) obstacleCount(episode int) int {
	growth := episode
	if growth > obstacleGrowthCap {
		growth = obstacleGrowthCap
	}
	return r.scen.ObstacleCount + growth
}

// RunEpisode runs one episode to a terminal phase or the tick cap.
// A fresh loop starts at the mission origin; the policy carries over.
func (r *Runner) RunEpisode(runID string, episode int, epsilon float64) (EpisodeResult, error) {
	r.env.PlaceObstacles(r.obstacleCount(episode))
	loop := agent.NewLoop(r.graph, r.pol, NewGridMotion(r.env), r.scen.LoopConfig(), r.env.StartPose())

	var (
		total float64
		last  agent.TickResult
	)
	for loop.Ticks() < r.scen.MaxTicks && !loop.Phase().TerminalPhase() {
		tick := loop.Ticks()
		res, err := loop.Tick(r.env.Observe(epsilon))
		if err != nil {
			return EpisodeResult{}, fmt.Errorf("episode %d tick %d: %w", episode, tick, err)
		}
		total += res.Reward
		last = res

		if r.tlog != nil && runID != "" {
			rec := telemetry.TickRecord{
				Episode:      episode,
				Tick:         tick,
				Phase:        res.Phase.String(),
				StateKey:     res.State.Key(),
				Action:       int(res.Action),
				Reward:       res.Reward,
				NextStateKey: res.NextState.Key(),
				Terminal:     res.Terminal,
				X:            res.Pose.Position.X,
				Y:            res.Pose.Position.Y,
			}
			if err := r.tlog.LogTick(runID, rec); err != nil {
				return EpisodeResult{}, err
			}
		}
		if r.publisher != nil {
			r.publisher.Publish(viz.Frame{
				RunID:   runID,
				Episode: episode,
				Tick:    tick,
				Phase:   res.Phase.String(),
				X:       res.Pose.Position.X,
				Y:       res.Pose.Position.Y,
				Heading: res.Pose.Heading,
				Speed:   res.Pose.Speed,
				Reward:  res.Reward,
				Epsilon: epsilon,
			})
		}
	}

	result := EpisodeResult{
		Episode:     episode,
		Ticks:       loop.Ticks(),
		TotalReward: total,
		Outcome:     outcomeOf(loop.Phase(), last),
		Phase:       loop.Phase(),
	}
	if r.tlog != nil && runID != "" {
		rec := telemetry.EpisodeRecord{
			Episode:     episode,
			Ticks:       result.Ticks,
			TotalReward: result.TotalReward,
			Outcome:     result.Outcome,
			Epsilon:     epsilon,
			TableSize:   r.pol.Len(),
		}
		if err := r.tlog.LogEpisode(runID, rec); err != nil {
			return EpisodeResult{}, err
		}
	}
	return result, nil
}

// RunTraining runs the scenario's full episode budget, annealing
// epsilon between episodes.
func (r *Runner) RunTraining() (*TrainingSummary, error) {
	runID := ""
	if r.tlog != nil {
		id, err := r.tlog.StartRun(r.scen.Name)
		if err != nil {
			return nil, err
		}
		runID = id
	}

	epsilon := r.scen.Hyper.Epsilon
	summary := &TrainingSummary{RunID: runID}
	for ep := 0; ep < r.scen.Episodes; ep++ {
		res, err := r.RunEpisode(runID, ep, epsilon)
		if err != nil {
			return nil, err
		}
		summary.add(res)
		log.Printf("[RUN] episode %d: %s in %d ticks, reward %.1f, epsilon %.3f, table %d",
			ep, res.Outcome, res.Ticks, res.TotalReward, epsilon, r.pol.Len())
		epsilon = math.Max(r.scen.Hyper.EpsilonMin, epsilon*r.scen.Hyper.EpsilonDecay)
	}
	summary.FinalEpsilon = epsilon
	summary.TableSize = r.pol.Len()
	return summary, nil
}

func outcomeOf(phase agent.Phase, last agent.TickResult) string {
	switch phase {
	case agent.PhaseGoalReached:
		return telemetry.OutcomeGoal
	case agent.PhaseFailed:
		if last.Collided {
			return telemetry.OutcomeCollision
		}
		return telemetry.OutcomeNoRoute
	default:
		return telemetry.OutcomeTimeout
	}
}

// #endregion runner
