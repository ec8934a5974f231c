package policy

import (
	"math/rand"

	"github.com/autonav/roadsim/internal/perception"
)

// #region actions

// Action is one of the fixed driving commands. The set is closed:
// selection, reward shaping, and motion models switch over it
// exhaustively.
type Action int

const (
	ActionAccelerate Action = iota
	ActionBrake
	ActionSteerLeft
	ActionSteerRight
	ActionMaintain

	ActionCount int = iota
)

func (a Action) String() string {
	switch a {
	case ActionAccelerate:
		return "accelerate"
	case ActionBrake:
		return "brake"
	case ActionSteerLeft:
		return "steer-left"
	case ActionSteerRight:
		return "steer-right"
	case ActionMaintain:
		return "maintain"
	default:
		return "unknown"
	}
}

// #endregion actions

// #region types

// Transition is one observed step, consumed by Update and discarded.
type Transition struct {
	State    perception.State
	Action   Action
	Reward   float64
	Next     perception.State
	Terminal bool
}

// QPolicy holds the tabular action-value estimates and selects actions
// epsilon-greedily. The table is owned exclusively by the policy and
// mutated only inside Update.
type QPolicy struct {
	table map[string][ActionCount]float64
	rng   *rand.Rand
}

// New creates an empty policy. The seed fixes the exploration stream so
// runs are reproducible.
func New(seed int64) *QPolicy {
	return &QPolicy{
		table: make(map[string][ActionCount]float64),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// #endregion types

// #region select-action

// SelectAction returns a uniformly random action with probability
// explorationRate, otherwise the greedy action. Greedy ties break by
// enum order (first action wins), never randomly, so greedy selection
// is deterministic. Reading an unseen state does not grow the table.
func (p *QPolicy) SelectAction(s perception.State, explorationRate float64) Action {
	if explorationRate > 0 && p.rng.Float64() < explorationRate {
		return Action(p.rng.Intn(ActionCount))
	}

	values := p.table[s.Key()] // zero array for unseen states
	best := Action(0)
	for a := 1; a < ActionCount; a++ {
		if values[a] > values[best] {
			best = Action(a)
		}
	}
	return best
}

// #endregion select-action

// #region update

// Update applies the temporal-difference rule
//
//	Q(s,a) += alpha * (r + gamma*max_a' Q(s',a') - Q(s,a))
//
// in place. Terminal transitions bootstrap with 0 regardless of any
// values recorded for the next state.
func (p *QPolicy) Update(tr Transition, alpha, gamma float64) {
	key := tr.State.Key()
	values := p.table[key]

	maxNext := 0.0
	if !tr.Terminal {
		next := p.table[tr.Next.Key()]
		maxNext = next[0]
		for a := 1; a < ActionCount; a++ {
			if next[a] > maxNext {
				maxNext = next[a]
			}
		}
	}

	values[tr.Action] += alpha * (tr.Reward + gamma*maxNext - values[tr.Action])
	p.table[key] = values
}

// #endregion update

// #region accessors

// Value returns the current estimate for (state, action); 0 when unseen.
func (p *QPolicy) Value(s perception.State, a Action) float64 {
	return p.table[s.Key()][a]
}

// Len returns the number of visited states.
func (p *QPolicy) Len() int {
	return len(p.table)
}

// Snapshot returns a copy of the table, keyed by canonical state keys.
func (p *QPolicy) Snapshot() map[string][ActionCount]float64 {
	out := make(map[string][ActionCount]float64, len(p.table))
	for k, v := range p.table {
		out[k] = v
	}
	return out
}

// #endregion accessors
