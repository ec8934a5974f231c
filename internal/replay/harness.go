package replay

import (
	"fmt"

	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/policy"
)

// #region harness

// Summary reports one replay pass.
type Summary struct {
	Steps       int
	Terminals   int
	TotalReward float64
	TableSize   int
}

// Run replays a fixture's transitions through a fresh policy. Because
// the value update is deterministic, replaying a live trace rebuilds
// the exact table the live run produced, which makes this the
// regression harness for any change to the learning math.
func Run(f *Fixture) (*Summary, *policy.QPolicy, error) {
	pol := policy.New(0)
	sum := &Summary{}

	for i, st := range f.Steps {
		s, err := perception.ParseKey(st.StateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", i, err)
		}
		next, err := perception.ParseKey(st.NextStateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", i, err)
		}
		if st.Action < 0 || st.Action >= policy.ActionCount {
			return nil, nil, fmt.Errorf("step %d: action %d out of range", i, st.Action)
		}

		pol.Update(policy.Transition{
			State:    s,
			Action:   policy.Action(st.Action),
			Reward:   st.Reward,
			Next:     next,
			Terminal: st.Terminal,
		}, f.Alpha, f.Gamma)

		sum.Steps++
		sum.TotalReward += st.Reward
		if st.Terminal {
			sum.Terminals++
		}
	}

	sum.TableSize = pol.Len()
	return sum, pol, nil
}

// #endregion harness
