package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/policy"
	"github.com/autonav/roadsim/internal/telemetry"
)

// #region fixture

// Step is one recorded transition, states in their canonical key
// encoding.
type Step struct {
	StateKey     string  `json:"state_key"`
	Action       int     `json:"action"`
	Reward       float64 `json:"reward"`
	NextStateKey string  `json:"next_state_key"`
	Terminal     bool    `json:"terminal"`
}

// Fixture is a replayable learning trace: the hyperparameters that
// were live plus every transition in order.
type Fixture struct {
	Name  string  `json:"name"`
	Alpha float64 `json:"alpha"`
	Gamma float64 `json:"gamma"`
	Steps []Step  `json:"steps"`
}

// FromTickRecords converts a telemetry trace into a fixture,
// validating that every state key still parses and every action is in
// range.
func FromTickRecords(name string, alpha, gamma float64, recs []telemetry.TickRecord) (*Fixture, error) {
	f := &Fixture{Name: name, Alpha: alpha, Gamma: gamma, Steps: make([]Step, 0, len(recs))}
	for i, r := range recs {
		if _, err := perception.ParseKey(r.StateKey); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := perception.ParseKey(r.NextStateKey); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if r.Action < 0 || r.Action >= policy.ActionCount {
			return nil, fmt.Errorf("record %d: action %d out of range", i, r.Action)
		}
		f.Steps = append(f.Steps, Step{
			StateKey:     r.StateKey,
			Action:       r.Action,
			Reward:       r.Reward,
			NextStateKey: r.NextStateKey,
			Terminal:     r.Terminal,
		})
	}
	return f, nil
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	return nil
}

// #endregion fixture
