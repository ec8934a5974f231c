package replay

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/autonav/roadsim/internal/perception"
	"github.com/autonav/roadsim/internal/policy"
	"github.com/autonav/roadsim/internal/telemetry"
)

func sampleStates() (perception.State, perception.State, perception.State) {
	a := perception.State{Bearing: 0, Distance: 1}
	b := perception.State{Bearing: 0, Distance: 0, Speed: 1}
	c := perception.State{Terminal: true, Speed: 1}
	return a, b, c
}

func sampleFixture() *Fixture {
	a, b, c := sampleStates()
	return &Fixture{
		Name:  "sample",
		Alpha: 0.1,
		Gamma: 0.95,
		Steps: []Step{
			{StateKey: a.Key(), Action: int(policy.ActionAccelerate), Reward: 1, NextStateKey: b.Key()},
			{StateKey: b.Key(), Action: int(policy.ActionMaintain), Reward: 1, NextStateKey: c.Key()},
			{StateKey: c.Key(), Action: int(policy.ActionBrake), Reward: 100, NextStateKey: c.Key(), Terminal: true},
		},
	}
}

func TestReplayRebuildsLiveTable(t *testing.T) {
	f := sampleFixture()

	live := policy.New(7)
	for _, st := range f.Steps {
		s, err := perception.ParseKey(st.StateKey)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		next, err := perception.ParseKey(st.NextStateKey)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		live.Update(policy.Transition{
			State: s, Action: policy.Action(st.Action), Reward: st.Reward,
			Next: next, Terminal: st.Terminal,
		}, f.Alpha, f.Gamma)
	}

	sum, replayed, err := Run(f)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(live.Snapshot(), replayed.Snapshot()) {
		t.Fatalf("replay diverged from live table:\nlive:   %+v\nreplay: %+v",
			live.Snapshot(), replayed.Snapshot())
	}
	if sum.Steps != 3 || sum.Terminals != 1 || sum.TotalReward != 102 {
		t.Fatalf("bad summary: %+v", sum)
	}
}

func TestFixtureSaveLoadRoundTrip(t *testing.T) {
	f := sampleFixture()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := f.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(f, loaded) {
		t.Fatalf("round trip changed fixture:\nsaved:  %+v\nloaded: %+v", f, loaded)
	}
}

func TestFromTickRecords(t *testing.T) {
	a, b, _ := sampleStates()
	recs := []telemetry.TickRecord{
		{StateKey: a.Key(), Action: 0, Reward: 1, NextStateKey: b.Key()},
		{StateKey: b.Key(), Action: 2, Reward: -1, NextStateKey: a.Key(), Terminal: true},
	}
	f, err := FromTickRecords("converted", 0.2, 0.9, recs)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(f.Steps) != 2 || f.Alpha != 0.2 || f.Gamma != 0.9 {
		t.Fatalf("bad fixture: %+v", f)
	}
	if f.Steps[1].Terminal != true || f.Steps[1].Reward != -1 {
		t.Fatalf("step fields lost: %+v", f.Steps[1])
	}
}

func TestFromTickRecordsRejectsBadData(t *testing.T) {
	a, b, _ := sampleStates()
	cases := []struct {
		name string
		rec  telemetry.TickRecord
	}{
		{"malformed state key", telemetry.TickRecord{StateKey: "garbage", NextStateKey: b.Key()}},
		{"malformed next key", telemetry.TickRecord{StateKey: a.Key(), NextStateKey: "nope"}},
		{"action out of range", telemetry.TickRecord{StateKey: a.Key(), NextStateKey: b.Key(), Action: 99}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromTickRecords("bad", 0.1, 0.9, []telemetry.TickRecord{tc.rec}); err == nil {
				t.Fatal("expected conversion error")
			}
		})
	}
}

func TestRunRejectsCorruptFixture(t *testing.T) {
	a, b, _ := sampleStates()
	f := &Fixture{
		Name: "corrupt", Alpha: 0.1, Gamma: 0.9,
		Steps: []Step{{StateKey: a.Key(), Action: 99, NextStateKey: b.Key()}},
	}
	if _, _, err := Run(f); err == nil {
		t.Fatal("expected error for out-of-range action")
	}
}
