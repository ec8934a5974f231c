package telemetry

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestLog(t *testing.T) *Log {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	l, err := NewLogWithDB(db)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	return l
}

func TestTickRoundTrip(t *testing.T) {
	l := setupTestLog(t)
	runID, err := l.StartRun("test-scenario")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	want := []TickRecord{
		{Episode: 0, Tick: 0, Phase: "following", StateKey: "b0:d1:o000:s0:t0",
			Action: 0, Reward: 1, NextStateKey: "b0:d0:o000:s1:t0", X: 1, Y: 15},
		{Episode: 0, Tick: 1, Phase: "goal_reached", StateKey: "b0:d0:o000:s1:t0",
			Action: 0, Reward: 100, NextStateKey: "b0:d0:o000:s1:t1", Terminal: true, X: 2, Y: 15},
		{Episode: 1, Tick: 0, Phase: "failed", StateKey: "b4:d2:o100:s0:t0",
			Action: 3, Reward: -100, NextStateKey: "b4:d2:o100:s0:t0", Terminal: true, X: 0, Y: 0},
	}
	for _, r := range want {
		if err := l.LogTick(runID, r); err != nil {
			t.Fatalf("log tick: %v", err)
		}
	}

	got, err := l.Ticks(runID)
	if err != nil {
		t.Fatalf("query ticks: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d ticks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tick %d mismatch:\nwant %+v\ngot  %+v", i, want[i], got[i])
		}
	}
}

func TestEpisodeRoundTripAndRunIsolation(t *testing.T) {
	l := setupTestLog(t)
	runA, err := l.StartRun("a")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	runB, err := l.StartRun("b")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if runA == runB {
		t.Fatal("run ids must be unique")
	}

	recA := EpisodeRecord{Episode: 0, Ticks: 42, TotalReward: 61.5, Outcome: OutcomeGoal, Epsilon: 0.3, TableSize: 17}
	recB := EpisodeRecord{Episode: 0, Ticks: 7, TotalReward: -120, Outcome: OutcomeCollision, Epsilon: 0.3, TableSize: 4}
	if err := l.LogEpisode(runA, recA); err != nil {
		t.Fatalf("log episode: %v", err)
	}
	if err := l.LogEpisode(runB, recB); err != nil {
		t.Fatalf("log episode: %v", err)
	}

	gotA, err := l.Episodes(runA)
	if err != nil {
		t.Fatalf("query episodes: %v", err)
	}
	if len(gotA) != 1 || gotA[0] != recA {
		t.Fatalf("run A episodes polluted: %+v", gotA)
	}
}

func TestWriteReport(t *testing.T) {
	l := setupTestLog(t)
	runID, err := l.StartRun("report-scenario")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	for i, outcome := range []string{OutcomeCollision, OutcomeTimeout, OutcomeGoal, OutcomeGoal} {
		rec := EpisodeRecord{Episode: i, Ticks: 10 + i, TotalReward: float64(i) * 25, Outcome: outcome, Epsilon: 0.3, TableSize: i + 1}
		if err := l.LogEpisode(runID, rec); err != nil {
			t.Fatalf("log episode: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	if err := l.WriteReport(runID, path); err != nil {
		t.Fatalf("write report: %v", err)
	}
}

func TestWriteReportEmptyRunFails(t *testing.T) {
	l := setupTestLog(t)
	runID, err := l.StartRun("empty")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := l.WriteReport(runID, filepath.Join(t.TempDir(), "r.xlsx")); err == nil {
		t.Fatal("expected error for run without episodes")
	}
}
