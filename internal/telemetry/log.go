package telemetry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	scenario    TEXT NOT NULL,
	started_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tick_log (
	run_id          TEXT    NOT NULL,
	episode         INTEGER NOT NULL,
	tick            INTEGER NOT NULL,
	phase           TEXT    NOT NULL,
	state_key       TEXT    NOT NULL,
	action          INTEGER NOT NULL,
	reward          REAL    NOT NULL,
	next_state_key  TEXT    NOT NULL,
	terminal        INTEGER NOT NULL,
	x               REAL    NOT NULL,
	y               REAL    NOT NULL,
	PRIMARY KEY (run_id, episode, tick)
);
CREATE TABLE IF NOT EXISTS episode_log (
	run_id        TEXT    NOT NULL,
	episode       INTEGER NOT NULL,
	ticks         INTEGER NOT NULL,
	total_reward  REAL    NOT NULL,
	outcome       TEXT    NOT NULL,
	epsilon       REAL    NOT NULL,
	table_size    INTEGER NOT NULL,
	PRIMARY KEY (run_id, episode)
);
`

// Episode outcomes as persisted in episode_log.
const (
	OutcomeGoal      = "goal"
	OutcomeCollision = "collision"
	OutcomeNoRoute   = "no_route"
	OutcomeTimeout   = "timeout"
)

// #region records

// TickRecord is one decision cycle as persisted.
type TickRecord struct {
	Episode      int
	Tick         int
	Phase        string
	StateKey     string
	Action       int
	Reward       float64
	NextStateKey string
	Terminal     bool
	X            float64
	Y            float64
}

// EpisodeRecord summarizes one finished episode.
type EpisodeRecord struct {
	Episode     int
	Ticks       int
	TotalReward float64
	Outcome     string
	Epsilon     float64
	TableSize   int
}

// #endregion records

// #region log

// Log is the sqlite-backed run journal. Every tick and every episode
// summary lands here, keyed by run id.
type Log struct {
	db *sql.DB
}

// NewLog opens (or creates) the journal at path.
func NewLog(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	l, err := NewLogWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// NewLogWithDB wraps an existing handle. The caller keeps ownership of
// the handle's lifecycle in tests.
func NewLogWithDB(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply telemetry schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the underlying handle.
func (l *Log) Close() error { return l.db.Close() }

// StartRun registers a new run and returns its id.
func (l *Log) StartRun(scenarioName string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(
		"INSERT INTO runs (id, scenario, started_at) VALUES (?, ?, ?)",
		id, scenarioName, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("register run: %w", err)
	}
	return id, nil
}

// LogTick appends one tick record.
func (l *Log) LogTick(runID string, r TickRecord) error {
	_, err := l.db.Exec(
		`INSERT INTO tick_log
		 (run_id, episode, tick, phase, state_key, action, reward, next_state_key, terminal, x, y)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Episode, r.Tick, r.Phase, r.StateKey, r.Action, r.Reward,
		r.NextStateKey, boolInt(r.Terminal), r.X, r.Y,
	)
	if err != nil {
		return fmt.Errorf("log tick %d/%d: %w", r.Episode, r.Tick, err)
	}
	return nil
}

// LogEpisode appends one episode summary.
func (l *Log) LogEpisode(runID string, r EpisodeRecord) error {
	_, err := l.db.Exec(
		`INSERT INTO episode_log
		 (run_id, episode, ticks, total_reward, outcome, epsilon, table_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Episode, r.Ticks, r.TotalReward, r.Outcome, r.Epsilon, r.TableSize,
	)
	if err != nil {
		return fmt.Errorf("log episode %d: %w", r.Episode, err)
	}
	return nil
}

// Ticks returns a run's tick records in episode then tick order.
func (l *Log) Ticks(runID string) ([]TickRecord, error) {
	rows, err := l.db.Query(
		`SELECT episode, tick, phase, state_key, action, reward, next_state_key, terminal, x, y
		 FROM tick_log WHERE run_id = ? ORDER BY episode, tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var out []TickRecord
	for rows.Next() {
		var r TickRecord
		var terminal int
		if err := rows.Scan(&r.Episode, &r.Tick, &r.Phase, &r.StateKey, &r.Action,
			&r.Reward, &r.NextStateKey, &terminal, &r.X, &r.Y); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		r.Terminal = terminal != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Episodes returns a run's episode summaries in order.
func (l *Log) Episodes(runID string) ([]EpisodeRecord, error) {
	rows, err := l.db.Query(
		`SELECT episode, ticks, total_reward, outcome, epsilon, table_size
		 FROM episode_log WHERE run_id = ? ORDER BY episode`, runID)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		var r EpisodeRecord
		if err := rows.Scan(&r.Episode, &r.Ticks, &r.TotalReward, &r.Outcome,
			&r.Epsilon, &r.TableSize); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunIDs lists known runs, newest first.
func (l *Log) RunIDs() ([]string, error) {
	rows, err := l.db.Query("SELECT id FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion log
