package policy

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS q_values (
    state_key  TEXT NOT NULL,
    action     INTEGER NOT NULL,
    value_bits BLOB NOT NULL,
    PRIMARY KEY (state_key, action)
);
`

// #endregion schema

// #region store

// Store persists Q-tables in SQLite. Values are stored as raw float64
// bit patterns so save/load round-trips are exact to the bit; REAL
// columns could round-trip through text formatting in some drivers.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection (tests, shared files).
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle for other stores sharing the file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region save

// Save writes the policy's full table as a snapshot, replacing any
// previous contents atomically.
func (p *QPolicy) Save(s *Store) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM q_values`); err != nil {
		return fmt.Errorf("clear table: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO q_values (state_key, action, value_bits) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	keys := make([]string, 0, len(p.table))
	for k := range p.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := p.table[key]
		for a := 0; a < ActionCount; a++ {
			if _, err := stmt.Exec(key, a, encodeValue(values[a])); err != nil {
				return fmt.Errorf("insert %s/%d: %w", key, a, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save

// #region load

// Load replaces the policy's table with the persisted snapshot.
func (p *QPolicy) Load(s *Store) error {
	rows, err := s.db.Query(`SELECT state_key, action, value_bits FROM q_values ORDER BY state_key, action`)
	if err != nil {
		return fmt.Errorf("query q_values: %w", err)
	}
	defer rows.Close()

	table := make(map[string][ActionCount]float64)
	for rows.Next() {
		var key string
		var action int
		var bits []byte
		if err := rows.Scan(&key, &action, &bits); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if action < 0 || action >= ActionCount {
			return fmt.Errorf("persisted action %d out of range", action)
		}
		v, err := decodeValue(bits)
		if err != nil {
			return fmt.Errorf("state %s action %d: %w", key, action, err)
		}
		values := table[key]
		values[action] = v
		table[key] = values
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	p.table = table
	return nil
}

// #endregion load

// #region value-encoding

func encodeValue(v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

func decodeValue(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("value blob has %d bytes, want 8", len(b))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// #endregion value-encoding
