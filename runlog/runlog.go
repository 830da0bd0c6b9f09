// Package runlog persists finished agent runs in SQLite.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/martinemde/goalagent/agent"
)

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Record is a stored run.
type Record struct {
	ID         string                 `json:"id" yaml:"id"`
	Input      string                 `json:"input" yaml:"input"`
	State      agent.State            `json:"state" yaml:"state"`
	Iterations int                    `json:"iterations" yaml:"iterations"`
	Final      *agent.ExecutionResult `json:"final,omitempty" yaml:"final,omitempty"`
	Entries    []agent.MemoryEntry    `json:"entries,omitempty" yaml:"entries,omitempty"`
	CreatedAt  time.Time              `json:"created_at" yaml:"created_at"`
}

// Store persists runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run log schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a finished run together with the input that started it.
func (s *Store) Save(ctx context.Context, input string, result *agent.RunResult) error {
	if result == nil {
		return errors.New("run result is nil")
	}
	var entries []agent.MemoryEntry
	if result.Memory != nil {
		entries = result.Memory.Entries()
	}
	memoryJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	var finalJSON sql.NullString
	if result.Final != nil {
		data, err := json.Marshal(result.Final)
		if err != nil {
			return fmt.Errorf("encode final result: %w", err)
		}
		finalJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input, state, iterations, final_json, memory_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		result.ID,
		input,
		string(result.State),
		result.Iterations,
		finalJSON,
		string(memoryJSON),
		time.Now().UTC().Format(timeLayout),
	)
	return err
}

// Get returns the run with the given id, including its memory.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, input, state, iterations, final_json, memory_json, created_at
		FROM runs WHERE id = ?
	`, id)

	var (
		rec        Record
		state      string
		finalJSON  sql.NullString
		memoryJSON string
		created    string
	)
	if err := row.Scan(&rec.ID, &rec.Input, &state, &rec.Iterations, &finalJSON, &memoryJSON, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	rec.State = agent.State(state)
	rec.CreatedAt = parseTime(created)
	if finalJSON.Valid {
		var final agent.ExecutionResult
		if err := json.Unmarshal([]byte(finalJSON.String), &final); err != nil {
			return nil, fmt.Errorf("decode final result: %w", err)
		}
		rec.Final = &final
	}
	if err := json.Unmarshal([]byte(memoryJSON), &rec.Entries); err != nil {
		return nil, fmt.Errorf("decode memory: %w", err)
	}
	return &rec, nil
}

// List returns the most recent runs first, without their memory. A
// non-positive limit returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, input, state, iterations, created_at
		FROM runs ORDER BY created_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			state   string
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.Input, &state, &rec.Iterations, &created); err != nil {
			return nil, err
		}
		rec.State = agent.State(state)
		rec.CreatedAt = parseTime(created)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			state TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			final_json TEXT,
			memory_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
