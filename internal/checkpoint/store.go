// Package checkpoint persists solver checkpoints in a SQLite database so
// an interrupted run can be resumed.
package checkpoint

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/san-kum/kmcsim/internal/sim"
)

var ErrNotFound = errors.New("checkpoint: not found")

const schema = `CREATE TABLE IF NOT EXISTS checkpoints (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT    NOT NULL,
	sim_time   REAL    NOT NULL,
	steps      INTEGER NOT NULL,
	created_at TEXT    NOT NULL,
	state      BLOB    NOT NULL,
	rng_state  BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS checkpoints_run ON checkpoints (run_id, sim_time)`

// Entry is one stored checkpoint. State is the engine checkpoint encoded
// by sim.(*Solver).WriteCheckpoint; RNGState is the random source state
// at the same instant.
type Entry struct {
	ID        int64
	RunID     string
	Time      float64
	Steps     uint64
	CreatedAt time.Time
	State     []byte
	RNGState  []byte
}

// Checkpoint decodes the engine state.
func (e *Entry) Checkpoint() (*sim.Checkpoint, error) {
	return sim.ReadCheckpoint(bytes.NewReader(e.State))
}

// NewEntry encodes cp for storage.
func NewEntry(runID string, cp *sim.Checkpoint, rngState []byte) (Entry, error) {
	var buf bytes.Buffer
	if err := sim.EncodeCheckpoint(&buf, cp); err != nil {
		return Entry{}, err
	}
	return Entry{
		RunID:    runID,
		Time:     cp.Time,
		Steps:    cp.NSteps,
		State:    buf.Bytes(),
		RNGState: rngState,
	}, nil
}

type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; replicates share the connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts e and returns its id.
func (s *Store) Save(ctx context.Context, e Entry) (int64, error) {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, sim_time, steps, created_at, state, rng_state) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time, int64(e.Steps), created.Format(time.RFC3339Nano), e.State, e.RNGState)
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}
	return res.LastInsertId()
}

const columns = `id, run_id, sim_time, steps, created_at, state, rng_state`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e       Entry
		steps   int64
		created string
	)
	if err := row.Scan(&e.ID, &e.RunID, &e.Time, &steps, &created, &e.State, &e.RNGState); err != nil {
		return Entry{}, err
	}
	e.Steps = uint64(steps)
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Entry{}, fmt.Errorf("created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}

// Latest returns the checkpoint of runID with the greatest simulation
// time.
func (s *Store) Latest(ctx context.Context, runID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM checkpoints WHERE run_id = ? ORDER BY sim_time DESC, id DESC LIMIT 1`, runID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return e, err
}

func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM checkpoints WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return e, err
}

// List returns the checkpoints of runID in time order, without their
// state blobs.
func (s *Store) List(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, sim_time, steps, created_at, x'', x'' FROM checkpoints WHERE run_id = ? ORDER BY sim_time, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("select checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.State, e.RNGState = nil, nil
		out = append(out, e)
	}
	return out, rows.Err()
}
