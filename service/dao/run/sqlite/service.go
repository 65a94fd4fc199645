// Package sqlite persists run history in a SQLite database so that finished
// runs survive process restarts. The full run record (machine snapshot,
// steps, mutations) is stored as JSON alongside indexed columns for listing.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	machine    TEXT NOT NULL,
	state      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_state ON runs(state);
`

// Service is a SQLite-backed run store.
type Service struct {
	db *sql.DB
}

var _ dao.Service[string, execution.Run] = (*Service)(nil)

// New opens (creating when needed) the database at the given location. Use
// ":memory:" for an ephemeral store.
func New(location string) (*Service, error) {
	db, err := sql.Open("sqlite", location)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store %s: %w", location, err)
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise run store: %w", err)
	}
	return &Service{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

func (s *Service) Save(ctx context.Context, run *execution.Run) error {
	if run == nil {
		return dao.ErrNilEntity
	}
	if run.ID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs(id, machine, state, created_at, updated_at, data)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	state = excluded.state,
	updated_at = excluded.updated_at,
	data = excluded.data`,
		run.ID, run.MachineTitle, string(run.GetState()),
		run.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		run.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		string(data))
	return err
}

func (s *Service) Load(ctx context.Context, id string) (*execution.Run, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dao.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRun(data)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return dao.ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Run, error) {
	query := `SELECT data FROM runs ORDER BY created_at`
	var args []interface{}
	if state, ok := stateFilter(parameters); ok {
		query = `SELECT data FROM runs WHERE state = ? ORDER BY created_at`
		args = append(args, state)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*execution.Run
	for rows.Next() {
		var data string
		if err = rows.Scan(&data); err != nil {
			return nil, err
		}
		run, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func stateFilter(parameters []*dao.Parameter) (string, bool) {
	for _, parameter := range parameters {
		if parameter.Name != "State" {
			continue
		}
		if state, ok := parameter.Value.(string); ok {
			return state, true
		}
	}
	return "", false
}

func decodeRun(data string) (*execution.Run, error) {
	run := &execution.Run{}
	if err := json.Unmarshal([]byte(data), run); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return run, nil
}
