package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/hopper"
)

// ReadRun retrieves a single run by ID, including its stored scenario.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, fingerprint, mode, seed, spec, status, final_tick, final_time
		FROM runs
		WHERE id = ?
	`, id)

	return scanRunRow(row)
}

// ListRuns returns all runs ordered by ID. Run IDs are UUIDv7, so binary
// ID order is creation order.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, fingerprint, mode, seed, spec, status, final_tick, final_time
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []Run{}
	}

	return runs, nil
}

// ReadEvents returns a run's full trajectory in commit order
// (ORDER BY seq ASC).
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]hopper.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, tick, time, particle, site_from, site_to, kind
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// collectEvents drains an event query into a slice. The query must
// select the canonical event columns:
// seq, tick, time, particle, site_from, site_to, kind.
func collectEvents(rows *sql.Rows) ([]hopper.Event, error) {
	var events []hopper.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if events == nil {
		events = []hopper.Event{}
	}

	return events, nil
}

func scanEvent(rows *sql.Rows) (hopper.Event, error) {
	var ev hopper.Event
	var particle int64
	var kind string

	if err := rows.Scan(
		&ev.Seq, &ev.Tick, &ev.Time, &particle, &ev.From, &ev.To, &kind,
	); err != nil {
		return hopper.Event{}, fmt.Errorf("scan event: %w", err)
	}

	ev.Particle = hopper.ID(particle)
	ev.Kind = hopper.EventKind(kind)
	return ev, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var specJSON string

	if err := rows.Scan(
		&run.ID, &run.Name, &run.Fingerprint, &run.Mode, &run.Seed,
		&specJSON, &run.Status, &run.FinalTick, &run.FinalTime,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	spec, err := unmarshalSpec(specJSON)
	if err != nil {
		return Run{}, err
	}
	run.Spec = spec

	return run, nil
}

func scanRunRow(row *sql.Row) (Run, error) {
	var run Run
	var specJSON string

	if err := row.Scan(
		&run.ID, &run.Name, &run.Fingerprint, &run.Mode, &run.Seed,
		&specJSON, &run.Status, &run.FinalTick, &run.FinalTime,
	); err != nil {
		return Run{}, err
	}

	spec, err := unmarshalSpec(specJSON)
	if err != nil {
		return Run{}, err
	}
	run.Spec = spec

	return run, nil
}
