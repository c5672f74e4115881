package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/hopper"
)

// BeginRun records a run before its first event is committed.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: recording the same
// run twice is a no-op. Other constraint violations still return errors.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	specJSON, err := marshalSpec(run.Spec)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, name, fingerprint, mode, seed, spec, status, final_tick, final_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Name,
		run.Fingerprint,
		run.Mode,
		run.Seed,
		specJSON,
		run.Status,
		run.FinalTick,
		run.FinalTime,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	return nil
}

// AppendEvents writes a span of trajectory events in one transaction.
// Uses ON CONFLICT(run_id, seq) DO NOTHING: re-appending an already
// stored span is silently ignored, so interrupted persistence can be
// retried from any point.
//
// The run referenced by runID must exist (foreign key constraint).
func (s *Store) AppendEvents(ctx context.Context, runID string, events []hopper.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(run_id, seq, tick, time, particle, site_from, site_to, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			runID,
			ev.Seq,
			ev.Tick,
			ev.Time,
			int64(ev.Particle),
			ev.From,
			ev.To,
			string(ev.Kind),
		)
		if err != nil {
			return fmt.Errorf("append events: seq %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}

	return nil
}

// FinishRun records a run's terminal status and final clock readings.
// Returns sql.ErrNoRows (wrapped) if the run was never begun.
func (s *Store) FinishRun(ctx context.Context, runID, status string, finalTick int64, finalTime float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, final_tick = ?, final_time = ?
		WHERE id = ?
	`, status, finalTick, finalTime, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run %q: %w", runID, sql.ErrNoRows)
	}

	return nil
}
