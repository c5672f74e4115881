// Package store provides SQLite-backed durable storage for simulation
// runs and their trajectories.
//
// Two tables:
//   - runs: one row per run (scenario identity, seed, terminal status)
//   - events: the committed trajectory, one row per log entry
//
// All ordering uses the engine's seq commit clock, never wall time, so
// reading a trajectory back yields exactly the order it was committed in.
// Writes are idempotent: INSERT ... ON CONFLICT DO NOTHING lets a caller
// re-append an already stored span without error, which makes interrupted
// persistence safe to retry.
//
// Database configuration:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance of durability and throughput
//   - busy_timeout=5000: wait up to 5 seconds for locks
//   - foreign_keys=ON: events cannot outlive their run
//
// The stored scenario is the canonical JSON of the compiled spec, so a
// run can be replayed from the database alone, without the original
// scenario file.
package store
