// Package hopper simulates particles on a one-dimensional track of
// discrete sites, driven by per-particle rules.
//
// A simulation is a Track (ordered sites, each holding at most one
// particle), a set of Particles (stable identity, ordered traits, private
// per-trait state), and a Config naming the trait catalog, the driving
// mode, and the random seed. Traits carry the rules: step intents,
// collision outcomes, lifetime checks and removal hooks. The engine owns
// all state transitions; rules only declare intent.
//
// ARCHITECTURE:
//
// Single-Writer Step Loop:
// The engine commits all state changes from a single driving goroutine.
// This ensures:
// - Predictable rule evaluation order (ascending particle ID, then
//   trait-attachment order within a particle)
// - A reproducible trajectory log on replay
// - Simple reasoning about causality
//
// Two driving modes, never mixed within a run:
//  1. Synchronous: global ticks. Every eligible particle is evaluated
//     against the frozen pre-tick occupancy; approved changes commit
//     atomically at the tick boundary. Conflicts resolve by fixed
//     precedence with ascending-ID tie-breaks.
//  2. Asynchronous: an event queue keyed (time, particle ID, kind) pops
//     the earliest opportunity; the particle is evaluated against the
//     live track and its outcome commits immediately.
//
// Determinism:
// All events are stamped with a monotonic sequence from a logical clock,
// never wall-clock time. All randomness flows from the seeded stream in
// Config; the stream position is part of a checkpoint, so a restored run
// continues the exact same random sequence. Identical configuration,
// roster and seed produce byte-identical trajectory logs.
//
// Checkpoints:
// Snapshot/WriteCheckpoint serialize the full resumable state as
// canonical JSON guarded by a content digest; Restore rebuilds a
// simulation mid-run under the same Config. Rules are code and are not
// serialized; the configuration fingerprint catches a mismatched setup.
//
// The core performs no rendering, persistence or other I/O beyond
// structured logging; observers and the surrounding tooling (scenario
// files, the SQLite trace store, the CLI) build on the trajectory log.
package hopper
