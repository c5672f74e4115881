package hopper

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/roach88/hopper/internal/canon"
)

// checkpointVersion is bumped whenever the Snapshot layout changes
// incompatibly. Restore rejects other versions.
const checkpointVersion = 1

const (
	checkpointDomain = "hopper/checkpoint/v1"
	configDomain     = "hopper/config/v1"
)

// Snapshot is the complete resumable state of a simulation: positions,
// private bags, pending schedule, clock, and the random stream position.
// Restoring a Snapshot under the same Config continues the run exactly as
// if it had never stopped; the trajectory log is an output, not state, and
// is not carried.
type Snapshot struct {
	Version     int             `json:"version"`
	Fingerprint string          `json:"fingerprint"`
	Mode        string          `json:"mode"`
	Seed        int64           `json:"seed"`
	Tick        int64           `json:"tick"`
	Time        float64         `json:"time"`
	Clock       int64           `json:"clock"`
	NextID      int64           `json:"next_id"`
	Draws       int64           `json:"draws"`
	Finished    bool            `json:"finished"`
	Track       TrackState      `json:"track"`
	Particles   []ParticleState `json:"particles"`
	Pending     []PendingEvent  `json:"pending"`
}

// TrackState is the track shape as recorded in a checkpoint.
type TrackState struct {
	Length int    `json:"length"`
	Left   string `json:"left"`
	Right  string `json:"right"`
}

// ParticleState is one live particle as recorded in a checkpoint.
// Bag values pass through JSON, which widens every number to float64;
// rules reading through Bag.Float and Bag.Int see no difference.
type ParticleState struct {
	ID        ID             `json:"id"`
	Pos       int            `json:"pos"`
	Traits    []string       `json:"traits"`
	State     map[string]Bag `json:"state"`
	LastCheck float64        `json:"last_check"`
}

// PendingEvent is one queued asynchronous opportunity as recorded in a
// checkpoint. Synchronous checkpoints carry none.
type PendingEvent struct {
	At       float64 `json:"at"`
	Particle ID      `json:"particle"`
	Kind     string  `json:"kind"`
}

// Snapshot captures the simulation's current state. Call it only between
// steps (the same single-goroutine discipline as the drivers).
func (s *Sim) Snapshot() Snapshot {
	left, right := s.track.Bounds()
	snap := Snapshot{
		Version:     checkpointVersion,
		Fingerprint: s.fp,
		Mode:        s.mode.String(),
		Seed:        s.seed,
		Tick:        s.tick,
		Time:        s.now,
		Clock:       s.clk.current(),
		NextID:      int64(s.nextID),
		Draws:       s.rng.draws(),
		Finished:    s.finished,
		Track: TrackState{
			Length: s.track.Len(),
			Left:   left.String(),
			Right:  right.String(),
		},
		Particles: make([]ParticleState, 0, len(s.order)),
		Pending:   make([]PendingEvent, 0),
	}
	for _, id := range s.order {
		p := s.registry[id]
		state := make(map[string]Bag, len(p.state))
		for name, bag := range p.state {
			state[name] = bag.clone()
		}
		snap.Particles = append(snap.Particles, ParticleState{
			ID:        p.id,
			Pos:       p.pos,
			Traits:    p.Traits(),
			State:     state,
			LastCheck: s.lastCheck[id],
		})
	}
	if s.queue != nil {
		for _, ev := range s.queue.pending(s.gen) {
			snap.Pending = append(snap.Pending, PendingEvent{
				At:       ev.at,
				Particle: ev.id,
				Kind:     ev.kind.String(),
			})
		}
	}
	return snap
}

// WriteCheckpoint serializes the current state to w as a canonical JSON
// envelope {"digest": ..., "state": ...}, where the digest is a
// domain-separated SHA-256 over the state bytes. Restore refuses an
// envelope whose digest does not match, so a checkpoint edited by hand is
// rejected rather than silently trusted.
//
// Bag values must be JSON-encodable and non-nil; a rule that stored
// something else surfaces here as an error.
func (s *Sim) WriteCheckpoint(w io.Writer) error {
	state, err := canon.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}
	envelope, err := canon.Marshal(map[string]any{
		"digest": canon.HashBytes(checkpointDomain, state),
		"state":  json.RawMessage(state),
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint envelope: %w", err)
	}
	if _, err := w.Write(append(envelope, '\n')); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Restore rebuilds a simulation from a checkpoint previously written by
// WriteCheckpoint, under the same Config that produced it.
//
// The Config must match: rules and hooks are code and cannot be
// serialized, so the caller supplies them again, and a fingerprint over
// the structural configuration (track shape, mode, seed, catalog names,
// marker trait) guards against restoring under a different setup. No
// placement events are logged and no initial scheduling consultation runs;
// the restored simulation continues exactly where the checkpoint left off,
// with a fresh (empty) trajectory log and the sequence clock carrying on
// from its recorded position.
func Restore(cfg Config, r io.Reader) (*Sim, error) {
	var env struct {
		Digest string          `json:"digest"`
		State  json.RawMessage `json:"state"`
	}
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, &ConfigurationError{Field: "checkpoint", Message: "decode envelope", Err: err}
	}
	if env.Digest == "" || len(env.State) == 0 {
		return nil, newConfigError("checkpoint", "envelope missing digest or state")
	}
	if got := canon.HashBytes(checkpointDomain, env.State); got != env.Digest {
		return nil, newConfigError("checkpoint", "digest mismatch: state does not hash to the recorded digest")
	}

	var snap Snapshot
	if err := json.Unmarshal(env.State, &snap); err != nil {
		return nil, &ConfigurationError{Field: "checkpoint", Message: "decode state", Err: err}
	}
	if snap.Version != checkpointVersion {
		return nil, newConfigError("checkpoint", "unsupported checkpoint version %d (want %d)", snap.Version, checkpointVersion)
	}
	return restore(cfg, snap)
}

func restore(cfg Config, snap Snapshot) (*Sim, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if fp := fingerprint(cfg); fp != snap.Fingerprint {
		return nil, newConfigError("checkpoint",
			"configuration fingerprint mismatch: track, mode, seed or trait catalog differs from the run that wrote this checkpoint")
	}
	catalog, err := cfg.catalog()
	if err != nil {
		return nil, err
	}
	track, err := NewTrack(cfg.Track)
	if err != nil {
		return nil, err
	}

	s := &Sim{
		mode:       cfg.Mode,
		seed:       cfg.Seed,
		track:      track,
		traits:     catalog,
		fallback:   cfg.Fallback,
		markerName: cfg.markerTrait(),
		fp:         snap.Fingerprint,
		observer:   cfg.Observer,
		log:        cfg.logger(),
		clk:        newClockAt(snap.Clock),
		rng:        newRandAt(cfg.Seed, snap.Draws),
		registry:   make(map[ID]*Particle),
		nextID:     ID(snap.NextID),
		active:     0,
		tick:       snap.Tick,
		now:        snap.Time,
		lastCheck:  make(map[ID]float64),
		finished:   snap.Finished,
	}

	for _, ps := range snap.Particles {
		resolved := make([]Trait, 0, len(ps.Traits))
		for _, name := range ps.Traits {
			tr, ok := s.traits[name]
			if !ok {
				return nil, newConfigError("checkpoint", "particle %d references trait %q not in this catalog", ps.ID, name)
			}
			resolved = append(resolved, tr)
		}
		state := make(map[string]Bag, len(ps.State))
		for name, bag := range ps.State {
			if bag == nil {
				bag = Bag{}
			}
			state[name] = bag
		}
		p := &Particle{id: ps.ID, pos: ps.Pos, traits: resolved, state: state}
		if !track.InBounds(ps.Pos) {
			return nil, newConfigError("checkpoint", "particle %d at site %d, out of bounds", ps.ID, ps.Pos)
		}
		if err := track.place(ps.ID, ps.Pos); err != nil {
			return nil, &ConfigurationError{Field: "checkpoint", Message: "place restored particle", Err: err}
		}
		s.registry[ps.ID] = p
		s.order = append(s.order, ps.ID)
		if !p.marker() {
			s.active++
		}
		s.lastCheck[ps.ID] = ps.LastCheck
	}
	slices.Sort(s.order)

	if s.mode == ModeAsync {
		s.queue = newEventQueue()
		s.gen = make(map[ID]uint64)
		for _, pe := range snap.Pending {
			kind, ok := parseAsyncKind(pe.Kind)
			if !ok {
				return nil, newConfigError("checkpoint", "unknown pending event kind %q", pe.Kind)
			}
			if _, live := s.registry[pe.Particle]; !live {
				return nil, newConfigError("checkpoint", "pending event for unknown particle %d", pe.Particle)
			}
			s.queue.schedule(pe.At, pe.Particle, kind, 0)
		}
	}

	s.log.Info("simulation restored",
		"mode", s.mode.String(),
		"seed", s.seed,
		"tick", s.tick,
		"particles", len(s.order),
	)
	return s, nil
}

// Fingerprint returns the hash of the structural configuration this
// simulation runs under. Two Sims with equal fingerprints accept each
// other's checkpoints.
func (s *Sim) Fingerprint() string { return s.fp }

// fingerprint hashes the structural configuration: everything that must
// match between the writer and the reader of a checkpoint. Trait names are
// hashed in declaration order because attachment and dispatch order are
// semantic.
func fingerprint(cfg Config) string {
	names := make([]string, 0, len(cfg.Traits)+1)
	for i := range cfg.Traits {
		names = append(names, cfg.Traits[i].Name)
	}
	if cfg.Track.Left == BoundaryMarked || cfg.Track.Right == BoundaryMarked {
		if m := cfg.markerTrait(); !slices.Contains(names, m) {
			names = append(names, m)
		}
	}
	h, err := canon.Hash(configDomain, map[string]any{
		"length": cfg.Track.Length,
		"left":   cfg.Track.Left.String(),
		"right":  cfg.Track.Right.String(),
		"mode":   cfg.Mode.String(),
		"seed":   cfg.Seed,
		"traits": names,
		"marker": cfg.markerTrait(),
	})
	if err != nil {
		// The tree above is scalars and strings only; this cannot fail.
		panic(fmt.Sprintf("hopper: fingerprint: %v", err))
	}
	return h
}
