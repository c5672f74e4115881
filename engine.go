package hopper

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
)

// Observer is invoked once per committed step with a read-only snapshot.
// The core performs no rendering or file I/O of its own; logging, plotting
// and persistence belong to observers and surrounding tooling.
type Observer func(v StepView)

// StepView is the read-only snapshot handed to observers after a commit.
type StepView struct {
	// Tick is the tick index (synchronous) or event ordinal
	// (asynchronous) just committed.
	Tick int64

	// Time is the simulation time of the commit.
	Time float64

	// Events lists the trajectory entries of this commit, in commit
	// order. Empty when the step changed nothing.
	Events []Event

	// Track is a copy of the post-commit occupancy.
	Track *Track

	// Particles lists all live particles ascending by ID.
	Particles []ParticleView
}

// Sim is the simulation engine: the particle registry, the track, the rule
// dispatcher and the event-scheduling/commit loop.
//
// The simulation is logically single-threaded: the driver methods
// (StepOnce, Run, RunUntil) must be called from one goroutine at a time,
// and every committed step is atomic with respect to observers: no partial
// state is ever visible between commits. Stop is safe from any goroutine
// and takes effect at a step boundary, never mid-step.
//
// Within a step the outcome is fully determined by particle identities,
// trait-attachment order and the configured random stream; identical
// configurations and seeds produce byte-identical trajectory logs.
type Sim struct {
	mode       Mode
	seed       int64
	track      *Track
	traits     map[string]Trait
	fallback   CollideRule
	markerName string
	fp         string
	observer   Observer
	log        *slog.Logger

	clk *clock
	rng *Rand

	registry map[ID]*Particle
	order    []ID // ascending; the deterministic iteration order
	nextID   ID
	active   int // particles that are not identifying-only markers

	tick int64
	now  float64

	traj []Event

	// lastCheck records each particle's previous lifetime-check time,
	// seeded with its creation time.
	lastCheck map[ID]float64

	// Asynchronous mode state; nil/unused in synchronous mode.
	queue *eventQueue
	gen   map[ID]uint64

	stopped  atomic.Bool
	finished bool
}

// New builds a simulation from cfg and the initial particle roster.
//
// Everything checkable up front is checked here: track shape, catalog
// uniqueness, trait references, sites and occupancy. Any problem surfaces
// as a ConfigurationError before a single step executes. In asynchronous
// mode the initial scheduling consultation also runs here, so a rule
// breaking its contract at that point surfaces as a RuleError from New.
//
// Marked boundaries place their marker particles before the roster, so
// markers hold the lowest IDs.
func New(cfg Config, particles ...ParticleSpec) (*Sim, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
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
		fp:         fingerprint(cfg),
		observer:   cfg.Observer,
		log:        cfg.logger(),
		clk:        newClock(),
		rng:        newRand(cfg.Seed),
		registry:   make(map[ID]*Particle),
		nextID:     1,
		lastCheck:  make(map[ID]float64),
	}
	if s.mode == ModeAsync {
		s.queue = newEventQueue()
		s.gen = make(map[ID]uint64)
	}

	if cfg.Track.Left == BoundaryMarked {
		if _, err := s.register(ParticleSpec{Traits: []string{s.markerName}, Site: 0}); err != nil {
			return nil, &ConfigurationError{Field: "track.left", Message: "place boundary marker", Err: err}
		}
	}
	if cfg.Track.Right == BoundaryMarked {
		if _, err := s.register(ParticleSpec{Traits: []string{s.markerName}, Site: track.Len() - 1}); err != nil {
			return nil, &ConfigurationError{Field: "track.right", Message: "place boundary marker", Err: err}
		}
	}

	for i, spec := range particles {
		if _, err := s.register(spec); err != nil {
			return nil, &ConfigurationError{
				Field:   fmt.Sprintf("particles[%d]", i),
				Message: "register particle",
				Err:     err,
			}
		}
	}

	if s.mode == ModeAsync {
		// Initial scheduling pass, ascending ID.
		for _, id := range slices.Clone(s.order) {
			if err := s.scheduleInitial(s.registry[id]); err != nil {
				return nil, err
			}
		}
	}

	s.log.Info("simulation ready",
		"mode", s.mode.String(),
		"seed", s.seed,
		"track_len", track.Len(),
		"particles", len(s.order),
	)
	return s, nil
}

// register creates a particle from spec, places it, and logs the
// placement. Callers wrap errors: New into ConfigurationError, spawn
// commits into RuleError.
func (s *Sim) register(spec ParticleSpec) (ID, error) {
	resolved := make([]Trait, 0, len(spec.Traits))
	seen := make(map[string]bool, len(spec.Traits))
	for _, name := range spec.Traits {
		tr, ok := s.traits[name]
		if !ok {
			return 0, fmt.Errorf("unknown trait %q", name)
		}
		if seen[name] {
			return 0, fmt.Errorf("trait %q attached twice", name)
		}
		seen[name] = true
		resolved = append(resolved, tr)
	}
	for name := range spec.State {
		if !seen[name] {
			return 0, fmt.Errorf("initial state for unattached trait %q", name)
		}
	}
	if !s.track.InBounds(spec.Site) {
		return 0, fmt.Errorf("site %d out of bounds [0,%d)", spec.Site, s.track.Len())
	}

	state := make(map[string]Bag, len(resolved))
	for i := range resolved {
		bag := resolved[i].Defaults.clone()
		if bag == nil {
			bag = Bag{}
		}
		for k, v := range spec.State[resolved[i].Name] {
			bag[k] = v
		}
		state[resolved[i].Name] = bag
	}

	id := s.nextID
	p := &Particle{id: id, pos: spec.Site, traits: resolved, state: state}
	if err := s.track.place(id, spec.Site); err != nil {
		return 0, err
	}
	s.nextID++
	s.registry[id] = p
	s.order = append(s.order, id) // IDs ascend, so append keeps order sorted
	if !p.marker() {
		s.active++
	}
	s.lastCheck[id] = s.now
	s.logEvent(id, Nowhere, spec.Site, EventPlace)
	return id, nil
}

// remove takes p off the track and out of the registry, logs the removal
// under kind, and notifies the particle's removal hooks. A hook panicking
// comes back as a RuleError; the removal itself is already committed.
func (s *Sim) remove(p *Particle, kind EventKind) error {
	s.track.vacate(p.pos)
	delete(s.registry, p.id)
	delete(s.lastCheck, p.id)
	if i, ok := slices.BinarySearch(s.order, p.id); ok {
		s.order = slices.Delete(s.order, i, i+1)
	}
	if !p.marker() {
		s.active--
	}
	if s.gen != nil {
		s.gen[p.id]++ // invalidates any pending events
	}
	s.logEvent(p.id, p.pos, Nowhere, kind)
	return notifyRemoval(p, kind)
}

// logEvent stamps and appends one trajectory entry.
func (s *Sim) logEvent(p ID, from, to int, kind EventKind) {
	ev := Event{
		Seq:      s.clk.next(),
		Tick:     s.tick,
		Time:     s.now,
		Particle: p,
		From:     from,
		To:       to,
		Kind:     kind,
	}
	s.traj = append(s.traj, ev)
	s.log.Debug("committed",
		"kind", string(kind),
		"particle", int64(p),
		"from", from,
		"to", to,
		"seq", ev.Seq,
		"tick", ev.Tick,
	)
}

// StepOnce advances the simulation by one tick (synchronous) or one event
// (asynchronous). It is a no-op on a finished simulation.
//
// On failure the error carries the taxonomy type (RuleError,
// BoundaryError, InvariantViolation) and the trajectory up to the failure
// stays available from Trajectory().
func (s *Sim) StepOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.finished {
		return nil
	}
	switch s.mode {
	case ModeSync:
		return s.syncTick()
	default:
		return s.asyncStep()
	}
}

// Run advances at most n steps, stopping early on natural termination,
// Stop, context cancellation or error. It returns the full trajectory so
// far alongside any error, so callers can inspect progress up to the
// failure point.
func (s *Sim) Run(ctx context.Context, n int) ([]Event, error) {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return s.Trajectory(), err
		}
		if s.stopped.CompareAndSwap(true, false) {
			s.log.Info("stop honored", "tick", s.tick)
			return s.Trajectory(), nil
		}
		if s.finished {
			break
		}
		if err := s.StepOnce(ctx); err != nil {
			return s.Trajectory(), err
		}
	}
	return s.Trajectory(), nil
}

// RunUntil advances until the configured limit: in synchronous mode until
// the tick index reaches limit, in asynchronous mode through every pending
// event with time at or before limit. Termination, Stop, cancellation and
// errors behave as in Run.
func (s *Sim) RunUntil(ctx context.Context, limit float64) ([]Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.Trajectory(), err
		}
		if s.stopped.CompareAndSwap(true, false) {
			s.log.Info("stop honored", "tick", s.tick)
			return s.Trajectory(), nil
		}
		if s.finished {
			return s.Trajectory(), nil
		}
		switch s.mode {
		case ModeSync:
			if float64(s.tick) >= limit {
				return s.Trajectory(), nil
			}
		default:
			if !s.queue.hasEventBefore(s.gen, limit) {
				return s.Trajectory(), nil
			}
		}
		if err := s.StepOnce(ctx); err != nil {
			return s.Trajectory(), err
		}
	}
}

// Stop requests a cooperative stop. Safe from any goroutine; an in-flight
// Run or RunUntil returns after the current step fully commits. The
// request is consumed at that boundary, so a later Run resumes normally.
func (s *Sim) Stop() {
	s.stopped.Store(true)
}

// Trajectory returns a copy of the append-only trajectory log: every
// committed state change since construction, in commit order.
func (s *Sim) Trajectory() []Event {
	return slices.Clone(s.traj)
}

// Tick returns the last committed tick index (synchronous) or event
// ordinal (asynchronous).
func (s *Sim) Tick() int64 { return s.tick }

// Now returns the current simulation time.
func (s *Sim) Now() float64 { return s.now }

// Finished reports whether the run terminated naturally: no active
// particles remain, or (asynchronous mode) the event queue drained.
func (s *Sim) Finished() bool { return s.finished }

// Mode returns the driving policy.
func (s *Sim) Mode() Mode { return s.mode }

// Particles returns read-only summaries of all live particles, ascending
// by ID.
func (s *Sim) Particles() []ParticleView {
	out := make([]ParticleView, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.registry[id].View())
	}
	return out
}

// Occupancy returns a read-only copy of the current track state.
func (s *Sim) Occupancy() *Track {
	return s.track.snapshot()
}

// afterCommit runs the per-commit tail shared by both modes: invariant
// verification, termination detection, and the observer.
func (s *Sim) afterCommit(events []Event) error {
	if err := s.verify(); err != nil {
		return err
	}
	if s.active == 0 && !s.finished {
		s.finished = true
		s.log.Info("run finished: no active particles", "tick", s.tick)
	}
	if s.observer != nil {
		s.observer(StepView{
			Tick:      s.tick,
			Time:      s.now,
			Events:    events,
			Track:     s.track.snapshot(),
			Particles: s.Particles(),
		})
	}
	return nil
}

// verify checks the occupancy/position bijection after a commit. Any
// mismatch is an engine defect and comes back as a fatal
// InvariantViolation.
func (s *Sim) verify() error {
	for site, id := range s.track.sites {
		if id == 0 {
			continue
		}
		p, ok := s.registry[id]
		if !ok {
			return &InvariantViolation{Message: "site holds unregistered particle", Particle: id, Site: site}
		}
		if p.pos != site {
			return &InvariantViolation{
				Message:  fmt.Sprintf("occupancy says site %d, particle says site %d", site, p.pos),
				Particle: id,
				Site:     site,
			}
		}
	}
	for id, p := range s.registry {
		if occ, ok := s.track.OccupantAt(p.pos); !ok || occ != id {
			return &InvariantViolation{Message: "particle claims a site it does not hold", Particle: id, Site: p.pos}
		}
	}
	return nil
}

// boundaryEnd returns the boundary kind governing an out-of-bounds target.
func (s *Sim) boundaryEnd(target int) Boundary {
	left, right := s.track.Bounds()
	if target < 0 {
		return left
	}
	return right
}
