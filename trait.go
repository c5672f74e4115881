package hopper

import "fmt"

// StepRule produces a particle's intent for one scheduling opportunity. It
// sees the particle, a read-only track view and the run's random stream, and
// may mutate only the particle's trait-private bags. The zero Intent means
// "no response": dispatch moves on to the next trait.
type StepRule func(ctx *StepContext) (Intent, error)

// CollideRule resolves a move that targets an occupied site. The zero
// Outcome means "no claim": dispatch moves on to the next trait.
type CollideRule func(ctx *CollideContext) (Outcome, error)

// ExpireRule is the lifetime check. It reports whether the particle's time
// is up, and the delay until the check is next due. The asynchronous
// scheduler uses next to plan the check; the synchronous scheduler checks
// every tick and ignores it. next <= 0 means no further checks are needed.
type ExpireRule func(ctx *ExpireContext) (expired bool, next float64)

// RemoveHook is notified after its particle leaves the simulation, with the
// trajectory kind that removed it. Hooks observe; they cannot write.
type RemoveHook func(p ParticleView, cause EventKind)

// Trait is a named capability: optional handlers per event kind plus
// default private state. A trait with no handlers at all is
// identifying-only, a tag other rules test with Particle.Has.
//
// Traits are attached at particle creation and immutable thereafter;
// behavior never changes a particle's trait composition mid-run, though
// trait-private bags do change.
type Trait struct {
	// Name identifies the trait. Unique within a Config catalog.
	Name string

	// Defaults seeds the particle's private bag for keys the registration
	// did not supply.
	Defaults Bag

	// Step handles step-intent requests.
	Step StepRule

	// Collide handles collision resolution.
	Collide CollideRule

	// Expire handles lifetime checks.
	Expire ExpireRule

	// OnRemove is notified of the particle's removal.
	OnRemove RemoveHook
}

// Phase tells an asynchronous StepRule why it is being consulted.
type Phase uint8

const (
	// PhaseAct is a real scheduling opportunity: the intent is resolved
	// and committed.
	PhaseAct Phase = iota

	// PhaseSchedule is the initial consultation at registration (and
	// restore): only the intent's Wait is honored, to plan the particle's
	// first opportunity. Synchronous runs never use it.
	PhaseSchedule
)

// StepContext carries everything a StepRule may consult.
type StepContext struct {
	// Particle is the particle being asked for an intent.
	Particle *Particle

	// Track is a read-only occupancy view. In synchronous mode it is the
	// pre-tick snapshot, so evaluation order within a tick cannot bias
	// results; in asynchronous mode it is the live track.
	Track *Track

	// Rand is the run's deterministic random stream.
	Rand *Rand

	// Tick is the current tick (synchronous) or event ordinal
	// (asynchronous).
	Tick int64

	// Time is the current simulation time.
	Time float64

	// Phase distinguishes acting from initial scheduling.
	Phase Phase
}

// CollideContext carries everything a CollideRule may consult.
type CollideContext struct {
	// Mover requested the contested move.
	Mover *Particle

	// Occupant holds the contested site.
	Occupant *Particle

	// Target is the contested site index.
	Target int

	// Track is a read-only occupancy view (same view the mover's StepRule
	// saw).
	Track *Track

	// Rand is the run's deterministic random stream.
	Rand *Rand

	// Tick is the current tick or event ordinal.
	Tick int64

	// Time is the current simulation time.
	Time float64
}

// ExpireContext carries everything an ExpireRule may consult.
type ExpireContext struct {
	// Particle is the particle being checked.
	Particle *Particle

	// Time is the current simulation time.
	Time float64

	// Elapsed is the simulation time since this particle's previous
	// lifetime check (or since its creation for the first one).
	Elapsed float64
}

// IntentKind discriminates step intents.
type IntentKind uint8

const (
	// IntentNone is the zero intent: the trait did not respond.
	IntentNone IntentKind = iota

	// IntentHold is a definite "stay put".
	IntentHold

	// IntentMove requests a displacement to an adjacent site.
	IntentMove

	// IntentVanish requests the particle's own removal.
	IntentVanish
)

// Intent is a StepRule's answer. The zero value means "no response".
type Intent struct {
	// Kind discriminates the intent.
	Kind IntentKind

	// Delta is the requested displacement for IntentMove. Must be ±1.
	Delta int

	// Wait is the delay until this particle's next opportunity
	// (asynchronous mode only). Wait <= 0 after acting parks the particle.
	Wait float64

	// Spawn lists particles to create alongside this intent's commit.
	Spawn []ParticleSpec
}

// Hold returns a definite no-op intent.
func Hold() Intent { return Intent{Kind: IntentHold} }

// HoldFor returns a no-op intent that reschedules after wait (asynchronous
// mode).
func HoldFor(wait float64) Intent { return Intent{Kind: IntentHold, Wait: wait} }

// Move requests a displacement by delta (±1).
func Move(delta int) Intent { return Intent{Kind: IntentMove, Delta: delta} }

// MoveAfter requests a displacement by delta and a next opportunity after
// wait (asynchronous mode).
func MoveAfter(delta int, wait float64) Intent {
	return Intent{Kind: IntentMove, Delta: delta, Wait: wait}
}

// Vanish requests the particle's own removal.
func Vanish() Intent { return Intent{Kind: IntentVanish} }

// WithSpawn attaches spawn requests to the intent.
func (in Intent) WithSpawn(specs ...ParticleSpec) Intent {
	in.Spawn = append(in.Spawn, specs...)
	return in
}

// None reports whether the intent is the zero "no response".
func (in Intent) None() bool { return in.Kind == IntentNone }

// OutcomeKind discriminates collision outcomes.
type OutcomeKind uint8

const (
	// OutcomeNone is the zero outcome: the trait did not claim the
	// collision.
	OutcomeNone OutcomeKind = iota

	// OutcomeBlocked cancels the intended move.
	OutcomeBlocked

	// OutcomeSwap exchanges the two particles' positions.
	OutcomeSwap

	// OutcomeMerge removes one party; the survivor holds the contested
	// site.
	OutcomeMerge

	// OutcomeBounce redirects the mover to a different adjacent site.
	OutcomeBounce

	// OutcomePush displaces the occupant onward, recursively subject to
	// the same conflict check.
	OutcomePush
)

// Party names one side of a collision.
type Party uint8

const (
	// PartyMover is the particle that requested the move.
	PartyMover Party = iota

	// PartyOccupant is the particle holding the contested site.
	PartyOccupant
)

// String returns the party name.
func (p Party) String() string {
	if p == PartyOccupant {
		return "occupant"
	}
	return "mover"
}

// Outcome is a CollideRule's answer. The zero value means "no claim".
type Outcome struct {
	// Kind discriminates the outcome.
	Kind OutcomeKind

	// Survivor selects which party persists after OutcomeMerge.
	Survivor Party

	// Delta is the redirect displacement for OutcomeBounce, relative to
	// the mover's current site. Must be ±1.
	Delta int
}

// Blocked cancels the move.
func Blocked() Outcome { return Outcome{Kind: OutcomeBlocked} }

// Swap exchanges mover and occupant.
func Swap() Outcome { return Outcome{Kind: OutcomeSwap} }

// Merge absorbs one party into the other; survivor keeps the contested
// site.
func Merge(survivor Party) Outcome { return Outcome{Kind: OutcomeMerge, Survivor: survivor} }

// Bounce redirects the mover by delta (±1) from its current site.
func Bounce(delta int) Outcome { return Outcome{Kind: OutcomeBounce, Delta: delta} }

// Push displaces the occupant one site in the move direction, cascading.
func Push() Outcome { return Outcome{Kind: OutcomePush} }

// None reports whether the outcome is the zero "no claim".
func (o Outcome) None() bool { return o.Kind == OutcomeNone }

// dispatchStep scans the particle's traits in attachment order and returns
// the first definite intent, validated against the step contract. No
// responder means a built-in no-op (IntentNone back to the caller).
//
// Handler errors and panics come back as *RuleError; the rule's own error
// is wrapped, not rewritten.
func dispatchStep(ctx *StepContext) (Intent, error) {
	p := ctx.Particle
	for i := range p.traits {
		tr := &p.traits[i]
		if tr.Step == nil {
			continue
		}
		in, err := callStep(tr, ctx)
		if err != nil {
			return Intent{}, err
		}
		if in.None() {
			continue
		}
		if err := checkIntent(in, p.id, tr.Name); err != nil {
			return Intent{}, err
		}
		return in, nil
	}
	return Intent{}, nil
}

// dispatchCollide resolves a contested move. Precedence, which tests pin:
// the mover's traits in attachment order, then the occupant's traits in
// attachment order, then the global fallback; if nobody claims the
// collision, the move is blocked.
func dispatchCollide(ctx *CollideContext, fallback CollideRule) (Outcome, error) {
	for _, side := range [2]*Particle{ctx.Mover, ctx.Occupant} {
		for i := range side.traits {
			tr := &side.traits[i]
			if tr.Collide == nil {
				continue
			}
			out, err := callCollide(tr.Collide, tr.Name, ctx)
			if err != nil {
				return Outcome{}, err
			}
			if out.None() {
				continue
			}
			if err := checkOutcome(out, ctx.Mover.id, tr.Name); err != nil {
				return Outcome{}, err
			}
			return out, nil
		}
	}
	if fallback != nil {
		out, err := callCollide(fallback, "", ctx)
		if err != nil {
			return Outcome{}, err
		}
		if !out.None() {
			if err := checkOutcome(out, ctx.Mover.id, ""); err != nil {
				return Outcome{}, err
			}
			return out, nil
		}
	}
	return Blocked(), nil
}

// dispatchExpire scans the particle's Expire handlers in attachment order.
// The first handler reporting expiry wins; otherwise the soonest positive
// next-check delay is returned for asynchronous scheduling.
func dispatchExpire(ctx *ExpireContext) (expired bool, next float64, err error) {
	p := ctx.Particle
	for i := range p.traits {
		tr := &p.traits[i]
		if tr.Expire == nil {
			continue
		}
		done, n, err := callExpire(tr, ctx)
		if err != nil {
			return false, 0, err
		}
		if done {
			return true, 0, nil
		}
		if n > 0 && (next <= 0 || n < next) {
			next = n
		}
	}
	return false, next, nil
}

// notifyRemoval invokes the particle's removal hooks in attachment order.
// Hook panics are swallowed into the returned error after all hooks ran;
// removal itself is already committed by the time hooks fire.
func notifyRemoval(p *Particle, cause EventKind) error {
	view := p.View()
	var first error
	for i := range p.traits {
		tr := &p.traits[i]
		if tr.OnRemove == nil {
			continue
		}
		if err := callRemove(tr, view, cause); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func callStep(tr *Trait, ctx *StepContext) (in Intent, err error) {
	defer func() {
		if r := recover(); r != nil {
			in = Intent{}
			err = &RuleError{
				Particle: ctx.Particle.id,
				Trait:    tr.Name,
				Op:       "step",
				Message:  "handler panicked",
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()
	in, rerr := tr.Step(ctx)
	if rerr != nil {
		return Intent{}, &RuleError{
			Particle: ctx.Particle.id,
			Trait:    tr.Name,
			Op:       "step",
			Message:  rerr.Error(),
			Err:      rerr,
		}
	}
	return in, nil
}

func callCollide(rule CollideRule, trait string, ctx *CollideContext) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{}
			err = &RuleError{
				Particle: ctx.Mover.id,
				Trait:    trait,
				Op:       "collide",
				Message:  "handler panicked",
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()
	out, rerr := rule(ctx)
	if rerr != nil {
		return Outcome{}, &RuleError{
			Particle: ctx.Mover.id,
			Trait:    trait,
			Op:       "collide",
			Message:  rerr.Error(),
			Err:      rerr,
		}
	}
	return out, nil
}

func callExpire(tr *Trait, ctx *ExpireContext) (done bool, next float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			done, next = false, 0
			err = &RuleError{
				Particle: ctx.Particle.id,
				Trait:    tr.Name,
				Op:       "expire",
				Message:  "handler panicked",
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()
	done, next = tr.Expire(ctx)
	return done, next, nil
}

func callRemove(tr *Trait, view ParticleView, cause EventKind) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuleError{
				Particle: view.ID,
				Trait:    tr.Name,
				Op:       "remove",
				Message:  "hook panicked",
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
	}()
	tr.OnRemove(view, cause)
	return nil
}

// checkIntent enforces the step contract on a definite intent.
func checkIntent(in Intent, p ID, trait string) error {
	switch in.Kind {
	case IntentHold, IntentVanish:
	case IntentMove:
		if in.Delta != 1 && in.Delta != -1 {
			return &RuleError{
				Particle: p, Trait: trait, Op: "step",
				Message: fmt.Sprintf("move delta must be ±1, got %d", in.Delta),
			}
		}
	default:
		return &RuleError{
			Particle: p, Trait: trait, Op: "step",
			Message: fmt.Sprintf("unknown intent kind %d", in.Kind),
		}
	}
	if in.Wait < 0 {
		return &RuleError{
			Particle: p, Trait: trait, Op: "step",
			Message: fmt.Sprintf("wait must not be negative, got %v", in.Wait),
		}
	}
	return nil
}

// checkOutcome enforces the collision contract on a claimed outcome.
func checkOutcome(out Outcome, p ID, trait string) error {
	switch out.Kind {
	case OutcomeBlocked, OutcomeSwap, OutcomePush:
	case OutcomeMerge:
		if out.Survivor != PartyMover && out.Survivor != PartyOccupant {
			return &RuleError{
				Particle: p, Trait: trait, Op: "collide",
				Message: fmt.Sprintf("unknown merge survivor %d", out.Survivor),
			}
		}
	case OutcomeBounce:
		if out.Delta != 1 && out.Delta != -1 {
			return &RuleError{
				Particle: p, Trait: trait, Op: "collide",
				Message: fmt.Sprintf("bounce delta must be ±1, got %d", out.Delta),
			}
		}
	default:
		return &RuleError{
			Particle: p, Trait: trait, Op: "collide",
			Message: fmt.Sprintf("unknown outcome kind %d", out.Kind),
		}
	}
	return nil
}
