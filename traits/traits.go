// Package traits bundles ready-made trait constructors for common track
// behaviors: directed and random walkers, finite lifetimes, end markers,
// spawning emitters, and one constructor per collision stance.
//
// Every constructor returns a fresh Trait value with its own Defaults bag;
// there is no package-level registry and no shared mutable state. Callers
// tune behavior per particle through ParticleSpec.State overrides of the
// documented bag keys.
package traits

import (
	"github.com/roach88/hopper"
)

// Catalog trait names, as referenced by scenario definitions.
const (
	NameWalker       = "walker"
	NameRandomWalker = "random_walker"
	NamePacer        = "pacer"
	NameMortal       = "mortal"
	NameEdge         = "edge"
	NameEmitter      = "emitter"
	NameBlock        = "block"
	NamePassThrough  = "pass_through"
	NameShove        = "shove"
	NameAbsorb       = "absorb"
	NameSacrifice    = "sacrifice"
	NameReflect      = "reflect"
)

// Catalog returns one fresh instance of every bundled trait, for tooling
// that resolves scenario trait names.
func Catalog() []hopper.Trait {
	return []hopper.Trait{
		Walker(),
		RandomWalker(),
		Pacer(),
		Mortal(),
		Edge(),
		Emitter(),
		Block(),
		PassThrough(),
		Shove(),
		Absorb(),
		Sacrifice(),
		Reflect(),
	}
}

// direction normalizes a bag's dir key to ±1. Anything non-negative
// (including an unset key) walks right.
func direction(bag hopper.Bag) int {
	if bag.Int("dir") < 0 {
		return -1
	}
	return 1
}

// waitFor converts a speed (opportunities per unit time) into the next
// waiting time. A non-positive speed parks the particle.
func waitFor(speed float64) float64 {
	if speed <= 0 {
		return 0
	}
	return 1 / speed
}

// Walker returns a deterministic stepper.
//
// Bag keys: dir (±1, default +1), speed (default 1; the asynchronous
// waiting time is 1/speed, synchronous runs step every tick regardless).
func Walker() hopper.Trait {
	return hopper.Trait{
		Name:     NameWalker,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0},
		Step:     walkStep(NameWalker),
	}
}

// walkStep is the shared movement core: read dir and speed from the named
// bag, request the move.
func walkStep(name string) hopper.StepRule {
	return func(ctx *hopper.StepContext) (hopper.Intent, error) {
		bag := ctx.Particle.State(name)
		return hopper.MoveAfter(direction(bag), waitFor(bag.Float("speed"))), nil
	}
}

// RandomWalker returns a stepper that draws its direction from the run's
// random stream: +1 with probability p_forward, -1 otherwise.
//
// Bag keys: p_forward (default 0.5), speed (default 1).
func RandomWalker() hopper.Trait {
	return hopper.Trait{
		Name:     NameRandomWalker,
		Defaults: hopper.Bag{"p_forward": 0.5, "speed": 1.0},
		Step: func(ctx *hopper.StepContext) (hopper.Intent, error) {
			bag := ctx.Particle.State(NameRandomWalker)
			delta := -1
			if ctx.Rand.Float64() < bag.Float("p_forward") {
				delta = 1
			}
			return hopper.MoveAfter(delta, waitFor(bag.Float("speed"))), nil
		},
	}
}

// Pacer returns a walker that tires: every step multiplies its speed by
// slowdown, so asynchronous waiting times stretch as the run goes on.
//
// Bag keys: dir (±1, default +1), speed (default 1), slowdown
// (multiplier per step, default 0.5).
func Pacer() hopper.Trait {
	return hopper.Trait{
		Name:     NamePacer,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0, "slowdown": 0.5},
		Step: func(ctx *hopper.StepContext) (hopper.Intent, error) {
			bag := ctx.Particle.State(NamePacer)
			speed := bag.Float("speed")
			if ctx.Phase == hopper.PhaseAct {
				speed *= bag.Float("slowdown")
				bag["speed"] = speed
			}
			return hopper.MoveAfter(direction(bag), waitFor(speed)), nil
		},
	}
}

// Mortal returns a finite lifetime. The particle is removed at the first
// check at or after its lifetime has elapsed: every tick in synchronous
// runs, exactly on time in asynchronous runs.
//
// Bag keys: lifetime (default 10).
func Mortal() hopper.Trait {
	return hopper.Trait{
		Name:     NameMortal,
		Defaults: hopper.Bag{"lifetime": 10.0},
		Expire: func(ctx *hopper.ExpireContext) (bool, float64) {
			bag := ctx.Particle.State(NameMortal)
			age := bag.Float("age") + ctx.Elapsed
			bag["age"] = age
			remaining := bag.Float("lifetime") - age
			return remaining <= 0, remaining
		},
	}
}

// Edge returns the identifying-only end marker attached to the particles a
// marked boundary places. It never acts; walkers run into it and stop
// unless some other trait claims the collision.
func Edge() hopper.Trait {
	return hopper.Trait{Name: NameEdge}
}

// Emitter returns a stationary spawner: every `every` time units it
// creates one child particle on an adjacent site. The spawn is skipped
// when the target site is outside the track or already occupied in the
// emitter's view.
//
// Bag keys: every (period, default 1), child (trait name to attach,
// default "walker"), offset (relative spawn site, default +1).
func Emitter() hopper.Trait {
	return hopper.Trait{
		Name:     NameEmitter,
		Defaults: hopper.Bag{"every": 1.0, "child": NameWalker, "offset": 1},
		Step: func(ctx *hopper.StepContext) (hopper.Intent, error) {
			bag := ctx.Particle.State(NameEmitter)
			every := bag.Float("every")
			if ctx.Phase == hopper.PhaseSchedule {
				return hopper.HoldFor(every), nil
			}
			if ctx.Time-bag.Float("last") < every {
				return hopper.Hold(), nil
			}
			bag["last"] = ctx.Time

			site := ctx.Particle.Pos() + int(bag.Int("offset"))
			if !ctx.Track.InBounds(site) {
				return hopper.HoldFor(every), nil
			}
			if _, busy := ctx.Track.OccupantAt(site); busy {
				return hopper.HoldFor(every), nil
			}
			child := hopper.ParticleSpec{Traits: []string{bag.Str("child")}, Site: site}
			return hopper.HoldFor(every).WithSpawn(child), nil
		},
	}
}

// Block returns a walker that refuses every collision: whatever it runs
// into (or whatever runs into it) stays put.
//
// Bag keys: dir, speed (as Walker).
func Block() hopper.Trait {
	return hopper.Trait{
		Name:     NameBlock,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0},
		Step:     walkStep(NameBlock),
		Collide: func(*hopper.CollideContext) (hopper.Outcome, error) {
			return hopper.Blocked(), nil
		},
	}
}

// PassThrough returns a walker that trades places on contact.
//
// Bag keys: dir, speed (as Walker).
func PassThrough() hopper.Trait {
	return hopper.Trait{
		Name:     NamePassThrough,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0},
		Step:     walkStep(NamePassThrough),
		Collide: func(*hopper.CollideContext) (hopper.Outcome, error) {
			return hopper.Swap(), nil
		},
	}
}

// Shove returns a walker that pushes whatever it runs into, cascading
// through contiguous occupants.
//
// Bag keys: dir, speed (as Walker).
func Shove() hopper.Trait {
	return hopper.Trait{
		Name:     NameShove,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0},
		Step:     walkStep(NameShove),
		Collide: func(*hopper.CollideContext) (hopper.Outcome, error) {
			return hopper.Push(), nil
		},
	}
}

// Absorb returns a walker that consumes the other party on contact: the
// holder of this trait survives the merge whichever side it is on.
//
// Bag keys: dir, speed (as Walker).
func Absorb() hopper.Trait {
	return hopper.Trait{
		Name:     NameAbsorb,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0},
		Step:     walkStep(NameAbsorb),
		Collide: func(ctx *hopper.CollideContext) (hopper.Outcome, error) {
			if ctx.Mover.Has(NameAbsorb) {
				return hopper.Merge(hopper.PartyMover), nil
			}
			return hopper.Merge(hopper.PartyOccupant), nil
		},
	}
}

// Sacrifice returns a walker that yields on contact: the holder of this
// trait is consumed and the other party survives the merge.
//
// Bag keys: dir, speed (as Walker).
func Sacrifice() hopper.Trait {
	return hopper.Trait{
		Name:     NameSacrifice,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0},
		Step:     walkStep(NameSacrifice),
		Collide: func(ctx *hopper.CollideContext) (hopper.Outcome, error) {
			if ctx.Mover.Has(NameSacrifice) {
				return hopper.Merge(hopper.PartyOccupant), nil
			}
			return hopper.Merge(hopper.PartyMover), nil
		},
	}
}

// Reflect returns a walker that turns around on contact. As the mover it
// reverses its stored direction and bounces to the site behind it; as the
// occupant it sends the incoming mover back the way it came.
//
// Bag keys: dir, speed (as Walker).
func Reflect() hopper.Trait {
	return hopper.Trait{
		Name:     NameReflect,
		Defaults: hopper.Bag{"dir": 1, "speed": 1.0},
		Step:     walkStep(NameReflect),
		Collide: func(ctx *hopper.CollideContext) (hopper.Outcome, error) {
			approach := 1
			if ctx.Target < ctx.Mover.Pos() {
				approach = -1
			}
			if ctx.Mover.Has(NameReflect) {
				ctx.Mover.State(NameReflect)["dir"] = -approach
			}
			return hopper.Bounce(-approach), nil
		},
	}
}
