package hopper

import "slices"

// intentRec pairs a particle with its evaluated intent for one tick.
type intentRec struct {
	p  *Particle
	in Intent
}

// op is one approved change, queued during resolution and applied at the
// tick boundary. to == Nowhere marks a removal.
type op struct {
	p    *Particle
	from int
	to   int
	kind EventKind
}

// syncTick advances one synchronous tick.
//
// Evaluation runs against the pre-tick occupancy snapshot, ascending by
// particle ID, so evaluation order cannot bias results. Resolution then
// applies, in this order: same-target conflicts keep only the lowest mover
// ID; a target whose pre-tick occupant holds a move intent of its own this
// tick is unenterable (blocked without collision dispatch; the parties
// never actually meet); remaining contested moves go through collision
// dispatch. All approvals commit atomically at the tick boundary: removals
// first, then placements, then spawns, then lifetime checks.
func (s *Sim) syncTick() error {
	s.tick++
	s.now = float64(s.tick)

	pre := s.track.snapshot()

	// Evaluate every eligible particle against the snapshot.
	recs := make([]intentRec, 0, len(s.order))
	moveIntent := make(map[ID]bool)
	for _, id := range slices.Clone(s.order) {
		p := s.registry[id]
		if !p.eligible() {
			continue
		}
		in, err := dispatchStep(&StepContext{
			Particle: p,
			Track:    pre,
			Rand:     s.rng,
			Tick:     s.tick,
			Time:     s.now,
			Phase:    PhaseAct,
		})
		if err != nil {
			return err
		}
		if in.None() {
			continue
		}
		recs = append(recs, intentRec{p: p, in: in})
		if in.Kind == IntentMove {
			moveIntent[id] = true
		}
	}

	// Same-target tie-break before any collision rule runs: recs ascend by
	// ID, so the first claim on a target wins.
	winner := make(map[int]ID)
	for _, r := range recs {
		if r.in.Kind != IntentMove {
			continue
		}
		target := r.p.pos + r.in.Delta
		if !s.track.InBounds(target) {
			continue
		}
		if _, taken := winner[target]; !taken {
			winner[target] = r.p.id
		}
	}

	// Resolve ascending by ID. claimed records sites entered this tick so
	// no second entry can slip in through a bounce redirect or push chain.
	claimed := make(map[int]bool)
	var ops []op
	var pending []spawnReq
	for _, r := range recs {
		switch r.in.Kind {
		case IntentHold:
			// definite no-op
		case IntentVanish:
			ops = append(ops, op{p: r.p, from: r.p.pos, to: Nowhere, kind: EventRemove})
		case IntentMove:
			target := r.p.pos + r.in.Delta
			if !s.track.InBounds(target) {
				switch s.boundaryEnd(target) {
				case BoundaryOpen:
					ops = append(ops, op{p: r.p, from: r.p.pos, to: Nowhere, kind: EventExit})
				case BoundaryClosed:
					// blocked; nothing changed, nothing logged
				default:
					return &BoundaryError{Particle: r.p.id, From: r.p.pos, Target: target}
				}
				break
			}
			if winner[target] != r.p.id {
				break // lost the same-target tie-break
			}
			mops, err := s.resolveMove(r.p, r.in.Delta, pre, claimed, moveIntent)
			if err != nil {
				return err
			}
			ops = append(ops, mops...)
		}
		if len(r.in.Spawn) > 0 {
			pending = append(pending, spawnReq{by: r.p.id, specs: r.in.Spawn})
		}
	}

	mark := len(s.traj)

	// Commit. Movers leave their sites first so exchanges and chains land
	// on vacated ground, then removals, then placements.
	for _, o := range ops {
		if o.to != Nowhere {
			s.track.vacate(o.from)
		}
	}
	for _, o := range ops {
		if o.to == Nowhere {
			if err := s.remove(o.p, o.kind); err != nil {
				return err
			}
		}
	}
	for _, o := range ops {
		if o.to == Nowhere {
			continue
		}
		if err := s.track.place(o.p.id, o.to); err != nil {
			return &InvariantViolation{Message: "approved placement collided at commit", Particle: o.p.id, Site: o.to}
		}
		o.p.pos = o.to
		s.logEvent(o.p.id, o.from, o.to, o.kind)
	}

	// Spawns, in initiator order.
	for _, req := range pending {
		for _, spec := range req.specs {
			if _, err := s.register(spec); err != nil {
				return &RuleError{Particle: req.by, Op: "spawn", Message: "spawn rejected", Err: err}
			}
		}
	}

	// Lifetime checks, ascending by ID.
	if err := s.sweepExpiries(); err != nil {
		return err
	}

	return s.afterCommit(slices.Clone(s.traj[mark:]))
}

// spawnReq carries one intent's spawn requests with its initiator for
// error attribution.
type spawnReq struct {
	by    ID
	specs []ParticleSpec
}

// resolveMove resolves one tie-break-winning move against the pre-tick
// snapshot, returning the ops it commits (empty when blocked).
func (s *Sim) resolveMove(mover *Particle, delta int, pre *Track, claimed map[int]bool, moveIntent map[ID]bool) ([]op, error) {
	target := mover.pos + delta
	if claimed[target] {
		return nil, nil
	}
	occID, occupied := pre.OccupantAt(target)
	if !occupied {
		claimed[target] = true
		return []op{{p: mover, from: mover.pos, to: target, kind: EventMove}}, nil
	}
	if moveIntent[occID] {
		return nil, nil // occupant is in motion this tick; unenterable
	}
	occ := s.registry[occID]
	out, err := dispatchCollide(&CollideContext{
		Mover:    mover,
		Occupant: occ,
		Target:   target,
		Track:    pre,
		Rand:     s.rng,
		Tick:     s.tick,
		Time:     s.now,
	}, s.fallback)
	if err != nil {
		return nil, err
	}

	switch out.Kind {
	case OutcomeBlocked:
		return nil, nil

	case OutcomeSwap:
		claimed[target] = true
		claimed[mover.pos] = true
		return []op{
			{p: mover, from: mover.pos, to: target, kind: EventSwap},
			{p: occ, from: target, to: mover.pos, kind: EventSwap},
		}, nil

	case OutcomeMerge:
		if out.Survivor == PartyMover {
			claimed[target] = true
			return []op{
				{p: occ, from: target, to: Nowhere, kind: EventRemove},
				{p: mover, from: mover.pos, to: target, kind: EventMerge},
			}, nil
		}
		return []op{{p: mover, from: mover.pos, to: Nowhere, kind: EventMerge}}, nil

	case OutcomeBounce:
		redirect := mover.pos + out.Delta
		// One redirect only; an unusable redirect blocks rather than
		// dispatching a second collision.
		if !s.track.InBounds(redirect) || claimed[redirect] {
			return nil, nil
		}
		if _, busy := pre.OccupantAt(redirect); busy {
			return nil, nil
		}
		claimed[redirect] = true
		return []op{{p: mover, from: mover.pos, to: redirect, kind: EventBounce}}, nil

	case OutcomePush:
		return s.resolvePush(mover, occ, delta, pre, claimed, moveIntent)
	}
	return nil, nil
}

// resolvePush walks a push cascade in the move direction. Each displaced
// occupant is recursively subject to the same conflict check; within a
// cascade only Push extends the chain and anything else blocks the whole
// chain. A chain reaching an open end lets its tail exit; a closed end
// blocks; running out of track on a marked end is a BoundaryError.
func (s *Sim) resolvePush(mover, first *Particle, delta int, pre *Track, claimed map[int]bool, moveIntent map[ID]bool) ([]op, error) {
	chain := []*Particle{mover, first}
	land := first.pos + delta
	exitTail := false

	for {
		if !s.track.InBounds(land) {
			switch s.boundaryEnd(land) {
			case BoundaryOpen:
				exitTail = true
			case BoundaryClosed:
				return nil, nil
			default:
				tail := chain[len(chain)-1]
				return nil, &BoundaryError{Particle: tail.id, From: tail.pos, Target: land}
			}
			break
		}
		if claimed[land] {
			return nil, nil
		}
		occID, occupied := pre.OccupantAt(land)
		if !occupied {
			break
		}
		if moveIntent[occID] {
			return nil, nil
		}
		next := s.registry[occID]
		out, err := dispatchCollide(&CollideContext{
			Mover:    chain[len(chain)-1],
			Occupant: next,
			Target:   land,
			Track:    pre,
			Rand:     s.rng,
			Tick:     s.tick,
			Time:     s.now,
		}, s.fallback)
		if err != nil {
			return nil, err
		}
		if out.Kind != OutcomePush {
			return nil, nil
		}
		chain = append(chain, next)
		land += delta
	}

	var ops []op
	if exitTail {
		tail := chain[len(chain)-1]
		chain = chain[:len(chain)-1]
		ops = append(ops, op{p: tail, from: tail.pos, to: Nowhere, kind: EventExit})
	}
	for i := len(chain) - 1; i >= 1; i-- {
		claimed[chain[i].pos+delta] = true
		ops = append(ops, op{p: chain[i], from: chain[i].pos, to: chain[i].pos + delta, kind: EventPush})
	}
	claimed[mover.pos+delta] = true
	ops = append(ops, op{p: mover, from: mover.pos, to: mover.pos + delta, kind: EventMove})
	return ops, nil
}

// sweepExpiries runs the per-tick lifetime checks, ascending by ID.
func (s *Sim) sweepExpiries() error {
	for _, id := range slices.Clone(s.order) {
		p, ok := s.registry[id]
		if !ok {
			continue
		}
		hasExpire := false
		for i := range p.traits {
			if p.traits[i].Expire != nil {
				hasExpire = true
				break
			}
		}
		if !hasExpire {
			continue
		}
		expired, _, err := dispatchExpire(&ExpireContext{
			Particle: p,
			Time:     s.now,
			Elapsed:  s.now - s.lastCheck[id],
		})
		if err != nil {
			return err
		}
		s.lastCheck[id] = s.now
		if expired {
			if err := s.remove(p, EventExpire); err != nil {
				return err
			}
		}
	}
	return nil
}
