package hopper

import "slices"

// scheduleInitial consults a newly created particle's traits to plan its
// first opportunities: the Step dispatch in PhaseSchedule supplies the
// first waiting time, and the Expire dispatch supplies the first lifetime
// check. A wait of zero (or an unresponsive rule) leaves the particle
// parked.
func (s *Sim) scheduleInitial(p *Particle) error {
	if p.eligible() {
		in, err := dispatchStep(&StepContext{
			Particle: p,
			Track:    s.track,
			Rand:     s.rng,
			Tick:     s.tick,
			Time:     s.now,
			Phase:    PhaseSchedule,
		})
		if err != nil {
			return err
		}
		if in.Wait > 0 {
			s.queue.schedule(s.now+in.Wait, p.id, evStep, s.gen[p.id])
		}
	}

	hasExpire := false
	for i := range p.traits {
		if p.traits[i].Expire != nil {
			hasExpire = true
			break
		}
	}
	if hasExpire {
		expired, next, err := dispatchExpire(&ExpireContext{Particle: p, Time: s.now, Elapsed: 0})
		if err != nil {
			return err
		}
		switch {
		case expired:
			s.queue.schedule(s.now, p.id, evExpire, s.gen[p.id])
		case next > 0:
			s.queue.schedule(s.now+next, p.id, evExpire, s.gen[p.id])
		}
	}
	return nil
}

// asyncStep pops and commits the earliest pending event. The particle is
// evaluated against the live track and its change commits immediately;
// only the involved particles reschedule.
func (s *Sim) asyncStep() error {
	ev, ok := s.queue.next(s.gen)
	if !ok {
		s.finished = true
		s.log.Info("run finished: event queue drained", "tick", s.tick)
		return nil
	}

	s.tick++ // event ordinal
	s.now = ev.at
	mark := len(s.traj)
	p := s.registry[ev.id] // generation-checked, so the particle is live

	switch ev.kind {
	case evExpire:
		expired, next, err := dispatchExpire(&ExpireContext{
			Particle: p,
			Time:     s.now,
			Elapsed:  s.now - s.lastCheck[p.id],
		})
		if err != nil {
			return err
		}
		s.lastCheck[p.id] = s.now
		if expired {
			if err := s.remove(p, EventExpire); err != nil {
				return err
			}
		} else if next > 0 {
			s.queue.schedule(s.now+next, p.id, evExpire, s.gen[p.id])
		}

	case evStep:
		in, err := dispatchStep(&StepContext{
			Particle: p,
			Track:    s.track,
			Rand:     s.rng,
			Tick:     s.tick,
			Time:     s.now,
			Phase:    PhaseAct,
		})
		if err != nil {
			return err
		}
		switch in.Kind {
		case IntentNone, IntentHold:
			// nothing to commit
		case IntentVanish:
			if err := s.remove(p, EventRemove); err != nil {
				return err
			}
		case IntentMove:
			if err := s.asyncMove(p, in.Delta); err != nil {
				return err
			}
		}
		for _, spec := range in.Spawn {
			id, err := s.register(spec)
			if err != nil {
				return &RuleError{Particle: p.id, Op: "spawn", Message: "spawn rejected", Err: err}
			}
			if err := s.scheduleInitial(s.registry[id]); err != nil {
				return err
			}
		}
		// Reschedule the particle's next opportunity if it survived.
		if in.Wait > 0 {
			if _, alive := s.registry[p.id]; alive {
				s.queue.schedule(s.now+in.Wait, p.id, evStep, s.gen[p.id])
			}
		}
	}

	if err := s.afterCommit(slices.Clone(s.traj[mark:])); err != nil {
		return err
	}
	if !s.finished && s.queue.empty(s.gen) {
		s.finished = true
		s.log.Info("run finished: event queue drained", "tick", s.tick)
	}
	return nil
}

// asyncMove resolves and commits a single move against the live track.
func (s *Sim) asyncMove(p *Particle, delta int) error {
	target := p.pos + delta
	if !s.track.InBounds(target) {
		switch s.boundaryEnd(target) {
		case BoundaryOpen:
			return s.remove(p, EventExit)
		case BoundaryClosed:
			return nil
		default:
			return &BoundaryError{Particle: p.id, From: p.pos, Target: target}
		}
	}

	occID, occupied := s.track.OccupantAt(target)
	if !occupied {
		return s.commitMove(p, target, EventMove)
	}
	occ := s.registry[occID]
	out, err := dispatchCollide(&CollideContext{
		Mover:    p,
		Occupant: occ,
		Target:   target,
		Track:    s.track,
		Rand:     s.rng,
		Tick:     s.tick,
		Time:     s.now,
	}, s.fallback)
	if err != nil {
		return err
	}

	switch out.Kind {
	case OutcomeBlocked:
		return nil

	case OutcomeSwap:
		from, ofrom := p.pos, occ.pos
		s.track.vacate(from)
		s.track.vacate(ofrom)
		if err := s.track.place(p.id, ofrom); err != nil {
			return &InvariantViolation{Message: "swap placement collided at commit", Particle: p.id, Site: ofrom}
		}
		if err := s.track.place(occ.id, from); err != nil {
			return &InvariantViolation{Message: "swap placement collided at commit", Particle: occ.id, Site: from}
		}
		p.pos, occ.pos = ofrom, from
		s.logEvent(p.id, from, ofrom, EventSwap)
		s.logEvent(occ.id, ofrom, from, EventSwap)
		return nil

	case OutcomeMerge:
		if out.Survivor == PartyMover {
			if err := s.remove(occ, EventRemove); err != nil {
				return err
			}
			return s.commitMove(p, target, EventMerge)
		}
		return s.remove(p, EventMerge)

	case OutcomeBounce:
		redirect := p.pos + out.Delta
		// One redirect only; an unusable redirect blocks.
		if !s.track.InBounds(redirect) {
			return nil
		}
		if _, busy := s.track.OccupantAt(redirect); busy {
			return nil
		}
		return s.commitMove(p, redirect, EventBounce)

	case OutcomePush:
		return s.asyncPush(p, occ, delta)
	}
	return nil
}

// asyncPush walks and commits a push cascade against the live track. The
// same cascade constraints as synchronous mode apply: only Push extends
// the chain, anything else blocks it whole; an open end lets the tail
// exit, a closed end blocks, running out of track on a marked end is a
// BoundaryError.
func (s *Sim) asyncPush(mover, first *Particle, delta int) error {
	chain := []*Particle{mover, first}
	land := first.pos + delta
	exitTail := false

	for {
		if !s.track.InBounds(land) {
			switch s.boundaryEnd(land) {
			case BoundaryOpen:
				exitTail = true
			case BoundaryClosed:
				return nil
			default:
				tail := chain[len(chain)-1]
				return &BoundaryError{Particle: tail.id, From: tail.pos, Target: land}
			}
			break
		}
		occID, occupied := s.track.OccupantAt(land)
		if !occupied {
			break
		}
		next := s.registry[occID]
		out, err := dispatchCollide(&CollideContext{
			Mover:    chain[len(chain)-1],
			Occupant: next,
			Target:   land,
			Track:    s.track,
			Rand:     s.rng,
			Tick:     s.tick,
			Time:     s.now,
		}, s.fallback)
		if err != nil {
			return err
		}
		if out.Kind != OutcomePush {
			return nil
		}
		chain = append(chain, next)
		land += delta
	}

	if exitTail {
		tail := chain[len(chain)-1]
		chain = chain[:len(chain)-1]
		if err := s.remove(tail, EventExit); err != nil {
			return err
		}
	}
	for i := len(chain) - 1; i >= 1; i-- {
		if err := s.commitMove(chain[i], chain[i].pos+delta, EventPush); err != nil {
			return err
		}
	}
	return s.commitMove(mover, mover.pos+delta, EventMove)
}

// commitMove applies one displacement and logs it. Placement failure here
// means the resolver approved a move onto occupied ground, an engine
// defect.
func (s *Sim) commitMove(p *Particle, to int, kind EventKind) error {
	from := p.pos
	s.track.vacate(from)
	if err := s.track.place(p.id, to); err != nil {
		return &InvariantViolation{Message: "approved placement collided at commit", Particle: p.id, Site: to}
	}
	p.pos = to
	s.logEvent(p.id, from, to, kind)
	return nil
}
