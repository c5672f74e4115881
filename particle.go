package hopper

// ID identifies a particle for its whole lifetime. IDs are assigned
// ascending at registration and spawn, never reused within a run, and serve
// as the universal deterministic tie-break. 0 is reserved for "no particle".
type ID int64

// Bag holds one trait's private state on one particle. Keys and values are
// chosen by the trait's rules; the engine never interprets them beyond
// serializing them canonically for checkpoints.
//
// Values survive a checkpoint/restore cycle through JSON, which widens all
// numbers to float64. Rules should read numbers through Float (or Int) so
// live and restored runs behave identically.
type Bag map[string]any

// Float returns the value under key coerced to float64, or 0 when absent
// or non-numeric.
func (b Bag) Float(key string) float64 {
	switch v := b[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Int returns the value under key coerced to int64, or 0 when absent or
// non-numeric. Float values truncate.
func (b Bag) Int(key string) int64 {
	switch v := b[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Str returns the string under key, or "" when absent or not a string.
func (b Bag) Str(key string) string {
	s, _ := b[key].(string)
	return s
}

// Bool returns the bool under key, or false when absent or not a bool.
func (b Bag) Bool(key string) bool {
	v, _ := b[key].(bool)
	return v
}

// clone returns a shallow copy. Bags hold scalars only, so a shallow copy
// is a full copy in practice.
func (b Bag) clone() Bag {
	if b == nil {
		return nil
	}
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Particle is an individually evolvable entity: a stable identity, a
// current site, an ordered set of traits fixed at creation, and one private
// state bag per trait.
//
// Particles are owned by the engine's registry. Rules receive the particle
// through their context and may mutate only its trait-private bags.
type Particle struct {
	id     ID
	pos    int
	traits []Trait        // attachment order; immutable after creation
	state  map[string]Bag // trait name → private state
}

// ID returns the particle's identity.
func (p *Particle) ID() ID { return p.id }

// Pos returns the particle's current site.
func (p *Particle) Pos() int { return p.pos }

// Has reports whether a trait with the given name is attached. Useful for
// tag tests against identifying-only traits.
func (p *Particle) Has(trait string) bool {
	for i := range p.traits {
		if p.traits[i].Name == trait {
			return true
		}
	}
	return false
}

// Traits returns the attached trait names in attachment order.
func (p *Particle) Traits() []string {
	out := make([]string, len(p.traits))
	for i := range p.traits {
		out[i] = p.traits[i].Name
	}
	return out
}

// State returns the private bag of the named trait, or nil if the trait is
// not attached. Rules mutate their own trait's bag through this.
func (p *Particle) State(trait string) Bag {
	return p.state[trait]
}

// View returns a read-only summary of the particle.
func (p *Particle) View() ParticleView {
	return ParticleView{ID: p.id, Pos: p.pos, Traits: p.Traits()}
}

// eligible reports whether any attached trait can produce a step intent.
func (p *Particle) eligible() bool {
	for i := range p.traits {
		if p.traits[i].Step != nil {
			return true
		}
	}
	return false
}

// marker reports whether the particle is identifying-only: every attached
// trait (and a trait-less particle trivially) carries no handlers at all.
// Markers do not count toward the active-particle termination condition.
func (p *Particle) marker() bool {
	for i := range p.traits {
		tr := &p.traits[i]
		if tr.Step != nil || tr.Collide != nil || tr.Expire != nil || tr.OnRemove != nil {
			return false
		}
	}
	return true
}

// ParticleView is the read-only particle summary handed to observers and
// removal hooks.
type ParticleView struct {
	ID     ID
	Pos    int
	Traits []string
}
