package hopper

import "math/rand"

// Rand is the run's deterministic random stream. Rules draw all randomness
// from it; no other source is permitted anywhere order-sensitive.
//
// Rand wraps math/rand over a draw-counting source, so a checkpoint can
// record exactly how much of the stream was consumed as (seed, draws) and a
// restore can fast-forward a fresh source to the same point. Identical
// seeds yield identical streams across runs.
type Rand struct {
	*rand.Rand
	src *countingSource
}

// countingSource counts state advances of the underlying generator. Every
// generator method consumes exactly one source call per state step, so the
// count plus the seed pins the stream position.
type countingSource struct {
	inner rand.Source64
	n     int64
}

func (s *countingSource) Int63() int64 {
	s.n++
	return s.inner.Int63()
}

func (s *countingSource) Uint64() uint64 {
	s.n++
	return s.inner.Uint64()
}

func (s *countingSource) Seed(seed int64) {
	s.inner.Seed(seed)
	s.n = 0
}

// newRand creates a stream positioned at its start.
func newRand(seed int64) *Rand {
	src := &countingSource{inner: rand.NewSource(seed).(rand.Source64)}
	return &Rand{Rand: rand.New(src), src: src}
}

// newRandAt creates a stream fast-forwarded past draws state advances.
// Used by Restore.
func newRandAt(seed, draws int64) *Rand {
	r := newRand(seed)
	for i := int64(0); i < draws; i++ {
		r.src.inner.Uint64()
	}
	r.src.n = draws
	return r
}

// draws returns the number of state advances consumed so far.
func (r *Rand) draws() int64 {
	return r.src.n
}
