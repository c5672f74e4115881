package hopper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBag_Float(t *testing.T) {
	b := Bag{"f": 1.5, "i": 3, "i64": int64(4), "s": "x"}

	assert.Equal(t, 1.5, b.Float("f"))
	assert.Equal(t, 3.0, b.Float("i"))
	assert.Equal(t, 4.0, b.Float("i64"))
	assert.Equal(t, 0.0, b.Float("s"), "non-numeric coerces to zero")
	assert.Equal(t, 0.0, b.Float("missing"))
}

func TestBag_Int(t *testing.T) {
	b := Bag{"f": 2.9, "i": 3, "i64": int64(4)}

	assert.Equal(t, int64(2), b.Int("f"), "floats truncate")
	assert.Equal(t, int64(3), b.Int("i"))
	assert.Equal(t, int64(4), b.Int("i64"))
	assert.Equal(t, int64(0), b.Int("missing"))
}

func TestBag_StrAndBool(t *testing.T) {
	b := Bag{"s": "left", "b": true, "n": 1}

	assert.Equal(t, "left", b.Str("s"))
	assert.Equal(t, "", b.Str("n"))
	assert.True(t, b.Bool("b"))
	assert.False(t, b.Bool("n"))
	assert.False(t, b.Bool("missing"))
}

func TestBag_CloneIndependent(t *testing.T) {
	orig := Bag{"k": 1}
	cp := orig.clone()
	cp["k"] = 2
	cp["new"] = 3

	assert.Equal(t, 1, orig["k"])
	_, ok := orig["new"]
	assert.False(t, ok)

	assert.Nil(t, Bag(nil).clone())
}

func TestParticle_TraitsInAttachmentOrder(t *testing.T) {
	p := &Particle{
		id:  1,
		pos: 0,
		traits: []Trait{
			{Name: "b"},
			{Name: "a"},
		},
	}

	assert.Equal(t, []string{"b", "a"}, p.Traits())
	assert.True(t, p.Has("a"))
	assert.False(t, p.Has("c"))
}

func TestParticle_MarkerDetection(t *testing.T) {
	hold := func(*StepContext) (Intent, error) { return Hold(), nil }

	tests := []struct {
		name   string
		traits []Trait
		marker bool
	}{
		{"no traits", nil, true},
		{"identifying only", []Trait{{Name: "edge"}}, true},
		{"identifying with defaults", []Trait{{Name: "edge", Defaults: Bag{"k": 1}}}, true},
		{"step handler", []Trait{{Name: "w", Step: hold}}, false},
		{"mixed", []Trait{{Name: "edge"}, {Name: "w", Step: hold}}, false},
		{"remove hook only", []Trait{{Name: "h", OnRemove: func(ParticleView, EventKind) {}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Particle{id: 1, traits: tt.traits}
			assert.Equal(t, tt.marker, p.marker())
		})
	}
}

func TestParticle_EligibleNeedsStepHandler(t *testing.T) {
	p := &Particle{id: 1, traits: []Trait{{Name: "t", Collide: func(*CollideContext) (Outcome, error) { return Blocked(), nil }}}}
	assert.False(t, p.eligible())

	p.traits = append(p.traits, Trait{Name: "w", Step: func(*StepContext) (Intent, error) { return Hold(), nil }})
	assert.True(t, p.eligible())
}

func TestParticle_StateMutableThroughAccessor(t *testing.T) {
	p := &Particle{
		id:     1,
		traits: []Trait{{Name: "t"}},
		state:  map[string]Bag{"t": {"count": int64(1)}},
	}

	p.State("t")["count"] = int64(2)
	assert.Equal(t, int64(2), p.State("t").Int("count"))
	assert.Nil(t, p.State("other"), "unattached trait has no bag")
}
