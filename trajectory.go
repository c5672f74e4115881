package hopper

// Nowhere is the From/To value for "not on the track": spawns come from
// Nowhere, removals go to Nowhere.
const Nowhere = -1

// EventKind labels a committed state change in the trajectory log.
type EventKind string

const (
	// EventPlace records a particle entering the track, at setup or by a
	// spawning rule.
	EventPlace EventKind = "place"

	// EventMove records an uncontested displacement.
	EventMove EventKind = "move"

	// EventSwap records one side of a position exchange; a swap commits as
	// two entries, mover first.
	EventSwap EventKind = "swap"

	// EventPush records a particle displaced by a push cascade. The
	// cascade's initiating mover logs EventMove.
	EventPush EventKind = "push"

	// EventBounce records a mover redirected to an adjacent site by a
	// bounce outcome.
	EventBounce EventKind = "bounce"

	// EventMerge records the mover's side of an authorized merge: its
	// entry into the contested site when it survives, or its absorption
	// (To=Nowhere) when the occupant survives. An absorbed occupant logs
	// EventRemove.
	EventMerge EventKind = "merge"

	// EventRemove records a removal: an explicit Vanish intent or
	// absorption by a merge.
	EventRemove EventKind = "remove"

	// EventExit records a particle carried off an open track end.
	EventExit EventKind = "exit"

	// EventExpire records a removal by a lifetime check.
	EventExpire EventKind = "expire"
)

// Event is one trajectory entry: a single particle's committed state
// change. The log is append-only, one entry per changed particle per
// commit, in commit order.
type Event struct {
	// Seq is the commit clock stamp. Strictly increasing across the run,
	// including across a checkpoint/restore.
	Seq int64 `json:"seq"`

	// Tick is the tick index (synchronous) or event ordinal
	// (asynchronous). Setup placements carry tick 0.
	Tick int64 `json:"tick"`

	// Time is the simulation time of the commit.
	Time float64 `json:"time"`

	// Particle is the changed particle.
	Particle ID `json:"particle"`

	// From is the prior site, or Nowhere for spawns.
	From int `json:"from"`

	// To is the new site, or Nowhere for removals.
	To int `json:"to"`

	// Kind labels the change.
	Kind EventKind `json:"kind"`
}
