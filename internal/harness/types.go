package harness

import "github.com/roach88/hopper"

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Mode and Seed identify the run as declared by the scenario.
	Mode string `json:"mode"`
	Seed int64  `json:"seed"`

	// Trajectory is the committed event log, in commit order. Trace
	// assertions and golden comparison read from here.
	Trajectory []hopper.Event `json:"trajectory"`

	// Particles is the final roster snapshot, ascending by ID. Markers
	// from marked ends are included.
	Particles []hopper.ParticleView `json:"particles"`

	// Finished reports natural termination (no active particles left, or
	// the event queue drained) rather than the limit cutting the run off.
	Finished bool `json:"finished"`

	// Tick and Time mark where the run stopped.
	Tick int64   `json:"tick"`
	Time float64 `json:"time"`

	// Errors lists assertion failures. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failure and flips the result to failing.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Site returns the final site of a particle, or false when the particle
// did not survive to the end of the run.
func (r *Result) Site(id hopper.ID) (int, bool) {
	for _, p := range r.Particles {
		if p.ID == id {
			return p.Pos, true
		}
	}
	return 0, false
}
