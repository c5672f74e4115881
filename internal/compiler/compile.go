// Package compiler turns CUE scenario declarations into compiled
// scenario.Spec values, with source-positioned errors for anything
// malformed. It parses structure only; schema rules (ranges, duplicate
// sites, mode names) live in scenario.Validate.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hopper/internal/scenario"
)

// Field sets for strict decoding. A label outside the set is a compile
// error, so a typo ("particle:") cannot silently drop half the scenario.
var (
	scenarioFields = map[string]bool{
		"name": true, "description": true, "track": true, "mode": true,
		"seed": true, "limit": true, "marker": true, "particles": true,
	}
	trackFields    = map[string]bool{"length": true, "left": true, "right": true}
	particleFields = map[string]bool{"traits": true, "site": true, "state": true}
)

// CompileFile reads one .cue file and compiles the scenario it declares.
func CompileFile(path string) (*scenario.Spec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	return Compile(v)
}

// CompileString compiles CUE source text holding a scenario declaration.
func CompileString(src string) (*scenario.Spec, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src))
}

// Compile extracts the scenario declaration from a CUE value.
//
// The expected shape:
//
//	scenario: {
//		name:  "drift"
//		track: {length: 8, right: "open"}
//		mode:  "sync"
//		seed:  42
//		limit: 10
//		particles: [
//			{traits: ["walker"], site: 1},
//			{traits: ["walker"], site: 4, state: {walker: {dir: -1}}},
//		]
//	}
func Compile(v cue.Value) (*scenario.Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("scenario"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "scenario",
			Message: "scenario declaration is required",
			Pos:     v.Pos(),
		}
	}
	if err := checkFields(root, "scenario", scenarioFields); err != nil {
		return nil, err
	}

	spec := &scenario.Spec{}
	var err error

	if spec.Name, err = strField(root, "name", true); err != nil {
		return nil, err
	}
	if spec.Description, err = strField(root, "description", false); err != nil {
		return nil, err
	}
	if spec.Mode, err = strField(root, "mode", false); err != nil {
		return nil, err
	}
	if spec.Marker, err = strField(root, "marker", false); err != nil {
		return nil, err
	}
	if spec.Seed, _, err = intField(root, "seed", false); err != nil {
		return nil, err
	}
	if spec.Limit, err = numField(root, "limit", true); err != nil {
		return nil, err
	}
	if spec.Track, err = compileTrack(root); err != nil {
		return nil, err
	}
	if spec.Particles, err = compileParticles(root); err != nil {
		return nil, err
	}
	return spec, nil
}

func compileTrack(root cue.Value) (scenario.Track, error) {
	var track scenario.Track

	tv := root.LookupPath(cue.ParsePath("track"))
	if !tv.Exists() {
		return track, &CompileError{
			Field:   "scenario.track",
			Message: "track is required",
			Pos:     root.Pos(),
		}
	}
	if err := checkFields(tv, "scenario.track", trackFields); err != nil {
		return track, err
	}

	length, _, err := intField(tv, "length", true)
	if err != nil {
		return track, err
	}
	track.Length = int(length)
	if track.Left, err = strField(tv, "left", false); err != nil {
		return track, err
	}
	if track.Right, err = strField(tv, "right", false); err != nil {
		return track, err
	}
	return track, nil
}

func compileParticles(root cue.Value) ([]scenario.Particle, error) {
	pv := root.LookupPath(cue.ParsePath("particles"))
	if !pv.Exists() {
		return nil, &CompileError{
			Field:   "scenario.particles",
			Message: "particles is required (an empty list is allowed)",
			Pos:     root.Pos(),
		}
	}

	iter, err := pv.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "scenario.particles",
			Message: "particles must be a list",
			Pos:     pv.Pos(),
		}
	}

	particles := []scenario.Particle{}
	for i := 0; iter.Next(); i++ {
		p, err := compileParticle(iter.Value(), fmt.Sprintf("scenario.particles[%d]", i))
		if err != nil {
			return nil, err
		}
		particles = append(particles, p)
	}
	return particles, nil
}

func compileParticle(v cue.Value, field string) (scenario.Particle, error) {
	var p scenario.Particle

	if err := checkFields(v, field, particleFields); err != nil {
		return p, err
	}

	tv := v.LookupPath(cue.ParsePath("traits"))
	if !tv.Exists() {
		return p, &CompileError{Field: field + ".traits", Message: "traits is required", Pos: v.Pos()}
	}
	iter, err := tv.List()
	if err != nil {
		return p, &CompileError{Field: field + ".traits", Message: "traits must be a list of strings", Pos: tv.Pos()}
	}
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return p, &CompileError{
				Field:   field + ".traits",
				Message: "traits must be a list of strings",
				Pos:     iter.Value().Pos(),
			}
		}
		p.Traits = append(p.Traits, name)
	}

	site, _, err := intField(v, "site", true)
	if err != nil {
		return p, err
	}
	p.Site = int(site)

	sv := v.LookupPath(cue.ParsePath("state"))
	if sv.Exists() {
		if p.State, err = compileState(sv, field+".state"); err != nil {
			return p, err
		}
	}
	return p, nil
}

// compileState decodes the per-trait override bags: a struct of structs of
// scalars.
func compileState(v cue.Value, field string) (map[string]map[string]any, error) {
	traits, err := v.Fields()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "state must be a struct keyed by trait name", Pos: v.Pos()}
	}

	state := make(map[string]map[string]any)
	for traits.Next() {
		traitName := traits.Label()
		keys, err := traits.Value().Fields()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.%s", field, traitName),
				Message: "trait state must be a struct of scalar values",
				Pos:     traits.Value().Pos(),
			}
		}
		bag := make(map[string]any)
		for keys.Next() {
			val, err := scalarValue(keys.Value())
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("%s.%s.%s", field, traitName, keys.Label()),
					Message: err.Error(),
					Pos:     keys.Value().Pos(),
				}
			}
			bag[keys.Label()] = val
		}
		state[traitName] = bag
	}
	return state, nil
}

// scalarValue decodes one bag value: string, bool, int or float.
func scalarValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	default:
		return nil, fmt.Errorf("unsupported state value kind %s (want string, bool or number)", v.Kind())
	}
}

// checkFields rejects labels outside the known set.
func checkFields(v cue.Value, field string, known map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		label := iter.Label()
		if !known[label] {
			return &CompileError{
				Field:   fmt.Sprintf("%s.%s", field, label),
				Message: fmt.Sprintf("unknown field %q", label),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func strField(v cue.Value, name string, required bool) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		if required {
			return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: name + " must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func intField(v cue.Value, name string, required bool) (int64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		if required {
			return 0, false, &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
		}
		return 0, false, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, &CompileError{Field: name, Message: name + " must be an integer", Pos: fv.Pos()}
	}
	return n, true, nil
}

func numField(v cue.Value, name string, required bool) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		if required {
			return 0, &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
		}
		return 0, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, &CompileError{Field: name, Message: name + " must be a number", Pos: fv.Pos()}
	}
	return f, nil
}

// CompileError is a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE evaluation errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
