package query

import (
	"errors"
	"strings"
)

// Compile converts the filter to parameterized SQL selecting the
// canonical event columns. The query always ends with ORDER BY seq ASC,
// so results arrive in commit order regardless of the filter.
//
// Returns the SQL text and its bind arguments. A filter that fails
// validation does not compile; all violations are joined into the error.
func (f Filter) Compile() (string, []any, error) {
	if errs := f.Validate(); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return "", nil, errors.Join(joined...)
	}

	var b strings.Builder
	b.WriteString("SELECT seq, tick, time, particle, site_from, site_to, kind FROM events WHERE run_id = ?")
	args := []any{f.Run}

	if f.Particle > 0 {
		b.WriteString(" AND particle = ?")
		args = append(args, f.Particle)
	}

	if len(f.Kinds) > 0 {
		b.WriteString(" AND kind IN (")
		for i, kind := range f.Kinds {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, kind)
		}
		b.WriteString(")")
	}

	if f.FromTick >= 0 {
		b.WriteString(" AND tick >= ?")
		args = append(args, f.FromTick)
	}

	if f.ToTick >= 0 {
		b.WriteString(" AND tick <= ?")
		args = append(args, f.ToTick)
	}

	b.WriteString(" ORDER BY seq ASC")

	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	return b.String(), args, nil
}
