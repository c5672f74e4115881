package canon

import (
	"slices"
	"unicode/utf16"
)

// sortedKeys returns the object's keys ordered by UTF-16 code units, the
// ordering RFC 8785 specifies. UTF-8 byte order and UTF-16 code unit
// order diverge for characters outside the BMP (surrogate pairs sort
// before U+E000..U+FFFF in UTF-16 but after in UTF-8), so a plain
// sort.Strings is not enough.
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	default:
		return 0
	}
}
