package settings

import (
	"regexp"
	"slices"
	"strconv"
)

var isDigits = regexp.MustCompile(`^\d+$`)

// NormalizeNumericKeys rewrites, in place, every nested object whose keys
// are all non-negative integers into a slice of its values ordered by key.
// An empty nested object becomes an empty slice. Argument parsers flatten array-like flags such as --list.0=a into such
// objects. The top-level map itself is never converted.
func NormalizeNumericKeys(m map[string]any) {
	for key, value := range m {
		m[key] = normalizeValue(value)
	}
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if seq, ok := numericSequence(v); ok {
			return seq
		}
		NormalizeNumericKeys(v)
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeValue(item)
		}
		return v
	default:
		return value
	}
}

func numericSequence(m map[string]any) ([]any, bool) {
	type entry struct {
		n   int
		key string
	}
	entries := make([]entry, 0, len(m))
	for key := range m {
		if !isDigits.MatchString(key) {
			return nil, false
		}
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		entries = append(entries, entry{n: n, key: key})
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.n - b.n })
	seq := make([]any, 0, len(entries))
	for _, e := range entries {
		seq = append(seq, normalizeValue(m[e.key]))
	}
	return seq, true
}
