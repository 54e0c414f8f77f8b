// Package envmatch finds field values in flat key/value data such as the
// process environment, honouring name prefixes, aliases, case sensitivity
// and nested-delimiter flattening.
package envmatch

import (
	"strings"
)

// Prefixes returns the prefix set of a node. When a nested delimiter is set
// and the node sits below the root, every combination of the alias tree
// levels is joined with the delimiter and followed by envPrefix. Otherwise
// the set holds envPrefix alone.
func Prefixes(tree [][]string, delimiter, envPrefix string) []string {
	if delimiter == "" || len(tree) == 0 {
		return []string{envPrefix}
	}
	combos := [][]string{nil}
	for _, level := range tree {
		if len(level) == 0 {
			continue
		}
		next := make([][]string, 0, len(combos)*len(level))
		for _, c := range combos {
			for _, a := range level {
				combo := make([]string, len(c), len(c)+1)
				copy(combo, c)
				next = append(next, append(combo, a))
			}
		}
		combos = next
	}
	out := make([]string, 0, len(combos))
	for _, c := range combos {
		if len(c) == 0 {
			out = append(out, envPrefix)
			continue
		}
		out = append(out, strings.Join(c, delimiter)+delimiter+envPrefix)
	}
	return out
}
