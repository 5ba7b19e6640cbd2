package application

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestionDistance bounds how far a typo may be from a known name
// before no suggestion is offered.
const maxSuggestionDistance = 3

// suggest returns the known name closest to name, or "" when none is close.
// Ties resolve to the alphabetically first candidate.
func suggest(name string, known []string) string {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)

	best, bestDist := "", maxSuggestionDistance+1
	for _, candidate := range sorted {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(candidate))
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// unknownNameError reports an unregistered name with a did-you-mean hint.
func unknownNameError(kind, name string, known []string) error {
	if s := suggest(name, known); s != "" {
		return fmt.Errorf("unknown %s %q (did you mean %q?)", kind, name, s)
	}
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)
	return fmt.Errorf("unknown %s %q (supported: %s)", kind, name, strings.Join(sorted, ", "))
}
