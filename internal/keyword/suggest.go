package keyword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestThreshold is the minimum Jaro-Winkler score for a candidate name to
// be offered as a suggestion.
const suggestThreshold = 0.80

// Suggest returns the known name most similar to input, or "" when no
// candidate scores at least the suggestion threshold. Comparison is
// case-insensitive.
func Suggest(input string, known []string) string {
	in := strings.ToLower(input)

	best := ""
	bestScore := suggestThreshold
	for _, name := range known {
		score := matchr.JaroWinkler(in, strings.ToLower(name), false)
		if score >= bestScore {
			best = name
			bestScore = score
		}
	}
	return best
}
