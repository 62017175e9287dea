package schema

import (
	"sort"
	"strings"
)

// Match is one fuzzy search hit.
type Match struct {
	Key   string
	Score int
}

// subsequenceScore returns (penalty, ok). Lower penalty is better.
// Matching is a simple case-insensitive subsequence match; the penalty
// is the sum of matched character positions, so earlier, denser
// matches win.
func subsequenceScore(needle, haystack string) (int, bool) {
	needle = strings.ToLower(needle)
	haystack = strings.ToLower(haystack)
	if needle == "" {
		return 0, true
	}

	penalty := 0
	j := 0
	for i := 0; i < len(haystack) && j < len(needle); i++ {
		if haystack[i] == needle[j] {
			penalty += i
			j++
		}
	}
	if j != len(needle) {
		return 0, false
	}
	return penalty, true
}

const maxScore = 1000

// Search fuzzy-matches query against every resource key and display
// name. Results are ordered by descending score, ties broken by
// shorter key then lexicographic order, so output is deterministic.
func (r *Registry) Search(query string) []Match {
	var out []Match
	for key, res := range r.resources {
		best := -1
		for _, cand := range []string{key, res.DisplayName} {
			if p, ok := subsequenceScore(query, cand); ok {
				score := maxScore - p
				if score < 1 {
					score = 1
				}
				if score > best {
					best = score
				}
			}
		}
		if best >= 0 {
			out = append(out, Match{Key: key, Score: best})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if len(out[i].Key) != len(out[j].Key) {
			return len(out[i].Key) < len(out[j].Key)
		}
		return out[i].Key < out[j].Key
	})
	return out
}
