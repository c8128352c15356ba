package content

import (
	"math/rand"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// normalize folds an answer for comparison: NFKC, full-width Latin to ASCII,
// half-width katakana to full-width, case folding and collapsed whitespace.
func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = width.Fold.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// sampleDistinct picks up to count candidates at random whose normalized form
// differs from correct and from each other.
func sampleDistinct(rnd *rand.Rand, candidates []string, correct string, count int) []string {
	if count <= 0 {
		return nil
	}
	seen := map[string]struct{}{normalize(correct): {}}
	eligible := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := normalize(c)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		eligible = append(eligible, c)
	}

	shuffle(rnd, len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if len(eligible) > count {
		eligible = eligible[:count]
	}
	return eligible
}

func shuffle(rnd *rand.Rand, n int, swap func(i, j int)) {
	if rnd == nil {
		rand.Shuffle(n, swap)
		return
	}
	rnd.Shuffle(n, swap)
}

// Shuffle reorders choices in place using rnd, or the global source when rnd is nil.
func Shuffle(rnd *rand.Rand, choices []string) {
	shuffle(rnd, len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
}

func matchesAny(answer string, accepted ...[]string) bool {
	got := normalize(answer)
	if got == "" {
		return false
	}
	for _, list := range accepted {
		for _, a := range list {
			if normalize(a) == got {
				return true
			}
		}
	}
	return false
}
