package content

import "math/rand"

// Word is a vocabulary entry.
type Word struct {
	Word     string   `json:"word"`
	Reading  string   `json:"reading"`
	Meanings []string `json:"meanings"`
}

// VocabAdapter drills word → meaning.
//
// Comparison policy: the canonical answer is the first meaning; any listed
// meaning (case- and width-folded) or the kana reading is accepted.
type VocabAdapter struct {
	rnd *rand.Rand
}

// NewVocabAdapter returns a vocabulary adapter. A nil rnd uses the global source.
func NewVocabAdapter(rnd *rand.Rand) *VocabAdapter {
	return &VocabAdapter{rnd: rnd}
}

func (a *VocabAdapter) Prompt(item Word) string {
	return item.Word
}

func (a *VocabAdapter) CorrectAnswer(item Word) string {
	if len(item.Meanings) == 0 {
		return ""
	}
	return item.Meanings[0]
}

func (a *VocabAdapter) Distractors(item Word, pool []Word, count int) []string {
	accepted := make(map[string]struct{}, len(item.Meanings))
	for _, m := range item.Meanings {
		accepted[normalize(m)] = struct{}{}
	}
	candidates := make([]string, 0, len(pool))
	for _, w := range pool {
		m := a.CorrectAnswer(w)
		if _, ok := accepted[normalize(m)]; ok {
			continue
		}
		candidates = append(candidates, m)
	}
	return sampleDistinct(a.rnd, candidates, a.CorrectAnswer(item), count)
}

func (a *VocabAdapter) IsCorrect(userAnswer string, item Word) bool {
	return matchesAny(userAnswer, item.Meanings, []string{item.Reading})
}
