package content

import "math/rand"

// Kanji is a logographic character with its readings and meanings.
type Kanji struct {
	ID       int      `json:"id"`
	Char     string   `json:"kanjiChar"`
	Onyomi   []string `json:"onyomi"`
	Kunyomi  []string `json:"kunyomi"`
	Meanings []string `json:"meanings"`
}

// KanjiAdapter drills kanji → meaning.
//
// Comparison policy: the canonical answer is the first meaning, but a response
// matching any listed meaning (case- and width-folded) or any on'yomi or
// kun'yomi reading (NFKC) is accepted.
type KanjiAdapter struct {
	rnd *rand.Rand
}

// NewKanjiAdapter returns a kanji adapter. A nil rnd uses the global source.
func NewKanjiAdapter(rnd *rand.Rand) *KanjiAdapter {
	return &KanjiAdapter{rnd: rnd}
}

func (a *KanjiAdapter) Prompt(item Kanji) string {
	return item.Char
}

func (a *KanjiAdapter) CorrectAnswer(item Kanji) string {
	if len(item.Meanings) == 0 {
		return ""
	}
	return item.Meanings[0]
}

// Distractors draws from the pool's canonical meanings. Meanings the item
// itself accepts are excluded so a distractor is never also right.
func (a *KanjiAdapter) Distractors(item Kanji, pool []Kanji, count int) []string {
	accepted := make(map[string]struct{}, len(item.Meanings))
	for _, m := range item.Meanings {
		accepted[normalize(m)] = struct{}{}
	}
	candidates := make([]string, 0, len(pool))
	for _, k := range pool {
		m := a.CorrectAnswer(k)
		if _, ok := accepted[normalize(m)]; ok {
			continue
		}
		candidates = append(candidates, m)
	}
	return sampleDistinct(a.rnd, candidates, a.CorrectAnswer(item), count)
}

func (a *KanjiAdapter) IsCorrect(userAnswer string, item Kanji) bool {
	return matchesAny(userAnswer, item.Meanings, item.Onyomi, item.Kunyomi)
}
