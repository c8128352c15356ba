package content

import (
	_ "embed"
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"
)

//go:embed data/kana.yaml
var kanaYAML []byte

// Kana is a single syllabary character.
type Kana struct {
	Char   string `json:"char"`
	Romaji string `json:"romaji"`
	Group  string `json:"group"`
	Script string `json:"script"`
}

// KanaGroup is a row of the kana table (e.g. the k-row of hiragana).
type KanaGroup struct {
	Name   string
	Script string
	Chars  []Kana
}

type kanaFile struct {
	Groups []struct {
		Name   string   `yaml:"name"`
		Script string   `yaml:"script"`
		Kana   []string `yaml:"kana"`
		Romaji []string `yaml:"romaji"`
	} `yaml:"groups"`
}

// LoadKanaGroups parses a kana table from YAML.
func LoadKanaGroups(data []byte) ([]KanaGroup, error) {
	var f kanaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode kana table: %w", err)
	}

	groups := make([]KanaGroup, 0, len(f.Groups))
	for _, g := range f.Groups {
		if len(g.Kana) != len(g.Romaji) {
			return nil, fmt.Errorf("%w: kana group %q has %d characters and %d readings",
				ErrInvalidRecord, g.Name, len(g.Kana), len(g.Romaji))
		}
		group := KanaGroup{Name: g.Name, Script: g.Script, Chars: make([]Kana, len(g.Kana))}
		for i := range g.Kana {
			group.Chars[i] = Kana{Char: g.Kana[i], Romaji: g.Romaji[i], Group: g.Name, Script: g.Script}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// DefaultKanaGroups returns the built-in hiragana and katakana table.
func DefaultKanaGroups() ([]KanaGroup, error) {
	return LoadKanaGroups(kanaYAML)
}

// FlattenKanaGroups returns the characters of the selected groups in table
// order. Out-of-range indices are ignored; no indices selects every group.
func FlattenKanaGroups(groups []KanaGroup, indices ...int) []Kana {
	if len(indices) == 0 {
		indices = make([]int, len(groups))
		for i := range groups {
			indices[i] = i
		}
	}
	var out []Kana
	for _, i := range indices {
		if i < 0 || i >= len(groups) {
			continue
		}
		out = append(out, groups[i].Chars...)
	}
	return out
}

// KanaAdapter drills kana → romaji.
//
// Comparison policy: the response is trimmed, width-folded and case-folded,
// then compared to the romaji reading. "SHI", " shi " and "ｓｈｉ" all match し.
type KanaAdapter struct {
	rnd *rand.Rand
}

// NewKanaAdapter returns a kana adapter. A nil rnd uses the global source.
func NewKanaAdapter(rnd *rand.Rand) *KanaAdapter {
	return &KanaAdapter{rnd: rnd}
}

func (a *KanaAdapter) Prompt(item Kana) string {
	return item.Char
}

func (a *KanaAdapter) CorrectAnswer(item Kana) string {
	return item.Romaji
}

func (a *KanaAdapter) Distractors(item Kana, pool []Kana, count int) []string {
	candidates := make([]string, 0, len(pool))
	for _, k := range pool {
		candidates = append(candidates, k.Romaji)
	}
	return sampleDistinct(a.rnd, candidates, item.Romaji, count)
}

func (a *KanaAdapter) IsCorrect(userAnswer string, item Kana) bool {
	return matchesAny(userAnswer, []string{item.Romaji})
}
