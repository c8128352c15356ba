// Package content defines the drillable content domains (kana, kanji,
// vocabulary), their proficiency levels, and the Adapter contract that makes
// them interchangeable for a drill session.
package content

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownDomain is returned when a domain tag is not recognised.
	ErrUnknownDomain = errors.New("unknown content domain")
	// ErrUnknownLevel is returned when a level identifier is not recognised.
	ErrUnknownLevel = errors.New("unknown content level")
	// ErrInvalidRecord is returned when raw level data fails validation.
	ErrInvalidRecord = errors.New("invalid content record")
)

// Domain tags a content domain.
type Domain string

const (
	DomainKana       Domain = "kana"
	DomainKanji      Domain = "kanji"
	DomainVocabulary Domain = "vocabulary"
)

// Domains lists every domain.
func Domains() []Domain {
	return []Domain{DomainKana, DomainKanji, DomainVocabulary}
}

// ParseDomain accepts a domain tag; "vocab" is accepted as shorthand.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kana":
		return DomainKana, nil
	case "kanji":
		return DomainKanji, nil
	case "vocabulary", "vocab":
		return DomainVocabulary, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

// Level is a JLPT-style proficiency tier used to partition kanji and
// vocabulary data.
type Level string

const (
	LevelN5 Level = "n5"
	LevelN4 Level = "n4"
	LevelN3 Level = "n3"
	LevelN2 Level = "n2"
	LevelN1 Level = "n1"
)

// Levels lists every level from easiest to hardest.
func Levels() []Level {
	return []Level{LevelN5, LevelN4, LevelN3, LevelN2, LevelN1}
}

// ParseLevel accepts a level identifier in either case.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return l, nil
}

// Valid reports whether l is one of Levels().
func (l Level) Valid() bool {
	switch l {
	case LevelN5, LevelN4, LevelN3, LevelN2, LevelN1:
		return true
	}
	return false
}

// Adapter turns items of one domain into questions. Implementations document
// their own answer comparison policy.
type Adapter[T any] interface {
	// Prompt renders what the learner is shown. It also identifies the item
	// in stat events.
	Prompt(item T) string
	// CorrectAnswer is the canonical answer text.
	CorrectAnswer(item T) string
	// Distractors returns up to count mutually distinct wrong answers drawn
	// from pool. It returns fewer when the pool runs short and never errors.
	Distractors(item T, pool []T, count int) []string
	// IsCorrect judges a learner response.
	IsCorrect(userAnswer string, item T) bool
}
