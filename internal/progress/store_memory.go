package progress

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/p-n-ai/pai-drill/internal/content"
)

type masteryKey struct {
	domain    content.Domain
	character string
}

type learnerRecord struct {
	totals  Totals
	mastery map[masteryKey]*Mastery
	unlocks []Unlock
	answers []Answer
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	learners map[string]*learnerRecord
	mu       sync.RWMutex
}

// NewMemoryStore creates an empty in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{learners: make(map[string]*learnerRecord)}
}

func (s *MemoryStore) learner(id string) *learnerRecord {
	rec, ok := s.learners[id]
	if !ok {
		rec = &learnerRecord{mastery: make(map[masteryKey]*Mastery)}
		s.learners[id] = rec
	}
	return rec
}

func (s *MemoryStore) RecordAnswer(_ context.Context, a Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	rec := s.learner(a.LearnerID)
	rec.answers = append(rec.answers, a)

	key := masteryKey{a.Domain, a.Character}
	m, ok := rec.mastery[key]
	if !ok {
		m = &Mastery{Domain: a.Domain, Character: a.Character}
		rec.mastery[key] = m
	}
	m.LastSeen = a.AnsweredAt

	if a.Correct {
		m.Correct++
		rec.totals.Correct++
		rec.totals.CurrentStreak++
		rec.totals.BestStreak = max(rec.totals.BestStreak, rec.totals.CurrentStreak)
	} else {
		m.Wrong++
		rec.totals.Wrong++
		rec.totals.CurrentStreak = 0
	}
	return nil
}

func (s *MemoryStore) RecordSession(_ context.Context, sr SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learner(sr.LearnerID).totals.Sessions++
	return nil
}

func (s *MemoryStore) Totals(_ context.Context, learnerID string) (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.learners[learnerID]
	if !ok {
		return Totals{}, ErrNotFound
	}
	return rec.totals, nil
}

func (s *MemoryStore) Mastery(_ context.Context, learnerID string, domain content.Domain) ([]Mastery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.learners[learnerID]
	if !ok {
		return nil, nil
	}

	out := make([]Mastery, 0, len(rec.mastery))
	for _, m := range rec.mastery {
		if domain == "" || m.Domain == domain {
			out = append(out, *m)
		}
	}
	slices.SortFunc(out, func(a, b Mastery) int {
		return cmp.Or(cmp.Compare(a.Domain, b.Domain), cmp.Compare(a.Character, b.Character))
	})
	return out, nil
}

func (s *MemoryStore) Unlock(_ context.Context, learnerID, achievementID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.learner(learnerID)
	for _, u := range rec.unlocks {
		if u.AchievementID == achievementID {
			return false, nil
		}
	}
	rec.unlocks = append(rec.unlocks, Unlock{AchievementID: achievementID, UnlockedAt: at})
	return true, nil
}

func (s *MemoryStore) Unlocks(_ context.Context, learnerID string) ([]Unlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.learners[learnerID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(rec.unlocks), nil
}

// Answers returns every answer recorded for a learner, oldest first.
func (s *MemoryStore) Answers(learnerID string) []Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.learners[learnerID]
	if !ok {
		return nil
	}
	return slices.Clone(rec.answers)
}
