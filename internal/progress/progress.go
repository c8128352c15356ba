// Package progress consumes drill outcomes: it persists answers and session
// completions, keeps timed-mode counters and unlocks achievements.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/p-n-ai/pai-drill/internal/content"
)

// ErrNotFound is returned when a learner has no recorded progress.
var ErrNotFound = errors.New("progress not found")

// Answer is one evaluated response.
type Answer struct {
	LearnerID     string
	Domain        content.Domain
	Character     string
	Correct       bool
	UserAnswer    string
	CorrectAnswer string
	GameMode      string
	SessionID     string
	TimeTaken     time.Duration
	AnsweredAt    time.Time
}

// SessionRecord is one completed drill round.
type SessionRecord struct {
	LearnerID   string
	SessionID   string
	Domain      content.Domain
	GameMode    string
	CompletedAt time.Time
}

// Totals are a learner's all-time counters.
type Totals struct {
	Correct       int `json:"correct"`
	Wrong         int `json:"wrong"`
	Sessions      int `json:"sessions"`
	CurrentStreak int `json:"current_streak"`
	BestStreak    int `json:"best_streak"`
}

// Mastery is the per-character answer record.
type Mastery struct {
	Domain    content.Domain `json:"domain"`
	Character string         `json:"character"`
	Correct   int            `json:"correct"`
	Wrong     int            `json:"wrong"`
	LastSeen  time.Time      `json:"last_seen"`
}

// Accuracy is the share of correct answers in [0, 1].
func (m Mastery) Accuracy() float64 {
	total := m.Correct + m.Wrong
	if total == 0 {
		return 0
	}
	return float64(m.Correct) / float64(total)
}

// Unlock records when an achievement was earned.
type Unlock struct {
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// Store persists learner progress.
type Store interface {
	RecordAnswer(ctx context.Context, a Answer) error
	RecordSession(ctx context.Context, s SessionRecord) error
	Totals(ctx context.Context, learnerID string) (Totals, error)
	// Mastery lists per-character records; an empty domain lists all domains.
	Mastery(ctx context.Context, learnerID string, domain content.Domain) ([]Mastery, error)
	// Unlock records an achievement and reports whether it was new.
	Unlock(ctx context.Context, learnerID, achievementID string, at time.Time) (bool, error)
	Unlocks(ctx context.Context, learnerID string) ([]Unlock, error)
}
