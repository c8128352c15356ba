// Package events decouples drill sessions from whatever consumes their
// outcomes. It provides two synchronous publish/subscribe buses: one for
// answer statistics and one for achievement evaluation.
package events

import (
	"time"

	"github.com/p-n-ai/pai-drill/internal/content"
)

// StatType discriminates stat events.
type StatType string

const (
	StatCorrect         StatType = "correct"
	StatIncorrect       StatType = "incorrect"
	StatSessionComplete StatType = "session_complete"
)

// StatTypes lists every stat type in a stable order.
func StatTypes() []StatType {
	return []StatType{StatCorrect, StatIncorrect, StatSessionComplete}
}

// StatMetadata carries optional context about an answer.
type StatMetadata struct {
	GameMode    string        `json:"game_mode,omitempty"`
	Difficulty  string        `json:"difficulty,omitempty"`
	TimeTaken   time.Duration `json:"time_taken,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	OptionCount int           `json:"option_count,omitempty"`
}

// StatEvent reports a single answer or the end of a session.
// Character is empty for session_complete events.
type StatEvent struct {
	Type          StatType       `json:"type"`
	ContentType   content.Domain `json:"content_type"`
	Character     string         `json:"character"`
	UserAnswer    string         `json:"user_answer,omitempty"`
	CorrectAnswer string         `json:"correct_answer,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      *StatMetadata  `json:"metadata,omitempty"`
}

// AchievementType discriminates achievement events.
type AchievementType string

const (
	AchievementCheck  AchievementType = "check"
	AchievementUnlock AchievementType = "unlock"
)

// AchievementEvent asks evaluators to re-check progress or announces an unlock.
type AchievementEvent struct {
	Type          AchievementType `json:"type"`
	AchievementID string          `json:"achievement_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// StatListener receives stat events. A returned error is logged by the bus
// and never reaches the publisher.
type StatListener func(StatEvent) error

// AchievementListener receives achievement events.
type AchievementListener func(AchievementEvent) error

// StatPublisher is the narrow view of the stats bus that producers depend on.
type StatPublisher interface {
	Emit(event StatEvent)
}
