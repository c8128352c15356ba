package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-drill/internal/content"
	"github.com/p-n-ai/pai-drill/internal/events"
)

// Game modes whose answers also feed the timed counters.
const (
	GameModeBlitz    = "blitz"
	GameModeGauntlet = "gauntlet"
)

// IsTimedMode reports whether a game mode is timed.
func IsTimedMode(mode string) bool {
	return mode == GameModeBlitz || mode == GameModeGauntlet
}

// TimedStats are the in-memory counters of timed game modes for one domain.
type TimedStats struct {
	Correct    int `json:"correct"`
	Wrong      int `json:"wrong"`
	Streak     int `json:"streak"`
	BestStreak int `json:"best_streak"`
}

// TimedCounter is the timed-mode slot of one domain.
type TimedCounter struct {
	mu    *sync.Mutex
	stats *TimedStats
}

// Snapshot returns the current counters.
func (c TimedCounter) Snapshot() TimedStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.stats
}

// Reset zeroes the counters.
func (c TimedCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.stats = TimedStats{}
}

func (c TimedCounter) record(correct bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if correct {
		c.stats.Correct++
		c.stats.Streak++
		c.stats.BestStreak = max(c.stats.BestStreak, c.stats.Streak)
		return
	}
	c.stats.Wrong++
	c.stats.Streak = 0
}

// TrackerConfig holds the dependencies of a Tracker.
type TrackerConfig struct {
	LearnerID    string
	Store        Store
	Achievements *events.AchievementBus
	Logger       *slog.Logger
}

// Tracker persists stat events for one learner and asks for an achievement
// check after each of them.
type Tracker struct {
	learnerID    string
	store        Store
	achievements *events.AchievementBus
	logger       *slog.Logger

	mu    sync.Mutex
	timed map[content.Domain]*TimedStats
}

// NewTracker creates a tracker.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.LearnerID == "" {
		return nil, fmt.Errorf("learner ID is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("progress store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timed := make(map[content.Domain]*TimedStats, len(content.Domains()))
	for _, d := range content.Domains() {
		timed[d] = &TimedStats{}
	}
	return &Tracker{
		learnerID:    cfg.LearnerID,
		store:        cfg.Store,
		achievements: cfg.Achievements,
		logger:       logger.With("component", "progress", "learner_id", cfg.LearnerID),
		timed:        timed,
	}, nil
}

// Attach subscribes the tracker to every stat type.
func (t *Tracker) Attach(bus *events.StatsBus) (detach func()) {
	var unsubs []func()
	for _, st := range events.StatTypes() {
		unsubs = append(unsubs, bus.Subscribe(st, t.Handle))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Timed returns the timed-mode counter of a domain.
func (t *Tracker) Timed(domain content.Domain) (TimedCounter, error) {
	stats, ok := t.timed[domain]
	if !ok {
		return TimedCounter{}, fmt.Errorf("%w: %q", content.ErrUnknownDomain, domain)
	}
	return TimedCounter{mu: &t.mu, stats: stats}, nil
}

// Handle records one stat event. It is the tracker's bus listener.
func (t *Tracker) Handle(event events.StatEvent) error {
	ctx := context.Background()
	meta := event.Metadata
	if meta == nil {
		meta = &events.StatMetadata{}
	}

	var err error
	switch event.Type {
	case events.StatCorrect, events.StatIncorrect:
		correct := event.Type == events.StatCorrect
		err = t.store.RecordAnswer(ctx, Answer{
			LearnerID:     t.learnerID,
			Domain:        event.ContentType,
			Character:     event.Character,
			Correct:       correct,
			UserAnswer:    event.UserAnswer,
			CorrectAnswer: event.CorrectAnswer,
			GameMode:      meta.GameMode,
			SessionID:     meta.SessionID,
			TimeTaken:     meta.TimeTaken,
			AnsweredAt:    timestampOrNow(event.Timestamp),
		})
		if IsTimedMode(meta.GameMode) {
			if c, cerr := t.Timed(event.ContentType); cerr == nil {
				c.record(correct)
			}
		}
	case events.StatSessionComplete:
		err = t.store.RecordSession(ctx, SessionRecord{
			LearnerID:   t.learnerID,
			SessionID:   meta.SessionID,
			Domain:      event.ContentType,
			GameMode:    meta.GameMode,
			CompletedAt: timestampOrNow(event.Timestamp),
		})
	default:
		return fmt.Errorf("unknown stat type %q", event.Type)
	}

	if t.achievements != nil {
		t.achievements.TriggerCheck()
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", event.Type, err)
	}
	return nil
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
