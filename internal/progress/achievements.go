package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-drill/internal/events"
)

// Rule unlocks an achievement once its condition holds for a learner's totals.
type Rule struct {
	ID        string
	Title     string
	Condition func(Totals) bool
}

// DefaultRules are the built-in achievements.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "first_correct", Title: "First Steps", Condition: func(t Totals) bool { return t.Correct >= 1 }},
		{ID: "hundred_correct", Title: "Centurion", Condition: func(t Totals) bool { return t.Correct >= 100 }},
		{ID: "streak_10", Title: "On a Roll", Condition: func(t Totals) bool { return t.BestStreak >= 10 }},
		{ID: "sessions_10", Title: "Dedicated", Condition: func(t Totals) bool { return t.Sessions >= 10 }},
	}
}

// EvaluatorConfig holds the dependencies of an Evaluator.
type EvaluatorConfig struct {
	LearnerID string
	Store     Store
	Bus       *events.AchievementBus
	// Rules defaults to DefaultRules().
	Rules  []Rule
	Now    func() time.Time
	Logger *slog.Logger
}

// Evaluator listens for achievement checks and unlocks each rule at most once.
type Evaluator struct {
	learnerID string
	store     Store
	bus       *events.AchievementBus
	rules     []Rule
	now       func() time.Time
	logger    *slog.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.LearnerID == "" {
		return nil, fmt.Errorf("learner ID is required")
	}
	if cfg.Store == nil || cfg.Bus == nil {
		return nil, fmt.Errorf("store and achievement bus are required")
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		learnerID: cfg.LearnerID,
		store:     cfg.Store,
		bus:       cfg.Bus,
		rules:     rules,
		now:       now,
		logger:    logger.With("component", "achievements", "learner_id", cfg.LearnerID),
	}, nil
}

// Attach subscribes the evaluator to the achievement bus.
func (e *Evaluator) Attach() (detach func()) {
	return e.bus.Subscribe(e.Handle)
}

// Handle evaluates the rules on a check event. Unlock events are ignored.
func (e *Evaluator) Handle(event events.AchievementEvent) error {
	if event.Type != events.AchievementCheck {
		return nil
	}
	_, err := e.Evaluate(context.Background())
	return err
}

// Evaluate unlocks every rule whose condition now holds and returns the IDs
// unlocked by this call. Each unlock is announced on the bus.
func (e *Evaluator) Evaluate(ctx context.Context) ([]string, error) {
	totals, err := e.store.Totals(ctx, e.learnerID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}

	var unlocked []string
	for _, r := range e.rules {
		if !r.Condition(totals) {
			continue
		}
		fresh, err := e.store.Unlock(ctx, e.learnerID, r.ID, e.now())
		if err != nil {
			return unlocked, fmt.Errorf("unlock %s: %w", r.ID, err)
		}
		if !fresh {
			continue
		}
		e.logger.Info("achievement unlocked", "achievement_id", r.ID)
		unlocked = append(unlocked, r.ID)
		e.bus.RecordUnlock(r.ID)
	}
	return unlocked, nil
}
