package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-drill/internal/content"
)

// registry is an ordered listener list shared by both buses. Emission walks a
// snapshot, so subscribing or unsubscribing from inside a listener only
// affects later emissions.
type registry[E any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []entry[E]
}

type entry[E any] struct {
	id uint64
	fn func(E) error
}

func (r *registry[E]) add(fn func(E) error) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, entry[E]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *registry[E]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.listeners {
		if e.id == id {
			// Copy instead of shifting in place; a snapshot may alias the old array.
			next := make([]entry[E], 0, len(r.listeners)-1)
			next = append(next, r.listeners[:i]...)
			r.listeners = append(next, r.listeners[i+1:]...)
			return
		}
	}
}

func (r *registry[E]) snapshot() []entry[E] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listeners[:len(r.listeners):len(r.listeners)]
}

func (r *registry[E]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// dispatch invokes every listener in order, isolating errors and panics.
func dispatch[E any](logger *slog.Logger, listeners []entry[E], event E, attrs ...any) {
	for i, l := range listeners {
		if err := invoke(l.fn, event); err != nil {
			logger.Error("event listener failed",
				append([]any{"error", err, "listener_index", i}, attrs...)...,
			)
		}
	}
}

func invoke[E any](fn func(E) error, event E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(event)
}

// StatsBus routes stat events to listeners registered for their type.
type StatsBus struct {
	mu     sync.RWMutex
	byType map[StatType]*registry[StatEvent]
	logger *slog.Logger
	now    func() time.Time
}

// NewStatsBus creates an empty stats bus. A nil logger uses slog.Default().
func NewStatsBus(logger *slog.Logger) *StatsBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsBus{
		byType: make(map[StatType]*registry[StatEvent]),
		logger: logger.With("component", "stats_bus"),
		now:    time.Now,
	}
}

// Subscribe registers listener for events of the given type and returns a
// function that removes it. The returned function is idempotent.
func (b *StatsBus) Subscribe(eventType StatType, listener StatListener) (unsubscribe func()) {
	b.mu.Lock()
	reg, ok := b.byType[eventType]
	if !ok {
		reg = &registry[StatEvent]{}
		b.byType[eventType] = reg
	}
	b.mu.Unlock()
	return reg.add(listener)
}

// Emit synchronously delivers event to the listeners registered for its type
// at the moment Emit is called.
func (b *StatsBus) Emit(event StatEvent) {
	b.mu.RLock()
	reg, ok := b.byType[event.Type]
	b.mu.RUnlock()
	if !ok {
		return
	}
	dispatch(b.logger, reg.snapshot(), event,
		"event_type", event.Type,
		"content_type", event.ContentType,
	)
}

// ListenerCount returns the number of listeners for eventType.
func (b *StatsBus) ListenerCount(eventType StatType) int {
	b.mu.RLock()
	reg, ok := b.byType[eventType]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return reg.len()
}

// RecordCorrect emits a correct-answer event stamped with the current time.
func (b *StatsBus) RecordCorrect(contentType content.Domain, character string, metadata *StatMetadata) {
	b.Emit(StatEvent{
		Type:        StatCorrect,
		ContentType: contentType,
		Character:   character,
		Timestamp:   b.now(),
		Metadata:    metadata,
	})
}

// RecordIncorrect emits a wrong-answer event stamped with the current time.
func (b *StatsBus) RecordIncorrect(contentType content.Domain, character, userAnswer, correctAnswer string, metadata *StatMetadata) {
	b.Emit(StatEvent{
		Type:          StatIncorrect,
		ContentType:   contentType,
		Character:     character,
		UserAnswer:    userAnswer,
		CorrectAnswer: correctAnswer,
		Timestamp:     b.now(),
		Metadata:      metadata,
	})
}

// RecordSessionComplete emits a session_complete event stamped with the current time.
func (b *StatsBus) RecordSessionComplete(contentType content.Domain, metadata *StatMetadata) {
	b.Emit(StatEvent{
		Type:        StatSessionComplete,
		ContentType: contentType,
		Timestamp:   b.now(),
		Metadata:    metadata,
	})
}

// AchievementBus delivers every achievement event to every listener.
type AchievementBus struct {
	reg    registry[AchievementEvent]
	logger *slog.Logger
	now    func() time.Time
}

// NewAchievementBus creates an empty achievement bus. A nil logger uses slog.Default().
func NewAchievementBus(logger *slog.Logger) *AchievementBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &AchievementBus{
		logger: logger.With("component", "achievement_bus"),
		now:    time.Now,
	}
}

// Subscribe registers listener and returns an idempotent unsubscribe function.
func (b *AchievementBus) Subscribe(listener AchievementListener) (unsubscribe func()) {
	return b.reg.add(listener)
}

// Emit synchronously delivers event to the current listeners.
func (b *AchievementBus) Emit(event AchievementEvent) {
	dispatch(b.logger, b.reg.snapshot(), event,
		"event_type", event.Type,
		"achievement_id", event.AchievementID,
	)
}

// ListenerCount returns the number of registered listeners.
func (b *AchievementBus) ListenerCount() int {
	return b.reg.len()
}

// TriggerCheck asks evaluators to re-check achievements.
func (b *AchievementBus) TriggerCheck() {
	b.Emit(AchievementEvent{Type: AchievementCheck, Timestamp: b.now()})
}

// RecordUnlock announces that achievementID was unlocked.
func (b *AchievementBus) RecordUnlock(achievementID string) {
	b.Emit(AchievementEvent{
		Type:          AchievementUnlock,
		AchievementID: achievementID,
		Timestamp:     b.now(),
	})
}
