package events

import "sync"

// Recorder captures events in memory for tests.
type Recorder struct {
	mu           sync.Mutex
	stats        []StatEvent
	achievements []AchievementEvent
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// AttachStats subscribes the recorder to every stat type on bus.
func (r *Recorder) AttachStats(bus *StatsBus) (unsubscribe func()) {
	var unsubs []func()
	for _, t := range StatTypes() {
		unsubs = append(unsubs, bus.Subscribe(t, r.RecordStat))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// AttachAchievements subscribes the recorder to bus.
func (r *Recorder) AttachAchievements(bus *AchievementBus) (unsubscribe func()) {
	return bus.Subscribe(r.RecordAchievement)
}

func (r *Recorder) RecordStat(event StatEvent) error {
	r.mu.Lock()
	r.stats = append(r.stats, event)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) RecordAchievement(event AchievementEvent) error {
	r.mu.Lock()
	r.achievements = append(r.achievements, event)
	r.mu.Unlock()
	return nil
}

// Stats returns the captured stat events in delivery order.
func (r *Recorder) Stats() []StatEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatEvent{}, r.stats...)
}

// StatsOfType returns the captured stat events of the given type.
func (r *Recorder) StatsOfType(t StatType) []StatEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StatEvent
	for _, e := range r.stats {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Achievements returns the captured achievement events in delivery order.
func (r *Recorder) Achievements() []AchievementEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AchievementEvent{}, r.achievements...)
}
