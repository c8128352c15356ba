package events_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/p-n-ai/pai-drill/internal/content"
	"github.com/p-n-ai/pai-drill/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatsBus_DeliversByType(t *testing.T) {
	bus := events.NewStatsBus(discardLogger())

	var correct, incorrect int
	bus.Subscribe(events.StatCorrect, func(events.StatEvent) error { correct++; return nil })
	bus.Subscribe(events.StatIncorrect, func(events.StatEvent) error { incorrect++; return nil })

	bus.RecordCorrect(content.DomainKana, "あ", nil)
	bus.RecordCorrect(content.DomainKana, "い", nil)
	bus.RecordIncorrect(content.DomainKana, "う", "o", "u", nil)
	bus.RecordSessionComplete(content.DomainKana, nil)

	if correct != 2 {
		t.Errorf("correct listener calls = %d, want 2", correct)
	}
	if incorrect != 1 {
		t.Errorf("incorrect listener calls = %d, want 1", incorrect)
	}
}

func TestStatsBus_RegistrationOrder(t *testing.T) {
	bus := events.NewStatsBus(discardLogger())

	var order []int
	for i := 0; i < 3; i++ {
		bus.Subscribe(events.StatCorrect, func(events.StatEvent) error {
			order = append(order, i)
			return nil
		})
	}

	bus.RecordCorrect(content.DomainKanji, "日", nil)

	want := []int{0, 1, 2}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestStatsBus_FailingListenerIsolated(t *testing.T) {
	tests := []struct {
		name     string
		listener events.StatListener
	}{
		{"returns error", func(events.StatEvent) error { return errors.New("store offline") }},
		{"panics", func(events.StatEvent) error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := events.NewStatsBus(discardLogger())
			called := false
			bus.Subscribe(events.StatCorrect, tt.listener)
			bus.Subscribe(events.StatCorrect, func(events.StatEvent) error {
				called = true
				return nil
			})

			bus.RecordCorrect(content.DomainVocabulary, "猫", nil)

			if !called {
				t.Error("second listener was not invoked after the first failed")
			}
		})
	}
}

func TestStatsBus_UnsubscribeIdempotent(t *testing.T) {
	bus := events.NewStatsBus(discardLogger())

	var a, b int
	unsubA := bus.Subscribe(events.StatCorrect, func(events.StatEvent) error { a++; return nil })
	bus.Subscribe(events.StatCorrect, func(events.StatEvent) error { b++; return nil })

	unsubA()
	unsubA()

	bus.RecordCorrect(content.DomainKana, "か", nil)

	if a != 0 {
		t.Errorf("unsubscribed listener called %d times", a)
	}
	if b != 1 {
		t.Errorf("remaining listener called %d times, want 1", b)
	}
	if n := bus.ListenerCount(events.StatCorrect); n != 1 {
		t.Errorf("ListenerCount() = %d, want 1", n)
	}
}

func TestStatsBus_MutationDuringEmit(t *testing.T) {
	bus := events.NewStatsBus(discardLogger())

	var lateCalls, removedCalls int
	var unsubRemoved func()
	bus.Subscribe(events.StatCorrect, func(events.StatEvent) error {
		bus.Subscribe(events.StatCorrect, func(events.StatEvent) error { lateCalls++; return nil })
		unsubRemoved()
		return nil
	})
	unsubRemoved = bus.Subscribe(events.StatCorrect, func(events.StatEvent) error { removedCalls++; return nil })

	bus.RecordCorrect(content.DomainKana, "さ", nil)

	if lateCalls != 0 {
		t.Errorf("listener added mid-emission was called %d times", lateCalls)
	}
	if removedCalls != 1 {
		t.Errorf("listener removed mid-emission called %d times, want 1 (snapshot)", removedCalls)
	}

	bus.RecordCorrect(content.DomainKana, "し", nil)
	if lateCalls != 1 {
		t.Errorf("late listener calls on next emission = %d, want 1", lateCalls)
	}
	if removedCalls != 1 {
		t.Errorf("removed listener calls on next emission = %d, want 1", removedCalls)
	}
}

func TestStatsBus_EmitWithoutListeners(t *testing.T) {
	bus := events.NewStatsBus(nil)
	bus.RecordSessionComplete(content.DomainKana, nil)
}

func TestAchievementBus_ReceivesAllTypes(t *testing.T) {
	bus := events.NewAchievementBus(discardLogger())
	rec := events.NewRecorder()
	rec.AttachAchievements(bus)

	bus.Subscribe(func(events.AchievementEvent) error { panic("evaluator bug") })

	bus.TriggerCheck()
	bus.RecordUnlock("first_correct")

	got := rec.Achievements()
	if len(got) != 2 {
		t.Fatalf("len(achievements) = %d, want 2", len(got))
	}
	if got[0].Type != events.AchievementCheck {
		t.Errorf("got[0].Type = %q, want check", got[0].Type)
	}
	if got[1].Type != events.AchievementUnlock || got[1].AchievementID != "first_correct" {
		t.Errorf("got[1] = %+v, want unlock first_correct", got[1])
	}
	if got[1].Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestAchievementBus_Unsubscribe(t *testing.T) {
	bus := events.NewAchievementBus(discardLogger())
	calls := 0
	unsub := bus.Subscribe(func(events.AchievementEvent) error { calls++; return nil })

	bus.TriggerCheck()
	unsub()
	unsub()
	bus.TriggerCheck()

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if bus.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", bus.ListenerCount())
	}
}

func TestRecorder_AttachStats(t *testing.T) {
	bus := events.NewStatsBus(discardLogger())
	rec := events.NewRecorder()
	unsub := rec.AttachStats(bus)

	bus.RecordCorrect(content.DomainKana, "た", nil)
	bus.RecordIncorrect(content.DomainKana, "ち", "ti", "chi", &events.StatMetadata{GameMode: "input"})
	bus.RecordSessionComplete(content.DomainKana, nil)
	unsub()
	bus.RecordCorrect(content.DomainKana, "つ", nil)

	got := rec.Stats()
	if len(got) != 3 {
		t.Fatalf("len(stats) = %d, want 3", len(got))
	}
	wrong := rec.StatsOfType(events.StatIncorrect)
	if len(wrong) != 1 || wrong[0].UserAnswer != "ti" || wrong[0].CorrectAnswer != "chi" {
		t.Errorf("incorrect events = %+v", wrong)
	}
}
