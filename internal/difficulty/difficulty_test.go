package difficulty_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/p-n-ai/pai-drill/internal/difficulty"
)

func newController(t *testing.T, opts difficulty.Options) *difficulty.Controller {
	t.Helper()
	c, err := difficulty.New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Defaults(t *testing.T) {
	c := newController(t, difficulty.Options{})

	got := c.Options()
	want := difficulty.Options{MinOptions: 3, MaxOptions: 6, StreakPerLevel: 3, WrongsToDecrease: 2}
	if got != want {
		t.Errorf("Options() = %+v, want %+v", got, want)
	}
	if c.OptionCount() != 3 {
		t.Errorf("OptionCount() = %d, want 3", c.OptionCount())
	}
	if c.MaxLevel() != 3 {
		t.Errorf("MaxLevel() = %d, want 3", c.MaxLevel())
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts difficulty.Options
	}{
		{"max below min", difficulty.Options{MinOptions: 5, MaxOptions: 4}},
		{"single choice", difficulty.Options{MinOptions: 1, MaxOptions: 4}},
		{"negative streak", difficulty.Options{StreakPerLevel: -1}},
		{"negative wrongs", difficulty.Options{WrongsToDecrease: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := difficulty.New(tt.opts)
			if !errors.Is(err, difficulty.ErrInvalidOptions) {
				t.Errorf("New() error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestRecordCorrect_AdvancesAfterStreak(t *testing.T) {
	c := newController(t, difficulty.Options{})

	for level := 0; level < 3; level++ {
		for i := 0; i < 2; i++ {
			c.RecordCorrect()
			if c.OptionCount() != 3+level {
				t.Fatalf("after %d correct at level %d: OptionCount() = %d, want %d", i+1, level, c.OptionCount(), 3+level)
			}
		}
		c.RecordCorrect()
		if c.OptionCount() != 4+level {
			t.Fatalf("after streak at level %d: OptionCount() = %d, want %d", level, c.OptionCount(), 4+level)
		}
		if c.State().LevelStreak != 0 {
			t.Errorf("LevelStreak = %d, want 0 after advancing", c.State().LevelStreak)
		}
	}

	// At max, further streaks have no effect.
	for i := 0; i < 9; i++ {
		c.RecordCorrect()
	}
	if c.OptionCount() != 6 {
		t.Errorf("OptionCount() = %d, want 6 at max", c.OptionCount())
	}
	if c.Level() != 3 {
		t.Errorf("Level() = %d, want 3", c.Level())
	}
}

func TestRecordWrong_DefersChange(t *testing.T) {
	c := newController(t, difficulty.Options{})
	for i := 0; i < 3; i++ {
		c.RecordCorrect()
	}

	c.RecordWrong()
	c.RecordWrong()

	st := c.State()
	if st.OptionCount != 4 {
		t.Errorf("OptionCount = %d, want 4 (wrong answers apply on next correct)", st.OptionCount)
	}
	if st.PendingWrongs != 2 || st.WrongStreak != 2 || st.LevelStreak != 0 {
		t.Errorf("State = %+v, want PendingWrongs=2 WrongStreak=2 LevelStreak=0", st)
	}
}

func TestRecordCorrect_RegressionBeforeAdvance(t *testing.T) {
	c := newController(t, difficulty.Options{MinOptions: 3, MaxOptions: 6, StreakPerLevel: 3})

	for i := 0; i < 3; i++ {
		c.RecordCorrect()
	}
	if c.OptionCount() != 4 {
		t.Fatalf("OptionCount() = %d, want 4", c.OptionCount())
	}

	c.RecordWrong()
	c.RecordWrong()
	if c.State().PendingWrongs != 2 {
		t.Fatalf("PendingWrongs = %d, want 2", c.State().PendingWrongs)
	}

	c.RecordCorrect()

	want := difficulty.State{OptionCount: 3, Level: 0}
	if got := c.State(); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
}

func TestRecordCorrect_ExcessWrongsRegressOnce(t *testing.T) {
	c := newController(t, difficulty.Options{})
	for i := 0; i < 6; i++ {
		c.RecordCorrect()
	}
	if c.Level() != 2 {
		t.Fatalf("Level() = %d, want 2", c.Level())
	}

	for i := 0; i < 5; i++ {
		c.RecordWrong()
	}
	c.RecordCorrect()

	want := difficulty.State{OptionCount: 4, Level: 1}
	if got := c.State(); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
}

func TestRecordCorrect_PendingWrongsAtFloor(t *testing.T) {
	c := newController(t, difficulty.Options{})
	c.RecordWrong()
	c.RecordWrong()

	c.RecordCorrect()

	want := difficulty.State{OptionCount: 3, LevelStreak: 1}
	if got := c.State(); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}
}

func TestReset_MatchesFresh(t *testing.T) {
	opts := difficulty.Options{MinOptions: 2, MaxOptions: 5, StreakPerLevel: 2, WrongsToDecrease: 3}
	c := newController(t, opts)
	fresh := newController(t, opts)

	for i := 0; i < 7; i++ {
		c.RecordCorrect()
	}
	c.RecordWrong()
	c.Reset()

	if c.State() != fresh.State() {
		t.Errorf("State() after Reset = %+v, want %+v", c.State(), fresh.State())
	}
}

func TestLevelProgress(t *testing.T) {
	c := newController(t, difficulty.Options{})

	want := []int{33, 67, 0}
	for i, w := range want {
		c.RecordCorrect()
		if got := c.LevelProgress(); got != w {
			t.Errorf("after %d correct: LevelProgress() = %d, want %d", i+1, got, w)
		}
	}
}

func TestOptionCount_StaysInBounds(t *testing.T) {
	opts := difficulty.Options{MinOptions: 3, MaxOptions: 6}
	c := newController(t, opts)
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		if rnd.Intn(3) == 0 {
			c.RecordWrong()
		} else {
			c.RecordCorrect()
		}
		st := c.State()
		if st.OptionCount < 3 || st.OptionCount > 6 {
			t.Fatalf("step %d: OptionCount = %d out of [3,6]", i, st.OptionCount)
		}
		if st.OptionCount != 3+st.Level {
			t.Fatalf("step %d: OptionCount %d != MinOptions + Level %d", i, st.OptionCount, st.Level)
		}
	}
}
