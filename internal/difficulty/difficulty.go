// Package difficulty tunes the number of answer choices in pick drills from
// a stream of correct and wrong answers.
package difficulty

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultMinOptions       = 3
	DefaultMaxOptions       = 6
	DefaultStreakPerLevel   = 3
	DefaultWrongsToDecrease = 2
)

// ErrInvalidOptions is returned when controller options are inconsistent.
var ErrInvalidOptions = errors.New("invalid difficulty options")

// Options parameterizes a Controller. Zero fields take the defaults.
type Options struct {
	MinOptions       int // fewest choices shown (default 3)
	MaxOptions       int // most choices shown (default 6)
	StreakPerLevel   int // consecutive correct answers to advance one level (default 3)
	WrongsToDecrease int // pending wrong answers to regress one level (default 2)
}

func (o Options) withDefaults() Options {
	if o.MinOptions == 0 {
		o.MinOptions = DefaultMinOptions
	}
	if o.MaxOptions == 0 {
		o.MaxOptions = max(DefaultMaxOptions, o.MinOptions)
	}
	if o.StreakPerLevel == 0 {
		o.StreakPerLevel = DefaultStreakPerLevel
	}
	if o.WrongsToDecrease == 0 {
		o.WrongsToDecrease = DefaultWrongsToDecrease
	}
	return o
}

// Validate reports whether the options (after defaults) describe a usable controller.
func (o Options) Validate() error {
	o = o.withDefaults()
	switch {
	case o.MinOptions < 2:
		return fmt.Errorf("%w: min options %d, need at least 2", ErrInvalidOptions, o.MinOptions)
	case o.MaxOptions < o.MinOptions:
		return fmt.Errorf("%w: max options %d below min options %d", ErrInvalidOptions, o.MaxOptions, o.MinOptions)
	case o.StreakPerLevel < 1:
		return fmt.Errorf("%w: streak per level %d", ErrInvalidOptions, o.StreakPerLevel)
	case o.WrongsToDecrease < 1:
		return fmt.Errorf("%w: wrongs to decrease %d", ErrInvalidOptions, o.WrongsToDecrease)
	}
	return nil
}

// State is a snapshot of the controller.
// OptionCount always equals MinOptions + Level.
type State struct {
	OptionCount   int
	Level         int
	LevelStreak   int
	WrongStreak   int
	PendingWrongs int
}

// Controller is a deterministic state machine over State. It is owned by a
// single session and is not safe for concurrent use.
type Controller struct {
	opts  Options
	state State
}

// New returns a controller at the easiest level.
func New(opts Options) (*Controller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{opts: opts.withDefaults()}
	c.Reset()
	return c, nil
}

// Options returns the effective options.
func (c *Controller) Options() Options {
	return c.opts
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return c.state
}

// OptionCount is the number of choices the next question should offer.
func (c *Controller) OptionCount() int {
	return c.state.OptionCount
}

// Level is the current difficulty level, 0 being easiest.
func (c *Controller) Level() int {
	return c.state.Level
}

// MaxLevel is the highest reachable level.
func (c *Controller) MaxLevel() int {
	return c.opts.MaxOptions - c.opts.MinOptions
}

// LevelProgress is the share of the current streak toward the next level, 0-100.
func (c *Controller) LevelProgress() int {
	return int(math.Round(float64(c.state.LevelStreak) / float64(c.opts.StreakPerLevel) * 100))
}

// RecordWrong notes a wrong answer. The option count is left alone so the
// question on screen keeps its choices; the regression is applied on the
// next correct answer.
func (c *Controller) RecordWrong() {
	c.state.LevelStreak = 0
	c.state.WrongStreak++
	c.state.PendingWrongs++
}

// RecordCorrect notes a correct answer. Pending wrongs are paid down before
// any progress counts: once enough have accumulated the controller regresses
// one level and clears every counter, however many wrongs were pending.
func (c *Controller) RecordCorrect() {
	if c.state.PendingWrongs >= c.opts.WrongsToDecrease && c.state.Level > 0 {
		c.setLevel(c.state.Level - 1)
		return
	}

	streak := c.state.LevelStreak + 1
	if streak >= c.opts.StreakPerLevel && c.state.Level < c.MaxLevel() {
		c.setLevel(c.state.Level + 1)
		return
	}

	c.state.LevelStreak = streak
	c.state.WrongStreak = 0
	c.state.PendingWrongs = 0
}

// Reset returns the controller to its initial state.
func (c *Controller) Reset() {
	c.setLevel(0)
}

func (c *Controller) setLevel(level int) {
	level = min(max(level, 0), c.MaxLevel())
	c.state = State{
		OptionCount: c.opts.MinOptions + level,
		Level:       level,
	}
}
