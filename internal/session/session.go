// Package session runs a drill round over a fixed queue of content items.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-drill/internal/content"
	"github.com/p-n-ai/pai-drill/internal/difficulty"
	"github.com/p-n-ai/pai-drill/internal/events"
)

// ErrInvalidState is returned when an operation is not legal in the
// engine's current phase.
var ErrInvalidState = errors.New("invalid session state")

// Mode selects how questions are generated. It is fixed for a session.
type Mode string

const (
	// ModePick offers multiple choices; the difficulty controller sets how many.
	ModePick Mode = "pick"
	// ModeInput takes free text judged by the adapter.
	ModeInput Mode = "input"
)

// ParseMode accepts "pick" or "input".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePick, ModeInput:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown session mode %q", s)
}

// Phase is the engine's lifecycle position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Question is one step of a drill. Choices is empty in input mode.
type Question[T any] struct {
	Item          T
	Prompt        string
	CorrectAnswer string
	Choices       []string
}

// Result describes the evaluation of one answer.
type Result[T any] struct {
	Correct  bool
	Question Question[T]
	// Next is the following question, nil once the session is complete.
	Next     *Question[T]
	Complete bool
}

// State is a snapshot of session counters.
type State struct {
	QueueLength  int
	CurrentIndex int
	CorrectCount int
	WrongCount   int
	Streak       int
	IsComplete   bool
}

// Config holds the dependencies of an Engine.
type Config[T any] struct {
	Items   []T
	Domain  content.Domain
	Mode    Mode
	Adapter content.Adapter[T]
	Stats   events.StatPublisher

	// Difficulty configures the per-session controller (pick mode).
	Difficulty difficulty.Options
	// Pool supplies extra distractor candidates beyond Items.
	Pool []T
	// GameMode is reported in stat metadata (defaults to Mode).
	GameMode string
	Rand     *rand.Rand
	Now      func() time.Time
	Logger   *slog.Logger
}

// Engine drives a single drill round through Idle → Active → Complete.
// It never touches storage; outcomes leave only through the stats publisher.
// An Engine is owned by one goroutine and is not safe for concurrent use.
type Engine[T any] struct {
	id       string
	domain   content.Domain
	mode     Mode
	gameMode string
	adapter  content.Adapter[T]
	stats    events.StatPublisher
	ctrl     *difficulty.Controller
	queue    []T
	pool     []T
	rnd      *rand.Rand
	now      func() time.Time
	logger   *slog.Logger

	phase     Phase
	state     State
	current   *Question[T]
	presented time.Time
}

// New builds an engine. An empty item queue yields an engine that is already
// complete and has published its single session_complete event.
func New[T any](cfg Config[T]) (*Engine[T], error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if cfg.Stats == nil {
		return nil, fmt.Errorf("stats publisher is required")
	}
	if _, err := content.ParseDomain(string(cfg.Domain)); err != nil {
		return nil, err
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModePick
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	ctrl, err := difficulty.New(cfg.Difficulty)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gameMode := cfg.GameMode
	if gameMode == "" {
		gameMode = string(mode)
	}

	pool := make([]T, 0, len(cfg.Items)+len(cfg.Pool))
	pool = append(pool, cfg.Items...)
	pool = append(pool, cfg.Pool...)

	id := uuid.NewString()
	e := &Engine[T]{
		id:       id,
		domain:   cfg.Domain,
		mode:     mode,
		gameMode: gameMode,
		adapter:  cfg.Adapter,
		stats:    cfg.Stats,
		ctrl:     ctrl,
		queue:    append([]T(nil), cfg.Items...),
		pool:     pool,
		rnd:      cfg.Rand,
		now:      now,
		logger:   logger.With("component", "session", "session_id", id, "domain", cfg.Domain),
	}
	e.state.QueueLength = len(e.queue)

	if len(e.queue) == 0 {
		e.complete()
	}
	return e, nil
}

// ID identifies the session in stat metadata.
func (e *Engine[T]) ID() string {
	return e.id
}

// Mode returns the session's fixed generation mode.
func (e *Engine[T]) Mode() Mode {
	return e.mode
}

// Phase returns the lifecycle position.
func (e *Engine[T]) Phase() Phase {
	return e.phase
}

// State returns a snapshot of the counters.
func (e *Engine[T]) State() State {
	return e.state
}

// Difficulty returns the controller state and progress toward the next level.
func (e *Engine[T]) Difficulty() (difficulty.State, int) {
	return e.ctrl.State(), e.ctrl.LevelProgress()
}

// Current returns the question awaiting an answer.
func (e *Engine[T]) Current() (Question[T], bool) {
	if e.phase != PhaseActive || e.current == nil {
		return Question[T]{}, false
	}
	return *e.current, true
}

// Start moves Idle → Active and returns the first question.
func (e *Engine[T]) Start() (Question[T], error) {
	if e.phase != PhaseIdle {
		return Question[T]{}, fmt.Errorf("%w: start in %s phase", ErrInvalidState, e.phase)
	}
	e.phase = PhaseActive
	q := e.buildQuestion(e.queue[e.state.CurrentIndex])
	e.logger.Debug("session started", "items", len(e.queue), "mode", e.mode)
	return q, nil
}

// Answer evaluates a response to the current question, updates the counters
// and the difficulty controller, publishes one stat event, and advances.
// When the queue is exhausted a single session_complete event follows.
func (e *Engine[T]) Answer(userAnswer string) (Result[T], error) {
	if e.phase != PhaseActive || e.current == nil {
		return Result[T]{}, fmt.Errorf("%w: answer in %s phase", ErrInvalidState, e.phase)
	}
	q := *e.current
	correct := e.evaluate(userAnswer, q)

	meta := &events.StatMetadata{
		GameMode:  e.gameMode,
		TimeTaken: e.now().Sub(e.presented),
		SessionID: e.id,
	}
	if e.mode == ModePick {
		meta.OptionCount = len(q.Choices)
		meta.Difficulty = fmt.Sprintf("level-%d", e.ctrl.Level())
	}

	event := events.StatEvent{
		ContentType: e.domain,
		Character:   q.Prompt,
		Timestamp:   e.now(),
		Metadata:    meta,
	}
	if correct {
		e.state.CorrectCount++
		e.state.Streak++
		e.ctrl.RecordCorrect()
		event.Type = events.StatCorrect
	} else {
		e.state.WrongCount++
		e.state.Streak = 0
		e.ctrl.RecordWrong()
		event.Type = events.StatIncorrect
		event.UserAnswer = userAnswer
		event.CorrectAnswer = q.CorrectAnswer
	}
	e.stats.Emit(event)

	e.state.CurrentIndex++
	res := Result[T]{Correct: correct, Question: q}
	if e.state.CurrentIndex >= len(e.queue) {
		e.complete()
		res.Complete = true
		return res, nil
	}
	next := e.buildQuestion(e.queue[e.state.CurrentIndex])
	res.Next = &next
	return res, nil
}

// Reset discards progress and returns to Idle with the same queue and a
// fresh difficulty controller. An empty session completes again immediately.
func (e *Engine[T]) Reset() {
	e.ctrl.Reset()
	e.phase = PhaseIdle
	e.current = nil
	e.state = State{QueueLength: len(e.queue)}
	if len(e.queue) == 0 {
		e.complete()
	}
}

func (e *Engine[T]) evaluate(userAnswer string, q Question[T]) bool {
	if e.mode == ModePick && userAnswer == q.CorrectAnswer {
		return true
	}
	return e.adapter.IsCorrect(userAnswer, q.Item)
}

func (e *Engine[T]) buildQuestion(item T) Question[T] {
	q := Question[T]{
		Item:          item,
		Prompt:        e.adapter.Prompt(item),
		CorrectAnswer: e.adapter.CorrectAnswer(item),
	}
	if e.mode == ModePick {
		distractors := e.adapter.Distractors(item, e.pool, e.ctrl.OptionCount()-1)
		choices := make([]string, 0, len(distractors)+1)
		choices = append(choices, q.CorrectAnswer)
		choices = append(choices, distractors...)
		content.Shuffle(e.rnd, choices)
		q.Choices = choices
	}
	e.current = &q
	e.presented = e.now()
	return q
}

func (e *Engine[T]) complete() {
	e.phase = PhaseComplete
	e.current = nil
	e.state.IsComplete = true
	e.stats.Emit(events.StatEvent{
		Type:        events.StatSessionComplete,
		ContentType: e.domain,
		Timestamp:   e.now(),
		Metadata: &events.StatMetadata{
			GameMode:  e.gameMode,
			SessionID: e.id,
		},
	})
	e.logger.Debug("session complete",
		"correct", e.state.CorrectCount,
		"wrong", e.state.WrongCount,
	)
}
