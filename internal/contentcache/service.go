// Package contentcache serves per-level content collections, fetching each
// level at most once at a time and keeping resolved levels in memory and in a
// session-scoped store.
package contentcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/p-n-ai/pai-drill/internal/content"
)

var (
	// ErrFetch marks a failed retrieval or decode of a level. Nothing is
	// cached for the level and a later call retries.
	ErrFetch = errors.New("content fetch failed")

	// ErrUnknownLevel is returned for a level the service does not serve.
	ErrUnknownLevel = content.ErrUnknownLevel
)

// Decoder turns one level's raw records into items.
type Decoder[T any] func(data []byte) ([]T, error)

// Config holds the dependencies of a Service.
type Config[T any] struct {
	Domain content.Domain
	Source Source
	Decode Decoder[T]

	// Session is consulted before the process-wide store. Nil uses a
	// MemorySessionStore.
	Session SessionStore[T]
	// Levels defaults to content.Levels().
	Levels []content.Level
	Logger *slog.Logger
}

// Service is the cache for one content domain. Construct one per domain and
// pass it to whoever needs the content.
type Service[T any] struct {
	domain  content.Domain
	source  Source
	decode  Decoder[T]
	session SessionStore[T]
	levels  []content.Level
	logger  *slog.Logger

	mu       sync.RWMutex
	resolved map[content.Level][]T

	inflight singleflight.Group
}

// New creates a cache service.
func New[T any](cfg Config[T]) (*Service[T], error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("content source is required")
	}
	if cfg.Decode == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if _, err := content.ParseDomain(string(cfg.Domain)); err != nil {
		return nil, err
	}

	levels := cfg.Levels
	if len(levels) == 0 {
		levels = content.Levels()
	}
	session := cfg.Session
	if session == nil {
		session = NewMemorySessionStore[T]()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service[T]{
		domain:   cfg.Domain,
		source:   cfg.Source,
		decode:   cfg.Decode,
		session:  session,
		levels:   slices.Clone(levels),
		logger:   logger.With("component", "contentcache", "domain", cfg.Domain),
		resolved: make(map[content.Level][]T),
	}, nil
}

// Domain returns the content domain this service caches.
func (s *Service[T]) Domain() content.Domain {
	return s.domain
}

// Levels returns the levels this service serves.
func (s *Service[T]) Levels() []content.Level {
	return slices.Clone(s.levels)
}

// GetByLevel returns the items of a level. Resolved levels come from the
// session store first, then the process-wide store. Otherwise concurrent
// callers share one fetch. The fetch does not observe ctx: a caller whose
// ctx ends stops waiting, but the fetch completes and populates the cache.
func (s *Service[T]) GetByLevel(ctx context.Context, level content.Level) ([]T, error) {
	if !s.serves(level) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	if items, ok := s.lookup(ctx, level); ok {
		return items, nil
	}

	ch := s.inflight.DoChan(string(level), func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), level)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("coalesced level fetch", "level", level)
		}
		return res.Val.([]T), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PreloadAll resolves every level concurrently. A failing level does not stop
// the others; the failures are joined in the returned error.
func (s *Service[T]) PreloadAll(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	for _, level := range s.levels {
		g.Go(func() error {
			if _, err := s.GetByLevel(ctx, level); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("level %s: %w", level, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("content preloaded", "levels", len(s.levels))
	return nil
}

// IsCached reports whether a level is resolved in either store.
func (s *Service[T]) IsCached(ctx context.Context, level content.Level) bool {
	_, ok := s.lookup(ctx, level)
	return ok
}

// GetAllCached returns every resolved level. Levels with no data are omitted.
// The process-wide store wins over the session store for the same level.
func (s *Service[T]) GetAllCached(ctx context.Context) map[content.Level][]T {
	out := make(map[content.Level][]T)
	for _, level := range s.levels {
		items, ok, err := s.session.Get(ctx, level)
		if err != nil {
			s.logger.Warn("session store read failed", "level", level, "error", err)
			continue
		}
		if ok {
			out[level] = items
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for level, items := range s.resolved {
		out[level] = items
	}
	return out
}

// ClearCache empties both stores. Fetches already in flight are unaffected
// and store their result when they finish.
func (s *Service[T]) ClearCache(ctx context.Context) error {
	s.mu.Lock()
	clear(s.resolved)
	s.mu.Unlock()

	if err := s.session.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session store: %w", err)
	}
	return nil
}

func (s *Service[T]) serves(level content.Level) bool {
	return slices.Contains(s.levels, level)
}

func (s *Service[T]) lookup(ctx context.Context, level content.Level) ([]T, bool) {
	items, ok, err := s.session.Get(ctx, level)
	switch {
	case err != nil:
		s.logger.Warn("session store read failed", "level", level, "error", err)
	case ok:
		return items, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok = s.resolved[level]
	return items, ok
}

func (s *Service[T]) fetch(ctx context.Context, level content.Level) ([]T, error) {
	data, err := s.source.Fetch(ctx, s.domain, level)
	if err != nil {
		s.logger.Error("level fetch failed", "level", level, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrFetch, s.domain, level, err)
	}
	items, err := s.decode(data)
	if err != nil {
		s.logger.Error("level decode failed", "level", level, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrFetch, s.domain, level, err)
	}

	s.mu.Lock()
	s.resolved[level] = items
	s.mu.Unlock()

	if err := s.session.Set(ctx, level, items); err != nil {
		s.logger.Warn("session store write failed", "level", level, "error", err)
	}
	s.logger.Info("level cached", "level", level, "items", len(items))
	return items, nil
}
