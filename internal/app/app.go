// Package app wires configuration into the drill's long-lived services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-drill/internal/content"
	"github.com/p-n-ai/pai-drill/internal/contentcache"
	"github.com/p-n-ai/pai-drill/internal/difficulty"
	"github.com/p-n-ai/pai-drill/internal/events"
	"github.com/p-n-ai/pai-drill/internal/platform/cache"
	"github.com/p-n-ai/pai-drill/internal/platform/config"
	"github.com/p-n-ai/pai-drill/internal/platform/database"
	"github.com/p-n-ai/pai-drill/internal/progress"
)

// Services are the process-wide dependencies shared by the binaries.
type Services struct {
	Config *config.Config
	Logger *slog.Logger

	Kana  []content.KanaGroup
	Kanji *contentcache.Service[content.Kanji]
	Vocab *contentcache.Service[content.Word]

	Stats        *events.StatsBus
	Achievements *events.AchievementBus
	Progress     progress.Store
	Tracker      *progress.Tracker
	Evaluator    *progress.Evaluator

	DB    *database.DB
	Cache *cache.Cache

	detach []func()
}

// Open connects the configured backends and builds the services. Backends
// with an empty URL fall back to in-memory implementations.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{
		Config:       cfg,
		Logger:       logger,
		Stats:        events.NewStatsBus(logger),
		Achievements: events.NewAchievementBus(logger),
	}

	kana, err := content.DefaultKanaGroups()
	if err != nil {
		return nil, fmt.Errorf("loading kana table: %w", err)
	}
	s.Kana = kana

	if cfg.UsesPostgres() {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.DB = db
		store, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Progress = store
		logger.Info("progress store ready", "backend", "postgres")
	} else {
		s.Progress = progress.NewMemoryStore()
		logger.Info("progress store ready", "backend", "memory")
	}

	if cfg.UsesRedis() {
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Cache = c
	}

	source := NewSource(cfg.Content)
	s.Kanji, err = contentcache.New(contentcache.Config[content.Kanji]{
		Domain:  content.DomainKanji,
		Source:  source,
		Decode:  content.DecodeKanji,
		Session: sessionStore[content.Kanji](s.Cache, content.DomainKanji),
		Logger:  logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Vocab, err = contentcache.New(contentcache.Config[content.Word]{
		Domain:  content.DomainVocabulary,
		Source:  source,
		Decode:  content.DecodeVocabulary,
		Session: sessionStore[content.Word](s.Cache, content.DomainVocabulary),
		Logger:  logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Tracker, err = progress.NewTracker(progress.TrackerConfig{
		LearnerID:    cfg.Progress.LearnerID,
		Store:        s.Progress,
		Achievements: s.Achievements,
		Logger:       logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Evaluator, err = progress.NewEvaluator(progress.EvaluatorConfig{
		LearnerID: cfg.Progress.LearnerID,
		Store:     s.Progress,
		Bus:       s.Achievements,
		Logger:    logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.detach = append(s.detach, s.Tracker.Attach(s.Stats), s.Evaluator.Attach())

	return s, nil
}

// NewSource picks the HTTP source when a base URL is set, otherwise the
// directory source.
func NewSource(cfg config.ContentConfig) contentcache.Source {
	if cfg.BaseURL != "" {
		return contentcache.NewHTTPSource(cfg.BaseURL, contentcache.WithTimeout(cfg.FetchTimeout))
	}
	return contentcache.DirSource{Dir: cfg.Dir}
}

func sessionStore[T any](c *cache.Cache, domain content.Domain) contentcache.SessionStore[T] {
	if c == nil {
		return contentcache.NewMemorySessionStore[T]()
	}
	return contentcache.NewRedisSessionStore[T](c.Client, domain, c.SessionTTL)
}

// DifficultyOptions converts the configured difficulty parameters.
func (s *Services) DifficultyOptions() difficulty.Options {
	d := s.Config.Difficulty
	return difficulty.Options{
		MinOptions:       d.MinOptions,
		MaxOptions:       d.MaxOptions,
		StreakPerLevel:   d.StreakPerLevel,
		WrongsToDecrease: d.WrongsToDecrease,
	}
}

// Preload resolves every level of both levelled domains.
func (s *Services) Preload(ctx context.Context) error {
	return errors.Join(s.Kanji.PreloadAll(ctx), s.Vocab.PreloadAll(ctx))
}

// Ready checks the configured backends.
func (s *Services) Ready(ctx context.Context) error {
	if s.DB != nil {
		if err := s.DB.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.Cache != nil {
		if err := s.Cache.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Close detaches listeners and closes backend connections.
func (s *Services) Close() {
	for _, d := range s.detach {
		d()
	}
	s.detach = nil
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			s.Logger.Warn("closing cache", "error", err)
		}
		s.Cache = nil
	}
	if s.DB != nil {
		s.DB.Close()
		s.DB = nil
	}
}
