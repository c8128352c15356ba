package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-drill/internal/app"
	"github.com/p-n-ai/pai-drill/internal/content"
	"github.com/p-n-ai/pai-drill/internal/contentcache"
	"github.com/p-n-ai/pai-drill/internal/live"
	"github.com/p-n-ai/pai-drill/internal/platform/config"
	"github.com/p-n-ai/pai-drill/internal/platform/logger"
	"github.com/p-n-ai/pai-drill/internal/progress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Log, os.Stdout)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	svc, err := app.Open(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	if cfg.Content.Preload {
		go func() {
			if err := svc.Preload(ctx); err != nil {
				slog.Warn("content preload incomplete", "error", err)
			}
		}()
	}

	hub := live.NewHub(live.Options{OriginPatterns: cfg.Server.AllowedOrigins})
	defer hub.Attach(svc.Stats)()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newMux(svc, hub),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newMux creates the HTTP router.
func newMux(svc *app.Services, hub *live.Hub) *http.ServeMux {
	h := &handlers{svc: svc}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.HandleFunc("GET /v1/content/kana", h.kana)
	mux.HandleFunc("GET /v1/content/{domain}", h.cached)
	mux.HandleFunc("GET /v1/content/{domain}/{level}", h.level)
	mux.HandleFunc("DELETE /v1/content/{domain}", h.clear)
	mux.HandleFunc("GET /v1/progress", h.progress)
	mux.Handle("GET /v1/live", hub)
	return mux
}

type handlers struct {
	svc *app.Services
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ready(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) kana(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Kana)
}

func (h *handlers) level(w http.ResponseWriter, r *http.Request) {
	domain, err := content.ParseDomain(r.PathValue("domain"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	level, err := content.ParseLevel(r.PathValue("level"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var items any
	switch domain {
	case content.DomainKanji:
		items, err = h.svc.Kanji.GetByLevel(r.Context(), level)
	case content.DomainVocabulary:
		items, err = h.svc.Vocab.GetByLevel(r.Context(), level)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("%s content has no levels", domain))
		return
	}

	switch {
	case errors.Is(err, contentcache.ErrFetch):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, contentcache.ErrUnknownLevel):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeJSON(w, http.StatusOK, items)
	}
}

func (h *handlers) cached(w http.ResponseWriter, r *http.Request) {
	domain, err := content.ParseDomain(r.PathValue("domain"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	counts := make(map[content.Level]int)
	switch domain {
	case content.DomainKanji:
		for level, items := range h.svc.Kanji.GetAllCached(r.Context()) {
			counts[level] = len(items)
		}
	case content.DomainVocabulary:
		for level, items := range h.svc.Vocab.GetAllCached(r.Context()) {
			counts[level] = len(items)
		}
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("%s content has no levels", domain))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain, "cached": counts})
}

func (h *handlers) clear(w http.ResponseWriter, r *http.Request) {
	domain, err := content.ParseDomain(r.PathValue("domain"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	switch domain {
	case content.DomainKanji:
		err = h.svc.Kanji.ClearCache(r.Context())
	case content.DomainVocabulary:
		err = h.svc.Vocab.ClearCache(r.Context())
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("%s content has no levels", domain))
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) progress(w http.ResponseWriter, r *http.Request) {
	learner := h.svc.Config.Progress.LearnerID
	totals, err := h.svc.Progress.Totals(r.Context(), learner)
	if err != nil && !errors.Is(err, progress.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	unlocks, err := h.svc.Progress.Unlocks(r.Context(), learner)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	timed := make(map[content.Domain]progress.TimedStats)
	for _, d := range content.Domains() {
		if c, err := h.svc.Tracker.Timed(d); err == nil {
			timed[d] = c.Snapshot()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"learner_id": learner,
		"totals":     totals,
		"unlocks":    unlocks,
		"timed":      timed,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
