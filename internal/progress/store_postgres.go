package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-drill/internal/content"
)

const dbTimeout = 5 * time.Second

var schema = []string{
	`CREATE TABLE IF NOT EXISTS drill_learners (
		learner_id     TEXT PRIMARY KEY,
		correct        INTEGER NOT NULL DEFAULT 0,
		wrong          INTEGER NOT NULL DEFAULT 0,
		sessions       INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0,
		best_streak    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS drill_answers (
		id             BIGSERIAL PRIMARY KEY,
		learner_id     TEXT NOT NULL,
		domain         TEXT NOT NULL,
		item           TEXT NOT NULL,
		correct        BOOLEAN NOT NULL,
		user_answer    TEXT,
		correct_answer TEXT,
		game_mode      TEXT,
		session_id     TEXT,
		time_taken_ms  BIGINT NOT NULL DEFAULT 0,
		answered_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS drill_answers_learner_idx ON drill_answers (learner_id, answered_at)`,
	`CREATE TABLE IF NOT EXISTS drill_mastery (
		learner_id TEXT NOT NULL,
		domain     TEXT NOT NULL,
		item       TEXT NOT NULL,
		correct    INTEGER NOT NULL DEFAULT 0,
		wrong      INTEGER NOT NULL DEFAULT 0,
		last_seen  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (learner_id, domain, item)
	)`,
	`CREATE TABLE IF NOT EXISTS drill_sessions (
		session_id   TEXT PRIMARY KEY,
		learner_id   TEXT NOT NULL,
		domain       TEXT NOT NULL,
		game_mode    TEXT,
		completed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS drill_unlocks (
		learner_id     TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		unlocked_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (learner_id, achievement_id)
	)`,
}

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the progress tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) RecordAnswer(ctx context.Context, a Answer) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if a.LearnerID == "" {
		return fmt.Errorf("learner_id is required")
	}
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	correct, wrong := 0, 1
	if a.Correct {
		correct, wrong = 1, 0
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO drill_answers
		   (learner_id, domain, item, correct, user_answer, correct_answer, game_mode, session_id, time_taken_ms, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.LearnerID,
		string(a.Domain),
		a.Character,
		a.Correct,
		nullIfEmpty(a.UserAnswer),
		nullIfEmpty(a.CorrectAnswer),
		nullIfEmpty(a.GameMode),
		nullIfEmpty(a.SessionID),
		a.TimeTaken.Milliseconds(),
		a.AnsweredAt,
	); err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO drill_mastery (learner_id, domain, item, correct, wrong, last_seen)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (learner_id, domain, item) DO UPDATE SET
		   correct = drill_mastery.correct + EXCLUDED.correct,
		   wrong = drill_mastery.wrong + EXCLUDED.wrong,
		   last_seen = GREATEST(drill_mastery.last_seen, EXCLUDED.last_seen)`,
		a.LearnerID, string(a.Domain), a.Character, correct, wrong, a.AnsweredAt,
	); err != nil {
		return fmt.Errorf("upsert mastery: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO drill_learners (learner_id, correct, wrong, current_streak, best_streak)
		 VALUES ($1, $2, $3, $2, $2)
		 ON CONFLICT (learner_id) DO UPDATE SET
		   correct = drill_learners.correct + EXCLUDED.correct,
		   wrong = drill_learners.wrong + EXCLUDED.wrong,
		   current_streak = CASE WHEN EXCLUDED.correct > 0 THEN drill_learners.current_streak + 1 ELSE 0 END,
		   best_streak = GREATEST(drill_learners.best_streak,
		     CASE WHEN EXCLUDED.correct > 0 THEN drill_learners.current_streak + 1 ELSE 0 END)`,
		a.LearnerID, correct, wrong,
	); err != nil {
		return fmt.Errorf("upsert learner totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit answer: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordSession(ctx context.Context, sr SessionRecord) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if sr.LearnerID == "" {
		return fmt.Errorf("learner_id is required")
	}
	if sr.CompletedAt.IsZero() {
		sr.CompletedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO drill_sessions (session_id, learner_id, domain, game_mode, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO NOTHING`,
		sr.SessionID, sr.LearnerID, string(sr.Domain), nullIfEmpty(sr.GameMode), sr.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO drill_learners (learner_id, sessions) VALUES ($1, 1)
		 ON CONFLICT (learner_id) DO UPDATE SET sessions = drill_learners.sessions + 1`,
		sr.LearnerID,
	); err != nil {
		return fmt.Errorf("count session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Totals(ctx context.Context, learnerID string) (Totals, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var t Totals
	err := s.pool.QueryRow(ctx,
		`SELECT correct, wrong, sessions, current_streak, best_streak
		 FROM drill_learners WHERE learner_id = $1`,
		learnerID,
	).Scan(&t.Correct, &t.Wrong, &t.Sessions, &t.CurrentStreak, &t.BestStreak)
	if errors.Is(err, pgx.ErrNoRows) {
		return Totals{}, ErrNotFound
	}
	if err != nil {
		return Totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) Mastery(ctx context.Context, learnerID string, domain content.Domain) ([]Mastery, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT domain, item, correct, wrong, last_seen
		 FROM drill_mastery
		 WHERE learner_id = $1 AND ($2::text = '' OR domain = $2::text)
		 ORDER BY domain, item`,
		learnerID, string(domain),
	)
	if err != nil {
		return nil, fmt.Errorf("query mastery: %w", err)
	}
	defer rows.Close()

	var out []Mastery
	for rows.Next() {
		var m Mastery
		var d string
		if err := rows.Scan(&d, &m.Character, &m.Correct, &m.Wrong, &m.LastSeen); err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		m.Domain = content.Domain(d)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mastery: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Unlock(ctx context.Context, learnerID, achievementID string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO drill_unlocks (learner_id, achievement_id, unlocked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (learner_id, achievement_id) DO NOTHING`,
		learnerID, achievementID, at,
	)
	if err != nil {
		return false, fmt.Errorf("insert unlock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Unlocks(ctx context.Context, learnerID string) ([]Unlock, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT achievement_id, unlocked_at FROM drill_unlocks
		 WHERE learner_id = $1 ORDER BY unlocked_at, achievement_id`,
		learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query unlocks: %w", err)
	}
	defer rows.Close()

	var out []Unlock
	for rows.Next() {
		var u Unlock
		if err := rows.Scan(&u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
