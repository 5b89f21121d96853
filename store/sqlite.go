package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mizuho42/agent-arena/domain"
)

// SQLiteStore persists the arena state as a single JSON document in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS arena_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			doc TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadState loads the state document. A missing row or undecodable document
// falls back to defaults, and a partially-shaped document is normalized
// field by field; startup never fails on bad stored state.
func (s *SQLiteStore) LoadState(ctx context.Context) (*domain.State, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM arena_state WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return NormalizeState(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		log.Printf("WARN: stored arena state is not valid JSON, starting fresh: %v", err)
		return NormalizeState(nil), nil
	}

	return NormalizeState(&state), nil
}

// SaveState replaces the state document.
func (s *SQLiteStore) SaveState(ctx context.Context, state *domain.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO arena_state (id, doc, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		string(doc), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// NormalizeState fills in defaults for every missing field of a loaded
// state document. Passing nil yields a fresh default state.
func NormalizeState(state *domain.State) *domain.State {
	if state == nil {
		state = &domain.State{}
	}
	if state.Agents == nil {
		state.Agents = []*domain.Agent{}
	}
	if state.Matches == nil {
		state.Matches = []*domain.Match{}
	}
	if state.Season == nil {
		state.Season = &domain.Season{
			Number:    1,
			ID:        "season_" + uuid.New().String()[:8],
			StartedAt: time.Now(),
		}
	}
	if state.Season.Wins == nil {
		state.Season.Wins = map[string]int{}
	}
	if state.Season.Played == nil {
		state.Season.Played = map[string]int{}
	}
	if state.Season.Number < 1 {
		state.Season.Number = 1
	}
	if state.AllTime == nil {
		state.AllTime = domain.NewLedger()
	}
	if state.AllTime.Wins == nil {
		state.AllTime.Wins = map[string]int{}
	}
	if state.AllTime.Played == nil {
		state.AllTime.Played = map[string]int{}
	}
	if state.Lobby != nil && state.Lobby.AgentIDs == nil {
		state.Lobby.AgentIDs = []string{}
	}
	if state.Run != nil {
		if state.Run.Pool == nil {
			state.Run.Pool = []string{}
		}
		if state.Run.Next == nil {
			state.Run.Next = []string{}
		}
		if state.Run.Entrants == nil {
			state.Run.Entrants = []string{}
		}
	}
	// A dangling current match pointer must not wedge the match slot.
	if state.CurrentMatchID != "" {
		found := false
		for _, m := range state.Matches {
			if m.ID == state.CurrentMatchID && m.Status == domain.MatchRunning {
				found = true
				break
			}
		}
		if !found {
			state.CurrentMatchID = ""
		}
	}
	// A running match that is not current has no timers left to resolve it;
	// close it out as a no-winner record.
	for _, m := range state.Matches {
		if m.Status == domain.MatchRunning && m.ID != state.CurrentMatchID {
			m.Status = domain.MatchComplete
		}
	}
	return state
}
