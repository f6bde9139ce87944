// Package history keeps the append-only record of settled rounds. Entries are
// held in a bounded window persisted to round_history.json, and mirrored to
// Postgres when a database is configured.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultLimit is the page size for history queries when the caller does
	// not ask for one.
	DefaultLimit = 50

	// maxEntries bounds the retained window in memory and on disk; Postgres
	// keeps the full record.
	maxEntries = 50
)

// Entry is the immutable projection of one settled round. Multiplier values
// are in points (hundredths of an x), money in cents.
type Entry struct {
	RoundID      string    `json:"roundId"`
	PlayerID     string    `json:"playerId"`
	BetCents     int64     `json:"betCents"`
	CrashPoint   int64     `json:"crashPoint"`
	CashOutPoint int64     `json:"cashOutPoint,omitempty"` // 0 when the round crashed
	Result       string    `json:"result"`                 // "win" or "loss"
	PayoutCents  int64     `json:"payoutCents"`
	SettledAt    time.Time `json:"settledAt"`
}

// Store appends settled rounds, newest kept at the end of the slice.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	dataDir string
	db      *sql.DB
}

// NewStore loads the retained window from disk. db may be nil; when set, the
// game_rounds table is created if missing and entries are mirrored into it.
func NewStore(dataDir string, db *sql.DB) *Store {
	if dataDir == "" {
		dataDir = "data"
	}
	s := &Store{dataDir: dataDir, db: db}
	s.load()
	if db != nil {
		if err := s.ensureSchema(); err != nil {
			log.Printf("history: schema setup failed, falling back to file store: %v", err)
			s.db = nil
		}
	}
	return s
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS game_rounds (
			round_id       TEXT PRIMARY KEY,
			player_id      TEXT NOT NULL,
			bet_cents      BIGINT NOT NULL,
			crash_point    BIGINT NOT NULL,
			cash_out_point BIGINT,
			result         TEXT NOT NULL,
			payout_cents   BIGINT NOT NULL,
			settled_at     TIMESTAMPTZ NOT NULL
		)`)
	return err
}

func (s *Store) path() string {
	return filepath.Join(s.dataDir, "round_history.json")
}

func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path())
	if err != nil {
		return
	}
	var list []Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return
	}
	s.entries = list
}

// saveLocked writes the window to disk. Caller must hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0644)
}

// Append records one settled round. The file window is authoritative; the
// database mirror is best effort.
func (s *Store) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > maxEntries {
		s.entries = s.entries[len(s.entries)-maxEntries:]
	}
	err := s.saveLocked()
	s.mu.Unlock()

	if s.db != nil {
		var cashOut sql.NullInt64
		if e.CashOutPoint > 0 {
			cashOut = sql.NullInt64{Int64: e.CashOutPoint, Valid: true}
		}
		if _, dbErr := s.db.ExecContext(ctx, `
			INSERT INTO game_rounds
				(round_id, player_id, bet_cents, crash_point, cash_out_point, result, payout_cents, settled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (round_id) DO NOTHING`,
			e.RoundID, e.PlayerID, e.BetCents, e.CrashPoint, cashOut, e.Result, e.PayoutCents, e.SettledAt,
		); dbErr != nil {
			log.Printf("history: db insert for round %s failed: %v", e.RoundID, dbErr)
		}
	}
	return err
}

// Recent returns up to limit settled rounds for the player, most recent
// first. limit <= 0 means DefaultLimit.
func (s *Store) Recent(ctx context.Context, playerID string, limit int) []Entry {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	if s.db != nil {
		if out, err := s.recentFromDB(ctx, playerID, limit); err == nil {
			return out
		} else {
			log.Printf("history: db query failed, using file window: %v", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].PlayerID == playerID {
			out = append(out, s.entries[i])
		}
	}
	return out
}

func (s *Store) recentFromDB(ctx context.Context, playerID string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round_id, player_id, bet_cents, crash_point, cash_out_point, result, payout_cents, settled_at
		FROM game_rounds
		WHERE player_id = $1
		ORDER BY settled_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var cashOut sql.NullInt64
		if err := rows.Scan(&e.RoundID, &e.PlayerID, &e.BetCents, &e.CrashPoint,
			&cashOut, &e.Result, &e.PayoutCents, &e.SettledAt); err != nil {
			return nil, err
		}
		if cashOut.Valid {
			e.CashOutPoint = cashOut.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByRoundID returns the settled entry for a round if it is still inside
// the retained window. Used to answer late cash-outs with the final result.
func (s *Store) GetByRoundID(roundID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].RoundID == roundID {
			return s.entries[i], true
		}
	}
	return Entry{}, false
}
