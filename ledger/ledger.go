// Package ledger owns player bankrolls. Balances and counters are kept in
// whole cents so every debit/credit is exact integer arithmetic.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultBalanceCents is the starting bankroll for a new player (1000.00).
const DefaultBalanceCents int64 = 100000

var ErrInsufficientBalance = errors.New("insufficient balance")

// ToCents converts a currency amount to whole cents, rounding half-up.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Amount converts cents back to a display amount (e.g. 15050 -> 150.50).
func Amount(cents int64) float64 {
	return float64(cents) / 100
}

// Account is one player's bankroll. Counters are monotonically non-decreasing.
type Account struct {
	PlayerID           string    `json:"playerId"`
	BalanceCents       int64     `json:"balanceCents"`
	TotalGames         int64     `json:"totalGames"`
	TotalWinningsCents int64     `json:"totalWinningsCents"`
	TotalLossesCents   int64     `json:"totalLossesCents"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Store holds player accounts and persists to accounts.json in the data dir.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*Account
	dataDir  string
	db       *sql.DB
}

// NewStore loads accounts from disk. db may be nil; when set, the
// player_accounts table is created if missing and every balance change is
// mirrored into it.
func NewStore(dataDir string, db *sql.DB) *Store {
	if dataDir == "" {
		dataDir = "data"
	}
	s := &Store{
		accounts: make(map[string]*Account),
		dataDir:  dataDir,
		db:       db,
	}
	s.load()
	if db != nil {
		if err := s.ensureSchema(); err != nil {
			log.Printf("ledger: schema setup failed, falling back to file store: %v", err)
			s.db = nil
		}
	}
	return s
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS player_accounts (
			player_id            TEXT PRIMARY KEY,
			balance_cents        BIGINT NOT NULL,
			total_games          BIGINT NOT NULL,
			total_winnings_cents BIGINT NOT NULL,
			total_losses_cents   BIGINT NOT NULL,
			updated_at           TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// mirror upserts the account row. The file store is authoritative; the
// database mirror is best effort. Called outside s.mu.
func (s *Store) mirror(a Account) {
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec(`
		INSERT INTO player_accounts
			(player_id, balance_cents, total_games, total_winnings_cents, total_losses_cents, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id) DO UPDATE
		SET balance_cents        = EXCLUDED.balance_cents,
		    total_games          = EXCLUDED.total_games,
		    total_winnings_cents = EXCLUDED.total_winnings_cents,
		    total_losses_cents   = EXCLUDED.total_losses_cents,
		    updated_at           = EXCLUDED.updated_at`,
		a.PlayerID, a.BalanceCents, a.TotalGames, a.TotalWinningsCents, a.TotalLossesCents, a.UpdatedAt,
	); err != nil {
		log.Printf("ledger: db upsert for player %s failed: %v", a.PlayerID, err)
	}
}

func (s *Store) path() string {
	return filepath.Join(s.dataDir, "accounts.json")
}

func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path())
	if err != nil {
		return
	}
	var list []*Account
	if err := json.Unmarshal(data, &list); err != nil {
		return
	}
	for _, a := range list {
		if a != nil && a.PlayerID != "" {
			s.accounts[a.PlayerID] = a
		}
	}
}

// saveLocked writes the store to disk. Caller must hold s.mu.
func (s *Store) saveLocked() error {
	list := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		list = append(list, a)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0644)
}

// getLocked returns the account for playerID, creating the default account on
// first access. Caller must hold s.mu.
func (s *Store) getLocked(playerID string) *Account {
	a, ok := s.accounts[playerID]
	if !ok {
		a = &Account{
			PlayerID:     playerID,
			BalanceCents: DefaultBalanceCents,
			UpdatedAt:    time.Now(),
		}
		s.accounts[playerID] = a
		_ = s.saveLocked()
	}
	return a
}

// Get returns a snapshot of the player's account, creating it with the
// default balance on first access.
func (s *Store) Get(playerID string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getLocked(playerID)
}

// Debit reserves amountCents from the player's balance. Fails closed with
// ErrInsufficientBalance when the balance does not cover the amount; no
// partial debits. Returns the new balance in cents.
func (s *Store) Debit(playerID string, amountCents int64) (int64, error) {
	s.mu.Lock()
	a := s.getLocked(playerID)
	if amountCents > a.BalanceCents {
		balance := a.BalanceCents
		s.mu.Unlock()
		return balance, ErrInsufficientBalance
	}
	a.BalanceCents -= amountCents
	a.UpdatedAt = time.Now()
	_ = s.saveLocked()
	snapshot := *a
	s.mu.Unlock()

	s.mirror(snapshot)
	return snapshot.BalanceCents, nil
}

// Credit adds amountCents to the player's balance and returns the new balance.
func (s *Store) Credit(playerID string, amountCents int64) int64 {
	s.mu.Lock()
	a := s.getLocked(playerID)
	a.BalanceCents += amountCents
	a.UpdatedAt = time.Now()
	_ = s.saveLocked()
	snapshot := *a
	s.mu.Unlock()

	s.mirror(snapshot)
	return snapshot.BalanceCents
}

// Settle applies the terminal outcome of one round: credits the payout (zero
// on loss) and bumps the lifetime counters. Returns the updated snapshot.
func (s *Store) Settle(playerID string, win bool, betCents, payoutCents int64) Account {
	s.mu.Lock()
	a := s.getLocked(playerID)
	a.BalanceCents += payoutCents
	a.TotalGames++
	if win {
		a.TotalWinningsCents += payoutCents
	} else {
		a.TotalLossesCents += betCents
	}
	a.UpdatedAt = time.Now()
	_ = s.saveLocked()
	snapshot := *a
	s.mu.Unlock()

	s.mirror(snapshot)
	return snapshot
}
