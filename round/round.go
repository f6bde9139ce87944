// Package round owns the lifecycle of crash-game rounds: one per-player
// session at a time, driven by a tick source and by player commands, settled
// exactly once.
package round

import (
	"errors"
	"time"
)

// State is one round's lifecycle phase.
type State string

const (
	StateWaiting   State = "waiting"
	StateFlying    State = "flying"
	StateCrashed   State = "crashed"
	StateCashedOut State = "cashed_out"
)

// Result is assigned at settlement, never before.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
)

var (
	ErrInvalidBet          = errors.New("invalid bet")
	ErrRoundInProgress     = errors.New("a round is already in progress")
	ErrNoActiveRound       = errors.New("no active round")
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundAlreadySettled = errors.New("round already settled")
)

// Round is one betting episode. BetCents and CrashPoint are fixed at creation;
// CashOutPoint, Result and PayoutCents are written exactly once, at
// settlement, and never revised.
type Round struct {
	ID           string    `json:"roundId"`
	PlayerID     string    `json:"playerId"`
	BetCents     int64     `json:"betCents"`
	CrashPoint   int64     `json:"crashPoint"` // points; hidden from the player until terminal
	State        State     `json:"state"`
	StartedAt    time.Time `json:"startedAt"`
	CashOutPoint int64     `json:"cashOutPoint,omitempty"` // points; set only on cash-out
	Result       Result    `json:"result,omitempty"`
	PayoutCents  int64     `json:"payoutCents"`
}

// Status is the player-visible snapshot of a session. The crash point appears
// only once the round is terminal.
type Status struct {
	State      State   `json:"state"`
	RoundID    string  `json:"roundId,omitempty"`
	Multiplier float64 `json:"multiplier"`
	BetAmount  float64 `json:"betAmount,omitempty"`
	CrashPoint float64 `json:"crashPoint,omitempty"`
	Result     Result  `json:"result,omitempty"`
	Payout     float64 `json:"payout,omitempty"`
}

// Settlement is the terminal outcome of one round.
type Settlement struct {
	RoundID      string  `json:"roundId"`
	Result       Result  `json:"result"`
	CrashPoint   float64 `json:"crashPoint"`
	CashOutPoint float64 `json:"cashOutPoint,omitempty"`
	Payout       float64 `json:"payout"`
	NewBalance   float64 `json:"balance"`
}
