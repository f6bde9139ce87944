package round

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aviator-games/aviator-server/games/crash"
	"github.com/aviator-games/aviator-server/history"
	"github.com/aviator-games/aviator-server/ledger"

	"github.com/google/uuid"
)

// Clock abstracts time for the session so tests can drive the multiplier
// deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds the per-session game parameters. Zero values select the
// canonical defaults.
type Config struct {
	MaxBetCents     int64         // largest accepted bet; 0 means 10000.00
	TickInterval    time.Duration // cadence of crash checks; <= 0 disables the ticker goroutine
	CashOutCooldown time.Duration // cashed_out -> waiting delay
	CrashCooldown   time.Duration // crashed -> waiting delay

	Sample  func() int64              // crash point source
	PointAt func(time.Duration) int64 // multiplier clock
	Clock   Clock
}

func (c Config) withDefaults() Config {
	if c.MaxBetCents == 0 {
		c.MaxBetCents = 1000000 // 10000.00
	}
	if c.Sample == nil {
		c.Sample = crash.SamplePoint
	}
	if c.PointAt == nil {
		c.PointAt = crash.PointAt
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	return c
}

// Session is one player's round state machine. One round is active at a time;
// the tick source and the cash-out command race to settle it, serialized on
// s.mu, so exactly one wins.
type Session struct {
	playerID string
	cfg      Config
	accounts *ledger.Store
	rounds   *history.Store

	mu      sync.Mutex
	current *Round
	settled map[string]Settlement // terminal outcomes, for late callers
}

func NewSession(playerID string, cfg Config, accounts *ledger.Store, rounds *history.Store) *Session {
	return &Session{
		playerID: playerID,
		cfg:      cfg.withDefaults(),
		accounts: accounts,
		rounds:   rounds,
		settled:  make(map[string]Settlement),
	}
}

// PlaceBet reserves the bet, samples a crash point and starts a new round in
// flying. Rejected without any state change when a round is active, the
// amount is out of range, or the balance does not cover it.
func (s *Session) PlaceBet(amountCents int64) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.statusLocked(), ErrRoundInProgress
	}
	if amountCents <= 0 {
		return s.statusLocked(), fmt.Errorf("%w: amount must be positive", ErrInvalidBet)
	}
	if amountCents > s.cfg.MaxBetCents {
		return s.statusLocked(), fmt.Errorf("%w: amount exceeds max bet %s",
			ErrInvalidBet, formatAmount(s.cfg.MaxBetCents))
	}
	if _, err := s.accounts.Debit(s.playerID, amountCents); err != nil {
		return s.statusLocked(), fmt.Errorf("%w: %s", ErrInvalidBet, err)
	}

	r := &Round{
		ID:         uuid.New().String(),
		PlayerID:   s.playerID,
		BetCents:   amountCents,
		CrashPoint: s.cfg.Sample(),
		State:      StateFlying,
		StartedAt:  s.cfg.Clock.Now(),
	}
	s.current = r
	if s.cfg.TickInterval > 0 {
		go s.runTicker(r)
	}
	return s.statusLocked(), nil
}

// runTicker drives crash checks for one round at the configured cadence and
// exits as soon as the round leaves flying.
func (s *Session) runTicker(r *Round) {
	t := time.NewTicker(s.cfg.TickInterval)
	defer t.Stop()
	for range t.C {
		s.mu.Lock()
		if s.current != r || r.State != StateFlying {
			s.mu.Unlock()
			return
		}
		s.tickLocked()
		s.mu.Unlock()
	}
}

// Tick evaluates the multiplier clock once and fires the internal crash
// transition when it has reached the round's crash point. Safe to call in any
// state.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked()
}

func (s *Session) tickLocked() {
	r := s.current
	if r == nil || r.State != StateFlying {
		return
	}
	points := s.cfg.PointAt(s.cfg.Clock.Now().Sub(r.StartedAt))
	if points >= r.CrashPoint {
		s.settleLocked(r, ResultLoss, 0)
	}
}

// CashOut fixes the current multiplier as the settlement multiplier for a
// win. The returned Settlement reflects how the round actually ended: if the
// crash point was already passed, the crash wins the race and the settlement
// is a loss. roundID may be empty to target the active round.
func (s *Session) CashOut(roundID string) (Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.current
	if r == nil {
		if roundID == "" {
			return Settlement{}, ErrNoActiveRound
		}
		return s.settledLookupLocked(roundID)
	}
	if roundID != "" && roundID != r.ID {
		return s.settledLookupLocked(roundID)
	}
	if r.State != StateFlying {
		return s.settled[r.ID], ErrRoundAlreadySettled
	}

	points := s.cfg.PointAt(s.cfg.Clock.Now().Sub(r.StartedAt))
	if points >= r.CrashPoint {
		// Crash beat the command; the losing path observes the final result.
		return s.settleLocked(r, ResultLoss, 0), nil
	}
	return s.settleLocked(r, ResultWin, points), nil
}

// settledLookupLocked answers a cash-out for a round that is no longer
// active. Outcomes pruned from the in-memory map are recovered from the
// history window, so a late caller still learns how the round ended.
func (s *Session) settledLookupLocked(roundID string) (Settlement, error) {
	if st, ok := s.settled[roundID]; ok {
		return st, ErrRoundAlreadySettled
	}
	if e, ok := s.rounds.GetByRoundID(roundID); ok {
		st := Settlement{
			RoundID:    e.RoundID,
			Result:     Result(e.Result),
			CrashPoint: crash.Multiplier(e.CrashPoint),
			Payout:     ledger.Amount(e.PayoutCents),
			NewBalance: ledger.Amount(s.accounts.Get(s.playerID).BalanceCents),
		}
		if e.CashOutPoint > 0 {
			st.CashOutPoint = crash.Multiplier(e.CashOutPoint)
		}
		return st, ErrRoundAlreadySettled
	}
	return Settlement{}, ErrRoundNotFound
}

// settleLocked is the only writer of CashOutPoint, Result and PayoutCents.
// It runs at most once per round: callers check State == StateFlying under
// s.mu before entering.
func (s *Session) settleLocked(r *Round, result Result, cashOutPoints int64) Settlement {
	var payoutCents int64
	if result == ResultWin {
		r.State = StateCashedOut
		r.CashOutPoint = cashOutPoints
		// bet x multiplier in integer cents, rounded half-up.
		payoutCents = (r.BetCents*cashOutPoints + 50) / 100
	} else {
		r.State = StateCrashed
	}
	r.Result = result
	r.PayoutCents = payoutCents

	acct := s.accounts.Settle(s.playerID, result == ResultWin, r.BetCents, payoutCents)
	if err := s.rounds.Append(context.Background(), history.Entry{
		RoundID:      r.ID,
		PlayerID:     s.playerID,
		BetCents:     r.BetCents,
		CrashPoint:   r.CrashPoint,
		CashOutPoint: r.CashOutPoint,
		Result:       string(result),
		PayoutCents:  payoutCents,
		SettledAt:    s.cfg.Clock.Now(),
	}); err != nil {
		log.Printf("round: history write for round %s failed: %v", r.ID, err)
	}

	st := Settlement{
		RoundID:      r.ID,
		Result:       result,
		CrashPoint:   crash.Multiplier(r.CrashPoint),
		CashOutPoint: crash.Multiplier(r.CashOutPoint),
		Payout:       ledger.Amount(payoutCents),
		NewBalance:   ledger.Amount(acct.BalanceCents),
	}
	if result == ResultLoss {
		st.CashOutPoint = 0
	}
	// Old round ids expire rather than accumulate; late callers for pruned
	// rounds fall back to the history window.
	if len(s.settled) >= 100 {
		s.settled = make(map[string]Settlement)
	}
	s.settled[r.ID] = st
	s.scheduleCooldownLocked(r)
	return st
}

// scheduleCooldownLocked arms the delayed terminal -> waiting transition.
// With a zero cooldown the session returns to waiting immediately.
func (s *Session) scheduleCooldownLocked(r *Round) {
	d := s.cfg.CrashCooldown
	if r.State == StateCashedOut {
		d = s.cfg.CashOutCooldown
	}
	if d <= 0 {
		s.current = nil
		return
	}
	time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == r {
			s.current = nil
		}
	})
}

// Status returns the player-visible snapshot. While flying it first runs a
// crash check so a stale ticker can never show a multiplier past the crash
// point.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	r := s.current
	if r == nil {
		return Status{State: StateWaiting, Multiplier: 1.00}
	}
	st := Status{
		State:     r.State,
		RoundID:   r.ID,
		BetAmount: ledger.Amount(r.BetCents),
	}
	switch r.State {
	case StateFlying:
		st.Multiplier = crash.Multiplier(s.cfg.PointAt(s.cfg.Clock.Now().Sub(r.StartedAt)))
	case StateCrashed:
		st.Multiplier = crash.Multiplier(r.CrashPoint)
		st.CrashPoint = crash.Multiplier(r.CrashPoint)
		st.Result = r.Result
	case StateCashedOut:
		st.Multiplier = crash.Multiplier(r.CashOutPoint)
		st.CrashPoint = crash.Multiplier(r.CrashPoint)
		st.Result = r.Result
		st.Payout = ledger.Amount(r.PayoutCents)
	}
	return st
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%.2f", ledger.Amount(cents))
}
