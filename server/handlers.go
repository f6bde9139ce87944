package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aviator-games/aviator-server/games/crash"
	"github.com/aviator-games/aviator-server/history"
	"github.com/aviator-games/aviator-server/ledger"
	"github.com/aviator-games/aviator-server/round"
)

// playerID resolves the player identity from header, query or an explicit
// body value, falling back to the single default player.
func playerID(r *http.Request, bodyID string) string {
	if id := strings.TrimSpace(bodyID); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.Header.Get("X-Player-ID")); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("playerId")); id != "" {
		return id
	}
	return defaultPlayerID
}

// BetRequest is the body for POST /api/game/bet.
type BetRequest struct {
	Amount   float64 `json:"amount"`
	PlayerID string  `json:"playerId"`
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	var req BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "INVALID_BODY")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive", "INVALID_BET")
		return
	}
	sess := s.session(playerID(r, req.PlayerID))
	st, err := sess.PlaceBet(ledger.ToCents(req.Amount))
	switch {
	case errors.Is(err, round.ErrRoundInProgress):
		writeError(w, http.StatusConflict, err.Error(), "ROUND_IN_PROGRESS")
		return
	case errors.Is(err, round.ErrInvalidBet):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_BET")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error(), "TECHNICAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CashOutRequest is the body for POST /api/game/cashout.
type CashOutRequest struct {
	RoundID  string `json:"roundId"`
	PlayerID string `json:"playerId"`
}

// CashOutResponse carries the settlement. AlreadySettled is set for the
// losing side of a settlement race, together with the final result, so the
// client updates its UI instead of retrying.
type CashOutResponse struct {
	round.Settlement
	AlreadySettled bool `json:"alreadySettled,omitempty"`
}

func (s *Server) handleCashOut(w http.ResponseWriter, r *http.Request) {
	var req CashOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "INVALID_BODY")
		return
	}
	sess := s.session(playerID(r, req.PlayerID))
	settlement, err := sess.CashOut(strings.TrimSpace(req.RoundID))
	switch {
	case errors.Is(err, round.ErrNoActiveRound):
		writeError(w, http.StatusConflict, err.Error(), "NO_ACTIVE_ROUND")
		return
	case errors.Is(err, round.ErrRoundNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "ROUND_NOT_FOUND")
		return
	case errors.Is(err, round.ErrRoundAlreadySettled):
		writeJSON(w, http.StatusConflict, CashOutResponse{
			Settlement:     settlement,
			AlreadySettled: true,
		})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error(), "TECHNICAL_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, CashOutResponse{Settlement: settlement})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.session(playerID(r, ""))
	writeJSON(w, http.StatusOK, sess.Status())
}

// HistoryEntry is the display projection of a settled round.
type HistoryEntry struct {
	RoundID      string    `json:"roundId"`
	BetAmount    float64   `json:"betAmount"`
	CrashPoint   float64   `json:"crashPoint"`
	CashOutPoint float64   `json:"cashOutPoint,omitempty"`
	Result       string    `json:"result"`
	Payout       float64   `json:"payout"`
	SettledAt    time.Time `json:"settledAt"`
}

func toHistoryEntry(e history.Entry) HistoryEntry {
	out := HistoryEntry{
		RoundID:    e.RoundID,
		BetAmount:  ledger.Amount(e.BetCents),
		CrashPoint: crash.Multiplier(e.CrashPoint),
		Result:     e.Result,
		Payout:     ledger.Amount(e.PayoutCents),
		SettledAt:  e.SettledAt,
	}
	if e.CashOutPoint > 0 {
		out.CashOutPoint = crash.Multiplier(e.CashOutPoint)
	}
	return out
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", "INVALID_LIMIT")
			return
		}
		if v > 0 {
			limit = v
		}
	}
	entries := s.rounds.Recent(r.Context(), playerID(r, ""), limit)
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryEntry(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// StatsResponse is the player account snapshot.
type StatsResponse struct {
	Balance       float64   `json:"balance"`
	TotalGames    int64     `json:"totalGames"`
	TotalWinnings float64   `json:"totalWinnings"`
	TotalLosses   float64   `json:"totalLosses"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	a := s.accounts.Get(playerID(r, ""))
	writeJSON(w, http.StatusOK, StatsResponse{
		Balance:       ledger.Amount(a.BalanceCents),
		TotalGames:    a.TotalGames,
		TotalWinnings: ledger.Amount(a.TotalWinningsCents),
		TotalLosses:   ledger.Amount(a.TotalLossesCents),
		UpdatedAt:     a.UpdatedAt,
	})
}
