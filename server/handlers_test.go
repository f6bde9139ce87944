package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aviator-games/aviator-server/config"
	"github.com/aviator-games/aviator-server/history"
	"github.com/aviator-games/aviator-server/ledger"
	"github.com/aviator-games/aviator-server/round"

	"github.com/gorilla/websocket"
)

// newTestServer builds a server on file stores with a forced crash point and
// manual ticking, so cash-outs right after a bet settle at 1.00x.
func newTestServer(t *testing.T, crashPoint int64) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{DataDir: dir, MaxBet: 10000, TickInterval: 10 * time.Millisecond}
	return &Server{
		cfg:      cfg,
		accounts: ledger.NewStore(dir, nil),
		rounds:   history.NewStore(dir, nil),
		roundCfg: round.Config{
			MaxBetCents: ledger.ToCents(cfg.MaxBet),
			Sample:      func() int64 { return crashPoint },
		},
		sessions: make(map[string]*round.Session),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec
}

func TestBetCashOutFlow(t *testing.T) {
	s := newTestServer(t, 50000) // 500.00x, will not crash mid-test
	mux := s.routes()

	var st round.Status
	rec := doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 100.00}, &st)
	if rec.Code != http.StatusOK {
		t.Fatalf("bet: status %d body %s", rec.Code, rec.Body.String())
	}
	if st.State != round.StateFlying || st.RoundID == "" {
		t.Fatalf("bet response: %+v", st)
	}
	if st.CrashPoint != 0 {
		t.Error("crash point leaked in bet response")
	}

	var resp CashOutResponse
	rec = doJSON(t, mux, http.MethodPost, "/api/game/cashout", CashOutRequest{RoundID: st.RoundID}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("cashout: status %d body %s", rec.Code, rec.Body.String())
	}
	if resp.Result != round.ResultWin {
		t.Errorf("result = %s, want win", resp.Result)
	}
	// Cashed out at 1.00x: payout equals the bet, balance back to 1000.00.
	if resp.Payout != 100.00 || resp.NewBalance != 1000.00 {
		t.Errorf("payout %v balance %v, want 100.00 and 1000.00", resp.Payout, resp.NewBalance)
	}

	var stats StatsResponse
	doJSON(t, mux, http.MethodGet, "/api/game/stats", nil, &stats)
	if stats.TotalGames != 1 || stats.TotalWinnings != 100.00 {
		t.Errorf("stats after win: %+v", stats)
	}

	var entries []HistoryEntry
	doJSON(t, mux, http.MethodGet, "/api/game/history", nil, &entries)
	if len(entries) != 1 || entries[0].RoundID != st.RoundID {
		t.Errorf("history: %+v", entries)
	}
}

func TestBet_Invalid(t *testing.T) {
	s := newTestServer(t, 500)
	mux := s.routes()

	var apiErr APIError
	rec := doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 0}, &apiErr)
	if rec.Code != http.StatusBadRequest || apiErr.Code != "INVALID_BET" {
		t.Errorf("zero bet: status %d code %s", rec.Code, apiErr.Code)
	}
	rec = doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 10000.01}, &apiErr)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("over max bet: status %d", rec.Code)
	}

	// Balance untouched by rejected bets.
	var stats StatsResponse
	doJSON(t, mux, http.MethodGet, "/api/game/stats", nil, &stats)
	if stats.Balance != 1000.00 {
		t.Errorf("balance = %v, want 1000.00", stats.Balance)
	}
}

func TestBet_WhileFlying(t *testing.T) {
	s := newTestServer(t, 50000)
	mux := s.routes()

	doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 10}, nil)
	var apiErr APIError
	rec := doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 10}, &apiErr)
	if rec.Code != http.StatusConflict || apiErr.Code != "ROUND_IN_PROGRESS" {
		t.Errorf("status %d code %s, want 409 ROUND_IN_PROGRESS", rec.Code, apiErr.Code)
	}
}

func TestCashOut_Errors(t *testing.T) {
	s := newTestServer(t, 50000)
	mux := s.routes()

	var apiErr APIError
	rec := doJSON(t, mux, http.MethodPost, "/api/game/cashout", CashOutRequest{}, &apiErr)
	if rec.Code != http.StatusConflict || apiErr.Code != "NO_ACTIVE_ROUND" {
		t.Errorf("no round: status %d code %s", rec.Code, apiErr.Code)
	}

	doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 10}, nil)
	rec = doJSON(t, mux, http.MethodPost, "/api/game/cashout", CashOutRequest{RoundID: "nope"}, &apiErr)
	if rec.Code != http.StatusNotFound || apiErr.Code != "ROUND_NOT_FOUND" {
		t.Errorf("unknown round: status %d code %s", rec.Code, apiErr.Code)
	}
}

func TestCashOut_AlreadySettled(t *testing.T) {
	s := newTestServer(t, 50000)
	mux := s.routes()

	var st round.Status
	doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 25}, &st)
	var first CashOutResponse
	doJSON(t, mux, http.MethodPost, "/api/game/cashout", CashOutRequest{RoundID: st.RoundID}, &first)

	var second CashOutResponse
	rec := doJSON(t, mux, http.MethodPost, "/api/game/cashout", CashOutRequest{RoundID: st.RoundID}, &second)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	if !second.AlreadySettled {
		t.Error("alreadySettled not set")
	}
	// The losing caller gets the final result, not a retryable error.
	if second.Result != first.Result || second.Payout != first.Payout {
		t.Errorf("second settlement %+v differs from first %+v", second, first)
	}
}

func TestHistory_Limit(t *testing.T) {
	s := newTestServer(t, 50000)
	mux := s.routes()

	var roundIDs []string
	for i := 0; i < 3; i++ {
		var st round.Status
		doJSON(t, mux, http.MethodPost, "/api/game/bet", BetRequest{Amount: 5}, &st)
		doJSON(t, mux, http.MethodPost, "/api/game/cashout", CashOutRequest{RoundID: st.RoundID}, nil)
		roundIDs = append(roundIDs, st.RoundID)
	}

	var entries []HistoryEntry
	doJSON(t, mux, http.MethodGet, "/api/game/history?limit=2", nil, &entries)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].RoundID != roundIDs[2] || entries[1].RoundID != roundIDs[1] {
		t.Errorf("not most-recent-first: %s, %s", entries[0].RoundID, entries[1].RoundID)
	}

	var apiErr APIError
	rec := doJSON(t, mux, http.MethodGet, "/api/game/history?limit=-1", nil, &apiErr)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status %d", rec.Code)
	}
}

func TestStats_CreatesDefaultAccount(t *testing.T) {
	s := newTestServer(t, 500)
	var stats StatsResponse
	rec := doJSON(t, s.routes(), http.MethodGet, "/api/game/stats", nil, &stats)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if stats.Balance != 1000.00 || stats.TotalGames != 0 {
		t.Errorf("default account: %+v", stats)
	}
}

func TestStatus_Waiting(t *testing.T) {
	s := newTestServer(t, 500)
	var st round.Status
	doJSON(t, s.routes(), http.MethodGet, "/api/game/status", nil, &st)
	if st.State != round.StateWaiting || st.Multiplier != 1.00 {
		t.Errorf("idle status: %+v", st)
	}
}

func TestWS_StreamsStatus(t *testing.T) {
	s := newTestServer(t, 50000)
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/game/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type string       `json:"type"`
		Data round.Status `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "status" || msg.Data.State != round.StateWaiting {
		t.Errorf("first frame: %+v", msg)
	}
}
