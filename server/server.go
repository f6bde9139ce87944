package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"

	aviator "github.com/aviator-games/aviator-server"
	"github.com/aviator-games/aviator-server/config"
	"github.com/aviator-games/aviator-server/history"
	"github.com/aviator-games/aviator-server/ledger"
	"github.com/aviator-games/aviator-server/round"
)

// defaultPlayerID is used when a request carries no player identity; the game
// started life single-player.
const defaultPlayerID = "default"

type Server struct {
	cfg      *config.Config
	accounts *ledger.Store
	rounds   *history.Store
	roundCfg round.Config

	mu       sync.Mutex
	sessions map[string]*round.Session
}

func New(cfg *config.Config) *Server {
	db, err := aviator.GetDB()
	if err != nil {
		log.Printf("database unavailable, using file stores: %v", err)
	}
	return &Server{
		cfg:      cfg,
		accounts: ledger.NewStore(cfg.DataDir, db),
		rounds:   history.NewStore(cfg.DataDir, db),
		roundCfg: round.Config{
			MaxBetCents:     ledger.ToCents(cfg.MaxBet),
			TickInterval:    cfg.TickInterval,
			CashOutCooldown: cfg.CashOutCooldown,
			CrashCooldown:   cfg.CrashCooldown,
		},
		sessions: make(map[string]*round.Session),
	}
}

// session returns the player's session, creating it on first use. Sessions
// for different players are fully independent.
func (s *Server) session(playerID string) *round.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[playerID]
	if !ok {
		sess = round.NewSession(playerID, s.roundCfg, s.accounts, s.rounds)
		s.sessions[playerID] = sess
	}
	return sess
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /api/game/bet", s.handleBet)
	mux.HandleFunc("POST /api/game/cashout", s.handleCashOut)
	mux.HandleFunc("GET /api/game/status", s.handleStatus)
	mux.HandleFunc("GET /api/game/history", s.handleHistory)
	mux.HandleFunc("GET /api/game/stats", s.handleStats)
	mux.HandleFunc("GET /api/game/ws", s.handleWS)
	return mux
}

func (s *Server) Run() error {
	addr := ":" + strconv.Itoa(s.cfg.Port)
	log.Printf("aviator listening on %s (data dir: %s)", addr, s.cfg.DataDir)
	return http.ListenAndServe(addr, cors(requestLogger(s.routes())))
}

func cors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Player-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// requestLogger logs method and path for each request (no body or secrets).
func requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("aviator %s %s", r.Method, r.URL.Path)
		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "aviator"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
