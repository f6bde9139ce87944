package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	DataDir         string
	MaxBet          float64       // largest accepted bet per round
	TickInterval    time.Duration // crash-check cadence for flying rounds
	CashOutCooldown time.Duration // cashed_out -> waiting
	CrashCooldown   time.Duration // crashed -> waiting
}

func Load() *Config {
	port := 8080
	// Prefer PORT (Render, Fly.io, Railway, etc.) then AVIATOR_PORT
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			port = v
		}
	} else if p := os.Getenv("AVIATOR_PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			port = v
		}
	}
	dataDir := os.Getenv("AVIATOR_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	maxBet := 10000.00
	if m := os.Getenv("AVIATOR_MAX_BET"); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil && v > 0 {
			maxBet = v
		}
	}
	return &Config{
		Port:            port,
		DataDir:         dataDir,
		MaxBet:          maxBet,
		TickInterval:    durationEnv("AVIATOR_TICK_MS", 100*time.Millisecond),
		CashOutCooldown: durationEnv("AVIATOR_CASHOUT_COOLDOWN_MS", 2*time.Second),
		CrashCooldown:   durationEnv("AVIATOR_CRASH_COOLDOWN_MS", 3*time.Second),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if ms := os.Getenv(key); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	}
	return fallback
}
