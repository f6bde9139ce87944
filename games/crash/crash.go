// Package crash holds the canonical crash-game math: the crash-point
// distribution and the multiplier-over-time curve. Every other component must
// go through this package; there is exactly one odds model.
package crash

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Multipliers are tracked in points: hundredths of an x. 100 points = 1.00x,
// 250 points = 2.50x. Working in integer points keeps settlement arithmetic
// exact (see ledger).
const (
	// Lambda is the rate of the exponential tail. With 0.8, roughly 55% of
	// rounds crash below 2.00x and well over 99% below 10.00x.
	Lambda = 0.8

	MinPoint int64 = 100    // 1.00x, the floor for every multiplier value
	MaxPoint int64 = 100000 // 1000.00x cap, bounds payout exposure

	// GrowthInterval is how long a flying round takes to gain one point.
	// One point per 100ms = +0.10x per second of flight.
	GrowthInterval = 100 * time.Millisecond
)

// Multiplier converts points to the displayed multiplier (e.g. 250 -> 2.50).
func Multiplier(points int64) float64 {
	return float64(points) / 100
}

// ToPoints converts a multiplier to points, rounding half-up to the nearest
// hundredth (e.g. 2.505 -> 251).
func ToPoints(multiplier float64) int64 {
	return int64(math.Round(multiplier * 100))
}

// secureFloat64 returns a uniform random float in [0,1) using crypto/rand
// (CSPRNG), with 53 bits of precision.
func secureFloat64() float64 {
	max := big.NewInt(1 << 53)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failing means the platform RNG is broken; there is no
		// sensible fallback for a wagering game.
		panic("crash: crypto/rand unavailable: " + err.Error())
	}
	return float64(v.Int64()) / (1 << 53)
}

// SamplePoint draws one crash point in points. Exponential-tailed: most
// rounds crash low, a long tail reaches high multipliers.
//
//	cp = 1 + (-ln(1-u) / Lambda), u ~ Uniform[0,1)
//
// The result is rounded half-up to the smallest tradable unit (one point)
// and clamped to [MinPoint, MaxPoint].
func SamplePoint() int64 {
	u := secureFloat64()
	cp := 1 + -math.Log(1-u)/Lambda
	points := ToPoints(cp)
	if points < MinPoint {
		points = MinPoint
	}
	if points > MaxPoint {
		points = MaxPoint
	}
	return points
}

// PointAt maps elapsed flight time to the current multiplier in points:
// MinPoint plus one point per full GrowthInterval. Monotonically
// non-decreasing and deterministic; PointAt(0) == MinPoint (1.00x).
func PointAt(elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return MinPoint
	}
	return MinPoint + int64(elapsed/GrowthInterval)
}
