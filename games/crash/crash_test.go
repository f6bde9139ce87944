package crash

import (
	"testing"
	"time"
)

func TestSamplePoint_Bounds(t *testing.T) {
	for i := 0; i < 10_000; i++ {
		p := SamplePoint()
		if p < MinPoint {
			t.Fatalf("crash point %d below minimum %d", p, MinPoint)
		}
		if p > MaxPoint {
			t.Fatalf("crash point %d above maximum %d", p, MaxPoint)
		}
	}
}

func TestSamplePoint_Distribution(t *testing.T) {
	// With Lambda 0.8: P(cp < 2.00) = 1-e^-0.8 ~ 0.55, P(cp < 10.00) ~ 0.9993.
	const rounds = 100_000
	var below2, below5, below10 int
	for i := 0; i < rounds; i++ {
		p := SamplePoint()
		if p < 200 {
			below2++
		}
		if p < 500 {
			below5++
		}
		if p < 1000 {
			below10++
		}
	}
	if p := float64(below2) / rounds; p < 0.52 || p > 0.58 {
		t.Errorf("P(cp < 2.00) = %.4f, want ~0.55", p)
	}
	if p := float64(below5) / rounds; p < 0.93 || p > 0.99 {
		t.Errorf("P(cp < 5.00) = %.4f, want ~0.96", p)
	}
	if p := float64(below10) / rounds; p < 0.99 {
		t.Errorf("P(cp < 10.00) = %.4f, want > 0.99", p)
	}
}

func TestSamplePoint_StrictlyIncreasingCDF(t *testing.T) {
	// The fraction below k must grow with k.
	const rounds = 50_000
	thresholds := []int64{150, 200, 300, 500, 1000}
	counts := make([]int, len(thresholds))
	for i := 0; i < rounds; i++ {
		p := SamplePoint()
		for j, k := range thresholds {
			if p < k {
				counts[j]++
			}
		}
	}
	for j := 1; j < len(counts); j++ {
		if counts[j] <= counts[j-1] {
			t.Errorf("CDF not increasing: %d below %d but %d below %d",
				counts[j-1], thresholds[j-1], counts[j], thresholds[j])
		}
	}
}

func TestPointAt(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    int64
	}{
		{0, 100},
		{-time.Second, 100},
		{50 * time.Millisecond, 100},
		{100 * time.Millisecond, 101},
		{150 * time.Millisecond, 101},
		{time.Second, 110},
		{10 * time.Second, 200},
		{15 * time.Second, 250},
	}
	for _, c := range cases {
		if got := PointAt(c.elapsed); got != c.want {
			t.Errorf("PointAt(%v) = %d, want %d", c.elapsed, got, c.want)
		}
	}
}

func TestPointAt_NonDecreasing(t *testing.T) {
	prev := PointAt(0)
	for ms := 0; ms <= 30_000; ms += 37 {
		p := PointAt(time.Duration(ms) * time.Millisecond)
		if p < prev {
			t.Fatalf("PointAt decreased at %dms: %d -> %d", ms, prev, p)
		}
		prev = p
	}
}

func TestMultiplierConversions(t *testing.T) {
	if m := Multiplier(100); m != 1.00 {
		t.Errorf("Multiplier(100) = %v, want 1.00", m)
	}
	if m := Multiplier(250); m != 2.50 {
		t.Errorf("Multiplier(250) = %v, want 2.50", m)
	}
	if p := ToPoints(2.50); p != 250 {
		t.Errorf("ToPoints(2.50) = %d, want 250", p)
	}
	// Half-up at the smallest unit (1.125 is exact in binary).
	if p := ToPoints(1.125); p != 113 {
		t.Errorf("ToPoints(1.125) = %d, want 113", p)
	}
	if p := ToPoints(1.004); p != 100 {
		t.Errorf("ToPoints(1.004) = %d, want 100", p)
	}
}
