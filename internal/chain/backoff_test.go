package chain

import (
	"testing"
	"time"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Max: 60 * time.Second, Multiplier: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
		{4, 32 * time.Second},
		{5, 60 * time.Second},
		{10, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	b := Backoff{Base: 10 * time.Second, Max: 60 * time.Second, Multiplier: 2, Jitter: 0.5}

	for i := 0; i < 100; i++ {
		d := b.Delay(0)
		if d < 5*time.Second || d > 10*time.Second {
			t.Fatalf("Delay(0) = %v, want within [5s, 10s]", d)
		}
	}
}

func TestBackoffConstantWhenMultiplierOne(t *testing.T) {
	b := Backoff{Base: 3 * time.Second, Max: 60 * time.Second, Multiplier: 1}
	for attempt := 0; attempt < 5; attempt++ {
		if got := b.Delay(attempt); got != 3*time.Second {
			t.Errorf("Delay(%d) = %v, want 3s", attempt, got)
		}
	}
}
