package domain

import (
	"math"
	"testing"
)

func TestNextProgressApproachesCap(t *testing.T) {
	t.Parallel()

	if got := NextProgress(0); math.Abs(got-5) > 1e-9 {
		t.Fatalf("first step: expected 5, got %v", got)
	}
	p := 0.0
	prev := -1.0
	for i := 0; i < 500; i++ {
		p = NextProgress(p)
		if p < prev {
			t.Fatalf("progress went backwards at step %d", i)
		}
		if p > ProgressCap {
			t.Fatalf("progress passed cap: %v", p)
		}
		prev = p
	}
	if p != ProgressCap {
		t.Fatalf("expected progress to settle at cap, got %v", p)
	}
}
