package domain

import "testing"

func TestIdleMonitorFiresOneResetAfterThreshold(t *testing.T) {
	t.Parallel()

	monitor := NewIdleMonitor(DefaultIdleThreshold)
	s := run(NewSession(), Start{At: startedAt}, ImageCaptured{Image: &Image{Data: []byte("x")}, SessionID: "s1"})

	resets := 0
	for second := 1; second <= 120; second++ {
		s = Transition(s, IdleTicked{})
		if monitor.Expired(s) {
			resets++
			if second != 61 {
				t.Fatalf("reset fired at second %d", second)
			}
			s = Transition(s, Reset{})
		}
	}
	if resets != 1 {
		t.Fatalf("expected exactly one reset, got %d", resets)
	}
	if s.Phase != PhaseWelcome || s.IdleSeconds != 0 {
		t.Fatalf("expected quiet welcome session, got %s idle=%d", s.Phase, s.IdleSeconds)
	}
}

func TestIdleMonitorIgnoresWelcome(t *testing.T) {
	t.Parallel()

	monitor := NewIdleMonitor(0)
	s := NewSession()
	s.IdleSeconds = 500
	if monitor.Expired(s) {
		t.Fatalf("welcome must never expire")
	}
	if monitor.Threshold != DefaultIdleThreshold {
		t.Fatalf("expected default threshold, got %d", monitor.Threshold)
	}
}
