package domain

const DefaultIdleThreshold = 60

// IdleMonitor decides when an unattended session must be reset.
type IdleMonitor struct {
	Threshold int
}

func NewIdleMonitor(threshold int) IdleMonitor {
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	return IdleMonitor{Threshold: threshold}
}

// Expired reports whether s has been idle past the threshold. A session at
// Welcome never expires, so after the Reset it triggers the monitor is quiet
// until the next visitor starts.
func (m IdleMonitor) Expired(s Session) bool {
	return s.Phase != PhaseWelcome && s.IdleSeconds > m.Threshold
}
