package domain

const (
	ProgressCap      = 98.0
	progressDecayPct = 0.05
)

// NextProgress advances the cosmetic progress estimate one step. It
// approaches but never passes ProgressCap; only a real result sets 100.
func NextProgress(p float64) float64 {
	if p < 0 {
		p = 0
	}
	next := p + (100-p)*progressDecayPct
	if next > ProgressCap {
		return ProgressCap
	}
	return next
}
