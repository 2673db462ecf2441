package clock

import "time"

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Ticker is the subset of time.Ticker the kiosk runtime needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory lets tests substitute manually driven tickers.
type TickerFactory interface {
	NewTicker(d time.Duration) Ticker
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
