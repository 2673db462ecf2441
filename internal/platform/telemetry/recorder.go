package telemetry

import "context"

// Recorder receives kiosk counters. Implementations must be safe for
// concurrent use.
type Recorder interface {
	SessionStarted(ctx context.Context)
	IdleReset(ctx context.Context, phase string)
	GenerationSubmitted(ctx context.Context, degraded bool)
	GenerationFailed(ctx context.Context, stage string)
	PrintSubmitted(ctx context.Context, copies int)
	PrintFinished(ctx context.Context, outcome string)
	Close(ctx context.Context) error
}

// Noop drops every measurement. Used when no collector is configured.
type Noop struct{}

func (Noop) SessionStarted(context.Context)            {}
func (Noop) IdleReset(context.Context, string)         {}
func (Noop) GenerationSubmitted(context.Context, bool) {}
func (Noop) GenerationFailed(context.Context, string)  {}
func (Noop) PrintSubmitted(context.Context, int)       {}
func (Noop) PrintFinished(context.Context, string)     {}
func (Noop) Close(context.Context) error               { return nil }
