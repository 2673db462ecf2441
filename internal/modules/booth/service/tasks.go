package service

import (
	"context"
	"fmt"
	"time"

	"pixelbooth/internal/modules/booth/domain"
	"pixelbooth/internal/platform/clock"
)

func (k *Kiosk) idleLoop(ctx context.Context, ticker clock.Ticker) {
	defer k.tasks.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		if k.Snapshot().Session.Phase == domain.PhaseWelcome {
			continue
		}
		env := envelope{event: domain.IdleTicked{}, done: make(chan bool, 1)}
		select {
		case k.events <- env:
		case <-ctx.Done():
			return
		}
	}
}

// pollGeneration asks for the generation status right away and then on every
// tick until the job settles, the phase changes or the poll budget runs out.
func (k *Kiosk) pollGeneration(ctx context.Context, epoch uint64, sessionID string) {
	defer k.tasks.Done()
	ticker := k.deps.Tickers.NewTicker(k.opts.GenerationPoll)
	defer ticker.Stop()

	failures := 0
	for {
		ev, done := k.checkGeneration(ctx, sessionID, &failures)
		if done {
			if ev != nil {
				if _, err := k.dispatch(ctx, ev, true, epoch); err != nil && ctx.Err() == nil {
					k.deps.Logger.Warn("deliver generation outcome", "session_id", sessionID, "err", err)
				}
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

func (k *Kiosk) checkGeneration(ctx context.Context, sessionID string, failures *int) (domain.Event, bool) {
	callCtx, cancel := context.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	status, err := k.deps.Generator.PollStatus(callCtx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, true
		}
		*failures++
		k.deps.Logger.Warn("poll generation status", "session_id", sessionID, "attempt", *failures, "err", err)
		if *failures >= k.opts.MaxPollAttempts {
			k.deps.Metrics.GenerationFailed(ctx, "poll")
			return domain.GenerationFailed{Message: fmt.Sprintf("generation status unavailable: %v", err)}, true
		}
		return nil, false
	}
	switch status.State {
	case domain.PollComplete:
		return domain.ResultsReceived{Artifacts: status.Artifacts, Degraded: status.Degraded}, true
	case domain.PollFailed:
		reason := status.Reason
		if reason == "" {
			reason = "generation failed"
		}
		k.deps.Metrics.GenerationFailed(ctx, "remote")
		return domain.GenerationFailed{Message: reason}, true
	default:
		return nil, false
	}
}

func (k *Kiosk) estimateProgress(ctx context.Context, epoch uint64) {
	defer k.tasks.Done()
	ticker := k.deps.Tickers.NewTicker(k.opts.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		k.mu.Lock()
		if k.epoch == epoch && k.view.Session.Phase == domain.PhaseGenerating {
			k.view.Progress = domain.NextProgress(k.view.Progress)
			k.publishLocked()
		}
		k.mu.Unlock()
	}
}

// pollPrint follows a print job. A completed job advances the session only
// after the grace period so the visitor sees the confirmation.
func (k *Kiosk) pollPrint(ctx context.Context, epoch uint64, jobID string) {
	defer k.tasks.Done()
	ticker := k.deps.Tickers.NewTicker(k.opts.PrintPoll)
	defer ticker.Stop()

	failures := 0
	for {
		ev, done := k.checkPrint(ctx, epoch, jobID, &failures)
		if done {
			if ev != nil {
				if _, err := k.dispatch(ctx, ev, true, epoch); err != nil && ctx.Err() == nil {
					k.deps.Logger.Warn("deliver print outcome", "print_job_id", jobID, "err", err)
				}
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

func (k *Kiosk) checkPrint(ctx context.Context, epoch uint64, jobID string, failures *int) (domain.Event, bool) {
	callCtx, cancel := context.WithTimeout(ctx, k.opts.CallTimeout)
	defer cancel()
	status, err := k.deps.Printer.PollPrintStatus(callCtx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, true
		}
		*failures++
		k.deps.Logger.Warn("poll print status", "print_job_id", jobID, "attempt", *failures, "err", err)
		if *failures >= k.opts.MaxPollAttempts {
			k.deps.Metrics.PrintFinished(ctx, "unavailable")
			return domain.PrintFailed{Message: fmt.Sprintf("print status unavailable: %v", err)}, true
		}
		return nil, false
	}
	switch status.State {
	case domain.PollComplete:
		k.setPrintDetail(epoch, "completed")
		k.deps.Metrics.PrintFinished(ctx, "completed")
		if !k.wait(ctx, k.opts.PrintGrace) {
			return nil, true
		}
		return domain.PrintCompleted{}, true
	case domain.PollFailed:
		reason := status.Reason
		if reason == "" {
			reason = "print failed"
		}
		k.deps.Metrics.PrintFinished(ctx, "failed")
		return domain.PrintFailed{Message: reason}, true
	default:
		k.setPrintDetail(epoch, status.Detail)
		return nil, false
	}
}

func (k *Kiosk) setPrintDetail(epoch uint64, detail string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.epoch != epoch || k.view.PrintDetail == detail {
		return
	}
	k.view.PrintDetail = detail
	k.publishLocked()
}

// wait blocks for one tick of d. It reports false when ctx ended first.
func (k *Kiosk) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	ticker := k.deps.Tickers.NewTicker(d)
	defer ticker.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C():
		return true
	}
}
