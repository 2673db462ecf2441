package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pixelbooth/internal/modules/booth/domain"
	boothout "pixelbooth/internal/modules/booth/port/out"
	"pixelbooth/internal/platform/clock"
	"pixelbooth/internal/platform/id"
	"pixelbooth/internal/platform/logging"
	"pixelbooth/internal/platform/telemetry"
)

var ErrStopped = errors.New("kiosk is not running")

type Options struct {
	IdleThreshold    int
	IdleTick         time.Duration
	GenerationPoll   time.Duration
	ProgressInterval time.Duration
	PrintPoll        time.Duration
	PrintGrace       time.Duration
	MaxPollAttempts  int
	CallTimeout      time.Duration
	ArchiveTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		IdleThreshold:    domain.DefaultIdleThreshold,
		IdleTick:         time.Second,
		GenerationPoll:   3 * time.Second,
		ProgressInterval: 500 * time.Millisecond,
		PrintPoll:        2 * time.Second,
		PrintGrace:       3 * time.Second,
		MaxPollAttempts:  5,
		CallTimeout:      30 * time.Second,
		ArchiveTimeout:   10 * time.Second,
	}
}

type Deps struct {
	Clock     clock.Clock
	Tickers   clock.TickerFactory
	IDs       id.Generator
	Capture   boothout.CaptureDevice
	Generator boothout.Generator
	Printer   boothout.Printer
	Archive   boothout.SessionArchive
	Metrics   telemetry.Recorder
	Logger    *slog.Logger
}

// View is the published runtime state: the session plus values that only
// matter for presentation.
type View struct {
	Version     uint64
	Session     domain.Session
	Progress    float64
	Busy        bool
	PrintDetail string
}

type envelope struct {
	event   domain.Event
	guarded bool
	epoch   uint64
	done    chan bool
}

// Kiosk owns the single Session of a booth. One goroutine (Run) applies events
// in arrival order; everything else talks to it through the event channel.
//
// Background work for a session is tagged with the epoch it started in. Reset
// bumps the epoch and cancels the session context, so late results from a
// previous visitor are dropped instead of applied.
type Kiosk struct {
	opts    Options
	deps    Deps
	monitor domain.IdleMonitor

	events  chan envelope
	stopped chan struct{}
	once    sync.Once
	tasks   sync.WaitGroup

	mu          sync.RWMutex
	view        View
	epoch       uint64
	sessCtx     context.Context
	sessCancel  context.CancelFunc
	phaseCancel context.CancelFunc
	subs        map[uint64]chan View
	nextSub     uint64
}

func NewKiosk(opts Options, deps Deps) *Kiosk {
	if deps.Clock == nil {
		deps.Clock = clock.SystemClock{}
	}
	if deps.Tickers == nil {
		deps.Tickers = clock.SystemClock{}
	}
	if deps.IDs == nil {
		deps.IDs = id.UUID{}
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = 1
	}
	sessCtx, cancel := context.WithCancel(context.Background())
	return &Kiosk{
		opts:        opts,
		deps:        deps,
		monitor:     domain.NewIdleMonitor(opts.IdleThreshold),
		events:      make(chan envelope, 64),
		stopped:     make(chan struct{}),
		view:        View{Session: domain.NewSession()},
		sessCtx:     sessCtx,
		sessCancel:  cancel,
		phaseCancel: func() {},
		subs:        map[uint64]chan View{},
	}
}

// Run applies events until ctx is cancelled. It must be called exactly once.
func (k *Kiosk) Run(ctx context.Context) error {
	defer k.shutdown()

	idleCtx, stopIdle := context.WithCancel(ctx)
	defer stopIdle()
	// The idle ticker must exist before the first event is applied.
	idleTicker := k.deps.Tickers.NewTicker(k.opts.IdleTick)
	k.tasks.Add(1)
	go k.idleLoop(idleCtx, idleTicker)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-k.events:
			k.handle(env)
		}
	}
}

func (k *Kiosk) shutdown() {
	k.once.Do(func() {
		close(k.stopped)
		k.mu.Lock()
		k.phaseCancel()
		k.sessCancel()
		for sid, ch := range k.subs {
			close(ch)
			delete(k.subs, sid)
		}
		k.mu.Unlock()
		k.tasks.Wait()
	})
}

// Snapshot returns the current view.
func (k *Kiosk) Snapshot() View {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.view
}

// Subscribe delivers the latest view whenever it changes. Slow readers only
// see the newest view. The channel closes when ctx ends or the kiosk stops.
func (k *Kiosk) Subscribe(ctx context.Context) <-chan View {
	ch := make(chan View, 1)
	k.mu.Lock()
	select {
	case <-k.stopped:
		k.mu.Unlock()
		close(ch)
		return ch
	default:
	}
	subID := k.nextSub
	k.nextSub++
	k.subs[subID] = ch
	ch <- k.view
	k.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-k.stopped:
			return
		}
		k.mu.Lock()
		if sub, ok := k.subs[subID]; ok {
			close(sub)
			delete(k.subs, subID)
		}
		k.mu.Unlock()
	}()
	return ch
}

// dispatch enqueues ev and waits until the loop has processed it. The result
// reports whether the session accepted the event. Guarded events are dropped
// when epoch is no longer current.
func (k *Kiosk) dispatch(ctx context.Context, ev domain.Event, guarded bool, epoch uint64) (bool, error) {
	env := envelope{event: ev, guarded: guarded, epoch: epoch, done: make(chan bool, 1)}
	select {
	case k.events <- env:
	case <-ctx.Done():
		return false, ctx.Err()
	case <-k.stopped:
		return false, ErrStopped
	}
	select {
	case applied := <-env.done:
		return applied, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-k.stopped:
		return false, ErrStopped
	}
}

func (k *Kiosk) handle(env envelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if env.guarded && env.epoch != k.epoch {
		k.deps.Logger.Debug("discarding stale event", "event", env.event.Name(), "epoch", env.epoch, "current_epoch", k.epoch)
		env.done <- false
		return
	}

	if _, selecting := env.event.(domain.ArtifactSelected); selecting && k.view.Busy {
		env.done <- false
		return
	}

	prev := k.view.Session
	next, applied := domain.Step(prev, env.event)
	if !applied {
		env.done <- false
		return
	}
	if _, tick := env.event.(domain.IdleTicked); !tick {
		k.deps.Logger.Debug("event applied", "event", env.event.Name(), "from", prev.Phase, "to", next.Phase, "session_id", next.SessionID)
	}

	if k.monitor.Expired(next) {
		k.deps.Logger.Info("idle timeout, resetting session", "phase", next.Phase, "session_id", next.SessionID, "idle_seconds", next.IdleSeconds)
		k.deps.Metrics.IdleReset(context.Background(), string(next.Phase))
		next = domain.Transition(next, domain.Reset{})
	}

	if _, started := env.event.(domain.Start); started {
		k.deps.Metrics.SessionStarted(context.Background())
		k.deps.Logger.Info("session started", "visitor", next.Visitor.FullName)
	}

	if (next.Phase == domain.PhaseWelcome && prev.Phase != domain.PhaseWelcome) || isReset(env.event) {
		k.teardownLocked(prev)
	} else if next.Phase != prev.Phase {
		k.enterPhaseLocked(prev, next)
	}

	k.view.Session = next
	k.publishLocked()
	env.done <- true
}

func isReset(ev domain.Event) bool {
	_, ok := ev.(domain.Reset)
	return ok
}

// teardownLocked ends the current epoch: running tasks are cancelled and the
// finished session is archived in the background.
func (k *Kiosk) teardownLocked(prev domain.Session) {
	k.phaseCancel()
	k.sessCancel()
	k.epoch++
	k.sessCtx, k.sessCancel = context.WithCancel(context.Background())
	k.phaseCancel = func() {}
	k.view.Progress = 0
	k.view.Busy = false
	k.view.PrintDetail = ""

	archived, ok := domain.Archive(prev, k.deps.Clock.Now())
	if !ok {
		return
	}
	k.tasks.Add(1)
	go func() {
		defer k.tasks.Done()
		ctx, cancel := context.WithTimeout(context.Background(), k.archiveTimeout())
		defer cancel()
		if k.deps.Archive != nil {
			path, err := k.deps.Archive.Save(ctx, archived)
			if err != nil {
				k.deps.Logger.Warn("archive session failed", "session_id", archived.SessionID, "err", err)
			} else {
				k.deps.Logger.Info("session archived", "session_id", archived.SessionID, "path", path, "final_phase", archived.FinalPhase)
			}
		}
		if k.deps.Generator != nil {
			k.deps.Generator.Cleanup(ctx, archived.SessionID)
		}
	}()
}

func (k *Kiosk) enterPhaseLocked(prev, next domain.Session) {
	k.phaseCancel()
	k.phaseCancel = func() {}

	switch next.Phase {
	case domain.PhaseGenerating:
		k.view.Progress = 0
		ctx, cancel := context.WithCancel(k.sessCtx)
		k.phaseCancel = cancel
		k.tasks.Add(2)
		go k.pollGeneration(ctx, k.epoch, next.SessionID)
		go k.estimateProgress(ctx, k.epoch)
	case domain.PhaseResults:
		if prev.Phase == domain.PhaseGenerating {
			k.view.Progress = 100
		}
		k.view.PrintDetail = ""
	case domain.PhasePrinting:
		ctx, cancel := context.WithCancel(k.sessCtx)
		k.phaseCancel = cancel
		k.tasks.Add(1)
		go k.pollPrint(ctx, k.epoch, next.PrintJobID)
	case domain.PhasePromptEntry:
		k.view.Progress = 0
	}
}

func (k *Kiosk) publishLocked() {
	k.view.Version++
	for _, ch := range k.subs {
		select {
		case ch <- k.view:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- k.view:
			default:
			}
		}
	}
}

// current returns the session with the epoch and context it belongs to.
func (k *Kiosk) current() (domain.Session, uint64, context.Context) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.view.Session, k.epoch, k.sessCtx
}

// beginBusy marks the session busy and returns it as it stood at that moment.
// While busy the selection cannot change.
func (k *Kiosk) beginBusy(epoch uint64) (domain.Session, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.epoch != epoch || k.view.Busy {
		return domain.Session{}, false
	}
	k.view.Busy = true
	k.publishLocked()
	return k.view.Session, true
}

func (k *Kiosk) endBusy(epoch uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.epoch != epoch || !k.view.Busy {
		return
	}
	k.view.Busy = false
	k.publishLocked()
}

func (k *Kiosk) archiveTimeout() time.Duration {
	if k.opts.ArchiveTimeout > 0 {
		return k.opts.ArchiveTimeout
	}
	return 10 * time.Second
}

// callContext bounds an external call by the caller, the session and the
// configured timeout, whichever ends first.
func (k *Kiosk) callContext(ctx, sessCtx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var callCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	stop := context.AfterFunc(sessCtx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}
