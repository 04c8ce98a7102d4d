package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/GriffinCanCode/live-translate/internal/capture"
	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
	"github.com/GriffinCanCode/live-translate/internal/syncx"
	"github.com/GriffinCanCode/live-translate/internal/trace"
)

// Capturer grabs one frame of a target.
type Capturer interface {
	Capture(ctx context.Context, t capture.Target) (*capture.Frame, error)
}

// Recognizer extracts text regions from a frame.
type Recognizer interface {
	Recognize(ctx context.Context, f *capture.Frame, lang string) ([]recognition.Region, error)
}

// Translator translates text, returning the input on failure.
type Translator interface {
	Translate(ctx context.Context, src, dst, text string) string
}

// Deps are the collaborators a pipeline drives. Gate may be nil.
type Deps struct {
	Capturer   Capturer
	Recognizer Recognizer
	Translator Translator
	Gate       *Gate
}

// State is the pipeline lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

// Pipeline runs a frame worker and, when enabled, a recognition worker.
// A Pipeline is single use: Start once, Stop once.
type Pipeline struct {
	cfg    Config
	target capture.Target
	deps   Deps
	runID  uuid.UUID
	log    *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	frame  *syncx.Slot[*capture.Frame]
	events chan Event

	mu       sync.Mutex
	state    State
	started  bool
	stopping bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the time source and the interruptible sleep. sleep
// returns false when ctx ended before d elapsed.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(p *Pipeline) {
		p.now = now
		p.sleep = sleep
	}
}

// New creates a stopped pipeline for target.
func New(target capture.Target, cfg Config, deps Deps, opts ...Option) *Pipeline {
	runID := uuid.New()
	p := &Pipeline{
		cfg:    cfg.Normalize(),
		target: target,
		deps:   deps,
		runID:  runID,
		log:    slog.Default().With("component", "pipeline", "run_id", runID.String(), "target", target.Handle()),
		now:    time.Now,
		sleep:  sleepCtx,
		frame:  syncx.NewSlot[*capture.Frame](nil),
		events: make(chan Event, EventBuffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *Pipeline) RunID() uuid.UUID { return p.runID }

func (p *Pipeline) Config() Config { return p.cfg }

func (p *Pipeline) Target() capture.Target { return p.target }

// Events delivers worker output. The channel is closed by Stop.
func (p *Pipeline) Events() <-chan Event { return p.events }

// Frame returns the most recent captured frame.
func (p *Pipeline) Frame() (*capture.Frame, bool) {
	f, _, ok := p.frame.Load()
	return f, ok && f != nil
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start launches the workers. It fails if the pipeline was already started.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return apperrors.New(apperrors.InvalidArgument, "pipeline already started")
	}
	p.started = true
	p.state = Running
	ctx, p.cancel = context.WithCancel(trace.WithContext(ctx, trace.ForRun(p.runID)))
	p.done = make(chan struct{})
	p.mu.Unlock()

	p.emit(Event{Kind: StatusChanged, Status: StatusAttached})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.loop(ctx, p.cfg.FrameInterval, p.frameTick())
	}()
	if p.cfg.RecognitionEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx, p.cfg.RecognitionInterval, p.recognitionTick)
		}()
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()

	p.log.Info("pipeline started",
		"frame_interval", p.cfg.FrameInterval,
		"recognition_interval", p.cfg.RecognitionInterval,
		"recognition", p.cfg.RecognitionEnabled,
		"src", p.cfg.SourceLang, "dst", p.cfg.DestLang)
	return nil
}

// Stop cancels the workers and waits for them, bounded by the longest
// interval plus StopTimeout. No event is delivered after Stop returns.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.started || p.stopping {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	var err error
	select {
	case <-done:
	case <-time.After(p.cfg.stopBound()):
		err = apperrors.New(apperrors.Timeout, "pipeline workers did not stop in time")
		p.log.Warn("pipeline stop timed out", "bound", p.cfg.stopBound())
	}

	p.emit(Event{Kind: StatusChanged, Status: StatusStopped})

	p.mu.Lock()
	p.state = Stopped
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	p.log.Info("pipeline stopped")
	return err
}

// emit delivers ev without blocking. It reports whether ev was queued.
func (p *Pipeline) emit(ev Event) bool {
	ev.RunID = p.runID
	ev.At = p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.events <- ev:
		return true
	default:
		p.log.Debug("event dropped, consumer behind", "kind", ev.Kind)
		return false
	}
}

// loop runs tick every interval. The next tick starts interval after the
// previous one started, or immediately when the tick overran.
func (p *Pipeline) loop(ctx context.Context, interval time.Duration, tick func(ctx context.Context)) {
	for {
		if ctx.Err() != nil {
			return
		}
		start := p.now()
		tick(ctx)
		if rest := interval - p.now().Sub(start); rest > 0 {
			if !p.sleep(ctx, rest) {
				return
			}
		}
	}
}

// frameTick returns the frame worker's tick, which tracks target loss.
func (p *Pipeline) frameTick() func(ctx context.Context) {
	lost := false
	return func(ctx context.Context) {
		f, err := p.deps.Capturer.Capture(ctx, p.target)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if apperrors.IsCode(err, apperrors.TargetLost) && !lost {
				lost = true
				p.log.Warn("target lost", "error", err)
				p.emit(Event{Kind: StatusChanged, Status: StatusLost, Err: err})
				return
			}
			p.log.Debug("frame tick failed", "error", err)
			return
		}
		if f.Empty() {
			return
		}
		if lost {
			lost = false
			p.log.Info("target recovered")
			p.emit(Event{Kind: StatusChanged, Status: StatusRecovered})
		}
		p.frame.Store(f)
		p.emit(Event{Kind: FrameReady, Frame: f})
	}
}

func (p *Pipeline) recognitionTick(ctx context.Context) {
	if p.deps.Gate.Active() {
		return
	}
	f, ok := p.Frame()
	if !ok {
		return
	}

	ctx, span := trace.StartSpan(ctx, "recognition.tick")
	regions, err := p.deps.Recognizer.Recognize(ctx, f, p.cfg.SourceLang)
	if err != nil {
		span.Finish(err)
		return
	}
	p.translate(ctx, regions)
	span.SetAttr("regions", len(regions))
	span.Finish(nil)

	if ctx.Err() != nil || p.deps.Gate.Active() {
		return
	}
	p.emit(Event{Kind: RecognitionReady, Regions: regions, Source: image.Pt(f.Width, f.Height)})
}

func (p *Pipeline) translate(ctx context.Context, regions []recognition.Region) {
	if p.deps.Translator == nil || len(regions) == 0 {
		return
	}
	wp := pool.New().WithMaxGoroutines(TranslateWorkers)
	for i := range regions {
		wp.Go(func() {
			regions[i].Translation = p.deps.Translator.Translate(ctx, p.cfg.SourceLang, p.cfg.DestLang, regions[i].Text)
		})
	}
	wp.Wait()
}
