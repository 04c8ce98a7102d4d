package orchestrator

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/GriffinCanCode/live-translate/internal/capture"
	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/hook"
	"github.com/GriffinCanCode/live-translate/internal/overlay"
	"github.com/GriffinCanCode/live-translate/internal/pipeline"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
	"github.com/GriffinCanCode/live-translate/internal/results"
	"github.com/GriffinCanCode/live-translate/internal/syncx"
	"github.com/GriffinCanCode/live-translate/internal/trace"
)

// NoticeKind says which part of the session changed.
type NoticeKind int

const (
	NoticeStatus NoticeKind = iota
	NoticeFrame
	NoticeRegions
	NoticeHook
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeStatus:
		return "status"
	case NoticeFrame:
		return "frame"
	case NoticeRegions:
		return "regions"
	case NoticeHook:
		return "hook"
	default:
		return "unknown"
	}
}

// Notice tells the renderer to pull fresh state.
type Notice struct {
	Kind NoticeKind
	At   time.Time
}

// Session states reported by Status.
const (
	StateIdle     = "idle"
	StateAttached = "attached"
	StateLost     = "lost"
	StateStopped  = "stopped"
)

// Status is a point-in-time view of the session.
type Status struct {
	State        string          `json:"state"`
	Message      string          `json:"message"`
	Target       *capture.Target `json:"target,omitempty"`
	RunID        string          `json:"run_id,omitempty"`
	HookAttached bool            `json:"hook_attached"`
	Regions      int             `json:"regions"`
	Settings     Settings        `json:"settings"`
}

// Deps are the long-lived collaborators shared by every pipeline the
// manager starts. Hook may be nil, which disables hook mode.
type Deps struct {
	Lister     capture.Lister
	Capturer   pipeline.Capturer
	Recognizer pipeline.Recognizer
	Translator pipeline.Translator
	Hook       *hook.Worker
	Results    *results.Store
	Compositor *overlay.Compositor
}

// Option configures a Manager.
type Option func(*Manager)

// WithPipelineOptions passes opts to every pipeline the manager creates.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(m *Manager) { m.pipeOpts = append(m.pipeOpts, opts...) }
}

// Manager coordinates the session. Lifecycle calls are serialized.
type Manager struct {
	deps       Deps
	exportPath string
	pipeOpts   []pipeline.Option
	gate       pipeline.Gate
	notices    chan Notice
	log        *slog.Logger

	frame    *syncx.Slot[*capture.Frame]
	source   *syncx.Slot[image.Point]
	hookLine *syncx.Slot[hook.Text]

	mu       sync.Mutex
	settings Settings
	target   *capture.Target
	pipe     *pipeline.Pipeline
	consumed chan struct{}

	statusMu sync.RWMutex
	state    string
	message  string
	runID    string
}

// New creates an idle manager.
func New(deps Deps, settings Settings, exportPath string, opts ...Option) *Manager {
	if deps.Results == nil {
		deps.Results = results.NewStore(ResultsMaxEntries)
	}
	m := &Manager{
		deps:       deps,
		exportPath: exportPath,
		notices:    make(chan Notice, NoticeBuffer),
		log:        slog.Default().With("component", "orchestrator"),
		frame:      syncx.NewSlot[*capture.Frame](nil),
		source:     syncx.NewSlot(image.Point{}),
		hookLine:   syncx.NewSlot(hook.Text{}),
		settings:   settings,
		state:      StateIdle,
		message:    "no window attached",
	}
	for _, opt := range opts {
		opt(m)
	}
	if deps.Hook != nil {
		deps.Hook.SetLanguages(settings.SourceLang, settings.DestLang)
	}
	if deps.Compositor != nil && settings.TextColor != "" {
		if col, err := overlay.ParseColor(settings.TextColor); err == nil {
			deps.Compositor.SetTextColor(col)
		}
	}
	return m
}

// Notices delivers change notifications. Sends never block; a slow reader
// misses notices, not state.
func (m *Manager) Notices() <-chan Notice { return m.notices }

// Run drains hooked lines into the results store until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	if m.deps.Hook == nil {
		<-ctx.Done()
		return
	}
	lines := m.deps.Hook.Lines()
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-lines:
			if !m.gate.Active() {
				continue
			}
			m.deps.Results.AddHook(line.Original, line.Translated)
			m.hookLine.Store(line)
			m.notify(NoticeHook)
		}
	}
}

// Close detaches and stops the hook.
func (m *Manager) Close() error {
	return m.Detach()
}

// Windows lists capturable windows.
func (m *Manager) Windows(ctx context.Context) []capture.Target {
	return capture.Enumerate(ctx, m.deps.Lister)
}

// Attach starts capturing the window with the given id, replacing any
// current session. In hook mode the hook follows the new target.
func (m *Manager) Attach(ctx context.Context, id uint64) (capture.Target, error) {
	var target capture.Target
	found := false
	for _, t := range m.Windows(ctx) {
		if t.ID == id {
			target, found = t, true
			break
		}
	}
	if !found {
		return capture.Target{}, apperrors.Newf(apperrors.InvalidArgument, "unknown window %s", capture.Target{ID: id}.Handle())
	}

	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.stopHookLocked()
	m.frame.Reset(nil)
	m.source.Reset(image.Point{})
	m.target = &target

	if err := m.startLocked(ctx); err != nil {
		m.target = nil
		return capture.Target{}, err
	}
	if m.settings.HookMode {
		if err := m.startHookLocked(ctx); err != nil {
			m.log.Warn("hook not attached", "error", err, "target", target.Handle())
		}
	}
	trace.Logger(ctx).Info("attached", "target", target.Handle(), "title", target.Title, "pid", target.PID)
	return target, nil
}

// Detach stops the current session, if any.
func (m *Manager) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.stopLocked()
	m.stopHookLocked()
	m.target = nil
	m.frame.Reset(nil)
	m.setStatus(StateIdle, "no window attached", "")
	return err
}

// Configure applies u. A change to anything the pipeline is built from
// restarts it; language changes also reach the hook worker.
func (m *Manager) Configure(ctx context.Context, u Update) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.settings.apply(u)
	if err := next.validate(); err != nil {
		return m.settings, err
	}
	restart := next.pipelineConfig() != m.settings.pipelineConfig()
	m.settings = next
	if m.deps.Hook != nil {
		m.deps.Hook.SetLanguages(next.SourceLang, next.DestLang)
	}
	if m.deps.Compositor != nil && next.TextColor != "" {
		col, _ := overlay.ParseColor(next.TextColor)
		m.deps.Compositor.SetTextColor(col)
	}

	m.log.Info("settings changed", "restart", restart && m.pipe != nil,
		"frame_ms", next.FrameIntervalMS, "recognition_ms", next.RecognitionIntervalMS,
		"recognition", next.RecognitionEnabled, "src", next.SourceLang, "dst", next.DestLang,
		"text_color", next.TextColor)

	if restart && m.pipe != nil {
		m.stopLocked()
		if err := m.startLocked(context.WithoutCancel(ctx)); err != nil {
			return next, err
		}
	}
	m.notify(NoticeStatus)
	return next, nil
}

// SetHookMode switches between recognition and hooked text. While hook mode
// is on, recognition results are suppressed and the overlay shows the last
// hooked line.
func (m *Manager) SetHookMode(ctx context.Context, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if on && m.deps.Hook == nil {
		return apperrors.New(apperrors.HookFailed, "no hook command configured")
	}
	if on == m.settings.HookMode {
		return nil
	}

	if !on {
		m.settings.HookMode = false
		m.gate.Set(false)
		m.stopHookLocked()
		m.hookLine.Reset(hook.Text{})
		m.notify(NoticeHook)
		return nil
	}

	m.settings.HookMode = true
	m.gate.Set(true)
	if m.target != nil {
		if err := m.startHookLocked(context.WithoutCancel(ctx)); err != nil {
			m.settings.HookMode = false
			m.gate.Set(false)
			return err
		}
	}
	m.notify(NoticeHook)
	return nil
}

// Status reports the current session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	settings := m.settings
	var target *capture.Target
	if m.target != nil {
		t := *m.target
		target = &t
	}
	m.mu.Unlock()

	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	st := Status{
		State:    m.state,
		Message:  m.message,
		Target:   target,
		RunID:    m.runID,
		Regions:  m.deps.Results.Len(),
		Settings: settings,
	}
	if m.deps.Hook != nil {
		st.HookAttached = m.deps.Hook.Attached()
	}
	return st
}

// Frame returns the latest captured frame.
func (m *Manager) Frame() (*capture.Frame, bool) {
	f, _, ok := m.frame.Load()
	return f, ok && f != nil
}

// Regions returns the current results, hooked lines included.
func (m *Manager) Regions() []recognition.Region {
	return m.deps.Results.Snapshot()
}

// SetTranslation manually overrides the translation of result i.
func (m *Manager) SetTranslation(i int, text string) error {
	if err := m.deps.Results.SetTranslation(i, text); err != nil {
		return err
	}
	m.notify(NoticeRegions)
	return nil
}

// Export writes the results to the configured path.
func (m *Manager) Export() (string, int, error) {
	n, err := m.deps.Results.Export(m.exportPath)
	if err != nil {
		return m.exportPath, 0, err
	}
	m.log.Info("results exported", "path", m.exportPath, "entries", n)
	return m.exportPath, n, nil
}

// Overlay lays out labels for a surface of the given size. In hook mode
// that is the last hooked line; otherwise the recognized regions.
func (m *Manager) Overlay(surface image.Point) []overlay.Placement {
	f, ok := m.Frame()
	if !ok || m.deps.Compositor == nil {
		return nil
	}
	frameSize := image.Pt(f.Width, f.Height)

	if m.gate.Active() {
		line, _, ok := m.hookLine.Load()
		if !ok {
			return nil
		}
		return m.deps.Compositor.LayoutHook(line.Translated, frameSize, surface)
	}

	source := frameSize
	if s, _, ok := m.source.Load(); ok && s.X > 0 && s.Y > 0 {
		source = s
	}
	regions := m.deps.Results.Snapshot()
	kept := regions[:0]
	for _, r := range regions {
		if r.Lang != results.HookLang {
			kept = append(kept, r)
		}
	}
	return m.deps.Compositor.Layout(kept, source, surface)
}

// Composite returns the latest frame with the overlay drawn at frame size.
func (m *Manager) Composite() (*image.RGBA, bool) {
	f, ok := m.Frame()
	if !ok {
		return nil, false
	}
	img := f.Image()
	if m.deps.Compositor != nil {
		m.deps.Compositor.Render(img, m.Overlay(image.Pt(f.Width, f.Height)))
	}
	return img, true
}

func (m *Manager) startLocked(ctx context.Context) error {
	p := pipeline.New(*m.target, m.settings.pipelineConfig(), pipeline.Deps{
		Capturer:   m.deps.Capturer,
		Recognizer: m.deps.Recognizer,
		Translator: m.deps.Translator,
		Gate:       &m.gate,
	}, m.pipeOpts...)

	done := make(chan struct{})
	go m.consume(p, done)
	if err := p.Start(ctx); err != nil {
		_ = p.Stop()
		<-done
		return err
	}
	m.pipe, m.consumed = p, done
	return nil
}

func (m *Manager) stopLocked() error {
	if m.pipe == nil {
		return nil
	}
	err := m.pipe.Stop()
	select {
	case <-m.consumed:
	case <-time.After(RestartTimeout):
		m.log.Warn("pipeline consumer did not finish", "run_id", m.pipe.RunID().String())
	}
	m.pipe, m.consumed = nil, nil
	return err
}

func (m *Manager) startHookLocked(ctx context.Context) error {
	if m.target.PID <= 0 {
		return apperrors.New(apperrors.HookFailed, "window has no process id").
			WithMetadata("target", m.target.Handle())
	}
	return m.deps.Hook.Start(ctx, m.target.PID)
}

func (m *Manager) stopHookLocked() {
	if m.deps.Hook == nil {
		return
	}
	if err := m.deps.Hook.Stop(); err != nil {
		m.log.Warn("hook stop", "error", err)
	}
}

// consume applies one pipeline's events until its channel closes.
func (m *Manager) consume(p *pipeline.Pipeline, done chan struct{}) {
	defer close(done)
	runID := p.RunID().String()
	for ev := range p.Events() {
		switch ev.Kind {
		case pipeline.FrameReady:
			m.frame.Store(ev.Frame)
			m.notify(NoticeFrame)
		case pipeline.RecognitionReady:
			if m.gate.Active() {
				continue
			}
			m.deps.Results.Replace(ev.Regions)
			m.source.Store(ev.Source)
			m.notify(NoticeRegions)
		case pipeline.StatusChanged:
			m.applyStatus(p.Target(), runID, ev)
		}
	}
}

func (m *Manager) applyStatus(t capture.Target, runID string, ev pipeline.Event) {
	switch ev.Status {
	case pipeline.StatusAttached:
		m.setStatus(StateAttached, "capturing "+t.Title, runID)
	case pipeline.StatusRecovered:
		m.setStatus(StateAttached, "capture recovered for "+t.Title, runID)
	case pipeline.StatusLost:
		m.setStatus(StateLost, "window lost, waiting for it to return", runID)
	case pipeline.StatusStopped:
		m.setStatus(StateStopped, "capture stopped", runID)
	}
}

func (m *Manager) setStatus(state, message, runID string) {
	m.statusMu.Lock()
	m.state, m.message, m.runID = state, message, runID
	m.statusMu.Unlock()
	m.notify(NoticeStatus)
}

func (m *Manager) notify(kind NoticeKind) {
	select {
	case m.notices <- Notice{Kind: kind, At: time.Now()}:
	default:
	}
}
