// Package hook streams text lines captured from inside the target process
// and translates them.
package hook

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

const (
	// StopTimeout bounds how long Stop waits for the worker.
	StopTimeout = 2 * time.Second
	// LineBuffer is the capacity of the translated line channel.
	LineBuffer = 32
)

// Instrumenter attaches to a process and streams the text it renders.
// Calling the returned unsubscribe function detaches; the line channel is
// closed once the subscription has ended.
type Instrumenter interface {
	Subscribe(ctx context.Context, pid int) (<-chan string, func(), error)
}

// Translator translates text, returning the input on failure.
type Translator interface {
	Translate(ctx context.Context, src, dst, text string) string
}

// Text is one hooked line with its translation.
type Text struct {
	Original   string
	Translated string
	PID        int
	At         time.Time
}

// Worker owns at most one subscription at a time.
type Worker struct {
	inst       Instrumenter
	translator Translator
	lines      chan Text
	log        *slog.Logger

	mu     sync.Mutex
	src    string
	dst    string
	pid    int
	gen    uint64
	cancel context.CancelFunc
	unsub  func()
	done   chan struct{}
}

func NewWorker(inst Instrumenter, tr Translator) *Worker {
	return &Worker{
		inst:       inst,
		translator: tr,
		lines:      make(chan Text, LineBuffer),
		src:        "auto",
		dst:        "en",
		log:        slog.Default().With("component", "hook"),
	}
}

// Lines delivers translated hook lines. It is never closed.
func (w *Worker) Lines() <-chan Text { return w.lines }

// SetLanguages changes the translation pair for subsequent lines.
func (w *Worker) SetLanguages(src, dst string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.src, w.dst = src, dst
}

// Attached reports whether a subscription is live. It turns false once the
// instrumenter stream ends.
func (w *Worker) Attached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done != nil
}

// Start subscribes to pid, replacing any existing subscription.
func (w *Worker) Start(ctx context.Context, pid int) error {
	if pid <= 0 {
		return apperrors.Newf(apperrors.HookFailed, "invalid process id %d", pid)
	}
	_ = w.Stop()

	ctx, cancel := context.WithCancel(ctx)
	ch, unsub, err := w.inst.Subscribe(ctx, pid)
	if err != nil {
		cancel()
		return apperrors.Wrap(err, apperrors.HookFailed, "attach hook").WithMetadata("pid", itoa(pid))
	}

	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.pid = pid
	w.cancel = cancel
	w.unsub = unsub
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go w.run(ctx, gen, pid, ch, done)
	w.log.Info("hook attached", "pid", pid)
	return nil
}

// Stop detaches and waits up to StopTimeout for the worker, proceeding on
// timeout. No line from the stopped subscription is delivered afterwards.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.done == nil {
		w.mu.Unlock()
		return nil
	}
	cancel, unsub, done, pid := w.cancel, w.unsub, w.done, w.pid
	w.gen++
	w.cancel, w.unsub, w.done = nil, nil, nil
	w.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	cancel()

	select {
	case <-done:
		w.log.Info("hook detached", "pid", pid)
		return nil
	case <-time.After(StopTimeout):
		w.log.Warn("hook worker did not stop in time", "pid", pid)
		return apperrors.New(apperrors.Timeout, "hook worker did not stop in time")
	}
}

func (w *Worker) run(ctx context.Context, gen uint64, pid int, ch <-chan string, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				w.log.Info("hook stream ended", "pid", pid)
				w.release(gen)
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			w.mu.Lock()
			src, dst := w.src, w.dst
			w.mu.Unlock()

			translated := w.translator.Translate(ctx, src, dst, line)
			w.emit(gen, Text{Original: line, Translated: translated, PID: pid, At: time.Now()})
		}
	}
}

// release drops the subscription of generation gen after its stream ended.
// A concurrent Stop or Start has already moved gen on and owns the cleanup.
func (w *Worker) release(gen uint64) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return
	}
	cancel, unsub := w.cancel, w.unsub
	w.gen++
	w.cancel, w.unsub, w.done = nil, nil, nil
	w.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

func (w *Worker) emit(gen uint64, t Text) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return
	}
	select {
	case w.lines <- t:
	default:
		w.log.Debug("hook line dropped, consumer behind")
	}
}
