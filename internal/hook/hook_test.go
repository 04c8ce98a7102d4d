package hook

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
)

type fakeInstrumenter struct {
	mu      sync.Mutex
	ch      chan string
	pids    []int
	unsubs  int
	failErr error
}

func newFakeInstrumenter() *fakeInstrumenter {
	return &fakeInstrumenter{ch: make(chan string, 8)}
}

func (f *fakeInstrumenter) Subscribe(ctx context.Context, pid int) (<-chan string, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, nil, f.failErr
	}
	f.pids = append(f.pids, pid)
	return f.ch, func() {
		f.mu.Lock()
		f.unsubs++
		f.mu.Unlock()
	}, nil
}

type prefixTranslator struct{}

func (prefixTranslator) Translate(_ context.Context, src, dst, text string) string {
	return src + ">" + dst + ":" + text
}

func recv(t *testing.T, w *Worker) Text {
	t.Helper()
	select {
	case line := <-w.Lines():
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hook line")
		return Text{}
	}
}

func TestWorkerTranslatesLines(t *testing.T) {
	inst := newFakeInstrumenter()
	w := NewWorker(inst, prefixTranslator{})
	w.SetLanguages("ja", "en")

	if err := w.Start(context.Background(), 4321); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	inst.ch <- "  こんにちは  "
	got := recv(t, w)
	if got.Original != "こんにちは" || got.Translated != "ja>en:こんにちは" || got.PID != 4321 {
		t.Errorf("line = %+v", got)
	}
	if !w.Attached() {
		t.Error("worker should report attached")
	}
}

func TestWorkerSkipsBlankLines(t *testing.T) {
	inst := newFakeInstrumenter()
	w := NewWorker(inst, prefixTranslator{})
	if err := w.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	inst.ch <- "   "
	inst.ch <- "line"
	if got := recv(t, w); got.Original != "line" {
		t.Errorf("first delivered line = %q, want %q", got.Original, "line")
	}
}

func TestWorkerStopDetaches(t *testing.T) {
	inst := newFakeInstrumenter()
	w := NewWorker(inst, prefixTranslator{})
	if err := w.Start(context.Background(), 7); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.Attached() {
		t.Error("worker should be idle after Stop")
	}
	inst.mu.Lock()
	unsubs := inst.unsubs
	inst.mu.Unlock()
	if unsubs != 1 {
		t.Errorf("unsubscribe called %d times, want 1", unsubs)
	}

	inst.ch <- "late"
	select {
	case line := <-w.Lines():
		t.Errorf("received %+v after Stop", line)
	case <-time.After(50 * time.Millisecond):
	}

	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestWorkerRestartReplacesSubscription(t *testing.T) {
	inst := newFakeInstrumenter()
	w := NewWorker(inst, prefixTranslator{})
	ctx := context.Background()

	if err := w.Start(ctx, 10); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(ctx, 20); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer w.Stop()

	inst.mu.Lock()
	pids, unsubs := append([]int(nil), inst.pids...), inst.unsubs
	inst.mu.Unlock()
	if len(pids) != 2 || pids[1] != 20 || unsubs != 1 {
		t.Errorf("pids = %v, unsubs = %d", pids, unsubs)
	}

	inst.ch <- "x"
	if got := recv(t, w); got.PID != 20 {
		t.Errorf("line PID = %d, want 20", got.PID)
	}
}

func TestWorkerStartErrors(t *testing.T) {
	inst := newFakeInstrumenter()
	w := NewWorker(inst, prefixTranslator{})

	if err := w.Start(context.Background(), 0); !apperrors.IsCode(err, apperrors.HookFailed) {
		t.Errorf("Start(0) err = %v, want HookFailed", err)
	}

	inst.failErr = apperrors.New(apperrors.Internal, "no agent")
	if err := w.Start(context.Background(), 5); !apperrors.IsCode(err, apperrors.HookFailed) {
		t.Errorf("Start with failing instrumenter err = %v, want HookFailed", err)
	}
	if w.Attached() {
		t.Error("failed Start should leave the worker idle")
	}
}

func TestWorkerStreamEnd(t *testing.T) {
	inst := newFakeInstrumenter()
	w := NewWorker(inst, prefixTranslator{})
	if err := w.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	close(inst.ch)

	deadline := time.Now().Add(2 * time.Second)
	for w.Attached() {
		if time.Now().After(deadline) {
			t.Fatal("worker still attached after the stream ended")
		}
		time.Sleep(5 * time.Millisecond)
	}
	inst.mu.Lock()
	unsubs := inst.unsubs
	inst.mu.Unlock()
	if unsubs != 1 {
		t.Errorf("unsubs = %d, want 1", unsubs)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop after stream end: %v", err)
	}
}

// blockingTranslator parks until release is closed, ignoring ctx.
type blockingTranslator struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTranslator) Translate(_ context.Context, _, _, text string) string {
	close(b.entered)
	<-b.release
	return text
}

func TestWorkerStopTimesOut(t *testing.T) {
	inst := newFakeInstrumenter()
	tr := &blockingTranslator{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewWorker(inst, tr)
	if err := w.Start(context.Background(), 11); err != nil {
		t.Fatalf("Start: %v", err)
	}

	inst.ch <- "stuck"
	select {
	case <-tr.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("translator never called")
	}

	start := time.Now()
	err := w.Stop()
	elapsed := time.Since(start)
	if !apperrors.IsCode(err, apperrors.Timeout) {
		t.Errorf("Stop() = %v, want TIMEOUT", err)
	}
	if elapsed < StopTimeout || elapsed > StopTimeout+time.Second {
		t.Errorf("Stop() took %v, want about %v", elapsed, StopTimeout)
	}
	if w.Attached() {
		t.Error("worker should be detached after a timed-out Stop")
	}

	close(tr.release)
	select {
	case line := <-w.Lines():
		t.Errorf("line %+v delivered after Stop", line)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestExecInstrumenterStreamsStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	inst := ExecInstrumenter{Command: "echo hello {pid}"}
	lines, unsub, err := inst.Subscribe(context.Background(), 99)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	if len(got) != 1 || got[0] != "hello 99" {
		t.Errorf("lines = %q, want [\"hello 99\"]", got)
	}
}

func TestExecInstrumenterEmptyCommand(t *testing.T) {
	_, _, err := ExecInstrumenter{}.Subscribe(context.Background(), 1)
	if !apperrors.IsCode(err, apperrors.HookFailed) {
		t.Errorf("err = %v, want HookFailed", err)
	}
}
