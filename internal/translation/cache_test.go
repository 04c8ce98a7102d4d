package translation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProvider struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	fn    func(src, dst, text string) string
}

func (f *fakeProvider) Translate(_ context.Context, src, dst, text string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.fn != nil {
		return f.fn(src, dst, text), nil
	}
	return "[" + dst + "] " + text, nil
}

type memStore struct {
	mu      sync.Mutex
	data    map[Key]string
	failGet bool
}

func (m *memStore) Get(_ context.Context, k Key) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", false, errors.New("store down")
	}
	v, ok := m.data[k]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, k Key, v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[Key]string)
	}
	m.data[k] = v
	return nil
}

func TestCacheMemoizes(t *testing.T) {
	p := &fakeProvider{}
	c := NewCache(p)
	ctx := context.Background()

	first := c.Translate(ctx, "ja", "en", "こんにちは")
	second := c.Translate(ctx, "ja", "en", "こんにちは")

	if first != "[en] こんにちは" || second != first {
		t.Errorf("Translate = %q then %q", first, second)
	}
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

func TestCacheKeyIncludesLanguages(t *testing.T) {
	p := &fakeProvider{}
	c := NewCache(p)
	ctx := context.Background()

	c.Translate(ctx, "ja", "en", "hi")
	c.Translate(ctx, "ja", "de", "hi")
	c.Translate(ctx, "auto", "en", "hi")

	if n := p.calls.Load(); n != 3 {
		t.Errorf("provider calls = %d, want 3", n)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestCacheConcurrentSingleCall(t *testing.T) {
	p := &fakeProvider{delay: 20 * time.Millisecond}
	c := NewCache(p)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Translate(context.Background(), "auto", "en", "START")
		}()
	}
	wg.Wait()

	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want exactly 1", n)
	}
	for i, r := range results {
		if r != "[en] START" {
			t.Errorf("results[%d] = %q", i, r)
		}
	}
}

func TestCacheFailsOpenWithoutCaching(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider unreachable")}
	c := NewCache(p)
	ctx := context.Background()

	if got := c.Translate(ctx, "ja", "en", "テスト"); got != "テスト" {
		t.Errorf("Translate on failure = %q, want source text", got)
	}
	c.Translate(ctx, "ja", "en", "テスト")
	if n := p.calls.Load(); n != 2 {
		t.Errorf("provider calls = %d, want 2 (failures not cached)", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCacheWhitespaceSkipsProvider(t *testing.T) {
	p := &fakeProvider{}
	c := NewCache(p)

	if got := c.Translate(context.Background(), "auto", "en", "  \t\n"); got != "" {
		t.Errorf("Translate(whitespace) = %q, want empty", got)
	}
	if p.calls.Load() != 0 {
		t.Error("provider should not be called for whitespace")
	}
}

func TestCacheUsesStore(t *testing.T) {
	store := &memStore{data: map[Key]string{{Src: "ja", Dst: "en", Text: "猫"}: "cat"}}
	p := &fakeProvider{}
	c := NewCache(p, WithStore(store))
	ctx := context.Background()

	if got := c.Translate(ctx, "ja", "en", "猫"); got != "cat" {
		t.Errorf("Translate = %q, want cat from store", got)
	}
	if p.calls.Load() != 0 {
		t.Error("provider should not be called on store hit")
	}

	c.Translate(ctx, "ja", "en", "犬")
	if v, ok, _ := store.Get(ctx, Key{Src: "ja", Dst: "en", Text: "犬"}); !ok || v != "[en] 犬" {
		t.Errorf("store entry = (%q, %v), want written after provider success", v, ok)
	}
}

func TestCacheStoreErrorsIgnored(t *testing.T) {
	p := &fakeProvider{}
	c := NewCache(p, WithStore(&memStore{failGet: true}))

	if got := c.Translate(context.Background(), "auto", "en", "go"); got != "[en] go" {
		t.Errorf("Translate = %q, want provider result", got)
	}
}
