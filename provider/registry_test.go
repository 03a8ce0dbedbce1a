package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeProvider struct {
	name      string
	available bool
	closed    bool
}

func (p *fakeProvider) Name() string                       { return p.name }
func (p *fakeProvider) IsAvailable(_ context.Context) bool { return p.available }
func (p *fakeProvider) Close() error                       { p.closed = true; return nil }

func TestRegistry_GetOrCreateCachesInstance(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	calls := 0
	reg.RegisterFactory("fake", func(cfg map[string]any) (*fakeProvider, error) {
		calls++
		return &fakeProvider{name: "fake", available: true}, nil
	})

	a, err := reg.GetOrCreate("fake", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := reg.GetOrCreate("fake", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatal("expected cached instance to be reused")
	}
	if calls != 1 {
		t.Fatalf("expected factory to run once, ran %d times", calls)
	}
}

func TestRegistry_GetOrCreateUnknownName(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	if _, err := reg.GetOrCreate("missing", nil); err == nil {
		t.Fatal("expected error for unregistered factory")
	}
}

func TestRegistry_FactoryErrorNotCached(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	fail := true
	reg.RegisterFactory("flaky", func(cfg map[string]any) (*fakeProvider, error) {
		if fail {
			return nil, errors.New("init failed")
		}
		return &fakeProvider{name: "flaky"}, nil
	})

	if _, err := reg.GetOrCreate("flaky", nil); err == nil {
		t.Fatal("expected factory error")
	}
	if _, ok := reg.Get("flaky"); ok {
		t.Fatal("failed construction must not be cached")
	}

	fail = false
	if _, err := reg.GetOrCreate("flaky", nil); err != nil {
		t.Fatalf("expected success after factory recovers: %v", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	reg.RegisterFactory("a", func(cfg map[string]any) (*fakeProvider, error) {
		return &fakeProvider{name: "a"}, nil
	})
	if !reg.Registered("a") {
		t.Fatal("expected a to be registered")
	}
	if reg.Registered("b") {
		t.Fatal("expected b to be unknown")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	for _, name := range []string{"kuaishou", "bcut", "whispercpp"} {
		reg.RegisterFactory(name, func(cfg map[string]any) (*fakeProvider, error) {
			return &fakeProvider{}, nil
		})
	}
	got := reg.List()
	want := []string{"bcut", "kuaishou", "whispercpp"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRegistry_CloseReleasesInstances(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	reg.RegisterFactory("fake", func(cfg map[string]any) (*fakeProvider, error) {
		return &fakeProvider{name: "fake"}, nil
	})

	inst, err := reg.GetOrCreate("fake", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !inst.closed {
		t.Fatal("expected instance to be closed")
	}
	if _, ok := reg.Get("fake"); ok {
		t.Fatal("expected instance cache to be cleared")
	}
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	reg := NewRegistry[*fakeProvider]()
	calls := 0
	reg.RegisterFactory("fake", func(cfg map[string]any) (*fakeProvider, error) {
		calls++
		return &fakeProvider{name: "fake"}, nil
	})

	var wg sync.WaitGroup
	results := make([]*fakeProvider, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, err := reg.GetOrCreate("fake", nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = inst
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected factory to run once, ran %d times", calls)
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate must return one instance")
		}
	}
}
