package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

func newTestCoordinator() *Coordinator {
	return New(5*time.Second, zerolog.Nop())
}

func TestShutdown(t *testing.T) {
	c := newTestCoordinator()
	backend := &mockCloser{}
	hookRan := false

	c.Register("storage", backend, PriorityStorage)
	c.RegisterHook("metrics", func(ctx context.Context) error {
		hookRan = true
		return nil
	}, PriorityMetrics)

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !backend.closed {
		t.Error("expected component to be closed")
	}
	if !hookRan {
		t.Error("expected hook to run")
	}
}

func TestShutdownOnce(t *testing.T) {
	c := newTestCoordinator()
	calls := 0
	c.RegisterHook("count", func(ctx context.Context) error {
		calls++
		return nil
	}, PriorityMetrics)

	c.Shutdown()
	c.Shutdown()

	if calls != 1 {
		t.Errorf("expected hook to run once, ran %d times", calls)
	}
}

func TestShutdownPriority(t *testing.T) {
	c := newTestCoordinator()
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) Func {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	c.RegisterHook("storage", record("storage"), PriorityStorage)
	c.RegisterHook("metrics", record("metrics"), PriorityMetrics)
	c.RegisterHook("late-metrics", record("late-metrics"), PriorityMetrics)

	c.Shutdown()

	want := []string{"metrics", "late-metrics", "storage"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestShutdownWithError(t *testing.T) {
	c := newTestCoordinator()
	expectedErr := errors.New("close failed")
	failing := &mockCloser{err: expectedErr}
	after := &mockCloser{}

	c.Register("failing", failing, PriorityMetrics)
	c.Register("after", after, PriorityStorage)

	if err := c.Shutdown(); !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
	if !after.closed {
		t.Error("a failing step should not stop later steps")
	}
}

func TestShutdownTimeout(t *testing.T) {
	c := New(50*time.Millisecond, zerolog.Nop())
	skipped := &mockCloser{}

	c.RegisterHook("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}, PriorityMetrics)
	c.Register("skipped", skipped, PriorityStorage)

	if err := c.Shutdown(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if skipped.closed {
		t.Error("steps after the timeout should be skipped")
	}
}

func TestContextTrigger(t *testing.T) {
	c := newTestCoordinator()
	ctx := c.Context(context.Background())

	select {
	case <-ctx.Done():
		t.Fatal("context canceled before trigger")
	default:
	}

	c.Trigger()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled after trigger")
	}
}

func TestContextCanceledByShutdown(t *testing.T) {
	c := newTestCoordinator()
	ctx := c.Context(context.Background())

	c.Shutdown()

	if ctx.Err() == nil {
		t.Error("expected Shutdown to cancel the run context")
	}
}

func TestTriggerWithoutContext(t *testing.T) {
	c := newTestCoordinator()
	c.Trigger()
	if err := c.Shutdown(); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
