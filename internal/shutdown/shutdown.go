// Package shutdown cancels a command run on SIGINT/SIGTERM and runs the
// registered cleanup once the run ends, however it ends.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Closer is a component released at the end of a run.
type Closer interface {
	Close() error
}

// Func performs cleanup at the end of a run.
type Func func(ctx context.Context) error

// Cleanup order: lower runs first.
const (
	PriorityMetrics = 10 // Flush run metrics while outputs are still reachable
	PriorityStorage = 80 // Storage backends last
)

// Coordinator owns the run context and the cleanup list of one command.
type Coordinator struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu    sync.Mutex
	steps []step

	once   sync.Once
	cancel context.CancelFunc
}

type step struct {
	name     string
	run      Func
	priority int
}

// New creates a coordinator whose cleanup may take at most timeout.
func New(timeout time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		timeout: timeout,
		logger:  logger.With().Str("component", "shutdown").Logger(),
		cancel:  func() {},
	}
}

// Context returns a child of parent that is canceled on SIGINT or
// SIGTERM, or when Trigger is called.
func (c *Coordinator) Context(parent context.Context) context.Context {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = func() {
		cancel()
		stop()
	}
	c.mu.Unlock()
	return ctx
}

// Trigger cancels the run context.
func (c *Coordinator) Trigger() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	cancel()
}

// Register closes component during cleanup.
func (c *Coordinator) Register(name string, component Closer, priority int) {
	c.RegisterHook(name, func(context.Context) error { return component.Close() }, priority)
}

// RegisterHook runs fn during cleanup.
func (c *Coordinator) RegisterHook(name string, fn Func, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{name: name, run: fn, priority: priority})
}

// Shutdown runs every registered step in priority order and releases the
// signal handler. Steps left when the timeout expires are skipped. It
// returns the first error. Later calls do nothing.
func (c *Coordinator) Shutdown() error {
	var firstErr error
	c.once.Do(func() {
		c.Trigger()

		c.mu.Lock()
		steps := append([]step(nil), c.steps...)
		c.mu.Unlock()
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].priority < steps[j].priority })

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		for _, s := range steps {
			if ctx.Err() != nil {
				c.logger.Warn().Str("step", s.name).Msg("Shutdown timeout reached, skipping remaining steps")
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				return
			}
			if err := s.run(ctx); err != nil {
				c.logger.Error().Err(err).Str("step", s.name).Msg("Shutdown step failed")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	})
	return firstErr
}
