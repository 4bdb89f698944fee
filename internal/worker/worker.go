package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

var ErrAlreadyStarted = errors.New("worker group already started")

// Group runs a set of loops that share one cancellation context. All loops
// start together and stop together.
type Group struct {
	name     string
	setup    func(ctx context.Context) error
	teardown func() error

	mu      sync.Mutex
	loops   []loop
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

type loop struct {
	name string
	fn   func(ctx context.Context)
}

type Option func(*Group)

// WithSetup runs fn before any loop is launched. An error aborts Start.
func WithSetup(fn func(ctx context.Context) error) Option {
	return func(g *Group) { g.setup = fn }
}

// WithTeardown runs fn after every loop has exited.
func WithTeardown(fn func() error) Option {
	return func(g *Group) { g.teardown = fn }
}

func New(name string, opts ...Option) *Group {
	g := &Group{name: name}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Go declares a loop. fn must return once ctx is done.
func (g *Group) Go(name string, fn func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loops = append(g.loops, loop{name: name, fn: fn})
}

// Loop turns a unit of work into a loop that runs until ctx is done. step
// should block for a bounded time so cancellation is observed promptly.
func Loop(step func(ctx context.Context)) func(ctx context.Context) {
	return func(ctx context.Context) {
		for ctx.Err() == nil {
			step(ctx)
		}
	}
}

func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return fmt.Errorf("%s: %w", g.name, ErrAlreadyStarted)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if g.setup != nil {
		if err := g.setup(runCtx); err != nil {
			cancel()
			return err
		}
	}

	g.cancel = cancel
	g.running = true
	g.wg.Add(len(g.loops))
	for _, l := range g.loops {
		go func(l loop) {
			defer g.wg.Done()
			l.fn(runCtx)
		}(l)
	}
	log.Printf("%s: started %d worker(s)", g.name, len(g.loops))
	return nil
}

// Stop cancels every loop, waits for them to exit and then runs teardown.
// It is a no-op when the group is not running.
func (g *Group) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return nil
	}

	g.cancel()
	g.wg.Wait()
	g.running = false
	g.cancel = nil
	log.Printf("%s: stopped", g.name)

	if g.teardown != nil {
		return g.teardown()
	}
	return nil
}

func (g *Group) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
