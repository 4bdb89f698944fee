package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartStopJoinsLoops(t *testing.T) {
	var active atomic.Int32
	var iterations atomic.Int64
	g := New("test")
	for i := 0; i < 3; i++ {
		g.Go("loop", func(ctx context.Context) {
			active.Add(1)
			defer active.Add(-1)
			Loop(func(ctx context.Context) {
				iterations.Add(1)
				select {
				case <-ctx.Done():
				case <-time.After(5 * time.Millisecond):
				}
			})(ctx)
		})
	}

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if !g.Running() {
		t.Fatalf("group not running after start")
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stop error: %v", err)
	}
	if n := active.Load(); n != 0 {
		t.Fatalf("%d loops still running after stop", n)
	}

	after := iterations.Load()
	time.Sleep(20 * time.Millisecond)
	if iterations.Load() != after {
		t.Fatalf("work continued after stop")
	}
}

func TestDoubleStartFails(t *testing.T) {
	g := New("test")
	g.Go("idle", func(ctx context.Context) { <-ctx.Done() })
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	defer g.Stop()

	if err := g.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start returned %v", err)
	}
	if !g.Running() {
		t.Fatalf("second start corrupted running state")
	}
}

func TestSetupErrorPropagates(t *testing.T) {
	wantErr := errors.New("device not found")
	launched := false
	g := New("test", WithSetup(func(context.Context) error { return wantErr }))
	g.Go("never", func(ctx context.Context) { launched = true })

	if err := g.Start(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("unexpected start error: %v", err)
	}
	if g.Running() {
		t.Fatalf("group running after failed setup")
	}
	time.Sleep(5 * time.Millisecond)
	if launched {
		t.Fatalf("loop launched after failed setup")
	}
}

func TestTeardownRunsAfterLoopsExit(t *testing.T) {
	var exited atomic.Bool
	var sawExited bool
	g := New("test", WithTeardown(func() error {
		sawExited = exited.Load()
		return nil
	}))
	g.Go("loop", func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		exited.Store(true)
	})

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stop error: %v", err)
	}
	if !sawExited {
		t.Fatalf("teardown ran before loop exited")
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	called := false
	g := New("test", WithTeardown(func() error { called = true; return nil }))
	if err := g.Stop(); err != nil {
		t.Fatalf("stop error: %v", err)
	}
	if called {
		t.Fatalf("teardown ran for a group that never started")
	}
}

func TestRestartAfterStop(t *testing.T) {
	var starts atomic.Int32
	g := New("test")
	g.Go("loop", func(ctx context.Context) {
		starts.Add(1)
		<-ctx.Done()
	})
	for i := 0; i < 2; i++ {
		if err := g.Start(context.Background()); err != nil {
			t.Fatalf("start %d error: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
		if err := g.Stop(); err != nil {
			t.Fatalf("stop %d error: %v", i, err)
		}
	}
	if starts.Load() != 2 {
		t.Fatalf("expected 2 loop starts, got %d", starts.Load())
	}
}
