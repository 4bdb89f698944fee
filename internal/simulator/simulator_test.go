package simulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carla-relay-go/internal/control"
	"carla-relay-go/internal/types"
	"carla-relay-go/internal/worker"
)

func TestFramesDeliverAndStop(t *testing.T) {
	src := NewFrames(8, 4, 200)
	var mu sync.Mutex
	var frames []types.Frame
	if err := src.Listen(func(f types.Frame) {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := src.StopListening(); err != nil {
		t.Fatalf("StopListening error: %v", err)
	}

	mu.Lock()
	n := len(frames)
	first := frames[0]
	mu.Unlock()
	if n < 3 {
		t.Fatalf("expected several frames, got %d", n)
	}
	if first.Width != 8 || first.Height != 4 || len(first.Data) != 8*4*4 || first.Format != types.FormatBGRA {
		t.Fatalf("unexpected frame %+v", first)
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(frames) != n {
		t.Fatalf("frames delivered after StopListening")
	}
}

func TestFramesRejectsNilCallback(t *testing.T) {
	if err := NewFrames(8, 4, 30).Listen(nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}

func TestFramesSecondListenKeepsRunningStream(t *testing.T) {
	src := NewFrames(8, 4, 200)
	var mu sync.Mutex
	var first, second int
	if err := src.Listen(func(types.Frame) {
		mu.Lock()
		first++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	err := src.Listen(func(types.Frame) {
		mu.Lock()
		second++
		mu.Unlock()
	})
	if !errors.Is(err, worker.ErrAlreadyStarted) {
		t.Fatalf("second Listen error = %v, want ErrAlreadyStarted", err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := src.StopListening(); err != nil {
		t.Fatalf("StopListening error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if first == 0 {
		t.Fatalf("original callback stopped receiving frames")
	}
	if second != 0 {
		t.Fatalf("rejected callback received %d frames", second)
	}
}

func TestInputsDriveAdapter(t *testing.T) {
	var mu sync.Mutex
	var states []types.ControlState
	adapter, err := control.NewAdapter(0, control.DefaultLayout, control.Capabilities{Axes: 6, Buttons: 15}, func(s types.ControlState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewAdapter error: %v", err)
	}

	in := NewInputs(0, control.DefaultLayout, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := in.Run(ctx, func(ev control.InputEvent) { adapter.HandleEvent(ev) }); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 {
		t.Fatalf("simulated inputs produced no control states")
	}
	maxThrottle := 0.0
	for _, s := range states {
		if s.Throttle > maxThrottle {
			maxThrottle = s.Throttle
		}
	}
	if maxThrottle < 0.9 {
		t.Fatalf("throttle should start near full, got %v", maxThrottle)
	}
}
