package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carla-relay-go/internal/types"
	"carla-relay-go/internal/worker"
)

// Frames is a stand-in camera producing a moving BGRA test pattern at a
// fixed rate. It implements relay.FrameSource.
type Frames struct {
	width  int
	height int
	fps    float64

	listenMu sync.Mutex
	mu       sync.Mutex
	onFrame  func(types.Frame)
	group    *worker.Group
}

func NewFrames(width, height int, fps float64) *Frames {
	if fps <= 0 {
		fps = 30
	}
	f := &Frames{width: width, height: height, fps: fps}
	f.group = worker.New("frame-simulator")
	f.group.Go("ticker", f.run)
	return f
}

func (f *Frames) Listen(onFrame func(types.Frame)) error {
	if onFrame == nil {
		return errors.New("simulator: nil frame callback")
	}
	if f.width <= 0 || f.height <= 0 {
		return errors.New("simulator: frame size must be positive")
	}
	f.listenMu.Lock()
	defer f.listenMu.Unlock()
	if f.group.Running() {
		return fmt.Errorf("simulator: %w", worker.ErrAlreadyStarted)
	}
	f.mu.Lock()
	f.onFrame = onFrame
	f.mu.Unlock()
	return f.group.Start(context.Background())
}

func (f *Frames) StopListening() error {
	f.listenMu.Lock()
	defer f.listenMu.Unlock()
	err := f.group.Stop()
	f.mu.Lock()
	f.onFrame = nil
	f.mu.Unlock()
	return err
}

func (f *Frames) run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / f.fps))
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			seq++
			f.mu.Lock()
			onFrame := f.onFrame
			f.mu.Unlock()
			if onFrame == nil {
				continue
			}
			onFrame(types.Frame{
				Seq:      seq,
				Width:    f.width,
				Height:   f.height,
				Format:   types.FormatBGRA,
				Data:     pattern(f.width, f.height, seq),
				Captured: now,
			})
		}
	}
}

// pattern draws a diagonal gradient that scrolls one pixel per frame, so
// dropped frames are visible on the receiving end.
func pattern(width, height int, seq uint64) []byte {
	data := make([]byte, width*height*4)
	shift := int(seq % 256)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			data[i+0] = byte((x + shift) % 256)
			data[i+1] = byte((y + shift) % 256)
			data[i+2] = byte((x + y) % 256)
			data[i+3] = 0xff
		}
	}
	return data
}
