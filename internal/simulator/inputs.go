package simulator

import (
	"context"
	"math"
	"time"

	"carla-relay-go/internal/control"
)

// Inputs scripts a gamepad: the stick sweeps left and right, the throttle
// trigger pulses and the reverse selector toggles every few seconds.
type Inputs struct {
	controller int
	layout     control.Layout
	rate       time.Duration
}

func NewInputs(controller int, layout control.Layout, rate time.Duration) *Inputs {
	if rate <= 0 {
		rate = time.Second / 30
	}
	return &Inputs{controller: controller, layout: layout, rate: rate}
}

// Capabilities mirrors a typical pad so the adapter allocates the same
// sample it would for real hardware.
func (in *Inputs) Capabilities() control.Capabilities {
	return control.Capabilities{Axes: 6, Buttons: 15, Hats: 1}
}

// Run delivers events to handle until ctx is done.
func (in *Inputs) Run(ctx context.Context, handle func(control.InputEvent)) error {
	ticker := time.NewTicker(in.rate)
	defer ticker.Stop()
	start := time.Now()
	reverse := false
	lastToggle := start

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			handle(control.InputEvent{
				Controller: in.controller,
				Kind:       control.AxisMotion,
				Index:      in.layout.SteerAxis,
				Value:      math.Sin(t / 2),
			})
			handle(control.InputEvent{
				Controller: in.controller,
				Kind:       control.AxisMotion,
				Index:      in.layout.ThrottleAxis,
				Value:      math.Cos(t),
			})
			if now.Sub(lastToggle) >= 5*time.Second {
				lastToggle = now
				reverse = !reverse
				button := in.layout.ForwardButton
				if reverse {
					button = in.layout.ReverseButton
				}
				handle(control.InputEvent{Controller: in.controller, Kind: control.ButtonDown, Index: button})
				handle(control.InputEvent{Controller: in.controller, Kind: control.ButtonUp, Index: button})
			}
		}
	}
}
