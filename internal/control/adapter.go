package control

import (
	"errors"
	"math"
	"sync"

	"carla-relay-go/internal/metrics"
	"carla-relay-go/internal/types"
)

var ErrNilCallback = errors.New("control: change callback must not be nil")

// SteerDeadzone is the half-width of the steer range treated as centred.
const SteerDeadzone = 0.16

type EventKind int

const (
	AxisMotion EventKind = iota + 1
	ButtonDown
	ButtonUp
	HatMotion
)

// InputEvent is one change reported by an input device.
type InputEvent struct {
	Controller int
	Kind       EventKind
	Index      int
	Value      float64
	Hat        [2]int
}

// Layout maps gamepad axes and buttons to controls.
type Layout struct {
	ThrottleAxis    int
	BrakeAxis       int
	SteerAxis       int
	HandBrakeButton int
	ForwardButton   int
	ReverseButton   int
	ResetButton     int
}

// DefaultLayout matches an Xbox-style pad: triggers on axes 4 and 5,
// left stick X on axis 0.
var DefaultLayout = Layout{
	ThrottleAxis:    5,
	BrakeAxis:       4,
	SteerAxis:       0,
	HandBrakeButton: 0,
	ForwardButton:   11,
	ReverseButton:   12,
	ResetButton:     6,
}

// Capabilities is the number of axes, buttons and hats a device reports.
type Capabilities struct {
	Axes    int
	Buttons int
	Hats    int
}

// RawInputSample is the current state of one device. An axis missing from
// Axes has not moved since the adapter was created.
type RawInputSample struct {
	Axes    map[int]float64
	Buttons map[int]bool
	Hats    map[int][2]int
}

func newRawInputSample(caps Capabilities) *RawInputSample {
	s := &RawInputSample{
		Axes:    make(map[int]float64, caps.Axes),
		Buttons: make(map[int]bool, caps.Buttons),
		Hats:    make(map[int][2]int, caps.Hats),
	}
	for i := 0; i < caps.Buttons; i++ {
		s.Buttons[i] = false
	}
	for i := 0; i < caps.Hats; i++ {
		s.Hats[i] = [2]int{0, 0}
	}
	return s
}

// Adapter turns device events from one controller into ControlState
// values. HandleEvent must be called from a single goroutine; the raw
// sample is never shared.
type Adapter struct {
	controller int
	layout     Layout
	onChange   func(types.ControlState)

	raw     *RawInputSample
	reverse bool

	mu      sync.Mutex
	last    types.ControlState
	emitted bool
}

func NewAdapter(controller int, layout Layout, caps Capabilities, onChange func(types.ControlState)) (*Adapter, error) {
	if onChange == nil {
		return nil, ErrNilCallback
	}
	return &Adapter{
		controller: controller,
		layout:     layout,
		onChange:   onChange,
		raw:        newRawInputSample(caps),
	}, nil
}

// HandleEvent applies ev and emits the derived state if it differs from the
// last one emitted. It reports whether the callback fired.
func (a *Adapter) HandleEvent(ev InputEvent) bool {
	if ev.Controller != a.controller {
		return false
	}
	switch ev.Kind {
	case AxisMotion:
		a.raw.Axes[ev.Index] = round2(ev.Value)
	case ButtonDown:
		a.raw.Buttons[ev.Index] = true
	case ButtonUp:
		a.raw.Buttons[ev.Index] = false
	case HatMotion:
		a.raw.Hats[ev.Index] = ev.Hat
	default:
		return false
	}

	state := a.derive()

	a.mu.Lock()
	if a.emitted && state == a.last {
		a.mu.Unlock()
		return false
	}
	a.last = state
	a.emitted = true
	a.mu.Unlock()

	metrics.ControlChanges.Inc()
	a.onChange(state)
	return true
}

// Current returns the last emitted state.
func (a *Adapter) Current() (types.ControlState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.emitted
}

func (a *Adapter) derive() types.ControlState {
	raw := a.raw
	l := a.layout

	throttle := 0.0
	if v, ok := raw.Axes[l.ThrottleAxis]; ok {
		throttle = round2(clamp((v+1)/2, 0, 1))
	}
	brake := 0.0
	if v, ok := raw.Axes[l.BrakeAxis]; ok {
		brake = round2(clamp((v+1)/2, 0, 1))
	}
	steer := 0.0
	if v, ok := raw.Axes[l.SteerAxis]; ok {
		steer = clamp(round2(v), -1, 1)
	}

	if raw.Buttons[l.ForwardButton] {
		a.reverse = false
	} else if raw.Buttons[l.ReverseButton] {
		a.reverse = true
	}

	return types.ControlState{
		Throttle:  throttle,
		Brake:     brake,
		Steer:     ApplyDeadzone(steer),
		HandBrake: raw.Buttons[l.HandBrakeButton],
		Reverse:   a.reverse,
		Reset:     raw.Buttons[l.ResetButton],
	}
}

// ApplyDeadzone snaps steer values in [-0.16, 0.16] to zero.
func ApplyDeadzone(steer float64) float64 {
	if steer >= -SteerDeadzone && steer <= SteerDeadzone {
		return 0
	}
	return steer
}

// round2 rounds half to even, so 0.125 becomes 0.12 and 0.625 becomes 0.62.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
