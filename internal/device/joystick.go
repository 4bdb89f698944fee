package device

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"carla-relay-go/internal/control"
)

// Linux joystick API (linux/joystick.h) event types.
const (
	jsEventButton = 0x01
	jsEventAxis   = 0x02
	jsEventInit   = 0x80

	jsEventSize = 8
	axisMax     = 32767
)

const DefaultPathFormat = "/dev/input/js%d"

// Joystick reads events from a Linux joystick device node. Hats are
// reported by the kernel as a pair of axes, so no HatMotion events are
// produced.
type Joystick struct {
	controller int
	path       string
	f          *os.File
	caps       control.Capabilities
}

// padCapabilities is assumed when the driver cannot be queried.
var padCapabilities = control.Capabilities{Axes: 6, Buttons: 15, Hats: 1}

// Open fails if the device node does not exist or cannot be read.
func Open(controller int, pathFormat string) (*Joystick, error) {
	if pathFormat == "" {
		pathFormat = DefaultPathFormat
	}
	path := fmt.Sprintf(pathFormat, controller)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open joystick %d: %w", controller, err)
	}
	caps, err := queryCapabilities(f)
	if err != nil {
		caps = padCapabilities
	}
	return &Joystick{controller: controller, path: path, f: f, caps: caps}, nil
}

func (j *Joystick) Path() string { return j.path }

func (j *Joystick) Capabilities() control.Capabilities { return j.caps }

// Run delivers events to handle until ctx is done or the device goes away.
// The kernel replays the current state as init events on open, which seeds
// the adapter's raw sample.
func (j *Joystick) Run(ctx context.Context, handle func(control.InputEvent)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = j.f.SetReadDeadline(time.Now())
		case <-done:
		}
	}()
	err := ReadEvents(j.f, j.controller, handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (j *Joystick) Close() error {
	return j.f.Close()
}

// ReadEvents decodes js_event records from r until it fails.
func ReadEvents(r io.Reader, controller int, handle func(control.InputEvent)) error {
	var buf [jsEventSize]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		ev, ok := decodeEvent(buf, controller)
		if !ok {
			continue
		}
		handle(ev)
	}
}

func decodeEvent(buf [jsEventSize]byte, controller int) (control.InputEvent, bool) {
	value := int16(binary.LittleEndian.Uint16(buf[4:6]))
	kind := buf[6] &^ jsEventInit
	number := int(buf[7])

	switch kind {
	case jsEventButton:
		ev := control.InputEvent{Controller: controller, Kind: control.ButtonUp, Index: number}
		if value != 0 {
			ev.Kind = control.ButtonDown
		}
		return ev, true
	case jsEventAxis:
		v := float64(value) / axisMax
		if v < -1 {
			v = -1
		}
		return control.InputEvent{Controller: controller, Kind: control.AxisMotion, Index: number, Value: v}, true
	default:
		return control.InputEvent{}, false
	}
}
