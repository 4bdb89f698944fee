//go:build linux

package device

import (
	"os"

	"golang.org/x/sys/unix"

	"carla-relay-go/internal/control"
)

// _IOR('j', 0x11, __u8) and _IOR('j', 0x12, __u8).
const (
	jsiocgAxes    = 0x80016a11
	jsiocgButtons = 0x80016a12
)

// queryCapabilities goes through SyscallConn so the descriptor stays in
// non-blocking mode and read deadlines keep working.
func queryCapabilities(f *os.File) (control.Capabilities, error) {
	conn, err := f.SyscallConn()
	if err != nil {
		return control.Capabilities{}, err
	}
	var axes, buttons int
	var ioctlErr error
	err = conn.Control(func(fd uintptr) {
		if axes, ioctlErr = unix.IoctlGetInt(int(fd), jsiocgAxes); ioctlErr != nil {
			return
		}
		buttons, ioctlErr = unix.IoctlGetInt(int(fd), jsiocgButtons)
	})
	if err != nil {
		return control.Capabilities{}, err
	}
	if ioctlErr != nil {
		return control.Capabilities{}, ioctlErr
	}
	// The ioctls write a single byte.
	return control.Capabilities{Axes: axes & 0xff, Buttons: buttons & 0xff}, nil
}
