//go:build !linux

package device

import (
	"errors"
	"os"

	"carla-relay-go/internal/control"
)

func queryCapabilities(*os.File) (control.Capabilities, error) {
	return control.Capabilities{}, errors.New("joystick capabilities: unsupported platform")
}
