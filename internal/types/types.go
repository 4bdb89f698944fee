package types

import "time"

// ControlState is the normalized vehicle control derived from a gamepad.
// Values are comparable with ==.
type ControlState struct {
	Throttle  float64 `json:"throttle" cbor:"throttle"`
	Brake     float64 `json:"brake" cbor:"brake"`
	Steer     float64 `json:"steer" cbor:"steer"`
	HandBrake bool    `json:"hand_brake" cbor:"hand_brake"`
	Reverse   bool    `json:"reverse" cbor:"reverse"`
	Reset     bool    `json:"reset" cbor:"reset"`
}

type PixelFormat string

const (
	FormatBGRA PixelFormat = "bgra"
	FormatRGBA PixelFormat = "rgba"
	FormatRGB  PixelFormat = "rgb"
	FormatGray PixelFormat = "gray"
)

// BytesPerPixel returns 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatBGRA, FormatRGBA:
		return 4
	case FormatRGB:
		return 3
	case FormatGray:
		return 1
	default:
		return 0
	}
}

// Frame is a raw camera image as delivered by the frame source.
type Frame struct {
	Seq      uint64
	Width    int
	Height   int
	Format   PixelFormat
	Data     []byte
	Captured time.Time
}

// EncodedPayload is a compressed Frame, sent as one datagram.
type EncodedPayload struct {
	Seq   uint64
	Codec string
	Data  []byte
}

// Pose is the camera mount transform relative to the followed actor.
// Location in metres, rotation in degrees.
type Pose struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Z     float64 `yaml:"z" json:"z"`
	Pitch float64 `yaml:"pitch" json:"pitch"`
	Yaw   float64 `yaml:"yaw" json:"yaw"`
	Roll  float64 `yaml:"roll" json:"roll"`
}
