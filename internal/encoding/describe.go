package encoding

import (
	"bytes"
	"errors"
	"image"
)

var ErrUnknownPayload = errors.New("unrecognized image payload")

type Info struct {
	Codec  string
	Width  int
	Height int
}

// Describe identifies an encoded frame by its magic bytes. Dimensions are
// read for codecs with a registered image decoder and left zero otherwise.
func Describe(data []byte) (Info, error) {
	var info Info
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		info.Codec = "jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		info.Codec = "png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		info.Codec = "webp"
	default:
		return info, ErrUnknownPayload
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
	}
	return info, nil
}
