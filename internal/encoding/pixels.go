package encoding

import (
	"fmt"
	"image"

	"carla-relay-go/internal/types"
)

// ToRGBA converts frame pixels to canonical RGB order in an opaque RGBA
// image. The camera's BGRA alpha channel carries no information and is
// replaced with 0xff.
func ToRGBA(frame types.Frame) (*image.RGBA, error) {
	bpp := frame.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported pixel format %q", frame.Format)
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", frame.Width, frame.Height)
	}
	want := frame.Width * frame.Height * bpp
	if len(frame.Data) != want {
		return nil, fmt.Errorf("frame %d: have %d bytes, want %d for %dx%d %s",
			frame.Seq, len(frame.Data), want, frame.Width, frame.Height, frame.Format)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	src := frame.Data
	dst := img.Pix
	pixels := frame.Width * frame.Height
	switch frame.Format {
	case types.FormatBGRA:
		for i := 0; i < pixels; i++ {
			s := src[i*4 : i*4+4 : i*4+4]
			d := dst[i*4 : i*4+4 : i*4+4]
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
		}
	case types.FormatRGBA:
		for i := 0; i < pixels; i++ {
			s := src[i*4 : i*4+4 : i*4+4]
			d := dst[i*4 : i*4+4 : i*4+4]
			d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
		}
	case types.FormatRGB:
		for i := 0; i < pixels; i++ {
			s := src[i*3 : i*3+3 : i*3+3]
			d := dst[i*4 : i*4+4 : i*4+4]
			d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
		}
	case types.FormatGray:
		for i := 0; i < pixels; i++ {
			v := src[i]
			d := dst[i*4 : i*4+4 : i*4+4]
			d[0], d[1], d[2], d[3] = v, v, v, 0xff
		}
	}
	return img, nil
}
