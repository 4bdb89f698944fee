package encoding

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"strings"

	"carla-relay-go/internal/types"
)

const DefaultQuality = 80

// Encoder compresses one frame into one payload.
type Encoder interface {
	Name() string
	Encode(frame types.Frame) (types.EncodedPayload, error)
}

// New returns the encoder for codec ("jpeg", "png" or "webp").
func New(codec string, quality int) (Encoder, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "", "jpeg", "jpg":
		return jpegEncoder{quality: quality}, nil
	case "png":
		return pngEncoder{}, nil
	case "webp":
		return newWebPEncoder(quality)
	default:
		return nil, fmt.Errorf("unsupported frame codec %q", codec)
	}
}

type jpegEncoder struct {
	quality int
}

func (jpegEncoder) Name() string { return "jpeg" }

func (e jpegEncoder) Encode(frame types.Frame) (types.EncodedPayload, error) {
	img, err := ToRGBA(frame)
	if err != nil {
		return types.EncodedPayload{}, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return types.EncodedPayload{}, err
	}
	return types.EncodedPayload{Seq: frame.Seq, Codec: "jpeg", Data: buf.Bytes()}, nil
}

type pngEncoder struct{}

func (pngEncoder) Name() string { return "png" }

func (pngEncoder) Encode(frame types.Frame) (types.EncodedPayload, error) {
	img, err := ToRGBA(frame)
	if err != nil {
		return types.EncodedPayload{}, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return types.EncodedPayload{}, err
	}
	return types.EncodedPayload{Seq: frame.Seq, Codec: "png", Data: buf.Bytes()}, nil
}
