//go:build webp

package encoding

import (
	"bytes"

	"github.com/chai2010/webp"

	"carla-relay-go/internal/types"
)

type webpEncoder struct {
	quality float32
}

func newWebPEncoder(quality int) (Encoder, error) {
	return webpEncoder{quality: float32(quality)}, nil
}

func (webpEncoder) Name() string { return "webp" }

func (e webpEncoder) Encode(frame types.Frame) (types.EncodedPayload, error) {
	img, err := ToRGBA(frame)
	if err != nil {
		return types.EncodedPayload{}, err
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: e.quality}); err != nil {
		return types.EncodedPayload{}, err
	}
	return types.EncodedPayload{Seq: frame.Seq, Codec: "webp", Data: buf.Bytes()}, nil
}
