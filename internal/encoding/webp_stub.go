//go:build !webp

package encoding

import "errors"

func newWebPEncoder(int) (Encoder, error) {
	return nil, errors.New("webp encoding not enabled; build with -tags webp")
}
