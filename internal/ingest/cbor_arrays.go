package ingest

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	tagMultiDimArray = 40
	tagUint8         = 64
)

// extractPixels accepts the pixel payload as a plain byte string, an RFC
// 8746 uint8 typed array (tag 64), or a multi-dimensional array (tag 40)
// wrapping one.
func extractPixels(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case cbor.Tag:
		switch v.Number {
		case tagUint8:
			data, ok := v.Content.([]byte)
			if !ok {
				return nil, fmt.Errorf("typed array content %T", v.Content)
			}
			return data, nil
		case tagMultiDimArray:
			items, ok := v.Content.([]any)
			if !ok || len(items) != 2 {
				return nil, fmt.Errorf("invalid multidim array content")
			}
			return extractPixels(items[1])
		default:
			return nil, fmt.Errorf("unsupported typed array tag %d", v.Number)
		}
	default:
		return nil, fmt.Errorf("unsupported pixel payload %T", value)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}
