package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"carla-relay-go/internal/types"
)

// Codec converts a ControlState to and from its wire record.
type Codec interface {
	Name() string
	Encode(state types.ControlState) ([]byte, error)
	Decode(data []byte) (types.ControlState, error)
}

func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported control codec %q", name)
	}
}

// wireRecord uses pointers so a missing key can be told apart from a zero
// value on decode.
type wireRecord struct {
	Throttle  *float64 `json:"throttle" cbor:"throttle"`
	Brake     *float64 `json:"brake" cbor:"brake"`
	Steer     *float64 `json:"steer" cbor:"steer"`
	HandBrake *bool    `json:"hand_brake" cbor:"hand_brake"`
	Reverse   *bool    `json:"reverse" cbor:"reverse"`
	Reset     *bool    `json:"reset" cbor:"reset"`
}

func (w wireRecord) state() (types.ControlState, error) {
	var missing []string
	if w.Throttle == nil {
		missing = append(missing, "throttle")
	}
	if w.Brake == nil {
		missing = append(missing, "brake")
	}
	if w.Steer == nil {
		missing = append(missing, "steer")
	}
	if w.HandBrake == nil {
		missing = append(missing, "hand_brake")
	}
	if w.Reverse == nil {
		missing = append(missing, "reverse")
	}
	if w.Reset == nil {
		missing = append(missing, "reset")
	}
	if len(missing) > 0 {
		return types.ControlState{}, fmt.Errorf("control record missing %s", strings.Join(missing, ", "))
	}
	return types.ControlState{
		Throttle:  *w.Throttle,
		Brake:     *w.Brake,
		Steer:     *w.Steer,
		HandBrake: *w.HandBrake,
		Reverse:   *w.Reverse,
		Reset:     *w.Reset,
	}, nil
}

// JSONCodec is the default textual record: a flat UTF-8 JSON object with
// exactly the six control fields.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(state types.ControlState) ([]byte, error) {
	return json.Marshal(state)
}

func (JSONCodec) Decode(data []byte) (types.ControlState, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var record wireRecord
	if err := dec.Decode(&record); err != nil {
		return types.ControlState{}, fmt.Errorf("decode control record: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return types.ControlState{}, errors.New("decode control record: trailing data")
	}
	return record.state()
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(err)
	}
}

// CBORCodec carries the same six keys as a CBOR map, for links where the
// JSON text is too large.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Encode(state types.ControlState) ([]byte, error) {
	return cborEnc.Marshal(state)
}

func (CBORCodec) Decode(data []byte) (types.ControlState, error) {
	var record wireRecord
	if err := cborDec.Unmarshal(data, &record); err != nil {
		return types.ControlState{}, fmt.Errorf("decode control record: %w", err)
	}
	return record.state()
}
