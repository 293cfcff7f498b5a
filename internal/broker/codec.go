package broker

import (
	"encoding/json"
	"fmt"
)

// Payload is a decoded message body.
type Payload map[string]any

// Codec converts between structured values and wire bytes.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (Payload, error)
}

// JSONCodec encodes payloads as JSON objects.
type JSONCodec struct{}

// Encode marshals v as JSON.
func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return data, nil
}

// Decode unmarshals data into a Payload. Arrays, scalars and null are rejected.
func (JSONCodec) Decode(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrNotObject)
	}
	return p, nil
}
