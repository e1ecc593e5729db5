// Package codec turns values into the text stored in Redis and back.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSerialization wraps every encode or decode failure.
var ErrSerialization = errors.New("serialization error")

// Codec is a textual serializer. Decode must accept anything Encode produced.
type Codec interface {
	// Encode renders v as text
	Encode(v any) (string, error)
	// Decode parses s into the value pointed to by dest
	Decode(s string, dest any) error
}

// NewJSON returns the JSON codec.
func NewJSON() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: encode %T: %v", ErrSerialization, v, err)
	}
	return string(b), nil
}

func (jsonCodec) Decode(s string, dest any) error {
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return fmt.Errorf("%w: decode into %T: %v", ErrSerialization, dest, err)
	}
	return nil
}
