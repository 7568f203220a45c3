package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

type Marshaler interface {
	Marshal(v any) ([]byte, error)
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
}

// Codec encodes structured values stored under a key.
type Codec interface {
	Marshaler
	Unmarshaler
	Name() string
}

// Codec names accepted by CodecByName.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

type jsonCodec struct{}

func (jsonCodec) Name() string                         { return CodecJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)        { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, dst any) error { return json.Unmarshal(data, dst) }

// cborCodec encodes with core deterministic options so equal values produce
// equal bytes.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() *cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder options: %v", err))
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decoder options: %v", err))
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) Name() string                         { return CodecCBOR }
func (c *cborCodec) Marshal(v any) ([]byte, error)        { return c.enc.Marshal(v) }
func (c *cborCodec) Unmarshal(data []byte, dst any) error { return c.dec.Unmarshal(data, dst) }

var (
	JSON Codec = jsonCodec{}
	CBOR Codec = newCBORCodec()
)

// CodecByName returns the codec for "json" or "cbor". An empty name is JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", CodecJSON:
		return JSON, nil
	case CodecCBOR:
		return CBOR, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// GetValue decodes the value under key into dst. It reports false, and leaves
// dst alone, when the key is missing.
func GetValue(s Storage, c Codec, key string, dst any) (bool, error) {
	data, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := c.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode %s value of %q: %w", c.Name(), key, err)
	}
	return true, nil
}

// SetValue encodes v and stores it under key.
func SetValue(s Storage, c Codec, key string, v any) error {
	data, err := c.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s value of %q: %w", c.Name(), key, err)
	}
	return s.Set(key, data)
}
