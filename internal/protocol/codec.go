package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns outbound messages into frame payloads. Binary codecs are sent
// as binary websocket frames.
type Codec interface {
	Name() string
	Binary() bool
	Encode(v any) ([]byte, error)
	Decode(b []byte, v any) error
}

// CodecFor returns the codec for a HELLO encoding. Empty means JSON.
func CodecFor(name string) (Codec, error) {
	switch name {
	case "", EncodingJSON:
		return JSON, nil
	case EncodingMsgpack:
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return EncodingJSON }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Decode(b []byte, v any) error { return json.Unmarshal(b, v) }

// msgpackCodec reuses the json struct tags so both encodings share field
// names.
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return EncodingMsgpack }

func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
