// Package codec serializes checkpoint payloads and wire envelopes.
//
// Three formats are supported, selected per connection by the codec byte of the
// frame header:
//
//	JSON    (0) human readable, easiest to debug
//	Binary  (1) fixed big-endian layout, smallest and fastest, no field names
//	Msgpack (2) self-describing like JSON but compact, tolerant of added fields
package codec

import (
	"errors"
	"fmt"
)

type CodecType byte

const (
	CodecTypeJSON    CodecType = 0
	CodecTypeBinary  CodecType = 1
	CodecTypeMsgpack CodecType = 2
)

// ErrUnsupportedType is returned when a codec is asked to handle a value it has no
// encoding for.
var ErrUnsupportedType = errors.New("codec: unsupported value type")

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	case CodecTypeMsgpack:
		return "msgpack"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// ParseCodecType maps a codec name as used in configuration to its type.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "json":
		return CodecTypeJSON, nil
	case "binary":
		return CodecTypeBinary, nil
	case "msgpack":
		return CodecTypeMsgpack, nil
	}
	return 0, fmt.Errorf("unknown codec %q (want json|binary|msgpack)", name)
}

func GetCodec(codecType CodecType) Codec {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}
	case CodecTypeMsgpack:
		return &MsgpackCodec{}
	}
	return &BinaryCodec{}
}
