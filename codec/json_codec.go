package codec

import (
	"github.com/bytedance/sonic"
)

// jsonAPI is sonic.ConfigStd that also rejects fields the destination record does
// not declare, so one record's JSON never decodes as another's.
var jsonAPI = sonic.Config{
	EscapeHTML:            true,
	SortMapKeys:           true,
	CompactMarshaler:      true,
	CopyString:            true,
	ValidateString:        true,
	DisallowUnknownFields: true,
}.Froze()

// JSONCodec serializes with sonic using the encoding/json compatible configuration,
// so output is byte-for-byte what the standard library would produce.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
