package codec

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// MsgpackCodec serializes values implementing msgp.Marshaler / msgp.Unmarshaler.
// Decode rejects bytes left over after the record.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	m, ok := v.(msgp.Marshaler)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not msgp.Marshaler", ErrUnsupportedType, v)
	}
	return m.MarshalMsg(nil)
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	u, ok := v.(msgp.Unmarshaler)
	if !ok {
		return fmt.Errorf("%w: %T is not msgp.Unmarshaler", ErrUnsupportedType, v)
	}
	rest, err := u.UnmarshalMsg(data)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("codec: %d trailing bytes after %T", len(rest), v)
	}
	return nil
}

func (c *MsgpackCodec) Type() CodecType {
	return CodecTypeMsgpack
}
