package codec

import (
	"fmt"

	"checkpoint-rpc/message"
)

// EncodeEnvelope serializes env.Data with c, wraps it in a message.Wire together
// with errText, and serializes the wire record. A nil env encodes an error-only record.
func EncodeEnvelope(c Codec, env *message.Envelope, errText string) ([]byte, error) {
	wire := message.Wire{Error: errText}
	if env != nil {
		wire.Type = env.Type
		if raw, ok := env.Data.(message.Raw); ok {
			wire.Payload = raw
		} else if env.Data != nil {
			payload, err := c.Encode(env.Data)
			if err != nil {
				return nil, fmt.Errorf("encode %s payload: %w", env.Type, err)
			}
			wire.Payload = payload
		}
	}
	return c.Encode(&wire)
}

// DecodeEnvelope is the inverse of EncodeEnvelope. It returns the wire record's
// error text separately; when that text is non-empty the envelope is nil.
//
// A payload is decoded only when its type tag is known and it parses as that tag's
// record. Anything else is kept as message.Raw so that no caller ever reads one
// record's bytes as another's.
func DecodeEnvelope(c Codec, body []byte) (*message.Envelope, string, error) {
	var wire message.Wire
	if err := c.Decode(body, &wire); err != nil {
		return nil, "", fmt.Errorf("decode wire record: %w", err)
	}
	if wire.Error != "" {
		return nil, wire.Error, nil
	}

	env := &message.Envelope{Type: wire.Type, Data: message.Raw(wire.Payload)}
	if payload := message.NewPayload(wire.Type); payload != nil {
		if err := c.Decode(wire.Payload, payload); err == nil {
			env.Data = payload
		}
	}
	return env, "", nil
}
