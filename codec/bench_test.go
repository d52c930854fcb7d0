package codec

import (
	"testing"

	"checkpoint-rpc/message"
)

// Encode and decode a full completion report envelope without the network.
func BenchmarkEnvelope(b *testing.B) {
	env := &message.Envelope{
		Type: message.RequestCheckpointComp,
		Data: &message.CheckpointCompMsg{JobID: 42, BeginTime: 1700000000, ErrorCode: 7, ErrorMsg: "disk full"},
	}
	for _, c := range allCodecs {
		b.Run(c.Type().String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				body, err := EncodeEnvelope(c, env, "")
				if err != nil {
					b.Fatal(err)
				}
				if _, _, err := DecodeEnvelope(c, body); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
