// Package message defines the checkpoint messages exchanged with the scheduling authority.
//
// Every exchange is one request envelope and one response envelope. The envelope's
// Type tag decides which payload record Data holds:
//
//	RequestCheckpoint      → *CheckpointMsg      (client → authority)
//	RequestCheckpointComp  → *CheckpointCompMsg  (client → authority)
//	ResponseCheckpoint     → *CheckpointRespMsg  (authority → client)
//	ResponseReturnCode     → *ReturnCodeMsg      (authority → client)
//
// On the wire the payload is serialized by the codec layer and carried inside a Wire
// record, which is itself serialized and wrapped in a protocol frame.
package message

import (
	"errors"
	"fmt"
)

// MsgType is the type tag of an envelope.
type MsgType uint16

const (
	RequestCheckpoint     MsgType = 4001
	RequestCheckpointComp MsgType = 4002
	ResponseCheckpoint    MsgType = 4003
	ResponseReturnCode    MsgType = 8001
)

// ErrUnexpectedMessage is returned when a response carries a type tag the caller
// did not expect.
var ErrUnexpectedMessage = errors.New("message: unexpected message type")

func (t MsgType) String() string {
	switch t {
	case RequestCheckpoint:
		return "REQUEST_CHECKPOINT"
	case RequestCheckpointComp:
		return "REQUEST_CHECKPOINT_COMP"
	case ResponseCheckpoint:
		return "RESPONSE_CHECKPOINT"
	case ResponseReturnCode:
		return "RESPONSE_RETURN_CODE"
	}
	return fmt.Sprintf("MsgType(%d)", uint16(t))
}

// CheckpointMsg asks the authority to perform one checkpoint operation on a job step.
// Data is operation specific (max wait seconds for create and vacate).
type CheckpointMsg struct {
	Op     uint16 `json:"op" msg:"op"`
	Data   uint16 `json:"data" msg:"data"`
	JobID  uint32 `json:"job_id" msg:"job_id"`
	StepID uint32 `json:"step_id" msg:"step_id"`
}

// CheckpointCompMsg reports the completion of a checkpoint.
type CheckpointCompMsg struct {
	JobID     uint32 `json:"job_id" msg:"job_id"`
	StepID    uint32 `json:"step_id" msg:"step_id"`
	BeginTime int64  `json:"begin_time" msg:"begin_time"` // Unix seconds
	ErrorCode uint32 `json:"error_code" msg:"error_code"`
	ErrorMsg  string `json:"error_msg" msg:"error_msg"`
}

// CheckpointRespMsg answers QueryAble and QueryError.
type CheckpointRespMsg struct {
	EventTime int64  `json:"event_time" msg:"event_time"` // Unix seconds, 0 = none
	ErrorCode uint32 `json:"error_code" msg:"error_code"`
	ErrorMsg  string `json:"error_msg" msg:"error_msg"`
}

// ReturnCodeMsg is the generic status reply. Zero means success.
type ReturnCodeMsg struct {
	ReturnCode int32 `json:"return_code" msg:"return_code"`
}

// Raw holds the undecoded payload of an envelope whose type tag is not known.
type Raw []byte

// Envelope is the in-memory form of one request or response.
type Envelope struct {
	Type MsgType
	Data any
}

// Wire is the record a codec writes into a frame body.
//
//   - Payload is the codec encoding of the envelope's Data.
//   - Error is non-empty when the exchange failed below the authority (no handler,
//     timed out, rate limited, connection lost). It never carries an authority status.
type Wire struct {
	Type    MsgType `json:"type" msg:"type"`
	Error   string  `json:"error" msg:"error"`
	Payload []byte  `json:"payload" msg:"payload"`
}

// NewPayload returns an empty payload record for the given type tag, ready to be
// decoded into. It returns nil for tags it does not know.
func NewPayload(t MsgType) any {
	switch t {
	case RequestCheckpoint:
		return &CheckpointMsg{}
	case RequestCheckpointComp:
		return &CheckpointCompMsg{}
	case ResponseCheckpoint:
		return &CheckpointRespMsg{}
	case ResponseReturnCode:
		return &ReturnCodeMsg{}
	}
	return nil
}

// ReturnCode builds a generic status response.
func ReturnCode(rc int32) *Envelope {
	return &Envelope{Type: ResponseReturnCode, Data: &ReturnCodeMsg{ReturnCode: rc}}
}
