package checkpoint

import (
	"time"

	"checkpoint-rpc/message"
)

// Response is what an authority reply means to this package. It is one of
// StatusResponse, QueryResponse or Unrecognized.
type Response interface {
	isResponse()
}

// StatusResponse is a bare return code. Zero means success.
type StatusResponse struct {
	ReturnCode int32
}

// QueryResponse answers QueryAble and QueryError.
type QueryResponse struct {
	EventTime time.Time
	ErrorCode uint32
	ErrorMsg  string
}

// Unrecognized is any reply this package does not interpret. Type is the reply's
// tag, which may be one this package knows but whose payload did not decode.
type Unrecognized struct {
	Type message.MsgType
}

func (StatusResponse) isResponse() {}
func (QueryResponse) isResponse()  {}
func (Unrecognized) isResponse()   {}

// Demux classifies a reply by its type tag. A payload is only read when the tag
// and the decoded record agree.
func Demux(env *message.Envelope) Response {
	if env == nil {
		return Unrecognized{}
	}
	switch env.Type {
	case message.ResponseReturnCode:
		if m, ok := env.Data.(*message.ReturnCodeMsg); ok {
			return StatusResponse{ReturnCode: m.ReturnCode}
		}
	case message.ResponseCheckpoint:
		if m, ok := env.Data.(*message.CheckpointRespMsg); ok {
			return QueryResponse{
				EventTime: fromUnixSeconds(m.EventTime),
				ErrorCode: m.ErrorCode,
				ErrorMsg:  m.ErrorMsg,
			}
		}
	}
	return Unrecognized{Type: env.Type}
}
