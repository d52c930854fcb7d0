package checkpoint

import (
	"math"
	"time"

	"checkpoint-rpc/message"
)

// Request is one checkpoint operation on a job step. Data is only meaningful for
// Create and Vacate, where it is the max wait in seconds.
type Request struct {
	Op     Operation
	JobID  uint32
	StepID uint32
	Data   uint16
}

// Envelope encodes the request. Identifiers are not validated; the authority
// judges them. Data is sent as zero for operations that do not carry it.
func (r Request) Envelope() *message.Envelope {
	data := r.Data
	if !r.Op.carriesData() {
		data = 0
	}
	return &message.Envelope{
		Type: message.RequestCheckpoint,
		Data: &message.CheckpointMsg{
			Op:     uint16(r.Op),
			Data:   data,
			JobID:  r.JobID,
			StepID: r.StepID,
		},
	}
}

// CompletionReport tells the authority that a checkpoint of a job step finished.
// The authority keeps the highest ErrorCode reported for a checkpoint together
// with its ErrorMsg.
type CompletionReport struct {
	JobID     uint32
	StepID    uint32
	BeginTime time.Time
	ErrorCode uint32
	ErrorMsg  string
}

// Envelope encodes the report. ErrorCode and ErrorMsg are copied as given, so a
// message accompanying a zero code is still sent.
func (r CompletionReport) Envelope() *message.Envelope {
	return &message.Envelope{
		Type: message.RequestCheckpointComp,
		Data: &message.CheckpointCompMsg{
			JobID:     r.JobID,
			StepID:    r.StepID,
			BeginTime: unixSeconds(r.BeginTime),
			ErrorCode: r.ErrorCode,
			ErrorMsg:  r.ErrorMsg,
		},
	}
}

// waitSeconds converts a max wait to the wire's whole seconds, clamped to 16 bits.
func waitSeconds(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	s := d / time.Second
	if s > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(s)
}

func unixSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnixSeconds(s int64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(s, 0)
}
