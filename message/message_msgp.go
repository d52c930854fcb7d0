package message

// Hand-written MessagePack encoding of the wire records on top of the msgp
// runtime. Each record is a map keyed by its msg tag. Decoding fails on a key the
// record does not declare, so a payload is never read as a different record.

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

func unknownField(field []byte) error {
	return msgp.WrapError(fmt.Errorf("unknown field %q", field))
}

var (
	_ msgp.Marshaler   = (*CheckpointMsg)(nil)
	_ msgp.Unmarshaler = (*CheckpointMsg)(nil)
	_ msgp.Marshaler   = (*CheckpointCompMsg)(nil)
	_ msgp.Unmarshaler = (*CheckpointCompMsg)(nil)
	_ msgp.Marshaler   = (*CheckpointRespMsg)(nil)
	_ msgp.Unmarshaler = (*CheckpointRespMsg)(nil)
	_ msgp.Marshaler   = (*ReturnCodeMsg)(nil)
	_ msgp.Unmarshaler = (*ReturnCodeMsg)(nil)
	_ msgp.Marshaler   = (*Wire)(nil)
	_ msgp.Unmarshaler = (*Wire)(nil)
)

// MarshalMsg implements msgp.Marshaler
func (z *CheckpointMsg) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "op")
	o = msgp.AppendUint16(o, z.Op)
	o = msgp.AppendString(o, "data")
	o = msgp.AppendUint16(o, z.Data)
	o = msgp.AppendString(o, "job_id")
	o = msgp.AppendUint32(o, z.JobID)
	o = msgp.AppendString(o, "step_id")
	o = msgp.AppendUint32(o, z.StepID)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *CheckpointMsg) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "op":
			z.Op, bts, err = msgp.ReadUint16Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Op")
				return
			}
		case "data":
			z.Data, bts, err = msgp.ReadUint16Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Data")
				return
			}
		case "job_id":
			z.JobID, bts, err = msgp.ReadUint32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "JobID")
				return
			}
		case "step_id":
			z.StepID, bts, err = msgp.ReadUint32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "StepID")
				return
			}
		default:
			err = unknownField(field)
			return
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *CheckpointMsg) Msgsize() (s int) {
	s = 1 + 3 + msgp.Uint16Size + 5 + msgp.Uint16Size + 7 + msgp.Uint32Size + 8 + msgp.Uint32Size
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *CheckpointCompMsg) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 5)
	o = msgp.AppendString(o, "job_id")
	o = msgp.AppendUint32(o, z.JobID)
	o = msgp.AppendString(o, "step_id")
	o = msgp.AppendUint32(o, z.StepID)
	o = msgp.AppendString(o, "begin_time")
	o = msgp.AppendInt64(o, z.BeginTime)
	o = msgp.AppendString(o, "error_code")
	o = msgp.AppendUint32(o, z.ErrorCode)
	o = msgp.AppendString(o, "error_msg")
	o = msgp.AppendString(o, z.ErrorMsg)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *CheckpointCompMsg) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "job_id":
			z.JobID, bts, err = msgp.ReadUint32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "JobID")
				return
			}
		case "step_id":
			z.StepID, bts, err = msgp.ReadUint32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "StepID")
				return
			}
		case "begin_time":
			z.BeginTime, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "BeginTime")
				return
			}
		case "error_code":
			z.ErrorCode, bts, err = msgp.ReadUint32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "ErrorCode")
				return
			}
		case "error_msg":
			z.ErrorMsg, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "ErrorMsg")
				return
			}
		default:
			err = unknownField(field)
			return
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *CheckpointCompMsg) Msgsize() (s int) {
	s = 1 + 7 + msgp.Uint32Size + 8 + msgp.Uint32Size + 11 + msgp.Int64Size + 11 + msgp.Uint32Size + 10 + msgp.StringPrefixSize + len(z.ErrorMsg)
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *CheckpointRespMsg) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "event_time")
	o = msgp.AppendInt64(o, z.EventTime)
	o = msgp.AppendString(o, "error_code")
	o = msgp.AppendUint32(o, z.ErrorCode)
	o = msgp.AppendString(o, "error_msg")
	o = msgp.AppendString(o, z.ErrorMsg)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *CheckpointRespMsg) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "event_time":
			z.EventTime, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "EventTime")
				return
			}
		case "error_code":
			z.ErrorCode, bts, err = msgp.ReadUint32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "ErrorCode")
				return
			}
		case "error_msg":
			z.ErrorMsg, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "ErrorMsg")
				return
			}
		default:
			err = unknownField(field)
			return
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *CheckpointRespMsg) Msgsize() (s int) {
	s = 1 + 11 + msgp.Int64Size + 11 + msgp.Uint32Size + 10 + msgp.StringPrefixSize + len(z.ErrorMsg)
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *ReturnCodeMsg) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 1)
	o = msgp.AppendString(o, "return_code")
	o = msgp.AppendInt32(o, z.ReturnCode)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *ReturnCodeMsg) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "return_code":
			z.ReturnCode, bts, err = msgp.ReadInt32Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "ReturnCode")
				return
			}
		default:
			err = unknownField(field)
			return
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *ReturnCodeMsg) Msgsize() (s int) {
	s = 1 + 12 + msgp.Int32Size
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *Wire) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "type")
	o = msgp.AppendUint16(o, uint16(z.Type))
	o = msgp.AppendString(o, "error")
	o = msgp.AppendString(o, z.Error)
	o = msgp.AppendString(o, "payload")
	o = msgp.AppendBytes(o, z.Payload)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *Wire) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "type":
			var zb0002 uint16
			zb0002, bts, err = msgp.ReadUint16Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Type")
				return
			}
			z.Type = MsgType(zb0002)
		case "error":
			z.Error, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Error")
				return
			}
		case "payload":
			z.Payload, bts, err = msgp.ReadBytesBytes(bts, z.Payload)
			if err != nil {
				err = msgp.WrapError(err, "Payload")
				return
			}
		default:
			err = unknownField(field)
			return
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (z *Wire) Msgsize() (s int) {
	s = 1 + 5 + msgp.Uint16Size + 6 + msgp.StringPrefixSize + len(z.Error) + 8 + msgp.BytesPrefixSize + len(z.Payload)
	return
}
