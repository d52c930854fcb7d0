package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"checkpoint-rpc/message"
)

// BinaryCodec writes each supported record as its fields in declaration order,
// big-endian, with no field names:
//
//	Wire              type u16 | error (u32 len + bytes) | payload (u32 len + bytes)
//	CheckpointMsg     op u16 | data u16 | job u32 | step u32
//	CheckpointCompMsg job u32 | step u32 | begin i64 | code u32 | msg (u32 len + bytes)
//	CheckpointRespMsg event i64 | code u32 | msg (u32 len + bytes)
//	ReturnCodeMsg     rc i32
//
// Decode fails unless the record consumes the input exactly.
type BinaryCodec struct{}

var (
	errShortBuffer = errors.New("codec: binary record truncated")
	errTrailing    = errors.New("codec: trailing bytes after binary record")
)

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	var w binaryWriter
	switch m := v.(type) {
	case *message.Wire:
		w.u16(uint16(m.Type))
		w.str32(m.Error)
		w.bytes32(m.Payload)
	case *message.CheckpointMsg:
		w.u16(m.Op)
		w.u16(m.Data)
		w.u32(m.JobID)
		w.u32(m.StepID)
	case *message.CheckpointCompMsg:
		w.u32(m.JobID)
		w.u32(m.StepID)
		w.u64(uint64(m.BeginTime))
		w.u32(m.ErrorCode)
		w.str32(m.ErrorMsg)
	case *message.CheckpointRespMsg:
		w.u64(uint64(m.EventTime))
		w.u32(m.ErrorCode)
		w.str32(m.ErrorMsg)
	case *message.ReturnCodeMsg:
		w.u32(uint32(m.ReturnCode))
	default:
		return nil, fmt.Errorf("%w: BinaryCodec cannot encode %T", ErrUnsupportedType, v)
	}
	return w.buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	r := binaryReader{buf: data}
	switch m := v.(type) {
	case *message.Wire:
		m.Type = message.MsgType(r.u16())
		m.Error = r.str32()
		m.Payload = r.bytes32()
	case *message.CheckpointMsg:
		m.Op = r.u16()
		m.Data = r.u16()
		m.JobID = r.u32()
		m.StepID = r.u32()
	case *message.CheckpointCompMsg:
		m.JobID = r.u32()
		m.StepID = r.u32()
		m.BeginTime = int64(r.u64())
		m.ErrorCode = r.u32()
		m.ErrorMsg = r.str32()
	case *message.CheckpointRespMsg:
		m.EventTime = int64(r.u64())
		m.ErrorCode = r.u32()
		m.ErrorMsg = r.str32()
	case *message.ReturnCodeMsg:
		m.ReturnCode = int32(r.u32())
	default:
		return fmt.Errorf("%w: BinaryCodec cannot decode into %T", ErrUnsupportedType, v)
	}
	if r.err == nil && r.off != len(r.buf) {
		return errTrailing
	}
	return r.err
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

type binaryWriter struct {
	buf []byte
}

func (w *binaryWriter) u16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *binaryWriter) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *binaryWriter) u64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *binaryWriter) str32(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *binaryWriter) bytes32(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// binaryReader records the first short read in err; later reads return zero values.
type binaryReader struct {
	buf []byte
	off int
	err error
}

func (r *binaryReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = errShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *binaryReader) u16() uint16 {
	if b := r.next(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *binaryReader) u32() uint32 {
	if b := r.next(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *binaryReader) u64() uint64 {
	if b := r.next(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *binaryReader) str32() string {
	n := r.u32()
	return string(r.next(int(n)))
}

func (r *binaryReader) bytes32() []byte {
	n := r.u32()
	b := r.next(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
