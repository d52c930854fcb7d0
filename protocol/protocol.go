// Package protocol implements the binary frame protocol used between checkpoint
// clients and the scheduling authority.
//
// A fixed-size 14-byte header is followed by a variable-length body. The receiver
// reads the header first to learn the body length, then reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mk│   seq   │ bodyLen │    body ...    │
//	│ ckp  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic number bytes: "ckp".
const (
	MagicNumber byte = 0x63 // 'c'
	MagicByte2  byte = 0x6b // 'k'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 14 // 3 (magic) + 1 (version) + 1 (codec) + 1 (kind) + 4 (seq) + 4 (bodyLen)

	// MaxBodyLen bounds a single frame so a corrupt header cannot make the reader
	// allocate gigabytes.
	MaxBodyLen uint32 = 16 << 20
)

// ErrBodyTooLarge is returned by Decode when the header announces a body above MaxBodyLen.
var ErrBodyTooLarge = errors.New("protocol: frame body too large")

// Kind distinguishes request, response, and heartbeat frames.
type Kind byte

const (
	KindRequest   Kind = 0 // Client → authority
	KindResponse  Kind = 1 // Authority → client
	KindHeartbeat Kind = 2 // KeepAlive probe (no body)
)

// Codec type constants, mirrored from the codec package to avoid an import cycle.
const (
	CodecTypeJSON    byte = 0
	CodecTypeBinary  byte = 1
	CodecTypeMsgpack byte = 2
)

// Header is the fixed 14-byte frame header.
type Header struct {
	CodecType byte   // Serialization format of the body
	Kind      Kind   // Request, Response, or Heartbeat
	Seq       uint32 // Matches a response to its request on a multiplexed connection
	BodyLen   uint32
}

// Encode writes a complete frame (header + body) to w.
// Callers sharing one writer across goroutines must serialize calls themselves.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize, HeaderSize+len(body))

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.Kind)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(body)))

	// One write per frame keeps header and body together on the wire.
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number, version, codec type, and frame kind.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}
	switch headerBuf[4] {
	case CodecTypeJSON, CodecTypeBinary, CodecTypeMsgpack:
	default:
		return nil, nil, fmt.Errorf("unsupported codec type: %d", headerBuf[4])
	}
	kind := Kind(headerBuf[5])
	if kind != KindRequest && kind != KindResponse && kind != KindHeartbeat {
		return nil, nil, fmt.Errorf("unsupported frame kind: %d", headerBuf[5])
	}

	seq := binary.BigEndian.Uint32(headerBuf[6:10])
	bodyLen := binary.BigEndian.Uint32(headerBuf[10:14])
	if bodyLen > MaxBodyLen {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		Kind:      kind,
		Seq:       seq,
		BodyLen:   bodyLen,
	}, body, nil
}
