package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	header := Header{
		CodecType: CodecTypeMsgpack,
		Kind:      KindRequest,
		Seq:       12345,
	}
	body := []byte("checkpoint")

	var buf bytes.Buffer
	if err := Encode(&buf, &header, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() != HeaderSize+len(body) {
		t.Fatalf("frame length: got %d, want %d", buf.Len(), HeaderSize+len(body))
	}

	decoded, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.CodecType != header.CodecType {
		t.Errorf("CodecType mismatch: got %d, want %d", decoded.CodecType, header.CodecType)
	}
	if decoded.Kind != header.Kind {
		t.Errorf("Kind mismatch: got %d, want %d", decoded.Kind, header.Kind)
	}
	if decoded.Seq != header.Seq {
		t.Errorf("Seq mismatch: got %d, want %d", decoded.Seq, header.Seq)
	}
	if decoded.BodyLen != uint32(len(body)) {
		t.Errorf("BodyLen mismatch: got %d, want %d", decoded.BodyLen, len(body))
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %q, want %q", decodedBody, body)
	}
}

func TestEncodeIgnoresStaleBodyLen(t *testing.T) {
	var buf bytes.Buffer
	h := &Header{CodecType: CodecTypeJSON, Kind: KindResponse, Seq: 1, BodyLen: 999}
	if err := Encode(&buf, h, []byte("ok")); err != nil {
		t.Fatal(err)
	}
	decoded, body, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.BodyLen != 2 || string(body) != "ok" {
		t.Fatalf("expect 2-byte body, got %d %q", decoded.BodyLen, body)
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, Version, CodecTypeJSON, byte(KindRequest), 0, 0, 0x30, 0x39, 0, 0, 0, 0})

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for invalid magic number")
	}
	if !strings.Contains(err.Error(), "invalid magic number") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{MagicNumber, MagicByte2, MagicByte3, 0xFF, CodecTypeJSON, byte(KindRequest), 0, 0, 0, 1, 0, 0, 0, 0})

	_, _, err := Decode(&buf)
	if err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Fatalf("expected unsupported version, got %v", err)
	}
}

func TestDecodeInvalidCodecAndKind(t *testing.T) {
	frames := map[string][]byte{
		"unsupported codec type": {MagicNumber, MagicByte2, MagicByte3, Version, 9, byte(KindRequest), 0, 0, 0, 1, 0, 0, 0, 0},
		"unsupported frame kind": {MagicNumber, MagicByte2, MagicByte3, Version, CodecTypeJSON, 7, 0, 0, 0, 1, 0, 0, 0, 0},
	}
	for want, frame := range frames {
		_, _, err := Decode(bytes.NewReader(frame))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q, got %v", want, err)
		}
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &Header{Kind: KindHeartbeat}, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	h, body, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if h.Kind != KindHeartbeat || h.BodyLen != 0 || len(body) != 0 {
		t.Fatalf("unexpected heartbeat frame: %+v body=%d", h, len(body))
	}
}

func TestDecodeBodyTooLarge(t *testing.T) {
	frame := []byte{MagicNumber, MagicByte2, MagicByte3, Version, CodecTypeBinary, byte(KindResponse), 0, 0, 0, 1, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(frame[10:14], MaxBodyLen+1)

	_, _, err := Decode(bytes.NewReader(frame))
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, &Header{Kind: KindRequest, Seq: 3}, []byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:HeaderSize+4]

	if _, _, err := Decode(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error for truncated body")
	}
}
