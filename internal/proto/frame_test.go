package proto

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeBodyRoundTripsThroughDecodeFrame(t *testing.T) {
	env := &Envelope{Type: TagLogin, Sender: "alice"}
	body, err := EncodeBody(env)
	if err != nil {
		t.Fatalf("EncodeBody: %v", err)
	}
	if len(body) < 4 {
		t.Fatalf("encoded body too short: %d bytes", len(body))
	}

	got, err := DecodeFrame(body, DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Type != TagLogin || got.Sender != "alice" {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestEncodeBodyHasNoLengthPrefix(t *testing.T) {
	env := &Envelope{Type: TagHeartbeat}
	body, err := EncodeBody(env)
	if err != nil {
		t.Fatalf("EncodeBody: %v", err)
	}
	// EncodeBody must start with the 4-byte frame tag, not a length
	// prefix: the first four bytes are always "NONE" or "COMP".
	tag := string(body[:4])
	if tag != "NONE" && tag != "COMP" {
		t.Fatalf("expected leading frame tag, got %q", tag)
	}
}

func TestEncodeFrameAddsLengthPrefixMatchingBody(t *testing.T) {
	env := &Envelope{Type: TagHeartbeat}
	frame, err := EncodeFrame(env)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	body, err := ReadFrame(bytes.NewReader(frame), DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	got, err := DecodeFrame(body, DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Type != TagHeartbeat {
		t.Fatalf("unexpected decoded type: %v", got.Type)
	}
}

func TestEncodeBodyCompressesLargePayloads(t *testing.T) {
	big := strings.Repeat("a", compressThreshold*4)
	env := &Envelope{
		Type: TagTextMessage,
		Data: &Data{Content: big},
	}
	body, err := EncodeBody(env)
	if err != nil {
		t.Fatalf("EncodeBody: %v", err)
	}
	if string(body[:4]) != "COMP" {
		t.Fatalf("expected a highly compressible large payload to be compressed, got tag %q", body[:4])
	}

	got, err := DecodeFrame(body, DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Data == nil || got.Data.Content != big {
		t.Fatal("decompressed content does not match original")
	}
}

func TestDecodeFrameRejectsOversizedPayload(t *testing.T) {
	env := &Envelope{Type: TagHeartbeat, Sender: strings.Repeat("x", 100)}
	body, err := EncodeBody(env)
	if err != nil {
		t.Fatalf("EncodeBody: %v", err)
	}
	if _, err := DecodeFrame(body, 4); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeFrameRejectsTruncatedFrame(t *testing.T) {
	if _, err := DecodeFrame([]byte{'N', 'O'}, DefaultMaxFrameSize); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed for a too-short frame, got %v", err)
	}
}

func TestDecodeFrameRejectsUnknownFrameTag(t *testing.T) {
	frame := append([]byte("XXXX"), []byte(`{"type":"login"}`)...)
	if _, err := DecodeFrame(frame, DefaultMaxFrameSize); err == nil {
		t.Fatal("expected an error for an unrecognized frame tag")
	}
}

func TestReadFrameRejectsOversizedWireLength(t *testing.T) {
	var lenBuf [4]byte
	lenBuf[0] = 0xFF // absurdly large length
	r := bytes.NewReader(lenBuf[:])
	if _, err := ReadFrame(r, 16); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
