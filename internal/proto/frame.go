package proto

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// FrameTag selects the raw-vs-compressed discriminator carried after the
// length prefix (spec.md §4.A).
type FrameTag [4]byte

// Recognized frame tags.
var (
	FrameTagNone = FrameTag{'N', 'O', 'N', 'E'}
	FrameTagComp = FrameTag{'C', 'O', 'M', 'P'}
)

// DefaultMaxFrameSize is the default payload ceiling (4 MiB) of spec.md §4.A.
const DefaultMaxFrameSize = 4 << 20

// compressThreshold is the minimum payload size before compression is even
// attempted (spec.md §4.A: "applied only when payload > 1 KiB").
const compressThreshold = 1024

// ErrPayloadTooLarge is returned by Decode/ReadFrame when a frame exceeds
// the configured ceiling.
var ErrPayloadTooLarge = errors.New("proto: payload_too_large")

// ErrMalformed is returned when a frame's body cannot be decoded.
var ErrMalformed = errors.New("proto: protocol_malformed")

// EncodeBody serializes env to JSON, compressing it when larger than
// compressThreshold and doing so actually shrinks it, and returns
// tag4∥body with no length prefix — the shape a message-framed transport
// like WebSocket carries directly (spec.md §4.A: "On the WebSocket
// transport the outer framing is that of the transport; the tag4
// discriminator still applies to the JSON body").
func EncodeBody(env *Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	tag := FrameTagNone
	if len(body) > compressThreshold {
		if compressed, ok := tryCompress(body); ok {
			body = compressed
			tag = FrameTagComp
		}
	}
	out := make([]byte, 4+len(body))
	copy(out[0:4], tag[:])
	copy(out[4:], body)
	return out, nil
}

// EncodeFrame builds the full len_be32∥tag4∥body wire frame for
// length-prefixed transports (e.g. raw TCP).
func EncodeFrame(env *Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	tag := FrameTagNone
	if len(body) > compressThreshold {
		if compressed, ok := tryCompress(body); ok {
			body = compressed
			tag = FrameTagComp
		}
	}
	return wrapFrame(tag, body), nil
}

func tryCompress(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(body) {
		return nil, false
	}
	return buf.Bytes(), true
}

func wrapFrame(tag FrameTag, body []byte) []byte {
	out := make([]byte, 4+4+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(4+len(body)))
	copy(out[4:8], tag[:])
	copy(out[8:], body)
	return out
}

// DecodeFrame parses a full transport frame's body (tag4+payload, the
// length prefix already stripped by the transport) into an Envelope.
func DecodeFrame(frameBody []byte, maxSize int) (*Envelope, error) {
	if len(frameBody) < 4 {
		return nil, ErrMalformed
	}
	var tag FrameTag
	copy(tag[:], frameBody[:4])
	payload := frameBody[4:]

	if maxSize > 0 && len(payload) > maxSize {
		return nil, ErrPayloadTooLarge
	}

	var jsonBody []byte
	switch tag {
	case FrameTagNone:
		jsonBody = payload
	case FrameTagComp:
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, ErrMalformed
		}
		defer r.Close()
		jsonBody, err = io.ReadAll(io.LimitReader(r, int64(maxSizeOrDefault(maxSize))+1))
		if err != nil {
			return nil, ErrMalformed
		}
		if maxSize > 0 && len(jsonBody) > maxSize {
			return nil, ErrPayloadTooLarge
		}
	default:
		return nil, fmt.Errorf("%w: unknown frame tag %q", ErrMalformed, tag)
	}

	var env Envelope
	if err := json.Unmarshal(jsonBody, &env); err != nil {
		return nil, ErrMalformed
	}
	return &env, nil
}

func maxSizeOrDefault(maxSize int) int {
	if maxSize <= 0 {
		return DefaultMaxFrameSize
	}
	return maxSize
}

// ReadFrame reads one length-prefixed frame's body from r, enforcing
// maxSize on the wire length before allocating, and returns the raw
// tag4+payload bytes for DecodeFrame.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	limit := uint32(maxSizeOrDefault(maxSize)) + 4
	if n > limit {
		return nil, ErrPayloadTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes a complete len_be32∥tag4∥body frame to w.
func WriteFrame(w io.Writer, tag FrameTag, body []byte) error {
	_, err := w.Write(wrapFrame(tag, body))
	return err
}
