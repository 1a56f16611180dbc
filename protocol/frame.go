package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameType tags a wire frame. The payload of every frame is JSON.
type FrameType uint8

const (
	FrameLogin    FrameType = 0x01
	FrameRequest  FrameType = 0x02
	FrameResponse FrameType = 0x03
	FramePush     FrameType = 0x04
	FrameError    FrameType = 0x7F
)

// MaxFrameSize bounds a single payload. Settings snapshots and log pages fit
// comfortably; anything larger indicates a broken peer.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned for payloads exceeding MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame payload too large")

// Frame is one wire unit: type byte, 4-byte big-endian length, payload.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// WriteFrame writes a single frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var hdr [5]byte
	hdr[0] = byte(f.Type)
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(f.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads a single frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > MaxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	f := Frame{Type: FrameType(hdr[0])}
	if n > 0 {
		f.Payload = make([]byte, n)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return f, nil
}
