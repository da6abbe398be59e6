package telemetry

import (
	"encoding/binary"
	"io"

	"github.com/oddbit-project/roadwatch/utils"
)

const (
	ErrFrameTooLarge = utils.Error("frame exceeds maximum size")
	ErrEmptyFrame    = utils.Error("empty frame")

	// DefaultMaxFrameBytes bounds a single wire frame
	DefaultMaxFrameBytes = 1 << 20

	frameHeaderLen = 4
)

// WriteFrame writes one length-prefixed frame: a 4-byte big-endian length
// followed by the payload, issued as a single Write so a frame is never
// interleaved with another writer's output
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	buf := make([]byte, frameHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[frameHeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame, rejecting frames larger than
// maxBytes before reading the payload
func ReadFrame(r io.Reader, maxBytes int) ([]byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, ErrEmptyFrame
	}
	if maxBytes > 0 && int64(size) > int64(maxBytes) {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
