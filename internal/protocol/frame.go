package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// FrameMagic opens every frame on the player and room sockets.
	FrameMagic = 0xDEAD

	// HeaderSize is the fixed frame header: magic:u16, type:u16, length:u32.
	// The length field counts payload bytes only; total wire size is
	// HeaderSize + length.
	HeaderSize = 8

	// MaxPayloadSize bounds the length field. Anything larger is malformed
	// and the connection must be dropped.
	MaxPayloadSize = 32 * 1024

	// MaxFrameSize is the largest total wire size of one frame.
	MaxFrameSize = HeaderSize + MaxPayloadSize
)

// Frame is one decoded wire frame.
type Frame struct {
	Type    uint16
	Payload []byte
}

// ReadFrame reads one frame from r into buf and returns it together with
// the number of garbage bytes discarded while hunting for the magic word.
// The returned payload is a subslice of buf, valid until the next read.
//
// A header whose magic does not match is resynchronized by advancing one
// byte at a time until a valid magic is found. A length above
// MaxPayloadSize is unrecoverable and returns an error.
func ReadFrame(r io.Reader, buf []byte) (Frame, int, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, 0, fmt.Errorf("reading frame header: %w", err)
	}

	skipped := 0
	for binary.LittleEndian.Uint16(header[:2]) != FrameMagic {
		copy(header[:], header[1:])
		if _, err := io.ReadFull(r, header[HeaderSize-1:]); err != nil {
			return Frame{}, skipped, fmt.Errorf("resynchronizing frame: %w", err)
		}
		skipped++
	}

	typ := binary.LittleEndian.Uint16(header[2:4])
	length := int(binary.LittleEndian.Uint32(header[4:8]))
	if length > MaxPayloadSize {
		return Frame{}, skipped, fmt.Errorf("frame length %d exceeds maximum %d", length, MaxPayloadSize)
	}
	if length > len(buf) {
		return Frame{}, skipped, fmt.Errorf("frame payload %d exceeds buffer size %d", length, len(buf))
	}

	payload := buf[:length]
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, skipped, fmt.Errorf("reading frame payload: %w", err)
	}

	return Frame{Type: typ, Payload: payload}, skipped, nil
}

// WriteFrame fills in the header and writes one frame to w.
// Precondition: the payload lives at buf[HeaderSize : HeaderSize+payloadLen].
func WriteFrame(w io.Writer, buf []byte, typ uint16, payloadLen int) error {
	if payloadLen > MaxPayloadSize {
		return fmt.Errorf("frame length %d exceeds maximum %d", payloadLen, MaxPayloadSize)
	}
	total := HeaderSize + payloadLen
	if len(buf) < total {
		return fmt.Errorf("write frame: buffer too small (need %d, have %d)", total, len(buf))
	}

	binary.LittleEndian.PutUint16(buf[0:2], FrameMagic)
	binary.LittleEndian.PutUint16(buf[2:4], typ)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(payloadLen))

	if _, err := w.Write(buf[:total]); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// AppendFrame appends a complete frame (header + payload) to dst and
// returns the extended slice. Used where a frame must be captured as a
// standalone byte slice, e.g. queued for an egress pump.
func AppendFrame(dst []byte, typ uint16, payload []byte) []byte {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], FrameMagic)
	binary.LittleEndian.PutUint16(header[2:4], typ)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
	dst = append(dst, header[:]...)
	return append(dst, payload...)
}
