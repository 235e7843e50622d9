package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameWireLayout pins the exact header bytes: magic 0xDEAD LE,
// type LE, then a u32 length counting payload bytes only.
func TestFrameWireLayout(t *testing.T) {
	wire := AppendFrame(nil, OpLogin, []byte("hello"))
	want := []byte{
		0xAD, 0xDE, // magic
		0x64, 0x00, // type 100
		0x05, 0x00, 0x00, 0x00, // length = payload bytes
		'h', 'e', 'l', 'l', 'o',
	}
	assert.Equal(t, want, wire)
}

func TestReadFrame_HandBuiltVector(t *testing.T) {
	wire := []byte{
		0xAD, 0xDE,
		0xC8, 0x00, // type 200
		0x03, 0x00, 0x00, 0x00,
		0x0A, 0x0B, 0x0C,
	}
	f, skipped, err := ReadFrame(bytes.NewReader(wire), make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, OpRoomBroadcast, f.Type)
	assert.Equal(t, []byte{0x0A, 0x0B, 0x0C}, f.Payload)
}

func TestReadFrame_RoundTrip(t *testing.T) {
	payload := []byte("hello metaserver")
	wire := AppendFrame(nil, OpRoomBroadcast, payload)

	buf := make([]byte, MaxFrameSize)
	f, skipped, err := ReadFrame(bytes.NewReader(wire), buf)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, OpRoomBroadcast, f.Type)
	assert.Equal(t, payload, f.Payload)
}

func TestReadFrame_Resynchronizes(t *testing.T) {
	payload := []byte{0xAA, 0xBB}
	wire := append([]byte{0x01, 0x02, 0x03}, AppendFrame(nil, OpKeepalive, payload)...)

	buf := make([]byte, MaxFrameSize)
	f, skipped, err := ReadFrame(bytes.NewReader(wire), buf)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, OpKeepalive, f.Type)
	assert.Equal(t, payload, f.Payload)
}

func TestReadFrame_OversizedLength(t *testing.T) {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[0:2], FrameMagic)
	binary.LittleEndian.PutUint16(header[2:4], OpLogin)
	binary.LittleEndian.PutUint32(header[4:8], MaxPayloadSize+1)

	buf := make([]byte, MaxFrameSize)
	_, _, err := ReadFrame(bytes.NewReader(header[:]), buf)
	assert.Error(t, err)
}

func TestReadFrame_EmptyPayload(t *testing.T) {
	wire := AppendFrame(nil, OpKeepalive, nil)
	require.Len(t, wire, HeaderSize)

	f, skipped, err := ReadFrame(bytes.NewReader(wire), make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, OpKeepalive, f.Type)
	assert.Empty(t, f.Payload)
}

func TestReadFrame_ShortPayload(t *testing.T) {
	wire := AppendFrame(nil, OpGameList, []byte{1, 2, 3, 4})
	buf := make([]byte, MaxFrameSize)
	_, _, err := ReadFrame(bytes.NewReader(wire[:len(wire)-2]), buf)
	assert.Error(t, err)
}

func TestWriteFrame(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf[HeaderSize:], "payload")

	var out bytes.Buffer
	require.NoError(t, WriteFrame(&out, buf, OpServerMessage, 7))

	f, skipped, err := ReadFrame(&out, make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, OpServerMessage, f.Type)
	assert.Equal(t, []byte("payload"), f.Payload)
}

func TestWriteFrame_TooLarge(t *testing.T) {
	buf := make([]byte, MaxFrameSize+64)
	var out bytes.Buffer
	assert.Error(t, WriteFrame(&out, buf, OpGameList, MaxPayloadSize+1))
	assert.Zero(t, out.Len())
}

func TestOpName(t *testing.T) {
	assert.Equal(t, "LOGIN", OpName(OpLogin))
	assert.Equal(t, "KEEPALIVE", OpName(OpKeepalive))
	assert.Equal(t, "OP_9999", OpName(9999))
}
