package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	w := Get()
	defer w.Put()

	require.NoError(t, w.WriteByte(0x7F))
	w.WriteShort(-12345)
	w.WriteWord(0xDEAD)
	w.WriteInt(-2000000000)
	w.WriteDword(0xCAFEBABE)
	w.WriteLong(-9000000000000000000)
	w.WriteFixedString("alice", 16)
	w.WriteCString("hello room")
	w.WriteBytes([]byte{1, 2, 3})

	r := NewReader(w.Bytes())

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), b)

	s16, err := r.ReadShort()
	require.NoError(t, err)
	assert.Equal(t, int16(-12345), s16)

	u16, err := r.ReadWord()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xDEAD), u16)

	i32, err := r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(-2000000000), i32)

	u32, err := r.ReadDword()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEBABE), u32)

	i64, err := r.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(-9000000000000000000), i64)

	fixed, err := r.ReadFixedString(16)
	require.NoError(t, err)
	assert.Equal(t, "alice", fixed)

	cstr, err := r.ReadCString()
	require.NoError(t, err)
	assert.Equal(t, "hello room", cstr)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	assert.Equal(t, 0, r.Remaining())
}

func TestWriter_FixedStringTruncation(t *testing.T) {
	w := Get()
	defer w.Put()

	w.WriteFixedString("a-very-long-player-name", 8)
	require.Equal(t, 8, w.Len())

	r := NewReader(w.Bytes())
	s, err := r.ReadFixedString(8)
	require.NoError(t, err)
	// Last field byte is always NUL, so at most 7 chars survive.
	assert.Equal(t, "a-very-", s)
}

func TestWriter_FixedStringPadding(t *testing.T) {
	w := Get()
	defer w.Put()

	w.WriteFixedString("ab", 4)
	assert.Equal(t, []byte{'a', 'b', 0, 0}, w.Bytes())
}

func TestReader_Truncated(t *testing.T) {
	r := NewReader([]byte{0x01})

	_, err := r.ReadInt()
	assert.Error(t, err)

	_, err = r.ReadShort()
	assert.Error(t, err)

	// Single remaining byte is still readable.
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)

	_, err = r.ReadByte()
	assert.Error(t, err)
}

func TestReader_UnterminatedCString(t *testing.T) {
	r := NewReader([]byte("no-nul-here"))
	_, err := r.ReadCString()
	assert.Error(t, err)
}

func TestReader_SkipAndRest(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5})
	require.NoError(t, r.Skip(2))
	assert.Equal(t, []byte{3, 4, 5}, r.Rest())
	assert.Error(t, r.Skip(10))
}
