package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyFrame(t *testing.T) {
	buf := NewBuilder(TypeRequest, 39, StatusOK).Serialize()
	expected := []byte{
		0x18, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x27, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, expected, buf)
}

func TestThreeU32s(t *testing.T) {
	b := NewBuilder(TypeRequest, 1, StatusOK)
	b.AddU32(1).AddU32(2).AddU32(3)
	buf := b.Serialize()
	r, err := NewReader(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 36, r.Header().Length)
	assert.EqualValues(t, 12, r.Header().FixedSize)
	assert.EqualValues(t, 0, r.Header().VariableSize)
	v1, err := r.ReadU32()
	require.NoError(t, err)
	v2, err := r.ReadU32()
	require.NoError(t, err)
	v3, err := r.ReadU32()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v1)
	assert.EqualValues(t, 2, v2)
	assert.EqualValues(t, 3, v3)
}

func TestStringHello(t *testing.T) {
	b := NewBuilder(TypeRequest, 1, StatusOK)
	b.AddString("hello")
	buf := b.Serialize()
	r, err := NewReader(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 40, r.Header().Length)
	assert.EqualValues(t, 8, r.Header().FixedSize)
	assert.EqualValues(t, 8, r.Header().VariableSize)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestEmptyString(t *testing.T) {
	b := NewBuilder(TypeRequest, 1, StatusOK)
	b.AddString("")
	buf := b.Serialize()
	r, err := NewReader(buf)
	require.NoError(t, err)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestMixedPayload(t *testing.T) {
	b := NewBuilder(TypeRequest, 1, StatusOK)
	b.AddString("hello")
	b.AddU32(7)
	b.AddU64(8)
	b.AddU32(9)
	b.AddString("world")
	b.AddU32(0)
	buf := b.Serialize()
	r, err := NewReader(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 76, r.Header().Length)
	assert.EqualValues(t, 36, r.Header().FixedSize)
	assert.EqualValues(t, 16, r.Header().VariableSize)

	s1, err := r.ReadString()
	require.NoError(t, err)
	v7, err := r.ReadU32()
	require.NoError(t, err)
	v8, err := r.ReadU64()
	require.NoError(t, err)
	v9, err := r.ReadU32()
	require.NoError(t, err)
	s2, err := r.ReadString()
	require.NoError(t, err)
	v0, err := r.ReadU32()
	require.NoError(t, err)

	assert.Equal(t, "hello", s1)
	assert.EqualValues(t, 7, v7)
	assert.EqualValues(t, 8, v8)
	assert.EqualValues(t, 9, v9)
	assert.Equal(t, "world", s2)
	assert.EqualValues(t, 0, v0)
}

func TestMatches(t *testing.T) {
	req := Header{Type: TypeRequest, Command: 5}
	rsp := Header{Type: TypeResponse, Command: 5}
	assert.True(t, Matches(req, rsp))
	other := Header{Type: TypeResponse, Command: 6}
	assert.False(t, Matches(req, other))
	notReq := Header{Type: TypeResponse, Command: 5}
	assert.False(t, Matches(notReq, rsp))
}

func TestParseHeaderRejectsShortFrame(t *testing.T) {
	_, err := ParseHeader([]byte{1, 2, 3})
	assert.Equal(t, ErrMalformedFrame, err)
}

func TestParseHeaderRejectsLengthMismatch(t *testing.T) {
	buf := NewBuilder(TypeRequest, 1, StatusOK).Serialize()
	buf = append(buf, 0, 0, 0, 0)
	_, err := ParseHeader(buf)
	assert.Equal(t, ErrMalformedFrame, err)
}

func TestParseHeaderRejectsUnalignedSizes(t *testing.T) {
	buf := NewBuilder(TypeRequest, 1, StatusOK).Serialize()
	buf[16] = 1 // fixed_size no longer a multiple of 4
	_, err := ParseHeader(buf)
	assert.Equal(t, ErrMalformedFrame, err)
}

func TestReadStringRejectsEscapingOffset(t *testing.T) {
	b := NewBuilder(TypeRequest, 1, StatusOK)
	b.AddU32(4096) // offset wildly out of range
	b.AddU32(4)
	buf := b.Serialize()
	r, err := NewReader(buf)
	require.NoError(t, err)
	_, err = r.ReadString()
	assert.Equal(t, ErrMalformedFrame, err)
}

func TestQMIStatus(t *testing.T) {
	assert.EqualValues(t, 100, QMIStatus(0))
	assert.EqualValues(t, 105, QMIStatus(5))
}
