package sdvl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/rohc/internal/core"
)

func TestLenBoundaries(t *testing.T) {
	tests := []struct {
		value uint32
		n     int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{1<<21 - 1, 3},
		{1 << 21, 4},
		{MaxValue, 4},
		{MaxValue + 1, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.n, Len(tt.value), "Len(%d)", tt.value)
	}
}

func TestEncodeKnownVectors(t *testing.T) {
	buf := make([]byte, 4)

	n, err := Encode(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, buf[:n])

	// 300 = 0x012C -> 10 000001 00101100
	n, err = Encode(buf, 300)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x2C}, buf[:n])

	// 0x123456 -> 110 10010 0x34 0x56
	n, err = Encode(buf, 0x123456)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD2, 0x34, 0x56}, buf[:n])
}

func TestEncodeDecode(t *testing.T) {
	buf := make([]byte, 4)
	for _, v := range []uint32{0, 1, 127, 128, 1000, 16383, 16384, 70000, 1<<21 - 1, 1 << 21, 0xABCDEF, MaxValue} {
		n, err := Encode(buf, v)
		require.NoError(t, err)

		got, used, err := Decode(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, n, used)
	}
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(make([]byte, 4), MaxValue+1)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))

	_, err = Encode(make([]byte, 1), 300)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := Decode(nil)
	assert.True(t, errors.Is(err, core.ErrPacketTooShort))

	_, _, err = Decode([]byte{0x81})
	assert.True(t, errors.Is(err, core.ErrPacketTooShort))

	_, _, err = Decode([]byte{0xE0, 0x00, 0x00})
	assert.True(t, errors.Is(err, core.ErrPacketTooShort))
}
