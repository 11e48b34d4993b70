package bits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	// ue 1 | ue 010 | se 011 | ue 00100 | se 00101 | 1 | 010
	r := NewReader([]byte{0b1010_0110, 0b0100_0010, 0b1101_0000})

	require.Equal(t, uint32(0), r.ReadUEGolomb())
	require.Equal(t, uint32(1), r.ReadUEGolomb())
	require.Equal(t, int32(-1), r.ReadSEGolomb())
	require.Equal(t, uint32(3), r.ReadUEGolomb())
	require.Equal(t, int32(-2), r.ReadSEGolomb())
	require.Equal(t, byte(1), r.ReadBit())
	require.Equal(t, uint32(0b010), r.ReadBits(3))
	require.False(t, r.EOF)

	r = NewReader([]byte{0xAB, 0xCD, 0xEF})
	require.Equal(t, byte(0xAB), r.ReadByte())
	require.Equal(t, byte(1), r.ReadBit())
	require.Equal(t, uint16(0x9BDE), r.ReadUint16())

	_ = r.ReadBits(16)
	require.True(t, r.EOF)
}
