package ultralink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func drawCodec(t *rapid.T) *Codec {
	var mbs = rapid.IntRange(1, 200).Draw(t, "mbs")
	var ecc = rapid.IntRange(0, min(64, RS_BLOCK_SIZE-mbs)).Draw(t, "ecc")

	var c, err = NewCodec(mbs, ecc)
	require.NoError(t, err)
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var c = drawCodec(t)
		var msg = rapid.SliceOfN(rapid.Byte(), c.MessageSize(), c.MessageSize()).Draw(t, "msg")

		var block, err = c.Encode(msg)
		require.NoError(t, err)
		require.Len(t, block, c.BlockSize())
		assert.Equal(t, msg, block[:c.MessageSize()], "code is systematic")

		var got, corrected, derr = c.Decode(block)
		require.NoError(t, derr)
		assert.Equal(t, msg, got)
		assert.Equal(t, 0, corrected)
	})
}

func TestCodecCorrectsUpToCapacity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var c = drawCodec(t)
		var msg = rapid.SliceOfN(rapid.Byte(), c.MessageSize(), c.MessageSize()).Draw(t, "msg")
		var block, err = c.Encode(msg)
		require.NoError(t, err)

		var e = rapid.IntRange(0, c.Capacity()).Draw(t, "errors")
		var positions = rapid.Permutation(indices(c.BlockSize())).Draw(t, "positions")[:e]
		for _, pos := range positions {
			block[pos] ^= rapid.Byte().Filter(func(b byte) bool { return b != 0 }).Draw(t, "flip")
		}

		var got, corrected, derr = c.Decode(block)
		require.NoError(t, derr)
		assert.Equal(t, msg, got)
		assert.Equal(t, e, corrected)
	})
}

func indices(n int) []int {
	var out = make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestCodecBeyondCapacity(t *testing.T) {
	for _, shape := range [][2]int{{32, 16}, {222, 32}, {2, 8}, {100, 4}} {
		var c, err = NewCodec(shape[0], shape[1])
		require.NoError(t, err)

		var msg = make([]byte, c.MessageSize())
		for i := range msg {
			msg[i] = byte(i*7 + 3)
		}
		var clean, eerr = c.Encode(msg)
		require.NoError(t, eerr)

		var uncorrectable = 0
		for k := range 20 {
			var block = append([]byte(nil), clean...)
			for j := 0; j <= c.Capacity(); j++ {
				block[(k*3+j)%len(block)] ^= byte(0x5a + k)
			}

			var _, _, derr = c.Decode(block)
			if derr != nil {
				assert.ErrorIs(t, derr, ErrUncorrectable)
				uncorrectable++
			}
		}
		assert.Positive(t, uncorrectable, "RS(%d,%d) never reported too many errors", c.BlockSize(), c.MessageSize())

		if c.Capacity() < 8 {
			continue
		}

		// Every byte wrong.
		var block = append([]byte(nil), clean...)
		for i := range block {
			block[i] ^= 0xff
		}
		var _, _, derr = c.Decode(block)
		assert.ErrorIs(t, derr, ErrUncorrectable)
	}
}

// Every bit inverted, as from swapped tones.  The all ones vector is a
// codeword of the full length code, so only shortened codes catch it.
func TestCodecInvertedBlock(t *testing.T) {
	var invert = func(c *Codec) ([]byte, []byte, int, error) {
		var msg = make([]byte, c.MessageSize())
		for i := range msg {
			msg[i] = byte(i*13 + 1)
		}
		var block, err = c.Encode(msg)
		require.NoError(t, err)
		for i := range block {
			block[i] ^= 0xff
		}
		var got, corrected, derr = c.Decode(block)
		return msg, got, corrected, derr
	}

	var full, err = NewCodec(223, 32)
	require.NoError(t, err)
	var msg, got, corrected, derr = invert(full)
	require.NoError(t, derr)
	assert.Zero(t, corrected)
	assert.NotEqual(t, msg, got)

	for _, shape := range [][2]int{{222, 32}, {32, 16}, {16, 8}} {
		var c, err = NewCodec(shape[0], shape[1])
		require.NoError(t, err)
		var _, _, _, derr = invert(c)
		assert.ErrorIs(t, derr, ErrUncorrectable, "RS(%d,%d)", c.BlockSize(), c.MessageSize())
	}
}

func TestCodecSingleParityOnlyDetects(t *testing.T) {
	var c, err = NewCodec(32, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Capacity())

	var msg = []byte("0123456789abcdef0123456789abcdef")
	var block, eerr = c.Encode(msg)
	require.NoError(t, eerr)

	for pos := range block {
		var bad = append([]byte(nil), block...)
		bad[pos] ^= 0x10
		var _, _, derr = c.Decode(bad)
		assert.ErrorIs(t, derr, ErrUncorrectable, "error at %d", pos)
	}
}

func TestCodecNoParity(t *testing.T) {
	var c, err = NewCodec(4, 0)
	require.NoError(t, err)

	var block, eerr = c.Encode([]byte{1, 2, 3, 4})
	require.NoError(t, eerr)
	assert.Equal(t, []byte{1, 2, 3, 4}, block)

	var got, n, derr = c.Decode([]byte{9, 9, 9, 9})
	require.NoError(t, derr)
	assert.Equal(t, []byte{9, 9, 9, 9}, got)
	assert.Equal(t, 0, n)
}

func TestCodecRejectsBadSizes(t *testing.T) {
	var _, err = NewCodec(250, 16)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	var c, _ = NewCodec(8, 4)
	var _, eerr = c.Encode(make([]byte, 7))
	assert.Error(t, eerr)
	var _, _, derr = c.Decode(make([]byte, 11))
	assert.Error(t, derr)
}
