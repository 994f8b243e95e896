package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	ultralink "github.com/riif/ultralink/src"
)

func quickParams(t require.TestingT) *ultralink.LinkParams {
	var p, err = ParseProfile([]byte(quickProfile))
	require.NoError(t, err)
	params, err := p.LinkParams()
	require.NoError(t, err)
	return params
}

func TestGenerateAndDecode(t *testing.T) {
	var p = quickParams(t)

	rapid.Check(t, func(t *rapid.T) {
		var payloads = rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 0, 40), 1, 5).Draw(t, "payloads")
		var opts = GenOptions{
			FrameCount: rapid.IntRange(0, 6).Draw(t, "count"),
			Noise:      rapid.Float64Range(0, 0.2).Draw(t, "noise"),
			SilenceMs:  rapid.IntRange(10, 300).Draw(t, "silence"),
			Seed:       rapid.Uint64().Draw(t, "seed"),
		}
		var chunk = rapid.IntRange(1, 5000).Draw(t, "chunk")

		var samples, err = GenerateFrames(p, payloads, opts)
		require.NoError(t, err)

		var want = len(payloads)
		if opts.FrameCount > 0 {
			want = opts.FrameCount
		}

		var seen = 0
		var result = DecodeSamples(p, samples, chunk, func(ultralink.Outcome) { seen++ })

		require.Equal(t, want, result.Delivered())
		assert.Equal(t, want, seen)
		assert.Zero(t, result.Stats.Failed)
		for i, o := range result.Outcomes {
			assert.Equal(t, payloads[i%len(payloads)], o.Payload)
		}
	})
}

func TestGenerateFramesLayout(t *testing.T) {
	var p = quickParams(t)
	var payloads = [][]byte{[]byte("one"), []byte("two")}

	var samples, err = GenerateFrames(p, payloads, GenOptions{FrameCount: 3, SilenceMs: 100})
	require.NoError(t, err)

	var gap = 100 * p.SampleRate() / 1000
	assert.Len(t, samples, 4*gap+3*p.FrameSamples(3))
	assert.Equal(t, make([]int16, gap), samples[:gap])

	_, err = GenerateFrames(p, nil, GenOptions{FrameCount: 3})
	assert.Error(t, err)

	_, err = GenerateFrames(p, [][]byte{make([]byte, p.MaxPayload()+1)}, GenOptions{})
	assert.ErrorIs(t, err, ultralink.ErrPayloadTooLarge)
}

func TestReadPayloads(t *testing.T) {
	var got, err = readPayloads([]string{"hello", "world"}, false)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("hello"), []byte("world")}, got)

	got, err = readPayloads([]string{"00ff10"}, true)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x00, 0xff, 0x10}}, got)

	_, err = readPayloads([]string{"xyz"}, true)
	assert.Error(t, err)

	assert.Equal(t, []byte("ULTRALINK TEST FRAME 2"), defaultPayloads(3)[1])
	assert.Len(t, defaultPayloads(0), 1)
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, `"hello"`, printable([]byte("hello")))
	assert.Equal(t, "00ff", printable([]byte{0x00, 0xff}))
	assert.Equal(t, "610a", printable([]byte("a\n")))
}

func TestHexDump(t *testing.T) {
	var out bytes.Buffer
	hexDump(&out, []byte("0123456789abcdef\x00\xffZ"))

	assert.Equal(t,
		"  000:  30 31 32 33 34 35 36 37 38 39 61 62 63 64 65 66  0123456789abcdef\n"+
			"  010:  00 ff 5a                                         ..Z\n",
		out.String())

	out.Reset()
	hexDump(&out, nil)
	assert.Empty(t, out.String())

	out.Reset()
	hexDump(&out, make([]byte, 32))
	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), "  010:  00 00")
}

func TestPrintOutcome(t *testing.T) {
	var ts, _ = NewTimestamper("")
	var out bytes.Buffer

	printOutcome(&out, ts, 1, ultralink.Outcome{Payload: []byte("hi"), Start: 10, End: 20}, false)
	printOutcome(&out, ts, 2, ultralink.Outcome{Payload: []byte("hi"), Corrected: 1, Start: 30, End: 40}, true)
	printOutcome(&out, ts, 3, ultralink.Outcome{Err: ultralink.ErrFrameCorrupt, Start: 50, End: 60}, false)

	assert.Equal(t,
		"[1] samples 10..20, 2 bytes, 0 corrected: \"hi\"\n"+
			"[2] samples 30..40, 2 bytes, 1 corrected\n"+
			"  000:  68 69                                            hi\n"+
			"[3] samples 50..60: frame corrupt\n",
		out.String())
}
