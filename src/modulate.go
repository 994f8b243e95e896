package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:     Turn a payload into one transmit frame of samples.
 *
 * Description:	Frame layout:
 *
 *		preamble	chirp f0 -> f0+df, PreambleSamples long
 *		marker		tone f0+df, MarkerSamples long
 *		header block	payload length, big endian uint16, + parity
 *		data blocks	payload, last block zero padded, + parity
 *
 *		Each bit is SamplesPerSymbol samples of f0 (0) or f0+df (1),
 *		most significant bit of each byte first.  One phase
 *		accumulator runs through the whole frame.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

type Modulator struct {
	params *LinkParams
	codec  *Codec
}

func NewModulator(p *LinkParams) *Modulator {
	return &Modulator{params: p, codec: codecFor(p)}
}

// codecFor can't fail for validated parameters.
func codecFor(p *LinkParams) *Codec {
	var c, err = NewCodec(p.MessageBlockSize(), p.ECCBlockSize())
	if err != nil {
		panic("ultralink internal error: " + err.Error())
	}
	return c
}

// FrameBits returns the FEC encoded bit sequence for payload, header first.
func (m *Modulator) FrameBits(payload []byte) ([]byte, error) {
	if len(payload) > m.params.MaxPayload() {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), m.params.MaxPayload())
	}

	var mbs = m.params.MessageBlockSize()
	var bits = make([]byte, 0, m.params.FrameBits(len(payload)))

	var header = make([]byte, mbs)
	binary.BigEndian.PutUint16(header, uint16(len(payload)))

	var block, err = m.codec.Encode(header)
	if err != nil {
		return nil, err
	}
	bits = appendBits(bits, block)

	var msg = make([]byte, mbs)
	for off := 0; off < len(payload); off += mbs {
		clear(msg)
		copy(msg, payload[off:])

		block, err = m.codec.Encode(msg)
		if err != nil {
			return nil, err
		}
		bits = appendBits(bits, block)
	}

	return bits, nil
}

func (m *Modulator) Modulate(payload []byte) ([]int16, error) {
	var bits, err = m.FrameBits(payload)
	if err != nil {
		return nil, err
	}

	var samples = m.ModulateBits(bits)

	Logger().Debug("modulated frame", "payload", len(payload), "bits", len(bits), "samples", len(samples))

	return samples, nil
}

// ModulateBits renders preamble, marker and then bits.
func (m *Modulator) ModulateBits(bits []byte) []int16 {
	var p = m.params
	var sps = p.SamplesPerSymbol()
	var n = p.PreambleSamples() + p.MarkerSamples() + len(bits)*sps

	var wave = make([]float64, n)
	var g = newToneGen(p.SampleRate())

	var pos = 0
	g.sweep(wave[pos:pos+p.PreambleSamples()], p.F0(), p.F1())
	pos += p.PreambleSamples()

	g.tone(wave[pos:pos+p.MarkerSamples()], p.F1())
	pos += p.MarkerSamples()

	for _, bit := range bits {
		var f = p.F0()
		if bit != 0 {
			f = p.F1()
		}
		g.tone(wave[pos:pos+sps], f)
		pos += sps
	}

	var out = make([]int16, n)
	quantize(out, wave, p.Amplitude())
	return out
}

// appendBits serializes bytes most significant bit first, one bit per byte.
func appendBits(bits []byte, data []byte) []byte {
	for _, b := range data {
		for k := 7; k >= 0; k-- {
			bits = append(bits, (b>>k)&1)
		}
	}
	return bits
}

// packBits is the inverse of appendBits.  len(bits) must be a multiple of 8.
func packBits(bits []byte) []byte {
	var out = make([]byte, len(bits)/8)
	for i := range out {
		var b byte
		for _, bit := range bits[i*8 : i*8+8] {
			b = b<<1 | bit&1
		}
		out[i] = b
	}
	return out
}
