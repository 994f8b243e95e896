package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:   	Find a frame in a sample buffer and turn it back into
 *		the payload.
 *
 * Description:	1. Preamble.  Slide the reference chirp along the input
 *		   and compute normalized cross correlation.  The first
 *		   position reaching the preamble threshold opens a
 *		   refinement span; the best score in that span is the
 *		   anchor.  The threshold is low, so the first crossing is
 *		   usually on a sidelobe ahead of the main peak.  The span
 *		   covers every sidelobe that can reach the threshold.
 *
 *		2. Marker.  From anchor + preamble length, look for the
 *		   f0+df tone with a phase insensitive detector.  The
 *		   first position reaching the threshold wins.  Giving up
 *		   after one marker length keeps a false preamble from
 *		   holding the receiver.
 *
 *		3. Bits.  One Goertzel power at each tone per symbol.
 *
 *		4. Blocks.  Length header first, so we know how many
 *		   data blocks follow, then the data blocks.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"math"
)

type markerStatus int

const (
	markerPending markerStatus = iota // Need more samples.
	markerFound
	markerMissing
)

type Demodulator struct {
	params *LinkParams
	codec  *Codec

	chirp        []float64 // Reference preamble, unit amplitude.
	chirp_energy float64
	marker       *toneRef
	g0, g1       goertzel

	refine_span    int // Positions examined after the first threshold crossing.
	marker_horizon int // Positions examined for the marker.
}

// Frame is one successfully decoded transmission.
type Frame struct {
	Payload   []byte
	Corrected int // Bytes repaired by FEC, header included.
	Start     int // Sample index of the preamble anchor.
	End       int // Sample index just past the last symbol.
}

func NewDemodulator(p *LinkParams) *Demodulator {
	var d = &Demodulator{
		params: p,
		codec:  codecFor(p),
		chirp:  make([]float64, p.PreambleSamples()),
		marker: newToneRef(p.F1(), p.SampleRate(), p.MarkerSamples()),
		g0:     newGoertzel(p.F0(), p.SampleRate()),
		g1:     newGoertzel(p.F1(), p.SampleRate()),
	}

	newToneGen(p.SampleRate()).sweep(d.chirp, p.F0(), p.F1())
	for _, v := range d.chirp {
		d.chirp_energy += v * v
	}

	// Chirp autocorrelation sidelobes are spaced sampleRate/df apart
	// and the m-th one is about 1/(pi*m) of the peak.
	var lobe = float64(p.SampleRate()) / p.DF()
	d.refine_span = min(int(math.Ceil((2+1/p.PreambleThreshold())*lobe)), p.PreambleSamples())
	d.marker_horizon = p.MarkerSamples()

	return d
}

func (d *Demodulator) Params() *LinkParams { return d.params }

/*------------------------------------------------------------------
 *
 * Name:        findPreamble
 *
 * Inputs:	x	- Samples.
 *		from	- First window position to examine.
 *		final	- No more samples will arrive.  Refine with what
 *			  is there instead of waiting.
 *
 * Returns:	anchor, score	- When found.
 *		resume		- Where to continue next time when not found.
 *		found
 *
 *----------------------------------------------------------------*/

func (d *Demodulator) findPreamble(x []int16, from int, final bool) (int, float64, int, bool) {
	var plen = len(d.chirp)
	var thr = d.params.PreambleThreshold()

	var i = max(from, 0)
	for ; i+plen <= len(x); i++ {
		var s = normCorr(x[i:i+plen], d.chirp, d.chirp_energy)
		if s < thr {
			continue
		}

		var last = i + d.refine_span
		if last+plen > len(x) {
			if !final {
				return 0, 0, i, false
			}
			last = len(x) - plen
		}

		var best, bestScore = i, s
		for j := i + 1; j <= last; j++ {
			var sj = normCorr(x[j:j+plen], d.chirp, d.chirp_energy)
			if sj > bestScore {
				best, bestScore = j, sj
			}
		}
		return best, bestScore, best + 1, true
	}

	return 0, 0, i, false
}

// FindPreamble locates the first preamble in a complete buffer.
func (d *Demodulator) FindPreamble(x []int16) (int, float64, error) {
	var anchor, score, _, found = d.findPreamble(x, 0, true)
	if !found {
		return 0, 0, ErrPreambleNotFound
	}
	return anchor, score, nil
}

// findMarker scans positions from..limit inclusive.  next is where a
// pending search should resume.
func (d *Demodulator) findMarker(x []int16, from int, limit int, final bool) (int, int, markerStatus) {
	var mlen = len(d.marker.cos)
	var thr = d.params.MarkerThreshold()

	for s := from; s <= limit; s++ {
		if s+mlen > len(x) {
			if final {
				return 0, s, markerMissing
			}
			return 0, s, markerPending
		}
		if d.marker.score(x[s:s+mlen]) >= thr {
			return s, s + 1, markerFound
		}
	}

	return 0, limit + 1, markerMissing
}

// demodSymbol decides one bit from exactly SamplesPerSymbol samples.
func (d *Demodulator) demodSymbol(x []int16) byte {
	if d.g1.power(x) > d.g0.power(x) {
		return 1
	}
	return 0
}

// DemodulateBits decides nbits symbols starting at x[0].
// It stops early when x runs out.
func (d *Demodulator) DemodulateBits(x []int16, nbits int) []byte {
	var sps = d.params.SamplesPerSymbol()
	var bits = make([]byte, 0, nbits)
	for pos := 0; len(bits) < nbits && pos+sps <= len(x); pos += sps {
		bits = append(bits, d.demodSymbol(x[pos:pos+sps]))
	}
	return bits
}

/*------------------------------------------------------------------
 *
 * Name:        decodeHeader
 *
 * Purpose:     Recover the payload length from the first block.
 *
 * Returns:	length, bytes corrected, or *FrameCorruptError.
 *
 * Description:	Besides FEC failure, reject a length above MaxPayload
 *		and nonzero filler.  Either means we decoded a block
 *		that was never a header.
 *
 *----------------------------------------------------------------*/

func (d *Demodulator) decodeHeader(bits []byte) (int, int, error) {
	var msg, corrected, err = d.codec.Decode(packBits(bits))
	if err != nil {
		return 0, 0, &FrameCorruptError{FailedBlocks: 1, TotalBlocks: 1, Header: true}
	}

	var length = int(binary.BigEndian.Uint16(msg))
	if length > d.params.MaxPayload() {
		return 0, 0, &FrameCorruptError{TotalBlocks: 1, Header: true}
	}
	for _, b := range msg[LENGTH_HEADER_BYTES:] {
		if b != 0 {
			return 0, 0, &FrameCorruptError{TotalBlocks: 1, Header: true}
		}
	}

	return length, corrected, nil
}

// decodePayload decodes every data block.  Any failure fails the frame.
func (d *Demodulator) decodePayload(bits []byte, length int) ([]byte, int, error) {
	var bs = d.params.BlockSize()
	var nblocks = d.params.PayloadBlocks(length)

	var payload = make([]byte, 0, nblocks*d.params.MessageBlockSize())
	var corrected, failed = 0, 0

	for k := 0; k < nblocks; k++ {
		var msg, n, err = d.codec.Decode(packBits(bits[k*bs*8 : (k+1)*bs*8]))
		if err != nil {
			failed++
			continue
		}
		corrected += n
		payload = append(payload, msg...)
	}

	if failed > 0 {
		return nil, 0, &FrameCorruptError{FailedBlocks: failed, TotalBlocks: nblocks + 1}
	}

	return payload[:length], corrected, nil
}

/*------------------------------------------------------------------
 *
 * Name:        Demodulate
 *
 * Purpose:     Locate and decode at most one frame in a complete buffer.
 *
 * Returns:	The first frame, or one of
 *		ErrPreambleNotFound, ErrMarkerNotFound, ErrFrameTruncated,
 *		*FrameCorruptError (errors.Is ErrFrameCorrupt).
 *
 *----------------------------------------------------------------*/

func (d *Demodulator) Demodulate(x []int16) (*Frame, error) {
	var p = d.params
	var sps = p.SamplesPerSymbol()

	var anchor, score, _, found = d.findPreamble(x, 0, true)
	if !found {
		return nil, ErrPreambleNotFound
	}

	var from = anchor + p.PreambleSamples()
	var mpos, _, status = d.findMarker(x, from, from+d.marker_horizon, true)
	if status != markerFound {
		return nil, ErrMarkerNotFound
	}

	Logger().Debug("frame sync", "anchor", anchor, "score", score, "marker", mpos)

	var start = mpos + p.MarkerSamples()
	var header_bits = p.BlockSize() * 8

	if start+header_bits*sps > len(x) {
		return nil, ErrFrameTruncated
	}

	var length, corrected, err = d.decodeHeader(d.DemodulateBits(x[start:], header_bits))
	if err != nil {
		return nil, err
	}

	var total = p.FrameBits(length)
	var end = start + total*sps
	if end > len(x) {
		return nil, ErrFrameTruncated
	}

	var payload, n, perr = d.decodePayload(d.DemodulateBits(x[start+header_bits*sps:], total-header_bits), length)
	if perr != nil {
		return nil, perr
	}

	return &Frame{Payload: payload, Corrected: corrected + n, Start: anchor, End: end}, nil
}
