package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:   	Streaming frame receiver.
 *
 * Description:	Audio arrives in chunks of any size, often from a sound
 *		card callback.  Feed appends the chunk to a buffer and
 *		runs the state machine as far as the samples allow:
 *
 *		Idle -> SeekingPreamble -> SeekingMarker -> CollectingPayload
 *		     -> Decoding -> Delivered | Failed -> SeekingPreamble
 *
 *		SeekingMarker falls back to SeekingPreamble when no marker
 *		shows up within one marker length, so a false preamble
 *		can't hold the receiver.
 *
 *		Symbols are demodulated as soon as they are complete.
 *		The length header is decoded as soon as its block is in,
 *		which tells us how many more bits to wait for.
 *
 *		Samples are discarded only while looking for a preamble,
 *		so frame positions stay valid while a frame is in progress.
 *
 *		Not safe for concurrent use.  One receiver per channel.
 *
 *---------------------------------------------------------------*/

import (
	"github.com/charmbracelet/log"
)

type ReceiverState int

const (
	Idle ReceiverState = iota
	SeekingPreamble
	SeekingMarker
	CollectingPayload
	Decoding
	Delivered
	Failed
)

func (s ReceiverState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case SeekingPreamble:
		return "SeekingPreamble"
	case SeekingMarker:
		return "SeekingMarker"
	case CollectingPayload:
		return "CollectingPayload"
	case Decoding:
		return "Decoding"
	case Delivered:
		return "Delivered"
	case Failed:
		return "Failed"
	}
	return "ReceiverState(?)"
}

// Outcome is one terminal result.  Exactly one of Payload and Err is set.
// Start and End are absolute sample positions in the fed stream.
type Outcome struct {
	Payload   []byte
	Corrected int
	Start     int64
	End       int64
	Err       error
}

// ReceiverStats are running totals since the receiver was created.
type ReceiverStats struct {
	Preambles    int // Preamble detections, including false ones.
	MarkerMisses int
	Delivered    int
	Failed       int
	Corrected    int // Bytes repaired by FEC in delivered frames.
}

type ReceiverOption func(*Receiver)

func WithReceiverLogger(l *log.Logger) ReceiverOption {
	return func(r *Receiver) {
		r.logger = l
	}
}

type Receiver struct {
	params *LinkParams
	demod  *Demodulator
	logger *log.Logger

	state ReceiverState

	buf    []int16
	base   int64 // Absolute position of buf[0].
	fed    int64 // Total samples fed.
	cursor int   // Where the current search resumes, index into buf.

	anchor        int // Preamble anchor, index into buf.
	payload_start int // First header sample, index into buf.

	bits        []byte
	expect_bits int
	header_done bool
	length      int
	header_fix  int   // Bytes corrected in the header block.
	header_err  error // Set when the header failed, reported by Decoding.

	stats ReceiverStats
}

func NewReceiver(p *LinkParams, opts ...ReceiverOption) *Receiver {
	var r = &Receiver{
		params: p,
		demod:  NewDemodulator(p),
		state:  Idle,
		buf:    make([]int16, 0, 2*(p.PreambleSamples()+p.MarkerSamples())),
		bits:   make([]byte, 0, p.FrameBits(p.MaxPayload())),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Receiver) State() ReceiverState { return r.state }
func (r *Receiver) Stats() ReceiverStats { return r.stats }

// Offset is the total number of samples fed so far.
func (r *Receiver) Offset() int64 { return r.fed }

// Reset drops everything buffered and starts looking for a preamble.
func (r *Receiver) Reset() {
	r.base = r.fed
	r.buf = r.buf[:0]
	r.cursor = 0
	r.state = SeekingPreamble
}

func (r *Receiver) log() *log.Logger {
	if r.logger != nil {
		return r.logger
	}
	return Logger()
}

/*------------------------------------------------------------------
 *
 * Name:        Feed
 *
 * Purpose:     Accept more samples and run the state machine.
 *
 * Inputs:	chunk	- Any number of samples, including none.
 *			  Copied; the caller may reuse it.
 *
 * Returns:	Frames completed by this chunk, in stream order.
 *		Usually empty.  Never blocks.
 *
 *----------------------------------------------------------------*/

func (r *Receiver) Feed(chunk []int16) []Outcome {
	r.buf = append(r.buf, chunk...)
	r.fed += int64(len(chunk))

	if r.state == Idle {
		r.state = SeekingPreamble
	}

	var out []Outcome
	for r.step(&out) {
	}
	return out
}

// step makes one transition.  false means it needs more samples.
func (r *Receiver) step(out *[]Outcome) bool {
	var p = r.params
	var d = r.demod

	switch r.state {
	case SeekingPreamble:
		var anchor, score, resume, found = d.findPreamble(r.buf, r.cursor, false)
		if !found {
			r.cursor = resume
			r.compact()
			return false
		}
		r.stats.Preambles++
		r.anchor = anchor
		r.cursor = anchor + p.PreambleSamples()
		r.state = SeekingMarker
		r.log().Debug("preamble", "at", r.base+int64(anchor), "score", score)
		return true

	case SeekingMarker:
		var limit = r.anchor + p.PreambleSamples() + d.marker_horizon
		var pos, next, status = d.findMarker(r.buf, r.cursor, limit, false)
		switch status {
		case markerPending:
			r.cursor = next
			return false
		case markerMissing:
			r.stats.MarkerMisses++
			r.log().Debug("no marker after preamble", "anchor", r.base+int64(r.anchor))
			r.cursor = r.resumeAfterAnchor()
			r.state = SeekingPreamble
			return true
		}
		r.log().Debug("marker", "at", r.base+int64(pos))
		r.payload_start = pos + p.MarkerSamples()
		r.bits = r.bits[:0]
		r.expect_bits = p.BlockSize() * 8
		r.header_done = false
		r.header_err = nil
		r.state = CollectingPayload
		return true

	case CollectingPayload:
		var sps = p.SamplesPerSymbol()
		var pos = r.payload_start + len(r.bits)*sps
		for len(r.bits) < r.expect_bits && pos+sps <= len(r.buf) {
			r.bits = append(r.bits, d.demodSymbol(r.buf[pos:pos+sps]))
			pos += sps
		}
		if len(r.bits) < r.expect_bits {
			return false
		}
		if !r.header_done {
			r.header_done = true
			r.length, r.header_fix, r.header_err = d.decodeHeader(r.bits)
			if r.header_err == nil && p.FrameBits(r.length) > r.expect_bits {
				r.expect_bits = p.FrameBits(r.length)
				return true
			}
		}
		r.state = Decoding
		return true

	case Decoding:
		var end = r.payload_start + r.expect_bits*p.SamplesPerSymbol()
		if r.header_err != nil {
			r.fail(out, r.header_err, end)
			return true
		}
		var payload, n, err = d.decodePayload(r.bits[p.BlockSize()*8:], r.length)
		if err != nil {
			r.fail(out, err, end)
			return true
		}
		r.deliver(out, payload, r.header_fix+n, end)
		return true
	}

	return false
}

func (r *Receiver) deliver(out *[]Outcome, payload []byte, corrected int, end int) {
	r.state = Delivered
	r.stats.Delivered++
	r.stats.Corrected += corrected

	var o = Outcome{Payload: payload, Corrected: corrected, Start: r.base + int64(r.anchor), End: r.base + int64(end)}
	*out = append(*out, o)

	r.log().Info("frame delivered", "bytes", len(payload), "corrected", corrected, "start", o.Start, "end", o.End)

	r.state = SeekingPreamble
	r.cursor = end
}

func (r *Receiver) fail(out *[]Outcome, err error, end int) {
	r.state = Failed
	r.stats.Failed++

	var o = Outcome{Err: err, Start: r.base + int64(r.anchor), End: r.base + int64(end)}
	*out = append(*out, o)

	r.log().Warn("frame failed", "err", err, "start", o.Start)

	// The frame was garbage or the anchor was false.  Either way a real
	// frame may begin anywhere after this preamble's refinement span.
	r.state = SeekingPreamble
	r.cursor = r.resumeAfterAnchor()
}

// resumeAfterAnchor skips the refinement span after the current anchor
// so the same preamble is not found again.
func (r *Receiver) resumeAfterAnchor() int {
	return r.anchor + r.demod.refine_span + 1
}

// compact discards samples before the search cursor.
func (r *Receiver) compact() {
	if r.cursor == 0 {
		return
	}
	r.cursor = min(r.cursor, len(r.buf))
	var keep = copy(r.buf, r.buf[r.cursor:])
	r.buf = r.buf[:keep]
	r.base += int64(r.cursor)
	r.cursor = 0
}
