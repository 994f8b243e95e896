package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:     Direct digital synthesis of the chirp and FSK tones.
 *
 * Description:	A 32 bit phase accumulator wraps once per cycle.  The
 *		upper 8 bits index a 256 entry sine table.  Frequency
 *		changes only alter the per-sample phase increment, so
 *		the waveform stays continuous across every symbol
 *		boundary.  A phase jump would splatter energy into the
 *		other tone's bin and smear the correlation peak.
 *
 *---------------------------------------------------------------*/

import (
	"math"
)

const TICKS_PER_CYCLE = 256.0 * 256.0 * 256.0 * 256.0

var sine_table [256]float64

func init() {
	for j := range sine_table {
		sine_table[j] = math.Sin(float64(j) * 2 * math.Pi / 256)
	}
}

type toneGen struct {
	phase            uint32  // Phase accumulator.  Upper bits index sine_table.
	ticks_per_sample float64 // TICKS_PER_CYCLE / sample rate.
}

func newToneGen(sampleRate int) *toneGen {
	return &toneGen{ticks_per_sample: TICKS_PER_CYCLE / float64(sampleRate)}
}

// next returns one unit amplitude sample at freq and advances the phase.
func (g *toneGen) next(freq float64) float64 {
	var sam = sine_table[g.phase>>24]
	g.phase += uint32(freq*g.ticks_per_sample + 0.5)
	return sam
}

// tone fills out with a constant frequency.
func (g *toneGen) tone(out []float64, freq float64) {
	for n := range out {
		out[n] = g.next(freq)
	}
}

// sweep fills out with a linear chirp from f0 toward f1.  The last
// sample is one step short of f1 so a following tone at f1 joins smoothly.
func (g *toneGen) sweep(out []float64, f0 float64, f1 float64) {
	var n_total = float64(len(out))
	for n := range out {
		out[n] = g.next(f0 + (f1-f0)*float64(n)/n_total)
	}
}

// quantize scales unit samples to 16 bits with the configured headroom.
func quantize(dst []int16, src []float64, amplitude float64) {
	var scale = amplitude * 32767
	for n, v := range src {
		dst[n] = int16(math.Round(v * scale))
	}
}
