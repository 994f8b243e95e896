package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:     Detectors used by the synchronizer and demodulator.
 *
 *		normCorr	- normalized cross correlation against a
 *				  known waveform (preamble).
 *		toneRef		- phase insensitive, normalized energy at
 *				  one frequency (marker).
 *		goertzel	- single bin DFT power (bit decisions).
 *
 *----------------------------------------------------------------*/

import (
	"math"
)

/*------------------------------------------------------------------
 *
 * Name:        normCorr
 *
 * Purpose:     Normalized cross correlation of x with ref.
 *
 * Inputs:   	x		- Received window, len(ref) samples.
 *		ref		- Reference waveform.
 *		refEnergy	- Sum of squares of ref.
 *
 * Returns:     -1 .. 1.  1 means x is a scaled copy of ref.
 *		0 for a silent window.
 *
 *----------------------------------------------------------------*/

func normCorr(x []int16, ref []float64, refEnergy float64) float64 {
	var dot, energy float64

	for k, r := range ref {
		var v = float64(x[k])
		dot += v * r
		energy += v * v
	}

	if energy == 0 || refEnergy == 0 {
		return 0
	}

	return dot / math.Sqrt(energy*refEnergy)
}

// toneRef is a quadrature reference at one frequency for a fixed window length.
type toneRef struct {
	cos []float64
	sin []float64
}

func newToneRef(freq float64, sampleRate int, size int) *toneRef {
	var t = &toneRef{cos: make([]float64, size), sin: make([]float64, size)}
	var w = 2 * math.Pi * freq / float64(sampleRate)
	for n := range size {
		t.cos[n] = math.Cos(w * float64(n))
		t.sin[n] = math.Sin(w * float64(n))
	}
	return t
}

/*------------------------------------------------------------------
 *
 * Name:        score
 *
 * Purpose:     How much of the window's energy sits at the reference
 *		frequency, independent of phase.
 *
 * Returns:     About 1 for a pure tone at the frequency, near 0 for
 *		silence, noise or other frequencies.
 *
 *----------------------------------------------------------------*/

func (t *toneRef) score(x []int16) float64 {
	var i, q, energy float64

	for n, c := range t.cos {
		var v = float64(x[n])
		i += v * c
		q += v * t.sin[n]
		energy += v * v
	}

	if energy == 0 {
		return 0
	}

	return 2 * (i*i + q*q) / (float64(len(t.cos)) * energy)
}

type goertzel struct {
	coeff float64
}

func newGoertzel(freq float64, sampleRate int) goertzel {
	return goertzel{coeff: 2 * math.Cos(2*math.Pi*freq/float64(sampleRate))}
}

// power is proportional to the squared DFT magnitude of x at the frequency.
func (g goertzel) power(x []int16) float64 {
	var s1, s2 float64
	for _, v := range x {
		var s0 = float64(v) + g.coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - g.coeff*s1*s2
}
