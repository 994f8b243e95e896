package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:	Link parameters shared by the modulator and demodulator.
 *
 * Description:	Both ends of the link must interpret a frame the same
 *		way, so the modulator, demodulator and receiver all hold
 *		the same *LinkParams.  Once built it is never modified.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"math"
)

const (
	DEFAULT_SAMPLE_RATE        = 48000
	DEFAULT_F0                 = 15000.0
	DEFAULT_DF                 = 1000.0
	DEFAULT_SAMPLES_PER_SYMBOL = 480
	DEFAULT_PREAMBLE_SAMPLES   = 4800
	DEFAULT_MARKER_SAMPLES     = 960
	DEFAULT_MESSAGE_BLOCK_SIZE = 32 // RS(48,32), same shape as FX.25 tag 0x04.
	DEFAULT_ECC_BLOCK_SIZE     = 16
	DEFAULT_DETECT_THRESHOLD   = 0.0 // Derive per detector, see PreambleThreshold and MarkerThreshold.
	DEFAULT_AMPLITUDE          = 0.8
	DEFAULT_MAX_PAYLOAD        = 1024

	// Length header is a big endian uint16.
	LENGTH_HEADER_BYTES = 2
	MAX_PAYLOAD_LIMIT   = 65535

	// Reed-Solomon over GF(256).
	RS_BLOCK_SIZE = 255

	// Derived detection thresholds.
	PREAMBLE_NOISE_SIGMAS = 8.0  // Noise alone gives correlation with std 1/sqrt(preamble).
	PREAMBLE_DATA_FACTOR  = 2.5  // FSK data reaches about 1.5/sqrt(time-bandwidth) against the chirp.
	MARKER_NOISE_MEANS    = 16.0 // Noise alone gives a tone score with mean 2/marker.
	MAX_DERIVED_THRESHOLD = 0.5
)

// LinkConfig is the configuration surface.  Zero values for the
// optional knobs (DetectThreshold, Amplitude, MaxPayload) pick defaults.
// A zero DetectThreshold derives one threshold per detector from the
// preamble and marker lengths; anything else is used for both.
type LinkConfig struct {
	SampleRate       int     `yaml:"sample_rate"`
	F0               float64 `yaml:"f0"`
	DF               float64 `yaml:"df"`
	SamplesPerSymbol int     `yaml:"samples_per_symbol"`
	PreambleSamples  int     `yaml:"preamble_samples"`
	MarkerSamples    int     `yaml:"marker_samples"`
	MessageBlockSize int     `yaml:"message_block_size"`
	ECCBlockSize     int     `yaml:"ecc_block_size"`

	DetectThreshold float64 `yaml:"detect_threshold"`
	Amplitude       float64 `yaml:"amplitude"`
	MaxPayload      int     `yaml:"max_payload"`
}

func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		SampleRate:       DEFAULT_SAMPLE_RATE,
		F0:               DEFAULT_F0,
		DF:               DEFAULT_DF,
		SamplesPerSymbol: DEFAULT_SAMPLES_PER_SYMBOL,
		PreambleSamples:  DEFAULT_PREAMBLE_SAMPLES,
		MarkerSamples:    DEFAULT_MARKER_SAMPLES,
		MessageBlockSize: DEFAULT_MESSAGE_BLOCK_SIZE,
		ECCBlockSize:     DEFAULT_ECC_BLOCK_SIZE,
		DetectThreshold:  DEFAULT_DETECT_THRESHOLD,
		Amplitude:        DEFAULT_AMPLITUDE,
		MaxPayload:       DEFAULT_MAX_PAYLOAD,
	}
}

// LinkParams is a validated, read-only LinkConfig.
type LinkParams struct {
	cfg LinkConfig
}

/*------------------------------------------------------------------
 *
 * Name:	NewLinkParams
 *
 * Purpose:	Validate a configuration and freeze it.
 *
 * Returns:	ErrInvalidParameters, wrapped with the reason, for:
 *
 *		- sample rate, samples per symbol, f0 or df not positive,
 *		- f0 + df at or above Nyquist,
 *		- preamble or marker duration not positive,
 *		- message block smaller than the 2 byte length header,
 *		- negative ECC size,
 *		- a block of 255 bytes or more.  The all ones vector is a
 *		  codeword of the full length code, so a block with every
 *		  bit inverted would decode cleanly to the wrong data.
 *		  Shortened codes don't have that weakness.
 *		- threshold outside [0,1], amplitude outside (0,1),
 *		- max payload outside what the length header can express.
 *
 *---------------------------------------------------------------*/

func NewLinkParams(cfg LinkConfig) (*LinkParams, error) {
	if cfg.Amplitude == 0 {
		cfg.Amplitude = DEFAULT_AMPLITUDE
	}
	if cfg.MaxPayload == 0 {
		cfg.MaxPayload = DEFAULT_MAX_PAYLOAD
	}

	var invalid = func(format string, a ...any) (*LinkParams, error) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameters, fmt.Sprintf(format, a...))
	}

	switch {
	case cfg.SampleRate <= 0:
		return invalid("sample rate %d must be positive", cfg.SampleRate)
	case cfg.SamplesPerSymbol <= 0:
		return invalid("samples per symbol %d must be positive", cfg.SamplesPerSymbol)
	case cfg.F0 <= 0:
		return invalid("f0 %g must be positive", cfg.F0)
	case cfg.DF <= 0:
		return invalid("df %g must be positive", cfg.DF)
	case cfg.F0+cfg.DF >= float64(cfg.SampleRate)/2:
		return invalid("f0+df %g Hz must be below Nyquist %g Hz", cfg.F0+cfg.DF, float64(cfg.SampleRate)/2)
	case cfg.PreambleSamples <= 0:
		return invalid("preamble duration %d must be positive", cfg.PreambleSamples)
	case cfg.MarkerSamples <= 0:
		return invalid("marker duration %d must be positive", cfg.MarkerSamples)
	case cfg.MessageBlockSize <= 0:
		return invalid("message block size %d must be positive", cfg.MessageBlockSize)
	case cfg.MessageBlockSize < LENGTH_HEADER_BYTES:
		return invalid("message block size %d cannot hold the %d byte length header", cfg.MessageBlockSize, LENGTH_HEADER_BYTES)
	case cfg.ECCBlockSize < 0:
		return invalid("ecc block size %d must not be negative", cfg.ECCBlockSize)
	case cfg.MessageBlockSize+cfg.ECCBlockSize >= RS_BLOCK_SIZE:
		return invalid("block of %d+%d bytes must be shorter than %d", cfg.MessageBlockSize, cfg.ECCBlockSize, RS_BLOCK_SIZE)
	case cfg.DetectThreshold < 0 || cfg.DetectThreshold > 1:
		return invalid("detect threshold %g must be in [0,1]", cfg.DetectThreshold)
	case cfg.Amplitude < 0 || cfg.Amplitude >= 1:
		return invalid("amplitude %g must be in (0,1)", cfg.Amplitude)
	case cfg.MaxPayload < 0 || cfg.MaxPayload > MAX_PAYLOAD_LIMIT:
		return invalid("max payload %d must be in [1,%d]", cfg.MaxPayload, MAX_PAYLOAD_LIMIT)
	}

	return &LinkParams{cfg: cfg}, nil
}

func (p *LinkParams) Config() LinkConfig       { return p.cfg }
func (p *LinkParams) SampleRate() int          { return p.cfg.SampleRate }
func (p *LinkParams) F0() float64              { return p.cfg.F0 }
func (p *LinkParams) DF() float64              { return p.cfg.DF }
func (p *LinkParams) F1() float64              { return p.cfg.F0 + p.cfg.DF }
func (p *LinkParams) SamplesPerSymbol() int    { return p.cfg.SamplesPerSymbol }
func (p *LinkParams) PreambleSamples() int     { return p.cfg.PreambleSamples }
func (p *LinkParams) MarkerSamples() int       { return p.cfg.MarkerSamples }
func (p *LinkParams) MessageBlockSize() int    { return p.cfg.MessageBlockSize }
func (p *LinkParams) ECCBlockSize() int        { return p.cfg.ECCBlockSize }
func (p *LinkParams) DetectThreshold() float64 { return p.cfg.DetectThreshold }
func (p *LinkParams) Amplitude() float64       { return p.cfg.Amplitude }
func (p *LinkParams) MaxPayload() int          { return p.cfg.MaxPayload }

/*------------------------------------------------------------------
 *
 * Name:	PreambleThreshold
 *
 * Purpose:	Normalized correlation needed to accept a preamble.
 *
 * Description:	Unless configured, the larger of two floors:
 *
 *		- white noise, which correlates with a P sample chirp
 *		  with a standard deviation of 1/sqrt(P),
 *		- FSK data, whose tones match the ends of the chirp.
 *		  That grows as the time-bandwidth product P*df/fs
 *		  shrinks.
 *
 *		For the defaults that is 0.25, while a signal 9 dB under
 *		the noise still correlates at about 0.33.
 *
 *---------------------------------------------------------------*/

func (p *LinkParams) PreambleThreshold() float64 {
	if p.cfg.DetectThreshold > 0 {
		return p.cfg.DetectThreshold
	}
	var n = float64(p.cfg.PreambleSamples)
	var tb = n * p.cfg.DF / float64(p.cfg.SampleRate)
	return min(MAX_DERIVED_THRESHOLD, max(PREAMBLE_NOISE_SIGMAS/math.Sqrt(n), PREAMBLE_DATA_FACTOR/math.Sqrt(tb)))
}

// MarkerThreshold is the tone score needed to accept the marker.  Noise
// exceeds it with probability exp(-MARKER_NOISE_MEANS) per position.
func (p *LinkParams) MarkerThreshold() float64 {
	if p.cfg.DetectThreshold > 0 {
		return p.cfg.DetectThreshold
	}
	return min(MAX_DERIVED_THRESHOLD, MARKER_NOISE_MEANS*2/float64(p.cfg.MarkerSamples))
}

// BlockSize is one transmitted FEC block: data plus parity.
func (p *LinkParams) BlockSize() int {
	return p.cfg.MessageBlockSize + p.cfg.ECCBlockSize
}

// PayloadBlocks is the number of FEC blocks after the length header.
func (p *LinkParams) PayloadBlocks(payloadLen int) int {
	return (payloadLen + p.cfg.MessageBlockSize - 1) / p.cfg.MessageBlockSize
}

// FrameBits counts every payload bit including the length header block.
func (p *LinkParams) FrameBits(payloadLen int) int {
	return (1 + p.PayloadBlocks(payloadLen)) * p.BlockSize() * 8
}

// FrameSamples is the exact length of Modulate's output.
func (p *LinkParams) FrameSamples(payloadLen int) int {
	return p.cfg.PreambleSamples + p.cfg.MarkerSamples + p.FrameBits(payloadLen)*p.cfg.SamplesPerSymbol
}
