package audio

/*------------------------------------------------------------------
 *
 * Purpose:	Live audio through the default sound card.
 *
 * Description:	Two blocking PortAudio streams, one for playback and one
 *		for capture, each with its own int16 buffer of
 *		framesPerBuffer samples.  Device satisfies the modem's
 *		Channel interface.
 *
 *		Playback runs only while Transmit is sending so the
 *		speaker is otherwise idle.  Capture starts on the first
 *		Capture call and keeps running until Close.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

const DEFAULT_FRAMES_PER_BUFFER = 1024

type Device struct {
	sample_rate int
	logger      *log.Logger

	out     *portaudio.Stream
	out_buf []int16

	in         *portaudio.Stream
	in_buf     []int16
	in_started bool
	pending    []int16 // Captured but not yet handed out.
}

/*------------------------------------------------------------------
 *
 * Name:	OpenDevice
 *
 * Inputs:	sampleRate	- Must match the link parameters.
 *		framesPerBuffer	- 0 for DEFAULT_FRAMES_PER_BUFFER.
 *		logger		- For overflow and underflow reports.
 *
 * Returns:	Device.  Close it to release PortAudio.
 *
 *----------------------------------------------------------------*/

func OpenDevice(sampleRate int, framesPerBuffer int, logger *log.Logger) (*Device, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DEFAULT_FRAMES_PER_BUFFER
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	var d = &Device{
		sample_rate: sampleRate,
		logger:      logger,
		out_buf:     make([]int16, framesPerBuffer),
		in_buf:      make([]int16, framesPerBuffer),
	}

	var err error

	d.out, err = portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, d.out_buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening playback stream: %w", err)
	}

	d.in, err = portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, d.in_buf)
	if err != nil {
		d.out.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("opening capture stream: %w", err)
	}

	logger.Debug("audio device open", "rate", sampleRate, "frames_per_buffer", framesPerBuffer)

	return d, nil
}

func (d *Device) SampleRate() int { return d.sample_rate }

// Transmit plays samples and returns when the last buffer is queued.
func (d *Device) Transmit(ctx context.Context, samples []int16) error {
	if err := d.out.Start(); err != nil {
		return fmt.Errorf("starting playback: %w", err)
	}

	for off := 0; off < len(samples); off += len(d.out_buf) {
		if err := ctx.Err(); err != nil {
			d.out.Abort()
			return err
		}

		var n = copy(d.out_buf, samples[off:])
		clear(d.out_buf[n:])

		if err := d.out.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				d.logger.Warn("playback underflow")
				continue
			}
			d.out.Abort()
			return fmt.Errorf("playback: %w", err)
		}
	}

	return d.out.Stop()
}

// Capture fills buf with up to len(buf) samples, blocking for one
// device buffer at most.
func (d *Device) Capture(ctx context.Context, buf []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if !d.in_started {
		if err := d.in.Start(); err != nil {
			return 0, fmt.Errorf("starting capture: %w", err)
		}
		d.in_started = true
	}

	if len(d.pending) == 0 {
		if err := d.in.Read(); err != nil {
			if err != portaudio.InputOverflowed {
				return 0, fmt.Errorf("capture: %w", err)
			}
			d.logger.Warn("capture overflow, samples lost")
		}
		d.pending = d.in_buf
	}

	var n = copy(buf, d.pending)
	d.pending = d.pending[n:]

	return n, nil
}

func (d *Device) Close() error {
	var firstErr error

	if d.in_started {
		d.in.Stop()
	}
	if err := d.in.Close(); err != nil {
		firstErr = err
	}
	if err := d.out.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
