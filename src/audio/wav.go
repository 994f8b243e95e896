// Package audio moves modem samples between the core and the outside
// world: .WAV files for testing and a PortAudio device for live use.
package audio

/*------------------------------------------------------------------
 *
 * Purpose:	Read and write .WAV files.
 *
 * Description:	We write 16 bit mono PCM.  We read 8 or 16 bit PCM with
 *		one or two channels and keep only the first channel.
 *		Doesn't handle all possible cases but good enough for
 *		our purposes.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrNotWAV = errors.New("not a .WAV format file")

type wav_header struct { /* .WAV file header. */
	riff            [4]byte /* "RIFF" */
	filesize        int32   /* file length - 8 */
	wave            [4]byte /* "WAVE" */
	fmt             [4]byte /* "fmt " */
	fmtsize         int32   /* 16. */
	wformattag      int16   /* 1 for PCM. */
	nchannels       int16   /* 1 for mono, 2 for stereo. */
	nsamplespersec  int32   /* sampling freq, Hz. */
	navgbytespersec int32   /* = nblockalign * nsamplespersec. */
	nblockalign     int16   /* = wbitspersample / 8 * nchannels. */
	wbitspersample  int16   /* 16 or 8. */
	data            [4]byte /* "data" */
	datasize        int32   /* number of bytes following. */
}

// Read side.  binary.Read can only fill exported fields.
type chunk_header struct {
	ID       [4]byte
	Datasize uint32
}

type wav_format struct {
	FormatTag      int16
	Channels       int16
	SamplesPerSec  int32
	AvgBytesPerSec int32
	BlockAlign     int16
	BitsPerSample  int16
}

// Format describes a file as found on disk.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// WriteWAV writes samples as a 16 bit mono file.
func WriteWAV(w io.Writer, sampleRate int, samples []int16) error {
	var h = wav_header{
		riff:           [4]byte{'R', 'I', 'F', 'F'},
		wave:           [4]byte{'W', 'A', 'V', 'E'},
		fmt:            [4]byte{'f', 'm', 't', ' '},
		fmtsize:        16, // Always 16.
		wformattag:     1,  // 1 for PCM.
		nchannels:      1,
		nsamplespersec: int32(sampleRate),
		wbitspersample: 16,
		data:           [4]byte{'d', 'a', 't', 'a'},
		datasize:       int32(2 * len(samples)),
	}
	h.nblockalign = h.wbitspersample / 8 * h.nchannels
	h.navgbytespersec = int32(h.nblockalign) * h.nsamplespersec
	h.filesize = h.datasize + int32(binary.Size(h)) - 8

	var bw = bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("writing WAV header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("writing WAV data: %w", err)
	}

	return bw.Flush()
}

func WriteWAVFile(path string, sampleRate int, samples []int16) error {
	var f, err = os.Create(path) //nolint:gosec // We expect to write to a user-supplied file from CLI
	if err != nil {
		return err
	}

	if err := WriteWAV(f, sampleRate, samples); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

/*------------------------------------------------------------------
 *
 * Name:	ReadWAV
 *
 * Purpose:	Read a whole .WAV file.
 *
 * Returns:	Samples of the first channel, widened to 16 bits, and
 *		the file's format.
 *
 * Description:	Chunks other than "fmt " and "data" (LIST and friends)
 *		are skipped.  The fmt chunk may carry extension bytes.
 *
 *----------------------------------------------------------------*/

func ReadWAV(r io.Reader) ([]int16, Format, error) {
	var br = bufio.NewReader(r)
	var format Format

	var riff struct {
		RIFF     [4]byte
		Filesize uint32
		WAVE     [4]byte
	}
	if err := binary.Read(br, binary.LittleEndian, &riff); err != nil {
		return nil, format, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}
	if string(riff.RIFF[:]) != "RIFF" || string(riff.WAVE[:]) != "WAVE" {
		return nil, format, ErrNotWAV
	}

	var have_fmt bool
	var wf wav_format

	for {
		var ch chunk_header
		if err := binary.Read(br, binary.LittleEndian, &ch); err != nil {
			return nil, format, fmt.Errorf("WAV file error: no data chunk: %w", err)
		}

		switch string(ch.ID[:]) {
		case "fmt ":
			if ch.Datasize < 16 {
				return nil, format, fmt.Errorf("WAV file error: fmt chunk datasize %d is too small", ch.Datasize)
			}
			if err := binary.Read(br, binary.LittleEndian, &wf); err != nil {
				return nil, format, fmt.Errorf("WAV file error: %w", err)
			}
			if _, err := br.Discard(int(ch.Datasize - 16 + ch.Datasize%2)); err != nil {
				return nil, format, fmt.Errorf("WAV file error: %w", err)
			}
			have_fmt = true

		case "data":
			if !have_fmt {
				return nil, format, fmt.Errorf("WAV file error: found \"data\" where \"fmt \" was expected")
			}
			if wf.FormatTag != 1 {
				return nil, format, fmt.Errorf("only audio format 1 (PCM) is understood, file has %d", wf.FormatTag)
			}
			if wf.Channels != 1 && wf.Channels != 2 {
				return nil, format, fmt.Errorf("only 1 or 2 channels are understood, file has %d", wf.Channels)
			}
			if wf.BitsPerSample != 8 && wf.BitsPerSample != 16 {
				return nil, format, fmt.Errorf("only 8 or 16 bits per sample are understood, file has %d", wf.BitsPerSample)
			}

			format = Format{SampleRate: int(wf.SamplesPerSec), Channels: int(wf.Channels), BitsPerSample: int(wf.BitsPerSample)}

			var raw = make([]byte, ch.Datasize)
			var n, err = io.ReadFull(br, raw)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, format, fmt.Errorf("WAV file error: %w", err)
			}
			// A truncated file still yields the samples that are there.
			return decodePCM(raw[:n], format), format, nil

		default:
			if _, err := br.Discard(int(ch.Datasize + ch.Datasize%2)); err != nil {
				return nil, format, fmt.Errorf("WAV file error: %w", err)
			}
		}
	}
}

// decodePCM keeps the first channel.  8 bit samples are unsigned.
func decodePCM(raw []byte, f Format) []int16 {
	var bytesPerSample = f.BitsPerSample / 8
	var frame = bytesPerSample * f.Channels
	var out = make([]int16, len(raw)/frame)

	for i := range out {
		var p = raw[i*frame:]
		if bytesPerSample == 1 {
			out[i] = (int16(p[0]) - 128) << 8
		} else {
			out[i] = int16(binary.LittleEndian.Uint16(p))
		}
	}

	return out
}

func ReadWAVFile(path string) ([]int16, Format, error) {
	var f, err = os.Open(path) //nolint:gosec // We expect to read a user-supplied file from CLI
	if err != nil {
		return nil, Format{}, err
	}
	defer f.Close()

	return ReadWAV(f)
}
