package tools

/*------------------------------------------------------------------
 *
 * Name:	ultralink-atest
 *
 * Purpose:	Decode frames from .WAV recordings.
 *
 * Description:	The file is fed to a Receiver in small chunks, the same
 *		way live audio arrives, so this exercises the streaming
 *		path rather than the one-shot demodulator.  Much quicker
 *		than testing in real time.
 *
 *		With -L and/or -G the exit status tells whether the
 *		number decoded was in the expected range, for scripts.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"

	ultralink "github.com/riif/ultralink/src"
	"github.com/riif/ultralink/src/audio"
)

const DEFAULT_CHUNK = 1024

// AtestResult summarizes one file.
type AtestResult struct {
	Outcomes []ultralink.Outcome
	Stats    ultralink.ReceiverStats
	Duration time.Duration // Audio time, not processing time.
}

func (r AtestResult) Delivered() int {
	return r.Stats.Delivered
}

/*------------------------------------------------------------------
 *
 * Name:	DecodeSamples
 *
 * Purpose:	Run samples through a fresh receiver, chunk at a time.
 *
 * Inputs:	chunk	- Samples per Feed.  0 for DEFAULT_CHUNK.
 *		report	- Called for every outcome, may be nil.
 *
 *----------------------------------------------------------------*/

func DecodeSamples(p *ultralink.LinkParams, samples []int16, chunk int, report func(ultralink.Outcome)) AtestResult {
	if chunk <= 0 {
		chunk = DEFAULT_CHUNK
	}

	var rec = ultralink.NewReceiver(p)
	var result AtestResult

	for off := 0; off < len(samples); off += chunk {
		var end = min(off+chunk, len(samples))
		for _, o := range rec.Feed(samples[off:end]) {
			result.Outcomes = append(result.Outcomes, o)
			if report != nil {
				report(o)
			}
		}
	}

	result.Stats = rec.Stats()
	result.Duration = time.Duration(float64(len(samples)) / float64(p.SampleRate()) * float64(time.Second))

	return result
}

// printable shows text payloads quoted and anything else as hex.
func printable(payload []byte) string {
	if !utf8.Valid(payload) {
		return hex.EncodeToString(payload)
	}
	for _, r := range string(payload) {
		if r < 0x20 && r != '\t' {
			return hex.EncodeToString(payload)
		}
	}
	return fmt.Sprintf("%q", payload)
}

// printOutcome writes one line per frame, followed by a hex dump if asked.
func printOutcome(w io.Writer, ts *Timestamper, n int, o ultralink.Outcome, dump bool) {
	if o.Err != nil {
		fmt.Fprintf(w, "%s[%d] samples %d..%d: %s\n", ts.Prefix(time.Now()), n, o.Start, o.End, o.Err)
		return
	}

	if dump {
		fmt.Fprintf(w, "%s[%d] samples %d..%d, %d bytes, %d corrected\n",
			ts.Prefix(time.Now()), n, o.Start, o.End, len(o.Payload), o.Corrected)
		hexDump(w, o.Payload)
		return
	}

	fmt.Fprintf(w, "%s[%d] samples %d..%d, %d bytes, %d corrected: %s\n",
		ts.Prefix(time.Now()), n, o.Start, o.End, len(o.Payload), o.Corrected, printable(o.Payload))
}

func AtestMain() {
	var configFile = pflag.StringP("config", "c", "", "YAML profile.  Default is to search the usual places.")
	var errorIfLessThan = pflag.IntP("error-if-less-than", "L", -1, "Error if less than this number decoded.")
	var errorIfGreaterThan = pflag.IntP("error-if-greater-than", "G", -1, "Error if greater than this number decoded.")
	var chunk = pflag.IntP("chunk", "k", DEFAULT_CHUNK, "Samples fed to the receiver at a time.")
	var hexDisplay = pflag.BoolP("hex-display", "x", false, "Print frame contents as a hex dump.")
	var timestampFormat = pflag.StringP("timestamp-format", "T", "", "Precede each decoded frame with time, strftime format.  Overrides the profile.")
	var logLevel = pflag.StringP("log-level", "l", "", "debug, info, warn or error.  Overrides the profile.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s decodes modem frames from audio recordings.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "This provides an easy way to test decoding performance much quicker than normal real-time.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]... <WAV FILE>...\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "$ ultralink-gen -o test1.wav\n")
		fmt.Fprintf(os.Stderr, "$ %s test1.wav\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *version {
		ultralink.PrintVersion(os.Stdout, false)
		os.Exit(0)
	}

	if len(pflag.Args()) == 0 {
		fmt.Fprintf(os.Stderr, "Specify .WAV file name on command line.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var profile, _, err = FindProfile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		profile.Log.Level = *logLevel
	}
	if *timestampFormat != "" {
		profile.Log.TimestampFormat = *timestampFormat
	}

	var logger, lerr = profile.Logger(os.Stderr)
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", lerr)
		os.Exit(1)
	}
	ultralink.SetLogger(logger)

	var ts, terr = NewTimestamper(profile.Log.TimestampFormat)
	if terr != nil {
		logger.Fatal("bad timestamp format", "err", terr)
	}

	var start_time = time.Now()
	var total_filetime time.Duration
	var decoded_total = 0

	for _, wavFileName := range pflag.Args() {
		var samples, format, rerr = audio.ReadWAVFile(wavFileName)
		if rerr != nil {
			logger.Fatal("couldn't read audio", "file", wavFileName, "err", rerr)
		}

		fmt.Printf("%d samples per second.  %d bits per sample.  %d audio channels.\n",
			format.SampleRate, format.BitsPerSample, format.Channels)

		// The recording decides the sample rate.  Everything else comes
		// from the profile.
		var link = profile.Link
		link.SampleRate = format.SampleRate

		var params, perr = ultralink.NewLinkParams(link)
		if perr != nil {
			logger.Fatal("bad link parameters", "file", wavFileName, "err", perr)
		}

		var n = 0
		var result = DecodeSamples(params, samples, *chunk, func(o ultralink.Outcome) {
			n++
			printOutcome(os.Stdout, ts, n, o, *hexDisplay)
		})

		total_filetime += result.Duration

		fmt.Printf("%d audio samples in file.  Duration = %.1f seconds.\n", len(samples), result.Duration.Seconds())
		fmt.Printf("%d preambles, %d marker misses, %d failed, %d bytes corrected\n",
			result.Stats.Preambles, result.Stats.MarkerMisses, result.Stats.Failed, result.Stats.Corrected)
		fmt.Printf("%d from %s\n", result.Delivered(), wavFileName)

		decoded_total += result.Delivered()
	}

	var elapsed = time.Since(start_time)

	fmt.Printf("%d frames decoded in %.3f seconds.  %.1f x realtime\n",
		decoded_total, elapsed.Seconds(), total_filetime.Seconds()/max(elapsed.Seconds(), 1e-9))

	if *errorIfLessThan != -1 && decoded_total < *errorIfLessThan {
		fmt.Printf("\n * * * TEST FAILED: number decoded is less than %d * * * \n", *errorIfLessThan)
		os.Exit(1)
	}
	if *errorIfGreaterThan != -1 && decoded_total > *errorIfGreaterThan {
		fmt.Printf("\n * * * TEST FAILED: number decoded is greater than %d * * * \n", *errorIfGreaterThan)
		os.Exit(1)
	}
}
