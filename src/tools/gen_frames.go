package tools

/*------------------------------------------------------------------
 *
 * Name:	ultralink-gen
 *
 * Purpose:	Test program for generating modem frames.
 *
 * Description:	Given messages are modulated and written to a .WAV
 *		file, with silence before, between and after frames.
 *
 * Examples:	Built in test messages:
 *
 *			ultralink-gen -o z1.wav
 *			ultralink-atest z1.wav
 *
 *		User-defined content:
 *
 *			echo "Hello" | ultralink-gen -o z.wav -
 *			ultralink-gen -o z.wav "first message" "second message"
 *			ultralink-gen -o z.wav -x 00112233aabbccdd
 *
 *		With artificial noise added:
 *
 *			ultralink-gen -N 20 --noise 0.1 -o z2.wav
 *			ultralink-atest -L 20 -G 20 z2.wav
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/spf13/pflag"

	ultralink "github.com/riif/ultralink/src"
	"github.com/riif/ultralink/src/audio"
)

// GenOptions is everything GenFramesMain reads from the command line.
type GenOptions struct {
	FrameCount int
	Noise      float64 // Gaussian noise sigma, fraction of full scale.
	SilenceMs  int     // Before, between and after frames.
	Seed       uint64
}

/*------------------------------------------------------------------
 *
 * Name:	GenerateFrames
 *
 * Purpose:	Build the whole recording in memory.
 *
 * Inputs:	payloads	- Sent in order.  With FrameCount > 0 the
 *				  list is cycled until that many frames.
 *
 * Returns:	Samples ready for WriteWAV.
 *
 *----------------------------------------------------------------*/

func GenerateFrames(p *ultralink.LinkParams, payloads [][]byte, opts GenOptions) ([]int16, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	var mod = ultralink.NewModulator(p)
	var gap = make([]int16, opts.SilenceMs*p.SampleRate()/1000)

	var count = len(payloads)
	if opts.FrameCount > 0 {
		count = opts.FrameCount
	}

	var out = append([]int16(nil), gap...)
	for i := range count {
		var frame, err = mod.Modulate(payloads[i%len(payloads)])
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
		out = append(out, frame...)
		out = append(out, gap...)
	}

	if opts.Noise > 0 {
		addNoise(out, opts.Noise, opts.Seed)
	}

	return out, nil
}

// addNoise adds white Gaussian noise and clips to 16 bits.
func addNoise(samples []int16, sigma float64, seed uint64) {
	var r = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i, s := range samples {
		var v = float64(s) + r.NormFloat64()*sigma*32767
		samples[i] = int16(max(-32768, min(32767, math.Round(v))))
	}
}

// readPayloads turns the positional arguments into payloads.
// "-" reads lines from stdin.  With hex, every argument is hex.
func readPayloads(args []string, isHex bool) ([][]byte, error) {
	var payloads [][]byte

	for _, arg := range args {
		if arg == "-" {
			var scanner = bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				payloads = append(payloads, []byte(scanner.Text()))
			}
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			continue
		}

		if isHex {
			var b, err = hex.DecodeString(arg)
			if err != nil {
				return nil, fmt.Errorf("bad hex payload %q: %w", arg, err)
			}
			payloads = append(payloads, b)
			continue
		}

		payloads = append(payloads, []byte(arg))
	}

	return payloads, nil
}

func defaultPayloads(n int) [][]byte {
	var payloads = make([][]byte, max(n, 1))
	for i := range payloads {
		payloads[i] = fmt.Appendf(nil, "ULTRALINK TEST FRAME %d", i+1)
	}
	return payloads
}

func GenFramesMain() {
	var outputFile = pflag.StringP("output-file", "o", "", "Send output to .wav file.")
	var configFile = pflag.StringP("config", "c", "", "YAML profile.  Default is to search the usual places.")
	var frameCount = pflag.IntP("frame-count", "N", 0, "Generate specified number of frames, cycling through the messages.")
	var noise = pflag.Float64P("noise", "n", 0, "Add Gaussian noise with this standard deviation, as a fraction of full scale.")
	var silenceMs = pflag.IntP("silence", "z", 500, "Milliseconds of silence before, between and after frames.")
	var seed = pflag.Uint64("seed", 1, "Noise generator seed.")
	var isHex = pflag.BoolP("hex", "x", false, "Messages are hexadecimal bytes.")
	var sampleRate = pflag.IntP("audio-sample-rate", "r", 0, "Audio sample rate.  Overrides the profile.")
	var logLevel = pflag.StringP("log-level", "l", "", "debug, info, warn or error.  Overrides the profile.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s generates modem frames and writes them to a .WAV file.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]... -o <WAV FILE> [MESSAGE|-]...\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  echo -n \"Hello, world!\" | %s -o x.wav -\n", os.Args[0])
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

	var profile, _, err = FindProfile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	if *sampleRate != 0 {
		profile.Link.SampleRate = *sampleRate
	}
	if *logLevel != "" {
		profile.Log.Level = *logLevel
	}

	var logger, lerr = profile.Logger(os.Stderr)
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", lerr)
		os.Exit(1)
	}
	ultralink.SetLogger(logger)

	if *outputFile == "" {
		fmt.Fprintf(os.Stderr, "ERROR: The -o output file option must be specified.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var params, perr = profile.LinkParams()
	if perr != nil {
		logger.Fatal("bad link parameters", "err", perr)
	}

	var payloads, rerr = readPayloads(pflag.Args(), *isHex)
	if rerr != nil {
		logger.Fatal("bad message", "err", rerr)
	}
	if len(payloads) == 0 {
		payloads = defaultPayloads(*frameCount)
	}

	var samples, gerr = GenerateFrames(params, payloads, GenOptions{
		FrameCount: *frameCount,
		Noise:      *noise,
		SilenceMs:  *silenceMs,
		Seed:       *seed,
	})
	if gerr != nil {
		logger.Fatal("can't generate frames", "err", gerr)
	}

	if err := audio.WriteWAVFile(*outputFile, params.SampleRate(), samples); err != nil {
		logger.Fatal("can't write output", "file", *outputFile, "err", err)
	}

	var frames = len(payloads)
	if *frameCount > 0 {
		frames = *frameCount
	}
	fmt.Printf("%d frames, %d samples, %.1f seconds written to %s\n",
		frames, len(samples), float64(len(samples))/float64(params.SampleRate()), *outputFile)
}
