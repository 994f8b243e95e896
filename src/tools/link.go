package tools

/*------------------------------------------------------------------
 *
 * Name:	ultralink
 *
 * Purpose:	Talk over the sound card.
 *
 * Description:	ultralink send MESSAGE...	Play one frame per message.
 *		ultralink listen		Print frames until interrupted
 *						or capture_seconds pass.
 *		ultralink --secure send|listen	Pair first, then protect every
 *						frame with the session cipher.
 *		ultralink pair			Key exchange.  Role from the
 *						profile or --role.
 *		ultralink version
 *
 *		With --loopback no sound card is used.  pair then runs
 *		both roles in this process, which is handy for checking a
 *		profile.
 *
 *		REMINDER: pairing is not authenticated.  Compare the
 *		fingerprints printed on both devices.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	ultralink "github.com/riif/ultralink/src"
	"github.com/riif/ultralink/src/audio"
)

// medium is what the subcommands need from a sound card.
type medium interface {
	ultralink.Channel
	Close() error
}

type loopbackMedium struct {
	*audio.Loopback
}

func (loopbackMedium) Close() error { return nil }

func openMedium(profile Profile, loopback bool, logger *log.Logger) (medium, error) {
	if loopback {
		var lead = profile.Audio.LeadInMs * profile.Link.SampleRate / 1000
		return loopbackMedium{&audio.Loopback{LeadIn: lead}}, nil
	}
	return audio.OpenDevice(profile.Link.SampleRate, profile.Audio.FramesPerBuffer, logger)
}

// linkEnv is shared by the subcommands.
type linkEnv struct {
	profile Profile
	params  *ultralink.LinkParams
	logger  *log.Logger
	ts      *Timestamper
	out     io.Writer

	session *ultralink.Session // Set by --secure.  Frames are sealed and opened with it.
}

func (e *linkEnv) send(ctx context.Context, ch ultralink.Channel, messages []string) error {
	var mod = ultralink.NewModulator(e.params)

	for _, m := range messages {
		var samples []int16
		var err error
		if e.session != nil {
			samples, err = e.session.SendFrame([]byte(m))
		} else {
			samples, err = mod.Modulate([]byte(m))
		}
		if err != nil {
			return err
		}
		if err := ch.Transmit(ctx, samples); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%ssent %d bytes, %.2f seconds\n", e.ts.Prefix(time.Now()), len(m),
			float64(len(samples))/float64(e.params.SampleRate()))
	}
	return nil
}

// listen prints frames until ctx is done or the channel runs dry.
func (e *linkEnv) listen(ctx context.Context, ch ultralink.Channel) (int, error) {
	var rec = ultralink.NewReceiver(e.params, ultralink.WithReceiverLogger(e.logger))
	var buf = make([]int16, max(e.profile.Audio.FramesPerBuffer, 1))
	var stats = newAudioStats(time.Duration(e.profile.Audio.StatsSeconds) * time.Second)
	var n = 0

	for {
		var got, err = ch.Capture(ctx, buf)

		if report, ok := stats.add(time.Now(), buf[:got]); ok {
			e.logger.Info(report)
		}

		for _, o := range rec.Feed(buf[:got]) {
			n++
			printOutcome(e.out, e.ts, n, e.open(o), false)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return rec.Stats().Delivered, nil
		default:
			return rec.Stats().Delivered, err
		}
	}
}

// open replaces a delivered payload with its plaintext when a session
// is in use.  A frame that fails to open is reported like a bad frame.
func (e *linkEnv) open(o ultralink.Outcome) ultralink.Outcome {
	if e.session == nil || o.Err != nil {
		return o
	}

	var plaintext, err = e.session.Receive(o.Payload)
	if err != nil {
		o.Payload = nil
		o.Err = err
		return o
	}
	o.Payload = plaintext
	return o
}

func (e *linkEnv) newSession(role ultralink.Role) (*ultralink.Session, error) {
	var opts, err = e.profile.SessionOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, ultralink.WithSessionLogger(e.logger))
	return ultralink.NewSession(role, e.params, opts...)
}

func (e *linkEnv) reportPairing(s *ultralink.Session, fp ultralink.Fingerprint) {
	fmt.Fprintf(e.out, "%s%s: key established, fingerprint %s, cipher %s\n", e.ts.Prefix(time.Now()), s.Role(), fp, s.Cipher())
	fmt.Fprintf(e.out, "WARNING: the key exchange is not authenticated.  Compare fingerprints on both devices.\n")
}

// pairSession runs one exchange and hands back the keyed session.
// The caller closes it.
func (e *linkEnv) pairSession(ctx context.Context, ch ultralink.Channel, role ultralink.Role) (*ultralink.Session, error) {
	var s, err = e.newSession(role)
	if err != nil {
		return nil, err
	}

	var fp, perr = s.BeginKeyExchange(ctx, ch)
	if perr != nil {
		s.Close()
		return nil, perr
	}

	e.reportPairing(s, fp)
	return s, nil
}

func (e *linkEnv) pair(ctx context.Context, ch ultralink.Channel, role ultralink.Role) error {
	var s, err = e.pairSession(ctx, ch, role)
	if err != nil {
		return err
	}
	return s.Close()
}

// pairLoopback runs both ends over one in-memory medium.
func (e *linkEnv) pairLoopback(ctx context.Context, ch ultralink.Channel) error {
	var sessions [2]*ultralink.Session
	for i, role := range []ultralink.Role{ultralink.Initiator, ultralink.Responder} {
		var s, err = e.newSession(role)
		if err != nil {
			return err
		}
		defer s.Close()
		sessions[i] = s
	}

	for _, s := range sessions {
		var fp, err = s.BeginKeyExchange(ctx, ch)
		if err != nil {
			return err
		}
		e.reportPairing(s, fp)
	}

	if sessions[0].Fingerprint() != sessions[1].Fingerprint() {
		return fmt.Errorf("%w: fingerprints differ", ultralink.ErrKeyExchangeFailed)
	}
	return nil
}

func LinkMain() {
	var configFile = pflag.StringP("config", "c", "", "YAML profile.  Default is to search the usual places.")
	var role = pflag.StringP("role", "R", "", "initiator or responder.  Overrides the profile.")
	var cipher = pflag.String("cipher", "", "xor or xchacha20poly1305.  Overrides the profile.")
	var keyLength = pflag.Int("key-length", 0, "Secret length in bytes.  Overrides the profile.")
	var seconds = pflag.Float64P("seconds", "t", 0, "Give up listening or pairing after this long.  Overrides the profile.")
	var loopback = pflag.Bool("loopback", false, "No sound card, loop transmitted audio back in memory.")
	var secure = pflag.BoolP("secure", "s", false, "send and listen pair first and protect each frame with the session cipher.")
	var timestampFormat = pflag.StringP("timestamp-format", "T", "", "Precede output with time, strftime format.  Overrides the profile.")
	var logLevel = pflag.StringP("log-level", "l", "", "debug, info, warn or error.  Overrides the profile.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s sends and receives data through the sound card.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]... [--secure] send MESSAGE...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [OPTION]... [--secure] listen\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [OPTION]... pair\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s version\n", os.Args[0])
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help || len(pflag.Args()) == 0 {
		pflag.Usage()
		os.Exit(0)
	}

	var command = pflag.Args()[0]
	if command == "version" {
		ultralink.PrintVersion(os.Stdout, true)
		return
	}

	var profile, used, err = FindProfile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	if *role != "" {
		profile.Session.Role = *role
	}
	if *cipher != "" {
		profile.Session.Cipher = *cipher
	}
	if *keyLength != 0 {
		profile.Session.KeyLength = *keyLength
	}
	if *seconds != 0 {
		profile.Audio.CaptureSeconds = *seconds
	}
	if *timestampFormat != "" {
		profile.Log.TimestampFormat = *timestampFormat
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

	if used != "" {
		logger.Debug("profile", "file", used)
	}

	var params, perr = profile.LinkParams()
	if perr != nil {
		logger.Fatal("bad link parameters", "err", perr)
	}

	var ts, terr = NewTimestamper(profile.Log.TimestampFormat)
	if terr != nil {
		logger.Fatal("bad timestamp format", "err", terr)
	}

	var env = &linkEnv{profile: profile, params: params, logger: logger, ts: ts, out: os.Stdout}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m, merr = openMedium(profile, *loopback, logger)
	if merr != nil {
		logger.Fatal("can't open audio", "err", merr)
	}
	defer m.Close()

	var runErr error

	if *secure && (command == "send" || command == "listen") {
		var r, rerr = profile.SessionRole()
		if rerr != nil {
			logger.Fatal("bad role", "err", rerr)
		}
		var pctx, cancel = context.WithTimeout(ctx, profile.CaptureTimeout())
		var s, serr = env.pairSession(pctx, m, r)
		cancel()
		if serr != nil {
			m.Close()
			logger.Fatal("pairing failed", "err", serr)
		}
		defer s.Close()
		env.session = s
	}

	switch command {
	case "send":
		runErr = env.send(ctx, m, pflag.Args()[1:])

	case "listen":
		var tctx, cancel = context.WithTimeout(ctx, profile.CaptureTimeout())
		defer cancel()
		var n int
		n, runErr = env.listen(tctx, m)
		fmt.Printf("%d frames received\n", n)

	case "pair":
		var tctx, cancel = context.WithTimeout(ctx, profile.CaptureTimeout())
		defer cancel()
		if *loopback {
			runErr = env.pairLoopback(tctx, m)
		} else {
			var r, rerr = profile.SessionRole()
			if rerr != nil {
				logger.Fatal("bad role", "err", rerr)
			}
			runErr = env.pair(tctx, m, r)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n", command)
		pflag.Usage()
		m.Close()
		os.Exit(1)
	}

	if runErr != nil {
		m.Close()
		logger.Fatal(command+" failed", "err", runErr)
	}
}
