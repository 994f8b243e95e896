// Package tools holds the command line programs.  Each XxxMain is
// wrapped by a tiny main package under cmd/.
package tools

/*------------------------------------------------------------------
 *
 * Purpose:	Read the YAML profile shared by all the programs.
 *
 * Description:	A profile has four sections:
 *
 *		link:     modem parameters, same names as LinkConfig.
 *		session:  role, cipher, key_length.
 *		audio:    frames_per_buffer, capture_seconds, lead_in_ms,
 *		          stats_seconds.
 *		log:      level, timestamp_format (strftime).
 *
 *		Anything left out keeps its default.  Unknown keys are
 *		an error so typos don't go unnoticed.
 *
 *		Command line options override the profile.
 *
 *------------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"gopkg.in/yaml.v3"

	ultralink "github.com/riif/ultralink/src"
)

type SessionProfile struct {
	Role      string `yaml:"role"`
	Cipher    string `yaml:"cipher"`
	KeyLength int    `yaml:"key_length"`
}

type AudioProfile struct {
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	CaptureSeconds  float64 `yaml:"capture_seconds"`
	LeadInMs        int     `yaml:"lead_in_ms"`
	StatsSeconds    int     `yaml:"stats_seconds"` // Capture level reports, 0 for none.
}

type LogProfile struct {
	Level           string `yaml:"level"`
	TimestampFormat string `yaml:"timestamp_format"`
}

type Profile struct {
	Link    ultralink.LinkConfig `yaml:"link"`
	Session SessionProfile       `yaml:"session"`
	Audio   AudioProfile         `yaml:"audio"`
	Log     LogProfile           `yaml:"log"`
}

func DefaultProfile() Profile {
	return Profile{
		Link: ultralink.DefaultLinkConfig(),
		Session: SessionProfile{
			Role:      "initiator",
			Cipher:    "xor",
			KeyLength: ultralink.DEFAULT_KEY_LENGTH,
		},
		Audio: AudioProfile{
			FramesPerBuffer: 1024,
			CaptureSeconds:  30,
			LeadInMs:        200,
			StatsSeconds:    100,
		},
		Log: LogProfile{
			Level: "info",
		},
	}
}

// Searched in order when no profile is named.
var search_locations = []string{
	"ultralink.yaml", // Current working directory
	filepath.Join(os.Getenv("HOME"), ".config", "ultralink", "ultralink.yaml"),
	"/usr/local/etc/ultralink.yaml",
	"/etc/ultralink.yaml",
}

// ParseProfile applies YAML on top of the defaults.
func ParseProfile(data []byte) (Profile, error) {
	var p = DefaultProfile()

	var dec = yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, err
	}

	return p, nil
}

func LoadProfile(path string) (Profile, error) {
	var data, err = os.ReadFile(path) //nolint:gosec // We expect to read a user-supplied file from CLI
	if err != nil {
		return DefaultProfile(), err
	}

	var p, perr = ParseProfile(data)
	if perr != nil {
		return p, fmt.Errorf("profile %s: %w", path, perr)
	}
	return p, nil
}

// FindProfile loads path if given, otherwise the first of
// search_locations that exists, otherwise the defaults.
// The second result is the file actually used, or "".
func FindProfile(path string) (Profile, string, error) {
	if path != "" {
		var p, err = LoadProfile(path)
		return p, path, err
	}

	for _, location := range search_locations {
		var p, err = LoadProfile(location)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return p, location, err
	}

	return DefaultProfile(), "", nil
}

func (p Profile) LinkParams() (*ultralink.LinkParams, error) {
	return ultralink.NewLinkParams(p.Link)
}

// Logger builds the diagnostic logger for w, normally stderr.
func (p Profile) Logger(w io.Writer) (*log.Logger, error) {
	var level, err = log.ParseLevel(p.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", p.Log.Level, err)
	}
	return ultralink.NewLogger(w, level), nil
}

func (p Profile) SessionRole() (ultralink.Role, error) {
	return ultralink.ParseRole(p.Session.Role)
}

func (p Profile) SessionOptions() ([]ultralink.SessionOption, error) {
	var kind, err = ultralink.ParseCipherKind(p.Session.Cipher)
	if err != nil {
		return nil, err
	}

	var opts = []ultralink.SessionOption{ultralink.WithCipher(kind)}
	if p.Session.KeyLength != 0 {
		opts = append(opts, ultralink.WithKeyLength(p.Session.KeyLength))
	}
	return opts, nil
}

func (p Profile) CaptureTimeout() time.Duration {
	return time.Duration(p.Audio.CaptureSeconds * float64(time.Second))
}

// Timestamper prefixes output lines when a strftime format is configured.
type Timestamper struct {
	f *strftime.Strftime
}

func NewTimestamper(format string) (*Timestamper, error) {
	if format == "" {
		return &Timestamper{}, nil
	}

	var f, err = strftime.New(format)
	if err != nil {
		return nil, fmt.Errorf("timestamp format %q: %w", format, err)
	}
	return &Timestamper{f: f}, nil
}

// Prefix returns "" or the formatted time followed by a space.
func (t *Timestamper) Prefix(now time.Time) string {
	if t.f == nil {
		return ""
	}
	return t.f.FormatString(now) + " "
}
