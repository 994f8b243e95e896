package tools

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ultralink "github.com/riif/ultralink/src"
)

// quickProfile keeps the audio short so whole files decode quickly.
const quickProfile = `
link:
  sample_rate: 8000
  f0: 1600
  df: 800
  samples_per_symbol: 40
  preamble_samples: 400
  marker_samples: 80
  message_block_size: 16
  ecc_block_size: 8
audio:
  lead_in_ms: 50
log:
  level: warn
`

func writeProfile(t *testing.T, text string) string {
	var path = filepath.Join(t.TempDir(), "ultralink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestParseProfileDefaults(t *testing.T) {
	var p, err = ParseProfile(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)

	var params, perr = p.LinkParams()
	require.NoError(t, perr)
	assert.Equal(t, ultralink.DEFAULT_SAMPLE_RATE, params.SampleRate())
}

func TestParseProfileOverrides(t *testing.T) {
	var p, err = ParseProfile([]byte(quickProfile + `
session:
  role: responder
  cipher: xchacha20poly1305
  key_length: 24
`))
	require.NoError(t, err)

	assert.Equal(t, 8000, p.Link.SampleRate)
	assert.Equal(t, 800.0, p.Link.DF)
	assert.Equal(t, ultralink.DEFAULT_DETECT_THRESHOLD, p.Link.DetectThreshold, "untouched keys keep defaults")
	assert.Equal(t, 50, p.Audio.LeadInMs)
	assert.Equal(t, 1024, p.Audio.FramesPerBuffer)

	var role, rerr = p.SessionRole()
	require.NoError(t, rerr)
	assert.Equal(t, ultralink.Responder, role)

	var opts, oerr = p.SessionOptions()
	require.NoError(t, oerr)

	var params, _ = p.LinkParams()
	var s, serr = ultralink.NewSession(role, params, opts...)
	require.NoError(t, serr)
	assert.Equal(t, ultralink.CipherXChaCha20Poly1305, s.Cipher())
}

func TestParseProfileRejects(t *testing.T) {
	var _, err = ParseProfile([]byte("link:\n  sample_rat: 8000\n"))
	assert.ErrorContains(t, err, "sample_rat")

	_, err = ParseProfile([]byte("link: [1, 2]\n"))
	assert.Error(t, err)

	var p, _ = ParseProfile([]byte("session:\n  cipher: rot13\n"))
	_, err = p.SessionOptions()
	assert.Error(t, err)

	p, _ = ParseProfile([]byte("log:\n  level: chatty\n"))
	_, err = p.Logger(io.Discard)
	assert.Error(t, err)

	p, _ = ParseProfile([]byte("link:\n  df: 30000\n"))
	_, err = p.LinkParams()
	assert.ErrorIs(t, err, ultralink.ErrInvalidParameters)
}

func TestLoadProfile(t *testing.T) {
	var path = writeProfile(t, quickProfile)

	var p, err = LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, p.Link.SampleRate)

	var found, used, ferr = FindProfile(path)
	require.NoError(t, ferr)
	assert.Equal(t, path, used)
	assert.Equal(t, p, found)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = LoadProfile(writeProfile(t, "bogus: 1\n"))
	assert.ErrorContains(t, err, "ultralink.yaml")
}

func TestCaptureTimeout(t *testing.T) {
	var p = DefaultProfile()
	p.Audio.CaptureSeconds = 1.5
	assert.Equal(t, 1500*time.Millisecond, p.CaptureTimeout())
}

func TestTimestamper(t *testing.T) {
	var when = time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)

	var none, err = NewTimestamper("")
	require.NoError(t, err)
	assert.Equal(t, "", none.Prefix(when))

	ts, err := NewTimestamper("%Y-%m-%d %H:%M:%S")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09 07:05:02 ", ts.Prefix(when))
}
