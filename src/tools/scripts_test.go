package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riif/ultralink/src/audio"
)

// pflag assumes it is only ever set up once per process, but each
// XxxMain here parses the command line again.
func setupPflag(args []string) {
	os.Args = args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
}

func TestGenThenAtest(t *testing.T) {
	var dir = t.TempDir()
	var profile = writeProfile(t, quickProfile)
	var wav = filepath.Join(dir, "gen.wav")

	setupPflag([]string{"ultralink-gen", "-c", profile, "-N", "3", "-n", "0.05", "-z", "200", "-o", wav})
	GenFramesMain()

	var samples, format, err = audio.ReadWAVFile(wav)
	require.NoError(t, err)
	assert.Equal(t, 8000, format.SampleRate)
	assert.NotEmpty(t, samples)

	// Exits non-zero unless exactly three frames come back.
	setupPflag([]string{"ultralink-atest", "-c", profile, "-L", "3", "-G", "3", "-k", "333", wav})
	AtestMain()
}

func TestGenHexThenAtest(t *testing.T) {
	var profile = writeProfile(t, quickProfile)
	var wav = filepath.Join(t.TempDir(), "hex.wav")

	setupPflag([]string{"ultralink-gen", "-c", profile, "-x", "-o", wav, "00112233", "deadbeef"})
	GenFramesMain()

	// Same file twice, so four.
	setupPflag([]string{"ultralink-atest", "-c", profile, "-x", "-T", "%H:%M:%S", "-L", "4", "-G", "4", wav, wav})
	AtestMain()
}
