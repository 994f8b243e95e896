package ultralink

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'github.com/riif/ultralink/src.ULTRALINK_VERSION=X'"`
var ULTRALINK_VERSION string

// Build describes the running binary as far as the toolchain recorded it.
type Build struct {
	Version  string
	Revision string // VCS revision, "-DIRTY" appended for a modified tree.
	Time     string
}

func (b Build) String() string {
	return fmt.Sprintf("ultralink - Version %s (revision %s, built at %s)", b.Version, b.Revision, b.Time)
}

func buildSetting(bi *debug.BuildInfo, key string, fallback string) string {
	if bi == nil {
		return fallback
	}
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}
	return fallback
}

// buildFrom reads the version, revision and time out of bi, which may be nil.
func buildFrom(bi *debug.BuildInfo) Build {
	var b = Build{
		Version:  ULTRALINK_VERSION,
		Revision: buildSetting(bi, "vcs.revision", "UNKNOWN"),
		Time:     buildSetting(bi, "vcs.time", "UNKNOWN"),
	}
	if b.Version == "" {
		b.Version = "!UNKNOWN!"
	}

	switch dirty, err := strconv.ParseBool(buildSetting(bi, "vcs.modified", "")); {
	case err != nil:
		b.Revision += "-UNKNOWNDIRTY"
	case dirty:
		b.Revision += "-DIRTY"
	}

	return b
}

func CurrentBuild() Build {
	var bi, _ = debug.ReadBuildInfo()
	return buildFrom(bi)
}

// PrintVersion writes one line, plus the full build info when verbose.
func PrintVersion(w io.Writer, verbose bool) {
	fmt.Fprintln(w, CurrentBuild())

	if verbose {
		var bi, _ = debug.ReadBuildInfo()
		fmt.Fprintf(w, "\nBuildInfo: %+v\n", bi)
	}
}
