package ultralink

import (
	"bytes"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFrom(t *testing.T) {
	var bi = &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "abc123"},
		{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	}}

	var b = buildFrom(bi)
	assert.Equal(t, "abc123-DIRTY", b.Revision)
	assert.Equal(t, "2024-05-01T10:00:00Z", b.Time)
	assert.Equal(t, "ultralink - Version !UNKNOWN! (revision abc123-DIRTY, built at 2024-05-01T10:00:00Z)", b.String())

	bi.Settings[2].Value = "false"
	assert.Equal(t, "abc123", buildFrom(bi).Revision)

	var none = buildFrom(nil)
	assert.Equal(t, "UNKNOWN-UNKNOWNDIRTY", none.Revision)
	assert.Equal(t, "UNKNOWN", none.Time)
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer
	PrintVersion(&out, false)
	assert.Contains(t, out.String(), "ultralink - Version ")
}
