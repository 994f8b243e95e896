package tools

import (
	"fmt"
	"io"
	"strings"
)

const hexDumpWidth = 16

// hexDump prints 16 bytes per line: offset, hex, then printable ASCII
// with everything else shown as a dot.  Nothing for an empty slice.
func hexDump(w io.Writer, p []byte) {
	for offset := 0; offset < len(p); offset += hexDumpWidth {
		var row = p[offset:min(offset+hexDumpWidth, len(p))]
		var cols, text strings.Builder

		for i, b := range row {
			if i > 0 {
				cols.WriteByte(' ')
			}
			fmt.Fprintf(&cols, "%02x", b)

			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			text.WriteByte(b)
		}

		fmt.Fprintf(w, "  %03x:  %-*s  %s\n", offset, hexDumpWidth*3-1, cols.String(), text.String())
	}
}
