package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:	Diagnostic logging for the modem and session.
 *
 * Description:	One package level logger, like the debug level knobs
 *		of the FEC code, so the DSP paths do not need a logger
 *		threaded through every call.  Individual receivers and
 *		sessions may be given their own with an option.
 *
 *------------------------------------------------------------------*/

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var packageLogger atomic.Pointer[log.Logger]

func init() {
	packageLogger.Store(NewLogger(os.Stderr, log.InfoLevel))
}

// NewLogger builds a logger in the house style.
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "ultralink",
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
}

// SetLogger replaces the package logger.  nil restores the default.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = NewLogger(os.Stderr, log.InfoLevel)
	}
	packageLogger.Store(l)
}

func Logger() *log.Logger {
	return packageLogger.Load()
}
