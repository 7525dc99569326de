package logging

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// New returns the application logger. verbose enables debug events, quiet keeps only errors;
// quiet wins when both are set.
func New(w io.Writer, verbose, quiet bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Level:           log.InfoLevel,
		Prefix:          "videosnap",
		ReportTimestamp: verbose,
		TimeFormat:      time.TimeOnly,
	})

	switch {
	case quiet:
		logger.SetLevel(log.ErrorLevel)
	case verbose:
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}
