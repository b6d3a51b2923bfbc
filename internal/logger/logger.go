// Package logger exposes the process-wide structured loggers.  Entries are
// JSON encoded and written both to stdout and to a size-rotated file.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLogger  = newLogger(os.Stdout, logrus.InfoLevel)
	WarnLogger  = newLogger(os.Stdout, logrus.WarnLevel)
	ErrorLogger = newLogger(os.Stderr, logrus.ErrorLevel)
)

// Options configures InitLoggers.  Zero values select the defaults.
type Options struct {
	File       string // rotated log file, "" disables file output
	Level      string // debug, info, warn, error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// InitLoggers points the package loggers at stdout plus a lumberjack-rotated
// file and applies the configured level.  It returns the rotating writer so
// the caller can close it on shutdown; the writer is nil when no file is set.
func InitLoggers(opts Options) io.Closer {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}

	var rotator *lumberjack.Logger
	out, errOut := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if opts.File != "" {
		_ = os.MkdirAll(filepath.Dir(opts.File), 0o755)
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		errOut = io.MultiWriter(os.Stderr, rotator)
	}

	InfoLogger = newLogger(out, level)
	WarnLogger = newLogger(out, level)
	ErrorLogger = newLogger(errOut, level)
	if rotator == nil {
		return nil
	}
	return rotator
}

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
