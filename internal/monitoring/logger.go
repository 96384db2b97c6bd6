package monitoring

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// FileOptions controls the rotating log file opened by RotateTo.
type FileOptions struct {
	MaxSizeMB  int  // rotate after this many megabytes (default 32)
	MaxBackups int  // old files to keep (default 3)
	MaxAgeDays int  // zero keeps files regardless of age
	Compress   bool // gzip rotated files
	Tee        bool // also write to stderr
}

// RotateTo sends the standard logger, and therefore the default Logf, to a
// size-rotated file at path. The returned closer flushes and closes the file;
// callers should defer it.
func RotateTo(path string, opts FileOptions) (io.Closer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 32
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB, // MB
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	var out io.Writer = w
	if opts.Tee {
		out = io.MultiWriter(os.Stderr, w)
	}
	log.SetOutput(out)
	return w, nil
}
