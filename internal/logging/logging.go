package logging

import (
	"io"
	"log"
	"os"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	Prefix     string
}

// Setup points the standard logger at stderr and, when File is set, at a
// size-rotated log file. The returned closer flushes the file.
func Setup(opts Options) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if opts.Prefix != "" {
		log.SetPrefix(opts.Prefix + " ")
	}
	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}
	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return rotating
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Every logs one line out of every n calls. It keeps hot-path failures
// (saturated sockets, bad frames) from flooding the log.
type Every struct {
	n     uint64
	count atomic.Uint64
}

func NewEvery(n int) *Every {
	if n < 1 {
		n = 1
	}
	return &Every{n: uint64(n)}
}

func (e *Every) Printf(format string, args ...any) {
	if e.count.Add(1)%e.n == 1 || e.n == 1 {
		log.Printf(format, args...)
	}
}
