// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package colorlog provides the log.Outputter used by diskbench: it
// writes leveled, optionally colorized status lines to the console and
// copies plain timestamped lines to the run log file.
package colorlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/grailbio/base/log"
	"golang.org/x/time/rate"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
)

func levelTag(level log.Level) (tag, color string) {
	switch level {
	case log.Error:
		return "error", ansiRed
	case log.Debug:
		return "debug", ansiCyan
	default:
		return "info", ansiGreen
	}
}

// An Outputter implements log.Outputter. The console stream carries
// short, colorized lines; the file stream (optional) carries plain
// lines with full timestamps.
type Outputter struct {
	mu      sync.Mutex
	console io.Writer
	file    io.Writer
	level   log.Level
	color   bool
	now     func() time.Time
}

// New returns an Outputter writing to console at the given level,
// copying every line to file when file is non-nil. Color is enabled
// only when the console is a terminal.
func New(console io.Writer, file io.Writer, level log.Level) *Outputter {
	return &Outputter{
		console: console,
		file:    file,
		level:   level,
		color:   isTerminal(console),
		now:     time.Now,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Level implements log.Outputter.
func (o *Outputter) Level() log.Level {
	return o.level
}

// Output implements log.Outputter.
func (o *Outputter) Output(_ int, level log.Level, s string) error {
	tag, color := levelTag(level)
	now := o.now()
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	if o.color {
		_, err = fmt.Fprintf(o.console, "%s %s%s%s: %s\n",
			now.Format("15:04:05"), color, tag, ansiReset, s)
	} else {
		_, err = fmt.Fprintf(o.console, "%s %s: %s\n", now.Format("15:04:05"), tag, s)
	}
	if o.file != nil {
		_, ferr := fmt.Fprintf(o.file, "%s %s: %s\n",
			now.Format("2006/01/02 15:04:05"), tag, s)
		if err == nil {
			err = ferr
		}
	}
	return err
}

// RateLimited wraps out with a limiter; messages beyond the allowed
// rate are dropped. It caps high-volume debug chatter without
// affecting the run log's captured sysbench output.
func RateLimited(out log.Outputter, limiter *rate.Limiter) log.Outputter {
	return &rateLimited{limiter, out}
}

type rateLimited struct {
	*rate.Limiter
	log.Outputter
}

// Output implements log.Outputter. Error-level messages are never
// dropped.
func (r *rateLimited) Output(calldepth int, level log.Level, s string) error {
	if level > log.Error && !r.Limiter.Allow() {
		return nil
	}
	return r.Outputter.Output(calldepth+1, level, s)
}
