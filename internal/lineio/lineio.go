// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package lineio provides line-oriented writers used to route child
// process output into run logs and progress displays.
package lineio

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter returns a writer that copies its input to w with prefix
// inserted at the start of every line. It is used to mark child
// process output in the run log.
func PrefixWriter(w io.Writer, prefix string) io.Writer {
	return &prefixWriter{w: w, prefix: []byte(prefix), atStart: true}
}

type prefixWriter struct {
	w       io.Writer
	prefix  []byte
	atStart bool
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if w.atStart {
			if _, err := w.w.Write(w.prefix); err != nil {
				return n - len(p), err
			}
			w.atStart = false
		}
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if _, err := w.w.Write(p); err != nil {
				return n - len(p), err
			}
			break
		}
		if _, err := w.w.Write(p[:i+1]); err != nil {
			return n - len(p), err
		}
		w.atStart = true
		p = p[i+1:]
	}
	return n, nil
}

// LastLine is a writer that retains the most recently completed
// non-empty line and a count of lines seen. It is safe for concurrent
// use; the runner's progress loop reads it while the output pump
// writes.
type LastLine struct {
	mu      sync.Mutex
	partial bytes.Buffer
	line    string
	count   int
}

// Write implements io.Writer. It never fails.
func (l *LastLine) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			l.partial.Write(p)
			break
		}
		l.partial.Write(p[:i])
		if line := l.partial.String(); line != "" {
			l.line = line
			l.count++
		}
		l.partial.Reset()
		p = p[i+1:]
	}
	return n, nil
}

// Line returns the most recent complete non-empty line.
func (l *LastLine) Line() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.line
}

// Count returns the number of non-empty lines seen so far.
func (l *LastLine) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
