// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/diskbench/internal/lineio"
	"github.com/shirou/gopsutil/load"
	"golang.org/x/sync/errgroup"
)

// cleanupTimeout bounds the cleanup phase that runs after the main
// context has been canceled by an interrupt.
const cleanupTimeout = 2 * time.Minute

// A Runner drives the sysbench fileio lifecycle for one configuration:
// prepare, one run per workload, cleanup. Exactly one child process is
// active at a time.
type Runner struct {
	Config  Config
	Tool    *Tool
	Profile Profile

	// Output receives all captured sysbench output, typically the run
	// log (and the console when verbose). May be nil.
	Output io.Writer

	// PollInterval is the cadence of the progress display. Zero means
	// a 10 second default.
	PollInterval time.Duration

	results []Result
}

// Results returns the per-workload results collected by Run.
func (r *Runner) Results() []Result {
	return r.results
}

func (r *Runner) poll() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return 10 * time.Second
}

// Run executes the full benchmark lifecycle. On cancellation the
// active child is terminated and, unless the configuration says
// otherwise, cleanup still runs (on a fresh, bounded context) before
// Run returns the cancellation error.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Config.Validate(); err != nil {
		return err
	}
	workloads := r.Profile.Workloads
	if len(workloads) == 0 {
		workloads = DefaultProfile().Workloads
	}
	if err := CheckSpace(r.Config.WorkDir, r.Config.FileSize); err != nil {
		return err
	}
	if err := r.prepare(ctx); err != nil {
		return r.abort(err)
	}
	for i, w := range workloads {
		if i > 0 && r.Config.Delay > 0 {
			log.Debug.Printf("waiting %s before %s", r.Config.Delay, w.Label())
			if err := sleep(ctx, r.Config.Delay); err != nil {
				return r.abort(err)
			}
		}
		if err := r.runWorkload(ctx, w); err != nil {
			return r.abort(err)
		}
	}
	if r.Config.SkipCleanup {
		log.Printf("skipping cleanup; test files remain in %s", r.Config.WorkDir)
		return nil
	}
	return r.Cleanup(ctx)
}

// abort handles a failed or interrupted run: unless cleanup is
// disabled, test files are removed using a fresh context so that an
// interrupt still results in a clean work directory.
func (r *Runner) abort(cause error) error {
	if r.Config.SkipCleanup {
		return cause
	}
	if _, ok := readMarker(r.Config.WorkDir); !ok {
		return cause
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := r.Cleanup(ctx); err != nil {
		log.Error.Printf("cleanup after failure: %v", err)
	}
	return cause
}

func (r *Runner) prepare(ctx context.Context) error {
	log.Printf("prepare: laying out %s of test files in %s", r.Config.FileSize, r.Config.WorkDir)
	if _, err := r.runPhase(ctx, "prepare", 0, prepareArgs(r.Config)); err != nil {
		return err
	}
	return writeMarker(r.Config.WorkDir, r.Config.FileSize)
}

func (r *Runner) runWorkload(ctx context.Context, w Workload) error {
	if avg, err := load.Avg(); err == nil {
		log.Debug.Printf("%s: load averages %.2f %.2f %.2f", w.Label(), avg.Load1, avg.Load5, avg.Load15)
	}
	log.Printf("%s: running for %s", w.Label(), r.Config.RunTime)
	out, err := r.runPhase(ctx, w.Label(), r.Config.RunTime, runArgs(r.Config, w))
	if err != nil {
		return err
	}
	result, ok := parseRunOutput(w.Label(), out)
	if !ok {
		log.Error.Printf("%s: could not parse sysbench statistics; see run log", w.Label())
	}
	r.results = append(r.results, result)
	if ok {
		log.Printf("%s: read %.2f MiB/s, write %.2f MiB/s, avg latency %.2fms",
			w.Label(), result.ReadMiBs, result.WriteMiBs, result.AvgMs)
	}
	return nil
}

// Cleanup removes the test files and the prepare marker. It is also
// invoked directly by the CLI's --cleanup mode.
func (r *Runner) Cleanup(ctx context.Context) error {
	c := r.Config
	if size, ok := readMarker(c.WorkDir); ok && size > 0 {
		c.FileSize = size
	}
	log.Printf("cleanup: removing test files from %s", c.WorkDir)
	if _, err := r.runPhase(ctx, "cleanup", 0, cleanupArgs(c)); err != nil {
		return err
	}
	return clearMarker(c.WorkDir)
}

// runPhase launches one sysbench child process and blocks until it
// exits, reporting elapsed progress each poll interval. total is the
// expected duration of the phase (zero when unknown).
func (r *Runner) runPhase(ctx context.Context, phase string, total time.Duration, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Tool.Path, args...)
	cmd.Dir = r.Config.WorkDir
	var (
		last lineio.LastLine
		tail = &tailBuffer{}
	)
	w := io.MultiWriter(tail, &last)
	if r.Output != nil {
		w = io.MultiWriter(w, lineio.PrefixWriter(r.Output, "sysbench: "))
	}
	cmd.Stdout = w
	cmd.Stderr = w
	log.Debug.Printf("%s: exec %s %v", phase, r.Tool.Path, args)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", errors.E(fmt.Sprintf("starting sysbench for %s", phase), err)
	}
	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		return cmd.Wait()
	})
	g.Go(func() error {
		ticker := time.NewTicker(r.poll())
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				elapsed := time.Since(start).Round(time.Second)
				if total > 0 {
					log.Printf("%s: %s elapsed of %s", phase, elapsed, total)
				} else {
					log.Printf("%s: %s elapsed", phase, elapsed)
				}
				if line := last.Line(); line != "" {
					log.Debug.Printf("%s: %s", phase, line)
				}
			}
		}
	})
	err := g.Wait()
	out := tail.String()
	if err != nil {
		if ctx.Err() != nil {
			return out, errors.E(errors.Canceled, fmt.Sprintf("%s interrupted", phase), ctx.Err())
		}
		msg := fmt.Sprintf("%s phase failed", phase)
		if line := last.Line(); line != "" {
			msg = fmt.Sprintf("%s: %s", msg, line)
		}
		return out, errors.E(msg, err)
	}
	log.Debug.Printf("%s: completed in %s", phase, time.Since(start).Round(time.Second))
	return out, nil
}

// tailBuffer retains the trailing portion of everything written to
// it. sysbench prints its summary statistics last, so the tail is all
// the parser needs, and a runaway child cannot grow the buffer without
// bound.
type tailBuffer struct {
	buf []byte
}

const tailBufferSize = 64 << 10

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if n := len(b.buf) - tailBufferSize; n > 0 {
		b.buf = b.buf[n:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
