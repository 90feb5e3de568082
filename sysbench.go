// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/data"
)

// reportInterval is the interval at which sysbench emits interim
// statistics during a run. The runner surfaces the latest such line in
// its progress display.
const reportInterval = 10 * time.Second

// Tool is an installed sysbench binary.
type Tool struct {
	// Path is the resolved path of the binary.
	Path string
}

// Version runs "sysbench --version" and returns the reported version
// string, e.g. "1.0.20".
func (t *Tool) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.Path, "--version").Output()
	if err != nil {
		return "", err
	}
	// Output is of the form "sysbench 1.0.20 ...".
	fields := strings.Fields(string(out))
	if len(fields) >= 2 && fields[0] == "sysbench" {
		return fields[1], nil
	}
	return strings.TrimSpace(string(out)), nil
}

func sizeArg(size data.Size) string {
	return "--file-total-size=" + strconv.FormatInt(int64(size), 10)
}

// prepareArgs returns the argument vector for the prepare phase.
func prepareArgs(c Config) []string {
	return []string{"fileio", sizeArg(c.FileSize), "prepare"}
}

// runArgs returns the argument vector for the run phase of w.
func runArgs(c Config, w Workload) []string {
	threads := c.Threads
	if w.Threads > 0 {
		threads = w.Threads
	}
	args := []string{
		"fileio",
		sizeArg(c.FileSize),
		"--file-test-mode=" + w.Mode,
		"--time=" + strconv.Itoa(int(c.RunTime.Seconds())),
		"--threads=" + strconv.Itoa(threads),
		"--report-interval=" + strconv.Itoa(int(reportInterval.Seconds())),
	}
	if w.BlockSize != "" {
		args = append(args, "--file-block-size="+w.BlockSize)
	}
	return append(args, "run")
}

// cleanupArgs returns the argument vector for the cleanup phase.
func cleanupArgs(c Config) []string {
	return []string{"fileio", sizeArg(c.FileSize), "cleanup"}
}

// A Result holds the statistics sysbench reports for one workload run.
type Result struct {
	Workload  string
	ReadMiBs  float64
	WriteMiBs float64
	Reads     float64 // operations per second
	Writes    float64 // operations per second
	AvgMs     float64
	P95Ms     float64
	Elapsed   time.Duration
}

var (
	readsRe   = regexp.MustCompile(`reads/s:\s+([\d.]+)`)
	writesRe  = regexp.MustCompile(`writes/s:\s+([\d.]+)`)
	readMBRe  = regexp.MustCompile(`read, MiB/s:\s+([\d.]+)`)
	writeMBRe = regexp.MustCompile(`written, MiB/s:\s+([\d.]+)`)
	avgRe     = regexp.MustCompile(`avg:\s+([\d.]+)`)
	p95Re     = regexp.MustCompile(`95th percentile:\s+([\d.]+)`)
	totalRe   = regexp.MustCompile(`total time:\s+([\d.]+)s`)
)

func matchFloat(re *regexp.Regexp, out string) (float64, bool) {
	m := re.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRunOutput extracts a Result from sysbench run-phase output. The
// second return value reports whether the output contained the summary
// statistics at all; partial output (e.g. from an interrupted run)
// yields false.
func parseRunOutput(workload, out string) (Result, bool) {
	r := Result{Workload: workload}
	var ok bool
	if r.ReadMiBs, ok = matchFloat(readMBRe, out); !ok {
		return r, false
	}
	r.WriteMiBs, _ = matchFloat(writeMBRe, out)
	r.Reads, _ = matchFloat(readsRe, out)
	r.Writes, _ = matchFloat(writesRe, out)
	r.AvgMs, _ = matchFloat(avgRe, out)
	r.P95Ms, _ = matchFloat(p95Re, out)
	if secs, ok := matchFloat(totalRe, out); ok {
		r.Elapsed = time.Duration(secs * float64(time.Second)).Round(time.Second)
	}
	return r, true
}
