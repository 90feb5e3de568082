// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Diskbench benchmarks a filesystem with sysbench fileio. It installs
// sysbench if needed, verifies the work directory and free space, then
// runs the prepare/run/cleanup lifecycle across the configured
// workloads, logging to the console and to a timestamped file under
// <work-dir>/logs/.
//
// Usage:
//
//	diskbench -w /mnt/data [-f 16GiB] [-t 5m] [-d 10s] [flags]
//
// Diskbench exits 0 on success and 1 on any validation or subprocess
// failure. An interrupt terminates the running sysbench process,
// performs cleanup, and exits 1.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/diskbench"
	"github.com/grailbio/diskbench/internal/colorlog"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"
)

const version = "0.3.1"

var (
	workDir     = pflag.StringP("work-dir", "w", "", "directory in which test files are created (required)")
	fileSize    = pflag.StringP("file-size", "f", "", "total size of test files (default: twice system memory)")
	runTime     = pflag.DurationP("time", "t", 5*time.Minute, "run time per workload")
	delay       = pflag.DurationP("delay", "d", 10*time.Second, "pause between workloads")
	skipCleanup = pflag.BoolP("skip-cleanup", "s", false, "leave test files in place after the run")
	cleanupOnly = pflag.BoolP("cleanup", "c", false, "remove test files from a previous run and exit")
	verbose     = pflag.BoolP("verbose", "v", false, "stream sysbench output to the console")
	debug       = pflag.Bool("debug", false, "debug logging (implies -v)")
	threads     = pflag.Int("threads", 1, "sysbench thread count")
	profile     = pflag.String("profile", "", "YAML workload profile overriding the built-in workloads")
	showVersion = pflag.Bool("version", false, "print version and exit")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: diskbench -w work-dir [flags]\n\nFlags:\n%s", pflag.CommandLine.FlagUsages())
	os.Exit(1)
}

func fatal(err error) {
	log.Error.Print(err)
	os.Exit(1)
}

func main() {
	pflag.Usage = usage
	pflag.Parse()
	if *showVersion {
		fmt.Println("diskbench", version)
		return
	}
	if pflag.NArg() > 0 {
		usage()
	}

	config := diskbench.Config{
		WorkDir:     *workDir,
		RunTime:     *runTime,
		Delay:       *delay,
		Threads:     *threads,
		SkipCleanup: *skipCleanup,
		Verbose:     *verbose || *debug,
	}
	if *fileSize != "" {
		size, err := diskbench.ParseSize(*fileSize)
		if err != nil {
			fmt.Fprintln(os.Stderr, "diskbench:", err)
			usage()
		}
		config.FileSize = size
	}
	if config.WorkDir == "" {
		fmt.Fprintln(os.Stderr, "diskbench: no work directory specified (-w)")
		usage()
	}

	if err := diskbench.EnsureWorkDir(config.WorkDir); err != nil {
		fmt.Fprintln(os.Stderr, "diskbench:", err)
		os.Exit(1)
	}
	logPath := filepath.Join(config.WorkDir, diskbench.LogDirName,
		fmt.Sprintf("diskbench-%s.log", time.Now().Format("20060102-150405")))
	logFile, err := os.Create(logPath)
	must.Nil(err, "creating run log")
	defer logFile.Close()

	level := log.Info
	if *debug {
		level = log.Debug
	}
	var out log.Outputter = colorlog.New(os.Stderr, logFile, level)
	if !*debug {
		// Progress lines are throttled so that short poll intervals
		// cannot flood the console.
		out = colorlog.RateLimited(out, rate.NewLimiter(rate.Limit(10), 20))
	}
	log.SetOutputter(out)
	log.Printf("diskbench %s; logging to %s", version, logPath)

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Error.Printf("received %s; terminating benchmark", sig)
		cancel()
		<-signals // a second signal exits immediately
		os.Exit(1)
	}()

	if config.FileSize == 0 {
		size, err := diskbench.DefaultFileSize()
		if err != nil {
			fatal(err)
		}
		config.FileSize = size
		log.Printf("file size defaulting to twice system memory: %s", size)
	}

	tool, err := diskbench.EnsureTool(ctx)
	if err != nil {
		fatal(err)
	}
	if v, err := tool.Version(ctx); err == nil {
		log.Printf("sysbench %s at %s", v, tool.Path)
	}

	workloads := diskbench.DefaultProfile()
	if *profile != "" {
		workloads, err = diskbench.LoadProfile(*profile)
		if err != nil {
			fatal(err)
		}
	}

	var output io.Writer = logFile
	if config.Verbose {
		output = io.MultiWriter(logFile, os.Stderr)
	}
	runner := &diskbench.Runner{
		Config:  config,
		Tool:    tool,
		Profile: workloads,
		Output:  output,
	}

	if *cleanupOnly {
		if err := runner.Cleanup(ctx); err != nil {
			fatal(err)
		}
		return
	}

	if err := runner.Run(ctx); err != nil {
		fatal(err)
	}
	fmt.Println()
	if err := diskbench.WriteSummary(os.Stdout, runner.Results()); err != nil {
		fatal(err)
	}
}
