// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/shirou/gopsutil/mem"
)

// Config is the full configuration of a benchmark run. It is assembled
// by cmd/diskbench from flags and validated before any phase runs.
type Config struct {
	// WorkDir is the directory in which sysbench lays out its test
	// files. It is created if it does not exist.
	WorkDir string
	// FileSize is the aggregate size of the test files. If zero,
	// DefaultFileSize is used.
	FileSize data.Size
	// RunTime is the duration of each workload's run phase.
	RunTime time.Duration
	// Delay is the pause between consecutive workloads.
	Delay time.Duration
	// Threads is the sysbench thread count for workloads that do not
	// set their own.
	Threads int
	// SkipCleanup leaves the test files in place after the run.
	SkipCleanup bool
	// Verbose streams sysbench output to the console in addition to
	// the run log.
	Verbose bool
}

// Validate checks the configuration, returning an errors.Invalid error
// describing the first problem found.
func (c Config) Validate() error {
	if c.WorkDir == "" {
		return errors.E(errors.Invalid, "no work directory specified")
	}
	if c.FileSize <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid file size %s", c.FileSize))
	}
	if c.RunTime <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid run time %s", c.RunTime))
	}
	if c.Delay < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid delay %s", c.Delay))
	}
	if c.Threads <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid thread count %d", c.Threads))
	}
	return nil
}

// DefaultFileSize returns the default benchmark file size: twice the
// total system memory, so that the run cannot be satisfied from the
// page cache alone.
func DefaultFileSize() (data.Size, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return 2 * data.Size(vm.Total), nil
}

var sizeSuffixes = []struct {
	suffix string
	size   data.Size
}{
	{"TiB", data.TiB}, {"TB", data.TiB}, {"T", data.TiB},
	{"GiB", data.GiB}, {"GB", data.GiB}, {"G", data.GiB},
	{"MiB", data.MiB}, {"MB", data.MiB}, {"M", data.MiB},
	{"KiB", data.KiB}, {"KB", data.KiB}, {"K", data.KiB},
	{"B", data.B},
}

// ParseSize parses a human-readable size such as "16GiB", "512M", or a
// plain byte count. Unit suffixes are binary regardless of spelling.
func ParseSize(s string) (data.Size, error) {
	arg := strings.TrimSpace(s)
	unit := data.B
	for _, suf := range sizeSuffixes {
		if strings.HasSuffix(arg, suf.suffix) {
			unit = suf.size
			arg = strings.TrimSpace(strings.TrimSuffix(arg, suf.suffix))
			break
		}
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("invalid size %q", s))
	}
	if v < 0 {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("negative size %q", s))
	}
	return data.Size(v * float64(unit)), nil
}
