// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/shirou/gopsutil/disk"
)

// markerName is the file written to the work directory after a
// successful prepare phase. Its presence indicates test files that a
// cleanup phase should remove; its content is the prepared size in
// bytes.
const markerName = ".diskbench-prepared"

// LogDirName is the subdirectory of the work directory that holds run
// logs.
const LogDirName = "logs"

// EnsureWorkDir creates the work directory and its log subdirectory if
// needed and verifies that the path is a writable directory.
func EnsureWorkDir(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, LogDirName), 0777); err != nil {
		return errors.E(fmt.Sprintf("creating work directory %s", dir), err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.E(errors.Invalid, fmt.Sprintf("%s is not a directory", dir))
	}
	f, err := ioutil.TempFile(dir, ".diskbench-probe")
	if err != nil {
		return errors.E(errors.NotAllowed, fmt.Sprintf("work directory %s is not writable", dir), err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// CheckSpace verifies that the filesystem containing dir has at least
// size bytes free.
func CheckSpace(dir string, size data.Size) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		return errors.E(fmt.Sprintf("statting filesystem of %s", dir), err)
	}
	if data.Size(usage.Free) < size {
		return errors.E(errors.Precondition,
			fmt.Sprintf("insufficient disk space in %s: %s free, %s requested", dir, data.Size(usage.Free), size))
	}
	log.Printf("work directory %s: %s free, %s requested", dir, data.Size(usage.Free), size)
	return nil
}

func markerPath(dir string) string {
	return filepath.Join(dir, markerName)
}

func writeMarker(dir string, size data.Size) error {
	return ioutil.WriteFile(markerPath(dir), []byte(strconv.FormatInt(int64(size), 10)+"\n"), 0666)
}

// readMarker returns the size recorded by a previous prepare phase, or
// 0 if there is no marker.
func readMarker(dir string) (data.Size, bool) {
	b, err := ioutil.ReadFile(markerPath(dir))
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, true
	}
	return data.Size(v), true
}

func clearMarker(dir string) error {
	err := os.Remove(markerPath(dir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
