// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grailbio/base/data"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// newStubRunner returns a Runner whose tool is a shell script that
// records its invocations and emits canned sysbench output. runAction
// is extra script run for the "run" phase, after recording.
func newStubRunner(t *testing.T, runAction string) (*Runner, string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "diskbench")
	assert.Nil(t, err)
	record := filepath.Join(dir, "record")
	script := fmt.Sprintf(`#!/bin/sh
echo "$*" >> %s
case "$*" in
*" run")
	%s
	cat <<'EOF'
%s
EOF
	;;
esac
exit 0
`, record, runAction, sampleRunOutput)
	stub := filepath.Join(dir, "sysbench")
	assert.Nil(t, ioutil.WriteFile(stub, []byte(script), 0755))
	work := filepath.Join(dir, "work")
	assert.Nil(t, EnsureWorkDir(work))
	r := &Runner{
		Config: Config{
			WorkDir:  work,
			FileSize: data.MiB,
			RunTime:  time.Second,
			Delay:    time.Millisecond,
			Threads:  1,
		},
		Tool:         &Tool{Path: stub},
		PollInterval: 10 * time.Millisecond,
	}
	return r, record, func() { os.RemoveAll(dir) }
}

func phases(t *testing.T, record string) []string {
	t.Helper()
	b, err := ioutil.ReadFile(record)
	assert.Nil(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	var out []string
	for _, line := range lines {
		fields := strings.Fields(line)
		out = append(out, fields[len(fields)-1])
	}
	return out
}

func TestRun(t *testing.T) {
	r, record, cleanup := newStubRunner(t, "")
	defer cleanup()
	assert.Nil(t, r.Run(context.Background()))
	expect.EQ(t, phases(t, record), []string{"prepare", "run", "run", "run", "cleanup"})
	if _, ok := readMarker(r.Config.WorkDir); ok {
		t.Error("marker not removed by cleanup")
	}
	results := r.Results()
	if got, want := len(results), 3; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	expect.EQ(t, results[0].Workload, "rndrd")
	expect.EQ(t, results[1].Workload, "rndwr")
	expect.EQ(t, results[2].Workload, "seqwr")
	expect.EQ(t, results[0].ReadMiBs, 120.35)

	// The workload modes were passed through to the tool.
	b, err := ioutil.ReadFile(record)
	assert.Nil(t, err)
	for _, mode := range []string{"rndrd", "rndwr", "seqwr"} {
		if !strings.Contains(string(b), "--file-test-mode="+mode) {
			t.Errorf("missing run for mode %s", mode)
		}
	}
}

func TestRunSkipCleanup(t *testing.T) {
	r, record, cleanup := newStubRunner(t, "")
	defer cleanup()
	r.Config.SkipCleanup = true
	assert.Nil(t, r.Run(context.Background()))
	expect.EQ(t, phases(t, record), []string{"prepare", "run", "run", "run"})
	if _, ok := readMarker(r.Config.WorkDir); !ok {
		t.Error("expected marker to remain with cleanup skipped")
	}
}

func TestRunInterrupt(t *testing.T) {
	// The run phase hangs; exec replaces the shell so that
	// terminating the child does not leave an orphan holding the
	// output pipe open.
	r, record, cleanup := newStubRunner(t, "exec sleep 60")
	defer cleanup()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := r.Run(ctx)
	if err == nil {
		t.Fatal("expected error from interrupted run")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("child not terminated promptly: %s", elapsed)
	}
	// Cleanup still ran and removed the marker.
	expect.EQ(t, phases(t, record), []string{"prepare", "run", "cleanup"})
	if _, ok := readMarker(r.Config.WorkDir); ok {
		t.Error("marker not removed by cleanup after interrupt")
	}
}

func TestCleanupOnly(t *testing.T) {
	r, record, cleanup := newStubRunner(t, "")
	defer cleanup()
	// A marker from a previous run determines the cleanup size.
	assert.Nil(t, writeMarker(r.Config.WorkDir, 4*data.MiB))
	assert.Nil(t, r.Cleanup(context.Background()))
	b, err := ioutil.ReadFile(record)
	assert.Nil(t, err)
	if !strings.Contains(string(b), "--file-total-size=4194304") {
		t.Errorf("cleanup did not use marker size: %s", b)
	}
	if _, ok := readMarker(r.Config.WorkDir); ok {
		t.Error("marker not removed")
	}
}

func TestRunOutputCapture(t *testing.T) {
	r, _, cleanup := newStubRunner(t, "")
	defer cleanup()
	var buf bytes.Buffer
	r.Output = &buf
	assert.Nil(t, r.Run(context.Background()))
	out := buf.String()
	if !strings.Contains(out, "sysbench: ") {
		t.Error("captured output not prefixed")
	}
	if !strings.Contains(out, "read, MiB/s:") {
		t.Error("captured output missing sysbench statistics")
	}
}

func TestRunValidates(t *testing.T) {
	r := &Runner{Config: Config{}}
	if err := r.Run(context.Background()); err == nil {
		t.Error("expected validation error")
	}
}
