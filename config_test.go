// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"testing"
	"time"

	"github.com/grailbio/base/data"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/shirou/gopsutil/mem"
)

func validConfig() Config {
	return Config{
		WorkDir:  "/mnt/data",
		FileSize: 16 * data.GiB,
		RunTime:  5 * time.Minute,
		Delay:    10 * time.Second,
		Threads:  1,
	}
}

func TestValidate(t *testing.T) {
	assert.Nil(t, validConfig().Validate())

	c := validConfig()
	c.WorkDir = ""
	if err := c.Validate(); err == nil {
		t.Error("expected error for missing work directory")
	}

	c = validConfig()
	c.FileSize = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero file size")
	}

	c = validConfig()
	c.RunTime = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero run time")
	}

	c = validConfig()
	c.Threads = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero threads")
	}
}

func TestDefaultFileSize(t *testing.T) {
	size, err := DefaultFileSize()
	assert.Nil(t, err)
	vm, err := mem.VirtualMemory()
	assert.Nil(t, err)
	expect.EQ(t, size, 2*data.Size(vm.Total))
}

func TestParseSize(t *testing.T) {
	for _, test := range []struct {
		arg  string
		want data.Size
	}{
		{"16GiB", 16 * data.GiB},
		{"16GB", 16 * data.GiB},
		{"16G", 16 * data.GiB},
		{"512MiB", 512 * data.MiB},
		{"512M", 512 * data.MiB},
		{"8KiB", 8 * data.KiB},
		{"1024", 1024},
		{"100B", 100},
		{"1.5G", data.Size(1.5 * float64(data.GiB))},
		{" 2GiB ", 2 * data.GiB},
	} {
		got, err := ParseSize(test.arg)
		if err != nil {
			t.Errorf("%s: %v", test.arg, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s: got %d, want %d", test.arg, got, test.want)
		}
	}
	for _, arg := range []string{"", "abc", "-1G", "G", "12XB"} {
		if _, err := ParseSize(arg); err == nil {
			t.Errorf("%q: expected error", arg)
		}
	}
}
