// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	"github.com/grailbio/diskbench/internal/osinfo"
	"github.com/shirou/gopsutil/host"
)

// geteuid is overridden in tests.
var geteuid = os.Geteuid

// A packageManager knows how to install a package non-interactively on
// one distribution family.
type packageManager struct {
	name string
	argv []string // command and arguments; the package name is appended
	env  []string // extra environment, e.g. to suppress prompts
}

var packageManagers = map[string]packageManager{
	"debian": {
		name: "apt-get",
		argv: []string{"apt-get", "install", "-y", "-q"},
		env:  []string{"DEBIAN_FRONTEND=noninteractive"},
	},
	"rhel": {
		name: "yum",
		argv: []string{"yum", "install", "-y", "-q"},
	},
	"fedora": {
		name: "dnf",
		argv: []string{"dnf", "install", "-y", "-q"},
	},
}

// detectPackageManager picks the package manager for the running
// distribution. gopsutil's platform detection is consulted first;
// /etc/os-release is the fallback.
func detectPackageManager() (packageManager, error) {
	platform, family, _, err := host.PlatformInformation()
	if err != nil || family == "" {
		o, rerr := osinfo.Read("")
		if rerr != nil {
			return packageManager{}, errors.E("detecting distribution", rerr)
		}
		platform, family = o.ID, o.Family()
	}
	pm, ok := packageManagers[family]
	if !ok {
		return packageManager{}, errors.E(errors.NotSupported,
			fmt.Sprintf("unsupported distribution %q (family %q): install sysbench manually", platform, family))
	}
	// Prefer dnf on rhel-family systems that ship it.
	if pm.name == "yum" {
		if _, err := exec.LookPath("dnf"); err == nil {
			pm = packageManagers["fedora"]
		}
	}
	log.Debug.Printf("detected distribution %s (family %s); package manager %s", platform, family, pm.name)
	return pm, nil
}

// Package-manager lock contention (e.g. unattended upgrades holding
// the dpkg lock) is retried; everything else is fatal.
var installRetryPolicy = retry.Backoff(2*time.Second, 30*time.Second, 1.5)

const installRetries = 5

func transientInstallFailure(output string) bool {
	for _, s := range []string{
		"Could not get lock",
		"is locked by another process",
		"Waiting for cache lock",
	} {
		if strings.Contains(output, s) {
			return true
		}
	}
	return false
}

func installPackage(ctx context.Context, pm packageManager, pkg string) error {
	argv := append(append([]string(nil), pm.argv...), pkg)
	for retries := 0; ; retries++ {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Env = append(os.Environ(), pm.env...)
		output, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		if retries >= installRetries || !transientInstallFailure(string(output)) {
			return errors.E(errors.Unavailable,
				fmt.Sprintf("%s failed to install %s: %s", pm.name, pkg, lastLine(string(output))), err)
		}
		log.Printf("%s is busy; retrying %s install", pm.name, pkg)
		if err := retry.Wait(ctx, installRetryPolicy, retries); err != nil {
			return err
		}
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// EnsureTool resolves the sysbench binary, installing it through the
// platform package manager if it is not already on the PATH.
// Installation requires root.
func EnsureTool(ctx context.Context) (*Tool, error) {
	if path, err := exec.LookPath("sysbench"); err == nil {
		return &Tool{Path: path}, nil
	}
	pm, err := detectPackageManager()
	if err != nil {
		return nil, err
	}
	if geteuid() != 0 {
		return nil, errors.E(errors.NotAllowed,
			fmt.Sprintf("sysbench is not installed; run as root to install it via %s", pm.name))
	}
	log.Printf("sysbench not found; installing via %s", pm.name)
	if err := installPackage(ctx, pm, "sysbench"); err != nil {
		return nil, err
	}
	path, err := exec.LookPath("sysbench")
	if err != nil {
		return nil, errors.E(errors.NotExist, "sysbench still missing after install", err)
	}
	return &Tool{Path: path}, nil
}
