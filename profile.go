// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"fmt"
	"io/ioutil"

	"github.com/grailbio/base/errors"
	yaml "gopkg.in/yaml.v2"
)

// A Workload is a single sysbench fileio run phase.
type Workload struct {
	// Name labels the workload in logs and the summary table. It
	// defaults to the mode.
	Name string `yaml:"name,omitempty"`
	// Mode is the sysbench fileio test mode, e.g. "rndrd" or "seqwr".
	Mode string `yaml:"mode"`
	// BlockSize overrides sysbench's file block size, e.g. "16K".
	BlockSize string `yaml:"block_size,omitempty"`
	// Threads overrides the configured thread count for this workload.
	Threads int `yaml:"threads,omitempty"`
}

// Label returns the workload's display name.
func (w Workload) Label() string {
	if w.Name != "" {
		return w.Name
	}
	return w.Mode
}

// A Profile is an ordered list of workloads to run against the
// prepared test files.
type Profile struct {
	Workloads []Workload `yaml:"workloads"`
}

var validModes = map[string]bool{
	"seqwr":   true,
	"seqrewr": true,
	"seqrd":   true,
	"rndrd":   true,
	"rndwr":   true,
	"rndrw":   true,
}

// DefaultProfile returns the built-in workload list: random read,
// random write, and sequential write.
func DefaultProfile() Profile {
	return Profile{
		Workloads: []Workload{
			{Mode: "rndrd"},
			{Mode: "rndwr"},
			{Mode: "seqwr"},
		},
	}
}

// LoadProfile reads a workload profile from the YAML file at path.
func LoadProfile(path string) (Profile, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := yaml.UnmarshalStrict(b, &p); err != nil {
		return Profile{}, errors.E(errors.Invalid, fmt.Sprintf("parsing profile %s", path), err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, errors.E(fmt.Sprintf("profile %s", path), err)
	}
	return p, nil
}

func (p Profile) validate() error {
	if len(p.Workloads) == 0 {
		return errors.E(errors.Invalid, "no workloads defined")
	}
	for _, w := range p.Workloads {
		if !validModes[w.Mode] {
			return errors.E(errors.Invalid, fmt.Sprintf("unknown fileio test mode %q", w.Mode))
		}
		if w.Threads < 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("invalid thread count %d for %s", w.Threads, w.Label()))
		}
	}
	return nil
}
