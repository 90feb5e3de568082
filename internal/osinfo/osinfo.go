// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package osinfo identifies the host Linux distribution from
// os-release(5) data. It backs the package-installation path when
// platform detection via gopsutil comes up empty.
package osinfo

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// OS describes a detected distribution.
type OS struct {
	// ID is the os-release ID field, e.g. "ubuntu".
	ID string
	// IDLike lists related distributions, e.g. ["debian"].
	IDLike []string
	// PrettyName is a human-readable description.
	PrettyName string
}

// Parse reads os-release formatted data from r.
func Parse(r io.Reader) (OS, error) {
	var o OS
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		value := strings.Trim(kv[1], `"'`)
		switch kv[0] {
		case "ID":
			o.ID = strings.ToLower(value)
		case "ID_LIKE":
			for _, id := range strings.Fields(value) {
				o.IDLike = append(o.IDLike, strings.ToLower(id))
			}
		case "PRETTY_NAME":
			o.PrettyName = value
		}
	}
	return o, scanner.Err()
}

// Read parses the os-release file at path, defaulting to
// /etc/os-release when path is empty.
func Read(path string) (OS, error) {
	if path == "" {
		path = "/etc/os-release"
	}
	f, err := os.Open(path)
	if err != nil {
		return OS{}, err
	}
	defer f.Close()
	return Parse(f)
}

var families = map[string]string{
	"debian": "debian",
	"ubuntu": "debian",
	"rhel":   "rhel",
	"centos": "rhel",
	"fedora": "fedora",
	"amzn":   "rhel",
	"rocky":  "rhel",
	"alma":   "rhel",
}

// Family maps the distribution onto a package-manager family: "debian"
// (apt), "rhel" or "fedora" (yum/dnf), or "" when unrecognized.
func (o OS) Family() string {
	if f, ok := families[o.ID]; ok {
		return f
	}
	for _, id := range o.IDLike {
		if f, ok := families[id]; ok {
			return f
		}
	}
	return ""
}
