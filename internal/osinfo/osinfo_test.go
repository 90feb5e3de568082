// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package osinfo

import (
	"reflect"
	"strings"
	"testing"
)

const ubuntuRelease = `NAME="Ubuntu"
VERSION="20.04.3 LTS (Focal Fossa)"
ID=ubuntu
ID_LIKE=debian
PRETTY_NAME="Ubuntu 20.04.3 LTS"
VERSION_ID="20.04"
`

const centosRelease = `NAME="CentOS Linux"
VERSION="8"
ID="centos"
ID_LIKE="rhel fedora"
PRETTY_NAME="CentOS Linux 8"
`

func TestParse(t *testing.T) {
	o, err := Parse(strings.NewReader(ubuntuRelease))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := o.ID, "ubuntu"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := o.IDLike, []string{"debian"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := o.PrettyName, "Ubuntu 20.04.3 LTS"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseQuoting(t *testing.T) {
	o, err := Parse(strings.NewReader(centosRelease))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := o.ID, "centos"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := o.IDLike, []string{"rhel", "fedora"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseJunk(t *testing.T) {
	o, err := Parse(strings.NewReader("# comment\n\nnot a pair\nID=debian\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := o.ID, "debian"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFamily(t *testing.T) {
	for _, test := range []struct {
		os   OS
		want string
	}{
		{OS{ID: "ubuntu"}, "debian"},
		{OS{ID: "debian"}, "debian"},
		{OS{ID: "centos"}, "rhel"},
		{OS{ID: "amzn"}, "rhel"},
		{OS{ID: "fedora"}, "fedora"},
		{OS{ID: "linuxmint", IDLike: []string{"ubuntu", "debian"}}, "debian"},
		{OS{ID: "arch"}, ""},
		{OS{}, ""},
	} {
		if got := test.os.Family(); got != test.want {
			t.Errorf("%v: got %q, want %q", test.os, got, test.want)
		}
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read("/nonexistent/os-release"); err == nil {
		t.Error("expected error")
	}
}
