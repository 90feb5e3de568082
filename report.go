// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diskbench

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteSummary renders the per-workload results as a table.
func WriteSummary(w io.Writer, results []Result) error {
	var tw tabwriter.Writer
	tw.Init(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(&tw, "WORKLOAD\tREAD(MiB/s)\tWRITE(MiB/s)\tREADS/S\tWRITES/S\tAVG(ms)\tP95(ms)\tELAPSED")
	for _, r := range results {
		fmt.Fprintf(&tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			r.Workload, r.ReadMiBs, r.WriteMiBs, r.Reads, r.Writes, r.AvgMs, r.P95Ms, r.Elapsed)
	}
	return tw.Flush()
}
