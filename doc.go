// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
Package diskbench orchestrates sysbench fileio benchmarks. It ensures that
the sysbench binary is installed (installing it through the platform's
package manager when needed), validates the work directory and available
disk space, and then drives the sysbench fileio lifecycle: a prepare phase
that lays out the test files, one run phase per configured workload, and a
cleanup phase that removes them again.

Exactly one sysbench process is active at a time. While it runs, the runner
polls for liveness and reports elapsed progress; when the surrounding
context is canceled (typically by an interrupt), the child is terminated
and cleanup is still performed.

The cmd/diskbench command provides the CLI. A typical invocation:

	diskbench -w /mnt/data -f 16GiB -t 5m

which produces status output like:

	12:01:03 info: sysbench 1.0.20 at /usr/bin/sysbench
	12:01:03 info: work directory /mnt/data: 231GiB free, 16GiB requested
	12:01:03 info: prepare: laying out 16GiB of test files
	12:01:41 info: rndrd: 10s elapsed of 5m0s
	...
	12:17:20 info: cleanup: removing test files

and a final summary:

	WORKLOAD  READ(MiB/s)  WRITE(MiB/s)  READS/S  WRITES/S  AVG(ms)  P95(ms)  ELAPSED
	rndrd     120.35       0.00          7702.33  0.00      0.13     0.17     5m0s
	rndwr     0.00         88.10         0.00     5638.40   0.17     0.21     5m0s
	seqwr     0.00         241.22        0.00     15438.08  0.06     0.08     5m0s

All status lines and captured sysbench output are also written to a
timestamped log file under <work-dir>/logs/.
*/
package diskbench
