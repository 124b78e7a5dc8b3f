// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Montepi estimates Pi with the Monte Carlo method on a compute
	cluster. Each of the requested partitions (10 by default) draws
	100000 random points in the square [-1, 1) x [-1, 1) and counts the
	ones that fall inside the unit circle; the counts are summed and
	scaled to an estimate of Pi:

		% montepi 20
		Initializing session...
		Session created successfully!
		Application: MontePi
		Master: internal://localhost
		Executor: internal, parallelism 8
		Driver: localhost:4040
		Calculating Pi using 20 partitions...
		Pi is approximately 3.141772
		Session stopped.

	The -master flag selects the cluster; for example, -master
	local://localhost evaluates partitions in separate processes
	started by bigmachine, and -master ec2://cluster?instance=c5.xlarge
	on EC2 instances.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/montepi"
	"github.com/grailbio/montepi/exec"
	"github.com/grailbio/montepi/picmd"
	"github.com/grailbio/montepi/piflags"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: montepi [flags] [partitions]

Montepi estimates Pi by sampling random points on a compute cluster.
The optional argument sets the number of partitions (default %d);
each partition draws -trials points.

The flags are:
`, montepi.DefaultPartitions)
		flag.PrintDefaults()
		os.Exit(2)
	}
	picmd.Main(func(fl *piflags.Flags, args []string) (picmd.Func, error) {
		partitions, err := montepi.ParsePartitions(args)
		if err != nil {
			return nil, err
		}
		req := fl.Request(partitions)
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return func(ctx context.Context, sess *exec.Session) error {
			fmt.Printf("Calculating Pi using %d partitions...\n", partitions)
			pi, err := montepi.Estimate(ctx, sess, req)
			if err != nil {
				return err
			}
			fmt.Printf("Pi is approximately %v\n", pi)
			return nil
		}, nil
	})
}
