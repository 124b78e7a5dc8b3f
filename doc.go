// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package montepi estimates the constant Pi with the Monte Carlo method.

	A computation is described by a Request: a number of partitions, each
	of which draws a fixed number of independent trials. A trial is a
	point drawn uniformly from the square [-1, 1) x [-1, 1); it lands
	inside the unit circle with probability Pi/4. Partitions are mapped
	to Tallies by a Submitter, typically a cluster session provided by
	package github.com/grailbio/montepi/exec, and the tallies are reduced
	by summation. Since summation is commutative and associative, the
	Submitter is free to evaluate and combine partitions in any order.

	Randomness is unseeded by default, so estimates differ from run to
	run and only converge statistically. A non-zero Request.Seed makes
	every partition draw from its own deterministic source, derived from
	the request seed and the partition index.

	The estimator can be driven without a cluster:

		pi, err := montepi.Estimate(ctx, montepi.Inline{}, montepi.NewRequest(10))
*/
package montepi
