// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package montepi

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/grailbio/montepi/metrics"
)

// checkInterval is the number of trials drawn between checks for
// context cancellation.
const checkInterval = 1 << 16

var (
	// PartitionsDone counts the partitions that ran to completion.
	PartitionsDone = metrics.NewCounter()
	// TrialsSampled counts the trials drawn by completed partitions.
	TrialsSampled = metrics.NewCounter()
	// InsideTrials counts the trials that fell inside the unit circle.
	InsideTrials = metrics.NewCounter()
)

// A Partition is one group of trials of a request, evaluated
// independently of all other partitions.
type Partition struct {
	// Index is the partition's position in the request, in [0, Partitions).
	Index int
	// Trials is the number of trials to draw.
	Trials uint64
	// Seed seeds the partition's random source.
	Seed int64
}

func (p Partition) String() string {
	return fmt.Sprintf("partition %d (%d trials)", p.Index, p.Trials)
}

// Run draws the partition's trials and returns their tally. Run
// records its progress in the metrics scope carried by ctx, if any.
// Run returns early with the context's error if ctx is done.
func (p Partition) Run(ctx context.Context) (Tally, error) {
	var (
		r     = rand.New(rand.NewSource(p.Seed))
		tally Tally
	)
	for tally.Trials < p.Trials {
		if err := ctx.Err(); err != nil {
			return Tally{}, err
		}
		n := p.Trials - tally.Trials
		if n > checkInterval {
			n = checkInterval
		}
		tally = tally.Merge(Sample(r, n))
	}
	scope := metrics.ContextScope(ctx)
	PartitionsDone.Incr(scope, 1)
	TrialsSampled.Incr(scope, tally.Trials)
	InsideTrials.Incr(scope, tally.Inside)
	return tally, nil
}

// Sample draws the given number of trials from r. Each trial is a
// point (x, y) with both coordinates uniform in [-1, 1).
func Sample(r *rand.Rand, trials uint64) Tally {
	var inside uint64
	for i := uint64(0); i < trials; i++ {
		x := r.Float64()*2 - 1
		y := r.Float64()*2 - 1
		if Inside(x, y) {
			inside++
		}
	}
	return Tally{Inside: inside, Trials: trials}
}

// Inside tells whether the point (x, y) lies within the closed unit
// circle.
func Inside(x, y float64) bool {
	return x*x+y*y <= 1
}
