// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package montepi

import "fmt"

// A Tally counts the outcome of a set of trials.
type Tally struct {
	// Inside is the number of trials that fell inside the unit circle.
	Inside uint64
	// Trials is the total number of trials.
	Trials uint64
}

// Merge returns the sum of tallies t and u. Merge is commutative and
// associative, so tallies may be combined in any order or grouping.
func (t Tally) Merge(u Tally) Tally {
	return Tally{Inside: t.Inside + u.Inside, Trials: t.Trials + u.Trials}
}

// Pi returns the estimate of Pi implied by the tally, or 0 for an
// empty tally.
func (t Tally) Pi() float64 {
	if t.Trials == 0 {
		return 0
	}
	return 4.0 * float64(t.Inside) / float64(t.Trials)
}

func (t Tally) String() string {
	return fmt.Sprintf("%d/%d", t.Inside, t.Trials)
}

// Reduce merges all of the provided tallies.
func Reduce(tallies []Tally) Tally {
	var total Tally
	for _, t := range tallies {
		total = total.Merge(t)
	}
	return total
}
