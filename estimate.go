// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package montepi

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
)

// A Submitter evaluates requests. Submit maps every partition of the
// request to a tally and returns the reduction of all of them. It
// blocks until the whole computation has completed or failed.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Tally, error)
}

// Estimate submits the request to sub and returns the resulting
// estimate of Pi. Invalid requests are rejected before they are
// submitted. Estimate fails if the submitter's result does not
// account for exactly the requested number of trials.
func Estimate(ctx context.Context, sub Submitter, req Request) (float64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	tally, err := sub.Submit(ctx, req)
	if err != nil {
		return 0, err
	}
	if tally.Trials != req.Trials() {
		return 0, errors.E(errors.Integrity,
			fmt.Sprintf("result covers %d trials, requested %d", tally.Trials, req.Trials()))
	}
	if tally.Inside > tally.Trials {
		return 0, errors.E(errors.Integrity,
			fmt.Sprintf("result counts %d inside trials out of %d", tally.Inside, tally.Trials))
	}
	return 4.0 * float64(tally.Inside) / float64(req.Trials()), nil
}

// Inline is a Submitter that evaluates partitions one after the
// other in the calling goroutine.
type Inline struct{}

// Submit implements Submitter.
func (Inline) Submit(ctx context.Context, req Request) (Tally, error) {
	if err := req.Validate(); err != nil {
		return Tally{}, err
	}
	var total Tally
	for _, part := range req.Split() {
		tally, err := part.Run(ctx)
		if err != nil {
			return Tally{}, err
		}
		total = total.Merge(tally)
	}
	return total, nil
}
