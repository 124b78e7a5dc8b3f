// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/montepi"
)

type partitionState int

const (
	partitionIdle partitionState = iota
	partitionRunning
	partitionDone
	partitionErr
)

// stateCounts is a snapshot of the counts of partitions in each state.
type stateCounts struct {
	idle    int
	running int
	done    int
	error   int
}

// Adds n to the count for state. n may be negative.
func (c *stateCounts) add(state partitionState, n int) {
	switch state {
	case partitionIdle:
		c.idle += n
	case partitionRunning:
		c.running += n
	case partitionDone:
		c.done += n
	case partitionErr:
		c.error += n
	default:
		log.Panicf("unhandled partition state: %v", state)
	}
}

// printTo prints the counts of c to t.
func (c stateCounts) printTo(t *status.Task) {
	if c.error > 0 {
		t.Printf("partitions idle/running/done/error: %d/%d/%d/%d",
			c.idle, c.running, c.done, c.error)
		return
	}
	t.Printf("partitions idle/running/done: %d/%d/%d", c.idle, c.running, c.done)
}

// tracker maintains the status of a request's partitions. A tracker
// with a nil status task only keeps counts.
type tracker struct {
	mu     sync.Mutex
	states []partitionState
	counts stateCounts
	task   *status.Task
}

func newTracker(s *status.Status, req montepi.Request, n int) *tracker {
	t := &tracker{states: make([]partitionState, n)}
	t.counts.idle = n
	if s != nil {
		t.task = s.Group("montepi").Start(req.String())
		t.counts.printTo(t.task)
	}
	return t
}

// Set transitions the partition to the provided state.
func (t *tracker) Set(part montepi.Partition, state partitionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts.add(t.states[part.Index], -1)
	t.states[part.Index] = state
	t.counts.add(state, 1)
	if t.task != nil {
		t.counts.printTo(t.task)
	}
}

// Counts returns a snapshot of the tracker's counts.
func (t *tracker) Counts() stateCounts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts
}

// Done marks the tracked request as finished.
func (t *tracker) Done() {
	if t.task != nil {
		t.task.Done()
	}
}
