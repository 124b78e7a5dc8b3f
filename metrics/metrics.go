// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package metrics provides counters that are accumulated in scopes.
// A scope is filled by the code that evaluates a partition, possibly
// on a remote machine, and shipped back to the driver where scopes
// are merged. Counters are identified by their order of creation;
// they should therefore be created during package initialization so
// that every process running the same binary agrees on identifiers.
package metrics

import "sync"

var (
	mu sync.Mutex
	// ncounter is the number of counters created so far. We reserve
	// identifier 0 so that zero-valued counters are never mistaken for
	// registered ones.
	ncounter = 1
)

// A Counter is a monotonically increasing count.
type Counter struct {
	id int
}

// NewCounter creates and registers a new counter.
func NewCounter() Counter {
	mu.Lock()
	defer mu.Unlock()
	c := Counter{id: ncounter}
	ncounter++
	return c
}

// Incr adds n to the counter's value in the provided scope.
func (c Counter) Incr(scope *Scope, n uint64) {
	c.check()
	scope.add(c.id, n)
}

// Value returns the counter's value in the provided scope.
func (c Counter) Value(scope *Scope) uint64 {
	c.check()
	return scope.get(c.id)
}

func (c Counter) check() {
	if c.id == 0 {
		panic("metrics: counter used before NewCounter")
	}
}
