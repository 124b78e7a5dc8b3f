// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"net/http"

	"github.com/grailbio/montepi"
)

// Executor evaluates individual partitions on behalf of a session.
// The session is responsible for fanning out partitions, bounding
// their parallelism, and reducing their tallies; the executor decides
// where a partition runs.
type Executor interface {
	// Name returns a short name for the executor, for display.
	Name() string

	// Start starts the executor. It is called once, by Start, before
	// any partitions are submitted. If Start fails, nothing has been
	// acquired and the session is abandoned. Otherwise the returned
	// shutdown func releases the executor's resources; it is called
	// exactly once.
	Start(*Session) (shutdown func(), err error)

	// Run evaluates a single partition and returns its tally. Run
	// may be called concurrently.
	Run(ctx context.Context, part montepi.Partition) (montepi.Tally, error)

	// HandleDebug adds executor-specific debug handlers to the provided
	// http.ServeMux.
	HandleDebug(handler *http.ServeMux)
}
