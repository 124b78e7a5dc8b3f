// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/montepi"
	"github.com/grailbio/montepi/metrics"
)

// LocalExecutor is an executor that evaluates partitions in-process,
// in the goroutine that submits them.
type localExecutor struct {
	sess *Session
}

func newLocalExecutor() *localExecutor {
	return &localExecutor{}
}

func (*localExecutor) Name() string { return "internal" }

func (l *localExecutor) Start(sess *Session) (shutdown func(), err error) {
	l.sess = sess
	return func() {}, nil
}

func (l *localExecutor) Run(ctx context.Context, part montepi.Partition) (tally montepi.Tally, err error) {
	defer func() {
		if e := recover(); e != nil {
			stack := debug.Stack()
			err = fmt.Errorf("panic while evaluating %s: %v\n%s", part, e, string(stack))
			err = errors.E(err, errors.Fatal)
		}
	}()
	return part.Run(metrics.ScopedContext(ctx, l.sess.Scope()))
}

func (*localExecutor) HandleDebug(*http.ServeMux) {}
