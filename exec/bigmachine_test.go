// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"net/http"
	"testing"

	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine/testsystem"
	"github.com/grailbio/montepi"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestBigmachineExecutor(t *testing.T) {
	system := testsystem.New()
	system.Machineprocs = 2
	var s status.Status
	sess, err := Start(Bigmachine(system), Parallelism(5), Status(&s))
	assert.NoError(t, err)
	defer sess.Shutdown()

	x := sess.Executor().(*bigmachineExecutor)
	// Five-way parallelism over two-proc machines needs three machines.
	expect.EQ(t, len(x.machines), 3)
	expect.EQ(t, system.N(), 3)
	if s.Group(BigmachineStatusGroup) == nil {
		t.Error("missing machine status group")
	}

	ctx := context.Background()
	part := montepi.Partition{Index: 0, Trials: 5000, Seed: 3}
	want, err := part.Run(ctx)
	assert.NoError(t, err)
	// Successive runs are spread over all machines.
	for i := 0; i < 2*len(x.machines); i++ {
		got, err := x.Run(ctx, part)
		assert.NoError(t, err)
		expect.EQ(t, got, want)
	}
	if got, want := montepi.PartitionsDone.Value(sess.Scope()), uint64(2*len(x.machines)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	sess.HandleDebug(http.NewServeMux())
}

func TestBigmachineShutdown(t *testing.T) {
	system := testsystem.New()
	sess, err := Start(Bigmachine(system), Parallelism(1))
	assert.NoError(t, err)
	if got, want := system.N(), 1; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	sess.Shutdown()
	sess.Shutdown()
	expect.EQ(t, sess.Err(), context.Canceled)
	_, err = sess.Submit(context.Background(), montepi.NewRequest(1))
	if err == nil {
		t.Error("expected error after shutdown")
	}
}

func TestSampler(t *testing.T) {
	var (
		s     sampler
		reply sampleReply
		part  = montepi.Partition{Index: 2, Trials: 100, Seed: 9}
	)
	assert.NoError(t, s.Sample(context.Background(), part, &reply))
	expect.EQ(t, reply.Tally.Trials, uint64(100))
	expect.EQ(t, montepi.TrialsSampled.Value(&reply.Scope), uint64(100))
	expect.EQ(t, montepi.InsideTrials.Value(&reply.Scope), reply.Tally.Inside)
}
