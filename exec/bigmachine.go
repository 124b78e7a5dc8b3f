// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"context"
	"encoding/gob"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/montepi"
	"github.com/grailbio/montepi/metrics"
)

func init() {
	gob.Register(&sampler{})
}

// BigmachineStatusGroup is the name of the status group under which
// the session's machines are reported.
const BigmachineStatusGroup = "bigmachine"

// BigmachineExecutor is an executor that evaluates partitions on
// bigmachine machines. Machines are started together with the
// session and serve a sampler service. Partitions are assigned to
// machines round-robin.
type bigmachineExecutor struct {
	system bigmachine.System
	params []bigmachine.Param

	sess     *Session
	b        *bigmachine.B
	machines []*bigmachine.Machine
	next     uint64
}

func newBigmachineExecutor(system bigmachine.System, params ...bigmachine.Param) *bigmachineExecutor {
	return &bigmachineExecutor{system: system, params: params}
}

func (b *bigmachineExecutor) Name() string {
	return "bigmachine:" + b.system.Name()
}

// Start starts the bigmachine and enough machines to satisfy the
// session's parallelism. Start fails if none of the machines came up.
func (b *bigmachineExecutor) Start(sess *Session) (shutdown func(), err error) {
	b.sess = sess
	b.b = bigmachine.Start(b.system)
	procs := b.b.System().Maxprocs()
	if procs == 0 {
		procs = runtime.GOMAXPROCS(0)
	}
	n := (sess.Parallelism() + procs - 1) / procs
	var group *status.Group
	if s := sess.Status(); s != nil {
		group = s.Group(BigmachineStatusGroup)
	}
	b.machines = startMachines(sess, b.b, group, n, b.params...)
	if len(b.machines) == 0 {
		b.b.Shutdown()
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("no machines started on %s", b.system.Name()))
	}
	log.Printf("exec: %d machines ready on %s", len(b.machines), b.system.Name())
	return b.b.Shutdown, nil
}

// Run evaluates the partition on the next machine.
func (b *bigmachineExecutor) Run(ctx context.Context, part montepi.Partition) (montepi.Tally, error) {
	i := atomic.AddUint64(&b.next, 1) - 1
	m := b.machines[i%uint64(len(b.machines))]
	reply := new(sampleReply)
	if err := m.Call(ctx, "Sampler.Sample", part, reply); err != nil {
		return montepi.Tally{}, errors.E(fmt.Sprintf("machine %s", m.Addr), err)
	}
	b.sess.Scope().Merge(&reply.Scope)
	return reply.Tally, nil
}

func (b *bigmachineExecutor) HandleDebug(handler *http.ServeMux) {
	b.b.HandleDebug(handler)
}

// StartMachines starts n machines on b, installing a sampler service
// on each of them. StartMachines returns the machines that reached
// bigmachine.Running state; machines that failed to start are
// omitted.
func startMachines(ctx context.Context, b *bigmachine.B, group *status.Group, n int, params ...bigmachine.Param) []*bigmachine.Machine {
	params = append([]bigmachine.Param{bigmachine.Services{"Sampler": &sampler{}}}, params...)
	machines, err := b.Start(ctx, n, params...)
	if err != nil {
		log.Error.Printf("error starting machines: %v", err)
		return nil
	}
	var wg sync.WaitGroup
	started := make([]*bigmachine.Machine, len(machines))
	for i := range machines {
		i, m := i, machines[i]
		var task *status.Task
		if group != nil {
			task = group.Start()
			task.Print("waiting for machine to boot")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-m.Wait(bigmachine.Running)
			if err := m.Err(); err != nil {
				log.Printf("machine %s failed to start: %v", m.Addr, err)
				if task != nil {
					task.Printf("failed to start: %v", err)
					task.Done()
				}
				return
			}
			if task != nil {
				task.Title(m.Addr)
				task.Print("running")
			}
			log.Printf("machine %v is ready", m.Addr)
			started[i] = m
		}()
	}
	wg.Wait()
	n = 0
	for _, m := range started {
		if m != nil {
			started[n] = m
			n++
		}
	}
	return started[:n]
}

// Sampler is the bigmachine service that evaluates partitions on
// behalf of the driver.
type sampler struct {
	// Exported just satisfies gob's persnickety nature: we need at least
	// one exported field.
	Exported struct{}
}

type sampleReply struct {
	Tally montepi.Tally
	// Scope holds the metrics recorded while evaluating the partition.
	Scope metrics.Scope
}

// Sample evaluates a single partition.
func (*sampler) Sample(ctx context.Context, part montepi.Partition, reply *sampleReply) error {
	tally, err := part.Run(metrics.ScopedContext(ctx, &reply.Scope))
	if err != nil {
		return err
	}
	reply.Tally = tally
	log.Debug.Printf("sampler: %s: %s", part, tally)
	return nil
}
