// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package exec implements sessions to the compute clusters that
// evaluate montepi requests. A session owns an executor: either the
// in-process executor, or one backed by a bigmachine cluster.
package exec

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/grailbio/montepi"
	"github.com/grailbio/montepi/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAppName is the application name of sessions that do not
	// configure one.
	DefaultAppName = "MontePi"
	// DefaultDriverHost and DefaultDriverPort make up the default
	// address at which the driver serves status and debug handlers.
	DefaultDriverHost = "localhost"
	DefaultDriverPort = 4040
)

// Session represents a connection to a compute cluster. A session is
// created by Start and is owned by its creator, who must call
// Shutdown when done with it. The session's context is canceled when
// the session is shut down, aborting any computation in flight.
//
//	sess, err := exec.Start(exec.Local)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sess.Shutdown()
//	pi, err := montepi.Estimate(ctx, sess, montepi.NewRequest(10))
type Session struct {
	context.Context
	cancel func()

	appName    string
	master     string
	driverHost string
	driverPort int
	p          int
	executor   Executor
	status     *status.Status
	limiter    *limiter.Limiter

	shutdownOnce sync.Once
	shutdown     func()

	scope metrics.Scope
}

func newSession() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		Context:    ctx,
		cancel:     cancel,
		appName:    DefaultAppName,
		driverHost: DefaultDriverHost,
		driverPort: DefaultDriverPort,
	}
}

// An Option represents a session configuration parameter value.
type Option func(s *Session)

// Local configures a session with the in-process executor.
var Local Option = func(s *Session) {
	s.executor = newLocalExecutor()
}

// Bigmachine configures a session using the bigmachine executor
// configured with the provided system. If any params are provided,
// they are applied to each machine started by the session.
func Bigmachine(system bigmachine.System, params ...bigmachine.Param) Option {
	return func(s *Session) {
		s.executor = newBigmachineExecutor(system, params...)
	}
}

// Parallelism configures the maximum number of partitions that
// are evaluated concurrently.
func Parallelism(p int) Option {
	if p <= 0 {
		panic("exec.Parallelism: p <= 0")
	}
	return func(s *Session) {
		s.p = p
	}
}

// AppName configures the session's application name.
func AppName(name string) Option {
	return func(s *Session) {
		s.appName = name
	}
}

// Master records the address of the cluster master the session was
// configured from. It does not select an executor.
func Master(addr string) Option {
	return func(s *Session) {
		s.master = addr
	}
}

// Driver configures the host and port at which the driver process
// can be reached.
func Driver(host string, port int) Option {
	return func(s *Session) {
		s.driverHost = host
		s.driverPort = port
	}
}

// Status configures the session with a status object to which
// partition statuses are reported.
func Status(status *status.Status) Option {
	return func(s *Session) {
		s.status = status
	}
}

// Start creates and starts a new session, configuring it according
// to the provided options. If no executor is configured, the session
// evaluates partitions in-process. Start returns an error if the
// executor could not be started; in this case there is nothing to
// shut down.
func Start(options ...Option) (*Session, error) {
	s := newSession()
	for _, opt := range options {
		opt(s)
	}
	if s.p == 0 {
		s.p = runtime.GOMAXPROCS(0)
	}
	if s.executor == nil {
		s.executor = newLocalExecutor()
	}
	if s.master == "" {
		s.master = s.executor.Name()
	}
	s.limiter = limiter.New()
	s.limiter.Release(s.p)
	shutdown, err := s.executor.Start(s)
	if err != nil {
		s.cancel()
		return nil, errors.E(fmt.Sprintf("exec.Start %s", s.master), err)
	}
	s.shutdown = shutdown
	log.Debug.Printf("exec: session %s started: executor %s, parallelism %d", s.appName, s.executor.Name(), s.p)
	return s, nil
}

// Submit evaluates the request: each of the request's partitions is
// run by the session's executor, and the resulting tallies are
// summed. At most Parallelism partitions are evaluated at a time.
// Submit fails on the first partition error, abandoning the
// remaining partitions. Submit implements montepi.Submitter.
func (s *Session) Submit(ctx context.Context, req montepi.Request) (montepi.Tally, error) {
	if err := req.Validate(); err != nil {
		return montepi.Tally{}, err
	}
	if s.Err() != nil {
		return montepi.Tally{}, errors.E(errors.Canceled, "session is shut down")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		parts   = req.Split()
		tallies = make([]montepi.Tally, len(parts))
		tracker = newTracker(s.status, req, len(parts))
	)
	defer tracker.Done()
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		part := parts[i]
		g.Go(func() error {
			if err := s.limiter.Acquire(gctx, 1); err != nil {
				return err
			}
			defer s.limiter.Release(1)
			tracker.Set(part, partitionRunning)
			tally, err := s.executor.Run(gctx, part)
			if err != nil {
				tracker.Set(part, partitionErr)
				return errors.E(part.String(), err)
			}
			if tally.Trials != part.Trials {
				tracker.Set(part, partitionErr)
				return errors.E(errors.Integrity, fmt.Sprintf("%s: sampled %d trials", part, tally.Trials))
			}
			tracker.Set(part, partitionDone)
			tallies[part.Index] = tally
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return montepi.Tally{}, err
	}
	total := montepi.Reduce(tallies)
	log.Debug.Printf("exec: %s: %s", req, total)
	return total, nil
}

// Shutdown tears down the session's executor and cancels the
// session's context. Shutdown may be called multiple times; only the
// first call has an effect.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.cancel()
		if s.shutdown != nil {
			s.shutdown()
		}
		log.Debug.Printf("exec: session %s shut down", s.appName)
	})
}

// AppName returns the session's application name.
func (s *Session) AppName() string { return s.appName }

// Master returns the address of the master from which the session
// was configured.
func (s *Session) Master() string { return s.master }

// DriverAddr returns the host:port address of the driver.
func (s *Session) DriverAddr() string {
	return net.JoinHostPort(s.driverHost, strconv.Itoa(s.driverPort))
}

// Parallelism returns the maximum number of concurrently evaluated
// partitions.
func (s *Session) Parallelism() int { return s.p }

// Executor returns the session's executor.
func (s *Session) Executor() Executor { return s.executor }

// Status returns the session's status aggregator.
func (s *Session) Status() *status.Status { return s.status }

// Scope returns the metrics accumulated by all partitions evaluated
// in this session.
func (s *Session) Scope() *metrics.Scope { return &s.scope }

// HandleDebug registers the executor's debug handlers with the
// provided mux.
func (s *Session) HandleDebug(handler *http.ServeMux) {
	s.executor.HandleDebug(handler)
}
