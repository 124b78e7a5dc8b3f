// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package picmd_test

import (
	"bytes"
	"context"
	"flag"
	"io/ioutil"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/montepi"
	"github.com/grailbio/montepi/exec"
	"github.com/grailbio/montepi/picmd"
	"github.com/grailbio/montepi/piflags"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testFlags(t *testing.T, args ...string) piflags.Flags {
	t.Helper()
	var (
		fs = flag.NewFlagSet("test", flag.ContinueOnError)
		fl piflags.Flags
	)
	fs.SetOutput(ioutil.Discard)
	piflags.RegisterFlags(fs, &fl, "")
	// Don't bind a status server in tests.
	args = append([]string{"-driver-port", "0"}, args...)
	assert.NoError(t, fs.Parse(args))
	return fl
}

func TestRun(t *testing.T) {
	var (
		fl   = testFlags(t, "-master", "internal://pi:7077", "-app", "SparkPi", "-seed", "3")
		out  bytes.Buffer
		sess *exec.Session
		pi   float64
	)
	err := picmd.Run(context.Background(), &out, fl, func(ctx context.Context, s *exec.Session) error {
		sess = s
		var err error
		pi, err = montepi.Estimate(ctx, s, fl.Request(4))
		return err
	})
	assert.NoError(t, err)
	if pi < 3 || pi > 3.3 {
		t.Errorf("implausible estimate %v", pi)
	}
	expect.EQ(t, sess.Err(), context.Canceled)
	for _, line := range []string{
		"Initializing session...",
		"Session created successfully!",
		"Application: SparkPi",
		"Master: internal://pi:7077",
		"Driver: localhost:0",
		"Session stopped.",
	} {
		if !strings.Contains(out.String(), line+"\n") {
			t.Errorf("output is missing %q:\n%s", line, out.String())
		}
	}
}

func TestRunShutsDownOnError(t *testing.T) {
	var (
		fl   = testFlags(t)
		out  bytes.Buffer
		sess *exec.Session
	)
	failure := errors.E(errors.Unavailable, "cluster lost")
	err := picmd.Run(context.Background(), &out, fl, func(ctx context.Context, s *exec.Session) error {
		sess = s
		return failure
	})
	if got, want := err, failure; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	expect.EQ(t, sess.Err(), context.Canceled)
	if got, want := strings.Count(out.String(), "Session stopped."), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunShutsDownOnPanic(t *testing.T) {
	var (
		fl   = testFlags(t)
		sess *exec.Session
	)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		picmd.Run(context.Background(), ioutil.Discard, fl, func(ctx context.Context, s *exec.Session) error {
			sess = s
			panic("boom")
		})
	}()
	expect.EQ(t, sess.Err(), context.Canceled)
}

func TestRunInitError(t *testing.T) {
	fl := testFlags(t, "-profile", "/nonexistent/montepi/config")
	var (
		out    bytes.Buffer
		called bool
	)
	err := picmd.Run(context.Background(), &out, fl, func(ctx context.Context, s *exec.Session) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected an error")
	}
	if called {
		t.Error("driver code ran without a session")
	}
	if strings.Contains(out.String(), "Session stopped.") {
		t.Errorf("session stopped without being started:\n%s", out.String())
	}
}

func TestSystemHelp(t *testing.T) {
	var out bytes.Buffer
	picmd.SystemHelp(&out)
	if !strings.Contains(out.String(), "The available systems are: ec2, internal, local") {
		t.Errorf("unexpected help:\n%s", out.String())
	}
}
