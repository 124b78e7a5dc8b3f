// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package picmd provides utilities for implementing montepi command
// line tools. The main entry point, picmd.Main, configures a session
// according to a common set of flags, and then invokes the user's
// driver code.
//
// A picmd tool follows this form:
//
//	func main() {
//		picmd.Main(func(fl *piflags.Flags, args []string) (picmd.Func, error) {
//			// Validate args; no session has been opened yet.
//			return func(ctx context.Context, sess *exec.Session) error {
//				pi, err := montepi.Estimate(ctx, sess, fl.Request(10))
//				...
//			}, nil
//		})
//	}
package picmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"sort"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/montepi/exec"
	"github.com/grailbio/montepi/piconfig"
	"github.com/grailbio/montepi/piflags"
)

// Func is driver code run against an open session.
type Func func(ctx context.Context, sess *exec.Session) error

// Main is a convenient entry point for a picmd. Main parses (global)
// flags and passes them, together with the remaining arguments, to
// prepare, which validates the arguments and returns the driver code
// to run. Errors returned by prepare are reported before any session
// is opened. Main then runs the driver code as described by Run.
//
// Main terminates the program after the driver code returns. If
// either prepare or the driver code returns with an error, it is
// reported and the process exits with code 1; the session has been
// shut down by then.
func Main(prepare func(fl *piflags.Flags, args []string) (Func, error)) {
	var fl piflags.Flags
	piflags.RegisterFlags(flag.CommandLine, &fl, "")
	log.AddFlags()
	flag.Parse()
	if fl.SystemHelp {
		SystemHelp(fl.Output())
		os.Exit(0)
	}
	fn, err := prepare(&fl, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
	if err := Run(context.Background(), os.Stdout, fl, fn); err != nil {
		log.Fatal(err)
	}
	os.Exit(0)
}

// SystemHelp writes a description of the available systems and
// master profiles to w.
func SystemHelp(w io.Writer) {
	providers, profiles := piflags.ProvidersAndProfiles()
	fmt.Fprintf(w, "%s\n\n", piflags.SystemHelpLong)
	fmt.Fprintf(w, "The available systems are: %v\n",
		strings.Join(providers, ", "))
	var str []string
	for k, v := range profiles {
		str = append(str, fmt.Sprintf("%v is shorthand for: %v\n", k, v))
	}
	sort.Strings(str)
	for _, s := range str {
		io.WriteString(w, s)
	}
}

// Run opens a session as configured by fl, reports it to w, and
// invokes fn with it. The session is shut down before Run returns,
// whether or not fn succeeds. Run returns the error from opening the
// session, or else fn's error.
func Run(ctx context.Context, w io.Writer, fl piflags.Flags, fn Func) error {
	fmt.Fprintln(w, "Initializing session...")
	sess, err := Init(fl)
	if err != nil {
		return err
	}
	defer func() {
		sess.Shutdown()
		fmt.Fprintln(w, "Session stopped.")
	}()
	fmt.Fprintln(w, "Session created successfully!")
	fmt.Fprintf(w, "Application: %s\n", sess.AppName())
	fmt.Fprintf(w, "Master: %s\n", sess.Master())
	fmt.Fprintf(w, "Executor: %s, parallelism %d\n", sess.Executor().Name(), sess.Parallelism())
	fmt.Fprintf(w, "Driver: %s\n", sess.DriverAddr())
	DisplayStatus(fl, sess)
	return fn(ctx, sess)
}

// Init opens a session according to the supplied flags: from the
// configuration profile if one is named, otherwise from the session
// flags.
func Init(fl piflags.Flags) (*exec.Session, error) {
	if fl.Profile != "" {
		return piconfig.Open(fl.Profile)
	}
	options, err := fl.ExecOptions()
	if err != nil {
		return nil, err
	}
	return exec.Start(options...)
}

// DisplayStatus arranges for the session's status to be displayed
// on the console and/or a web page depending on the flags specified
// on the command line. The web page is served at /debug/status on the
// driver address, together with pprof and executor debug handlers,
// for as long as the session is alive.
func DisplayStatus(fl piflags.Flags, sess *exec.Session) {
	if sess.Status() == nil {
		return
	}
	if fl.ConsoleStatus {
		var console status.Reporter
		go console.Go(os.Stdout, sess.Status())
	}
	if fl.DriverPort == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/status", status.Handler(sess.Status()))
	sess.HandleDebug(mux)
	srv := &http.Server{Addr: sess.DriverAddr(), Handler: mux}
	go func() {
		log.Printf("HTTP status at: %v", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error.Printf("failed to start HTTP at %v: %v", srv.Addr, err)
		}
	}()
	go func() {
		<-sess.Done()
		srv.Close()
	}()
}
