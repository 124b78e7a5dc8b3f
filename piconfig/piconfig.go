// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package piconfig creates montepi sessions from a shared
// configuration. Piconfig uses the configuration mechanism in package
// github.com/grailbio/base/config; the default profile is read from
// $HOME/.montepi/config. The session is configured by the "montepi"
// instance of the profile, for example:
//
//	param montepi (
//		parallelism = 64
//		system = bigmachine/ec2system
//	)
package piconfig

import (
	"os"

	"github.com/grailbio/base/config"
	"github.com/grailbio/base/errors"

	// Used to provide ec2system.System bigmachines.
	_ "github.com/grailbio/bigmachine/ec2system"
	"github.com/grailbio/montepi/exec"
)

// Path determines the location of the default montepi profile.
var Path = os.ExpandEnv("$HOME/.montepi/config")

// Open reads the profile at the given path and returns the session
// it configures.
func Open(path string) (*exec.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.Invalid, "piconfig: open profile", err)
	}
	defer f.Close()
	profile := config.New()
	if err := profile.Parse(f); err != nil {
		return nil, errors.E(errors.Invalid, "piconfig: parse "+path, err)
	}
	return FromProfile(profile)
}

// FromProfile returns the session configured by the "montepi"
// instance of the provided profile.
func FromProfile(profile *config.Profile) (*exec.Session, error) {
	var sess *exec.Session
	if err := profile.Instance("montepi", &sess); err != nil {
		return nil, err
	}
	return sess, nil
}
