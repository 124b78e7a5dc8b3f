// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"runtime"

	"github.com/grailbio/base/config"
	"github.com/grailbio/bigmachine"
)

func init() {
	config.Register("montepi", func(inst *config.Constructor) {
		var (
			p          int
			appName    string
			driverHost string
			driverPort int
			system     bigmachine.System
		)
		inst.IntVar(&p, "parallelism", runtime.GOMAXPROCS(0), "maximum number of partitions evaluated concurrently")
		inst.StringVar(&appName, "app-name", DefaultAppName, "the application name of the session")
		inst.StringVar(&driverHost, "driver-host", DefaultDriverHost, "host at which the driver can be reached")
		inst.IntVar(&driverPort, "driver-port", DefaultDriverPort, "port at which the driver serves status")
		inst.InstanceVar(&system, "system", "", "the bigmachine system used for evaluation; in-process if empty")
		inst.Doc = "montepi configures the session used to evaluate requests"
		inst.New = func() (interface{}, error) {
			options := []Option{
				AppName(appName),
				Driver(driverHost, driverPort),
			}
			if p > 0 {
				options = append(options, Parallelism(p))
			}
			if system != nil {
				options = append(options, Bigmachine(system), Master("config:"+system.Name()))
			} else {
				options = append(options, Local, Master("config:internal"))
			}
			sess, err := Start(options...)
			if err != nil {
				return nil, err
			}
			return sess, nil
		}
	})
}
