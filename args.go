// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package montepi

import (
	"fmt"
	"strconv"

	"github.com/grailbio/base/errors"
)

// ParsePartitions parses the optional partition count from a
// command's positional arguments. With no arguments it returns
// DefaultPartitions.
func ParsePartitions(args []string) (int, error) {
	switch len(args) {
	case 0:
		return DefaultPartitions, nil
	case 1:
	default:
		return 0, errors.E(errors.Invalid, fmt.Sprintf("expected at most one argument, got %d", len(args)))
	}
	p, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.E(errors.Invalid, "partition count", err)
	}
	if p <= 0 {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("partition count must be positive, got %d", p))
	}
	return p, nil
}
