// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package montepi

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/spaolacci/murmur3"
)

const (
	// DefaultPartitions is the number of partitions used when none is
	// requested.
	DefaultPartitions = 10
	// DefaultTrialsPerPartition is the number of trials drawn by each
	// partition.
	DefaultTrialsPerPartition = 100000
)

// A Request describes a single estimation: Partitions groups of
// TrialsPerPartition independent trials each. Requests are values;
// they are never modified once submitted.
type Request struct {
	// Partitions is the number of groups into which the trials are
	// split for parallel evaluation.
	Partitions int
	// TrialsPerPartition is the number of trials in each partition.
	TrialsPerPartition uint64
	// Seed seeds the per-partition random sources. A zero seed
	// requests unseeded (non-reproducible) sampling.
	Seed int64
}

// NewRequest returns a request for the given number of partitions
// with the default number of trials per partition.
func NewRequest(partitions int) Request {
	return Request{Partitions: partitions, TrialsPerPartition: DefaultTrialsPerPartition}
}

// Validate returns an error if the request cannot be evaluated.
func (r Request) Validate() error {
	if r.Partitions <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("partition count must be positive, got %d", r.Partitions))
	}
	if r.TrialsPerPartition == 0 {
		return errors.E(errors.Invalid, "trials per partition must be positive")
	}
	return nil
}

// Trials returns the total number of trials requested.
func (r Request) Trials() uint64 {
	return r.TrialsPerPartition * uint64(r.Partitions)
}

// String returns a description of the request suitable for logging.
func (r Request) String() string {
	if r.Seed == 0 {
		return fmt.Sprintf("%d partitions x %d trials", r.Partitions, r.TrialsPerPartition)
	}
	return fmt.Sprintf("%d partitions x %d trials (seed %d)", r.Partitions, r.TrialsPerPartition, r.Seed)
}

// Split returns the request's partitions. Each partition carries its
// own seed: for seeded requests the seed is a hash of the request
// seed and the partition index, so that the same request always
// samples the same points regardless of where or in which order its
// partitions run. Split returns nil for invalid requests.
func (r Request) Split() []Partition {
	if r.Validate() != nil {
		return nil
	}
	parts := make([]Partition, r.Partitions)
	for i := range parts {
		parts[i] = Partition{
			Index:  i,
			Trials: r.TrialsPerPartition,
		}
		if r.Seed != 0 {
			parts[i].Seed = partitionSeed(r.Seed, i)
		} else {
			parts[i].Seed = randomSeed()
		}
	}
	return parts
}

func partitionSeed(seed int64, index int) int64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], uint64(seed))
	binary.LittleEndian.PutUint64(b[8:], uint64(index))
	return int64(murmur3.Sum64(b[:]))
}

func randomSeed() int64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
