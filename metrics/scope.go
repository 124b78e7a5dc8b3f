// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"
)

// Scope is a collection of counter values. The zero Scope is empty
// and ready to use. Scopes must not be copied once used.
type Scope struct {
	mu     sync.Mutex
	values map[int]uint64
}

func (s *Scope) add(id int, n uint64) {
	s.mu.Lock()
	if s.values == nil {
		s.values = make(map[int]uint64)
	}
	s.values[id] += n
	s.mu.Unlock()
}

func (s *Scope) get(id int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[id]
}

func (s *Scope) snapshot() map[int]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[int]uint64, len(s.values))
	for id, v := range s.values {
		m[id] = v
	}
	return m
}

// Merge adds the values of Scope u into Scope s.
func (s *Scope) Merge(u *Scope) {
	if u == nil || u == s {
		return
	}
	for id, v := range u.snapshot() {
		s.add(id, v)
	}
}

// Reset clears all values in s.
func (s *Scope) Reset() {
	s.mu.Lock()
	s.values = nil
	s.mu.Unlock()
}

// GobEncode implements a custom gob encoder for scopes.
func (s *Scope) GobEncode() ([]byte, error) {
	var b bytes.Buffer
	err := gob.NewEncoder(&b).Encode(s.snapshot())
	return b.Bytes(), err
}

// GobDecode implements a custom gob decoder for scopes.
func (s *Scope) GobDecode(p []byte) error {
	var values map[int]uint64
	if err := gob.NewDecoder(bytes.NewReader(p)).Decode(&values); err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

type contextKeyType struct{}

var contextKey contextKeyType

// ScopedContext returns a context with the provided scope attached.
// The scope may be retrieved by ContextScope.
func ScopedContext(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, contextKey, scope)
}

// ContextScope returns the scope attached to the provided context.
// If the context carries no scope, a fresh scope is returned;
// updates to it are discarded.
func ContextScope(ctx context.Context) *Scope {
	if s, ok := ctx.Value(contextKey).(*Scope); ok {
		return s
	}
	return new(Scope)
}
