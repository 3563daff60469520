// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pso caches pipeline state objects keyed by small flag structs.
//
// Blend, depth-stencil and rasterizer state are immutable fields of a
// WebGPU render pipeline, so their caches produce identity-carrying state
// objects whose ids key the final render pipeline cache. Sampler state
// maps to real hal.Sampler objects.
package pso

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNilDevice is returned when a device-backed cache has no device.
var ErrNilDevice = errors.New("pso: device is nil")

// State is a cached state object.
type State[K comparable, V any] struct {
	// ID is unique within the owning cache and never reused.
	ID     uint32
	Flags  K
	Object V
}

// StateCache maps flag values to state objects. Equal flags always return
// the same *State; the create function runs once per distinct value.
//
// Thread Safety:
// StateCache is safe for concurrent use. It uses RWMutex with
// double-check locking for efficient reads and safe writes.
type StateCache[K comparable, V any] struct {
	mu      sync.RWMutex
	buckets map[uint64][]*State[K, V]
	count   int

	create  func(K) (V, error)
	destroy func(V)

	nextID atomic.Uint32
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewStateCache creates a cache. destroy may be nil.
func NewStateCache[K comparable, V any](create func(K) (V, error), destroy func(V)) *StateCache[K, V] {
	return &StateCache[K, V]{
		buckets: make(map[uint64][]*State[K, V]),
		create:  create,
		destroy: destroy,
	}
}

func find[K comparable, V any](bucket []*State[K, V], flags K) *State[K, V] {
	for _, s := range bucket {
		if s.Flags == flags {
			return s
		}
	}
	return nil
}

// Get returns the state object for flags, creating it on first use.
// A failed creation leaves the cache unchanged.
func (c *StateCache[K, V]) Get(flags K) (*State[K, V], error) {
	h := Hash(flags)

	// Fast path: read lock
	c.mu.RLock()
	if s := find(c.buckets[h], flags); s != nil {
		c.mu.RUnlock()
		c.hits.Add(1)
		return s, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := find(c.buckets[h], flags); s != nil {
		c.hits.Add(1)
		return s, nil
	}

	obj, err := c.create(flags)
	if err != nil {
		return nil, err
	}
	s := &State[K, V]{ID: c.nextID.Add(1), Flags: flags, Object: obj}
	c.buckets[h] = append(c.buckets[h], s)
	c.count++
	c.misses.Add(1)
	return s, nil
}

// Len returns the number of cached state objects.
func (c *StateCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Stats returns the number of cache hits and misses. Misses equal the
// number of objects created.
func (c *StateCache[K, V]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Clear destroys every cached object. IDs are not reused afterwards.
func (c *StateCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroy != nil {
		for _, bucket := range c.buckets {
			for _, s := range bucket {
				c.destroy(s.Object)
			}
		}
	}
	clear(c.buckets)
	c.count = 0
}
