// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shadercache caches compiled shader permutations and compiles
// missing variants in the background.
//
// Each stage has a specialized table and an uber table. A lookup uses the
// specialized variant when it is ready; otherwise it serves the uber
// variant for the same vertex format and queues a background compile of
// the specialized one. Only when neither exists does the caller block on
// a synchronous compile.
package shadercache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/gogpu/fixedfunc/internal/parallel"
	"github.com/gogpu/fixedfunc/internal/permutation"
)

// ErrClosed is returned by lookups on a closed cache.
var ErrClosed = errors.New("shadercache: cache is closed")

// table is one key -> entry map with its own lock.
type table struct {
	mu sync.RWMutex
	m  map[permutation.Key]*Entry
}

func (t *table) get(k permutation.Key) (*Entry, bool) {
	t.mu.RLock()
	e, ok := t.m[k]
	t.mu.RUnlock()
	return e, ok
}

// put inserts e unless k is already present or the cache generation is
// no longer gen. It returns the entry that ends up in the table (nil for a
// stale generation) and whether e was inserted. The generation is read
// under the write lock, so an Invalidate either sees the insert in
// releaseAll or makes put reject it.
func (t *table) put(k permutation.Key, e *Entry, gen uint64, current *atomic.Uint64) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != current.Load() {
		return nil, false
	}
	if old, ok := t.m[k]; ok {
		return old, false
	}
	t.m[k] = e
	return e, true
}

func (t *table) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// flightKey identifies one compile job.
type flightKey struct {
	stage permutation.Stage
	uber  bool
	key   permutation.Key
}

func (f flightKey) String() string {
	return fmt.Sprintf("%d/%t/%d", f.stage, f.uber, uint32(f.key))
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Specialized   int // entries in the specialized tables
	Uber          int // entries in the uber tables
	Hits          uint64
	UberHits      uint64
	SyncCompiles  uint64
	AsyncCompiles uint64
	AsyncFailures uint64
	Pending       int // background compiles queued or running
	Failed        int // keys excluded from background compiles
	Workers       int // background compile goroutines
}

// Cache is the shader permutation cache.
//
// Lookups may come from any goroutine; the background workers insert
// under the per-table write locks.
type Cache struct {
	compiler Compiler
	pool     *parallel.WorkerPool

	// tables[stage][uber]
	tables [2][2]table

	inflightMu sync.Mutex
	inflight   map[flightKey]struct{}
	// failed holds keys whose background compile failed; they are not
	// retried until the next Invalidate.
	failed map[flightKey]struct{}

	flights singleflight.Group

	// generation increases on every Invalidate; background results from
	// an older generation are released instead of inserted.
	generation atomic.Uint64
	closed     atomic.Bool

	hits          atomic.Uint64
	uberHits      atomic.Uint64
	syncCompiles  atomic.Uint64
	asyncCompiles atomic.Uint64
	asyncFailures atomic.Uint64
}

// New creates a cache compiling with c on a pool of workers goroutines
// (GOMAXPROCS when workers <= 0).
func New(c Compiler, workers int) *Cache {
	cache := &Cache{
		compiler: c,
		pool:     parallel.NewWorkerPool(workers),
		inflight: make(map[flightKey]struct{}),
		failed:   make(map[flightKey]struct{}),
	}
	for s := range cache.tables {
		for u := range cache.tables[s] {
			cache.tables[s][u].m = make(map[permutation.Key]*Entry)
		}
	}
	return cache
}

func (c *Cache) table(s permutation.Stage, uber bool) *table {
	u := 0
	if uber {
		u = 1
	}
	return &c.tables[s][u]
}

// Lookup returns the shader for stage serving the permutation key.
//
// The key is sanitized and projected onto the stage before use. With
// allowUber, a missing specialized variant is replaced by the uber
// variant while the specialized one compiles in the background. A
// synchronous compile failure is returned as a *CompileError and leaves
// the cache unchanged.
func (c *Cache) Lookup(stage permutation.Stage, key permutation.Key, allowUber bool) (*Entry, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	spec := key.Project(stage)
	if e, ok := c.table(stage, false).get(spec); ok {
		c.hits.Add(1)
		return e, nil
	}

	if allowUber {
		uk := key.UberProject(stage)
		if e, ok := c.table(stage, true).get(uk); ok {
			c.uberHits.Add(1)
			c.enqueue(flightKey{stage: stage, key: spec})
			return e, nil
		}
	}

	e, err := c.compileSync(flightKey{stage: stage, key: spec})
	if err != nil {
		return nil, err
	}
	if allowUber {
		// Give later permutations with this vertex format a fallback.
		c.enqueue(flightKey{stage: stage, uber: true, key: key.UberProject(stage)})
	}
	return e, nil
}

// Ready reports whether the specialized variant for key is compiled.
func (c *Cache) Ready(stage permutation.Stage, key permutation.Key) bool {
	_, ok := c.table(stage, false).get(key.Project(stage))
	return ok
}

// compileSync compiles fk on the calling goroutine. Concurrent callers
// for the same key share one compile.
func (c *Cache) compileSync(fk flightKey) (*Entry, error) {
	v, err, _ := c.flights.Do(fk.String(), func() (any, error) {
		t := c.table(fk.stage, fk.uber)
		if e, ok := t.get(fk.key); ok {
			return e, nil
		}
		gen := c.generation.Load()
		e, err := c.compiler.Compile(fk.stage, fk.key)
		c.syncCompiles.Add(1)
		if err != nil {
			var ce *CompileError
			if !errors.As(err, &ce) {
				err = &CompileError{Stage: fk.stage, Key: fk.key, Log: err.Error(), Err: err}
			}
			return nil, err
		}
		got, inserted := t.put(fk.key, e, gen, &c.generation)
		if !inserted {
			c.compiler.Release(e)
		}
		if got == nil {
			return nil, &CompileError{Stage: fk.stage, Key: fk.key, Log: "cache invalidated during compile"}
		}
		slogger().Debug("shadercache: compiled", "stage", fk.stage.String(), "key", fk.key.String(), "uber", fk.uber)
		return got, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// enqueue schedules a background compile of fk unless one is already
// queued or running. It never blocks.
func (c *Cache) enqueue(fk flightKey) {
	if _, ok := c.table(fk.stage, fk.uber).get(fk.key); ok {
		return
	}
	c.inflightMu.Lock()
	_, busy := c.inflight[fk]
	_, failed := c.failed[fk]
	if busy || failed {
		c.inflightMu.Unlock()
		return
	}
	c.inflight[fk] = struct{}{}
	c.inflightMu.Unlock()

	gen := c.generation.Load()
	if !c.pool.Submit(func() { c.compileAsync(fk, gen) }) {
		c.finish(fk)
	}
}

func (c *Cache) finish(fk flightKey) {
	c.inflightMu.Lock()
	delete(c.inflight, fk)
	c.inflightMu.Unlock()
}

func (c *Cache) compileAsync(fk flightKey, gen uint64) {
	defer c.finish(fk)

	t := c.table(fk.stage, fk.uber)
	if _, ok := t.get(fk.key); ok || gen != c.generation.Load() {
		return
	}
	e, err := c.compiler.Compile(fk.stage, fk.key)
	c.asyncCompiles.Add(1)
	if err != nil {
		c.asyncFailures.Add(1)
		c.inflightMu.Lock()
		c.failed[fk] = struct{}{}
		c.inflightMu.Unlock()
		slogger().Warn("shadercache: background compile failed",
			"stage", fk.stage.String(), "key", fk.key.String(), "uber", fk.uber, "err", err)
		return
	}
	if _, inserted := t.put(fk.key, e, gen, &c.generation); !inserted {
		c.compiler.Release(e)
	}
}

// Pending returns the number of background compiles queued or running.
func (c *Cache) Pending() int {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	return len(c.inflight)
}

func (c *Cache) failedCount() int {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	return len(c.failed)
}

// Wait blocks until every queued background compile has finished.
func (c *Cache) Wait() { c.pool.Drain() }

// Prewarm compiles the specialized variants of keys for both stages,
// using at most limit concurrent compiles (unbounded when limit <= 0).
// It returns the first compile error; the other keys are still compiled.
func (c *Cache) Prewarm(ctx context.Context, keys []permutation.Key, limit int) error {
	seen := make(map[flightKey]struct{})
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	var firstErr error
	var errOnce sync.Once
	for _, k := range keys {
		for _, s := range []permutation.Stage{permutation.VertexStage, permutation.PixelStage} {
			fk := flightKey{stage: s, key: k.Project(s)}
			if _, dup := seen[fk]; dup {
				continue
			}
			seen[fk] = struct{}{}
			g.Go(func() error {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if _, err := c.compileSync(fk); err != nil {
					errOnce.Do(func() { firstErr = err })
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return firstErr
}

// Invalidate drops every cached variant. Background compiles are drained
// first so no worker inserts into a table being cleared. Entries are
// released; callers must not use previously returned entries afterwards.
func (c *Cache) Invalidate() {
	c.pool.Drain()
	c.generation.Add(1)
	c.releaseAll()
	c.inflightMu.Lock()
	clear(c.failed)
	c.inflightMu.Unlock()
	slogger().Info("shadercache: invalidated")
}

func (c *Cache) releaseAll() {
	for s := range c.tables {
		for u := range c.tables[s] {
			t := &c.tables[s][u]
			t.mu.Lock()
			for k, e := range t.m {
				c.compiler.Release(e)
				delete(t.m, k)
			}
			t.mu.Unlock()
		}
	}
}

// Close drains the background queue, stops the workers and releases all
// entries. Close is safe to call multiple times.
func (c *Cache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.pool.Close()
	c.generation.Add(1)
	c.releaseAll()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Specialized:   c.tables[0][0].len() + c.tables[1][0].len(),
		Uber:          c.tables[0][1].len() + c.tables[1][1].len(),
		Hits:          c.hits.Load(),
		UberHits:      c.uberHits.Load(),
		SyncCompiles:  c.syncCompiles.Load(),
		AsyncCompiles: c.asyncCompiles.Load(),
		AsyncFailures: c.asyncFailures.Load(),
		Pending:       c.Pending(),
		Failed:        c.failedCount(),
		Workers:       c.pool.Workers(),
	}
}
