// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadersrc

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a shader override directory and raises a reload
// request when a .wgsl file is created, written, removed or renamed.
//
// The request is only recorded here. The device consumes it on the render
// thread at the next frame boundary, because invalidating the shader
// caches mid-frame would release modules that bound pipelines still use.
type Watcher struct {
	w       *fsnotify.Watcher
	pending atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher starts watching dir.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shadersrc: create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("shadersrc: watch %s: %w", dir, err)
	}
	w := &Watcher{w: fw, done: make(chan struct{})}
	w.wg.Add(1)
	go w.loop()
	slogger().Info("shadersrc: watching shader directory", "dir", dir)
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	const ops = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Op&ops == 0 || filepath.Ext(ev.Name) != ".wgsl" {
				continue
			}
			if !w.pending.Swap(true) {
				slogger().Debug("shadersrc: reload requested", "file", ev.Name, "op", ev.Op.String())
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			slogger().Warn("shadersrc: watcher error", "err", err)
		}
	}
}

// Pending reports whether a reload was requested since the last call and
// clears the request.
func (w *Watcher) Pending() bool {
	return w.pending.Swap(false)
}

// Request raises a reload request manually.
func (w *Watcher) Request() { w.pending.Store(true) }

// Close stops the watcher. Close is safe to call multiple times.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.w.Close()
		w.wg.Wait()
	})
	return err
}
