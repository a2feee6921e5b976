// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"errors"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchHandler is called when the debounce window closes after journal
// directory activity.
type WatchHandler func()

// Watcher watches a journal directory and triggers a handler after writes
// settle.
//
// Fuzzing runs append journal entries continuously; re-exporting the dataset
// on every write would thrash. Changes are collected and the handler fires
// only once no new write has arrived for the debounce window.
//
// Thread Safety: safe for concurrent use. The handler is called from a
// single goroutine.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	handler  WatchHandler
	debounce time.Duration

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long writes must be quiet before the handler
	// fires. Default: 2s.
	DebounceWindow time.Duration
}

// NewWatcher creates a watcher for the given journal directory.
func NewWatcher(dir string, handler WatchHandler, opts *WatcherOptions) (*Watcher, error) {
	if dir == "" {
		return nil, errors.New("dir must not be empty")
	}
	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}

	debounce := 2 * time.Second
	if opts != nil && opts.DebounceWindow > 0 {
		debounce = opts.DebounceWindow
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dir:      dir,
		watcher:  fw,
		handler:  handler,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Returns an error if the directory cannot be
// watched or the watcher was already started.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return errors.New("watcher already started")
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	w.watching = true

	go w.loop()
	return nil
}

// Stop halts the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.handler()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// fsnotify errors are transient on the platforms we support;
			// the next event re-arms the debounce.
		}
	}
}
