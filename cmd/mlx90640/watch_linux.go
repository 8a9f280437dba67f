// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"os"
	"time"

	"github.com/maruel/interrupt"
	fsnotify "gopkg.in/fsnotify.v1"
)

// watchFiles returns once one of the files is modified, or on Ctrl-C.
func watchFiles(names ...string) error {
	mod0 := make([]time.Time, len(names))
	for i, name := range names {
		fi, err := os.Stat(name)
		if err != nil {
			return err
		}
		mod0[i] = fi.ModTime()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	for _, name := range names {
		if err = watcher.Add(name); err != nil {
			return err
		}
	}
	for {
		select {
		case <-interrupt.Channel:
			return nil
		case err = <-watcher.Errors:
			return err
		case <-watcher.Events:
			for i, name := range names {
				// A file being rewritten may briefly be missing.
				if fi, err := os.Stat(name); err == nil && !fi.ModTime().Equal(mod0[i]) {
					return nil
				}
			}
		}
	}
}
