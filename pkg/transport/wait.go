// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// waitForSocket blocks until the file at path exists, the timeout expires or
// the context is cancelled. The parent directory is watched, since the socket
// is created by a dtnd starting up.
func waitForSocket(ctx context.Context, path string, timeout time.Duration, logger log.FieldLogger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: starting file watcher: %w", ErrConnect, err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("%w: watching %s: %w", ErrConnect, dir, err)
	}

	// The socket might have been created between Stat and Add.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	logger.WithField("timeout", timeout).Info("Waiting for agent socket")

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %s: %w", ErrConnect, path, ctx.Err())

		case <-timer.C:
			return fmt.Errorf("%w: %s did not appear within %v", ErrConnect, path, timeout)

		case e, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("%w: file watcher was closed", ErrConnect)
			}
			if e.Op&fsnotify.Create != 0 && filepath.Clean(e.Name) == filepath.Clean(path) {
				logger.Debug("Agent socket appeared")
				return nil
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("%w: file watcher was closed", ErrConnect)
			}
			logger.WithError(watchErr).Warn("File watcher errored")
		}
	}
}
