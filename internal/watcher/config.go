// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher watches the companion's config file for changes and
// hot-applies the parts of it that are safe to change without a restart.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingedpig/aicompanion/internal/config"
	"github.com/wingedpig/aicompanion/internal/security"
)

const defaultDebounce = 200 * time.Millisecond

// ConfigWatcher watches one config file and, on change, reloads it and
// hot-applies a changed security preset to a live Policy. A change to the
// server, sessions, connection or worktree section or to assistant.binary is
// logged as requiring a restart; a change to any other field, including the
// other security fields, is neither applied nor logged.
type ConfigWatcher struct {
	path   string
	policy *security.Policy
	loader *config.Loader

	mu     sync.Mutex
	last   *config.Config
	timer  *time.Timer

	fsw     *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewConfigWatcher creates a ConfigWatcher for path, applying future preset
// changes to policy. current is the already-loaded config this watcher
// compares future reloads against.
func NewConfigWatcher(path string, policy *security.Policy, current *config.Config) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &ConfigWatcher{
		path:    absPath,
		policy:  policy,
		loader:  config.NewLoader(),
		last:    current,
		fsw:     fsw,
		closeCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

func (w *ConfigWatcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.debounce()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}

func (w *ConfigWatcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(defaultDebounce, w.reload)
}

func (w *ConfigWatcher) reload() {
	cfg, err := w.loader.LoadWithDefaults(context.Background(), w.path)
	if err != nil {
		log.Printf("config watcher: reload failed, keeping previous config: %v", err)
		return
	}

	w.mu.Lock()
	prev := w.last
	w.last = cfg
	w.mu.Unlock()

	if prev == nil {
		return
	}

	if cfg.Security.Preset != prev.Security.Preset {
		log.Printf("config watcher: security preset changed %q -> %q, hot-applying", prev.Security.Preset, cfg.Security.Preset)
		base := w.policy.Config()
		w.policy.SetConfig(security.NewConfig(cfg.Security.Preset, base))
	}

	for _, d := range diffs(prev, cfg) {
		log.Printf("config watcher: %s changed, restart required to apply", d)
	}
}

// diffs reports the dotted names of fields that changed between two loaded
// configs and are not hot-applied above.
func diffs(prev, next *config.Config) []string {
	var out []string
	if prev.Server != next.Server {
		out = append(out, "server")
	}
	if prev.Sessions != next.Sessions {
		out = append(out, "sessions")
	}
	if prev.Connection != next.Connection {
		out = append(out, "connection")
	}
	if prev.Assistant.Binary != next.Assistant.Binary {
		out = append(out, "assistant.binary")
	}
	if prev.Worktree != next.Worktree {
		out = append(out, "worktree.safeRoot")
	}
	return out
}

// Close stops the watcher.
func (w *ConfigWatcher) Close() error {
	close(w.closeCh)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
