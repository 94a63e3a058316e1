// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 250 * time.Millisecond

// Manager holds the current configuration and reloads it when the file
// changes on disk. Workspace profiles and budgets take effect on the next
// request; server and storage settings require a restart and are kept from
// the boot-time config.
type Manager struct {
	mu      sync.RWMutex
	path    string
	current *Config
	logger  *slog.Logger
	onSwap  []func(*Config)
}

// NewManager loads the initial configuration from path.
//
// # Inputs
//
//   - path: YAML config file path. Empty uses built-in defaults and
//     disables watching.
//   - logger: Structured logger. Nil uses slog.Default().
//
// # Outputs
//
//   - *Manager: Manager holding the loaded config.
//   - error: Load or validation failure.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, current: cfg, logger: logger}, nil
}

// Current returns the active configuration. Callers must not mutate it.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnSwap registers a callback invoked with each successfully reloaded
// config. Register callbacks before calling Watch.
func (m *Manager) OnSwap(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSwap = append(m.onSwap, fn)
}

// Watch reloads the config file whenever it changes, until ctx is done.
//
// # Description
//
// Watches the parent directory rather than the file itself so atomic
// save patterns (write temp, rename over) keep working. A failed reload
// logs a warning and keeps the previous config active.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	m.logger.Info("watching config file", "path", m.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(reloadDebounce, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-reload:
			m.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (m *Manager) reload() {
	cfg, err := Load(m.path)
	if err != nil {
		m.logger.Warn("config reload failed, keeping previous config",
			"path", m.path, "error", err)
		return
	}

	m.mu.Lock()
	m.current = cfg
	callbacks := m.onSwap
	m.mu.Unlock()

	m.logger.Info("config reloaded", "path", m.path, "profiles", len(cfg.Profiles))
	for _, fn := range callbacks {
		fn(cfg)
	}
}
