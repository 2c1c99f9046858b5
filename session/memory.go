// #region <editor-fold desc="Preamble">
// Copyright (c) 2022 Teal.Finance contributors
//
// This file is part of Teal.Finance/Garde, a cookie-token authentication guard.
// Teal.Finance/Garde is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public License
// either version 3 or any later version, at the licensee’s option.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// Teal.Finance/Garde is distributed WITHOUT ANY WARRANTY.
// For more details, see the LICENSE file (alongside the source files)
// or online at <https://www.gnu.org/licenses/lgpl-3.0.html>
// #endregion </editor-fold>

package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	values Values
	expiry time.Time
}

// MemoryBackend is a Backend for a single instance.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		mu:      sync.Mutex{},
		entries: map[string]entry{},
		now:     time.Now,
	}
}

// StartJanitor removes the expired entries every period until ctx is done.
func (m *MemoryBackend) StartJanitor(ctx context.Context, period time.Duration) {
	log.Infof("MemoryBackend janitor every %v", period)

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("MemoryBackend janitor stopped")
				return
			case <-ticker.C:
				if n := m.Purge(); n > 0 {
					log.Debugf("MemoryBackend purged %d expired sessions", n)
				}
			}
		}
	}()
}

// Purge removes the expired entries and returns how many have been removed.
func (m *MemoryBackend) Purge() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if !now.Before(e.expiry) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// Len counts the stored entries, including the expired ones not yet purged.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryBackend) Load(_ context.Context, id string) (Values, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}

	if !m.now().Before(e.expiry) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}

	return e.values.Clone(), nil
}

func (m *MemoryBackend) Save(_ context.Context, id string, v Values, ttl time.Duration) error {
	e := entry{values: v.Clone(), expiry: m.now().Add(ttl)}

	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}
