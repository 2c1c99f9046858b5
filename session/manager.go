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
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

const (
	CookieName    = "__Host-sid"
	DevCookieName = "sid" // the "__Host-" prefix requires Secure

	DefaultTTL = 12 * time.Hour

	idSize        = 32 // 256 bits
	encodedIDSize = (idSize*8 + 5) / 6
)

// Manager is process-wide: it holds the Backend and the session cookie template.
type Manager struct {
	backend Backend
	cookie  http.Cookie
	ttl     time.Duration
}

type Option func(*Manager)

// WithTTL sets the backend expiry, refreshed on every write.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithDev drops the Secure attribute (and so the "__Host-" prefix)
// to allow plain HTTP on localhost.
func WithDev() Option {
	return func(m *Manager) {
		m.cookie.Name = DevCookieName
		m.cookie.Secure = false
	}
}

func NewManager(b Backend, opts ...Option) *Manager {
	m := &Manager{
		backend: b,
		cookie: http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		},
		ttl: DefaultTTL,
	}

	for _, opt := range opts {
		opt(m)
	}

	if !m.cookie.Secure {
		log.Warnf("Session cookie %q without Secure attribute", m.cookie.Name)
	}

	return m
}

// CookieName is the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookie.Name }

// Open binds a Session to the request. Nothing is loaded yet.
func (m *Manager) Open(w http.ResponseWriter, r *http.Request) *Session {
	s := &Session{m: m, w: w}

	c, err := r.Cookie(m.cookie.Name)
	if err == nil {
		if validID(c.Value) {
			s.requested = c.Value
		} else {
			log.Debugf("Ignore invalid session ID (%d bytes)", len(c.Value))
		}
	}

	return s
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	c := m.cookie
	c.Value = id
	http.SetCookie(w, &c)
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	c := m.cookie
	c.MaxAge = -1
	http.SetCookie(w, &c)
}

// newID returns 256 random bits in Base64 URL (43 characters).
func newID() (string, error) {
	b := make([]byte, idSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: cannot generate ID %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validID(id string) bool {
	if len(id) != encodedIDSize {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		ok := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_'
		if !ok {
			return false
		}
	}
	return true
}
