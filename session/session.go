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
	"errors"
	"net/http"
)

// Session is the request-bound view of the server-side session.
// It is not safe for concurrent use: one Session per request.
type Session struct {
	m *Manager
	w http.ResponseWriter

	requested string // ID received in the cookie, may be unknown
	id        string // ID of the started session
	values    Values // cached state, nil until loaded
	fresh     bool   // started during this request
}

// ID is empty until the session is started.
func (s *Session) ID() string { return s.id }

// Started reports whether the session exists in the backend for this request.
func (s *Session) Started() bool { return s.values != nil }

// Get returns a copy of the session values,
// starting a new session when the request has none.
func (s *Session) Get(ctx context.Context) (Values, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.values.Clone(), nil
}

// Set stores one value, visible to the next Get of the same request.
func (s *Session) Set(ctx context.Context, key, value string) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	s.values[key] = value
	return s.m.backend.Save(ctx, s.id, s.values, s.m.ttl)
}

// SetAll replaces the whole mapping.
func (s *Session) SetAll(ctx context.Context, v Values) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	s.values = v.Clone()
	return s.m.backend.Save(ctx, s.id, s.values, s.m.ttl)
}

// Destroy removes the session state and expires the session cookie.
// A later Get starts a new session with a new ID.
func (s *Session) Destroy(ctx context.Context) error {
	id := s.id
	if id == "" {
		id = s.requested
	}

	s.requested = ""
	s.id = ""
	s.values = nil
	s.fresh = false

	if id == "" {
		return nil
	}

	s.m.expireCookie(s.w)
	return s.m.backend.Delete(ctx, id)
}

// Renew moves the values to a new session ID and deletes the previous one.
// A session started during this request keeps its ID.
func (s *Session) Renew(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	if s.fresh {
		return nil
	}

	old := s.id
	id, err := newID()
	if err != nil {
		return err
	}
	if err = s.m.backend.Save(ctx, id, s.values, s.m.ttl); err != nil {
		return err
	}

	s.id = id
	s.fresh = true
	s.m.setCookie(s.w, id)

	if err = s.m.backend.Delete(ctx, old); err != nil {
		log.Warn("Renew: previous session not deleted:", err)
	}
	return nil
}

func (s *Session) load(ctx context.Context) error {
	if s.values != nil {
		return nil
	}

	if s.requested != "" {
		v, err := s.m.backend.Load(ctx, s.requested)
		switch {
		case err == nil:
			s.id = s.requested
			s.values = v
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}
		log.Debugf("Unknown or expired session => start a new one")
	}

	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) error {
	id, err := newID()
	if err != nil {
		return err
	}

	v := Values{}
	if err = s.m.backend.Save(ctx, id, v, s.m.ttl); err != nil {
		return err
	}

	s.requested = ""
	s.id = id
	s.values = v
	s.fresh = true
	s.m.setCookie(s.w, id)
	return nil
}
