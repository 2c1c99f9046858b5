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

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/teal-finance/garde/security"
	"github.com/teal-finance/garde/session"
	"github.com/teal-finance/garde/token"
)

// Security is the authentication state of one request.
// It is not safe for concurrent use.
type Security struct {
	g    *Guard
	w    http.ResponseWriter
	r    *http.Request
	sess *session.Session

	user     *token.UserRef
	loggedIn bool
}

func (s *Security) ctx() context.Context {
	return s.r.Context()
}

// Login verifies the password of the candidate fetched by the caller (nil when unknown).
// On success, the user is bound to the session (an existing session user wins),
// a fresh token cookie is set for the bound user and Login returns it.
// A session without user gets a new ID before the binding.
// On failure, Login logs out, then blocks for the fail delay
// (even when the request is cancelled) and returns nil.
func (s *Security) Login(candidate *Account, username, password string) *token.UserRef {
	if !s.g.checkCredentials(candidate, username, password) {
		log.Info("Login", security.Sanitize(username), ErrInvalidCredentials)
		s.failLogin()
		return nil
	}

	bound, err := s.bindLogin(candidate.User)
	if err != nil {
		log.Error("Login: session unavailable:", err)
		s.failLogin()
		return nil
	}

	if bound.ID != candidate.User.ID {
		log.Warn("Login: session already bound to", security.Obfuscate(bound.ID),
			"keeps it over", security.Obfuscate(candidate.User.ID))
	}

	// the token names the session user, as renewIfStale does
	if err = s.issue(token.New(bound, s.g.now())); err != nil {
		log.Error("Login: cannot issue token:", err)
		s.failLogin()
		return nil
	}

	s.user = &bound
	s.loggedIn = true
	s.g.counters.login(true)
	log.Info("Login", security.Obfuscate(bound.ID), "role="+security.Sanitize(bound.Role))

	return s.User()
}

// bindLogin is bind with a new session ID when the session has no user yet.
func (s *Security) bindLogin(u token.UserRef) (token.UserRef, error) {
	current, err := s.sessionUser()
	if err != nil {
		return token.UserRef{}, err
	}
	if current != nil {
		return s.bindSessionWins(*current, u), nil
	}

	if err = s.sess.Renew(s.ctx()); err != nil {
		return token.UserRef{}, err
	}
	return s.bindAdoptToken(u)
}

func (g *Guard) checkCredentials(candidate *Account, username, password string) bool {
	if candidate == nil || candidate.User.ID == "" {
		return false
	}
	if candidate.User.Username != username {
		return false
	}
	return g.verifier.Verify(candidate.PasswordHash, password)
}

// failLogin sleeps without watching the request context.
func (s *Security) failLogin() {
	s.Logout()
	s.g.counters.login(false)
	time.Sleep(s.g.failDelay)
}

// Logout clears the state, the token cookie and the session.
// Logout can be called in any state.
func (s *Security) Logout() {
	s.user = nil
	s.loggedIn = false

	c := s.g.cookie
	c.Value = ""
	c.MaxAge = -1
	http.SetCookie(s.w, &c)

	if err := s.sess.Destroy(s.ctx()); err != nil {
		log.Error("Logout: cannot destroy session:", err)
	}
}

// issue sets the token cookie.
func (s *Security) issue(t token.Token) error {
	encoded, err := s.g.codec.Encode(t)
	if err != nil {
		return err
	}

	c := s.g.cookie
	c.Value = encoded
	http.SetCookie(s.w, &c)
	return nil
}

func (s *Security) IsLoggedIn() bool { return s.loggedIn }

// User returns a copy of the current user, nil when logged out.
func (s *Security) User() *token.UserRef {
	if !s.loggedIn || s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Security) UserID() string {
	if u := s.User(); u != nil {
		return u.ID
	}
	return ""
}

func (s *Security) Username() string {
	if u := s.User(); u != nil {
		return u.Username
	}
	return ""
}

func (s *Security) Role() string {
	if u := s.User(); u != nil {
		return u.Role
	}
	return ""
}

// Require returns ErrAuthorizationDenied when cond is false.
func (s *Security) Require(cond bool) error {
	if !cond {
		return ErrAuthorizationDenied
	}
	return nil
}

// RequireRole returns ErrAuthorizationDenied when the current role is not in roles.
func (s *Security) RequireRole(roles ...string) error {
	role := s.Role()
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q not in %q", ErrAuthorizationDenied, role, roles)
}

// DenyIfNot replies 403 and stops the handler when cond is false.
// The default message is "Access denied".
func (s *Security) DenyIfNot(cond bool, msg ...string) {
	if err := s.Require(cond); err != nil {
		s.deny(msg)
	}
}

// DenyIfRoleNot replies 403 and stops the handler when the current role is not in roles.
func (s *Security) DenyIfRoleNot(roles []string, msg ...string) {
	if err := s.RequireRole(roles...); err != nil {
		s.deny(msg)
	}
}

func (s *Security) deny(msg []string) {
	text := s.writeDenied(msg)
	panic(denial{msg: text})
}

func (s *Security) writeDenied(msg []string) string {
	text := strings.Join(msg, " ")
	s.g.resErr.Forbidden(s.w, s.r, text)
	s.g.counters.deny()

	log.Info("Denied", s.r.Method, security.Sanitize(s.r.URL.Path),
		"user="+security.Obfuscate(s.UserID()), "role="+security.Sanitize(s.Role()))
	return text
}
