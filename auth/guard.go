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

/*
Package auth authenticates the requests from the "token" cookie
bound to the server-side session.

🔄 Bootstrap (each request)

  - no "token" cookie => logged out
  - undecodable token => logout
  - age >= life span (1 hour) => logout
  - session user present => the session user wins (bindSessionWins)
  - session user absent => the token user is written in the session (bindAdoptToken)
  - logged in only when the session user and the token user have the same ID
  - logged in and age > extend threshold (5 minutes) => new token (renewIfStale)

🛂 Guards

DenyIfNot and DenyIfRoleNot reply 403 and stop the handler.
The handler must run behind Guard.Middleware.
*/
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/teal-finance/emo"

	"github.com/teal-finance/garde/aead"
	"github.com/teal-finance/garde/reserr"
	"github.com/teal-finance/garde/security"
	"github.com/teal-finance/garde/session"
	"github.com/teal-finance/garde/token"
)

var log = emo.NewZone("auth")

const (
	TokenLifeSpan        = 3600 * time.Second
	TokenExtendThreshold = 300 * time.Second
	FailedLoginDelay     = 3 * time.Second

	TokenCookieName = "token"

	// userKey is the session entry holding the JSON of the UserRef.
	userKey = "user"
)

// Guard is process-wide and read-only after New.
type Guard struct {
	codec    *token.Codec
	sessions *session.Manager
	verifier Verifier
	resErr   reserr.ResErr
	counters *counters
	now      func() time.Time
	cookie   http.Cookie

	lifeSpan        int64 // seconds
	extendThreshold int64 // seconds
	failDelay       time.Duration
	compress        bool
}

type Option func(*Guard)

func WithLifeSpan(d time.Duration) Option {
	return func(g *Guard) {
		g.lifeSpan = int64(d / time.Second)
	}
}

func WithExtendThreshold(d time.Duration) Option {
	return func(g *Guard) {
		g.extendThreshold = int64(d / time.Second)
	}
}

// WithFailDelay sets the blocking delay after a failed login.
func WithFailDelay(d time.Duration) Option {
	return func(g *Guard) {
		g.failDelay = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

func WithCookieName(name string) Option {
	return func(g *Guard) {
		g.cookie.Name = name
	}
}

// WithDev drops the Secure attribute of the token cookie
// to allow plain HTTP on localhost.
func WithDev() Option {
	return func(g *Guard) {
		g.cookie.Secure = false
	}
}

// WithMetrics registers the garde_* counters.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(g *Guard) {
		g.counters = newCounters(reg)
	}
}

func WithVerifier(v Verifier) Option {
	return func(g *Guard) {
		g.verifier = v
	}
}

func WithResErr(resErr reserr.ResErr) Option {
	return func(g *Guard) {
		g.resErr = resErr
	}
}

// WithCompression compresses the long tokens (S2).
// The cipher must accept binary plaintext (not rot95).
func WithCompression() Option {
	return func(g *Guard) {
		g.compress = true
	}
}

// New binds the cipher (and so the secret key) to the Guard.
func New(c aead.Cipher, sessions *session.Manager, opts ...Option) *Guard {
	g := &Guard{
		codec:    nil,
		sessions: sessions,
		verifier: BcryptVerifier{},
		resErr:   "",
		counters: nil,
		now:      time.Now,
		cookie: http.Cookie{
			Name:     TokenCookieName,
			Value:    "",
			Path:     "/",
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		},
		lifeSpan:        int64(TokenLifeSpan / time.Second),
		extendThreshold: int64(TokenExtendThreshold / time.Second),
		failDelay:       FailedLoginDelay,
		compress:        false,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.codec = token.NewCodec(c, g.compress)
	g.cookie.MaxAge = int(g.lifeSpan)

	if !g.cookie.Secure {
		log.Warnf("Token cookie %q without Secure attribute", g.cookie.Name)
	}
	log.Infof("Guard cookie=%q lifespan=%ds extend>%ds delay=%v",
		g.cookie.Name, g.lifeSpan, g.extendThreshold, g.failDelay)

	return g
}

// Begin derives the authentication state of the request
// from the token cookie and the session.
func (g *Guard) Begin(w http.ResponseWriter, r *http.Request, sess *session.Session) *Security {
	s := &Security{
		g:        g,
		w:        w,
		r:        r,
		sess:     sess,
		user:     nil,
		loggedIn: false,
	}

	c, err := r.Cookie(g.cookie.Name)
	if err != nil || c.Value == "" {
		g.counters.token(outcomeAbsent)
		return s
	}

	s.startSessionFromToken(c.Value)
	return s
}

// Middleware opens the session, runs the bootstrap,
// and stores the *Security in the request context.
// It also recovers the DenyIfNot/DenyIfRoleNot stops.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	log.Info("Middleware Guard cookie", g.cookie.Name, "session", g.sessions.CookieName())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer recoverDenial(r)

		sess := g.sessions.Open(w, r)
		s := g.Begin(w, r, sess)
		next.ServeHTTP(w, s.putInCtx(r))
	})
}

// RequireRole is a middleware replying 403 when the role of the user is not in roles.
// It must be placed after Guard.Middleware.
func (g *Guard) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := FromCtx(r)
			if s == nil {
				log.Error("RequireRole without Guard.Middleware")
				g.resErr.Forbidden(w, r, "")
				g.counters.deny()
				return
			}
			if err := s.RequireRole(roles...); err != nil {
				s.writeDenied(nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func recoverDenial(r *http.Request) {
	v := recover()
	if v == nil {
		return
	}
	if d, ok := v.(denial); ok {
		log.Debugf("Stopped %s %s: %s", r.Method, security.Sanitize(r.URL.Path), d.msg)
		return
	}
	panic(v)
}

type ctxKey struct{}

func (s *Security) putInCtx(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), ctxKey{}, s)
	s.r = r.WithContext(ctx)
	return s.r
}

// FromCtx returns the *Security stored by Guard.Middleware, or nil.
func FromCtx(r *http.Request) *Security {
	s, ok := r.Context().Value(ctxKey{}).(*Security)
	if !ok {
		return nil
	}
	return s
}

// startSessionFromToken runs the bootstrap once the token cookie is present.
func (s *Security) startSessionFromToken(encoded string) {
	g := s.g

	t, err := g.codec.Decode(encoded)
	if err != nil {
		log.Info("Logout:", err)
		g.counters.token(outcomeMalformed)
		s.Logout()
		return
	}

	now := g.now()
	age := t.Age(now)

	switch {
	case age < 0:
		log.Info("Logout:", ErrFutureToken, age, "s")
		g.counters.token(outcomeMalformed)
		s.Logout()
		return
	case age >= g.lifeSpan:
		log.Info("Logout:", ErrExpiredToken, age, "s")
		g.counters.token(outcomeExpired)
		s.Logout()
		return
	}

	bound, err := s.bind(t.User)
	if err != nil {
		log.Error("Session unavailable, consider logged out:", err)
		return
	}

	s.user = &bound
	s.loggedIn = (bound.ID == t.User.ID)
	if !s.loggedIn {
		log.Warn(ErrIdentityMismatch, "session="+security.Obfuscate(bound.ID),
			"token="+security.Obfuscate(t.User.ID))
		g.counters.token(outcomeMismatch)
		return
	}

	s.renewIfStale(age, now)
}

// bind puts the user in the session unless the session already has one.
func (s *Security) bind(u token.UserRef) (token.UserRef, error) {
	current, err := s.sessionUser()
	if err != nil {
		return token.UserRef{}, err
	}

	if current != nil {
		return s.bindSessionWins(*current, u), nil
	}
	return s.bindAdoptToken(u)
}

// bindSessionWins keeps the session user whatever the token user.
func (s *Security) bindSessionWins(sessionUser, _ token.UserRef) token.UserRef {
	return sessionUser
}

// bindAdoptToken writes the token user in the session.
func (s *Security) bindAdoptToken(u token.UserRef) (token.UserRef, error) {
	j, err := u.Marshal()
	if err != nil {
		return token.UserRef{}, err
	}
	if err = s.sess.Set(s.ctx(), userKey, j); err != nil {
		return token.UserRef{}, err
	}
	return u, nil
}

// renewIfStale sets a new token cookie when the current one is older than the threshold.
func (s *Security) renewIfStale(age int64, now time.Time) {
	if age <= s.g.extendThreshold {
		s.g.counters.token(outcomeValid)
		return
	}

	if err := s.issue(token.New(*s.user, now)); err != nil {
		log.Error("Cannot renew token:", err)
		s.g.counters.token(outcomeValid)
		return
	}

	log.Debugf("Renewed token of %s aged %ds", security.Obfuscate(s.user.ID), age)
	s.g.counters.token(outcomeRenewed)
}

func (s *Security) sessionUser() (*token.UserRef, error) {
	v, err := s.sess.Get(s.ctx())
	if err != nil {
		return nil, err
	}

	j, ok := v[userKey]
	if !ok {
		return nil, nil
	}

	u, err := token.ParseUser(j)
	if err != nil {
		return nil, fmt.Errorf("corrupt session user: %w", err)
	}
	return &u, nil
}
