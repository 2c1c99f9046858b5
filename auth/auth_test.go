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

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teal-finance/garde/aead"
	"github.com/teal-finance/garde/auth"
	"github.com/teal-finance/garde/session"
	"github.com/teal-finance/garde/token"
)

var (
	alice = token.UserRef{ID: "1", Username: "alice", Role: "admin"}
	bob   = token.UserRef{ID: "2", Username: "bob", Role: "editor"}

	now = time.Unix(1656000000, 0)
)

type fixture struct {
	t       *testing.T
	cipher  aead.Cipher
	backend *session.MemoryBackend
	guard   *auth.Guard
}

func newFixture(t *testing.T, opts ...auth.Option) *fixture {
	t.Helper()

	c, err := aead.NewXChaCha(bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatal(err)
	}

	b := session.NewMemoryBackend()
	opts = append([]auth.Option{auth.WithClock(func() time.Time { return now })}, opts...)

	return &fixture{
		t:       t,
		cipher:  c,
		backend: b,
		guard:   auth.New(c, session.NewManager(b), opts...),
	}
}

// tokenCookie encodes a token issued age seconds ago.
func (f *fixture) tokenCookie(u token.UserRef, age int64) *http.Cookie {
	f.t.Helper()
	encoded, err := token.Encode(token.Token{User: u, IssuedAt: now.Unix() - age}, f.cipher)
	if err != nil {
		f.t.Fatal(err)
	}
	return &http.Cookie{Name: auth.TokenCookieName, Value: encoded}
}

// serve runs fn behind the Guard middleware and returns the recorder.
func (f *fixture) serve(fn func(s *auth.Security), cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		if c != nil {
			r.AddCookie(c)
		}
	}
	w := httptest.NewRecorder()

	h := f.guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := auth.FromCtx(r)
		if s == nil {
			f.t.Fatal("no *auth.Security in the request context")
		}
		fn(s)
	}))
	h.ServeHTTP(w, r)

	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func TestNoTokenCookie(t *testing.T) {
	f := newFixture(t)

	var loggedIn bool
	w := f.serve(func(s *auth.Security) { loggedIn = s.IsLoggedIn() })

	if loggedIn {
		t.Error("logged in without token")
	}
	if findCookie(w, auth.TokenCookieName) != nil {
		t.Error("no token cookie expected")
	}
}

func TestExpiryBoundary(t *testing.T) {
	cases := []struct {
		name     string
		age      int64
		loggedIn bool
	}{
		{"fresh", 0, true},
		{"lifeSpanMinus1", 3599, true},
		{"lifeSpan", 3600, false},
		{"old", 86400, false},
		{"future", -1, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)

			var got bool
			var user *token.UserRef
			w := f.serve(func(s *auth.Security) {
				got = s.IsLoggedIn()
				user = s.User()
			}, f.tokenCookie(alice, c.age))

			if got != c.loggedIn {
				t.Fatalf("IsLoggedIn() = %v, want %v", got, c.loggedIn)
			}

			if c.loggedIn {
				if user == nil || *user != alice {
					t.Errorf("User() = %+v, want %+v", user, alice)
				}
				return
			}

			if user != nil {
				t.Errorf("User() = %+v, want nil", user)
			}
			ck := findCookie(w, auth.TokenCookieName)
			if ck == nil || ck.Value != "" || ck.MaxAge >= 0 {
				t.Errorf("token cookie must be cleared, got %+v", ck)
			}
		})
	}
}

func TestRenewalBoundary(t *testing.T) {
	cases := []struct {
		name  string
		age   int64
		renew bool
	}{
		{"threshold", 300, false},
		{"thresholdPlus1", 301, true},
		{"young", 10, false},
		{"lifeSpanMinus1", 3599, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)

			var loggedIn bool
			w := f.serve(func(s *auth.Security) { loggedIn = s.IsLoggedIn() }, f.tokenCookie(alice, c.age))

			if !loggedIn {
				t.Fatal("valid token must log in")
			}

			ck := findCookie(w, auth.TokenCookieName)
			if !c.renew {
				if ck != nil {
					t.Errorf("unexpected renewal %+v", ck)
				}
				return
			}

			if ck == nil {
				t.Fatal("missing renewed token cookie")
			}
			renewed, err := token.Decode(ck.Value, f.cipher)
			if err != nil {
				t.Fatalf("Decode(renewed) error = %v", err)
			}
			if renewed.IssuedAt != now.Unix() {
				t.Errorf("renewed IssuedAt = %d, want %d", renewed.IssuedAt, now.Unix())
			}
			if renewed.User != alice {
				t.Errorf("renewed user = %+v, want %+v", renewed.User, alice)
			}
			if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteStrictMode || ck.Path != "/" {
				t.Errorf("cookie attributes = %+v", ck)
			}
			if ck.MaxAge != 3600 {
				t.Errorf("cookie MaxAge = %d, want 3600", ck.MaxAge)
			}
		})
	}
}

func TestMalformedTokenLogsOut(t *testing.T) {
	f := newFixture(t)

	var loggedIn bool
	w := f.serve(func(s *auth.Security) { loggedIn = s.IsLoggedIn() },
		&http.Cookie{Name: auth.TokenCookieName, Value: "garbage"})

	if loggedIn {
		t.Error("logged in with a malformed token")
	}
	ck := findCookie(w, auth.TokenCookieName)
	if ck == nil || ck.MaxAge >= 0 {
		t.Errorf("token cookie must be cleared, got %+v", ck)
	}
}

func TestIdentityMismatch(t *testing.T) {
	f := newFixture(t)

	// session bound to alice
	w1 := f.serve(func(s *auth.Security) {
		if !s.IsLoggedIn() {
			t.Fatal("alice must be logged in")
		}
	}, f.tokenCookie(alice, 10))
	sid := findCookie(w1, session.CookieName)
	if sid == nil {
		t.Fatal("no session cookie")
	}

	// token of bob replayed against the session of alice
	var loggedIn bool
	var user *token.UserRef
	w2 := f.serve(func(s *auth.Security) {
		loggedIn = s.IsLoggedIn()
		user = s.User()
	}, sid, f.tokenCookie(bob, 10))

	if loggedIn || user != nil {
		t.Errorf("IsLoggedIn() = %v User() = %+v, want logged out", loggedIn, user)
	}
	if ck := findCookie(w2, session.CookieName); ck != nil {
		t.Errorf("session must be untouched, got cookie %+v", ck)
	}

	// the session still belongs to alice
	f.serve(func(s *auth.Security) {
		if s.UserID() != alice.ID {
			t.Errorf("UserID() = %q, want %q", s.UserID(), alice.ID)
		}
	}, sid, f.tokenCookie(alice, 10))
}

func TestLogout(t *testing.T) {
	f := newFixture(t)

	w := f.serve(func(s *auth.Security) {
		if !s.IsLoggedIn() {
			t.Fatal("must be logged in")
		}
		s.Logout()

		if s.IsLoggedIn() || s.User() != nil || s.UserID() != "" || s.Role() != "" {
			t.Error("state must be cleared after Logout()")
		}

		s.Logout() // idempotent
	}, f.tokenCookie(alice, 10))

	ck := findCookie(w, auth.TokenCookieName)
	if ck == nil || ck.Value != "" || ck.MaxAge >= 0 {
		t.Errorf("token cookie must be cleared, got %+v", ck)
	}

	sid := findCookie(w, session.CookieName)
	if sid == nil || sid.MaxAge >= 0 {
		t.Errorf("session cookie must be expired, got %+v", sid)
	}

	if n := f.backend.Len(); n != 0 {
		t.Errorf("backend has %d sessions after Logout(), want 0", n)
	}
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	account := &auth.Account{User: alice, PasswordHash: hash}

	f := newFixture(t, auth.WithFailDelay(time.Millisecond))

	var got *token.UserRef
	w := f.serve(func(s *auth.Security) {
		got = s.Login(account, "alice", "s3cret")
		if !s.IsLoggedIn() || s.Role() != "admin" {
			t.Errorf("after Login() IsLoggedIn=%v Role=%q", s.IsLoggedIn(), s.Role())
		}
	})

	if got == nil || *got != alice {
		t.Fatalf("Login() = %+v, want %+v", got, alice)
	}

	ck := findCookie(w, auth.TokenCookieName)
	if ck == nil {
		t.Fatal("missing token cookie")
	}
	tok, err := token.Decode(ck.Value, f.cipher)
	if err != nil {
		t.Fatal(err)
	}
	if tok.User != alice || tok.IssuedAt != now.Unix() {
		t.Errorf("token = %+v", tok)
	}

	// next request: authenticated by the token + session
	sid := findCookie(w, session.CookieName)
	f.serve(func(s *auth.Security) {
		if s.Username() != "alice" {
			t.Errorf("Username() = %q, want alice", s.Username())
		}
	}, sid, ck)
}

func TestLoginSessionWins(t *testing.T) {
	hash, err := auth.HashPassword("bob-pwd")
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t)

	w1 := f.serve(func(*auth.Security) {}, f.tokenCookie(alice, 10))
	sid := findCookie(w1, session.CookieName)

	var got *token.UserRef
	w2 := f.serve(func(s *auth.Security) {
		got = s.Login(&auth.Account{User: bob, PasswordHash: hash}, "bob", "bob-pwd")
		if !s.IsLoggedIn() || s.UserID() != alice.ID {
			t.Errorf("after Login() IsLoggedIn=%v UserID=%q, want alice", s.IsLoggedIn(), s.UserID())
		}
	}, sid)

	if got == nil || got.ID != alice.ID {
		t.Fatalf("Login() = %+v, the session user (alice) must win", got)
	}

	ck := findCookie(w2, auth.TokenCookieName)
	if ck == nil {
		t.Fatal("missing token cookie")
	}
	tok, err := token.Decode(ck.Value, f.cipher)
	if err != nil {
		t.Fatal(err)
	}
	if tok.User != alice {
		t.Errorf("token user = %+v, want the session user %+v", tok.User, alice)
	}

	if c := findCookie(w2, session.CookieName); c != nil {
		t.Errorf("a session already bound must keep its ID, got cookie %+v", c)
	}

	// alice stays logged in
	f.serve(func(s *auth.Security) {
		if !s.IsLoggedIn() || s.Username() != "alice" {
			t.Errorf("next request IsLoggedIn=%v Username=%q, want alice", s.IsLoggedIn(), s.Username())
		}
	}, sid, ck)
}

func TestLoginRenewsSessionID(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t)

	// anonymous session planted before the login
	planted := strings.Repeat("A", 43)
	if err = f.backend.Save(context.Background(), planted, session.Values{"lang": "fr"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	w := f.serve(func(s *auth.Security) {
		if s.Login(&auth.Account{User: alice, PasswordHash: hash}, "alice", "s3cret") == nil {
			t.Error("Login() failed")
		}
	}, &http.Cookie{Name: session.CookieName, Value: planted})

	sid := findCookie(w, session.CookieName)
	if sid == nil || sid.Value == planted {
		t.Fatalf("session cookie = %+v, want a new ID", sid)
	}
	if _, err = f.backend.Load(context.Background(), planted); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Load(planted) error = %v, want %v", err, session.ErrNotFound)
	}

	f.serve(func(s *auth.Security) {
		if s.Username() != "alice" {
			t.Errorf("Username() = %q with the new session, want alice", s.Username())
		}
	}, sid, findCookie(w, auth.TokenCookieName))
}

func TestFailedLoginTiming(t *testing.T) {
	const delay = 150 * time.Millisecond

	hash, err := auth.HashPassword("right")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name      string
		candidate *auth.Account
		username  string
		password  string
	}{
		{"unknownUser", nil, "bob", "wrong"},
		{"wrongPassword", &auth.Account{User: bob, PasswordHash: hash}, "bob", "wrong"},
		{"wrongUsername", &auth.Account{User: bob, PasswordHash: hash}, "alice", "right"},
		{"emptyHash", &auth.Account{User: bob}, "bob", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, auth.WithFailDelay(delay))

			var got *token.UserRef
			var elapsed time.Duration
			w := f.serve(func(s *auth.Security) {
				start := time.Now()
				got = s.Login(c.candidate, c.username, c.password)
				elapsed = time.Since(start)
			})

			if got != nil {
				t.Errorf("Login() = %+v, want nil", got)
			}
			if elapsed < delay {
				t.Errorf("Login() returned after %v, want >= %v", elapsed, delay)
			}
			if ck := findCookie(w, auth.TokenCookieName); ck == nil || ck.MaxAge >= 0 {
				t.Errorf("failed login must clear the token cookie, got %+v", ck)
			}
		})
	}
}

func TestDenyIfRoleNot(t *testing.T) {
	cases := []struct {
		name    string
		user    token.UserRef
		roles   []string
		msg     []string
		status  int
		reached bool
		body    string
	}{
		{"editorDenied", bob, []string{"admin"}, nil, http.StatusForbidden, false, "Access denied"},
		{"customMessage", bob, []string{"admin"}, []string{"Admins only"}, http.StatusForbidden, false, "Admins only"},
		{"adminAllowed", alice, []string{"admin"}, nil, http.StatusOK, true, ""},
		{"oneOfMany", bob, []string{"admin", "editor"}, nil, http.StatusOK, true, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)

			reached := false
			w := f.serve(func(s *auth.Security) {
				s.DenyIfRoleNot(c.roles, c.msg...)
				reached = true
			}, f.tokenCookie(c.user, 10))

			if w.Code != c.status {
				t.Errorf("status = %d, want %d", w.Code, c.status)
			}
			if reached != c.reached {
				t.Errorf("handler continued = %v, want %v", reached, c.reached)
			}
			if c.body != "" && !strings.Contains(w.Body.String(), c.body) {
				t.Errorf("body = %q, want %q", w.Body.String(), c.body)
			}
		})
	}
}

func TestDenyIfNotLoggedOut(t *testing.T) {
	f := newFixture(t)

	reached := false
	w := f.serve(func(s *auth.Security) {
		s.DenyIfNot(s.IsLoggedIn())
		reached = true
	})

	if w.Code != http.StatusForbidden || reached {
		t.Errorf("status = %d reached = %v, want 403 and stop", w.Code, reached)
	}
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)

	f.serve(func(s *auth.Security) {
		if err := s.RequireRole("admin"); !errors.Is(err, auth.ErrAuthorizationDenied) {
			t.Errorf("RequireRole() error = %v, want %v", err, auth.ErrAuthorizationDenied)
		}
		if err := s.Require(true); err != nil {
			t.Errorf("Require(true) error = %v", err)
		}
	}, f.tokenCookie(bob, 10))
}

func TestRequireRoleMiddleware(t *testing.T) {
	f := newFixture(t)

	reached := false
	h := f.guard.Middleware(f.guard.RequireRole("admin")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })))

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(f.tokenCookie(bob, 10))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden || reached {
		t.Errorf("status = %d reached = %v, want 403 and stop", w.Code, reached)
	}
}

func TestOtherPanicsPropagate(t *testing.T) {
	f := newFixture(t)

	defer func() {
		if v := recover(); v != "boom" {
			t.Errorf("recover() = %v, want boom", v)
		}
	}()

	f.serve(func(*auth.Security) { panic("boom") })
	t.Error("the panic must propagate")
}
