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

package garde

import (
	"context"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"

	"github.com/teal-finance/garde/auth"
	"github.com/teal-finance/garde/limiter"
	"github.com/teal-finance/garde/policy"
	"github.com/teal-finance/garde/security"
)

const maxLoginBody = 4096

// Accounts fetches the candidate account for a login.
type Accounts interface {
	Find(username string) *auth.Account
}

// AccountMap is an in-memory Accounts indexed by username.
type AccountMap map[string]auth.Account

func NewAccountMap(accounts []auth.Account) AccountMap {
	m := make(AccountMap, len(accounts))
	for _, a := range accounts {
		m[a.User.Username] = a
	}
	return m
}

func (m AccountMap) Find(username string) *auth.Account {
	a, ok := m[username]
	if !ok {
		return nil
	}
	return &a
}

// Router serves the authentication endpoints:
//
//	GET  /login   login prompt data: {"loggedIn":false}
//	POST /login   JSON {"username","password"} or form => the user
//	POST /logout  204
//	GET  /me      the user, 403 when logged out
//	GET  /admin   403 unless the role is "admin"
//
// The login limiter forgets the idle IPs until ctx is done.
func (g *Garde) Router(ctx context.Context, guard *auth.Guard, accounts Accounts) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(guard.Middleware)

	if len(g.policyFiles) > 0 {
		p, err := policy.New(g.policyFiles, g.ResErr)
		if err != nil {
			return nil, err
		}
		r.Use(p.Middleware)
	}

	login := http.Handler(http.HandlerFunc(g.postLogin(accounts)))
	if g.loginMinute > 0 {
		rl := limiter.New(g.loginBurst, g.loginMinute, g.devMode, g.ResErr)
		rl.StartJanitor(ctx)
		login = rl.Limit(login)
	}

	r.Get("/login", g.getLogin)
	r.Method(http.MethodPost, "/login", login)
	r.Post("/logout", postLogout)
	r.Get("/me", g.getMe)
	r.With(guard.RequireRole("admin")).Get("/admin", g.getAdmin)
	r.NotFound(g.ResErr.InvalidPath)

	return r, nil
}

func (g *Garde) getLogin(w http.ResponseWriter, r *http.Request) {
	s := auth.FromCtx(r)
	writeJSON(w, g, r, loginPrompt{LoggedIn: s.IsLoggedIn(), User: s.User()})
}

func (g *Garde) postLogin(accounts Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := readCredentials(w, r)
		if err != nil {
			g.ResErr.Write(w, r, http.StatusBadRequest, "Cannot read the credentials")
			log.Info("Login request:", err)
			return
		}

		s := auth.FromCtx(r)
		u := s.Login(accounts.Find(c.Username), c.Username, c.Password)
		if u == nil {
			g.ResErr.Unauthorized(w, r, "Invalid credentials")
			return
		}

		writeJSON(w, g, r, userInfo{u})
	}
}

func postLogout(w http.ResponseWriter, r *http.Request) {
	auth.FromCtx(r).Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (g *Garde) getMe(w http.ResponseWriter, r *http.Request) {
	s := auth.FromCtx(r)
	s.DenyIfNot(s.IsLoggedIn(), "Please log in")
	writeJSON(w, g, r, userInfo{s.User()})
}

func (g *Garde) getAdmin(w http.ResponseWriter, r *http.Request) {
	s := auth.FromCtx(r)
	writeJSON(w, g, r, userInfo{s.User()})
}

// readCredentials accepts a JSON body or a form.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)
		if err := r.ParseForm(); err != nil {
			return c, err
		}
		c.Username = r.PostFormValue("username")
		c.Password = r.PostFormValue("password")
		return c, c.check()
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLoginBody))
	if err != nil {
		return c, err
	}
	if err = easyjson.Unmarshal(body, &c); err != nil {
		return c, err
	}
	return c, c.check()
}

func writeJSON(w http.ResponseWriter, g *Garde, r *http.Request, v easyjson.Marshaler) {
	jw := jwriter.Writer{}
	v.MarshalEasyJSON(&jw)
	jw.RawByte('\n')
	b, err := jw.BuildBytes()
	if err != nil {
		g.ResErr.Write(w, r, http.StatusInternalServerError, "Cannot encode the response")
		log.Error("writeJSON", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(b); err != nil {
		log.Warn("writeJSON", security.Sanitize(r.URL.Path), err)
	}
}
