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

// Package policy authorizes the endpoints with Open Policy Agent.
// The Rego modules must define "data.auth.allow" from the input:
//
//	{"method": "GET", "path": ["admin","users"], "user": "42", "role": "admin", "loggedIn": true}
//
// The user and role are those authenticated by auth.Guard.Middleware
// (empty when logged out). See https://www.openpolicyagent.org/docs/latest/integration/
package policy

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/teal-finance/emo"

	"github.com/teal-finance/garde/auth"
	"github.com/teal-finance/garde/reserr"
	"github.com/teal-finance/garde/security"
)

var log = emo.NewZone("policy")

const query = "data.auth.allow"

var ErrEmptyFilename = errors.New("OPA: missing filename")

type Policy struct {
	compiler *ast.Compiler
	resErr   reserr.ResErr
}

// New loads and compiles the Rego files.
func New(filenames []string, resErr reserr.ResErr) (*Policy, error) {
	if len(filenames) == 0 {
		return nil, ErrEmptyFilename
	}

	modules := make(map[string]string, len(filenames))
	for _, fn := range filenames {
		if fn == "" {
			return nil, ErrEmptyFilename
		}

		log.Infof("OPA: load %q", fn)
		content, err := os.ReadFile(fn)
		if err != nil {
			return nil, fmt.Errorf("OPA: ReadFile %w", err)
		}
		modules[path.Base(fn)] = string(content)
	}

	return FromModules(modules, resErr)
}

// FromModules compiles the Rego modules (name => source).
func FromModules(modules map[string]string, resErr reserr.ResErr) (*Policy, error) {
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("OPA: compile %w", err)
	}
	return &Policy{compiler: compiler, resErr: resErr}, nil
}

// Middleware replies 403 when the policy does not allow the request.
// It must be placed after auth.Guard.Middleware.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	log.Info("Middleware OPA:", len(p.compiler.Modules), "modules")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allow, err := p.Allow(r)
		if err != nil {
			p.resErr.Write(w, r, http.StatusInternalServerError, "Cannot evaluate authorization policy")
			log.Error("OPA", err)
			return
		}

		if !allow {
			p.resErr.Forbidden(w, r, "")
			log.Info("OPA deny", r.Method, security.Sanitize(r.URL.Path))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allow evaluates the policy for the request.
func (p *Policy) Allow(r *http.Request) (bool, error) {
	rg := rego.New(
		rego.Query(query),
		rego.Compiler(p.compiler),
		rego.Input(input(r)),
	)

	rs, err := rg.Eval(r.Context())
	if err != nil {
		return false, fmt.Errorf("Eval %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil // undefined => deny
	}

	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("%s is not a boolean: %v", query, rs[0].Expressions[0].Value)
	}
	return allow, nil
}

func input(r *http.Request) map[string]any {
	in := map[string]any{
		"method":   r.Method,
		"path":     strings.Split(strings.Trim(r.URL.Path, "/"), "/"),
		"user":     "",
		"role":     "",
		"loggedIn": false,
	}

	if s := auth.FromCtx(r); s != nil {
		in["user"] = s.UserID()
		in["role"] = s.Role()
		in["loggedIn"] = s.IsLoggedIn()
	}
	return in
}
