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

import "github.com/teal-finance/garde/reserr"

type Option func(*Garde)

func WithDocURL(docURL string) Option {
	return func(g *Garde) {
		g.ResErr = reserr.New(docURL)
	}
}

// WithDev relaxes the CORS origins (localhost) and the login limiter.
func WithDev(enable ...bool) Option {
	devMode := true
	if len(enable) > 0 {
		devMode = enable[0]
		if len(enable) >= 2 {
			log.Panic("garde.WithDev() must be called with zero or one argument")
		}
	}

	return func(g *Garde) {
		g.devMode = devMode
	}
}

func WithPProf(port int) Option {
	return func(g *Garde) {
		g.pprofPort = port
	}
}

// WithProm enables the Prometheus export on port.
func WithProm(port int) Option {
	return func(g *Garde) {
		g.expPort = port
	}
}

// WithLoginLimiter throttles POST /login per IP,
// perMinute <= 0 disables the limiter.
func WithLoginLimiter(burst, perMinute int) Option {
	return func(g *Garde) {
		g.loginBurst = burst
		g.loginMinute = perMinute
	}
}

func WithServerHeader(program string) Option {
	return func(g *Garde) {
		g.version = Version(program)
	}
}

func WithOrigins(origins ...string) Option {
	return func(g *Garde) {
		g.origins = append(g.origins, origins...)
	}
}

// WithPolicy enables the Rego authorization (data.auth.allow).
func WithPolicy(filenames ...string) Option {
	return func(g *Garde) {
		g.policyFiles = filenames
	}
}
