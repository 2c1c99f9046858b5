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

import "github.com/prometheus/client_golang/prometheus"

// Token outcomes, one per request having a token cookie.
const (
	outcomeAbsent    = "absent"
	outcomeValid     = "valid"
	outcomeRenewed   = "renewed"
	outcomeExpired   = "expired"
	outcomeMalformed = "malformed"
	outcomeMismatch  = "mismatch"
)

type counters struct {
	logins *prometheus.CounterVec
	tokens *prometheus.CounterVec
	denied prometheus.Counter
}

func newCounters(reg prometheus.Registerer) *counters {
	c := &counters{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "garde", Name: "login_total",
			Help: "Login attempts by result (success or failure)",
		}, []string{"result"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "garde", Name: "token_total",
			Help: "Token cookie checks by outcome",
		}, []string{"outcome"}),
		denied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "garde", Name: "denied_total",
			Help: "Requests stopped by an authorization guard (403)",
		}),
	}

	reg.MustRegister(c.logins, c.tokens, c.denied)
	return c
}

// The methods accept a nil receiver (metrics disabled).

func (c *counters) login(ok bool) {
	if c == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

func (c *counters) token(outcome string) {
	if c != nil {
		c.tokens.WithLabelValues(outcome).Inc()
	}
}

func (c *counters) deny() {
	if c != nil {
		c.denied.Inc()
	}
}
