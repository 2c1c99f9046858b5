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
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teal-finance/garde/aead"
	"github.com/teal-finance/garde/session"
	"github.com/teal-finance/garde/token"
)

func TestCounters(t *testing.T) {
	c, err := aead.NewXChaCha(bytes.Repeat([]byte("m"), 32))
	if err != nil {
		t.Fatal(err)
	}

	now := time.Unix(1656000000, 0)
	reg := prometheus.NewRegistry()
	g := New(c, session.NewManager(session.NewMemoryBackend()),
		WithClock(func() time.Time { return now }),
		WithMetrics(reg),
		WithFailDelay(0))

	begin := func(age int64) *Security {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if age >= 0 {
			v, err := token.Encode(token.New(token.UserRef{ID: "7", Username: "u", Role: "r"},
				now.Add(-time.Duration(age)*time.Second)), c)
			if err != nil {
				t.Fatal(err)
			}
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: v})
		}
		w := httptest.NewRecorder()
		return g.Begin(w, r, g.sessions.Open(w, r))
	}

	begin(-1)   // absent
	begin(10)   // valid
	begin(400)  // renewed
	begin(3600) // expired
	s := begin(5)
	s.Login(nil, "u", "bad")
	s.writeDenied(nil)

	cases := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"absent", g.counters.tokens.WithLabelValues(outcomeAbsent), 1},
		{"valid", g.counters.tokens.WithLabelValues(outcomeValid), 2},
		{"renewed", g.counters.tokens.WithLabelValues(outcomeRenewed), 1},
		{"expired", g.counters.tokens.WithLabelValues(outcomeExpired), 1},
		{"loginFailure", g.counters.logins.WithLabelValues("failure"), 1},
		{"loginSuccess", g.counters.logins.WithLabelValues("success"), 0},
		{"denied", g.counters.denied, 1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := testutil.ToFloat64(c.c); got != c.want {
				t.Errorf("counter = %v, want %v", got, c.want)
			}
		})
	}
}

func TestCountersNilSafe(t *testing.T) {
	var c *counters
	c.login(true)
	c.token(outcomeValid)
	c.deny()
}
