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

package limiter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestLimit(t *testing.T) {
	cases := []struct {
		name   string
		burst  int
		dev    bool
		nReq   int
		wantOK int
	}{
		{"underBurst", 3, false, 2, 2},
		{"atBurst", 3, false, 3, 3},
		{"overBurst", 3, false, 5, 3},
		{"devMode", 1, true, 12, 10},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rl := New(c.burst, 1, c.dev, "")
			h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			ok := 0
			for i := 0; i < c.nReq; i++ {
				w := httptest.NewRecorder()
				r := httptest.NewRequest(http.MethodPost, "/login", nil)
				r.RemoteAddr = "192.0.2.1:1234"
				h.ServeHTTP(w, r)

				switch w.Code {
				case http.StatusOK:
					ok++
				case http.StatusTooManyRequests:
				default:
					t.Fatalf("unexpected status %d", w.Code)
				}
			}

			if ok != c.wantOK {
				t.Errorf("accepted %d requests, want %d", ok, c.wantOK)
			}
		})
	}
}

func TestLimitPerIP(t *testing.T) {
	rl := New(1, 1, false, "")
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, addr := range []string{"192.0.2.1:1", "192.0.2.2:1", "192.0.2.3:1"} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, each IP has its own quota", addr, w.Code)
		}
	}
}

func TestBadRemoteAddr(t *testing.T) {
	rl := New(1, 1, false, "")
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "no-port"
	h.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestForget(t *testing.T) {
	now := time.Unix(1656000000, 0)
	rl := New(1, 1, false, "")
	rl.now = func() time.Time { return now }

	rl.visitor("192.0.2.1")
	now = now.Add(time.Minute)
	rl.visitor("192.0.2.2")

	now = now.Add(forgetAfter)
	if n := rl.forget(); n != 1 {
		t.Errorf("forget() = %d, want 1", n)
	}
	if _, ok := rl.visitors["192.0.2.2"]; !ok {
		t.Error("the recent IP must be kept")
	}
}

func TestJanitorForgetsIdleIPs(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1656000000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	rl := New(1, 1, false, "")
	rl.now = clock
	rl.sweep = time.Millisecond
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	const n = 1000
	for i := 0; i < n; i++ {
		r := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.RemoteAddr = fmt.Sprintf("10.0.%d.%d:1234", i/256, i%256)
		h.ServeHTTP(httptest.NewRecorder(), r)
	}
	if got := rl.Len(); got != n {
		t.Fatalf("Len() = %d, want %d", got, n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl.StartJanitor(ctx)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for rl.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Len() = %d after one idle hour, want 0", rl.Len())
		}
		time.Sleep(time.Millisecond)
	}
}
