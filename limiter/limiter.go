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

// Package limiter throttles the requests per client IP.
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teal-finance/emo"
	"golang.org/x/time/rate"

	"github.com/teal-finance/garde/reserr"
	"github.com/teal-finance/garde/security"
)

var log = emo.NewZone("limiter")

const (
	forgetAfter   = 3 * time.Minute
	sweepPeriod   = 1 * time.Minute
	devMultiplier = 10
)

type ReqLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	resErr   reserr.ResErr
	now      func() time.Time
	sweep    time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New allows maxReqBurst requests at once per IP,
// refilled at maxReqPerMinute.
func New(maxReqBurst, maxReqPerMinute int, devMode bool, resErr reserr.ResErr) *ReqLimiter {
	if devMode {
		maxReqBurst *= devMultiplier
		maxReqPerMinute *= devMultiplier
	}

	return &ReqLimiter{
		mu:       sync.Mutex{},
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(maxReqPerMinute) / 60),
		burst:    maxReqBurst,
		resErr:   resErr,
		now:      time.Now,
		sweep:    sweepPeriod,
	}
}

// StartJanitor forgets the IPs idle for a few minutes, until ctx is done.
func (rl *ReqLimiter) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rl.forget(); n > 0 {
					log.Debugf("Forgot %d idle IPs", n)
				}
			}
		}
	}()
}

// Limit replies 429 as soon as the IP exceeds its quota.
func (rl *ReqLimiter) Limit(next http.Handler) http.Handler {
	log.Infof("Middleware RateLimiter: burst=%v rate=%.2f/s", rl.burst, float64(rl.limit))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			rl.resErr.Write(w, r, http.StatusInternalServerError, "Cannot split addr=host:port")
			log.Error("SplitHostPort", security.Sanitize(r.RemoteAddr), err)
			return
		}

		if !rl.visitor(ip).Allow() {
			rl.resErr.Write(w, r, http.StatusTooManyRequests, "Too Many Requests")
			log.Warn("TooManyRequests", ip, r.Method, security.Sanitize(r.URL.Path))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *ReqLimiter) visitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = rl.now()
	return v.limiter
}

// Len is the number of tracked IPs.
func (rl *ReqLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *ReqLimiter) forget() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	for ip, v := range rl.visitors {
		if rl.now().Sub(v.lastSeen) > forgetAfter {
			delete(rl.visitors, ip)
			n++
		}
	}
	return n
}
