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

// Package garde assembles the HTTP server
// protected by the cookie token and the server-side session.
package garde

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/teal-finance/emo"

	"github.com/teal-finance/garde/chain"
	"github.com/teal-finance/garde/cors"
	"github.com/teal-finance/garde/metrics"
	"github.com/teal-finance/garde/pprof"
	"github.com/teal-finance/garde/reserr"
	"github.com/teal-finance/garde/security"
)

var log = emo.NewZone("garde")

type Garde struct {
	ResErr reserr.ResErr

	metrics *metrics.Metrics

	version      string
	origins      []string
	policyFiles  []string
	expPort      int
	pprofPort    int
	loginBurst   int
	loginMinute  int
	devMode      bool
	shutdownWait time.Duration
}

func New(opts ...Option) *Garde {
	g := &Garde{
		ResErr:       "",
		metrics:      nil,
		version:      "",
		origins:      nil,
		policyFiles:  nil,
		expPort:      0,
		pprofPort:    0,
		loginBurst:   5,
		loginMinute:  10,
		devMode:      false,
		shutdownWait: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.devMode {
		g.origins = append(g.origins, cors.DevOrigins...)
	}

	if g.expPort > 0 {
		m, err := metrics.New("garde")
		if err != nil {
			log.Panic("Cannot create the Prometheus exporter:", err)
		}
		g.metrics = m
	}

	return g
}

// Metrics is nil when the export port is disabled.
func (g *Garde) Metrics() *metrics.Metrics { return g.metrics }

// Setup starts the side servers (PProf, Prometheus)
// and returns the middleware in front of the router.
func (g *Garde) Setup() (chain.Chain, func(net.Conn, http.ConnState)) {
	pprof.StartServer(g.pprofPort)

	var middlewares chain.Chain
	var connState func(net.Conn, http.ConnState)
	if g.metrics != nil {
		middlewares, connState = g.metrics.StartServer(g.expPort)
	}

	middlewares = middlewares.Append(
		LogRequests,
		security.RejectLineBreakInURI,
		g.ServerSetter(),
		cors.Handler(g.origins, g.devMode),
	)

	return middlewares, connState
}

// Run serves h until ctx is done, then shuts down gracefully.
func (g *Garde) Run(ctx context.Context, h http.Handler, port int) error {
	middlewares, connState := g.Setup()

	server := http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           middlewares.Then(h),
		ReadTimeout:       2 * time.Second,
		ReadHeaderTimeout: 1 * time.Second,
		WriteTimeout:      10 * time.Second, // > failed login delay
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    4096, // token + session cookies
		ConnState:         connState,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), g.shutdownWait)
		defer cancel()
		done <- server.Shutdown(shutdownCtx)
	}()

	log.Info("Server listening on http://localhost" + server.Addr)

	err := server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		log.Error("Install ncat and ss: sudo apt install ncat iproute2")
		log.Errorf("Try to listen port %v: sudo ncat -l %v", port, port)
		log.Errorf("Get the process using port %v: sudo ss -pan | grep %v", port, port)
		return err
	}

	return <-done
}

func (g *Garde) ServerSetter() chain.Middleware {
	if g.version == "" {
		return nil
	}
	return ServerHeader(g.version)
}

func ServerHeader(version string) chain.Middleware {
	log.Info("Middleware response HTTP header: Set Server", version)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version)
			next.ServeHTTP(w, r)
		})
	}
}

// LogRequests logs the incoming requests (debug level).
func LogRequests(next http.Handler) http.Handler {
	log.Info("Middleware logger: log requested URLs and remote addresses")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("in  %s %s %s", r.RemoteAddr, r.Method, security.Sanitize(r.RequestURI))
		next.ServeHTTP(w, r)
	})
}
