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

// Package metrics exports the HTTP connection counters
// and the request durations in Prometheus format.
package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	gometrics "github.com/armon/go-metrics"
	metricsProm "github.com/armon/go-metrics/prometheus"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/teal-finance/emo"

	"github.com/teal-finance/garde/chain"
	"github.com/teal-finance/garde/security"
)

var log = emo.NewZone("metrics")

type Metrics struct {
	reg     *prometheus.Registry
	samples *gometrics.Metrics

	connGauge  prometheus.Gauge
	iniCounter prometheus.Counter
	reqCounter prometheus.Counter
	resCounter prometheus.Counter
	hijCounter prometheus.Counter
}

// New registers the HTTP collectors in a dedicated registry.
// The other packages (auth) register their counters through Registerer.
func New(service string) (*Metrics, error) {
	reg := prometheus.NewRegistry()

	sink, err := metricsProm.NewPrometheusSinkFrom(metricsProm.PrometheusOpts{
		Expiration: 10 * time.Minute,
		Registerer: reg,
	})
	if err != nil {
		return nil, err
	}

	cfg := gometrics.DefaultConfig(service)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false // see the Go collector below

	samples, err := gometrics.New(cfg, sink)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		reg:        reg,
		samples:    samples,
		connGauge:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "http", Name: "conn", Help: "Number of current active HTTP connections"}),
		iniCounter: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "http", Name: "new", Help: "Total initiated HTTP connections since startup"}),
		reqCounter: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "http", Name: "req", Help: "Total requested HTTP connections since startup"}),
		resCounter: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "http", Name: "res", Help: "Total responded HTTP connections since startup"}),
		hijCounter: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "http", Name: "hij", Help: "Total hijacked HTTP connections since startup"}),
	}

	reg.MustRegister(m.connGauge, m.iniCounter, m.reqCounter, m.resCounter, m.hijCounter,
		collectors.NewGoCollector(),
		collectors.NewBuildInfoCollector())

	return m, nil
}

func (m *Metrics) Registerer() prometheus.Registerer { return m.reg }

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	return r
}

// StartServer serves /metrics on the export port (disabled when port <= 0)
// and returns the counting middleware and the http.Server.ConnState hook.
func (m *Metrics) StartServer(port int) (chain.Chain, func(net.Conn, http.ConnState)) {
	if port <= 0 {
		log.Info("Disable Prometheus, export port=", port)
		return nil, nil
	}

	addr := ":" + strconv.Itoa(port)
	go func() {
		err := http.ListenAndServe(addr, m.Handler())
		log.Fatal(err)
	}()

	log.Info("Prometheus export http://localhost" + addr + "/metrics")

	return chain.New(m.Count), m.ConnState
}

// Count samples the duration of each request.
// The route label is the chi pattern matched downstream,
// or "other" when no route matched.
func (m *Metrics) Count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		record := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			rctx = chi.NewRouteContext()
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		}

		next.ServeHTTP(record, r)

		duration := time.Since(start)
		labels := []gometrics.Label{
			{Name: "method", Value: r.Method},
			{Name: "route", Value: route(rctx)},
			{Name: "status", Value: strconv.Itoa(record.status)},
		}
		m.samples.AddSampleWithLabels([]string{"request_duration"}, float32(duration.Milliseconds()), labels)

		log.Tracef("out %s %s %s %d %v", r.RemoteAddr, r.Method, security.Sanitize(r.URL.Path), record.status, duration)
	})
}

const otherRoute = "other"

// route never returns a client-chosen path.
func route(rctx *chi.Context) string {
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return otherRoute
}

func (m *Metrics) ConnState(_ net.Conn, cs http.ConnState) {
	switch cs {
	case http.StateNew:
		m.iniCounter.Inc()
		m.connGauge.Inc()
	case http.StateActive:
		m.reqCounter.Inc()
	case http.StateIdle:
		m.resCounter.Inc()
	case http.StateHijacked:
		m.hijCounter.Inc()
		m.connGauge.Dec()
	case http.StateClosed:
		m.connGauge.Dec()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
