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

// Package pprof serves the /debug/pprof endpoints on localhost
// and writes the CPU profile of the process.
package pprof

import (
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/profile"
	"github.com/teal-finance/emo"
)

var log = emo.NewZone("pprof")

type Stoppable interface {
	Stop()
}

// ProbeCPU writes cpu.pprof in the current directory until Stop.
// To visualize it: go tool pprof -http=: cpu.pprof
func ProbeCPU() Stoppable {
	log.Info("Probing CPU")
	return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
}

// StartServer listens on localhost only, port 0 disables the endpoints.
func StartServer(port int) {
	if port <= 0 {
		return
	}

	addr := "localhost:" + strconv.Itoa(port)
	go func() {
		log.Info("Enable PProf endpoints: http://" + addr + "/debug/pprof")
		err := http.ListenAndServe(addr, Handler())
		log.Error("PProf server:", err)
	}()
}

func Handler() http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.NotFound(pprof.Index) // also /debug/pprof/{heap,goroutine,block…}
	return r
}
