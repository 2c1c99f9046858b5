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

// Package cors allows the listed origins to send the credentials (cookies).
package cors

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
	"github.com/teal-finance/emo"
)

var log = emo.NewZone("cors")

// DevOrigins are appended in dev mode.
var DevOrigins = []string{"http://localhost:", "http://127.0.0.1:"}

// Handler uses restrictive CORS values.
// The cookies are sent only if the origin matches.
func Handler(origins []string, debug bool) func(next http.Handler) http.Handler {
	options := cors.Options{
		AllowedOrigins:         nil,
		AllowOriginFunc:        nil,
		AllowOriginRequestFunc: nil,
		AllowedMethods:         []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:         []string{"Origin", "Accept", "Content-Type", "Cookie"},
		ExposedHeaders:         nil,
		MaxAge:                 24 * 3600,
		AllowCredentials:       true,
		OptionsPassthrough:     false,
		OptionsSuccessStatus:   http.StatusNoContent,
		Debug:                  debug,
	}

	origins = InsertSchema(origins)

	switch len(origins) {
	case 0:
		log.Warn("CORS: no origin allowed")
		options.AllowOriginFunc = func(string) bool { return false }
	case 1:
		options.AllowOriginFunc = oneOrigin(origins[0])
	default:
		options.AllowOriginFunc = multipleOriginPrefixes(origins)
	}

	log.Infof("CORS Methods=%v Headers=%v Credentials=%v MaxAge=%v",
		options.AllowedMethods, options.AllowedHeaders, options.AllowCredentials, options.MaxAge)

	return cors.New(options).Handler
}

// InsertSchema returns a copy of origins, "http://" being added when missing.
func InsertSchema(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if !strings.HasPrefix(o, "https://") && !strings.HasPrefix(o, "http://") {
			o = "http://" + o
		}
		out = append(out, o)
	}
	return out
}

func oneOrigin(addr string) func(string) bool {
	log.Info("CORS one origin:", addr)
	return func(origin string) bool {
		return origin == addr
	}
}

func multipleOriginPrefixes(prefixes []string) func(origin string) bool {
	log.Info("CORS origin prefixes:", prefixes)
	return func(origin string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(origin, p) {
				return true
			}
		}
		log.Info("CORS refuse", origin)
		return false
	}
}
