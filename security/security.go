// #region <editor-fold desc="Preamble">
// Copyright (c) 2021-2022 Teal.Finance contributors
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

// Package security prevents log injection and sensitive data in logs.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/minio/highwayhash"
	"github.com/teal-finance/emo"

	"github.com/teal-finance/garde/reserr"
)

var log = emo.NewZone("security")

const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
)

// Sanitize replaces the control codes and the invalid UTF-8
// so that a user-controlled string can be logged safely.
// Multiple strings are joined in the slice representation.
func Sanitize(slice ...string) string {
	if len(slice) == 1 {
		return sanitize(slice[0])
	}
	return "[" + sanitize(strings.Join(slice, ", ")) + "]"
}

func sanitize(str string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r == utf8.RuneError, surrogateMin <= r && r <= surrogateMax, r > utf8.MaxRune:
			return '�'
		case unicode.IsPrint(r):
			return r
		default: // r < 32, r == 127
			return '□'
		}
	}, str)
}

// PrintableRune is false for the ASCII control codes (except space)
// and for the invalid code points.
func PrintableRune(r rune) bool {
	switch {
	case r < 32, r == 127:
		return false
	case surrogateMin <= r && r <= surrogateMax:
		return false
	case r == utf8.RuneError, r > utf8.MaxRune:
		return false
	}
	return true
}

// Printable returns -1 when all the strings are safely printable
// else the position of the first rejected character
// plus the string index multiplied by 1000.
func Printable(array ...string) int {
	for i, s := range array {
		for p, r := range s {
			if !PrintableRune(r) {
				return i*1000 + p
			}
		}
	}
	return -1
}

// RejectLineBreakInURI rejects the requests having
// a Carriage Return "\r" or a Line Feed "\n" in the URI.
func RejectLineBreakInURI(next http.Handler) http.Handler {
	log.Info("Middleware security: RejectLineBreakInURI")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.ContainsAny(r.RequestURI, "\r\n") {
			reserr.Write(w, r, http.StatusBadRequest, "Invalid URI containing a line break (CR or LF)")
			log.Warn("Reject URI with <CR> or <LF>:", Sanitize(r.RequestURI))
			return
		}
		next.ServeHTTP(w, r)
	})
}

//nolint:gochecknoglobals // set at startup time, used as constant during runtime
var hasherKey = randomKey()

func randomKey() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Panicf("Cannot generate the HighwayHash key: %v", err)
	}
	return b
}

// Obfuscate returns a short fingerprint of a sensitive string (user ID, token).
// The random key changes at each startup: fingerprints correlate
// log lines of the same process only.
func Obfuscate(str string) string {
	h, err := highwayhash.New64(hasherKey)
	if err != nil {
		log.Panic("HighwayHash:", err)
	}
	_, _ = h.Write([]byte(str))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
