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

// Package reserr writes the JSON body of the error responses:
// {"error":"Access denied","path":"/admin","doc":"https://…"}
package reserr

import (
	"fmt"
	"net/http"

	"github.com/mailru/easyjson/jwriter"
	"github.com/teal-finance/emo"
)

var log = emo.NewZone("reserr")

const (
	AccessDenied = "Access denied"
	pathInvalid  = "Path is not valid. Please refer to the documentation."
)

// ResErr is the URL of the documentation, included in every error body (when not empty).
type ResErr string

func New(docURL string) ResErr {
	return ResErr(docURL)
}

type msg struct {
	Error string
	Path  string
	Query string
	Doc   string
}

// MarshalEasyJSON omits the empty fields except "error".
func (m msg) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"error":`)
	w.String(m.Error)
	if m.Path != "" {
		w.RawString(`,"path":`)
		w.String(m.Path)
	}
	if m.Query != "" {
		w.RawString(`,"query":`)
		w.String(m.Query)
	}
	if m.Doc != "" {
		w.RawString(`,"doc":`)
		w.String(m.Doc)
	}
	w.RawByte('}')
}

// Write replies the status code and the JSON error body.
func (resErr ResErr) Write(w http.ResponseWriter, r *http.Request, statusCode int, text string) {
	m := msg{Error: text, Path: "", Query: "", Doc: string(resErr)}
	if r != nil {
		m.Path = r.URL.Path
		m.Query = r.URL.RawQuery
	}

	jw := jwriter.Writer{}
	m.MarshalEasyJSON(&jw)
	jw.RawByte('\n')
	b, err := jw.BuildBytes()
	if err != nil {
		log.Error("ResErr BuildBytes", err)
		b = []byte(`{"error":"internal error"}` + "\n")
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)

	if _, err = w.Write(b); err != nil {
		log.Warn("ResErr Write", err)
	}
}

// Forbidden replies 403 with the message, defaulting to "Access denied".
func (resErr ResErr) Forbidden(w http.ResponseWriter, r *http.Request, text string) {
	if text == "" {
		text = AccessDenied
	}
	resErr.Write(w, r, http.StatusForbidden, text)
}

func (resErr ResErr) Unauthorized(w http.ResponseWriter, r *http.Request, text string) {
	resErr.Write(w, r, http.StatusUnauthorized, text)
}

func (resErr ResErr) InvalidPath(w http.ResponseWriter, r *http.Request) {
	resErr.Write(w, r, http.StatusBadRequest, pathInvalid)
}

func Write(w http.ResponseWriter, r *http.Request, statusCode int, a ...any) {
	ResErr("").Write(w, r, statusCode, fmt.Sprint(a...))
}
