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

package token

import "errors"

// Kind classifies a DecodeError.
type Kind int

const (
	// Malformed covers an invalid Base92 text, a failed decryption,
	// an invalid JSON, and an unknown payload header.
	Malformed Kind = iota + 1
	// MissingFields means the JSON is valid but lacks "u", "u.i" or "t".
	MissingFields
)

var (
	ErrMalformed     = errors.New("malformed token")
	ErrMissingFields = errors.New("token missing fields")

	errMissingUser = errors.New(`no "u"`)
	errMissingID   = errors.New(`no "i" in "u"`)
	errMissingTime = errors.New(`no "t"`)
	errHeader      = errors.New("unknown payload header")
	errEmpty       = errors.New("empty")
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return ErrMalformed.Error()
	case MissingFields:
		return ErrMissingFields.Error()
	default:
		return "unknown token error"
	}
}

// DecodeError is the only error type returned by Decode.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ErrMalformed) and errors.Is(err, ErrMissingFields).
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == Malformed
	case ErrMissingFields:
		return e.Kind == MissingFields
	}
	return false
}

func malformed(err error) error {
	return &DecodeError{Kind: Malformed, Err: err}
}
