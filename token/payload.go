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

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// The payload is the compact JSON {"u":{"i":"…","n":"…","r":"…"},"t":1656000000}.
// The short keys keep the cookie small.

// MarshalEasyJSON writes {"i":"…","n":"…","r":"…"}.
func (u UserRef) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"i":`)
	w.String(u.ID)
	w.RawString(`,"n":`)
	w.String(u.Username)
	w.RawString(`,"r":`)
	w.String(u.Role)
	w.RawByte('}')
}

// UnmarshalEasyJSON ignores unknown keys.
func (u *UserRef) UnmarshalEasyJSON(l *jlexer.Lexer) {
	var p userPresence
	p.UnmarshalEasyJSON(l)
	*u = p.UserRef
}

// userPresence records whether the mandatory "i" is present and not empty.
type userPresence struct {
	UserRef
	hasID bool
}

func (p *userPresence) UnmarshalEasyJSON(l *jlexer.Lexer) {
	isTopLevel := l.IsStart()
	if l.IsNull() {
		l.Skip()
		return
	}

	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		if l.IsNull() {
			l.Skip()
			l.WantComma()
			continue
		}

		switch key {
		case "i":
			p.ID = l.String()
			p.hasID = (p.ID != "")
		case "n":
			p.Username = l.String()
		case "r":
			p.Role = l.String()
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')

	if isTopLevel {
		l.Consumed()
	}
}

type payload struct {
	user    userPresence
	iat     int64
	hasUser bool
	hasTime bool
}

func (p *payload) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"u":`)
	p.user.UserRef.MarshalEasyJSON(w)
	w.RawString(`,"t":`)
	w.Int64(p.iat)
	w.RawByte('}')
}

func (p *payload) UnmarshalEasyJSON(l *jlexer.Lexer) {
	isTopLevel := l.IsStart()

	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		if l.IsNull() {
			l.Skip()
			l.WantComma()
			continue
		}

		switch key {
		case "u":
			p.user.UnmarshalEasyJSON(l)
			p.hasUser = true
		case "t":
			p.iat = l.Int64()
			p.hasTime = true
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')

	if isTopLevel {
		l.Consumed()
	}
}

func (p *payload) token() (Token, error) {
	switch {
	case !p.hasUser:
		return Token{}, &DecodeError{Kind: MissingFields, Err: errMissingUser}
	case !p.user.hasID:
		return Token{}, &DecodeError{Kind: MissingFields, Err: errMissingID}
	case !p.hasTime:
		return Token{}, &DecodeError{Kind: MissingFields, Err: errMissingTime}
	}
	return Token{User: p.user.UserRef, IssuedAt: p.iat}, nil
}
