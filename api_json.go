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

package garde

import (
	"errors"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/teal-finance/garde/token"
)

var errCredentials = errors.New("missing username or password")

type credentials struct {
	Username string
	Password string
}

func (c credentials) check() error {
	if c.Username == "" || c.Password == "" {
		return errCredentials
	}
	return nil
}

// UnmarshalEasyJSON reads {"username":…,"password":…}, other keys are ignored.
func (c *credentials) UnmarshalEasyJSON(l *jlexer.Lexer) {
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
		case "username":
			c.Username = l.String()
		case "password":
			c.Password = l.String()
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
	l.Consumed()
}

type userInfo struct {
	user *token.UserRef
}

// MarshalEasyJSON writes {"id":…,"username":…,"role":…} or null.
func (u userInfo) MarshalEasyJSON(w *jwriter.Writer) {
	writeUser(w, u.user)
}

func writeUser(w *jwriter.Writer, u *token.UserRef) {
	if u == nil {
		w.RawString("null")
		return
	}
	w.RawString(`{"id":`)
	w.String(u.ID)
	w.RawString(`,"username":`)
	w.String(u.Username)
	w.RawString(`,"role":`)
	w.String(u.Role)
	w.RawByte('}')
}

type loginPrompt struct {
	LoggedIn bool
	User     *token.UserRef
}

func (p loginPrompt) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"loggedIn":`)
	w.Bool(p.LoggedIn)
	if p.User != nil {
		w.RawString(`,"user":`)
		writeUser(w, p.User)
	}
	w.RawByte('}')
}
