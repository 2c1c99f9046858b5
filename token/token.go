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

// Package token represents the authentication token carried by the "token" cookie:
// a snapshot of the user and the Unix time the token has been issued.
//
// The token is serialized as a compact JSON, encrypted by an aead.Cipher
// and finally encoded in Base92 to be a valid cookie value.
package token

import (
	"time"

	"github.com/mailru/easyjson"
)

// UserRef is the minimal identity snapshot stored in both the token and the session.
type UserRef struct {
	ID       string
	Username string
	Role     string
}

// Token is immutable: a renewal builds a new Token.
type Token struct {
	User     UserRef
	IssuedAt int64 // Unix time UTC (seconds since 1970)
}

// New issues a token for the user at the given time.
func New(u UserRef, now time.Time) Token {
	return Token{User: u, IssuedAt: now.Unix()}
}

// Age is the number of seconds elapsed since the token has been issued.
// A negative age means the token comes from the future.
func (t Token) Age(now time.Time) int64 {
	return now.Unix() - t.IssuedAt
}

// IssuedTime converts IssuedAt.
func (t Token) IssuedTime() time.Time {
	return time.Unix(t.IssuedAt, 0)
}

// Marshal is the JSON form of the user, as stored in the session.
func (u UserRef) Marshal() (string, error) {
	b, err := easyjson.Marshal(u)
	return string(b), err
}

// ParseUser reverses UserRef.Marshal.
// An object without "i" gives ErrMissingFields.
func ParseUser(s string) (UserRef, error) {
	var p userPresence
	err := easyjson.Unmarshal([]byte(s), &p)
	if err != nil {
		return UserRef{}, &DecodeError{Kind: Malformed, Err: err}
	}
	if !p.hasID {
		return UserRef{}, &DecodeError{Kind: MissingFields, Err: errMissingID}
	}
	return p.UserRef, nil
}
