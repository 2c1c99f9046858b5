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

/*
Package session keeps the server-side state of a browser session.

🍪 Session cookie

The browser only holds a random identifier (256 bits, Base64 URL)
in the "__Host-sid" cookie: HttpOnly, Secure, SameSite=Strict, Path=/.
The "__Host-" prefix forbids the Domain attribute,
so the cookie cannot be shared with a sub-domain.

🗄️ Backends

The values are stored by a Backend:

  - MemoryBackend for a single instance (and for tests),
  - RedisBackend when several instances share the sessions,
  - PostgresBackend when the sessions must survive a Redis flush.

The Backend owns the expiry: every Save refreshes the TTL.

🔁 Request flow

Manager.Open binds a Session to the current request.
Nothing is loaded until the first Get, Set or SetAll.
Get starts a new session when the request has none (or an unknown one).
Destroy removes the backend state and expires the cookie.
*/
package session

import (
	"context"
	"errors"
	"time"

	"github.com/teal-finance/emo"
)

var log = emo.NewZone("session")

var ErrNotFound = errors.New("session not found")

// Values is the key-value mapping of a session.
type Values map[string]string

// Clone returns a copy so that the caller cannot alter the cached state.
func (v Values) Clone() Values {
	c := make(Values, len(v))
	for k, s := range v {
		c[k] = s
	}
	return c
}

// Backend stores the session values by session ID.
// Load returns ErrNotFound when the ID is unknown or expired.
type Backend interface {
	Load(ctx context.Context, id string) (Values, error)
	Save(ctx context.Context, id string, v Values, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
