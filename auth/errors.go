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

package auth

import "errors"

var (
	// ErrExpiredToken is logged when the token age reaches the life span.
	ErrExpiredToken = errors.New("expired token")
	// ErrFutureToken is logged when the token has been issued after now.
	ErrFutureToken = errors.New("token issued in the future")
	// ErrIdentityMismatch is logged when the session and the token disagree on the user.
	ErrIdentityMismatch = errors.New("session user differs from token user")
	// ErrAuthorizationDenied is returned by Require and RequireRole.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrInvalidCredentials is logged on failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// denial is the panic value stopping the handler after a 403.
// Guard.Middleware recovers it.
type denial struct{ msg string }
