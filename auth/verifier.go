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

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/teal-finance/garde/token"
)

// Account is the user record fetched by the application (database, LDAP…)
// before calling Login. Garde never stores it.
type Account struct {
	User         token.UserRef
	PasswordHash string
}

// Verifier checks a password against its stored hash.
type Verifier interface {
	Verify(hash, password string) bool
}

// BcryptVerifier is the default Verifier.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword is the counterpart of BcryptVerifier,
// used to provision the Account.PasswordHash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
