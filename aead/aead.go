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

// Package aead provides Encrypt() and Decrypt() for
// AEAD (Authenticated Encryption with Associated Data).
// see https://wikiless.org/wiki/Authenticated_encryption
//
// This package has been inspired from:
// - https://go.dev/blog/tls-cipher-suites
// - https://github.com/gtank/cryptopasta
//
// Two implementations are provided behind the Cipher interface:
//
// XChaCha is the default one: XChaCha20-Poly1305 with a 192-bit random nonce
// (safe to generate at random for every token) and a key commitment
// prepended to the ciphertext. A ciphertext can only be opened
// by the key that produced it.
//
// AES128 is AES-128 GCM, faster on AMD/Intel processors
// providing optimized AES instructions set.
// GCM is not key-committing, prefer XChaCha when unsure.
//
// This package follows the Golang Cryptography Principles:
// https://golang.org/design/cryptography-principles
// Secure implementation, faultlessly configurable,
// performant and state-of-the-art updated.
package aead

import (
	"errors"
)

// Cipher is a symmetric and reversible transformation
// whose key is bound at construction time.
// Decrypt(Encrypt(p)) must return p.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

var (
	ErrEmptyKey           = errors.New("aead: empty secret key")
	ErrShortKey           = errors.New("aead: secret key too short")
	ErrCiphertextTooShort = errors.New("aead: ciphertext too short")
	ErrKeyCommitment      = errors.New("aead: key commitment mismatch")
)
