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

package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// AES128 is AES-128 GCM using a fresh random nonce for each message.
type AES128 struct {
	gcm cipher.AEAD
}

// NewAES128 prefers 16 bytes (AES-128, faster) over 32 (AES-256, irrelevant extra security).
func NewAES128(secretKey [16]byte) (*AES128, error) {
	block, err := aes.NewCipher(secretKey[:])
	if err != nil {
		return nil, fmt.Errorf("aead: AES %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: GCM %w", err)
	}

	return &AES128{gcm}, nil
}

// Encrypt hides the content of the data and provides a check that it hasn't been altered.
// Output takes the form nonce|ciphertext|tag where '|' indicates concatenation.
// Never use more than 2^32 random nonces with a given key
// because of the risk of a repeat (birthday attack).
func (c *AES128) Encrypt(plaintext []byte) ([]byte, error) {
	n := c.gcm.NonceSize()
	nonce := make([]byte, n, n+len(plaintext)+c.gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aead: nonce %w", err)
	}

	return c.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt expects input form nonce|ciphertext|tag where '|' indicates concatenation.
func (c *AES128) Decrypt(ciphertext []byte) ([]byte, error) {
	n := c.gcm.NonceSize()
	if len(ciphertext) < n+c.gcm.Overhead() {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(ciphertext))
	}

	return c.gcm.Open(nil, ciphertext[:n], ciphertext[n:], nil)
}
