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
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretSize is the minimum length of the secret given to NewXChaCha.
	MinSecretSize = 16

	commitSize = blake2b.Size256

	infoEncryption = "garde/token/encryption"
	infoCommitment = "garde/token/commitment"
)

// XChaCha is a key-committing XChaCha20-Poly1305.
// Output takes the form nonce|commitment|ciphertext|tag.
type XChaCha struct {
	aead      cipher.AEAD
	commitKey []byte
}

// NewXChaCha derives both the encryption key and the commitment key
// from the secret using HKDF-SHA256.
func NewXChaCha(secret []byte) (*XChaCha, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyKey
	}
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("%w: %d bytes < min=%d", ErrShortKey, len(secret), MinSecretSize)
	}

	encKey, err := derive(secret, infoEncryption, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}

	commitKey, err := derive(secret, infoCommitment, commitSize)
	if err != nil {
		return nil, err
	}

	a, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("aead: XChaCha20-Poly1305 %w", err)
	}

	return &XChaCha{aead: a, commitKey: commitKey}, nil
}

func derive(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("aead: HKDF %s %w", info, err)
	}
	return key, nil
}

// Encrypt seals the plaintext using the commitment as associated data.
func (x *XChaCha) Encrypt(plaintext []byte) ([]byte, error) {
	n := x.aead.NonceSize()
	header := n + commitSize

	out := make([]byte, header, header+len(plaintext)+x.aead.Overhead())
	if _, err := rand.Read(out[:n]); err != nil {
		return nil, fmt.Errorf("aead: nonce %w", err)
	}

	if err := x.commit(out[n:header], out[:n]); err != nil {
		return nil, err
	}

	return x.aead.Seal(out, out[:n], plaintext, out[n:header]), nil
}

// Decrypt checks the key commitment before opening the ciphertext.
func (x *XChaCha) Decrypt(ciphertext []byte) ([]byte, error) {
	n := x.aead.NonceSize()
	header := n + commitSize

	if len(ciphertext) < header+x.aead.Overhead() {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(ciphertext))
	}

	nonce := ciphertext[:n]
	commitment := ciphertext[n:header]

	var want [commitSize]byte
	if err := x.commit(want[:], nonce); err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare(commitment, want[:]) != 1 {
		return nil, ErrKeyCommitment
	}

	return x.aead.Open(nil, nonce, ciphertext[header:], commitment)
}

// commit writes in dst the keyed BLAKE2b-256 of the nonce.
func (x *XChaCha) commit(dst, nonce []byte) error {
	h, err := blake2b.New256(x.commitKey)
	if err != nil {
		return fmt.Errorf("aead: BLAKE2b %w", err)
	}
	_, _ = h.Write(nonce)
	copy(dst, h.Sum(nil))
	return nil
}
