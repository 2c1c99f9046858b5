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

// Package rot95 is a repeating-key additive cipher
// over the 95 printable ASCII symbols (from space to tilde).
//
// Each plaintext byte is shifted by the code of the key byte
// at the same position (the key repeats cyclically), modulo 95.
// Decryption subtracts the same shift.
//
// 🚫 rot95 provides obfuscation, not confidentiality nor integrity:
// no authentication tag, key reuse across the whole plaintext.
// It is kept to read and write tokens of the legacy format.
// Use package aead for anything else.
package rot95

import (
	"errors"
	"fmt"
)

const (
	first = ' ' // 32
	last  = '~' // 126
	size  = last - first + 1
)

var (
	ErrEmptyKey     = errors.New("rot95: empty key")
	ErrUnprintable  = errors.New("rot95: byte outside the printable ASCII range")
	errUnprintableK = fmt.Errorf("%w in key", ErrUnprintable)
)

// Cipher implements the aead.Cipher interface.
type Cipher struct {
	key []byte
}

// New rejects an empty key or a key having a non-printable byte.
func New(key string) (*Cipher, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if printable([]byte(key)) >= 0 {
		return nil, errUnprintableK
	}
	return &Cipher{key: []byte(key)}, nil
}

func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	if p := printable(plaintext); p >= 0 {
		return nil, fmt.Errorf("%w at position %d", ErrUnprintable, p)
	}

	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		k := int(c.key[i%len(c.key)])
		out[i] = byte(first + (int(b)-first+k)%size)
	}
	return out, nil
}

func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if p := printable(ciphertext); p >= 0 {
		return nil, fmt.Errorf("%w at position %d", ErrUnprintable, p)
	}

	out := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		k := int(c.key[i%len(c.key)])
		v := (int(b) - first - k) % size
		if v < 0 {
			v += size
		}
		out[i] = byte(first + v)
	}
	return out, nil
}

// Encrypt is the string form of Cipher.Encrypt.
func Encrypt(plaintext, key string) (string, error) {
	c, err := New(key)
	if err != nil {
		return "", err
	}
	b, err := c.Encrypt([]byte(plaintext))
	return string(b), err
}

// Decrypt is the string form of Cipher.Decrypt.
func Decrypt(ciphertext, key string) (string, error) {
	c, err := New(key)
	if err != nil {
		return "", err
	}
	b, err := c.Decrypt([]byte(ciphertext))
	return string(b), err
}

// printable returns the position of the first byte
// outside [32..126], or -1 when all bytes are printable.
func printable(b []byte) int {
	for i, c := range b {
		if c < first || c > last {
			return i
		}
	}
	return -1
}
