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
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"

	"github.com/teal-finance/garde/aead"
	"github.com/teal-finance/garde/base92"
)

const (
	// headerJSON is the first byte of an uncompressed payload.
	headerJSON = '{'
	// headerS2 flags a payload compressed by S2.
	headerS2 = 's'

	lengthMustCompress = 180
)

// Codec converts a Token to the cookie value and back.
type Codec struct {
	cipher   aead.Cipher
	compress bool
}

// NewCodec enables the S2 compression of the long payloads when compress is true.
// The compressed payload is binary: do not enable it with a printable-only cipher (rot95).
func NewCodec(c aead.Cipher, compress bool) *Codec {
	return &Codec{cipher: c, compress: compress}
}

// Encode is Codec.Encode without compression.
func Encode(t Token, c aead.Cipher) (string, error) {
	return NewCodec(c, false).Encode(t)
}

// Decode is Codec.Decode, accepting both plain and compressed payloads.
func Decode(encoded string, c aead.Cipher) (Token, error) {
	return NewCodec(c, false).Decode(encoded)
}

// Encode serializes, encrypts and Base92-encodes the token.
func (c *Codec) Encode(t Token) (string, error) {
	p := payload{user: userPresence{UserRef: t.User}, iat: t.IssuedAt}

	plaintext, err := easyjson.Marshal(&p)
	if err != nil {
		return "", fmt.Errorf("token: JSON %w", err)
	}

	if c.compress && len(plaintext) > lengthMustCompress {
		plaintext = append([]byte{headerS2}, s2.Encode(nil, plaintext)...)
	}

	ciphertext, err := c.cipher.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("token: encrypt %w", err)
	}

	return base92.Encode(ciphertext), nil
}

// Decode never panics: any failure is a *DecodeError.
func (c *Codec) Decode(encoded string) (Token, error) {
	if encoded == "" {
		return Token{}, malformed(errEmpty)
	}

	ciphertext, err := base92.Decode(encoded)
	if err != nil {
		return Token{}, malformed(err)
	}

	plaintext, err := c.cipher.Decrypt(ciphertext)
	if err != nil {
		return Token{}, malformed(fmt.Errorf("decrypt %w", err))
	}

	if len(plaintext) == 0 {
		return Token{}, malformed(errHeader)
	}

	switch plaintext[0] {
	case headerJSON:
	case headerS2:
		plaintext, err = s2.Decode(nil, plaintext[1:])
		if err != nil {
			return Token{}, malformed(fmt.Errorf("s2.Decode %w", err))
		}
	default:
		return Token{}, malformed(fmt.Errorf("%w %q", errHeader, plaintext[0]))
	}

	var p payload
	l := jlexer.Lexer{Data: plaintext}
	p.UnmarshalEasyJSON(&l)
	if err = l.Error(); err != nil {
		return Token{}, malformed(err)
	}

	return p.token()
}
