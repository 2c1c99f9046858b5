// Copyright (c) 2017-2020 Denis Subbotin, Philip Schlump, Nika Jones, Steven Allen, MoonFruit
// Copyright (c) 2022      Teal.Finance contributors
//
// This file is derived from:
// https://github.com/mr-tron/base58
// The big-number conversion has been generalized to base 92
// and made symmetric for decoding.
//
// SPDX-License-Identifier: MIT

// Package base92 encodes the token cookie value.
// The encoded string uses only the 92 characters accepted in a cookie value:
// from 0x20 (space) to 0x7E (~) except " ; and \.
//
// Leading zero bytes are kept as leading spaces,
// so Decode(Encode(b)) returns exactly b.
package base92

import (
	"errors"
	"fmt"
	"log"
)

const alphabet = " !" + // double-quote " removed
	"#$%&'()*+,-./0123456789:" + // semi-colon ; removed
	"<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[" + // back-slash \ removed
	"]^_`abcdefghijklmnopqrstuvwxyz{|}~"

const base = len(alphabet)

var ErrInvalidDigit = errors.New("base92: invalid digit")

var decodeMap = newDecodeMap()

func newDecodeMap() (m [256]int16) {
	if base != 92 {
		log.Panicf("base92: alphabet has %d symbols", base)
	}

	for i := range m {
		m[i] = -1
	}
	for i := 0; i < base; i++ {
		c := alphabet[i]
		if m[c] != -1 {
			log.Panicf("base92: duplicated symbol %q", c)
		}
		m[c] = int16(i)
	}
	return m
}

// Encode returns the base92 representation of bin.
func Encode(bin []byte) string {
	zeros := leading(bin, 0)

	// ceil(log(256)/log(92)) ≈ 1.227 < 555/406
	size := (len(bin)-zeros)*555/406 + 1
	digits := convert(bin[zeros:], size, 256, base)

	out := make([]byte, zeros+len(digits))
	for i := 0; i < zeros; i++ {
		out[i] = alphabet[0]
	}
	for i, d := range digits {
		out[zeros+i] = alphabet[d]
	}
	return string(out)
}

// Decode reverses Encode.
// Any byte outside the alphabet gives ErrInvalidDigit.
func Decode(str string) ([]byte, error) {
	in := make([]byte, len(str))
	for i := 0; i < len(str); i++ {
		d := decodeMap[str[i]]
		if d < 0 {
			return nil, fmt.Errorf("%w %q at position %d", ErrInvalidDigit, str[i], i)
		}
		in[i] = byte(d)
	}

	zeros := leading(in, 0)

	// log(92)/log(256) ≈ 0.815 < 5/6
	size := (len(in)-zeros)*5/6 + 1
	bin := convert(in[zeros:], size, base, 256)

	out := make([]byte, zeros+len(bin))
	copy(out[zeros:], bin)
	return out, nil
}

// convert changes the radix of the big-endian number
// represented by the digits in, using a scratch of size digits.
// The returned digits have no leading zero.
func convert(in []byte, size, from, to int) []byte {
	out := make([]byte, size)
	high := size - 1

	for _, d := range in {
		i := size - 1
		for carry := uint32(d); i > high || carry != 0; i-- {
			carry += uint32(from) * uint32(out[i])
			out[i] = byte(carry % uint32(to))
			carry /= uint32(to)
		}
		high = i
	}

	return out[leading(out, 0):]
}

func leading(b []byte, v byte) int {
	n := 0
	for n < len(b) && b[n] == v {
		n++
	}
	return n
}
