// Copyright (c) 2022 Teal.Finance contributors
// SPDX-License-Identifier: MIT

package base92

import (
	"bytes"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var cases = []struct {
	name string
	bin  []byte
}{
	{"empty", []byte{}},
	{"zero", []byte{0}},
	{"zeros", []byte{0, 0, 0}},
	{"one", []byte{1}},
	{"max", []byte{255}},
	{"leadingZeros", []byte{0, 0, 42, 0, 7}},
	{"trailingZeros", []byte{9, 0, 0, 0}},
	{"ascii", []byte("Hello, cookie!")},
	{"allBytes", allBytes()},
}

func allBytes() []byte {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestRoundTrip(t *testing.T) {
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			str := Encode(c.bin)

			got, err := Decode(str)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", str, err)
			}

			if !bytes.Equal(got, c.bin) {
				t.Errorf("Decode(Encode(%v)) = %v", c.bin, got)
			}
		})
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(92))

	for i := 0; i < 300; i++ {
		bin := make([]byte, rng.Intn(120))
		_, _ = rng.Read(bin)

		got, err := Decode(Encode(bin))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !bytes.Equal(got, bin) {
			t.Fatalf("Decode(Encode(%x)) = %x", bin, got)
		}
	}
}

func TestEncodeUsesCookieSafeCharacters(t *testing.T) {
	str := Encode(allBytes())
	if strings.ContainsAny(str, "\";\\") {
		t.Errorf("Encode() contains a forbidden character: %q", str)
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, str := range []string{`"`, ";", `\`, "abc;def", "é", "\x00", "\x7f"} {
		t.Run(str, func(t *testing.T) {
			_, err := Decode(str)
			if !errors.Is(err, ErrInvalidDigit) {
				t.Errorf("Decode(%q) error = %v, want %v", str, err, ErrInvalidDigit)
			}
		})
	}
}

// The cookie machinery of net/http must carry the encoded value unchanged,
// including the space and the comma that make it quote the value.
func TestCookieTransport(t *testing.T) {
	bin := append([]byte{0, 0}, allBytes()...)
	want := Encode(bin)

	w := httptest.NewRecorder()
	http.SetCookie(w, &http.Cookie{Name: "token", Value: want})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}

	c, err := r.Cookie("token")
	if err != nil {
		t.Fatalf("Cookie() error = %v", err)
	}
	if c.Value != want {
		t.Errorf("cookie value = %q, want %q", c.Value, want)
	}
}
