// Copyright (c) 2014      Justinas Stankevicius
// Copyright (c) 2015-2016 contributors of alice
// Copyright (c) 2021-2022 Teal.Finance contributors
//
// This file is derived from https://github.com/justinas/alice
//
// SPDX-License-Identifier: MIT

// Package chain composes the HTTP middleware in front of a handler.
package chain

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain is the ordered list of middleware, the first one receives the request first.
type Chain []Middleware

func New(mw ...Middleware) Chain {
	return append(Chain(nil), mw...)
}

// Append returns a new Chain, the receiver is left unchanged.
//
//	c := chain.New(metrics, cors)
//	c = c.Append(guard.Middleware)
func (c Chain) Append(mw ...Middleware) Chain {
	out := make(Chain, 0, len(c)+len(mw))
	out = append(out, c...)
	return append(out, mw...)
}

// Then wraps h so that New(m1, m2).Then(h) == m1(m2(h)).
// Nil middleware are skipped and a nil h is http.DefaultServeMux.
func (c Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.DefaultServeMux
	}
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] != nil {
			h = c[i](h)
		}
	}
	return h
}

func (c Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	if fn == nil {
		return c.Then(nil)
	}
	return c.Then(fn)
}
