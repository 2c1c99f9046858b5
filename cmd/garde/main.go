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

// Package main runs the garde server:
// the token cookie + session authentication in front of a small API.
//
//	GARDE_SECRET_HEX=$(openssl rand -hex 32) \
//	GARDE_ACCOUNTS='1:alice:admin:$2a$10$…' \
//	go run ./cmd/garde -dev -session memory
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teal-finance/emo"

	"github.com/teal-finance/garde"
	"github.com/teal-finance/garde/aead"
	"github.com/teal-finance/garde/auth"
	"github.com/teal-finance/garde/config"
	"github.com/teal-finance/garde/pprof"
	"github.com/teal-finance/garde/session"
)

var log = emo.NewZone("main")

const janitorPeriod = time.Minute

func main() {
	garde.LogVersion("garde")

	cfg, err := config.Load(flag.CommandLine, os.Args[1:], ".env")
	if err != nil {
		log.Fatal(err)
	}

	if cfg.CPUProfile {
		defer pprof.ProbeCPU().Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeBackend()

	cipher, err := aead.NewXChaCha(cfg.Secret)
	if err != nil {
		log.Fatal(err)
	}

	g := garde.New(
		garde.WithServerHeader("garde"),
		garde.WithDocURL("https://github.com/teal-finance/garde"),
		garde.WithDev(cfg.Dev),
		garde.WithPProf(cfg.PProfPort),
		garde.WithProm(cfg.ExpPort),
		garde.WithOrigins(cfg.Origins...),
		garde.WithPolicy(cfg.PolicyFiles...),
		garde.WithLoginLimiter(cfg.LoginBurst, cfg.LoginPerMinute),
	)

	var sessOpts []session.Option
	guardOpts := []auth.Option{auth.WithResErr(g.ResErr)}
	if cfg.Dev {
		sessOpts = append(sessOpts, session.WithDev())
		guardOpts = append(guardOpts, auth.WithDev())
	}
	if cfg.Compress {
		guardOpts = append(guardOpts, auth.WithCompression())
	}
	if m := g.Metrics(); m != nil {
		guardOpts = append(guardOpts, auth.WithMetrics(m.Registerer()))
	}

	guard := auth.New(cipher, session.NewManager(backend, sessOpts...), guardOpts...)

	if len(cfg.Accounts) == 0 {
		log.Warn("No account: set GARDE_ACCOUNTS=id:username:role:bcrypt-hash,…")
	}

	h, err := g.Router(ctx, guard, garde.NewAccountMap(cfg.Accounts))
	if err != nil {
		log.Fatal(err)
	}

	if err = g.Run(ctx, h, cfg.MainPort); err != nil {
		log.Error(err)
	}
}

func newBackend(ctx context.Context, cfg *config.Config) (session.Backend, func(), error) {
	switch cfg.Session {
	case config.SessionRedis:
		client, err := session.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisBackend(client), func() { _ = client.Close() }, nil

	case config.SessionPostgres:
		pool, err := session.DialPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		b := session.NewPostgresBackend(pool)
		if err = b.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		go purgeLoop(ctx, b)
		return b, pool.Close, nil

	default:
		b := session.NewMemoryBackend()
		b.StartJanitor(ctx, janitorPeriod)
		return b, func() {}, nil
	}
}

func purgeLoop(ctx context.Context, b *session.PostgresBackend) {
	ticker := time.NewTicker(janitorPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.Purge(ctx)
			if err != nil {
				log.Warn("Purge sessions:", err)
			} else if n > 0 {
				log.Debugf("Purged %d expired sessions", n)
			}
		}
	}
}
