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

// Package config reads the settings of the garde server
// from the environment (optionally a .env file), then from the command line.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/teal-finance/emo"

	"github.com/teal-finance/garde/auth"
	"github.com/teal-finance/garde/token"
)

var log = emo.NewZone("config")

const (
	SessionMemory   = "memory"
	SessionRedis    = "redis"
	SessionPostgres = "postgres"

	minSecretSize = 32
)

var (
	ErrSecretMissing = errors.New("GARDE_SECRET_HEX is required (hexadecimal, at least 32 bytes)")
	ErrSecretShort   = errors.New("GARDE_SECRET_HEX must decode to at least 32 bytes")
	ErrSessionKind   = errors.New("-session must be memory, redis or postgres")
	ErrAccount       = errors.New("account must be id:username:role:bcrypt-hash")
)

type Config struct {
	MainPort  int
	ExpPort   int
	PProfPort int

	Session       string
	RedisAddr     string
	RedisPassword string
	PostgresDSN   string

	Origins     []string
	PolicyFiles []string
	Accounts    []auth.Account

	LoginBurst     int
	LoginPerMinute int

	Dev        bool
	Compress   bool
	CPUProfile bool

	Secret []byte
}

// Load reads the envFiles (missing files are ignored), then parses args.
// The environment variables are the flag defaults.
func Load(flags *flag.FlagSet, args []string, envFiles ...string) (*Config, error) {
	loadEnvFiles(envFiles...)

	c := &Config{}
	flags.IntVar(&c.MainPort, "main-port", EnvInt("MAIN_PORT", 8080), "API server port")
	flags.IntVar(&c.ExpPort, "exp-port", EnvInt("EXP_PORT", 9093), "Prometheus export port (0 disables)")
	flags.IntVar(&c.PProfPort, "pprof", EnvInt("PPROF_PORT", 0), "PProf port on localhost (0 disables)")
	flags.StringVar(&c.Session, "session", EnvStr("GARDE_SESSION", SessionMemory), "Session backend: memory, redis or postgres")
	flags.StringVar(&c.RedisAddr, "redis", EnvStr("REDIS_ADDR", "localhost:6379"), "Redis address")
	flags.StringVar(&c.PostgresDSN, "postgres", EnvStr("POSTGRES_DSN"), "PostgreSQL connection string")
	flags.IntVar(&c.LoginBurst, "login-burst", EnvInt("LOGIN_BURST", 5), "Login attempts at once per IP")
	flags.IntVar(&c.LoginPerMinute, "login-rate", EnvInt("LOGIN_PER_MINUTE", 10), "Login attempts per minute per IP")
	flags.BoolVar(&c.Dev, "dev", EnvBool("GARDE_DEV"), "Development mode: cookies without Secure, localhost origins")
	flags.BoolVar(&c.Compress, "compress", EnvBool("GARDE_COMPRESS"), "Compress the long tokens (S2)")
	flags.BoolVar(&c.CPUProfile, "cpu-profile", false, "Write cpu.pprof until exit")
	origins := flags.String("origins", EnvStr("ALLOWED_ORIGINS", "http://localhost:8080"), "CORS origins (comma separated)")
	policies := flags.String("policy", EnvStr("GARDE_POLICY"), "Rego files (comma separated)")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	c.RedisPassword = EnvStr("REDIS_PASSWORD")
	c.Origins = SplitClean(*origins)
	c.PolicyFiles = SplitClean(*policies)

	switch c.Session {
	case SessionMemory, SessionRedis, SessionPostgres:
	default:
		return nil, fmt.Errorf("%w, got %q", ErrSessionKind, c.Session)
	}

	var err error
	c.Secret, err = DecodeSecret(EnvStr("GARDE_SECRET_HEX"))
	if err != nil {
		return nil, err
	}

	c.Accounts, err = ParseAccounts(EnvStr("GARDE_ACCOUNTS"))
	if err != nil {
		return nil, err
	}

	log.Infof("main=%d exp=%d pprof=%d session=%s dev=%v accounts=%d",
		c.MainPort, c.ExpPort, c.PProfPort, c.Session, c.Dev, len(c.Accounts))
	return c, nil
}

func loadEnvFiles(files ...string) {
	for _, f := range files {
		err := godotenv.Load(f)
		switch {
		case err == nil:
			log.Info("Loaded", f)
		case errors.Is(err, fs.ErrNotExist):
		default:
			log.Warn("Cannot load", f, err)
		}
	}
}

// DecodeSecret decodes the hexadecimal secret key.
func DecodeSecret(h string) ([]byte, error) {
	if h == "" {
		return nil, ErrSecretMissing
	}
	key, err := hex.DecodeString(strings.TrimSpace(h))
	if err != nil {
		return nil, fmt.Errorf("GARDE_SECRET_HEX: %w", err)
	}
	if len(key) < minSecretSize {
		return nil, ErrSecretShort
	}
	return key, nil
}

// ParseAccounts parses the comma separated "id:username:role:bcrypt-hash" list.
func ParseAccounts(list string) ([]auth.Account, error) {
	items := SplitClean(list)
	accounts := make([]auth.Account, 0, len(items))
	for _, item := range items {
		f := strings.SplitN(item, ":", 4)
		if len(f) != 4 || f[0] == "" || f[1] == "" || f[3] == "" {
			return nil, fmt.Errorf("%w, got %q", ErrAccount, item)
		}
		accounts = append(accounts, auth.Account{
			User:         token.UserRef{ID: f[0], Username: f[1], Role: f[2]},
			PasswordHash: f[3],
		})
	}
	return accounts, nil
}

// EnvStr returns the value of the environment variable,
// otherwise the optional fallback, otherwise "".
func EnvStr(envvar string, fallback ...string) string {
	if value, ok := os.LookupEnv(envvar); ok {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// EnvInt does the same as EnvStr but expects an integer.
// EnvInt panics if the value cannot be parsed.
func EnvInt(envvar string, fallback ...int) int {
	if str, ok := os.LookupEnv(envvar); ok && str != "" {
		integer, err := strconv.Atoi(str)
		if err != nil {
			log.Panicf("want integer but got %v=%q err: %v", envvar, str, err)
		}
		return integer
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return 0
}

// EnvBool is true for "1", "t", "true"… (see strconv.ParseBool).
func EnvBool(envvar string) bool {
	b, err := strconv.ParseBool(EnvStr(envvar, "false"))
	return err == nil && b
}

// SplitClean splits on commas and blanks, dropping the empty values.
func SplitClean(values string) []string {
	return strings.FieldsFunc(values, func(r rune) bool {
		switch r {
		case ',', ' ', '\t', '\n', '\v', '\f', '\r':
			return true
		}
		return false
	})
}
