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

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         text PRIMARY KEY,
    data       jsonb NOT NULL,
    expires_at timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_expires_at_idx
ON sessions (expires_at);
`

// PostgresBackend stores the values in the "sessions" table.
// pgxConn is the subset of *pgxpool.Pool used by PostgresBackend.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresBackend struct {
	pool pgxConn
	now  func() time.Time
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool, now: time.Now}
}

// DialPostgres returns a pool only when the database answers the ping.
func DialPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: PostgreSQL %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session: PostgreSQL ping %w", err)
	}

	log.Info("PostgreSQL backend", pool.Config().ConnConfig.Host)
	return pool, nil
}

// Migrate creates the "sessions" table when missing.
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, schema)
	return err
}

func (b *PostgresBackend) Load(ctx context.Context, id string) (Values, error) {
	const query = `SELECT data FROM sessions WHERE id = $1 AND expires_at > $2`

	var data []byte
	err := b.pool.QueryRow(ctx, query, id, b.now()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: PostgreSQL select %w", err)
	}

	var v Values
	if err = json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("session: PostgreSQL unmarshal %w", err)
	}
	if v == nil {
		v = Values{}
	}
	return v, nil
}

func (b *PostgresBackend) Save(ctx context.Context, id string, v Values, ttl time.Duration) error {
	const query = `
		INSERT INTO sessions (id, data, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at
	`

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: PostgreSQL marshal %w", err)
	}

	_, err = b.pool.Exec(ctx, query, id, string(data), b.now().Add(ttl))
	return err
}

func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// Purge removes the expired rows and returns how many have been removed.
func (b *PostgresBackend) Purge(ctx context.Context) (int64, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, b.now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
