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

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "session:"

// RedisBackend stores the values as JSON under the key "session:<id>".
type RedisBackend struct {
	client redis.Cmdable
	prefix string
}

func NewRedisBackend(client redis.Cmdable) *RedisBackend {
	return &RedisBackend{client: client, prefix: redisPrefix}
}

// DialRedis returns a client only when the server answers the PING.
func DialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session: Redis %s %w", addr, err)
	}

	log.Info("Redis backend", addr)
	return client, nil
}

func (b *RedisBackend) key(id string) string {
	return b.prefix + id
}

func (b *RedisBackend) Load(ctx context.Context, id string) (Values, error) {
	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: Redis GET %w", err)
	}

	var v Values
	if err = json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("session: Redis unmarshal %w", err)
	}
	if v == nil {
		v = Values{}
	}
	return v, nil
}

func (b *RedisBackend) Save(ctx context.Context, id string, v Values, ttl time.Duration) error {
	if ttl <= 0 {
		return b.Delete(ctx, id)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: Redis marshal %w", err)
	}

	return b.client.Set(ctx, b.key(id), data, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	return b.client.Del(ctx, b.key(id)).Err()
}
