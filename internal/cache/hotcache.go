// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: March 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache layers a Redis hot cache in front of the SQL geocode cache.
// Redis being down degrades to plain SQL lookups; it never fails a request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"remitero/internal/model"
	"remitero/internal/telemetry"
)

// keyPrefix namespaces geocode entries inside the shared Redis.
const keyPrefix = "geo:"

// hotTTL caps how long an entry stays hot. The SQL row remains the source of
// truth for the real expiry.
const hotTTL = 24 * time.Hour

// KV is the slice of Redis the hot cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing client.
func NewRedisKV(client *redis.Client) *RedisKV { return &RedisKV{client: client} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", model.ErrNotFound
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Store is the SQL layer underneath; the geocode cache contract.
type Store interface {
	Lookup(ctx context.Context, key string) (*model.GeoCacheEntry, error)
	Save(ctx context.Context, e *model.GeoCacheEntry) error
}

// HotGeoCache is the write-through composite. A nil KV turns it into a plain
// passthrough, which is the no-Redis deployment.
type HotGeoCache struct {
	kv    KV // may be nil
	store Store
	log   *logrus.Logger
}

// NewHotGeoCache wires the composite. kv may be nil.
func NewHotGeoCache(kv KV, store Store, log *logrus.Logger) *HotGeoCache {
	return &HotGeoCache{kv: kv, store: store, log: log}
}

// Lookup checks Redis first, then SQL, re-warming Redis on an SQL hit.
func (c *HotGeoCache) Lookup(ctx context.Context, key string) (*model.GeoCacheEntry, error) {
	if c.kv != nil {
		raw, err := c.kv.Get(ctx, keyPrefix+key)
		switch {
		case err == nil:
			var e model.GeoCacheEntry
			if uerr := json.Unmarshal([]byte(raw), &e); uerr == nil && time.Now().Before(e.ExpiresAt) {
				telemetry.CacheLookups.WithLabelValues("geo_hot", "hit").Inc()
				return &e, nil
			}
		case !errors.Is(err, model.ErrNotFound):
			c.log.WithError(err).Warn("cache: redis no disponible, se sigue con SQL")
		}
		telemetry.CacheLookups.WithLabelValues("geo_hot", "miss").Inc()
	}

	e, err := c.store.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	c.warm(ctx, key, e)
	return e, nil
}

// Save writes through: SQL first (source of truth), then Redis best-effort.
func (c *HotGeoCache) Save(ctx context.Context, e *model.GeoCacheEntry) error {
	if err := c.store.Save(ctx, e); err != nil {
		return err
	}
	c.warm(ctx, e.KeyNormalizada, e)
	return nil
}

func (c *HotGeoCache) warm(ctx context.Context, key string, e *model.GeoCacheEntry) {
	if c.kv == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	ttl := hotTTL
	if until := time.Until(e.ExpiresAt); until < ttl {
		ttl = until
	}
	if ttl <= 0 {
		return
	}
	if err := c.kv.Set(ctx, keyPrefix+key, string(raw), ttl); err != nil {
		c.log.WithError(err).Warn("cache: no se pudo calentar redis")
	}
}
