// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"time"

	"github.com/gogf/gf/os/gcache"
	"github.com/gogf/gf/os/glog"
)

// Cache is the abstract key/value surface a connection may supply for its
// prepared functions' SQL text (spec §4.2 "Cache Surface"). The manager
// treats it as authoritative when present; the core never implements a
// cache itself beyond the MemoryCache default below.
type Cache interface {
	// Get returns the cached entry for key, or nil when missing/expired.
	Get(ctx context.Context, key string) (*CacheEntry, error)
	// Set stores value under key. A zero ttl means "never expires".
	// Errors from Set must be logged by the caller, never raised
	// (spec §9 Open Question (c)) — Set itself may still return an error
	// so callers that want to log it can.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// MemoryCache is the default Cache backed by gogf/gf's process-local
// gcache.Cache, the same cache type the teacher stores on Core.cache and
// drives through Model.Cache/doGetAllBySql (gdb_model_cache.go,
// gdb_model_select.go).
type MemoryCache struct {
	cache *gcache.Cache
}

// NewMemoryCache returns a ready-to-use in-process Cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: gcache.New()}
}

type memoryCacheRecord struct {
	item   string
	stored time.Time
	ttl    time.Duration
}

// Get implements Cache.
func (m *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	v, err := m.cache.Ctx(ctx).GetVar(key)
	if err != nil {
		return nil, err
	}
	if v == nil || v.IsNil() {
		return nil, nil
	}
	rec, ok := v.Val().(memoryCacheRecord)
	if !ok {
		return nil, nil
	}
	return &CacheEntry{Item: rec.item, Stored: rec.stored, TTL: rec.ttl}, nil
}

// Set implements Cache.
func (m *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.cache.Ctx(ctx).Set(key, memoryCacheRecord{item: value, stored: time.Now(), ttl: ttl}, ttl)
}

// setAndLog writes through to the cache without propagating a write
// failure to the caller — errors are logged instead. This is the literal
// behavior of the teacher's doGetAllBySql cache-write path ("if err :=
// cacheObj.Set(...); err != nil { intlog.Error(err) }"), and the answer to
// spec §9 Open Question (c): "awaited, but errors from set must be logged,
// not raised".
func setAndLog(ctx context.Context, cache Cache, logger *glog.Logger, key, value string, ttl time.Duration) {
	if err := cache.Set(ctx, key, value, ttl); err != nil && logger != nil {
		logger.Ctx(ctx).Error(err)
	}
}
