// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if entry, err := c.Get(ctx, "missing"); err != nil || entry != nil {
		t.Fatalf("expected nil entry for missing key, got %v, %v", entry, err)
	}

	if err := c.Set(ctx, "k", "SELECT 1", time.Minute); err != nil {
		t.Fatalf("unexpected Set error: %v", err)
	}

	entry, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected Get error: %v", err)
	}
	if entry == nil || entry.Item != "SELECT 1" {
		t.Fatalf("unexpected cache entry: %#v", entry)
	}
}

// TestCacheHitAvoidsDisk verifies spec §8's "cache correctness" invariant:
// with a cache installed, the second resolveSQL call for a file within TTL
// does not read the filesystem again.
func TestCacheHitAvoidsDisk(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	dir := t.TempDir()
	writeSQLFile(t, dir, "read.ping.sql", "SELECT 1")

	conn := &ConnectionConfig{Name: "conn1", Dialect: "oracle", Dir: "."}
	catalog := NewCatalog(conn, dir, cache, nil, nil)
	if err := catalog.Scan(ctx); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	node, ok := catalog.Root().Lookup([]string{"read", "ping"})
	if !ok || node.fn == nil {
		t.Fatalf("prepared function not found")
	}

	sql1, err := node.fn.resolveSQL(ctx)
	if err != nil {
		t.Fatalf("first resolveSQL failed: %v", err)
	}

	// Remove the backing file; a cache hit must not need to read it again.
	removeSQLFile(t, dir, "read.ping.sql")

	sql2, err := node.fn.resolveSQL(ctx)
	if err != nil {
		t.Fatalf("second resolveSQL failed even though cache should have served it: %v", err)
	}
	if sql1 != sql2 {
		t.Fatalf("cached SQL text differs: %q vs %q", sql1, sql2)
	}
}
