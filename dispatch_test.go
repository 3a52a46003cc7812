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

func newTestManager(t *testing.T, names []string, sleep time.Duration) (*Manager, map[string]*spyDriver) {
	t.Helper()
	dir := t.TempDir()
	spies := make(map[string]*spyDriver, len(names))
	dialects := make(map[string]DriverFactory, len(names))
	private := make(map[string]PrivateOptions, len(names))
	var conns []*ConnectionConfig

	for _, name := range names {
		writeSQLFile(t, dir, name+"/read.ping.sql", "SELECT 1")
		spy := &spyDriver{CloseSleep: sleep}
		spies[name] = spy
		dialects[name] = newSpyDriverFactory(spy)
		private[name] = PrivateOptions{Host: "localhost"}
		conns = append(conns, &ConnectionConfig{ID: name, Name: name, Dialect: name, Dir: name})
	}

	m, err := NewManager(ManagerConfig{
		MainPath:    dir,
		Dialects:    dialects,
		Private:     private,
		Connections: conns,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.Init(context.Background(), DispatchOptions{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return m, spies
}

// TestDispatchParallelIsFaster covers spec §8 scenario 6: two connections
// each sleeping 100ms in Close; parallel total wall time stays under
// 150ms, series takes at least 200ms.
func TestDispatchParallelIsFaster(t *testing.T) {
	m, _ := newTestManager(t, []string{"a", "b"}, 100*time.Millisecond)

	start := time.Now()
	if _, err := m.Close(context.Background(), DispatchOptions{ExecuteInSeries: false}); err != nil {
		t.Fatalf("parallel close failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 150*time.Millisecond {
		t.Fatalf("parallel dispatch took too long: %v", elapsed)
	}
}

func TestDispatchSeriesIsSlower(t *testing.T) {
	m, _ := newTestManager(t, []string{"a", "b"}, 100*time.Millisecond)

	start := time.Now()
	if _, err := m.Close(context.Background(), DispatchOptions{ExecuteInSeries: true}); err != nil {
		t.Fatalf("series close failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Fatalf("series dispatch should not overlap, took only %v", elapsed)
	}
}

func TestDispatchSeriesNoOverlap(t *testing.T) {
	dir := t.TempDir()
	active := 0
	overlapped := false

	spyA := &spyDriver{}
	spyB := &spyDriver{}
	track := func(s *spyDriver) DriverFactory {
		return func(conn *ConnectionConfig, priv PrivateOptions) (Driver, error) {
			return &trackingDriver{spyDriver: s, onClose: func() {
				if active > 0 {
					overlapped = true
				}
				active++
				time.Sleep(30 * time.Millisecond)
				active--
			}}, nil
		}
	}

	writeSQLFile(t, dir, "a/read.ping.sql", "SELECT 1")
	writeSQLFile(t, dir, "b/read.ping.sql", "SELECT 1")

	m, err := NewManager(ManagerConfig{
		MainPath: dir,
		Dialects: map[string]DriverFactory{
			"a": track(spyA),
			"b": track(spyB),
		},
		Private: map[string]PrivateOptions{
			"a": {Host: "localhost"},
			"b": {Host: "localhost"},
		},
		Connections: []*ConnectionConfig{
			{ID: "a", Name: "a", Dialect: "a", Dir: "a"},
			{ID: "b", Name: "b", Dialect: "b", Dir: "b"},
		},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.Init(context.Background(), DispatchOptions{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := m.Close(context.Background(), DispatchOptions{ExecuteInSeries: true}); err != nil {
		t.Fatalf("series close failed: %v", err)
	}
	if overlapped {
		t.Fatalf("series dispatch allowed two connection tasks to overlap")
	}
}

// trackingDriver wraps spyDriver, calling onClose synchronously inside
// Close so the test can observe overlap directly rather than through
// timing alone.
type trackingDriver struct {
	*spyDriver
	onClose func()
}

func (d *trackingDriver) Close(ctx context.Context) (int, error) {
	d.onClose()
	return 0, nil
}

func TestDispatchConnectionErrorOverride(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "a/read.ping.sql", "SELECT 1")

	failing := &spyDriver{ExecFunc: nil}
	m, err := NewManager(ManagerConfig{
		MainPath:    dir,
		Dialects:    map[string]DriverFactory{"a": newSpyDriverFactory(failing)},
		Private:     map[string]PrivateOptions{"a": {Host: "localhost"}},
		Connections: []*ConnectionConfig{{ID: "a", Name: "a", Dialect: "a", Dir: "a"}},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.Init(context.Background(), DispatchOptions{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	returnErrors := true
	result, err := m.State(context.Background(), DispatchOptions{
		Connections: map[string]ConnectionDispatchOptions{
			"a": {ReturnErrors: &returnErrors},
		},
	})
	if err != nil {
		t.Fatalf("unexpected top-level error with per-connection ReturnErrors override: %v", err)
	}
	if result == nil || result.ByName["a"] == nil {
		t.Fatalf("expected a per-connection state result")
	}
	cs, ok := result.ByName["a"].(*ConnectionState)
	if !ok {
		t.Fatalf("expected *ConnectionState, got %T", result.ByName["a"])
	}
	if cs.Description != "a://a@localhost:/" {
		t.Fatalf("unexpected connection description: %q", cs.Description)
	}
}
