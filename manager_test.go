// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"testing"
)

// TestNewManagerFallsBackToRegisteredDialect verifies that a dialect
// registered via RegisterDialect (the package-level registry in
// registry.go) is actually consulted when ManagerConfig.Dialects omits it.
func TestNewManagerFallsBackToRegisteredDialect(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "a/read.ping.sql", "SELECT 1")

	spy := &spyDriver{}
	RegisterDialect("sqler-test-registered-dialect", newSpyDriverFactory(spy))

	m, err := NewManager(ManagerConfig{
		MainPath:    dir,
		Dialects:    map[string]DriverFactory{},
		Private:     map[string]PrivateOptions{"a": {Host: "localhost"}},
		Connections: []*ConnectionConfig{{ID: "a", Name: "a", Dialect: "sqler-test-registered-dialect"}},
	})
	if err != nil {
		t.Fatalf("NewManager failed to fall back to the registered dialect: %v", err)
	}
	if _, err := m.Init(context.Background(), DispatchOptions{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
}

func TestNewManagerUnknownDialectFails(t *testing.T) {
	dir := t.TempDir()
	_, err := NewManager(ManagerConfig{
		MainPath:    dir,
		Dialects:    map[string]DriverFactory{},
		Private:     map[string]PrivateOptions{"a": {Host: "localhost"}},
		Connections: []*ConnectionConfig{{ID: "a", Name: "a", Dialect: "sqler-test-nonexistent-dialect"}},
	})
	if err == nil {
		t.Fatalf("expected an error for an unregistered, unconfigured dialect")
	}
}

func TestManagerDuplicateConnectionNameRejected(t *testing.T) {
	dir := t.TempDir()
	spy := &spyDriver{}
	_, err := NewManager(ManagerConfig{
		MainPath: dir,
		Dialects: map[string]DriverFactory{"x": newSpyDriverFactory(spy)},
		Private: map[string]PrivateOptions{
			"a": {Host: "localhost"},
			"b": {Host: "localhost"},
		},
		Connections: []*ConnectionConfig{
			{ID: "a", Name: "dup", Dialect: "x"},
			{ID: "b", Name: "dup", Dialect: "x"},
		},
	})
	if err == nil {
		t.Fatalf("expected duplicate connection name to be rejected")
	}
}
