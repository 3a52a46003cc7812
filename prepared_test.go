// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"strings"
	"testing"
)

func newTestCatalog(t *testing.T, dir string, conn *ConnectionConfig, driver Driver) *Catalog {
	t.Helper()
	execSvc := newExecutionService(conn, driver, nil)
	catalog := NewCatalog(conn, dir, nil, nil, execSvc)
	if err := catalog.Scan(context.Background()); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return catalog
}

// TestSimpleReadInvocation covers spec §8 scenario 1: a prepared read
// function resolves its CRUD type from the filename and returns whatever
// rows the adapter yields.
func TestSimpleReadInvocation(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "finance/read.annual.report.sql", "SELECT A,B,C FROM T")

	conn := &ConnectionConfig{Name: "conn1", Dialect: "oracle", Dir: "."}
	spy := &spyDriver{}
	catalog := newTestCatalog(t, dir, conn, spy)

	fn, ok := catalog.Root().Lookup([]string{"finance", "read", "annual", "report"})
	if !ok || fn.fn == nil {
		t.Fatalf("prepared function not found")
	}

	result, err := fn.fn.Invoke(context.Background(), ExecOptions{Binds: map[string]interface{}{}}, nil, ErrorOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatalf("expected a non-nil result")
	}
	if spy.execCount() != 1 {
		t.Fatalf("expected exactly one driver Exec call, got %d", spy.execCount())
	}
	if spy.ExecCalls[0].Meta.CRUD != READ {
		t.Fatalf("expected inferred CRUD type READ, got %q", spy.ExecCalls[0].Meta.CRUD)
	}
	if !strings.Contains(spy.ExecCalls[0].SQL, "SELECT A,B,C FROM T") {
		t.Fatalf("unexpected SQL sent to driver: %q", spy.ExecCalls[0].SQL)
	}
}

// TestAutoCommitInvariant covers spec §8 scenario 5: autoCommit=false with
// neither a transactionId nor prepareStatement must fail before the driver
// is ever called, naming the file and suggesting beginTransaction.
func TestAutoCommitInvariant(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "update.balance.sql", "UPDATE T SET X = :x")

	conn := &ConnectionConfig{Name: "conn1", Dialect: "oracle", Dir: "."}
	spy := &spyDriver{}
	catalog := newTestCatalog(t, dir, conn, spy)

	fn, ok := catalog.Root().Lookup([]string{"update", "balance"})
	if !ok || fn.fn == nil {
		t.Fatalf("prepared function not found")
	}

	autoCommit := false
	_, err := fn.fn.Invoke(context.Background(), ExecOptions{
		Binds:      map[string]interface{}{"x": 1},
		AutoCommit: &autoCommit,
	}, nil, ErrorOptions{})

	if err == nil {
		t.Fatalf("expected autoCommit invariant violation to fail")
	}
	if spy.execCount() != 0 {
		t.Fatalf("driver must not be called when the invariant is violated, got %d calls", spy.execCount())
	}
	if !strings.Contains(err.Error(), "update.balance.sql") {
		t.Fatalf("error should name the offending file: %v", err)
	}
	if !strings.Contains(err.Error(), "beginTransaction") {
		t.Fatalf("error should suggest beginTransaction: %v", err)
	}
}

// TestAutoCommitFalseWithTransactionIDSucceeds confirms the invariant does
// not fire when a transactionId is supplied.
func TestAutoCommitFalseWithTransactionIDSucceeds(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "update.balance.sql", "UPDATE T SET X = :x")

	conn := &ConnectionConfig{Name: "conn1", Dialect: "oracle", Dir: "."}
	spy := &spyDriver{}
	catalog := newTestCatalog(t, dir, conn, spy)

	fn, _ := catalog.Root().Lookup([]string{"update", "balance"})

	autoCommit := false
	_, err := fn.fn.Invoke(context.Background(), ExecOptions{
		Binds:         map[string]interface{}{"x": 1},
		AutoCommit:    &autoCommit,
		TransactionID: "tx-1",
	}, nil, ErrorOptions{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spy.execCount() != 1 {
		t.Fatalf("expected driver to be called once, got %d", spy.execCount())
	}
}
