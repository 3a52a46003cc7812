// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import "context"

// Driver is the abstract per-dialect executor the core orchestrates but
// never inspects (spec §4.3, C3). Concrete dialect drivers are explicitly
// out of scope (spec §1) — the core depends only on this interface, the
// same boundary the teacher draws between Core and its driverMap entries
// (gdb.go's Driver/DB/Link interfaces).
type Driver interface {
	// Init opens the pool and returns a truthy handle, or an error.
	Init(ctx context.Context, opts PrivateOptions) (interface{}, error)

	// BeginTransaction starts a transaction, returning its handle. id is a
	// GUID-format string generated by attachBeginTransaction
	// (transaction.go), which also stamps a fresh one onto the returned
	// Transaction when its ID is empty.
	BeginTransaction(ctx context.Context, id string, opts interface{}) (*Transaction, error)

	// Exec rewrites nothing itself — the Execution Service has already
	// applied the Template Engine by the time Exec is called. meta carries
	// read-only diagnostic context (connection name, dialect, file).
	Exec(ctx context.Context, sql string, execOpts ExecOptions, activeFragments []string, meta ExecMeta) (*ExecResult, error)

	// Close releases all driver-owned resources and returns how many
	// underlying connections were closed.
	Close(ctx context.Context) (int, error)

	// State returns a read-only snapshot of pool occupancy.
	State(ctx context.Context) (*DriverState, error)
}

// TableIntrospector is an optional capability a Driver may implement for
// tooling that needs schema metadata (SPEC_FULL §3). No core operation
// requires it; the catalog/template/dispatch machinery never calls it.
type TableIntrospector interface {
	Tables(ctx context.Context, schema string) ([]string, error)
	TableFields(ctx context.Context, table, schema string) (map[string]string, error)
}

// ExecMeta is the read-only diagnostic context handed to Driver.Exec,
// named the same as the teacher's per-call Sql record (gdb.go's Sql
// struct) but trimmed to what a driver adapter needs to see.
type ExecMeta struct {
	ConnectionName string
	Dialect        string
	FunctionName   string
	FilePath       string
	CRUD           CRUD
}

// Transaction is the opaque driver-produced handle (spec §3 "Transaction
// handle").
type Transaction struct {
	ID       string
	Commit   func(ctx context.Context) error
	Rollback func(ctx context.Context) error
}

// DriverState is the read-only pool-occupancy snapshot (spec §4.3 "state").
type DriverState struct {
	Pending    int
	Connection struct {
		Count int
		InUse int
	}
}

// ConnectionState is what Manager.State returns for one connection: the
// driver's pool snapshot alongside a credential-free description (SPEC_FULL
// §3 "FilteredLinkInfo-style redaction"), so operators get both without a
// second round trip.
type ConnectionState struct {
	*DriverState
	Description string
}
