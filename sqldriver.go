// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/gogf/gf/container/gvar"
	"github.com/gogf/gf/errors/gerror"
	"github.com/gogf/gf/os/glog"
	"github.com/gogf/gf/os/gtime"
)

// SQLDriver is a concrete Driver backed by database/sql, the generalized
// heir of the teacher's Core: where gdb.Core wraps a *sql.DB behind a
// fluent Model/Schema builder, SQLDriver wraps the same pool behind the
// raw-text Driver boundary sqler actually needs (exec's template engine
// has already produced the final SQL string by the time Exec is called,
// so there is no query builder left to keep). Connection opening,
// timestamp-bracketed exec timing and pool-stat reporting are carried
// over from gdb_core.go/gdb_statement.go; the stdlib driver name plugged
// in by DialectOpener replaces the teacher's driverMap dispatch.
type SQLDriver struct {
	// DialectOpener returns the stdlib driver name and DSN for
	// database/sql.Open, given the connection's private credentials.
	// Concrete dialect wiring (mysql, postgres, ...) is explicitly out of
	// scope for sqler itself; callers supply this the same way the
	// teacher's gdb.Register binds a driverName to a DB implementation.
	DialectOpener func(priv PrivateOptions) (driverName, dsn string, err error)

	logger *glog.Logger

	mu sync.RWMutex
	db *sql.DB

	// pending counts in-flight Exec calls. container/gtype has no
	// confirmed usage of an Int wrapper anywhere in the retrieval pack
	// (only Bool/String are exercised, in gdb.go's Core.debug/schema), so
	// this one counter is a plain atomic int64 rather than an unverified
	// gtype API guess.
	pending int64
}

// NewSQLDriverFactory adapts a DialectOpener into a DriverFactory for use
// in ManagerConfig.Dialects/RegisterDialect.
func NewSQLDriverFactory(opener func(priv PrivateOptions) (driverName, dsn string, err error), logger *glog.Logger) DriverFactory {
	return func(conn *ConnectionConfig, priv PrivateOptions) (Driver, error) {
		return &SQLDriver{
			DialectOpener: opener,
			logger:        logger,
		}, nil
	}
}

// Init opens the pool. Grounded on gdb_core.go's New: resolve driver
// config, open, and defer real connectivity to the pool's own lazy dial.
func (d *SQLDriver) Init(ctx context.Context, priv PrivateOptions) (interface{}, error) {
	driverName, dsn, err := d.DialectOpener(priv)
	if err != nil {
		return nil, newConfigError("resolving DSN: %v", err)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, newConfigError("opening %q pool: %v", driverName, err)
	}
	d.mu.Lock()
	d.db = db
	d.mu.Unlock()
	return db, nil
}

// BeginTransaction starts a database/sql transaction and wraps its
// Commit/Rollback behind the generic Transaction handle (spec §3). id is
// stamped onto the handle by attachBeginTransaction when the driver
// itself has none to offer; database/sql transactions carry no natural
// identifier.
func (d *SQLDriver) BeginTransaction(ctx context.Context, id string, opts interface{}) (*Transaction, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()
	if db == nil {
		return nil, newConfigError("driver not initialized")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, newExecutionError(gerror.Wrap(err, "beginning transaction"), "", "", "", ExecOptions{}, nil)
	}
	return &Transaction{
		ID: id,
		Commit: func(ctx context.Context) error {
			return tx.Commit()
		},
		Rollback: func(ctx context.Context) error {
			return tx.Rollback()
		},
	}, nil
}

// Exec runs the already-rewritten sql with positional binds, timing the
// call the way gdb_statement.go's doStmtCommit brackets Start/End around
// ExecContext/QueryContext, and logging through the same connection
// logger the Execution Service uses for debug tracing.
func (d *SQLDriver) Exec(ctx context.Context, query string, execOpts ExecOptions, activeFragments []string, meta ExecMeta) (*ExecResult, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()
	if db == nil {
		return nil, newConfigError("driver not initialized")
	}

	rewritten, binds, err := PositionalBinds(query, execOpts.Binds, "?")
	if err != nil {
		return nil, newValidationError(meta.FilePath, "resolving positional binds: %v", err)
	}
	query = rewritten

	atomic.AddInt64(&d.pending, 1)
	defer atomic.AddInt64(&d.pending, -1)

	start := gtime.TimestampMilli()
	defer func() {
		if d.logger != nil {
			d.logger.Ctx(ctx).Debugf("[%s] %s (%dms)", meta.ConnectionName, meta.FunctionName, gtime.TimestampMilli()-start)
		}
	}()

	switch meta.CRUD {
	case READ:
		rows, err := db.QueryContext(ctx, query, binds...)
		if err != nil {
			return nil, newExecutionError(gerror.Wrap(err, "query failed"), meta.FunctionName, meta.FilePath, query, execOpts, activeFragments)
		}
		defer rows.Close()
		records, err := scanRows(rows)
		if err != nil {
			return nil, newExecutionError(gerror.Wrap(err, "scanning rows"), meta.FunctionName, meta.FilePath, query, execOpts, activeFragments)
		}
		return &ExecResult{Rows: records}, nil
	default:
		res, err := db.ExecContext(ctx, query, binds...)
		if err != nil {
			return nil, newExecutionError(gerror.Wrap(err, "exec failed"), meta.FunctionName, meta.FilePath, query, execOpts, activeFragments)
		}
		affected, _ := res.RowsAffected()
		lastID, _ := res.LastInsertId()
		return &ExecResult{Rows: map[string]int64{"affected": affected, "lastInsertId": lastID}}, nil
	}
}

// Close releases the pool and reports how many connections were open.
func (d *SQLDriver) Close(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return 0, nil
	}
	count := d.db.Stats().OpenConnections
	err := d.db.Close()
	d.db = nil
	return count, err
}

// State reports pool occupancy, generalized from gdb_core.go's
// GetConfig()/Stats() pairing into the spec's DriverState shape.
func (d *SQLDriver) State(ctx context.Context) (*DriverState, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()
	if db == nil {
		return &DriverState{}, nil
	}
	stats := db.Stats()
	state := &DriverState{Pending: int(atomic.LoadInt64(&d.pending))}
	state.Connection.Count = stats.OpenConnections
	state.Connection.InUse = stats.InUse
	return state, nil
}

// Tables implements TableIntrospector by querying information_schema the
// way gdb_schema.go's Schema/Table resolves table membership, generalized
// across dialects via one fixed information_schema query with a "?"
// placeholder rather than a dialect-specific driver implementation (out of
// scope for sqler itself).
func (d *SQLDriver) Tables(ctx context.Context, schema string) ([]string, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()
	if db == nil {
		return nil, newConfigError("driver not initialized")
	}
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = ?`, schema)
	if err != nil {
		return nil, newCatalogError(schema, "listing tables: %v", err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, newCatalogError(schema, "scanning table name: %v", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableFields implements TableIntrospector, generalizing
// gdb_core_structure.go's convertFieldValueToLocalValue type table into a
// plain name->dataType map; callers needing Go-typed conversion apply
// their own mapping, since that table is dialect-specific and sqler's
// core never inspects result values itself.
func (d *SQLDriver) TableFields(ctx context.Context, table, schema string) (map[string]string, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()
	if db == nil {
		return nil, newConfigError("driver not initialized")
	}
	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = ? AND table_name = ?`,
		schema, table)
	if err != nil {
		return nil, newCatalogError(schema, "listing fields for %q: %v", table, err)
	}
	defer rows.Close()
	fields := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, newCatalogError(schema, "scanning field of %q: %v", table, err)
		}
		fields[name] = dataType
	}
	return fields, rows.Err()
}

// scanRows materializes *sql.Rows into a slice of column->value maps, the
// generic stand-in for gdb_type_record.go's Record/Result conversion
// without the reflection-heavy struct-binding machinery a fluent Model
// API needs. Each cell is boxed as a *gvar.Var, the same dynamic-typed
// accessor the teacher's own Record/Value (`Value = *gvar.Var`) gives
// callers — so ExecResult.Rows callers get .String()/.Int()/.Time() etc.
// without sqler itself needing a struct-binding layer.
func scanRows(rows *sql.Rows) ([]map[string]*gvar.Var, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]*gvar.Var
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]*gvar.Var, len(cols))
		for i, col := range cols {
			record[col] = gvar.New(raw[i])
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
