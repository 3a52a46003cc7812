// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"os"
)

// PreparedFunction is C6: a closure over one discovered .sql file's
// metadata and its owning connection's Catalog. Invoke resolves CRUD type,
// merges binds, enforces the autoCommit/transaction invariant, resolves
// SQL text (cache or disk), and delegates to the Execution Service —
// grounded on the call chain shape of the teacher's Model.doGetAllBySql,
// which resolves cache before delegating to DoGetAll (gdb_model_select.go).
type PreparedFunction struct {
	meta    *FunctionMeta
	catalog *Catalog
}

// Name returns the prepared function's dotted namespace name.
func (p *PreparedFunction) Name() string { return p.meta.Name }

// Invoke runs one end-to-end call (spec §4.6).
func (p *PreparedFunction) Invoke(ctx context.Context, execOpts ExecOptions, activeFragments []string, errorOpts ErrorOptions) (*ExecResult, error) {
	crud, err := p.resolveCRUD(execOpts)
	if err != nil {
		return nil, err
	}

	if !execOpts.autoCommit() && execOpts.TransactionID == "" && !execOpts.PrepareStatement {
		return nil, newValidationError(p.meta.Path,
			"autoCommit=false requires a transactionId or prepareStatement=true; call beginTransaction first")
	}

	binds := mergeBinds(p.catalog.conn.Binds, execOpts.Binds, resolveDateFormatter(execOpts, p.catalog.conn))
	execOpts.Binds = binds
	execOpts.Type = crud

	sqlText, err := p.resolveSQL(ctx)
	if err != nil {
		return nil, err
	}

	meta := ExecMeta{
		ConnectionName: p.catalog.conn.Name,
		Dialect:        p.catalog.conn.Dialect,
		FunctionName:   p.meta.Name,
		FilePath:       p.meta.Path,
		CRUD:           crud,
	}
	return p.catalog.execSvc.exec(ctx, meta, sqlText, execOpts, activeFragments, errorOpts)
}

// resolveCRUD implements spec §4.6 step 1.
func (p *PreparedFunction) resolveCRUD(execOpts ExecOptions) (CRUD, error) {
	if execOpts.Type != "" {
		crud := CRUD(toUpperCRUD(string(execOpts.Type)))
		if !OPERATION_TYPES[crud] {
			return "", newValidationError(p.meta.Path, "unrecognized type override %q", execOpts.Type)
		}
		return crud, nil
	}
	if p.meta.hasCRUD {
		return p.meta.CRUD, nil
	}
	return "", newValidationError(p.meta.Path, "no CRUD type could be inferred; supply execOpts.Type")
}

func toUpperCRUD(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// resolveDateFormatter prefers the per-call formatter over the
// connection-wide default (spec §4.6 date formatting rule references
// "a formatter is configured" without specifying precedence beyond that;
// per-call is the more specific scope, so it wins).
func resolveDateFormatter(execOpts ExecOptions, conn *ConnectionConfig) interface{} {
	if execOpts.DateFormatter != nil {
		return execOpts.DateFormatter
	}
	return conn.DateFormatter
}

// resolveSQL implements spec §4.6 step 5: cache.Get on hit, else read the
// file (applying connection Substitutes once), cache.Set (awaited; errors
// logged, never returned), or — when no cache is configured — the text
// captured at catalog build time.
func (p *PreparedFunction) resolveSQL(ctx context.Context) (string, error) {
	if p.catalog.cache == nil {
		return p.cachedAtBuildTime()
	}
	entry, err := p.catalog.cache.Get(ctx, p.meta.CacheKey)
	if err == nil && entry != nil {
		return entry.Item, nil
	}
	text, err := p.readFromDisk()
	if err != nil {
		return "", err
	}
	setAndLog(ctx, p.catalog.cache, p.catalog.logger, p.meta.CacheKey, text, 0)
	return text, nil
}

func (p *PreparedFunction) cachedAtBuildTime() (string, error) {
	p.meta.mu.RLock()
	if p.meta.sqlRead {
		text := p.meta.sql
		p.meta.mu.RUnlock()
		return text, nil
	}
	p.meta.mu.RUnlock()

	text, err := p.readFromDisk()
	if err != nil {
		return "", err
	}
	p.meta.mu.Lock()
	p.meta.sql = text
	p.meta.sqlRead = true
	p.meta.mu.Unlock()
	return text, nil
}

func (p *PreparedFunction) readFromDisk() (string, error) {
	raw, err := os.ReadFile(p.meta.Path)
	if err != nil {
		return "", newCatalogError(p.catalog.conn.Name, "reading %s: %v", p.meta.Path, err)
	}
	return p.catalog.conn.applySubstitutes(string(raw)), nil
}
