// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"reflect"

	"github.com/gogf/gf/os/glog"
	"github.com/gogf/gf/text/gregex"
	"github.com/gogf/gf/util/gconv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ugate/sqler")

// executionService is C4: one instance per connection. It applies the
// Template Engine, logs, opens a tracing span, calls the driver, and on
// failure redacts binds and attaches the diagnostic envelope (spec §4.4).
//
// The timestamp-bracketing / log-then-call shape is grounded on the
// teacher's Stmt.doStmtCommit (gdb_statement.go), which brackets a driver
// call with a Sql record and routes it to both a tracer and a logger; the
// span here replaces the teacher's internal trace hook (addSqlToTracing)
// with a real OpenTelemetry span, exercising the otel dependency the
// teacher's own go.mod requires but its retrieved files never call.
type executionService struct {
	conn   *ConnectionConfig
	driver Driver
	logger *glog.Logger
}

func newExecutionService(conn *ConnectionConfig, driver Driver, logger *glog.Logger) *executionService {
	return &executionService{conn: conn, driver: driver, logger: logger}
}

// exec runs one rewrite-log-call-wrap cycle (spec §4.4 steps 1-5).
func (s *executionService) exec(ctx context.Context, meta ExecMeta, rawSQL string, execOpts ExecOptions, activeFragments []string, errorOpts ErrorOptions) (*ExecResult, error) {
	ctx, span := tracer.Start(ctx, "sqler.exec", trace.WithAttributes(
		attribute.String("sqler.connection", meta.ConnectionName),
		attribute.String("sqler.dialect", meta.Dialect),
		attribute.String("sqler.function", meta.FunctionName),
		attribute.String("sqler.crud", string(meta.CRUD)),
	))
	defer span.End()

	rewritten, mergedBinds := Rewrite(rawSQL, execOpts.Binds, s.conn.Dialect, s.conn.Version, activeFragments)
	execOpts.Binds = mergedBinds

	if s.logger != nil {
		s.logger.Ctx(ctx).Debugf("sqler exec %s: %s", meta.FunctionName, formatSQLForLog(rewritten, mergedBinds))
	}

	if s.conn.DryRun && meta.CRUD != READ {
		span.SetAttributes(attribute.Bool("sqler.dry_run", true))
		return &ExecResult{Rows: nil}, nil
	}

	result, err := s.driver.Exec(ctx, rewritten, execOpts, activeFragments, meta)
	if err != nil {
		return s.handleFailure(ctx, span, err, meta, rewritten, execOpts, activeFragments, errorOpts)
	}
	if result != nil && result.Error != nil {
		return s.handleFailure(ctx, span, result.Error, meta, rewritten, execOpts, activeFragments, errorOpts)
	}

	if s.logger != nil {
		s.logger.Ctx(ctx).Debugf("sqler exec %s succeeded, records=%d", meta.FunctionName, recordCount(result))
	}
	return result, nil
}

// recordCount reports how many rows a successful Exec produced, for the
// debug log (spec §4.4 step 5). Non-slice Rows (e.g. an affected/
// lastInsertId map from a write) have no meaningful count, so this
// reports 0 rather than guessing.
func recordCount(result *ExecResult) int {
	if result == nil || result.Rows == nil {
		return 0
	}
	v := reflect.ValueOf(result.Rows)
	if v.Kind() != reflect.Slice {
		return 0
	}
	return v.Len()
}

func (s *executionService) handleFailure(ctx context.Context, span trace.Span, cause error, meta ExecMeta, sql string, execOpts ExecOptions, fragments []string, errorOpts ErrorOptions) (*ExecResult, error) {
	span.RecordError(cause)

	redacted := execOpts
	if !errorOpts.IncludeBindValues {
		redacted.Binds = redactBindValues(execOpts.Binds)
	}
	wrapped := newExecutionError(cause, meta.FunctionName, meta.FilePath, sql, redacted, fragments)

	if s.logger != nil {
		s.logger.Ctx(ctx).Error(wrapped)
	}
	if errorOpts.Handler != nil {
		errorOpts.Handler(wrapped)
	}
	if errorOpts.ReturnErrors {
		return &ExecResult{Error: wrapped}, nil
	}
	return nil, wrapped
}

// redactBindValues keeps bind keys but replaces values, matching spec
// §4.4 step 4 ("redact bind VALUES, retain keys only").
func redactBindValues(binds map[string]interface{}) map[string]interface{} {
	if binds == nil {
		return nil
	}
	redacted := make(map[string]interface{}, len(binds))
	for k := range binds {
		redacted[k] = "[redacted]"
	}
	return redacted
}

// formatSQLForLog mirrors the teacher's FormatSqlWithArgs (gdb_func.go):
// a gregex.ReplaceStringFunc pass that substitutes each placeholder
// occurrence with its bound value, purely for human-readable debug output
// — never used to build the SQL actually sent to the driver.
func formatSQLForLog(sql string, binds map[string]interface{}) string {
	out, err := gregex.ReplaceStringFunc(`:[A-Za-z_][A-Za-z0-9_]*`, sql, func(tok string) string {
		name := tok[1:]
		if v, ok := binds[name]; ok {
			return gconv.String(v)
		}
		return tok
	})
	if err != nil {
		return sql
	}
	return out
}
