// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"fmt"

	"github.com/gogf/gf/errors/gerror"
)

// ConfigError reports a fatal construction-time configuration problem:
// missing dialects, missing credentials, duplicate connection names.
// Always fatal, never returnable (spec §7).
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func newConfigError(format string, args ...interface{}) error {
	return gerror.Wrap(&ConfigError{Message: fmt.Sprintf(format, args...)}, "configuration error")
}

// CatalogError reports a fatal per-connection catalog problem: a reserved
// namespace collision, or an I/O error while scanning the SQL tree.
type CatalogError struct {
	Connection string
	Message    string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog error on connection %q: %s", e.Connection, e.Message)
}

func newCatalogError(conn, format string, args ...interface{}) error {
	return gerror.Wrap(&CatalogError{Connection: conn, Message: fmt.Sprintf(format, args...)}, "catalog build failed")
}

// ValidationError reports a pre-I/O invariant violation: missing/invalid
// CRUD type, the autoCommit/transaction invariant, an unbound positional
// parameter. Always raised before any driver call, always attached to the
// offending file.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func newValidationError(file, format string, args ...interface{}) error {
	return gerror.Wrap(&ValidationError{File: file, Message: fmt.Sprintf(format, args...)}, "invalid invocation")
}

// ExecutionError wraps a driver failure with the diagnostic envelope
// described in spec §6 "Error envelope" / §7 "Execution".
type ExecutionError struct {
	Cause    error
	Name     string
	File     string
	SQL      string
	Options  ExecOptions
	Fragments []string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed for %q (%s): %v", e.Name, e.File, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func newExecutionError(cause error, name, file, sql string, opts ExecOptions, fragments []string) *ExecutionError {
	return &ExecutionError{
		Cause:     cause,
		Name:      name,
		File:      file,
		SQL:       sql,
		Options:   opts,
		Fragments: fragments,
	}
}
