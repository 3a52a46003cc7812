// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import "time"

// CRUD is an inferred or explicit operation type for a prepared function.
type CRUD string

// The four CRUD types the catalog builder infers from filename prefixes.
const (
	CREATE CRUD = "CREATE"
	READ   CRUD = "READ"
	UPDATE CRUD = "UPDATE"
	DELETE CRUD = "DELETE"
)

// OPERATION_TYPES is the set of CRUD tokens recognized by the catalog
// builder and by explicit execOpts.Type overrides.
var OPERATION_TYPES = map[CRUD]bool{
	CREATE: true,
	READ:   true,
	UPDATE: true,
	DELETE: true,
}

// ExecOptions are the recognized per-call options accepted by a prepared
// function invocation (spec §3 "Execution options (per call)").
type ExecOptions struct {
	Name             string                 // diagnostic label
	Type             CRUD                   // CRUD override
	Binds            map[string]interface{} // per-call bind values
	AutoCommit       *bool                  // defaults to true when nil
	TransactionID    string
	PrepareStatement bool
	DriverOptions    interface{} // opaque pass-through (context/deadline threaded here)
	DateFormatter    interface{} // true, or func(time.Time) string
}

// autoCommit resolves the effective autoCommit value (default true).
func (o ExecOptions) autoCommit() bool {
	if o.AutoCommit == nil {
		return true
	}
	return *o.AutoCommit
}

// ExecResult is the uniform shape returned by a prepared function
// invocation and by the Driver adapter's Exec call.
type ExecResult struct {
	Rows      interface{}
	Error     error
	Unprepare func() error
}

// ErrorOptions controls how execution failures are surfaced (spec §7).
type ErrorOptions struct {
	// ReturnErrors, when true, makes failures come back as ExecResult.Error
	// instead of being returned as a Go error from Invoke.
	ReturnErrors bool
	// IncludeBindValues keeps bind values (not just keys) in the
	// diagnostic envelope attached to execution errors.
	IncludeBindValues bool
	// Handler, if set, is called with the wrapped error on every
	// execution failure regardless of ReturnErrors.
	Handler func(error)
}

// CacheEntry is what a Cache.Get returns on a hit (spec §4.2).
type CacheEntry struct {
	Item   string
	Stored time.Time
	TTL    time.Duration
}
