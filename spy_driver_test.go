// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"sync"
	"time"
)

// spyDriver is a bare-bones Driver recorder used throughout the test
// suite (spec §8: "verified by a spy adapter that records all calls").
// No mocking library is used, matching the teacher's own test style
// (gdb's tests talk to a real sqlite/mysql instance rather than a mock
// framework) — a hand-written recorder is the closest idiomatic fit for
// a package with no live database in CI.
type spyDriver struct {
	mu sync.Mutex

	ExecCalls  []spyExecCall
	CloseSleep time.Duration
	CloseCalls int

	ExecFunc func(ctx context.Context, sql string, execOpts ExecOptions, fragments []string, meta ExecMeta) (*ExecResult, error)
}

type spyExecCall struct {
	SQL    string
	Opts   ExecOptions
	Meta   ExecMeta
	Frags  []string
}

func (s *spyDriver) Init(ctx context.Context, opts PrivateOptions) (interface{}, error) {
	return s, nil
}

func (s *spyDriver) BeginTransaction(ctx context.Context, id string, opts interface{}) (*Transaction, error) {
	return &Transaction{
		ID:       id,
		Commit:   func(context.Context) error { return nil },
		Rollback: func(context.Context) error { return nil },
	}, nil
}

func (s *spyDriver) Exec(ctx context.Context, sql string, execOpts ExecOptions, fragments []string, meta ExecMeta) (*ExecResult, error) {
	s.mu.Lock()
	s.ExecCalls = append(s.ExecCalls, spyExecCall{SQL: sql, Opts: execOpts, Meta: meta, Frags: fragments})
	s.mu.Unlock()
	if s.ExecFunc != nil {
		return s.ExecFunc(ctx, sql, execOpts, fragments, meta)
	}
	return &ExecResult{Rows: []string{"ok"}}, nil
}

func (s *spyDriver) Close(ctx context.Context) (int, error) {
	if s.CloseSleep > 0 {
		time.Sleep(s.CloseSleep)
	}
	s.mu.Lock()
	s.CloseCalls++
	s.mu.Unlock()
	return 0, nil
}

func (s *spyDriver) State(ctx context.Context) (*DriverState, error) {
	return &DriverState{}, nil
}

func (s *spyDriver) execCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ExecCalls)
}

func newSpyDriverFactory(d *spyDriver) DriverFactory {
	return func(conn *ConnectionConfig, priv PrivateOptions) (Driver, error) {
		return d, nil
	}
}
