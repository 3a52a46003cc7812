// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"sort"
	"sync"

	"github.com/gogf/gf/util/grand"
	"golang.org/x/sync/errgroup"
)

// ConnectionDispatchOptions overrides the manager-wide dispatch policy for
// one named connection (spec §4.7 "Dispatch rule").
type ConnectionDispatchOptions struct {
	ExecuteInSeries *bool
	ReturnErrors    *bool
}

// DispatchOptions controls how a manager-level operation fans out across
// connections.
type DispatchOptions struct {
	ExecuteInSeries bool
	ReturnErrors    *bool
	Connections     map[string]ConnectionDispatchOptions
}

// DispatchResult aggregates per-connection outcomes (spec §4.7).
type DispatchResult struct {
	ByName map[string]interface{}
	Errors []error
}

func (o DispatchOptions) series(name string) bool {
	if co, ok := o.Connections[name]; ok && co.ExecuteInSeries != nil {
		return *co.ExecuteInSeries
	}
	return o.ExecuteInSeries
}

func (o DispatchOptions) returnErrors(name string, managerDefault bool) bool {
	if co, ok := o.Connections[name]; ok && co.ReturnErrors != nil {
		return *co.ReturnErrors
	}
	if o.ReturnErrors != nil {
		return *o.ReturnErrors
	}
	return managerDefault
}

// dispatch runs op against every candidate connection named (or all, when
// names is empty), honoring the per-connection series/parallel and
// error-return overrides. Parallel tasks start concurrently and are
// awaited together (golang.org/x/sync/errgroup, the standard idiomatic
// generalization of the start-all/await-all shape); series tasks run one
// at a time in the order orderBySeriesWeight gives (registration order when
// every weight is the default), each completing before the next starts,
// regardless of whether it errored.
func (m *Manager) dispatch(ctx context.Context, names []string, opts DispatchOptions, op func(context.Context, *connectionState) (interface{}, error)) (*DispatchResult, error) {
	candidates := m.candidates(names)

	result := &DispatchResult{ByName: make(map[string]interface{}, len(candidates))}
	var resMu sync.Mutex

	run := func(cs *connectionState) error {
		val, err := op(ctx, cs)
		resMu.Lock()
		result.ByName[cs.config.Name] = val
		if err != nil {
			result.Errors = append(result.Errors, err)
		}
		resMu.Unlock()
		if err != nil && !opts.returnErrors(cs.config.Name, m.returnErrors) {
			return err
		}
		return nil
	}

	var seriesConns, parallelConns []*connectionState
	for _, cs := range candidates {
		if opts.series(cs.config.Name) {
			seriesConns = append(seriesConns, cs)
		} else {
			parallelConns = append(parallelConns, cs)
		}
	}
	seriesConns = orderBySeriesWeight(seriesConns)

	var g errgroup.Group
	for _, cs := range parallelConns {
		cs := cs
		g.Go(func() error { return run(cs) })
	}
	parallelErr := g.Wait()

	var seriesErr error
	for _, cs := range seriesConns {
		if err := run(cs); err != nil && seriesErr == nil {
			seriesErr = err
		}
	}

	if parallelErr != nil {
		return result, parallelErr
	}
	return result, seriesErr
}

// orderBySeriesWeight sorts series-dispatch candidates by descending
// SeriesWeight, preserving registration order for ties — except within a
// tied group whose shared weight is not the default (1), where the
// teacher's getConfigNodeByWeight cumulative-range random pick (gdb.go)
// decides relative order among the tied connections. When every candidate
// carries the default weight this is a no-op: registration order governs,
// matching SPEC_FULL §3's "does not change §5's ordering guarantee".
func orderBySeriesWeight(conns []*connectionState) []*connectionState {
	if len(conns) < 2 {
		return conns
	}
	buckets := make(map[int][]*connectionState)
	var weights []int
	for _, cs := range conns {
		w := cs.config.seriesWeight()
		if _, ok := buckets[w]; !ok {
			weights = append(weights, w)
		}
		buckets[w] = append(buckets[w], cs)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(weights)))

	out := make([]*connectionState, 0, len(conns))
	for _, w := range weights {
		bucket := buckets[w]
		if w == 1 || len(bucket) < 2 {
			out = append(out, bucket...)
			continue
		}
		out = append(out, weightedShuffle(bucket)...)
	}
	return out
}

// weightedShuffle repeatedly draws from the remaining pool using the
// teacher's weight-proportional cumulative-range pick (grand.N over
// [0, total*100)), generalized from "pick one replica" to "produce a full
// order" by drawing without replacement.
func weightedShuffle(conns []*connectionState) []*connectionState {
	remaining := append([]*connectionState{}, conns...)
	out := make([]*connectionState, 0, len(conns))
	for len(remaining) > 1 {
		total := 0
		for _, cs := range remaining {
			total += cs.config.seriesWeight() * 100
		}
		r := grand.N(0, total-1)
		min := 0
		for i, cs := range remaining {
			max := min + cs.config.seriesWeight()*100
			if r >= min && r < max {
				out = append(out, cs)
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
			min = max
		}
	}
	return append(out, remaining...)
}

func (m *Manager) candidates(names []string) []*connectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(names) == 0 {
		out := make([]*connectionState, 0, len(m.order))
		for _, name := range m.order {
			out = append(out, m.connections[name])
		}
		return out
	}
	out := make([]*connectionState, 0, len(names))
	for _, name := range names {
		if cs, ok := m.connections[name]; ok {
			out = append(out, cs)
		}
	}
	return out
}

// Init runs C5/C3 initialization across all connections. Already-
// initialized-and-prepared connections are skipped. A manager initialized
// twice is fatal (addConnection remains fine afterward).
func (m *Manager) Init(ctx context.Context, opts DispatchOptions) (*DispatchResult, error) {
	m.mu.Lock()
	if m.initialized.Val() {
		m.mu.Unlock()
		return nil, newConfigError("manager already initialized")
	}
	m.initialized.Set(true)
	m.mu.Unlock()
	return m.dispatch(ctx, nil, opts, func(ctx context.Context, cs *connectionState) (interface{}, error) {
		if err := cs.initialize(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// State returns a per-connection ConnectionState snapshot — the driver's
// pool occupancy plus a credential-free description (spec §4.7).
func (m *Manager) State(ctx context.Context, opts DispatchOptions, names ...string) (*DispatchResult, error) {
	return m.dispatch(ctx, names, opts, func(ctx context.Context, cs *connectionState) (interface{}, error) {
		state, err := cs.driver.State(ctx)
		if err != nil {
			return nil, err
		}
		return &ConnectionState{DriverState: state, Description: cs.describe()}, nil
	})
}

// Close drains and releases every candidate connection's driver resources.
func (m *Manager) Close(ctx context.Context, opts DispatchOptions, names ...string) (*DispatchResult, error) {
	return m.dispatch(ctx, names, opts, func(ctx context.Context, cs *connectionState) (interface{}, error) {
		count, err := cs.driver.Close(ctx)
		return count, err
	})
}

// SetCache transfers cache state to cache for the candidate connections.
// When isTransfer is true and a connection had no cache (build-time-
// captured SQL text only), the captured text is copied into the new cache
// under each function's stable cache key before the switch.
func (m *Manager) SetCache(ctx context.Context, cache Cache, isTransfer bool, names ...string) (*DispatchResult, error) {
	return m.dispatch(ctx, names, DispatchOptions{}, func(ctx context.Context, cs *connectionState) (interface{}, error) {
		if isTransfer && cs.catalog.cache == nil && cache != nil {
			cs.catalog.transferBuildTimeCache(ctx, cache)
		}
		cs.catalog.cache = cache
		return nil, nil
	})
}
