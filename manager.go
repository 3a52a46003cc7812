// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"sync"

	"github.com/gogf/gf/container/gtype"
	"github.com/gogf/gf/os/glog"
)

// DriverFactory constructs a Driver for one connection. Dialects are
// registered against a factory rather than a driver instance because each
// connection needs its own driver (its own pool, its own credentials).
type DriverFactory func(conn *ConnectionConfig, priv PrivateOptions) (Driver, error)

// connectionState bundles everything the manager tracks for one
// registered connection.
type connectionState struct {
	config  *ConnectionConfig
	priv    PrivateOptions
	driver  Driver
	catalog *Catalog
	execSvc *executionService
	logger  *glog.Logger

	ready        *gtype.Bool
	returnErrors *bool
}

// describe returns a credential-free connection summary for Manager.State,
// modeled on the teacher's FilteredLinkInfo (SPEC_FULL §3).
func (cs *connectionState) describe() string {
	return cs.priv.Describe(cs.config.Dialect, cs.config.Name)
}

func (cs *connectionState) initialize(ctx context.Context) error {
	if cs.ready.Val() {
		return nil
	}
	if err := cs.config.compileSubstitutes(); err != nil {
		return newConfigError("connection %q: %v", cs.config.Name, err)
	}
	if _, err := cs.driver.Init(ctx, cs.priv.Clone()); err != nil {
		return newCatalogError(cs.config.Name, "driver init failed: %v", err)
	}
	if err := cs.catalog.Scan(ctx); err != nil {
		return err
	}
	attachBeginTransaction(cs.catalog.Root(), cs.driver)
	cs.ready.Set(true)
	return nil
}

// Manager is C7: owns the set of connections, dispatches init/state/
// close/setCache across all or a filtered subset, in parallel or series,
// with per-connection error-return overrides (spec §4.7).
//
// Grounded on gdb.go's New/Instance/driverMap/instances: a validated
// global construction step, a concurrent connection registry
// (instances.GetOrSetFuncLock is the direct ancestor of addConnection's
// get-or-register dance), and a single-init guard backed by the same
// gtype.Bool type the teacher uses for Core.debug.
type Manager struct {
	mainPath     string
	dialects     map[string]DriverFactory
	defaultCache Cache
	logger       *glog.Logger
	returnErrors bool

	mu          sync.RWMutex
	order       []string
	connections map[string]*connectionState

	initialized *gtype.Bool
}

// ManagerConfig is the construction-time input (spec §4.7 "Construction").
type ManagerConfig struct {
	MainPath     string
	Dialects     map[string]DriverFactory // db.dialects
	Private      map[string]PrivateOptions // univ.db credentials, keyed by ConnectionConfig.ID
	Connections  []*ConnectionConfig
	Cache        Cache // default cache for connections that don't specify their own
	Logger       *glog.Logger
	ReturnErrors bool
}

// NewManager validates configuration and builds one catalog+execution pair
// per connection (unscanned — call Init to scan and open drivers).
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.Dialects) == 0 && len(registeredDialects()) == 0 {
		return nil, newConfigError("db.dialects must be a non-empty map, or a dialect must be registered via RegisterDialect")
	}
	if len(cfg.Private) == 0 {
		return nil, newConfigError("univ.db must be a non-empty credentials map")
	}
	if len(cfg.Connections) == 0 {
		return nil, newConfigError("at least one connection must be configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.New()
	}

	m := &Manager{
		mainPath:     cfg.MainPath,
		dialects:     cfg.Dialects,
		defaultCache: cfg.Cache,
		logger:       logger,
		returnErrors: cfg.ReturnErrors,
		connections:  make(map[string]*connectionState),
		initialized:  gtype.NewBool(),
	}
	for _, conn := range cfg.Connections {
		if err := m.register(conn, cfg.Private, nil, nil); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// register validates and adds one connection, without initializing it.
func (m *Manager) register(conn *ConnectionConfig, private map[string]PrivateOptions, cache Cache, logger *glog.Logger) error {
	if conn.Name == "" {
		return newConfigError("connection must have a non-empty Name")
	}
	if _, exists := m.connections[conn.Name]; exists {
		return newConfigError("duplicate connection name %q", conn.Name)
	}
	priv, ok := private[conn.ID]
	if !ok {
		return newConfigError("no credentials found for connection %q (id %q)", conn.Name, conn.ID)
	}
	factory, ok := m.dialects[conn.Dialect]
	if !ok {
		// Fall back to the package-level registry (registry.go), the
		// teacher's own driverMap/Register pattern, for dialects a caller
		// registered once at init time rather than passing explicitly.
		factory, ok = registeredDialects()[conn.Dialect]
	}
	if !ok {
		return newConfigError("unknown dialect %q for connection %q", conn.Dialect, conn.Name)
	}
	driver, err := factory(conn, priv.Clone())
	if err != nil {
		return newConfigError("building driver for connection %q: %v", conn.Name, err)
	}

	connLogger := logger
	if connLogger == nil {
		connLogger = m.logger
	}
	connCache := cache
	if connCache == nil {
		connCache = m.defaultCache
	}

	execSvc := newExecutionService(conn, driver, connLogger)
	catalog := NewCatalog(conn, m.mainPath, connCache, connLogger, execSvc)

	cs := &connectionState{
		config:  conn,
		priv:    priv,
		driver:  driver,
		catalog: catalog,
		execSvc: execSvc,
		logger:  connLogger,
		ready:   gtype.NewBool(),
	}
	m.connections[conn.Name] = cs
	m.order = append(m.order, conn.Name)
	return nil
}

// AddConnection registers and initializes one new connection at runtime
// (spec §4.7). Name collisions are fatal.
func (m *Manager) AddConnection(ctx context.Context, conn *ConnectionConfig, priv PrivateOptions, cache Cache, logger *glog.Logger, returnErrors bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.register(conn, map[string]PrivateOptions{conn.ID: priv}, cache, logger); err != nil {
		return err
	}
	cs := m.connections[conn.Name]
	cs.returnErrors = &returnErrors
	if err := cs.initialize(ctx); err != nil {
		if returnErrors {
			return nil
		}
		return err
	}
	return nil
}

// Connection returns the public handle for a registered connection: its
// namespace root (for dotted lookups and beginTransaction) plus accessors.
func (m *Manager) Connection(name string) (*namespaceNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.connections[name]
	if !ok {
		return nil, false
	}
	return cs.catalog.Root(), true
}

// Lookup resolves a dotted prepared-function path against a connection's
// namespace, e.g. Lookup("finance", "read.annual.report").
func (m *Manager) Lookup(connName, dottedPath string) (*PreparedFunction, bool) {
	root, ok := m.Connection(connName)
	if !ok {
		return nil, false
	}
	node, ok := root.Lookup(splitDotted(dottedPath))
	if !ok || node.fn == nil {
		return nil, false
	}
	return node.fn, true
}

func splitDotted(path string) []string {
	if path == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, sanitizeSegment(path[start:i]))
			start = i + 1
		}
	}
	segs = append(segs, sanitizeSegment(path[start:]))
	return segs
}
