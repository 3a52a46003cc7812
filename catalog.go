// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/gogf/gf/container/gmap"
	"github.com/gogf/gf/os/glog"
)

// FunctionMeta is the per-file metadata the catalog builder produces for
// every discovered .sql file (spec §3 "Prepared-function metadata").
type FunctionMeta struct {
	Name string // dotted form derived from path components, minus ".sql"
	Path string // absolute file path
	Ext  string // last basename token, or the literal file extension

	CRUD    CRUD // inferred from the first basename token; "" if not recognized
	hasCRUD bool

	CacheKey string

	parent   *namespaceNode
	propName string // sanitized segment name under parent, for detach on rescan

	mu      sync.RWMutex
	sql     string
	sqlRead bool
}

// GenerateCacheKey is the pure, total function from spec §4.7: a
// deterministic string unique within a manager, stable across restarts.
func GenerateCacheKey(dialect, connName, name, ext string) string {
	return fmt.Sprintf("sqler:%s:%s:db:%s:%s", dialect, connName, name, ext)
}

var nonAlnumRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

// sanitizeSegment collapses runs of non-alphanumeric characters to a
// single underscore for use as a namespace tree key (spec §4.5).
func sanitizeSegment(s string) string {
	return nonAlnumRun.ReplaceAllString(s, "_")
}

var crudPrefixes = map[string]CRUD{
	"CREATE": CREATE,
	"READ":   READ,
	"UPDATE": UPDATE,
	"DELETE": DELETE,
}

// Catalog is C5: one per connection. It owns the namespace tree rooted at
// root and the cache-key-indexed metadata registry, which survives
// rescans the same way the teacher's global driverMap/instances registries
// survive repeated lookups (gdb.go), generalized from a flat map to the
// catalog's own funcsByKey index.
type Catalog struct {
	conn     *ConnectionConfig
	mainPath string
	root     *namespaceNode
	cache    Cache
	logger   *glog.Logger
	execSvc  *executionService

	mu         sync.Mutex
	funcsByKey *gmap.StrAnyMap // cache key -> *FunctionMeta
}

// NewCatalog constructs an (unscanned) Catalog for one connection.
func NewCatalog(conn *ConnectionConfig, mainPath string, cache Cache, logger *glog.Logger, execSvc *executionService) *Catalog {
	return &Catalog{
		conn:       conn,
		mainPath:   mainPath,
		root:       newNamespaceNode(),
		cache:      cache,
		logger:     logger,
		execSvc:    execSvc,
		funcsByKey: gmap.NewStrAnyMap(true),
	}
}

// Root returns the namespace tree root for this connection.
func (c *Catalog) Root() *namespaceNode { return c.root }

// transferBuildTimeCache copies every function's already-captured,
// build-time SQL text into dest under its stable cache key (spec §4.7
// "setCache", isTransfer case).
func (c *Catalog) transferBuildTimeCache(ctx context.Context, dest Cache) {
	c.funcsByKey.Iterator(func(key string, v interface{}) bool {
		meta := v.(*FunctionMeta)
		meta.mu.RLock()
		text, read := meta.sql, meta.sqlRead
		meta.mu.RUnlock()
		if read {
			setAndLog(ctx, dest, c.logger, key, text, 0)
		}
		return true
	})
}

// sqlRoot returns the absolute directory this catalog scans.
func (c *Catalog) sqlRoot() string {
	return filepath.Join(c.mainPath, c.conn.dir())
}

// Scan walks the connection's SQL directory and (re)builds the namespace
// tree (spec §4.5). On first call it populates the tree from scratch; on
// subsequent calls it preserves identity (same *FunctionMeta, same cache
// key) for files still present and detaches prepared functions whose
// backing file has disappeared.
func (c *Catalog) Scan(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.sqlRoot()
	seenKeys := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".sql") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		dirSegments := splitRelDir(rel)
		base := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		tokens := strings.Split(base, ".")

		ext := "sql"
		if len(tokens) > 1 {
			ext = tokens[len(tokens)-1]
		}

		nameSegments := append(append([]string{}, dirSegments...), tokens...)
		name := strings.Join(nameSegments, ".")

		crud, hasCRUD := crudPrefixes[strings.ToUpper(tokens[0])]

		key := GenerateCacheKey(c.conn.Dialect, c.conn.Name, name, ext)
		seenKeys[key] = true

		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		if existingV := c.funcsByKey.Get(key); existingV != nil {
			existing := existingV.(*FunctionMeta)
			existing.Path = absPath
			return nil
		}

		meta, err := c.attach(dirSegments, tokens, name, absPath, ext, crud, hasCRUD, key)
		if err != nil {
			return err
		}
		c.funcsByKey.Set(key, meta)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return newCatalogError(c.conn.Name, "SQL root %q does not exist", root)
		}
		return newCatalogError(c.conn.Name, "scan failed: %v", err)
	}

	// Detach prepared functions whose backing file disappeared.
	var stale []string
	c.funcsByKey.Iterator(func(key string, v interface{}) bool {
		if !seenKeys[key] {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		meta := c.funcsByKey.Get(key).(*FunctionMeta)
		if meta.parent != nil {
			meta.parent.detach(meta.propName)
		}
		c.funcsByKey.Remove(key)
	}
	return nil
}

func splitRelDir(rel string) []string {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." || dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}

// attach creates the namespace intermediate nodes for dirSegments, then
// the basename tokens (all but the last nested further, the last becoming
// the leaf), and installs a PreparedFunction at the leaf. When the catalog
// has no cache, the file's SQL text is read here, once, at build time.
func (c *Catalog) attach(dirSegments, baseTokens []string, name, path, ext string, crud CRUD, hasCRUD bool, key string) (*FunctionMeta, error) {
	node := c.root
	for _, seg := range dirSegments {
		var err error
		node, err = node.child(sanitizeSegment(seg))
		if err != nil {
			return nil, err
		}
	}
	for _, seg := range baseTokens[:len(baseTokens)-1] {
		var err error
		node, err = node.child(sanitizeSegment(seg))
		if err != nil {
			return nil, err
		}
	}
	leafName := sanitizeSegment(baseTokens[len(baseTokens)-1])
	if leafName == reservedBeginTransaction {
		return nil, newCatalogError(c.conn.Name, "reserved name %q collides at %s", reservedBeginTransaction, name)
	}

	meta := &FunctionMeta{
		Name:     name,
		Path:     path,
		Ext:      ext,
		CRUD:     crud,
		hasCRUD:  hasCRUD,
		CacheKey: key,
		parent:   node,
		propName: leafName,
	}
	fn := &PreparedFunction{meta: meta, catalog: c}
	if c.cache == nil {
		text, err := fn.readFromDisk()
		if err != nil {
			return nil, err
		}
		meta.sql, meta.sqlRead = text, true
	}
	leaf, err := node.child(leafName)
	if err != nil {
		return nil, err
	}
	leaf.fn = fn
	return meta, nil
}
