// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"

	"github.com/google/uuid"
)

// attachBeginTransaction installs the root-level beginTransaction
// forwarding callable required by spec §4.5 ("Attach beginTransaction(opts)
// to the root node of the connection's namespace, which forwards to the
// driver"). When the driver returns a Transaction without an ID, one is
// stamped here in GUID form (spec §3: "the ID is a generated GUID-format
// string") — google/uuid is used by two other repos in the retrieval pack
// (ariga-entcache, hazyhaar-GoClode) for exactly this kind of opaque handle
// ID, so it is reused here rather than hand-rolling an ID scheme.
func attachBeginTransaction(root *namespaceNode, driver Driver) {
	root.beginTx = func(ctx context.Context, opts interface{}) (*Transaction, error) {
		tx, err := driver.BeginTransaction(ctx, uuid.NewString(), opts)
		if err != nil {
			return nil, err
		}
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		return tx, nil
	}
}

// BeginTransaction looks up and calls the root's beginTransaction callable.
// It is exposed on namespaceNode's public wrapper, Connection (manager.go).
func (n *namespaceNode) BeginTransaction(ctx context.Context, opts interface{}) (*Transaction, error) {
	if n.beginTx == nil {
		return nil, newConfigError("beginTransaction is not available on this namespace node")
	}
	return n.beginTx(ctx, opts)
}
