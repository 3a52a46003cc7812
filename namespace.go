// Copyright GoFrame Author(https://goframe.org). All Rights Reserved.
//
// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT was not distributed with this file,
// You can obtain one at https://github.com/gogf/gf.

package sqler

import (
	"context"

	"github.com/gogf/gf/container/gmap"
)

// reservedBeginTransaction is the one segment name that is fatal at every
// level of the namespace tree (spec §3 "Namespace tree").
const reservedBeginTransaction = "beginTransaction"

// namespaceNode is one node of the per-connection namespace tree rooted at
// db[connName]. Internal nodes hold named children; leaf nodes hold a
// prepared function. The concurrent child map is the same container type
// the teacher uses for its own global registries (gdb.go's "instances
// gmap.NewStrAnyMap(true)"), generalized here from a flat registry to a
// recursive tree, since the teacher has no direct filesystem-catalog
// analogue to ground the tree shape on (see DESIGN.md).
type namespaceNode struct {
	children *gmap.StrAnyMap // string -> *namespaceNode
	fn       *PreparedFunction
	beginTx  func(ctx context.Context, opts interface{}) (*Transaction, error)
}

func newNamespaceNode() *namespaceNode {
	return &namespaceNode{children: gmap.NewStrAnyMap(true)}
}

// child returns (and lazily creates) the named child node, rejecting the
// reserved beginTransaction segment name.
func (n *namespaceNode) child(name string) (*namespaceNode, error) {
	if name == reservedBeginTransaction {
		return nil, newCatalogError("", "reserved name %q may not be used as a namespace segment", reservedBeginTransaction)
	}
	v := n.children.GetOrSetFuncLock(name, func() interface{} {
		return newNamespaceNode()
	})
	return v.(*namespaceNode), nil
}

// detach removes the named child, used when a rescan finds a prepared
// function's backing file no longer exists (spec §4.5 "subsequent init").
func (n *namespaceNode) detach(name string) {
	n.children.Remove(name)
}

// Lookup resolves a path of segments ([]string{"a", "b", "c"}) against the
// tree, returning the node it names; a leaf node carries its prepared
// function in fn.
func (n *namespaceNode) Lookup(path []string) (*namespaceNode, bool) {
	cur := n
	for _, seg := range path {
		v := cur.children.Get(seg)
		if v == nil {
			return nil, false
		}
		cur = v.(*namespaceNode)
	}
	return cur, true
}
