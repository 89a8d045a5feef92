// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package tree

import "fmt"

// Walk traverses a command tree in depth-first order, left before right: It
// starts by calling f(node). If f returns true, Walk invokes f recursively
// for each of the non-nil children of node, followed by f(nil).
//
// Walking a nil node does nothing.
func Walk(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}

	switch node := node.(type) {
	case *Simple:
	case *Pipe:
		walkPair(node.Left, node.Right, f)
	case *And:
		walkPair(node.Left, node.Right, f)
	case *Or:
		walkPair(node.Left, node.Right, f)
	case *Seq:
		walkPair(node.Left, node.Right, f)
	case *Bg:
		walkPair(node.Left, node.Right, f)
	case *Subshell:
		Walk(node.Child, f)
	default:
		panic(fmt.Sprintf("tree.Walk: unexpected node type %T", node))
	}

	f(nil)
}

func walkPair(left, right Node, f func(Node) bool) {
	Walk(left, f)
	Walk(right, f)
}
