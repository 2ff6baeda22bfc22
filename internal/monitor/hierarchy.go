// Package monitor turns host changes into drainable batches for the task
// manager. Three monitors exist: TreeMonitor follows the workspace folder
// structure, BufferMonitor follows open documents and FSMonitor follows
// on-disk writes of individual files.
//
// Every monitor accumulates changes under its own mutex and hands them out
// with drain-and-clear semantics: a change is delivered exactly once, and a
// nil result means nothing changed since the previous drain.
package monitor

import (
	"sort"
)

// NodeKind classifies a tree node.
type NodeKind int

const (
	// KindSolution is the workspace root.
	KindSolution NodeKind = iota
	// KindProject is a workspace folder.
	KindProject
	// KindFile is a file inside a project.
	KindFile
)

// String returns the node kind name.
func (k NodeKind) String() string {
	switch k {
	case KindSolution:
		return "solution"
	case KindProject:
		return "project"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// TreeNode is one node of a walked workspace tree. Nodes are immutable and
// compared by pointer; a new walk produces new nodes.
type TreeNode struct {
	Path    string
	Kind    NodeKind
	Caption string
	Parent  *TreeNode
}

// Project returns the nearest enclosing project node, or nil.
func (n *TreeNode) Project() *TreeNode {
	for p := n; p != nil; p = p.Parent {
		if p.Kind == KindProject {
			return p
		}
	}
	return nil
}

// HierarchyItem is one entry of the flat list produced by a tree walk.
// Ancestors runs from the immediate parent up to the solution.
type HierarchyItem struct {
	Node      *TreeNode
	Ancestors []*TreeNode
}

func newItem(n *TreeNode) HierarchyItem {
	var anc []*TreeNode
	for p := n.Parent; p != nil; p = p.Parent {
		anc = append(anc, p)
	}
	return HierarchyItem{Node: n, Ancestors: anc}
}

// ProjectCaptions returns the sorted captions of the project ancestors.
func (h HierarchyItem) ProjectCaptions() []string {
	var captions []string
	for _, a := range h.Ancestors {
		if a.Kind == KindProject {
			captions = append(captions, a.Caption)
		}
	}
	sort.Strings(captions)
	return captions
}
