package scenegraph

import "sync"

// Graph is an in-process Scene. Object nodes created through AddObjectNode are indexed by
// object id, so lookups do not depend on the name suffix.
type Graph struct {
	root  *MemoryNode
	index *Index

	// mu makes lookup, create and register one step for object nodes.
	mu sync.Mutex

	readyOnce sync.Once
	ready     chan struct{}
}

func NewGraph() *Graph {
	return &Graph{
		root:  NewMemoryNode("scene"),
		index: NewIndex(),
		ready: make(chan struct{}),
	}
}

func (g *Graph) Root() Node { return g.root }

func (g *Graph) Ready() <-chan struct{} { return g.ready }

// MarkReady closes the readiness channel. Later calls are no-ops.
func (g *Graph) MarkReady() {
	g.readyOnce.Do(func() { close(g.ready) })
}

// IsReady reports whether MarkReady has been called.
func (g *Graph) IsReady() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

func (g *Graph) Lookup(objectID string) (Node, bool) {
	return g.index.Lookup(objectID)
}

// AddObjectNode creates the node for objectID under parent (the root when nil), names it
// after the id suffix and indexes it. An existing node for the id is returned unchanged.
func (g *Graph) AddObjectNode(parent *MemoryNode, objectID string) *MemoryNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n, ok := g.index.Lookup(objectID); ok {
		if mn, ok := n.(*MemoryNode); ok {
			return mn
		}
	}
	if parent == nil {
		parent = g.root
	}
	node := NewMemoryNode(NodeName(objectID))
	parent.AddChild(node)
	g.index.Register(objectID, node)
	return node
}

// RemoveObjectNode detaches the node for objectID from the root and drops it from the index.
func (g *Graph) RemoveObjectNode(objectID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.index.Lookup(objectID)
	if !ok {
		return false
	}
	g.index.Unregister(objectID)
	return g.root.RemoveChild(n)
}

// ObjectCount returns the number of indexed object nodes.
func (g *Graph) ObjectCount() int {
	return g.index.Len()
}
