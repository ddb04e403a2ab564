package scenegraph

import (
	"log"
	"strings"
	"sync"
)

// SuffixLength is how many trailing id characters a node name carries.
const SuffixLength = 8

// IDSuffix returns the trailing SuffixLength characters of objectID.
func IDSuffix(objectID string) string {
	if len(objectID) <= SuffixLength {
		return objectID
	}
	return objectID[len(objectID)-SuffixLength:]
}

// NodeName is the name given to the node that renders objectID.
func NodeName(objectID string) string {
	return "item-" + IDSuffix(objectID)
}

// Index maps object ids to the nodes created for them.
type Index struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

func NewIndex() *Index {
	return &Index{nodes: make(map[string]Node)}
}

// Register records node as the renderer of objectID, replacing any earlier node.
func (ix *Index) Register(objectID string, node Node) {
	ix.mu.Lock()
	ix.nodes[objectID] = node
	ix.mu.Unlock()
}

func (ix *Index) Unregister(objectID string) {
	ix.mu.Lock()
	delete(ix.nodes, objectID)
	ix.mu.Unlock()
}

func (ix *Index) Lookup(objectID string) (Node, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n, ok := ix.nodes[objectID]
	return n, ok
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.nodes)
}

// Find locates the node rendering objectID. Scenes implementing Indexed are asked first;
// otherwise, or on an index miss, the graph is walked depth-first and the first node whose
// name ends with the id suffix wins. A miss is normal: the object is simply not instantiated.
func Find(s Scene, objectID string) (Node, bool) {
	if s == nil || objectID == "" {
		return nil, false
	}
	if ix, ok := s.(Indexed); ok {
		if n, ok := ix.Lookup(objectID); ok {
			return n, true
		}
	}
	root := s.Root()
	if root == nil {
		return nil, false
	}
	return FindBySuffix(root, objectID)
}

// FindBySuffix walks root in pre-order and returns the first node whose name ends with the
// id suffix. Two nodes sharing a suffix cannot be told apart; the collision is logged and the
// first node is returned.
func FindBySuffix(root Node, objectID string) (Node, bool) {
	if root == nil || objectID == "" {
		return nil, false
	}
	suffix := IDSuffix(objectID)
	var first Node
	collisions := 0
	walk(root, func(n Node) {
		if !strings.HasSuffix(n.Name(), suffix) {
			return
		}
		if first == nil {
			first = n
			return
		}
		collisions++
	})
	if collisions > 0 {
		log.Printf("Scene graph suffix collision: object=%s suffix=%s extra_nodes=%d, using %s",
			objectID, suffix, collisions, first.Name())
	}
	return first, first != nil
}

func walk(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.Children() {
		walk(c, fn)
	}
}
