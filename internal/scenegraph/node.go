// Package scenegraph models the live scene handle: a tree of named nodes whose pose and
// visibility can be read and written, plus the lookup of the node that renders a given
// collectible.
package scenegraph

import (
	"context"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a node's local transform. Rotation holds Euler angles in radians.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
	Scale    mgl64.Vec3
}

// DefaultPose is the identity transform.
func DefaultPose() Pose {
	return Pose{Scale: mgl64.Vec3{1, 1, 1}}
}

// Node is a live scene-graph node. Implementations must be safe for concurrent use.
type Node interface {
	Name() string
	Children() []Node
	Pose() Pose
	SetPose(Pose)
	Visible() bool
	SetVisible(bool)
}

// Scene is a handle on a live scene graph.
type Scene interface {
	Root() Node
	// Ready is closed once the scene has finished its initial load.
	Ready() <-chan struct{}
}

// Indexed is implemented by scenes that record which node renders which object when the
// node is created.
type Indexed interface {
	Lookup(objectID string) (Node, bool)
}

// WaitReady blocks until s is ready or ctx is done.
func WaitReady(ctx context.Context, s Scene) error {
	select {
	case <-s.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MemoryNode is an in-process Node.
type MemoryNode struct {
	name string

	mu       sync.RWMutex
	pose     Pose
	visible  bool
	children []Node
}

// NewMemoryNode returns a visible node with the identity pose.
func NewMemoryNode(name string) *MemoryNode {
	return &MemoryNode{name: name, pose: DefaultPose(), visible: true}
}

func (n *MemoryNode) Name() string { return n.name }

func (n *MemoryNode) Children() []Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *MemoryNode) AddChild(child Node) {
	n.mu.Lock()
	n.children = append(n.children, child)
	n.mu.Unlock()
}

// RemoveChild detaches child and reports whether it was present.
func (n *MemoryNode) RemoveChild(child Node) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return true
		}
	}
	return false
}

func (n *MemoryNode) Pose() Pose {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pose
}

func (n *MemoryNode) SetPose(p Pose) {
	n.mu.Lock()
	n.pose = p
	n.mu.Unlock()
}

func (n *MemoryNode) Visible() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.visible
}

func (n *MemoryNode) SetVisible(v bool) {
	n.mu.Lock()
	n.visible = v
	n.mu.Unlock()
}
