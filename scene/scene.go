package scene

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrDuplicateUID = errors.New("duplicate node uid")
	ErrEmptyUID     = errors.New("node uid is empty")
	ErrSelfChild    = errors.New("node lists itself as a child")
)

// Scene is the scene graph store: renderable nodes indexed by uid, plus
// the environment lights. It is not safe for concurrent use; the engine
// serializes all access.
type Scene struct {
	nodes   map[string]*Node
	parents map[string][]string // child uid -> uids of nodes listing it
	lights  []*Node

	seq     uint64
	ordered []*Node // insertion-ordered view of nodes, nil when stale
}

func NewScene() *Scene {
	return &Scene{
		nodes:   make(map[string]*Node),
		parents: make(map[string][]string),
	}
}

// Add inserts a node. Light nodes join the environment and are not subject
// to uid uniqueness; Mesh and Points nodes must carry a fresh uid.
func (s *Scene) Add(node *Node) error {
	if node == nil {
		return errors.New("nil node")
	}
	if node.Kind == KindLight {
		s.lights = append(s.lights, node)
		return nil
	}
	if node.UID == "" {
		return ErrEmptyUID
	}
	if _, ok := s.nodes[node.UID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateUID, node.UID)
	}
	if node.HasChild(node.UID) {
		return fmt.Errorf("%w: %q", ErrSelfChild, node.UID)
	}

	s.seq++
	node.seq = s.seq
	s.nodes[node.UID] = node
	for _, c := range node.ChildrenMeshes {
		s.parents[c] = append(s.parents[c], node.UID)
	}
	s.ordered = nil
	return nil
}

// Get returns the renderable node with the given uid.
func (s *Scene) Get(uid string) (*Node, bool) {
	n, ok := s.nodes[uid]
	return n, ok
}

// Len returns the number of renderable nodes.
func (s *Scene) Len() int {
	return len(s.nodes)
}

// Clear removes every Mesh and Points node. Lights stay.
func (s *Scene) Clear() int {
	n := len(s.nodes)
	if n == 0 {
		return 0
	}
	s.nodes = make(map[string]*Node)
	s.parents = make(map[string][]string)
	s.ordered = nil
	return n
}

// DeleteHierarchy removes the node with the given uid together with every
// node in its ChildrenMeshes, in one pass. An unknown uid is a no-op and
// returns false.
//
// Surviving nodes that listed a removed uid have it pruned from their
// ChildrenMeshes, so no parent is left referencing a missing node.
func (s *Scene) DeleteHierarchy(uid string) bool {
	root, ok := s.nodes[uid]
	if !ok {
		return false
	}

	doomed := make(map[string]struct{}, len(root.ChildrenMeshes)+1)
	doomed[uid] = struct{}{}
	for _, c := range root.ChildrenMeshes {
		doomed[c] = struct{}{}
	}

	for id := range doomed {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		delete(s.nodes, id)
		for _, c := range n.ChildrenMeshes {
			s.unlinkParent(c, id)
		}
	}

	for id := range doomed {
		for _, p := range s.parents[id] {
			if pn, ok := s.nodes[p]; ok {
				pn.ChildrenMeshes = slices.DeleteFunc(slices.Clone(pn.ChildrenMeshes), func(c string) bool {
					return c == id
				})
			}
		}
		delete(s.parents, id)
	}

	s.ordered = nil
	return true
}

func (s *Scene) unlinkParent(child, parent string) {
	ps := s.parents[child]
	ps = slices.DeleteFunc(ps, func(p string) bool { return p == parent })
	if len(ps) == 0 {
		delete(s.parents, child)
		return
	}
	s.parents[child] = ps
}

// Parents returns the uids of nodes whose ChildrenMeshes include uid.
func (s *Scene) Parents(uid string) []string {
	return slices.Clone(s.parents[uid])
}

// Renderables returns the Mesh and Points nodes in insertion order. The
// returned slice must not be modified.
func (s *Scene) Renderables() []*Node {
	if s.ordered == nil {
		s.ordered = make([]*Node, 0, len(s.nodes))
		for _, n := range s.nodes {
			s.ordered = append(s.ordered, n)
		}
		slices.SortFunc(s.ordered, func(a, b *Node) int { return cmp.Compare(a.seq, b.seq) })
	}
	return s.ordered
}

// Filter returns the renderable nodes for which keep returns true.
func (s *Scene) Filter(keep func(*Node) bool) []*Node {
	var out []*Node
	for _, n := range s.Renderables() {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// Lights returns the environment nodes.
func (s *Scene) Lights() []*Node {
	return s.lights
}

// Bounds returns the union of every renderable mesh's bounds.
func (s *Scene) Bounds() AABB {
	b := EmptyAABB()
	for _, n := range s.nodes {
		if n.Mesh != nil {
			b = b.Union(n.Mesh.Bounds)
		}
	}
	return b
}

// UIDs returns the renderable uids in insertion order.
func (s *Scene) UIDs() []string {
	nodes := s.Renderables()
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.UID
	}
	return out
}
