package scene

import "slices"

// Kind classifies a node in the scene graph.
type Kind int

const (
	KindMesh Kind = iota
	KindPoints
	KindLight
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "Mesh"
	case KindPoints:
		return "Points"
	case KindLight:
		return "Light"
	}
	return "Unknown"
}

// Renderable reports whether nodes of this kind carry model geometry.
// Lights are environment nodes and never renderable in this sense.
func (k Kind) Renderable() bool {
	return k == KindMesh || k == KindPoints
}

// Node is one renderable primitive (or environment light) in the scene.
type Node struct {
	// UID identifies the node for picking and deletion. It is assigned by the
	// loader and is unrelated to any GPU handle.
	UID  string
	Kind Kind

	Name       string
	ObjectType string
	Attributes map[string]string

	// ChildrenMeshes lists the uids of the node's subtree.
	ChildrenMeshes []string

	Mesh  *Mesh
	Light *Light

	// GeometryRef is set and owned by the renderer backend.
	GeometryRef any

	seq uint64
}

// NewMeshNode creates a Mesh node.
func NewMeshNode(uid string, mesh *Mesh, children ...string) *Node {
	return &Node{UID: uid, Kind: KindMesh, Name: uid, Mesh: mesh, ChildrenMeshes: children}
}

// NewPointsNode creates a Points node.
func NewPointsNode(uid string, mesh *Mesh, children ...string) *Node {
	if mesh != nil {
		mesh.DrawMode = DrawPoints
	}
	return &Node{UID: uid, Kind: KindPoints, Name: uid, Mesh: mesh, ChildrenMeshes: children}
}

// NewLightNode wraps a light so it can live in the scene as an
// environment node.
func NewLightNode(name string, light *Light) *Node {
	return &Node{UID: name, Kind: KindLight, Name: name, Light: light}
}

// HasChild reports whether uid is listed in the node's subtree.
func (n *Node) HasChild(uid string) bool {
	return slices.Contains(n.ChildrenMeshes, uid)
}
