package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"city-viewer/core"
	"city-viewer/engine"
	"city-viewer/scene"
)

var identity = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// GLTFLoader loads <Dir>/<id>.glb or <Dir>/<id>.gltf.
type GLTFLoader struct {
	Dir    string
	Logger *zap.Logger
}

func NewGLTFLoader(dir string, logger *zap.Logger) *GLTFLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GLTFLoader{Dir: dir, Logger: logger.Named("gltf")}
}

// Handles reports whether a glTF file exists for modelID.
func (l *GLTFLoader) Handles(modelID string) bool {
	_, err := l.path(modelID)
	return err == nil
}

func (l *GLTFLoader) path(modelID string) (string, error) {
	for _, ext := range []string{".glb", ".gltf"} {
		p, err := modelPath(l.Dir, modelID, ext)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("gltf model %q: %w", modelID, fs.ErrNotExist)
}

// LoadCityModel adds one node per glTF node that carries a mesh, with node
// transforms baked into the positions.
func (l *GLTFLoader) LoadCityModel(ctx context.Context, sink engine.NodeSink, modelID string) error {
	path, err := l.path(modelID)
	if err != nil {
		return err
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return fmt.Errorf("gltf open %q: %w", path, err)
	}

	nodes, err := DecodeGLTF(doc)
	if err != nil {
		return fmt.Errorf("gltf %q: %w", modelID, err)
	}
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Add(n); err != nil {
			return fmt.Errorf("gltf %q: add %q: %w", modelID, n.UID, err)
		}
	}
	l.Logger.Debug("decoded gltf model", zap.String("model", modelID), zap.Int("objects", len(nodes)))
	return nil
}

// DecodeGLTF converts the default scene of doc into scene nodes in
// depth-first order.
func DecodeGLTF(doc *gltf.Document) ([]*scene.Node, error) {
	d := gltfDecoder{doc: doc, uids: make([]string, len(doc.Nodes)), used: make(map[string]bool)}
	// Explicit names are claimed first so a generated one never takes a
	// name a later node carries.
	for i, gn := range doc.Nodes {
		if gn.Name != "" && !d.used[gn.Name] {
			d.uids[i] = gn.Name
			d.used[gn.Name] = true
		}
	}
	for i := range doc.Nodes {
		if d.uids[i] == "" {
			d.uids[i] = d.generatedName(i)
		}
	}

	for _, root := range roots(doc) {
		if err := d.visit(root, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	return d.out, nil
}

type gltfDecoder struct {
	doc  *gltf.Document
	uids []string
	used map[string]bool
	out  []*scene.Node
}

func (d *gltfDecoder) generatedName(i int) string {
	name := fmt.Sprintf("node_%d", i)
	for n := 1; d.used[name]; n++ {
		name = fmt.Sprintf("node_%d_%d", i, n)
	}
	d.used[name] = true
	return name
}

func (d *gltfDecoder) visit(i int, parent mgl32.Mat4, depth int) error {
	if i < 0 || i >= len(d.doc.Nodes) {
		return fmt.Errorf("node index %d out of range", i)
	}
	if depth > len(d.doc.Nodes) {
		return errors.New("node hierarchy has a cycle")
	}
	gn := d.doc.Nodes[i]
	world := parent.Mul4(localMatrix(gn))

	if gn.Mesh != nil && *gn.Mesh < len(d.doc.Meshes) {
		mesh, err := d.mesh(d.doc.Meshes[*gn.Mesh], world)
		if err != nil {
			return fmt.Errorf("node %q: %w", d.uids[i], err)
		}
		n := scene.NewMeshNode(d.uids[i], mesh, d.meshDescendants(gn)...)
		n.Name = d.uids[i]
		n.ObjectType = "GLTFNode"
		d.out = append(d.out, n)
	}
	for _, c := range gn.Children {
		if err := d.visit(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// meshDescendants lists the uids of every descendant node with a mesh.
func (d *gltfDecoder) meshDescendants(gn *gltf.Node) []string {
	var out []string
	seen := make(map[int]bool)
	stack := append([]int(nil), gn.Children...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c < 0 || c >= len(d.doc.Nodes) || seen[c] {
			continue
		}
		seen[c] = true
		if d.doc.Nodes[c].Mesh != nil {
			out = append(out, d.uids[c])
		}
		stack = append(stack, d.doc.Nodes[c].Children...)
	}
	return out
}

// mesh merges every triangle primitive of gm into one mesh in world space.
func (d *gltfDecoder) mesh(gm *gltf.Mesh, world mgl32.Mat4) (*scene.Mesh, error) {
	var positions []mgl32.Vec3
	var indices []uint32
	color := core.ColorGrey

	for pi, prim := range gm.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := prim.Attributes["POSITION"]
		if !ok {
			return nil, fmt.Errorf("primitive %d: no POSITION attribute", pi)
		}
		pos, err := modeler.ReadPosition(d.doc, d.doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("primitive %d positions: %w", pi, err)
		}

		base := uint32(len(positions))
		for _, p := range pos {
			positions = append(positions, mgl32.TransformCoordinate(mgl32.Vec3{p[0], p[1], p[2]}, world))
		}

		if prim.Indices != nil {
			idx, err := modeler.ReadIndices(d.doc, d.doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
			for _, i := range idx {
				indices = append(indices, base+i)
			}
		} else {
			for i := range pos {
				indices = append(indices, base+uint32(i))
			}
		}

		if pi == 0 && prim.Material != nil && *prim.Material < len(d.doc.Materials) {
			if pbr := d.doc.Materials[*prim.Material].PBRMetallicRoughness; pbr != nil {
				cf := pbr.BaseColorFactorOrDefault()
				color = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			}
		}
	}
	if len(positions) == 0 {
		return nil, nil
	}
	return scene.NewMesh(positions, indices, color), nil
}

// localMatrix returns the node's matrix, or T*R*S from its components.
func localMatrix(gn *gltf.Node) mgl32.Mat4 {
	if gn.Matrix != identity && gn.Matrix != [16]float64{} {
		var m mgl32.Mat4
		for i, v := range gn.Matrix {
			m[i] = float32(v)
		}
		return m
	}
	t := gn.TranslationOrDefault()
	r := gn.RotationOrDefault() // [x, y, z, w]
	s := gn.ScaleOrDefault()

	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(q.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}

// roots returns the nodes of the default scene, or every parentless node
// when the file names no scene.
func roots(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c >= 0 && c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var out []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			out = append(out, i)
		}
	}
	return out
}
