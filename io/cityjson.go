package io

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"city-viewer/core"
	"city-viewer/engine"
	"city-viewer/scene"
)

// cityJSON is the subset of a CityJSON document the viewer draws.
type cityJSON struct {
	Type        string                `json:"type"`
	Version     string                `json:"version"`
	Transform   *transform            `json:"transform"`
	Vertices    [][3]float64          `json:"vertices"`
	CityObjects map[string]cityObject `json:"CityObjects"`
}

type transform struct {
	Scale     [3]float64 `json:"scale"`
	Translate [3]float64 `json:"translate"`
}

type cityObject struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
	Children   []string       `json:"children"`
	Parents    []string       `json:"parents"`
	Geometry   []geometry     `json:"geometry"`
}

type geometry struct {
	Type       string          `json:"type"`
	LOD        json.RawMessage `json:"lod"`
	Boundaries json.RawMessage `json:"boundaries"`
}

// objectColors follows the usual CityJSON viewer palette.
var objectColors = map[string]core.Color{
	"Building":                 {R: 0.80, G: 0.80, B: 0.80, A: 1},
	"BuildingPart":             {R: 0.80, G: 0.80, B: 0.80, A: 1},
	"BuildingInstallation":     {R: 0.80, G: 0.80, B: 0.80, A: 1},
	"Bridge":                   {R: 0.60, G: 0.60, B: 0.60, A: 1},
	"BridgePart":               {R: 0.60, G: 0.60, B: 0.60, A: 1},
	"CityFurniture":            {R: 0.80, G: 0.00, B: 0.00, A: 1},
	"LandUse":                  {R: 1.00, G: 0.88, B: 0.60, A: 1},
	"PlantCover":               {R: 0.22, G: 0.60, B: 0.22, A: 1},
	"Railway":                  {R: 0.00, G: 0.00, B: 0.00, A: 1},
	"Road":                     {R: 0.60, G: 0.60, B: 0.60, A: 1},
	"SolitaryVegetationObject": {R: 0.22, G: 0.60, B: 0.22, A: 1},
	"TINRelief":                {R: 1.00, G: 0.86, B: 0.62, A: 1},
	"TransportSquare":          {R: 0.60, G: 0.60, B: 0.60, A: 1},
	"Tunnel":                   {R: 0.60, G: 0.60, B: 0.60, A: 1},
	"TunnelPart":               {R: 0.60, G: 0.60, B: 0.60, A: 1},
	"WaterBody":                {R: 0.25, G: 0.55, B: 0.90, A: 1},
	"GenericCityObject":        {R: 0.70, G: 0.70, B: 0.55, A: 1},
}

// CityJSONLoader loads CityJSON documents obtained from a Fetcher.
type CityJSONLoader struct {
	Fetcher Fetcher
	Logger  *zap.Logger
}

func NewCityJSONLoader(f Fetcher, logger *zap.Logger) *CityJSONLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CityJSONLoader{Fetcher: f, Logger: logger.Named("cityjson")}
}

// LoadCityModel fetches modelID, decodes it and adds one node per city
// object. The first sink error aborts the load.
func (l *CityJSONLoader) LoadCityModel(ctx context.Context, sink engine.NodeSink, modelID string) error {
	data, err := l.Fetcher.FetchCityModel(ctx, modelID)
	if err != nil {
		return err
	}
	nodes, err := DecodeCityJSON(data)
	if err != nil {
		return fmt.Errorf("cityjson %q: %w", modelID, err)
	}

	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Add(n); err != nil {
			return fmt.Errorf("cityjson %q: add %q: %w", modelID, n.UID, err)
		}
	}
	l.Logger.Debug("decoded city model", zap.String("model", modelID), zap.Int("objects", len(nodes)))
	return nil
}

// DecodeCityJSON converts a CityJSON document into scene nodes, sorted by
// uid. Vertices are converted from z-up to y-up and recentred on the
// model's bounding box.
func DecodeCityJSON(data []byte) ([]*scene.Node, error) {
	var doc cityJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc.Type != "CityJSON" {
		return nil, fmt.Errorf("not a CityJSON document (type %q)", doc.Type)
	}

	verts := worldVertices(doc)

	uids := make([]string, 0, len(doc.CityObjects))
	for uid := range doc.CityObjects {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	nodes := make([]*scene.Node, 0, len(uids))
	for _, uid := range uids {
		obj := doc.CityObjects[uid]
		n, err := decodeObject(uid, obj, verts)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", uid, err)
		}
		n.ChildrenMeshes = descendants(uid, doc.CityObjects)
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// worldVertices applies the transform, swaps to y-up and recentres.
func worldVertices(doc cityJSON) []mgl32.Vec3 {
	scale := [3]float64{1, 1, 1}
	var translate [3]float64
	if doc.Transform != nil {
		scale, translate = doc.Transform.Scale, doc.Transform.Translate
	}

	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	world := make([][3]float64, len(doc.Vertices))
	for i, v := range doc.Vertices {
		for k := 0; k < 3; k++ {
			world[i][k] = v[k]*scale[k] + translate[k]
			lo[k] = math.Min(lo[k], world[i][k])
			hi[k] = math.Max(hi[k], world[i][k])
		}
	}

	var center [3]float64
	if len(world) > 0 {
		for k := 0; k < 3; k++ {
			center[k] = (lo[k] + hi[k]) / 2
		}
	}

	out := make([]mgl32.Vec3, len(world))
	for i, w := range world {
		x, y, z := w[0]-center[0], w[1]-center[1], w[2]-center[2]
		out[i] = mgl32.Vec3{float32(x), float32(z), float32(-y)}
	}
	return out
}

func decodeObject(uid string, obj cityObject, verts []mgl32.Vec3) (*scene.Node, error) {
	b := meshBuilder{verts: verts, local: make(map[int]uint32)}
	var points []int

	for _, g := range obj.Geometry {
		switch g.Type {
		case "MultiSurface", "CompositeSurface":
			var surfaces [][][]int
			if err := json.Unmarshal(g.Boundaries, &surfaces); err != nil {
				return nil, fmt.Errorf("%s boundaries: %w", g.Type, err)
			}
			if err := b.surfaces(surfaces); err != nil {
				return nil, err
			}
		case "Solid":
			var shells [][][][]int
			if err := json.Unmarshal(g.Boundaries, &shells); err != nil {
				return nil, fmt.Errorf("%s boundaries: %w", g.Type, err)
			}
			for _, shell := range shells {
				if err := b.surfaces(shell); err != nil {
					return nil, err
				}
			}
		case "MultiSolid", "CompositeSolid":
			var solids [][][][][]int
			if err := json.Unmarshal(g.Boundaries, &solids); err != nil {
				return nil, fmt.Errorf("%s boundaries: %w", g.Type, err)
			}
			for _, solid := range solids {
				for _, shell := range solid {
					if err := b.surfaces(shell); err != nil {
						return nil, err
					}
				}
			}
		case "MultiPoint":
			var idx []int
			if err := json.Unmarshal(g.Boundaries, &idx); err != nil {
				return nil, fmt.Errorf("%s boundaries: %w", g.Type, err)
			}
			points = append(points, idx...)
		}
	}

	color, ok := objectColors[obj.Type]
	if !ok {
		color = core.ColorGrey
	}

	var n *scene.Node
	switch {
	case len(b.indices) > 0:
		n = scene.NewMeshNode(uid, scene.NewMesh(b.positions, b.indices, color))
	case len(points) > 0:
		pos := make([]mgl32.Vec3, 0, len(points))
		for _, i := range points {
			if i < 0 || i >= len(verts) {
				return nil, fmt.Errorf("vertex index %d out of range", i)
			}
			pos = append(pos, verts[i])
		}
		n = scene.NewPointsNode(uid, scene.NewMesh(pos, nil, color))
	default:
		n = scene.NewMeshNode(uid, nil)
	}
	n.Name = uid
	n.ObjectType = obj.Type
	n.Attributes = stringAttributes(obj.Attributes)
	return n, nil
}

// meshBuilder gathers the triangles of one object, re-indexing the shared
// vertex list into a compact per-object one.
type meshBuilder struct {
	verts     []mgl32.Vec3
	local     map[int]uint32
	positions []mgl32.Vec3
	indices   []uint32
}

func (b *meshBuilder) vertex(i int) (uint32, error) {
	if i < 0 || i >= len(b.verts) {
		return 0, fmt.Errorf("vertex index %d out of range", i)
	}
	if li, ok := b.local[i]; ok {
		return li, nil
	}
	li := uint32(len(b.positions))
	b.local[i] = li
	b.positions = append(b.positions, b.verts[i])
	return li, nil
}

// surfaces fan-triangulates the outer ring of every surface. Inner rings
// are ignored.
func (b *meshBuilder) surfaces(surfaces [][][]int) error {
	for _, rings := range surfaces {
		if len(rings) == 0 {
			continue
		}
		ring := rings[0]
		if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
			ring = ring[:len(ring)-1]
		}
		if len(ring) < 3 {
			continue
		}
		first, err := b.vertex(ring[0])
		if err != nil {
			return err
		}
		for i := 1; i+1 < len(ring); i++ {
			v1, err := b.vertex(ring[i])
			if err != nil {
				return err
			}
			v2, err := b.vertex(ring[i+1])
			if err != nil {
				return err
			}
			b.indices = append(b.indices, first, v1, v2)
		}
	}
	return nil
}

// descendants returns every object reachable through children, breadth
// first, without uid itself.
func descendants(uid string, objects map[string]cityObject) []string {
	var out []string
	seen := map[string]bool{uid: true}
	queue := slices.Clone(objects[uid].Children)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if seen[c] {
			continue
		}
		seen[c] = true
		if _, ok := objects[c]; !ok {
			continue
		}
		out = append(out, c)
		queue = append(queue, objects[c].Children...)
	}
	return out
}

func stringAttributes(attrs map[string]any) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		switch v := v.(type) {
		case string:
			out[k] = v
		case nil:
			out[k] = ""
		default:
			b, err := json.Marshal(v)
			if err != nil {
				out[k] = fmt.Sprint(v)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
