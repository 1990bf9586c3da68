package io

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"city-viewer/scene"
)

const sampleCityJSON = `{
  "type": "CityJSON",
  "version": "1.1",
  "transform": {"scale": [0.001, 0.001, 0.001], "translate": [1000, 2000, 0]},
  "vertices": [
    [0, 0, 0], [1000, 0, 0], [1000, 1000, 0], [0, 1000, 0], [0, 0, 2000]
  ],
  "CityObjects": {
    "b1": {"type": "Building", "attributes": {"yearOfConstruction": 1921, "function": "house"}, "children": ["b1-p1"]},
    "b1-p1": {
      "type": "BuildingPart", "parents": ["b1"], "children": ["b1-p1-x"],
      "geometry": [{"type": "Solid", "lod": "2.2", "boundaries": [[[[0, 1, 2, 3]], [[0, 1, 4]]]]}]
    },
    "b1-p1-x": {
      "type": "BuildingInstallation", "parents": ["b1-p1"],
      "geometry": [{"type": "MultiSurface", "lod": 2, "boundaries": [[[0, 1, 2, 3, 0]]]}]
    },
    "road": {"type": "Road"},
    "tree": {
      "type": "SolitaryVegetationObject",
      "geometry": [
        {"type": "MultiPoint", "lod": "1", "boundaries": [4]},
        {"type": "MultiLineString", "lod": "1", "boundaries": [[0, 1]]}
      ]
    }
  }
}`

type recordSink struct {
	nodes []*scene.Node
	fail  error
	after int
}

func (s *recordSink) Add(n *scene.Node) error {
	if s.fail != nil && len(s.nodes) >= s.after {
		return s.fail
	}
	s.nodes = append(s.nodes, n)
	return nil
}

func byUID(nodes []*scene.Node) map[string]*scene.Node {
	out := make(map[string]*scene.Node, len(nodes))
	for _, n := range nodes {
		out[n.UID] = n
	}
	return out
}

func TestDecodeCityJSON(t *testing.T) {
	nodes, err := DecodeCityJSON([]byte(sampleCityJSON))
	require.NoError(t, err)

	var uids []string
	for _, n := range nodes {
		uids = append(uids, n.UID)
	}
	assert.Equal(t, []string{"b1", "b1-p1", "b1-p1-x", "road", "tree"}, uids)

	m := byUID(nodes)
	assert.Equal(t, []string{"b1-p1", "b1-p1-x"}, m["b1"].ChildrenMeshes, "children are transitive")
	assert.Equal(t, []string{"b1-p1-x"}, m["b1-p1"].ChildrenMeshes)
	assert.Empty(t, m["b1-p1-x"].ChildrenMeshes)

	assert.Nil(t, m["b1"].Mesh)
	assert.Nil(t, m["road"].Mesh)
	assert.Equal(t, "Building", m["b1"].ObjectType)
	assert.Equal(t, map[string]string{"yearOfConstruction": "1921", "function": "house"}, m["b1"].Attributes)

	part := m["b1-p1"].Mesh
	require.NotNil(t, part)
	assert.Equal(t, 3, part.TriangleCount())
	assert.Len(t, part.Positions, 5)

	inst := m["b1-p1-x"].Mesh
	require.NotNil(t, inst)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, inst.Indices, "closing vertex dropped before the fan")

	tree := m["tree"]
	assert.Equal(t, scene.KindPoints, tree.Kind)
	require.NotNil(t, tree.Mesh)
	assert.Equal(t, scene.DrawPoints, tree.Mesh.DrawMode)
}

func TestDecodeCityJSONTransform(t *testing.T) {
	nodes, err := DecodeCityJSON([]byte(sampleCityJSON))
	require.NoError(t, err)
	m := byUID(nodes)

	// World (1000, 2000, 0) minus the bbox centre (1000.5, 2000.5, 1), then
	// z-up to y-up.
	first := m["b1-p1-x"].Mesh.Positions[0]
	assert.True(t, first.ApproxEqualThreshold(mgl32.Vec3{-0.5, -1, 0.5}, 1e-4), "got %v", first)

	top := m["tree"].Mesh.Positions[0]
	assert.True(t, top.ApproxEqualThreshold(mgl32.Vec3{-0.5, 1, 0.5}, 1e-4), "got %v", top)
}

func TestDecodeCityJSONErrors(t *testing.T) {
	_, err := DecodeCityJSON([]byte(`{"type":"FeatureCollection"}`))
	assert.Error(t, err)

	_, err = DecodeCityJSON([]byte(`{`))
	assert.Error(t, err)

	_, err = DecodeCityJSON([]byte(`{"type":"CityJSON","vertices":[[0,0,0]],"CityObjects":{
		"a":{"type":"Building","geometry":[{"type":"MultiSurface","boundaries":[[[0,1,2]]]}]}}}`))
	assert.ErrorContains(t, err, "out of range")
}

func TestDescendantsIgnoresCycles(t *testing.T) {
	objs := map[string]cityObject{
		"a": {Children: []string{"b"}},
		"b": {Children: []string{"a", "c", "ghost"}},
		"c": {},
	}
	assert.Equal(t, []string{"b", "c"}, descendants("a", objs))
}

func TestCityJSONLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "den-haag.json"), []byte(sampleCityJSON), 0o644))
	l := NewCityJSONLoader(DirFetcher{Dir: dir}, zaptest.NewLogger(t))

	sink := &recordSink{}
	require.NoError(t, l.LoadCityModel(context.Background(), sink, "den-haag"))
	assert.Len(t, sink.nodes, 5)

	boom := errors.New("duplicate")
	failing := &recordSink{fail: boom, after: 2}
	err := l.LoadCityModel(context.Background(), failing, "den-haag")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, failing.nodes, 2, "the first sink error stops the load")

	assert.Error(t, l.LoadCityModel(context.Background(), &recordSink{}, "missing"))
	assert.ErrorIs(t, l.LoadCityModel(context.Background(), &recordSink{}, "../etc/passwd"), ErrInvalidModelID)
}

func TestFormatLoaderFallsBackToCityJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.json"), []byte(sampleCityJSON), 0o644))
	l := FormatLoader{
		CityJSON: NewCityJSONLoader(DirFetcher{Dir: dir}, nil),
		GLTF:     NewGLTFLoader(dir, nil),
	}

	sink := &recordSink{}
	require.NoError(t, l.LoadCityModel(context.Background(), sink, "m"))
	assert.Len(t, sink.nodes, 5)
}
