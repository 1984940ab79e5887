package scene

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleMesh() *Mesh {
	return &Mesh{
		Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Triangles: [][3]uint32{{0, 1, 2}},
	}
}

func TestRegisterMeshGeneratesDistinctIDs(t *testing.T) {
	reg := NewRegistry()
	m := triangleMesh()

	a := reg.RegisterMesh(m, "")
	b := reg.RegisterMesh(m, "   ")

	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
	assert.NotEqual(t, a, b, "registering the same mesh twice must yield distinct ids")

	meshes, _ := reg.Len()
	assert.Equal(t, 2, meshes)
}

func TestRegisterKeepsRequestedID(t *testing.T) {
	reg := NewRegistry()
	id := reg.RegisterMesh(triangleMesh(), "crate")
	assert.Equal(t, "crate", id)

	got, ok := reg.Mesh("crate")
	require.True(t, ok)
	assert.Len(t, got.Vertices, 3)

	_, ok = reg.Node("crate")
	assert.False(t, ok)
}

func TestLookupPrefersNode(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterMesh(triangleMesh(), "shared")
	reg.RegisterNode(&Node{TargetID: "x"}, "shared")

	ent, ok := reg.Lookup("shared")
	require.True(t, ok)
	assert.Equal(t, KindNode, ent.Kind)
	assert.NotNil(t, ent.Node)
	assert.Nil(t, ent.Mesh)

	_, ok = reg.Lookup("nope")
	assert.False(t, ok)
}

func TestRegisterNilIsNotStored(t *testing.T) {
	reg := NewRegistry()
	meshID := reg.RegisterMesh(nil, "")
	nodeID := reg.RegisterNode(nil, "")
	assert.NotEmpty(t, meshID)
	assert.NotEmpty(t, nodeID)

	_, ok := reg.Lookup(meshID)
	assert.False(t, ok)
	_, ok = reg.Lookup(nodeID)
	assert.False(t, ok)

	reg.RegisterMesh(triangleMesh(), "m")
	reg.RegisterMesh(nil, "m")
	_, ok = reg.Mesh("m")
	assert.False(t, ok, "nil replaces the previous entry")

	meshes, nodes := reg.Len()
	assert.Zero(t, meshes)
	assert.Zero(t, nodes)
}

func TestClear(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterMesh(triangleMesh(), "m")
	reg.RegisterNode(&Node{TargetID: "m"}, "n")

	reg.Clear()

	meshes, nodes := reg.Len()
	assert.Zero(t, meshes)
	assert.Zero(t, nodes)
	_, ok := reg.Lookup("m")
	assert.False(t, ok)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	ids := make([]string, 64)

	for i := range ids {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ids[i] = reg.RegisterMesh(triangleMesh(), "")
		}(i)
		go func(i int) {
			defer wg.Done()
			reg.Lookup(fmt.Sprintf("probe-%d", i))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	meshes, _ := reg.Len()
	assert.Equal(t, len(ids), meshes)
}
