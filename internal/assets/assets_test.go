package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const triangleSTL = `solid tri
facet normal 0 0 1
outer loop
vertex 0 0 0
vertex 1 0 0
vertex 0 1 0
endloop
endfacet
endsolid tri
`

func TestLoadMeshCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	if err := os.WriteFile(path, []byte(triangleSTL), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	first, err := m.LoadMesh(path)
	if err != nil {
		t.Fatalf("LoadMesh failed: %v", err)
	}
	if len(first.Triangles) != 1 {
		t.Fatalf("expected 1 triangle, got %d", len(first.Triangles))
	}

	second, err := m.LoadMesh(path)
	if err != nil {
		t.Fatalf("LoadMesh failed: %v", err)
	}
	if first != second {
		t.Error("unchanged file should return the cached mesh")
	}
	if hits, misses := m.Stats(); hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d and %d", hits, misses)
	}
}

func TestLoadMeshReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	if err := os.WriteFile(path, []byte(triangleSTL), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	first, err := m.LoadMesh(path)
	if err != nil {
		t.Fatal(err)
	}

	two := triangleSTL[:len(triangleSTL)-len("endsolid tri\n")] +
		"facet normal 0 0 1\nouter loop\nvertex 1 0 0\nvertex 1 1 0\nvertex 0 1 0\nendloop\nendfacet\nendsolid tri\n"
	if err := os.WriteFile(path, []byte(two), 0644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	second, err := m.LoadMesh(path)
	if err != nil {
		t.Fatal(err)
	}
	if first == second || len(second.Triangles) != 2 {
		t.Errorf("expected reloaded mesh with 2 triangles, got %d", len(second.Triangles))
	}
}

func TestReadFileThenLoadMesh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	if err := os.WriteFile(path, []byte(triangleSTL), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	data, err := m.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != triangleSTL {
		t.Error("ReadFile returned wrong contents")
	}

	mesh, err := m.LoadMesh(path)
	if err != nil {
		t.Fatalf("LoadMesh after ReadFile failed: %v", err)
	}
	if len(mesh.Vertices) != 3 {
		t.Errorf("expected 3 vertices, got %d", len(mesh.Vertices))
	}
}

func TestLoadMeshErrors(t *testing.T) {
	dir := t.TempDir()
	m := NewManager()

	if _, err := m.LoadMesh(filepath.Join(dir, "model.fbx")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := m.LoadMesh(filepath.Join(dir, "missing.stl")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.stl")
	if err := os.WriteFile(bad, []byte("solid x\nvertex 0 0 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LoadMesh(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache()
	c.Set("a", Entry{Size: 1})
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected cached entry")
	}
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Error("expected empty cache after Clear")
	}
	if hits, misses := c.Stats(); hits != 0 || misses != 1 {
		t.Errorf("expected stats reset by Clear, got %d hits %d misses", hits, misses)
	}
}
