package scene

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry is an id-keyed store of meshes and nodes shared by export calls.
// Writes take the lock exclusively, lookups share it; the lock is only held
// for the map operation itself.
//
// Create one with NewRegistry and pass it to whatever needs it. Clear drops
// every entry; nothing is evicted implicitly.
type Registry struct {
	mu     sync.RWMutex
	meshes map[string]*Mesh
	nodes  map[string]*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		meshes: make(map[string]*Mesh),
		nodes:  make(map[string]*Node),
	}
}

// newID returns a random UUID. A collision with an existing entry in either
// table is retried so generated ids stay unique for the registry's lifetime.
// Caller must hold the write lock.
func (r *Registry) newID() string {
	for {
		id := uuid.NewString()
		_, inMeshes := r.meshes[id]
		_, inNodes := r.nodes[id]
		if !inMeshes && !inNodes {
			return id
		}
	}
}

// RegisterMesh stores m under id and returns the id used. A blank id is
// replaced by a generated one. Registering under an existing id replaces it.
// A nil mesh is not stored, so the id resolves as missing.
func (r *Registry) RegisterMesh(m *Mesh, id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		id = r.newID()
	}
	if m == nil {
		delete(r.meshes, id)
		return id
	}
	r.meshes[id] = m
	return id
}

// RegisterNode stores n under id and returns the id used. A blank id is
// replaced by a generated one. A nil node is not stored.
func (r *Registry) RegisterNode(n *Node, id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(id) == "" {
		id = r.newID()
	}
	if n == nil {
		delete(r.nodes, id)
		return id
	}
	r.nodes[id] = n
	return id
}

// Mesh returns the mesh registered under id.
func (r *Registry) Mesh(id string) (*Mesh, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meshes[id]
	return m, ok
}

// Node returns the node registered under id.
func (r *Registry) Node(id string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	return n, ok
}

// Lookup returns whichever entity is registered under id.
// When an id exists in both tables the node wins.
func (r *Registry) Lookup(id string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n, ok := r.nodes[id]; ok {
		return Entity{Kind: KindNode, Node: n}, true
	}
	if m, ok := r.meshes[id]; ok {
		return Entity{Kind: KindMesh, Mesh: m}, true
	}
	return Entity{}, false
}

// Len returns the number of registered meshes and nodes.
func (r *Registry) Len() (meshes, nodes int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.meshes), len(r.nodes)
}

// Clear removes every mesh and node.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.meshes)
	clear(r.nodes)
}
