package scene

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	smath "github.com/Faultbox/scenebake/pkg/math"
)

// Resolution warnings. Neither stops resolution; the affected branch is dropped.
var (
	ErrMissingEntity = errors.New("entity not found")
	ErrCycleDetected = errors.New("node cycle detected")
)

// Placement is a mesh positioned in world space.
type Placement struct {
	RootID string
	MeshID string
	Mesh   *Mesh
	World  smath.Mat4
}

// Resolution is the flattened output of Resolve.
type Resolution struct {
	Placements []Placement
	// Warnings combines every dropped branch (ErrMissingEntity,
	// ErrCycleDetected) with go.uber.org/multierr. nil when nothing was dropped.
	Warnings error
}

// Resolver flattens node chains registered in a Registry.
type Resolver struct {
	reg *Registry
}

// NewResolver creates a resolver reading from reg.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve walks each root id down its chain of nodes and returns one placement
// per mesh reached. The world transform is the product of every node transform
// along the chain, root first: world = N0 * N1 * ... * Nk.
//
// All entities are read from the registry here, so the returned placements
// are a snapshot that can be exported without touching the registry again.
func (r *Resolver) Resolve(rootIDs []string) Resolution {
	var res Resolution
	for _, root := range rootIDs {
		p, err := r.resolveRoot(root)
		if err != nil {
			res.Warnings = multierr.Append(res.Warnings, err)
			continue
		}
		res.Placements = append(res.Placements, p)
	}
	return res
}

// resolveRoot follows a single chain. Each node has exactly one target, so
// the walk is a loop rather than a recursion; visited holds every id on the
// current path.
func (r *Resolver) resolveRoot(root string) (Placement, error) {
	world := smath.Identity()
	visited := make(map[string]struct{})
	id := root

	for {
		if _, seen := visited[id]; seen {
			return Placement{}, fmt.Errorf("root %q: %w at %q", root, ErrCycleDetected, id)
		}
		visited[id] = struct{}{}

		ent, ok := r.reg.Lookup(id)
		if !ok {
			return Placement{}, fmt.Errorf("root %q: %w: %q", root, ErrMissingEntity, id)
		}

		switch ent.Kind {
		case KindMesh:
			return Placement{RootID: root, MeshID: id, Mesh: ent.Mesh, World: world}, nil
		case KindNode:
			world = smath.Compose(world, ent.Node.Transform)
			id = ent.Node.TargetID
		}
	}
}
