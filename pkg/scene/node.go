package scene

import (
	smath "github.com/Faultbox/scenebake/pkg/math"
)

// Node places its target (a mesh or another node) with a local transform.
type Node struct {
	TargetID  string
	Transform smath.Mat4
	Metadata  map[string]any
}

// NewNode returns a node targeting id with a TRS transform built from
// position, Euler XYZ rotation in degrees and scale.
func NewNode(targetID string, position, rotation, scale smath.Vec3) *Node {
	return &Node{
		TargetID:  targetID,
		Transform: smath.BuildTransform(position, rotation, scale),
	}
}

// Kind discriminates the entity stored under an id.
type Kind int

// Entity kinds.
const (
	KindMesh Kind = iota + 1
	KindNode
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindNode:
		return "node"
	}
	return "unknown"
}

// Entity is the result of Registry.Lookup: exactly one of Mesh or Node is set,
// as indicated by Kind.
type Entity struct {
	Kind Kind
	Mesh *Mesh
	Node *Node
}
