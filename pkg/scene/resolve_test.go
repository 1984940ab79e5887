package scene

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	smath "github.com/Faultbox/scenebake/pkg/math"
)

func TestResolveChainDepths(t *testing.T) {
	for depth := 0; depth <= 6; depth++ {
		t.Run(fmt.Sprintf("depth=%d", depth), func(t *testing.T) {
			reg := NewRegistry()
			reg.RegisterMesh(triangleMesh(), "leaf")

			// Build root -> n1 -> ... -> leaf, recording transforms root first.
			target := "leaf"
			transforms := make([]smath.Mat4, depth)
			for i := depth - 1; i >= 0; i-- {
				transforms[i] = smath.BuildTransform(
					smath.Vec3{X: float32(i + 1), Y: 0, Z: -1},
					smath.Vec3{X: 10 * float32(i), Y: 90, Z: 0},
					smath.Vec3{X: 1, Y: 2, Z: 1},
				)
				id := fmt.Sprintf("n%d", i)
				reg.RegisterNode(&Node{TargetID: target, Transform: transforms[i]}, id)
				target = id
			}

			want := smath.Identity()
			for _, m := range transforms {
				want = want.Mul(m)
			}

			res := NewResolver(reg).Resolve([]string{target})
			require.NoError(t, res.Warnings)
			require.Len(t, res.Placements, 1)

			p := res.Placements[0]
			assert.Equal(t, "leaf", p.MeshID)
			assert.Equal(t, target, p.RootID)
			assert.True(t, p.World.ApproxEqual(want, 1e-5), "world %v != %v", p.World, want)
		})
	}
}

func TestResolveMeshRootIsIdentity(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterMesh(triangleMesh(), "m")

	res := NewResolver(reg).Resolve([]string{"m"})
	require.Len(t, res.Placements, 1)
	assert.True(t, res.Placements[0].World.IsIdentity())
}

func TestResolveEmptyAndMissing(t *testing.T) {
	reg := NewRegistry()
	r := NewResolver(reg)

	res := r.Resolve(nil)
	assert.Empty(t, res.Placements)
	assert.NoError(t, res.Warnings)

	res = r.Resolve([]string{"missing-id"})
	assert.Empty(t, res.Placements)
	assert.True(t, errors.Is(res.Warnings, ErrMissingEntity))
}

func TestResolveDanglingNode(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterMesh(triangleMesh(), "m")
	reg.RegisterNode(&Node{TargetID: "gone", Transform: smath.Identity()}, "dangling")

	res := NewResolver(reg).Resolve([]string{"dangling", "m"})
	require.Len(t, res.Placements, 1, "the dangling branch is dropped, the rest survives")
	assert.Equal(t, "m", res.Placements[0].MeshID)
	assert.ErrorIs(t, res.Warnings, ErrMissingEntity)
}

func TestResolveNilEntities(t *testing.T) {
	reg := NewRegistry()
	nodeID := reg.RegisterNode(nil, "")
	reg.RegisterNode(&Node{TargetID: "hole", Transform: smath.Identity()}, "n")
	reg.RegisterMesh(nil, "hole")

	res := NewResolver(reg).Resolve([]string{nodeID, "n"})
	assert.Empty(t, res.Placements)
	assert.ErrorIs(t, res.Warnings, ErrMissingEntity)
	assert.Len(t, multierr.Errors(res.Warnings), 2)
}

func TestResolveCycle(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNode(&Node{TargetID: "B", Transform: smath.Identity()}, "A")
	reg.RegisterNode(&Node{TargetID: "C", Transform: smath.Identity()}, "B")
	reg.RegisterNode(&Node{TargetID: "A", Transform: smath.Identity()}, "C")
	reg.RegisterNode(&Node{TargetID: "self", Transform: smath.Identity()}, "self")

	res := NewResolver(reg).Resolve([]string{"A", "self"})
	assert.Empty(t, res.Placements)
	assert.ErrorIs(t, res.Warnings, ErrCycleDetected)
	assert.Len(t, multierr.Errors(res.Warnings), 2)
}

func TestResolveSharedSubchainIsNotACycle(t *testing.T) {
	// Two roots reaching the same node: visited is tracked per path.
	reg := NewRegistry()
	reg.RegisterMesh(triangleMesh(), "m")
	reg.RegisterNode(&Node{TargetID: "m", Transform: smath.Translate(1, 0, 0)}, "base")
	reg.RegisterNode(&Node{TargetID: "base", Transform: smath.Translate(0, 1, 0)}, "left")
	reg.RegisterNode(&Node{TargetID: "base", Transform: smath.Translate(0, 0, 1)}, "right")

	res := NewResolver(reg).Resolve([]string{"left", "right", "left"})
	require.NoError(t, res.Warnings)
	require.Len(t, res.Placements, 3)
	assert.Equal(t, smath.Translate(1, 1, 0), res.Placements[0].World)
	assert.Equal(t, smath.Translate(1, 0, 1), res.Placements[1].World)
}

func TestResolveDuplicateRoots(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterMesh(triangleMesh(), "m")
	reg.RegisterNode(&Node{TargetID: "m", Transform: smath.Translate(1, 0, 0)}, "n")

	res := NewResolver(reg).Resolve([]string{"n", "m", "n"})
	require.NoError(t, res.Warnings)
	require.Len(t, res.Placements, 3)
	assert.Equal(t, "n", res.Placements[0].RootID)
	assert.Equal(t, "m", res.Placements[1].RootID)
	assert.Equal(t, "n", res.Placements[2].RootID)
	assert.True(t, res.Placements[0].World.ApproxEqual(res.Placements[2].World, 0))
}
