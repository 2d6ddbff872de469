package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 2}
	b := Vec3{X: 1, Y: 0, Z: 0}

	assert.Equal(t, Vec3{X: 2, Y: 2, Z: 2}, a.Add(b))
	assert.Equal(t, Vec3{X: 0, Y: 2, Z: 2}, a.Sub(b))
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 4}, a.Mul(2))
	assert.InDelta(t, 3.0, a.Length(), 1e-9)
	assert.InDelta(t, math.Sqrt(8), a.DistanceTo(b), 1e-9)
	assert.True(t, a.Equals(Vec3{X: 1, Y: 2, Z: 2}))
}

func TestQuatComposition(t *testing.T) {
	up := Vec3{Z: 1}
	half := QuatFromAxisAngle(up, math.Pi/2)
	full := half.Mul(half)
	expected := QuatFromAxisAngle(up, math.Pi)

	assert.InDelta(t, expected.Z, full.Z, 1e-9)
	assert.InDelta(t, expected.W, full.W, 1e-9)
	assert.Equal(t, IdentityQuat, QuatFromAxisAngle(Vec3{}, 1))
}
