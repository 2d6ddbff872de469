package host

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/script-core/internal/vec"
)

func TestSpatialIndex_UpsertMoveRemove(t *testing.T) {
	si := NewSpatialIndex(10)

	si.Upsert("a", vec.Vec3{X: 1, Y: 1}, false)
	si.Upsert("b", vec.Vec3{X: -12, Y: -3}, true)
	assert.Equal(t, 2, si.Len())

	pos, ok := si.Position("b")
	assert.True(t, ok)
	assert.Equal(t, vec.Vec3{X: -12, Y: -3}, pos)

	// Переезд в соседнюю ячейку
	si.Upsert("a", vec.Vec3{X: 25, Y: 1}, false)
	assert.Empty(t, si.QueryRange(vec.Vec3{}, 5, false))
	assert.Equal(t, []string{"a"}, si.QueryRange(vec.Vec3{X: 24}, 5, false))

	si.Remove("a")
	si.Remove("missing")
	_, ok = si.Position("a")
	assert.False(t, ok)
	assert.Equal(t, 1, si.Len())
	assert.Contains(t, si.Stats(), "1 objects, 1 cells")
}

func TestSpatialIndex_QueryRange(t *testing.T) {
	si := NewSpatialIndex(0)
	si.Upsert("center", vec.Vec3{}, false)
	si.Upsert("inside", vec.Vec3{X: -2, Y: -1, Z: 1}, false)
	si.Upsert("boundary", vec.Vec3{Y: 3}, false)
	si.Upsert("avatar", vec.Vec3{X: 2}, true)
	si.Upsert("far", vec.Vec3{X: 40, Y: 40}, true)

	assert.Equal(t, []string{"avatar", "center", "inside"}, si.QueryRange(vec.Vec3{}, 3, false),
		"радиус строгий, сам центр входит")
	assert.Equal(t, []string{"avatar"}, si.QueryRange(vec.Vec3{}, 3, true))
	assert.Nil(t, si.QueryRange(vec.Vec3{}, 0, false))
	assert.Nil(t, si.QueryRange(vec.Vec3{}, -1, false))
	assert.Len(t, si.QueryRange(vec.Vec3{}, 100, false), 5)
}
