package samples

import (
	"math"
	"time"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/vec"
)

const (
	treeGrowSteps    = 70
	treeGrowInterval = 50 * time.Millisecond
	spawnerTrees     = 3
	spawnerRadius    = 15.0
)

// Tree дерево, которое вырастает за 70 шагов таймера
type Tree struct {
	actor.Base
	grow int
}

func (t *Tree) OnCreated() {
	t.grow = 1
	check(t, "mesh", t.SetMesh("birch2"))
	check(t, "material", t.SetMaterial(0, "oksa5"))
	check(t, "material", t.SetMaterial(1, "lehtipuu_kuori"))
	check(t, "timer", t.SetTimer(treeGrowInterval, true))
}

func (t *Tree) OnTimer() {
	t.grow++
	if t.grow > treeGrowSteps {
		check(t, "timer", t.SetTimer(0, false))
		return
	}
	g := float64(t.grow)
	check(t, "scale", t.SetScale(vec.Vec3{X: 0.0175 * g, Y: 0.03125 * g, Z: 0.0375 * g}))
}

// Grown дерево закончило расти
func (t *Tree) Grown() bool { return t.grow > treeGrowSteps }

// Spawner по касанию сажает три дерева в случайных точках вокруг себя
type Spawner struct {
	actor.Base
}

func (s *Spawner) OnTouch(*actor.Avatar) {
	pos, err := s.Position()
	if err != nil {
		check(s, "position", err)
		return
	}
	for i := 0; i < spawnerTrees; i++ {
		ang := randFloat() * 2 * math.Pi
		offset := vec.Vec3{
			X: math.Sin(ang) * randFloat() * spawnerRadius,
			Y: math.Cos(ang) * randFloat() * spawnerRadius,
		}
		_, err := s.SpawnActor(pos.Add(offset), ClassTree, false)
		check(s, "spawn", err)
	}
}
