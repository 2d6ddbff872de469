package samples

import (
	"math"
	"time"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/vec"
)

const moverInterval = 5 * time.Second

// moverLegs скорости по шагам: вперёд-вверх, стоп, назад-вверх, стоп
var moverLegs = [...]vec.Vec3{
	{X: 5, Z: 5},
	{},
	{X: -5, Z: 5},
	{},
}

// Mover по касанию включает физику и каждые 5 секунд меняет скорость по
// кругу; повторное касание останавливает его.
type Mover struct {
	actor.Base
	active bool
	leg    int
}

func (m *Mover) OnTouch(*actor.Avatar) {
	if !m.active {
		check(m, "physics", m.SetPhysics(true))
		check(m, "velocity", m.SetVelocity(vec.Vec3{}))
		m.leg = 0
		check(m, "timer", m.SetTimer(moverInterval, true))
		m.active = true
		return
	}
	check(m, "velocity", m.SetVelocity(vec.Vec3{}))
	check(m, "physics", m.SetPhysics(false))
	check(m, "timer", m.SetTimer(0, false))
	m.active = false
}

func (m *Mover) OnTimer() {
	check(m, "velocity", m.SetVelocity(moverLegs[m.leg]))
	m.leg = (m.leg + 1) % len(moverLegs)
}

// Active объект сейчас движется
func (m *Mover) Active() bool { return m.active }

var mainDirs = [...]struct {
	name  string
	angle float64
}{
	{"North", math.Pi * 0.5},
	{"South", math.Pi * 1.5},
	{"East", 0},
	{"West", math.Pi},
}

// RotMainDirs по касанию разворачивает аватар по сторонам света
type RotMainDirs struct {
	actor.Base
	dir int
}

func (r *RotMainDirs) OnTouch(av *actor.Avatar) {
	d := mainDirs[r.dir]
	check(r, "shout", r.Shout(0, d.name))
	check(r, "rotation", av.SetRotation(vec.QuatFromAxisAngle(vec.Vec3{Z: 1}, d.angle)))
	r.dir = (r.dir + 1) % len(mainDirs)
}
