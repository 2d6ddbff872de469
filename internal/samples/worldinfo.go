package samples

import (
	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/vec"
)

// Точка старта аватаров и направление взгляда
var (
	DefaultStartLocation = vec.Vec3{X: 70, Y: 70, Z: 100}
	DefaultStartLookAt   = vec.Vec3{X: 128, Y: 128, Z: 100}
)

// WorldInfo описывает точку старта региона. Касание возвращает аватар на неё.
type WorldInfo struct {
	actor.Base
}

// AvatarStartLocation позиция появления и точка, куда смотрит аватар
func (w *WorldInfo) AvatarStartLocation() (loc, lookAt vec.Vec3) {
	return DefaultStartLocation, DefaultStartLookAt
}

func (w *WorldInfo) OnTouch(av *actor.Avatar) {
	loc, _ := w.AvatarStartLocation()
	check(w, "teleport", av.Teleport(loc))
}
