// Package samples примеры классов акторов: лес по касанию, объёмный
// триггер, клиентские команды, движущийся объект, точка старта.
package samples

import (
	"math/rand"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/logging"
)

// Ключи классов
const (
	ClassTree            = "tree"
	ClassSpawner         = "spawner"
	ClassSayHello        = "say_hello"
	ClassClientScripting = "client_scripting"
	ClassArmChair        = "armchair"
	ClassMover           = "mover"
	ClassRotMainDirs     = "rot_main_dirs"
	ClassWorldInfo       = "world_info"
)

// randFloat источник случайных чисел в [0,1); подменяется в тестах
var randFloat = rand.Float64

// Register добавляет все примеры в реестр классов
func Register(reg *actor.Registry) error {
	classes := map[string]actor.Factory{
		ClassTree:            func() actor.Actor { return &Tree{} },
		ClassSpawner:         func() actor.Actor { return &Spawner{} },
		ClassSayHello:        func() actor.Actor { return &SayHello{} },
		ClassClientScripting: func() actor.Actor { return &ClientScripting{} },
		ClassArmChair:        func() actor.Actor { return &ArmChair{} },
		ClassMover:           func() actor.Actor { return &Mover{} },
		ClassRotMainDirs:     func() actor.Actor { return &RotMainDirs{} },
		ClassWorldInfo:       func() actor.Actor { return &WorldInfo{} },
	}
	for key, f := range classes {
		if err := reg.Register(key, f); err != nil {
			return err
		}
	}
	return nil
}

// check пишет в лог ошибку вызова хоста; колбэки акторов ошибок не возвращают
func check(a actor.Actor, what string, err error) {
	if err != nil {
		logging.GetComponentLogger("samples").Warn("%s %s: %s: %v", a.Class(), a.ID(), what, err)
	}
}

// fullName имя пользователя или идентификатор агента, если хост его не знает
func fullName(av *actor.Avatar) string {
	name, err := av.FullName()
	if err != nil || name == "" {
		return av.AgentID
	}
	return name
}
