package host

import (
	"errors"

	"github.com/annel0/script-core/internal/vec"
)

// ErrUnknownEntity хост не знает объекта с таким идентификатором
var ErrUnknownEntity = errors.New("unknown host entity")

// Host исходящие вызовы ядра скриптов в серверный движок.
// Движок владеет симуляцией; ядро лишь пересылает команды.
type Host interface {
	// Свойства объекта
	Position(id string) (vec.Vec3, error)
	SetPosition(id string, pos vec.Vec3) error
	Rotation(id string) (vec.Quat, error)
	SetRotation(id string, rot vec.Quat) error
	Velocity(id string) (vec.Vec3, error)
	SetVelocity(id string, v vec.Vec3) error
	Scale(id string) (vec.Vec3, error)
	SetScale(id string, s vec.Vec3) error
	Physics(id string) (bool, error)
	SetPhysics(id string, enabled bool) error
	Mass(id string) (float64, error)
	SetMass(id string, mass float64) error
	SetMesh(id string, mesh string) error
	SetMaterial(id string, index int, material string) error
	SetUsePrimVolumeCollision(id string, enabled bool) error

	// Сообщения ближайшим слушателям
	Say(id string, channel int, text string) error
	Shout(id string, channel int, text string) error
	Whisper(id string, channel int, text string) error
	SendGeneralAlertAll(id string, text string) error
	SendAlertToAvatar(id, agentID, text string, modal bool) error

	// Создание и удаление объектов. SpawnActor возвращает id нового объекта.
	SpawnActor(pos vec.Vec3, class string, temporary bool) (string, error)
	DestroyActor(id string) error

	// Поиск соседей: id объектов сцены (или только аватаров) строго ближе
	// radius к объекту id. Сам объект тоже попадает в выборку.
	RadiusActors(id string, radius float64) ([]string, error)
	RadiusAvatars(id string, radius float64) ([]string, error)

	// Аватары
	AgentFullName(agentID string) (string, error)
	Teleport(agentID string, pos vec.Vec3) error
	SetMovementModifier(agentID string, modifier float64) error

	// CommandToClient сквозная команда клиенту: (агент, подсистема, команда, параметры)
	CommandToClient(agentID, unit, command, params string) error
}

// Inbound точки входа ядра, которые вызывает хост (или мост к нему)
type Inbound interface {
	PublishEvent(kind string, args ...any) error
	CreateEntity(id, class, tag string) error
	// AvatarStartLocation точка появления аватаров, которую задают скрипты региона
	AvatarStartLocation() (loc, lookAt vec.Vec3, err error)
}
