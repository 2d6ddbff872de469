package actor

import (
	"errors"
	"sync"
	"time"

	"github.com/annel0/script-core/internal/event"
	"github.com/annel0/script-core/internal/host"
	"github.com/annel0/script-core/internal/vec"
)

// ErrNotBound актор ещё не зарегистрирован в мире
var ErrNotBound = errors.New("actor is not bound to a world")

// World то, что актор видит от мира: время, хост, поиск соседей, подписки
type World interface {
	Now() time.Duration
	Host() host.Host
	Publish(kind event.Kind, args ...any) error
	Lookup(id string) (Actor, bool)
	AvatarByAgent(agentID string) (*Avatar, bool)
	Subscribe(topic string, a Actor)
	Unsubscribe(topic string, a Actor)
	Trigger(tag string, other Actor)
}

// Actor контракт скриптового объекта.
//
// Реализация встраивает Base и переопределяет только нужные хуки:
// все хуки Base ничего не делают.
type Actor interface {
	base() *Base

	ID() string
	Tag() string
	Class() string

	// OnPreCreated и OnCreated вызываются при появлении актора в мире
	OnPreCreated()
	OnCreated()
	// OnDestroyed вызывается после снятия таймера, тика и подписок,
	// но пока актор ещё находится в реестре
	OnDestroyed()

	OnTouch(avatar *Avatar)
	OnTick(dt time.Duration)
	OnTimer()
	OnTrigger(other Actor)
	OnPrimVolumeCollision(other Actor)

	OnLeftMouseButton(avatar *Avatar)
	OnRightMouseButton(avatar *Avatar)
	OnMouseWheel(avatar *Avatar, action string)
}

// StartLocator актор, задающий точку появления аватаров региона
type StartLocator interface {
	AvatarStartLocation() (loc, lookAt vec.Vec3)
}

// Base общая часть всех акторов
type Base struct {
	id    string
	tag   string
	class string
	self  Actor

	mu            sync.RWMutex
	world         World
	timerDuration time.Duration
	timerLoop     bool
}

func (b *Base) base() *Base { return b }

// BaseOf даёт доступ к служебной части актора
func BaseOf(a Actor) *Base { return a.base() }

// Init задаёт идентичность актора. Вызывается реестром классов или тестами
// до регистрации в мире.
func Init(a Actor, id, tag string) Actor {
	b := a.base()
	b.id = id
	b.tag = tag
	b.self = a
	return a
}

func (b *Base) ID() string    { return b.id }
func (b *Base) Tag() string   { return b.tag }
func (b *Base) Class() string { return b.class }

// Bind устанавливает обратную ссылку на мир (nil - отвязка)
func (b *Base) Bind(w World) {
	b.mu.Lock()
	b.world = w
	b.mu.Unlock()
}

// World возвращает мир, в котором зарегистрирован актор
func (b *Base) World() World {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.world
}

// TimerSettings последние параметры таймера, которые нужны для повторного взвода
func (b *Base) TimerSettings() (time.Duration, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timerDuration, b.timerLoop
}

// StoreTimerSettings запоминает параметры таймера на самом акторе
func (b *Base) StoreTimerSettings(d time.Duration, loop bool) {
	b.mu.Lock()
	b.timerDuration = d
	b.timerLoop = loop
	b.mu.Unlock()
}

// Хуки по умолчанию

func (b *Base) OnPreCreated()                              {}
func (b *Base) OnCreated()                                 {}
func (b *Base) OnDestroyed()                               {}
func (b *Base) OnTouch(avatar *Avatar)                     {}
func (b *Base) OnTick(dt time.Duration)                    {}
func (b *Base) OnTimer()                                   {}
func (b *Base) OnTrigger(other Actor)                      {}
func (b *Base) OnPrimVolumeCollision(other Actor)          {}
func (b *Base) OnLeftMouseButton(avatar *Avatar)           {}
func (b *Base) OnRightMouseButton(avatar *Avatar)          {}
func (b *Base) OnMouseWheel(avatar *Avatar, action string) {}

// Now текущее время диспетчера
func (b *Base) Now() time.Duration {
	w := b.World()
	if w == nil {
		return 0
	}
	return w.Now()
}

// SetTimer ставит (d > 0) или снимает (d <= 0) таймер. Применяется на следующем тике.
func (b *Base) SetTimer(d time.Duration, loop bool) error {
	w := b.World()
	if w == nil {
		return ErrNotBound
	}
	if d < 0 {
		d = 0
	}
	return w.Publish(event.KindSetTimer, b.id, d, loop)
}

// EnableTick подписывает актора на покадровый OnTick со следующего тика
func (b *Base) EnableTick() error {
	w := b.World()
	if w == nil {
		return ErrNotBound
	}
	return w.Publish(event.KindSetTick, b.id, true)
}

// DisableTick отписывает актора от OnTick
func (b *Base) DisableTick() error {
	w := b.World()
	if w == nil {
		return ErrNotBound
	}
	return w.Publish(event.KindSetTick, b.id, false)
}

// Subscribe подписывает актора на топик (lmb, rmb, mw)
func (b *Base) Subscribe(topic string) error {
	w := b.World()
	if w == nil {
		return ErrNotBound
	}
	w.Subscribe(topic, b.self)
	return nil
}

// Unsubscribe снимает одну подписку актора с топика
func (b *Base) Unsubscribe(topic string) error {
	w := b.World()
	if w == nil {
		return ErrNotBound
	}
	w.Unsubscribe(topic, b.self)
	return nil
}

// TriggerEvent вызывает OnTrigger у всех акторов с тегом tag
func (b *Base) TriggerEvent(tag string, other Actor) error {
	w := b.World()
	if w == nil {
		return ErrNotBound
	}
	w.Trigger(tag, other)
	return nil
}

// hostCall выполняет вызов хоста, если актор привязан к миру
func (b *Base) hostCall(fn func(h host.Host) error) error {
	w := b.World()
	if w == nil || w.Host() == nil {
		return ErrNotBound
	}
	return fn(w.Host())
}

func (b *Base) Position() (vec.Vec3, error) {
	var pos vec.Vec3
	err := b.hostCall(func(h host.Host) (err error) {
		pos, err = h.Position(b.id)
		return err
	})
	return pos, err
}

func (b *Base) SetPosition(pos vec.Vec3) error {
	return b.hostCall(func(h host.Host) error { return h.SetPosition(b.id, pos) })
}

func (b *Base) Rotation() (vec.Quat, error) {
	var rot vec.Quat
	err := b.hostCall(func(h host.Host) (err error) {
		rot, err = h.Rotation(b.id)
		return err
	})
	return rot, err
}

func (b *Base) SetRotation(rot vec.Quat) error {
	return b.hostCall(func(h host.Host) error { return h.SetRotation(b.id, rot) })
}

func (b *Base) Velocity() (vec.Vec3, error) {
	var v vec.Vec3
	err := b.hostCall(func(h host.Host) (err error) {
		v, err = h.Velocity(b.id)
		return err
	})
	return v, err
}

func (b *Base) SetVelocity(v vec.Vec3) error {
	return b.hostCall(func(h host.Host) error { return h.SetVelocity(b.id, v) })
}

func (b *Base) Scale() (vec.Vec3, error) {
	var s vec.Vec3
	err := b.hostCall(func(h host.Host) (err error) {
		s, err = h.Scale(b.id)
		return err
	})
	return s, err
}

func (b *Base) SetScale(s vec.Vec3) error {
	return b.hostCall(func(h host.Host) error { return h.SetScale(b.id, s) })
}

func (b *Base) Physics() (bool, error) {
	var on bool
	err := b.hostCall(func(h host.Host) (err error) {
		on, err = h.Physics(b.id)
		return err
	})
	return on, err
}

func (b *Base) SetPhysics(enabled bool) error {
	return b.hostCall(func(h host.Host) error { return h.SetPhysics(b.id, enabled) })
}

func (b *Base) SetMass(mass float64) error {
	return b.hostCall(func(h host.Host) error { return h.SetMass(b.id, mass) })
}

func (b *Base) SetMesh(mesh string) error {
	return b.hostCall(func(h host.Host) error { return h.SetMesh(b.id, mesh) })
}

func (b *Base) SetMaterial(index int, material string) error {
	return b.hostCall(func(h host.Host) error { return h.SetMaterial(b.id, index, material) })
}

func (b *Base) SetUsePrimVolumeCollision(enabled bool) error {
	return b.hostCall(func(h host.Host) error { return h.SetUsePrimVolumeCollision(b.id, enabled) })
}

func (b *Base) Say(channel int, text string) error {
	return b.hostCall(func(h host.Host) error { return h.Say(b.id, channel, text) })
}

func (b *Base) Shout(channel int, text string) error {
	return b.hostCall(func(h host.Host) error { return h.Shout(b.id, channel, text) })
}

func (b *Base) Whisper(channel int, text string) error {
	return b.hostCall(func(h host.Host) error { return h.Whisper(b.id, channel, text) })
}

// SpawnActor просит хост создать объект с актором класса class
func (b *Base) SpawnActor(pos vec.Vec3, class string, temporary bool) (string, error) {
	var id string
	err := b.hostCall(func(h host.Host) (err error) {
		id, err = h.SpawnActor(pos, class, temporary)
		return err
	})
	return id, err
}

// DestroyActor просит хост удалить объект этого актора
func (b *Base) DestroyActor() error {
	return b.hostCall(func(h host.Host) error { return h.DestroyActor(b.id) })
}

// RadiusActors id объектов сцены строго ближе radius, включая самого актора
func (b *Base) RadiusActors(radius float64) ([]string, error) {
	var ids []string
	err := b.hostCall(func(h host.Host) (err error) {
		ids, err = h.RadiusActors(b.id, radius)
		return err
	})
	return ids, err
}

// RadiusAvatars id аватаров строго ближе radius
func (b *Base) RadiusAvatars(radius float64) ([]string, error) {
	var ids []string
	err := b.hostCall(func(h host.Host) (err error) {
		ids, err = h.RadiusAvatars(b.id, radius)
		return err
	})
	return ids, err
}

// CommandToClient отправляет команду клиенту агента
func (b *Base) CommandToClient(agentID, unit, command, params string) error {
	return b.hostCall(func(h host.Host) error { return h.CommandToClient(agentID, unit, command, params) })
}
