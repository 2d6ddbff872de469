package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind имя типа события, как его передаёт хост
type Kind string

const (
	KindTouchStart          Kind = "touch_start"
	KindTimer               Kind = "timer"
	KindSetTimer            Kind = "set_timer"
	KindSetTick             Kind = "set_tick"
	KindAddEntity           Kind = "add_entity"
	KindRemoveEntity        Kind = "remove_entity"
	KindAddPresence         Kind = "add_presence"
	KindRemovePresence      Kind = "remove_presence"
	KindClientEvent         Kind = "client_event"
	KindPrimVolumeCollision Kind = "primvol_col"
)

// Команды клиентского ввода (первый параметр client_event)
const (
	CommandLeftMouse  = "lmb"
	CommandRightMouse = "rmb"
	CommandMouseWheel = "mw"
)

// Event неизменяемая запись о произошедшем на сервере.
// Создаётся продюсером, потребляется диспетчером ровно один раз.
type Event interface {
	Kind() Kind
	ID() string
	CreatedAt() time.Time
}

// meta общие поля всех событий
type meta struct {
	id string
	at time.Time
}

func newMeta() meta {
	return meta{id: uuid.NewString(), at: time.Now()}
}

// ID возвращает уникальный идентификатор события (UUID)
func (m meta) ID() string { return m.id }

// CreatedAt возвращает время создания события
func (m meta) CreatedAt() time.Time { return m.at }

// TouchStart аватар коснулся объекта
type TouchStart struct {
	meta
	ObjectID string
	AgentID  string
}

func NewTouchStart(objectID, agentID string) TouchStart {
	return TouchStart{meta: newMeta(), ObjectID: objectID, AgentID: agentID}
}

func (TouchStart) Kind() Kind { return KindTouchStart }

// Timer запись очереди таймеров: сработать для ObjectID в момент FireAt
type Timer struct {
	meta
	ObjectID string
	FireAt   time.Duration
	Loop     bool
}

func NewTimer(objectID string, fireAt time.Duration, loop bool) Timer {
	return Timer{meta: newMeta(), ObjectID: objectID, FireAt: fireAt, Loop: loop}
}

func (Timer) Kind() Kind { return KindTimer }

// SetTimer запрос на установку (или отмену при Duration <= 0) таймера актора
type SetTimer struct {
	meta
	ObjectID string
	Duration time.Duration
	Loop     bool
}

func NewSetTimer(objectID string, d time.Duration, loop bool) SetTimer {
	return SetTimer{meta: newMeta(), ObjectID: objectID, Duration: d, Loop: loop}
}

func (SetTimer) Kind() Kind { return KindSetTimer }

// SetTick включение/выключение покадрового колбэка
type SetTick struct {
	meta
	ObjectID string
	Enabled  bool
}

func NewSetTick(objectID string, enabled bool) SetTick {
	return SetTick{meta: newMeta(), ObjectID: objectID, Enabled: enabled}
}

func (SetTick) Kind() Kind { return KindSetTick }

// AddEntity сущность добавлена хостом
type AddEntity struct {
	meta
	ObjectID string
}

func NewAddEntity(objectID string) AddEntity {
	return AddEntity{meta: newMeta(), ObjectID: objectID}
}

func (AddEntity) Kind() Kind { return KindAddEntity }

// RemoveEntity сущность удалена хостом
type RemoveEntity struct {
	meta
	ObjectID string
}

func NewRemoveEntity(objectID string) RemoveEntity {
	return RemoveEntity{meta: newMeta(), ObjectID: objectID}
}

func (RemoveEntity) Kind() Kind { return KindRemoveEntity }

// AddPresence пользователь вошёл в регион
type AddPresence struct {
	meta
	ObjectID string
	AgentID  string
}

func NewAddPresence(objectID, agentID string) AddPresence {
	return AddPresence{meta: newMeta(), ObjectID: objectID, AgentID: agentID}
}

func (AddPresence) Kind() Kind { return KindAddPresence }

// RemovePresence пользователь покинул регион
type RemovePresence struct {
	meta
	AgentID string
}

func NewRemovePresence(agentID string) RemovePresence {
	return RemovePresence{meta: newMeta(), AgentID: agentID}
}

func (RemovePresence) Kind() Kind { return KindRemovePresence }

// ClientEvent ввод, присланный клиентом. Params[0] - команда (lmb, rmb, mw).
type ClientEvent struct {
	meta
	AgentID string
	Params  []string
}

func NewClientEvent(agentID string, params ...string) ClientEvent {
	p := make([]string, len(params))
	copy(p, params)
	return ClientEvent{meta: newMeta(), AgentID: agentID, Params: p}
}

func (ClientEvent) Kind() Kind { return KindClientEvent }

// Command возвращает команду клиента или пустую строку
func (e ClientEvent) Command() string {
	return e.Param(0)
}

// Param возвращает i-й параметр или пустую строку
func (e ClientEvent) Param(i int) string {
	if i < 0 || i >= len(e.Params) {
		return ""
	}
	return e.Params[i]
}

// PrimVolumeCollision что-то вошло в объём объекта
type PrimVolumeCollision struct {
	meta
	ObjectID   string
	ColliderID string
}

func NewPrimVolumeCollision(objectID, colliderID string) PrimVolumeCollision {
	return PrimVolumeCollision{meta: newMeta(), ObjectID: objectID, ColliderID: colliderID}
}

func (PrimVolumeCollision) Kind() Kind { return KindPrimVolumeCollision }
