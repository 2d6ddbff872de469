package world

import (
	"fmt"
	"time"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/vec"
)

// ActorInfo состояние актора для админки и снимков
type ActorInfo struct {
	ID             string        `json:"id"`
	Class          string        `json:"class"`
	Tag            string        `json:"tag,omitempty"`
	AgentID        string        `json:"agent_id,omitempty"`
	Ticked         bool          `json:"ticked"`
	TimerPending   bool          `json:"timer_pending"`
	TimerRemaining time.Duration `json:"timer_remaining"`
	TimerDuration  time.Duration `json:"timer_duration"`
	TimerLoop      bool          `json:"timer_loop"`
}

// Stats сводка по миру
type Stats struct {
	Now             time.Duration `json:"now"`
	Running         bool          `json:"running"`
	Actors          int           `json:"actors"`
	Avatars         int           `json:"avatars"`
	Ticked          int           `json:"ticked"`
	Timers          int           `json:"timers"`
	PendingActive   int           `json:"pending_active"`
	PendingInactive int           `json:"pending_inactive"`
	Topics          []string      `json:"topics"`
}

// Describe состояние одного актора
func (w *World) Describe(id string) (ActorInfo, error) {
	a, ok := w.Lookup(id)
	if !ok {
		return ActorInfo{}, fmt.Errorf("%w: %s", ErrActorNotFound, id)
	}
	return w.describe(a), nil
}

// Inspect состояние всех акторов, отсортированное по идентификатору
func (w *World) Inspect() []ActorInfo {
	actors := w.Actors()
	out := make([]ActorInfo, 0, len(actors))
	for _, a := range actors {
		out = append(out, w.describe(a))
	}
	return out
}

func (w *World) describe(a actor.Actor) ActorInfo {
	d, loop := actor.BaseOf(a).TimerSettings()
	info := ActorInfo{
		ID:            a.ID(),
		Class:         a.Class(),
		Tag:           a.Tag(),
		Ticked:        w.Ticked(a.ID()),
		TimerDuration: d,
		TimerLoop:     loop,
	}
	if av, ok := a.(*actor.Avatar); ok {
		info.AgentID = av.AgentID
	}
	if t, ok := w.timers.Pending(a.ID()); ok {
		info.TimerPending = true
		info.TimerRemaining = t.FireAt - w.Now()
		if info.TimerRemaining < 0 {
			info.TimerRemaining = 0
		}
	}
	return info
}

// Stats текущая сводка
func (w *World) Stats() Stats {
	w.mu.RLock()
	s := Stats{
		Running: w.running,
		Actors:  len(w.entities),
		Avatars: len(w.avatars),
		Ticked:  len(w.ticked),
	}
	w.mu.RUnlock()

	s.Now = w.Now()
	s.Timers = w.timers.Len()
	s.PendingActive, s.PendingInactive = w.events.Pending()
	s.Topics = w.subs.Topics()
	return s
}

// AvatarStartLocation точка появления аватаров и направление взгляда.
// Отвечает первый по id актор, реализующий actor.StartLocator.
func (w *World) AvatarStartLocation() (loc, lookAt vec.Vec3, err error) {
	for _, a := range w.Actors() {
		locator, ok := a.(actor.StartLocator)
		if !ok {
			continue
		}
		err = w.invoke("AvatarStartLocation", a.ID(), func() {
			loc, lookAt = locator.AvatarStartLocation()
		})
		return loc, lookAt, err
	}
	return vec.Vec3{}, vec.Vec3{}, fmt.Errorf("%w: no start location actor", ErrActorNotFound)
}
