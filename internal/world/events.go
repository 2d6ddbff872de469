package world

import (
	"fmt"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/event"
	"github.com/annel0/script-core/internal/host"
)

var (
	_ actor.World  = (*World)(nil)
	_ host.Inbound = (*World)(nil)
)

// RegisterHandler устанавливает (или заменяет) обработчик для типа события
func (w *World) RegisterHandler(kind event.Kind, h Handler) {
	w.hmu.Lock()
	w.handlers[kind] = h
	w.hmu.Unlock()
}

// ClearHandlers удаляет все обработчики; события без обработчика отбрасываются
func (w *World) ClearHandlers() {
	w.hmu.Lock()
	w.handlers = make(map[event.Kind]Handler)
	w.hmu.Unlock()
}

func (w *World) registerDefaultHandlers() {
	w.handlers = map[event.Kind]Handler{
		event.KindTouchStart:          w.handleTouchStart,
		event.KindSetTimer:            w.handleSetTimer,
		event.KindSetTick:             w.handleSetTick,
		event.KindAddEntity:           w.handleAddEntity,
		event.KindRemoveEntity:        w.handleRemoveEntity,
		event.KindAddPresence:         w.handleAddPresence,
		event.KindRemovePresence:      w.handleRemovePresence,
		event.KindClientEvent:         w.handleClientEvent,
		event.KindPrimVolumeCollision: w.handlePrimVolumeCollision,
	}
}

// dispatch направляет событие обработчику его типа
func (w *World) dispatch(ev event.Event) error {
	w.hmu.RLock()
	h, ok := w.handlers[ev.Kind()]
	w.hmu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", event.ErrUnknownKind, ev.Kind())
	}
	if err := h(ev); err != nil {
		return err
	}
	w.observer.EventDispatched(ev.Kind(), nil)
	return nil
}

// report получает ошибки Drain: промахи поиска - предупреждение, остальное - ошибка
func (w *World) report(ev event.Event, err error) {
	w.observer.EventDispatched(ev.Kind(), err)
	if IsLookupMiss(err) {
		w.log.Warn("%s: %v", ev.Kind(), err)
		return
	}
	w.log.Error("❌ Ошибка обработки %s (%s): %v", ev.Kind(), ev.ID(), err)
}

func (w *World) mustActor(id string) (actor.Actor, error) {
	a, ok := w.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActorNotFound, id)
	}
	return a, nil
}

func (w *World) mustAvatar(agentID string) (*actor.Avatar, error) {
	av, ok := w.AvatarByAgent(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAvatarNotFound, agentID)
	}
	return av, nil
}

func (w *World) handleTouchStart(ev event.Event) error {
	e := ev.(event.TouchStart)
	a, err := w.mustActor(e.ObjectID)
	if err != nil {
		return fmt.Errorf("touch: %w", err)
	}
	av, err := w.mustAvatar(e.AgentID)
	if err != nil {
		return fmt.Errorf("touch %s: %w", e.ObjectID, err)
	}
	return w.invoke(ScopeEvent, a.ID(), func() { a.OnTouch(av) })
}

func (w *World) handleSetTimer(ev event.Event) error {
	e := ev.(event.SetTimer)
	return w.SetTimer(e.ObjectID, e.Duration, e.Loop)
}

func (w *World) handleSetTick(ev event.Event) error {
	e := ev.(event.SetTick)
	if e.Enabled {
		return w.EnableTick(e.ObjectID)
	}
	w.DisableTick(e.ObjectID)
	return nil
}

// handleAddEntity вызывает хуки создания, если они ещё не вызывались
func (w *World) handleAddEntity(ev event.Event) error {
	e := ev.(event.AddEntity)

	w.mu.Lock()
	ent, ok := w.entities[e.ObjectID]
	fire := ok && !ent.created && !ent.destroying
	if fire {
		ent.created = true
	}
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("add entity: %w: %s", ErrActorNotFound, e.ObjectID)
	}
	if !fire {
		w.log.Debug("add_entity %s: хуки создания уже вызваны", e.ObjectID)
		return nil
	}
	w.fireCreated(ent.actor)
	return nil
}

func (w *World) handleRemoveEntity(ev event.Event) error {
	e := ev.(event.RemoveEntity)
	if !w.Unregister(e.ObjectID) {
		return fmt.Errorf("remove entity: %w: %s", ErrActorNotFound, e.ObjectID)
	}
	return nil
}

func (w *World) handleAddPresence(ev event.Event) error {
	e := ev.(event.AddPresence)
	w.AddAvatar(e.ObjectID, e.AgentID)
	return nil
}

func (w *World) handleRemovePresence(ev event.Event) error {
	e := ev.(event.RemovePresence)
	w.RemoveAvatar(e.AgentID)
	return nil
}

// handleClientEvent сначала вызывает колбэк самого аватара, затем всех
// подписчиков топика команды в порядке подписки
func (w *World) handleClientEvent(ev event.Event) error {
	e := ev.(event.ClientEvent)
	av, err := w.mustAvatar(e.AgentID)
	if err != nil {
		return fmt.Errorf("client event: %w", err)
	}

	var call func(a actor.Actor)
	switch cmd := e.Command(); cmd {
	case event.CommandLeftMouse:
		call = func(a actor.Actor) { a.OnLeftMouseButton(av) }
	case event.CommandRightMouse:
		call = func(a actor.Actor) { a.OnRightMouseButton(av) }
	case event.CommandMouseWheel:
		action := e.Param(1)
		call = func(a actor.Actor) { a.OnMouseWheel(av, action) }
	default:
		return fmt.Errorf("client event from %s: unhandled command %q", e.AgentID, cmd)
	}

	failed := 0
	targets := append([]actor.Actor{av}, w.subs.Subscribers(e.Command())...)
	for _, a := range targets {
		if err := w.invoke(ScopeEvent, a.ID(), func() { call(a) }); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("client event %s: %d of %d callbacks failed: %w",
			e.Command(), failed, len(targets), ErrHandlerPanic)
	}
	return nil
}

func (w *World) handlePrimVolumeCollision(ev event.Event) error {
	e := ev.(event.PrimVolumeCollision)
	a, err := w.mustActor(e.ObjectID)
	if err != nil {
		return fmt.Errorf("primvol collision: %w", err)
	}
	other, err := w.mustActor(e.ColliderID)
	if err != nil {
		return fmt.Errorf("primvol collision on %s: collider %w", e.ObjectID, err)
	}
	return w.invoke(ScopeEvent, a.ID(), func() { a.OnPrimVolumeCollision(other) })
}
