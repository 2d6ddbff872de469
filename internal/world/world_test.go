package world

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/event"
	"github.com/annel0/script-core/internal/host"
	"github.com/annel0/script-core/internal/vec"
)

// recorder тестовый актор, записывающий вызовы хуков в общий журнал
type recorder struct {
	actor.Base
	journal *[]string

	created, destroyed, timers, ticks, triggers int

	onCreated   func(p *recorder)
	onDestroyed func(p *recorder)
	onTouch     func(p *recorder, av *actor.Avatar)
	panicOnTick bool
}

func (p *recorder) note(hook string) {
	if p.journal != nil {
		*p.journal = append(*p.journal, p.ID()+":"+hook)
	}
}

func (p *recorder) OnPreCreated() { p.note("precreated") }
func (p *recorder) OnCreated() {
	p.created++
	p.note("created")
	if p.onCreated != nil {
		p.onCreated(p)
	}
}
func (p *recorder) OnDestroyed() {
	p.destroyed++
	p.note("destroyed")
	if p.onDestroyed != nil {
		p.onDestroyed(p)
	}
}
func (p *recorder) OnTouch(av *actor.Avatar) {
	p.note("touch:" + av.AgentID)
	if p.onTouch != nil {
		p.onTouch(p, av)
	}
}
func (p *recorder) OnTick(dt time.Duration) {
	if p.panicOnTick {
		panic("tick exploded")
	}
	p.ticks++
}
func (p *recorder) OnTimer()                                     { p.timers++; p.note("timer") }
func (p *recorder) OnTrigger(other actor.Actor)                  { p.triggers++ }
func (p *recorder) OnPrimVolumeCollision(other actor.Actor)      { p.note("primvol:" + other.ID()) }
func (p *recorder) OnLeftMouseButton(av *actor.Avatar)           { p.note("lmb") }
func (p *recorder) OnRightMouseButton(av *actor.Avatar)          { p.note("rmb") }
func (p *recorder) OnMouseWheel(av *actor.Avatar, action string) { p.note("mw:" + action) }

func newRecorder(journal *[]string, id, tag string) *recorder {
	return actor.Init(&recorder{journal: journal}, id, tag).(*recorder)
}

type countingObserver struct {
	dispatched map[event.Kind]int
	failed     map[string]int
	fired      int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{dispatched: map[event.Kind]int{}, failed: map[string]int{}}
}

func (o *countingObserver) EventDispatched(kind event.Kind, err error) {
	if err == nil {
		o.dispatched[kind]++
	}
}
func (o *countingObserver) CallbackFailed(scope string) { o.failed[scope]++ }
func (o *countingObserver) TimerFired()                 { o.fired++ }

func newTestWorld() *World {
	classes := actor.NewRegistry()
	classes.MustRegister("recorder", func() actor.Actor { return &recorder{} })
	return New(host.NewMemory(), classes)
}

// step один тик в порядке диспетчера
func step(w *World, now, dt time.Duration) {
	w.Advance(now)
	w.DrainEvents()
	w.RunTicks(dt)
	w.FireTimers(now)
}

func TestWorld_RegisterFiresHooksAndIsVisible(t *testing.T) {
	w := newTestWorld()
	var journal []string

	p := newRecorder(&journal, "x", "")
	var seenSelf bool
	p.onCreated = func(p *recorder) {
		_, seenSelf = w.Lookup(p.ID())
	}

	require.True(t, w.Register(p))
	assert.True(t, seenSelf, "актор должен быть виден из собственного OnCreated")
	assert.Equal(t, []string{"x:precreated", "x:created"}, journal)
	assert.Equal(t, w, p.World())

	assert.False(t, w.Register(newRecorder(&journal, "x", "")), "повторный id отклоняется")
	assert.False(t, w.Register(newRecorder(nil, "", "")))
}

func TestWorld_AddAndRemoveEntityScenario(t *testing.T) {
	w := newTestWorld()
	x := newRecorder(nil, "x", "")
	require.True(t, w.Register(x))

	require.NoError(t, w.Publish(event.KindAddEntity, "x"))
	w.DrainEvents()
	assert.Equal(t, 1, x.created, "created ровно один раз")

	require.NoError(t, w.Publish(event.KindRemoveEntity, "x"))
	w.DrainEvents()
	assert.Equal(t, 1, x.destroyed)
	_, ok := w.Lookup("x")
	assert.False(t, ok)
	assert.Nil(t, x.World(), "после уничтожения актор отвязан от мира")
}

func TestWorld_UnregisterPurgesEverything(t *testing.T) {
	w := newTestWorld()
	a := newRecorder(nil, "a", "")
	require.True(t, w.Register(a))

	require.NoError(t, w.SetTimer("a", time.Second, true))
	require.NoError(t, w.EnableTick("a"))
	w.Subscribe(event.CommandLeftMouse, a)
	w.Subscribe(event.CommandMouseWheel, a)

	var selfVisible, timerGone, tickGone bool
	a.onDestroyed = func(p *recorder) {
		_, selfVisible = w.Lookup("a")
		_, pending := w.PendingTimer("a")
		timerGone = !pending
		tickGone = !w.Ticked("a")
	}

	require.True(t, w.Unregister("a"))
	assert.True(t, selfVisible, "OnDestroyed ещё видит себя в реестре")
	assert.True(t, timerGone, "таймер снят до OnDestroyed")
	assert.True(t, tickGone, "тик снят до OnDestroyed")

	_, ok := w.Lookup("a")
	assert.False(t, ok)
	_, ok = w.PendingTimer("a")
	assert.False(t, ok)
	assert.False(t, w.Ticked("a"))
	assert.Empty(t, w.Subscribers(event.CommandLeftMouse))
	assert.Empty(t, w.Subscribers(event.CommandMouseWheel))

	assert.False(t, w.Unregister("a"), "повторное удаление - false")
}

func TestWorld_DestroyedActorNeverGetsTimer(t *testing.T) {
	w := newTestWorld()
	a := newRecorder(nil, "a", "")
	require.True(t, w.Register(a))
	require.NoError(t, w.SetTimer("a", time.Second, false))

	w.Unregister("a")
	step(w, 5*time.Second, 5*time.Second)
	assert.Zero(t, a.timers)
}

func TestWorld_ClientEventBroadcastInSubscriptionOrder(t *testing.T) {
	w := newTestWorld()
	var journal []string

	_, ok := w.AddAvatar("av-obj", "agent-1")
	require.True(t, ok)
	a := newRecorder(&journal, "a", "")
	b := newRecorder(&journal, "b", "")
	require.True(t, w.Register(a))
	require.True(t, w.Register(b))
	journal = nil

	w.Subscribe(event.CommandLeftMouse, a)
	w.Subscribe(event.CommandLeftMouse, b)
	w.Subscribe(event.CommandMouseWheel, b)

	require.NoError(t, w.Publish(event.KindClientEvent, "agent-1", "lmb"))
	require.NoError(t, w.Publish(event.KindClientEvent, "agent-1", "mw", "up"))
	handled, failed := w.DrainEvents()

	assert.Equal(t, 2, handled)
	assert.Zero(t, failed)
	assert.Equal(t, []string{"a:lmb", "b:lmb", "b:mw:up"}, journal)
}

func TestWorld_ClientEventFailures(t *testing.T) {
	w := newTestWorld()
	w.AddAvatar("av-obj", "agent-1")

	require.NoError(t, w.Publish(event.KindClientEvent, "ghost", "lmb"))
	require.NoError(t, w.Publish(event.KindClientEvent, "agent-1", "jump"))
	handled, failed := w.DrainEvents()
	assert.Equal(t, 2, handled)
	assert.Equal(t, 2, failed)
}

func TestWorld_EventsPublishedDuringDrainWaitForNextTick(t *testing.T) {
	w := newTestWorld()
	w.AddAvatar("av-obj", "agent-1")

	p := newRecorder(nil, "lamp", "")
	p.onTouch = func(p *recorder, av *actor.Avatar) {
		require.NoError(t, p.EnableTick())
	}
	require.True(t, w.Register(p))

	require.NoError(t, w.Publish(event.KindTouchStart, "lamp", "agent-1"))
	w.DrainEvents()
	assert.False(t, w.Ticked("lamp"), "set_tick из обработчика не виден в том же Drain")
	_, inactive := w.PendingEvents()
	assert.Equal(t, 1, inactive)

	w.DrainEvents()
	assert.True(t, w.Ticked("lamp"))
}

func TestWorld_LoopTimerRearmsFromDispatchTime(t *testing.T) {
	w := newTestWorld()
	a := newRecorder(nil, "a", "")
	require.True(t, w.Register(a))

	var firedAt []time.Duration
	obs := newCountingObserver()
	w.SetObserver(obs)

	require.NoError(t, w.SetTimer("a", 2*time.Second, true))
	for s := 1; s <= 6; s++ {
		now := time.Duration(s) * time.Second
		before := a.timers
		step(w, now, time.Second)
		if a.timers > before {
			firedAt = append(firedAt, now)
		}
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, firedAt)
	assert.Equal(t, 3, obs.fired)

	require.NoError(t, w.SetTimer("a", 0, false))
	for s := 7; s <= 12; s++ {
		step(w, time.Duration(s)*time.Second, time.Second)
	}
	assert.Equal(t, 3, a.timers, "после отмены таймер больше не срабатывает")
}

func TestWorld_SetTimerThroughEvents(t *testing.T) {
	w := newTestWorld()
	a := newRecorder(nil, "a", "")
	require.True(t, w.Register(a))

	require.NoError(t, a.SetTimer(time.Second, false))
	step(w, 0, 0)
	_, pending := w.PendingTimer("a")
	assert.True(t, pending)

	step(w, time.Second, time.Second)
	assert.Equal(t, 1, a.timers)
	d, loop := actor.BaseOf(a).TimerSettings()
	assert.Zero(t, d, "одноразовый таймер сбрасывает параметры после срабатывания")
	assert.False(t, loop)
}

func TestWorld_SetTimerForMissingActor(t *testing.T) {
	w := newTestWorld()
	err := w.SetTimer("ghost", time.Second, false)
	assert.ErrorIs(t, err, ErrActorNotFound)
}

func TestWorld_TickFailureIsIsolated(t *testing.T) {
	w := newTestWorld()
	obs := newCountingObserver()
	w.SetObserver(obs)

	bad := newRecorder(nil, "bad", "")
	bad.panicOnTick = true
	good := newRecorder(nil, "good", "")
	require.True(t, w.Register(bad))
	require.True(t, w.Register(good))
	require.NoError(t, w.EnableTick("bad"))
	require.NoError(t, w.EnableTick("good"))

	called := w.RunTicks(40 * time.Millisecond)
	assert.Equal(t, 2, called)
	assert.Equal(t, 1, good.ticks)
	assert.Equal(t, 1, obs.failed[ScopeTick])
	assert.True(t, w.Ticked("bad"), "упавший актор остаётся в наборе")
}

func TestWorld_CreateEntityBeforeStart(t *testing.T) {
	w := newTestWorld()

	require.NoError(t, w.CreateEntity("tree-1", "recorder", "forest"))
	a, ok := w.Lookup("tree-1")
	require.True(t, ok)
	p := a.(*recorder)
	assert.Zero(t, p.created, "до запуска хуки не вызываются")
	assert.Equal(t, "forest", p.Tag())
	assert.Equal(t, "recorder", p.Class())

	w.Start()
	assert.Equal(t, 1, p.created)

	require.NoError(t, w.Publish(event.KindAddEntity, "tree-1"))
	w.DrainEvents()
	assert.Equal(t, 1, p.created, "add_entity после Start не повторяет хуки")
}

func TestWorld_CreateEntityWhileRunning(t *testing.T) {
	w := newTestWorld()
	w.Start()

	require.NoError(t, w.CreateEntity("tree-1", "recorder", ""))
	a, _ := w.Lookup("tree-1")
	p := a.(*recorder)
	assert.Zero(t, p.created, "хуки не вызываются на горутине хоста")

	w.DrainEvents()
	assert.Equal(t, 1, p.created)

	err := w.CreateEntity("tree-1", "recorder", "")
	assert.ErrorIs(t, err, ErrDuplicateActor)

	err = w.CreateEntity("rock-1", "rock", "")
	assert.ErrorIs(t, err, actor.ErrUnknownClass)
}

func TestWorld_CreateEntityReplacesBeforeStart(t *testing.T) {
	w := newTestWorld()
	require.NoError(t, w.CreateEntity("x", "recorder", "old"))
	old, _ := w.Lookup("x")

	require.NoError(t, w.CreateEntity("x", "recorder", "new"))
	cur, _ := w.Lookup("x")
	assert.NotSame(t, old, cur)
	assert.Equal(t, "new", cur.Tag())
	assert.Equal(t, 1, old.(*recorder).destroyed)
}

func TestWorld_Avatars(t *testing.T) {
	w := newTestWorld()

	av, ok := w.AddAvatar("av-obj", "agent-1")
	require.True(t, ok)
	again, ok := w.AddAvatar("av-obj-2", "agent-1")
	assert.False(t, ok, "повторный вход агента - no-op")
	assert.Same(t, av, again)

	found, ok := w.AvatarByAgent("agent-1")
	require.True(t, ok)
	assert.Same(t, av, found)
	a, ok := w.Lookup("av-obj")
	require.True(t, ok)
	assert.Equal(t, actor.AvatarClass, a.Class())

	assert.False(t, w.RemoveAvatar("ghost"))
	assert.True(t, w.RemoveAvatar("agent-1"))
	_, ok = w.Lookup("av-obj")
	assert.False(t, ok)
	_, ok = w.AvatarByAgent("agent-1")
	assert.False(t, ok)
}

func TestWorld_PresenceEvents(t *testing.T) {
	w := newTestWorld()
	require.NoError(t, w.Publish(event.KindAddPresence, "av-obj", "agent-1"))
	w.DrainEvents()
	_, ok := w.AvatarByAgent("agent-1")
	require.True(t, ok)

	// удаление объекта аватара убирает и запись индекса
	require.NoError(t, w.Publish(event.KindRemoveEntity, "av-obj"))
	w.DrainEvents()
	_, ok = w.AvatarByAgent("agent-1")
	assert.False(t, ok)

	require.NoError(t, w.Publish(event.KindRemovePresence, "agent-1"))
	_, failed := w.DrainEvents()
	assert.Zero(t, failed, "уход неизвестного агента не ошибка")
}

func TestWorld_TouchAndCollision(t *testing.T) {
	w := newTestWorld()
	var journal []string
	w.AddAvatar("av-obj", "agent-1")
	door := newRecorder(&journal, "door", "")
	ball := newRecorder(&journal, "ball", "")
	w.Register(door)
	w.Register(ball)
	journal = nil

	require.NoError(t, w.Publish(event.KindTouchStart, "door", "agent-1"))
	require.NoError(t, w.Publish(event.KindTouchStart, "door", "ghost"))
	require.NoError(t, w.Publish(event.KindPrimVolumeCollision, "door", "ball"))
	require.NoError(t, w.Publish(event.KindPrimVolumeCollision, "ghost", "ball"))
	handled, failed := w.DrainEvents()

	assert.Equal(t, 4, handled)
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"door:touch:agent-1", "door:primvol:ball"}, journal)
}

func TestWorld_Trigger(t *testing.T) {
	w := newTestWorld()
	a := newRecorder(nil, "a", "doors")
	b := newRecorder(nil, "b", "doors")
	c := newRecorder(nil, "c", "lights")
	for _, p := range []*recorder{a, b, c} {
		require.True(t, w.Register(p))
	}

	w.Trigger("doors", c)
	w.Trigger("", c)
	assert.Equal(t, 1, a.triggers)
	assert.Equal(t, 1, b.triggers)
	assert.Zero(t, c.triggers)
}

func TestWorld_ShutdownPass(t *testing.T) {
	w := newTestWorld()
	w.Start()
	w.AddAvatar("av-obj", "agent-1")

	var avatarGoneFirst bool
	a := newRecorder(nil, "a", "")
	a.onDestroyed = func(p *recorder) {
		_, ok := w.AvatarByAgent("agent-1")
		avatarGoneFirst = !ok
	}
	require.True(t, w.Register(a))
	require.NoError(t, w.SetTimer("a", time.Minute, true))
	require.NoError(t, w.EnableTick("a"))
	w.Subscribe(event.CommandRightMouse, a)
	require.NoError(t, w.Publish(event.KindSetTick, "a", false))

	w.Shutdown()

	assert.Equal(t, 1, a.destroyed)
	assert.True(t, avatarGoneFirst, "аватары уничтожаются раньше остальных акторов")
	st := w.Stats()
	assert.Zero(t, st.Actors)
	assert.Zero(t, st.Avatars)
	assert.Zero(t, st.Ticked)
	assert.Zero(t, st.Timers)
	assert.Zero(t, st.PendingInactive)
	assert.Empty(t, st.Topics)
	assert.False(t, st.Running)

	assert.ErrorIs(t, w.Publish(event.KindAddEntity, "a"), event.ErrClosed)
	assert.False(t, w.Register(newRecorder(nil, "late", "")))
	assert.ErrorIs(t, w.CreateEntity("late", "recorder", ""), ErrStopping)
}

func TestWorld_UnknownKindAfterHandlersCleared(t *testing.T) {
	w := newTestWorld()
	w.ClearHandlers()
	require.NoError(t, w.Publish(event.KindAddPresence, "av", "agent"))

	var reported error
	w.events.Switch()
	w.events.Drain(w.dispatch, func(ev event.Event, err error) { reported = err })
	assert.True(t, errors.Is(reported, event.ErrUnknownKind))

	// пользовательский обработчик подменяет стандартный
	var seen int
	w.RegisterHandler(event.KindAddPresence, func(ev event.Event) error { seen++; return nil })
	require.NoError(t, w.Publish(event.KindAddPresence, "av", "agent"))
	w.DrainEvents()
	assert.Equal(t, 1, seen)
}

func TestWorld_Inspect(t *testing.T) {
	w := newTestWorld()
	require.NoError(t, w.CreateEntity("t1", "recorder", "forest"))
	w.Start()
	w.Advance(10 * time.Second)
	require.NoError(t, w.SetTimer("t1", 3*time.Second, true))
	require.NoError(t, w.EnableTick("t1"))

	info, err := w.Describe("t1")
	require.NoError(t, err)
	assert.Equal(t, "recorder", info.Class)
	assert.True(t, info.Ticked)
	assert.True(t, info.TimerPending)
	assert.Equal(t, 3*time.Second, info.TimerRemaining)
	assert.True(t, info.TimerLoop)

	_, err = w.Describe("ghost")
	assert.ErrorIs(t, err, ErrActorNotFound)
	assert.Len(t, w.Inspect(), 1)
}

// beacon актор с точкой появления аватаров
type beacon struct {
	actor.Base
	loc     vec.Vec3
	explode bool
}

func (b *beacon) AvatarStartLocation() (vec.Vec3, vec.Vec3) {
	if b.explode {
		panic("no landing point")
	}
	return b.loc, vec.Vec3{X: 1}
}

func TestWorld_AvatarStartLocation(t *testing.T) {
	w := newTestWorld()
	w.Classes().MustRegister("beacon", func() actor.Actor { return &beacon{} })
	require.NoError(t, w.CreateEntity("a-lamp", "recorder", ""))

	_, _, err := w.AvatarStartLocation()
	assert.ErrorIs(t, err, ErrActorNotFound)
	assert.True(t, IsLookupMiss(err))

	require.NoError(t, w.CreateEntity("b-beacon", "beacon", ""))
	require.NoError(t, w.CreateEntity("c-beacon", "beacon", ""))
	first, _ := w.Lookup("b-beacon")
	first.(*beacon).loc = vec.Vec3{X: 128, Y: 128, Z: 25}

	loc, lookAt, err := w.AvatarStartLocation()
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: 128, Y: 128, Z: 25}, loc)
	assert.Equal(t, vec.Vec3{X: 1}, lookAt)

	first.(*beacon).explode = true
	_, _, err = w.AvatarStartLocation()
	assert.ErrorIs(t, err, event.ErrHandlerPanic)
}
