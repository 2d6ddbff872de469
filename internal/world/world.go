package world

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/event"
	"github.com/annel0/script-core/internal/host"
	"github.com/annel0/script-core/internal/logging"
	"github.com/annel0/script-core/internal/subscription"
	"github.com/annel0/script-core/internal/timer"
)

// Области, в которых изолируются сбои колбэков
const (
	ScopeEvent     = "event"
	ScopeTick      = "tick"
	ScopeTimer     = "timer"
	ScopeCreated   = "created"
	ScopeDestroyed = "destroyed"
	ScopeTrigger   = "trigger"
)

// Handler обработчик события одного типа
type Handler func(ev event.Event) error

// Observer получает уведомления о работе мира (метрики диспетчера)
type Observer interface {
	EventDispatched(kind event.Kind, err error)
	CallbackFailed(scope string)
	TimerFired()
}

type nopObserver struct{}

func (nopObserver) EventDispatched(event.Kind, error) {}
func (nopObserver) CallbackFailed(string)             {}
func (nopObserver) TimerFired()                       {}

// entry запись реестра
type entry struct {
	actor      actor.Actor
	created    bool // хуки создания уже вызваны
	destroying bool // идёт Unregister
}

// World реестр акторов одного региона вместе с их таймерами, тиками,
// подписками и очередью событий.
//
// Все колбэки акторов вызываются на горутине диспетчера и никогда под
// внутренними блокировками. Из других горутин безопасно вызывать только
// PublishEvent, CreateEntity и методы чтения.
type World struct {
	mu       sync.RWMutex
	entities map[string]*entry
	avatars  map[string]*actor.Avatar // agentID -> аватар
	ticked   map[string]actor.Actor
	running  bool
	stopping bool

	hmu      sync.RWMutex
	handlers map[event.Kind]Handler

	now atomic.Int64

	classes  *actor.Registry
	events   *event.Queue
	timers   *timer.Queue
	subs     *subscription.Table[actor.Actor]
	host     host.Host
	observer Observer

	log *logging.Logger
}

// New создаёт пустой мир. classes может быть nil, тогда CreateEntity
// будет отклонять любые классы.
func New(h host.Host, classes *actor.Registry) *World {
	if classes == nil {
		classes = actor.NewRegistry()
	}
	w := &World{
		entities: make(map[string]*entry),
		avatars:  make(map[string]*actor.Avatar),
		ticked:   make(map[string]actor.Actor),
		classes:  classes,
		events:   event.NewQueue(nil),
		timers:   timer.NewQueue(),
		subs:     subscription.NewTable[actor.Actor](),
		host:     h,
		observer: nopObserver{},
		log:      logging.GetWorldLogger(),
	}
	w.registerDefaultHandlers()
	return w
}

// SetObserver подключает наблюдателя (nil - отключить)
func (w *World) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	w.observer = o
}

// Host исходящий интерфейс движка
func (w *World) Host() host.Host { return w.host }

// Classes каталог классов акторов
func (w *World) Classes() *actor.Registry { return w.classes }

// Now время текущего тика
func (w *World) Now() time.Duration { return time.Duration(w.now.Load()) }

// Advance выставляет время текущего тика
func (w *World) Advance(now time.Duration) { w.now.Store(int64(now)) }

// Running true между Start и Shutdown
func (w *World) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// ---- Реестр ----

// Register добавляет актора и синхронно вызывает OnPreCreated и OnCreated.
// Актор виден через Lookup ещё до вызова хуков.
func (w *World) Register(a actor.Actor) bool {
	if a == nil || a.ID() == "" {
		w.log.Warn("Register: актор без идентификатора")
		return false
	}
	id := a.ID()

	w.mu.Lock()
	if w.stopping {
		w.mu.Unlock()
		w.log.Warn("Register %s: мир завершает работу", id)
		return false
	}
	if _, exists := w.entities[id]; exists {
		w.mu.Unlock()
		w.log.Warn("Register: актор %s уже зарегистрирован", id)
		return false
	}
	actor.BaseOf(a).Bind(w)
	w.entities[id] = &entry{actor: a, created: true}
	w.mu.Unlock()

	w.fireCreated(a)
	return true
}

// fireCreated вызывает хуки создания с изоляцией сбоев
func (w *World) fireCreated(a actor.Actor) {
	if err := w.invoke(ScopeCreated, a.ID(), a.OnPreCreated); err != nil {
		w.observer.CallbackFailed(ScopeCreated)
	}
	if err := w.invoke(ScopeCreated, a.ID(), a.OnCreated); err != nil {
		w.observer.CallbackFailed(ScopeCreated)
	}
}

// Unregister снимает таймер, тик и подписки актора, вызывает OnDestroyed
// и только потом убирает его из реестра.
func (w *World) Unregister(id string) bool {
	w.mu.Lock()
	e, ok := w.entities[id]
	if !ok || e.destroying {
		w.mu.Unlock()
		return false
	}
	e.destroying = true
	delete(w.ticked, id)
	w.mu.Unlock()

	a := e.actor
	w.timers.Cancel(id)
	w.subs.UnsubscribeAll(a)
	actor.BaseOf(a).StoreTimerSettings(0, false)

	if err := w.invoke(ScopeDestroyed, id, a.OnDestroyed); err != nil {
		w.observer.CallbackFailed(ScopeDestroyed)
	}

	w.mu.Lock()
	if cur, ok := w.entities[id]; ok && cur == e {
		delete(w.entities, id)
	}
	if av, ok := a.(*actor.Avatar); ok && w.avatars[av.AgentID] == av {
		delete(w.avatars, av.AgentID)
	}
	w.mu.Unlock()

	actor.BaseOf(a).Bind(nil)
	return true
}

// Lookup находит актора по идентификатору объекта
func (w *World) Lookup(id string) (actor.Actor, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	if !ok {
		return nil, false
	}
	return e.actor, true
}

// alive проверяет, что a всё ещё зарегистрирован и не удаляется
func (w *World) alive(a actor.Actor) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[a.ID()]
	return ok && e.actor == a && !e.destroying
}

// Actors возвращает акторов, отсортированных по идентификатору
func (w *World) Actors() []actor.Actor {
	w.mu.RLock()
	out := make([]actor.Actor, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e.actor)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ---- Аватары ----

// AddAvatar создаёт аватар для агента. Повторный вход агента - предупреждение и no-op.
func (w *World) AddAvatar(objectID, agentID string) (*actor.Avatar, bool) {
	w.mu.Lock()
	if w.stopping {
		w.mu.Unlock()
		return nil, false
	}
	if existing, ok := w.avatars[agentID]; ok {
		w.mu.Unlock()
		w.log.Warn("Аватар агента %s уже в регионе", agentID)
		return existing, false
	}
	if _, ok := w.entities[objectID]; ok {
		w.mu.Unlock()
		w.log.Warn("AddAvatar: объект %s уже занят другим актором", objectID)
		return nil, false
	}

	av := actor.NewAvatar(objectID, agentID)
	av.Bind(w)
	w.avatars[agentID] = av
	w.entities[objectID] = &entry{actor: av, created: true}
	w.mu.Unlock()

	w.log.Info("👤 Аватар %s (%s) вошёл в регион", agentID, objectID)
	w.fireCreated(av)
	return av, true
}

// RemoveAvatar убирает аватар агента и уничтожает его актора
func (w *World) RemoveAvatar(agentID string) bool {
	w.mu.Lock()
	av, ok := w.avatars[agentID]
	if ok {
		delete(w.avatars, agentID)
	}
	w.mu.Unlock()

	if !ok {
		w.log.Warn("RemoveAvatar: агент %s не найден", agentID)
		return false
	}
	w.Unregister(av.ID())
	w.log.Info("👋 Аватар %s покинул регион", agentID)
	return true
}

// AvatarByAgent находит аватар по идентификатору агента
func (w *World) AvatarByAgent(agentID string) (*actor.Avatar, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	av, ok := w.avatars[agentID]
	return av, ok
}

// Avatars возвращает аватары, отсортированные по агенту
func (w *World) Avatars() []*actor.Avatar {
	w.mu.RLock()
	out := make([]*actor.Avatar, 0, len(w.avatars))
	for _, av := range w.avatars {
		out = append(out, av)
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// ---- Таймеры и тик ----

// SetTimer снимает прежний таймер актора и при d > 0 ставит новый на Now()+d.
// Длительность и флаг цикла запоминаются на самом акторе для перевзвода.
func (w *World) SetTimer(id string, d time.Duration, loop bool) error {
	w.timers.Cancel(id)

	a, ok := w.Lookup(id)
	if !ok {
		return fmt.Errorf("set timer: %w: %s", ErrActorNotFound, id)
	}
	if !w.alive(a) {
		return nil
	}
	actor.BaseOf(a).StoreTimerSettings(d, loop)
	w.timers.Set(id, d, loop, w.Now())
	return nil
}

// CancelTimer снимает таймер актора; отсутствие таймера не ошибка
func (w *World) CancelTimer(id string) {
	w.timers.Cancel(id)
}

// EnableTick добавляет актора в набор тикаемых
func (w *World) EnableTick(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entities[id]
	if !ok || e.destroying {
		return fmt.Errorf("enable tick: %w: %s", ErrActorNotFound, id)
	}
	w.ticked[id] = e.actor
	return nil
}

// DisableTick убирает актора из набора тикаемых; отсутствие - не ошибка
func (w *World) DisableTick(id string) {
	w.mu.Lock()
	delete(w.ticked, id)
	w.mu.Unlock()
}

// Ticked проверяет, включён ли у актора покадровый колбэк
func (w *World) Ticked(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.ticked[id]
	return ok
}

// PendingTimer запись таймера актора, если она есть
func (w *World) PendingTimer(id string) (event.Timer, bool) {
	return w.timers.Pending(id)
}

// RunTicks вызывает OnTick у всех тикаемых акторов. Порядок не определён.
func (w *World) RunTicks(dt time.Duration) int {
	w.mu.RLock()
	batch := make([]actor.Actor, 0, len(w.ticked))
	for _, a := range w.ticked {
		batch = append(batch, a)
	}
	w.mu.RUnlock()

	called := 0
	for _, a := range batch {
		if !w.Ticked(a.ID()) {
			continue
		}
		called++
		if err := w.invoke(ScopeTick, a.ID(), func() { a.OnTick(dt) }); err != nil {
			w.observer.CallbackFailed(ScopeTick)
		}
	}
	return called
}

// FireTimers отрабатывает все таймеры со временем срабатывания <= now
func (w *World) FireTimers(now time.Duration) int {
	return w.timers.PopDue(now, func(entry event.Timer) (time.Duration, bool) {
		a, ok := w.Lookup(entry.ObjectID)
		if !ok {
			w.log.Warn("Таймер для отсутствующего актора %s", entry.ObjectID)
			return 0, false
		}

		if err := w.invoke(ScopeTimer, a.ID(), a.OnTimer); err != nil {
			w.observer.CallbackFailed(ScopeTimer)
		}
		w.observer.TimerFired()

		b := actor.BaseOf(a)
		d, loop := b.TimerSettings()
		if loop && d > 0 && w.alive(a) {
			return d, true
		}
		b.StoreTimerSettings(0, false)
		return 0, false
	})
}

// ---- Подписки ----

// Subscribe подписывает зарегистрированного актора на топик
func (w *World) Subscribe(topic string, a actor.Actor) {
	if a == nil || !w.alive(a) {
		w.log.Warn("Subscribe %q: актор не зарегистрирован", topic)
		return
	}
	w.subs.Subscribe(topic, a)
}

// Unsubscribe снимает одну подписку актора с топика
func (w *World) Unsubscribe(topic string, a actor.Actor) {
	w.subs.Unsubscribe(topic, a)
}

// UnsubscribeAll снимает актора со всех топиков
func (w *World) UnsubscribeAll(a actor.Actor) int {
	return w.subs.UnsubscribeAll(a)
}

// Subscribers подписчики топика в порядке подписки
func (w *World) Subscribers(topic string) []actor.Actor {
	return w.subs.Subscribers(topic)
}

// Trigger вызывает OnTrigger(other) у каждого актора с тегом tag
func (w *World) Trigger(tag string, other actor.Actor) {
	if tag == "" {
		w.log.Warn("Trigger: пустой тег")
		return
	}
	for _, a := range w.Actors() {
		if a.Tag() != tag {
			continue
		}
		if err := w.invoke(ScopeTrigger, a.ID(), func() { a.OnTrigger(other) }); err != nil {
			w.observer.CallbackFailed(ScopeTrigger)
		}
	}
}

// ---- Точки входа хоста ----

// Publish кладёт событие в неактивный буфер; оно будет обработано на следующем тике
func (w *World) Publish(kind event.Kind, args ...any) error {
	return w.events.Publish(kind, args...)
}

// PublishEvent то же, что Publish, для хоста, передающего имя события строкой
func (w *World) PublishEvent(kind string, args ...any) error {
	return w.Publish(event.Kind(kind), args...)
}

// CreateEntity создаёт актора класса class и сразу добавляет его в реестр без
// вызова хуков. Хуки создания вызываются на горутине диспетчера: через событие
// add_entity, если мир уже запущен, или в Start.
func (w *World) CreateEntity(id, class, tag string) error {
	if id == "" {
		return fmt.Errorf("create entity: empty id")
	}
	a, err := w.classes.New(class, id, tag)
	if err != nil {
		w.log.Error("CreateEntity %s: %v", id, err)
		return err
	}

	w.mu.Lock()
	if w.stopping {
		w.mu.Unlock()
		return ErrStopping
	}
	_, exists := w.entities[id]
	running := w.running
	if exists && running {
		w.mu.Unlock()
		return fmt.Errorf("create entity: %w: %s", ErrDuplicateActor, id)
	}
	w.mu.Unlock()

	// До запуска диспетчера старый актор с тем же id заменяется
	if exists {
		w.log.Info("CreateEntity: заменяем существующего актора %s", id)
		w.Unregister(id)
	}

	w.mu.Lock()
	if _, taken := w.entities[id]; taken {
		w.mu.Unlock()
		return fmt.Errorf("create entity: %w: %s", ErrDuplicateActor, id)
	}
	actor.BaseOf(a).Bind(w)
	w.entities[id] = &entry{actor: a}
	running = w.running
	w.mu.Unlock()

	w.log.Debug("Создан актор %s класса %s", id, class)
	if running {
		return w.Publish(event.KindAddEntity, id)
	}
	return nil
}

// ---- Жизненный цикл ----

// Start переводит мир в рабочий режим и вызывает хуки создания у акторов,
// добавленных через CreateEntity до запуска.
func (w *World) Start() {
	w.mu.Lock()
	if w.running || w.stopping {
		w.mu.Unlock()
		return
	}
	w.running = true
	var pending []actor.Actor
	for _, e := range w.entities {
		if !e.created {
			e.created = true
			pending = append(pending, e.actor)
		}
	}
	w.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID() < pending[j].ID() })
	for _, a := range pending {
		w.fireCreated(a)
	}
	w.log.Info("🚀 Мир запущен: %d акторов", len(w.Actors()))
}

// DrainEvents переключает буферы и обрабатывает все события прошлого тика
func (w *World) DrainEvents() (handled, failed int) {
	w.events.Switch()
	return w.events.Drain(w.dispatch, w.report)
}

// PendingEvents размеры активного и неактивного буферов
func (w *World) PendingEvents() (active, inactive int) {
	return w.events.Pending()
}

// Shutdown проход завершения: обработчики, очереди, тики, аватары, акторы, подписки
func (w *World) Shutdown() {
	w.mu.Lock()
	if w.stopping {
		w.mu.Unlock()
		return
	}
	w.stopping = true
	w.running = false
	w.mu.Unlock()

	w.ClearHandlers()
	discarded := w.events.Close()
	timers := w.timers.Clear()

	w.mu.Lock()
	w.ticked = make(map[string]actor.Actor)
	w.mu.Unlock()

	for _, av := range w.Avatars() {
		w.RemoveAvatar(av.AgentID)
	}
	destroyed := 0
	for _, a := range w.Actors() {
		if w.Unregister(a.ID()) {
			destroyed++
		}
	}
	w.subs.Clear()

	w.log.Info("🛑 Мир остановлен: отброшено событий %d, таймеров %d, уничтожено акторов %d",
		discarded, timers, destroyed)
}

// invoke вызывает колбэк актора, превращая панику в ошибку
func (w *World) invoke(scope, id string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &event.HandlerPanic{Value: r}
			w.log.Error("💥 Паника в %s актора %s: %v", scope, id, r)
		}
	}()
	fn()
	return nil
}
