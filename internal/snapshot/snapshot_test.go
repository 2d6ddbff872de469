package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/host"
	"github.com/annel0/script-core/internal/world"
)

type beacon struct {
	actor.Base
	created int
	timers  int
}

func (b *beacon) OnCreated() { b.created++ }
func (b *beacon) OnTimer()   { b.timers++ }

// dimmer при создании ставит свой таймер и тик, хранит яркость
type dimmer struct {
	actor.Base
	level   int
	timers  int
	corrupt bool
}

func (d *dimmer) OnCreated() {
	d.level = 1
	_ = d.SetTimer(time.Minute, false)
	_ = d.EnableTick()
}
func (d *dimmer) OnTimer() { d.timers++ }

func (d *dimmer) SnapshotState() (json.RawMessage, error) {
	if d.corrupt {
		return nil, errors.New("corrupt")
	}
	return json.Marshal(map[string]int{"level": d.level})
}

func (d *dimmer) RestoreState(data json.RawMessage) error {
	var st struct {
		Level int `json:"level"`
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	d.level = st.Level
	return nil
}

func newWorld() *world.World {
	classes := actor.NewRegistry()
	classes.MustRegister("beacon", func() actor.Actor { return &beacon{} })
	classes.MustRegister("dimmer", func() actor.Actor { return &dimmer{} })
	return world.New(host.NewMemory(), classes)
}

func newBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// populated мир с двумя акторами, аватаром и таймером в середине периода
func populated(t *testing.T) *world.World {
	t.Helper()
	w := newWorld()
	require.NoError(t, w.CreateEntity("b1", "beacon", "lights"))
	require.NoError(t, w.CreateEntity("b2", "beacon", ""))
	w.Start()

	require.NoError(t, w.SetTimer("b1", 5*time.Second, true))
	require.NoError(t, w.EnableTick("b2"))
	_, ok := w.AddAvatar("av", "agent-1")
	require.True(t, ok)

	w.Advance(3 * time.Second)
	return w
}

func TestCapture_SkipsAvatarsAndKeepsTimers(t *testing.T) {
	snap := Capture(populated(t), "r1")

	assert.Equal(t, "r1", snap.Region)
	assert.Equal(t, 3*time.Second, snap.Now)
	require.Len(t, snap.Actors, 2)

	assert.Equal(t, ActorState{
		ID:             "b1",
		Class:          "beacon",
		Tag:            "lights",
		TimerRemaining: 2 * time.Second,
		TimerDuration:  5 * time.Second,
		TimerLoop:      true,
	}, snap.Actors[0])
	assert.Equal(t, ActorState{ID: "b2", Class: "beacon", Ticked: true}, snap.Actors[1])
}

func TestRestore_RecreatesActors(t *testing.T) {
	snap := Capture(populated(t), "r1")

	w := newWorld()
	require.NoError(t, Restore(w, snap))

	a, ok := w.Lookup("b1")
	require.True(t, ok)
	b1 := a.(*beacon)
	assert.Equal(t, "lights", b1.Tag())
	assert.Equal(t, 1, b1.created, "Restore запускает мир")
	assert.True(t, w.Ticked("b2"))

	w.Start()
	assert.Equal(t, 1, b1.created)

	// первое срабатывание через остаток, затем полный период
	w.FireTimers(2 * time.Second)
	assert.Equal(t, 1, b1.timers)
	w.FireTimers(6 * time.Second)
	assert.Equal(t, 1, b1.timers)
	w.FireTimers(7 * time.Second)
	assert.Equal(t, 2, b1.timers)
}

func TestRestore_OverridesCreationHooks(t *testing.T) {
	src := newWorld()
	require.NoError(t, src.CreateEntity("d1", "dimmer", ""))
	src.Start()
	src.DrainEvents()
	a, _ := src.Lookup("d1")
	a.(*dimmer).level = 7
	require.NoError(t, src.SetTimer("d1", 4*time.Second, false))
	src.DisableTick("d1")
	src.Advance(time.Second)

	snap := Capture(src, "r1")
	require.Len(t, snap.Actors, 1)
	assert.JSONEq(t, `{"level":7}`, string(snap.Actors[0].State))
	assert.Equal(t, 3*time.Second, snap.Actors[0].TimerRemaining)

	data, err := Encode(snap)
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)

	w := newWorld()
	require.NoError(t, Restore(w, back))
	a, ok := w.Lookup("d1")
	require.True(t, ok)
	d1 := a.(*dimmer)
	assert.Equal(t, 7, d1.level, "поля из снимка перекрывают OnCreated")
	assert.False(t, w.Ticked("d1"), "флаг тика из снимка перекрывает OnCreated")

	info, err := w.Describe("d1")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, info.TimerRemaining)

	// Таймер из хука не возвращается следующим тиком
	w.DrainEvents()
	w.FireTimers(3 * time.Second)
	assert.Equal(t, 1, d1.timers)
	w.FireTimers(2 * time.Minute)
	assert.Equal(t, 1, d1.timers)
}

func TestCapture_StateErrorKeepsActor(t *testing.T) {
	w := newWorld()
	require.NoError(t, w.CreateEntity("d1", "dimmer", ""))
	w.Start()
	a, _ := w.Lookup("d1")
	a.(*dimmer).corrupt = true

	snap := Capture(w, "r1")
	require.Len(t, snap.Actors, 1)
	assert.Nil(t, snap.Actors[0].State)
}

func TestRestore_CollectsErrors(t *testing.T) {
	w := newWorld()
	err := Restore(w, &Snapshot{Actors: []ActorState{
		{ID: "ok", Class: "beacon"},
		{ID: "bad", Class: "ghost"},
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, actor.ErrUnknownClass)

	_, ok := w.Lookup("ok")
	assert.True(t, ok, "ошибка одного актора не мешает остальным")
	assert.NoError(t, Restore(w, nil))
}

func TestCodec_RoundTrip(t *testing.T) {
	snap := Capture(populated(t), "r1")
	data, err := Encode(snap)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snap.Actors, back.Actors)
	assert.True(t, snap.TakenAt.Equal(back.TakenAt))

	_, err = Decode([]byte("not zstd"))
	assert.Error(t, err)
}

func TestBadgerStore_SaveLoad(t *testing.T) {
	store := newBadger(t)
	ctx := context.Background()

	_, err := Load(ctx, store, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Save(ctx, store, populated(t), "r1")
	require.NoError(t, err)

	snap, err := Load(ctx, store, "r1")
	require.NoError(t, err)
	assert.Len(t, snap.Actors, 2)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	assert.Error(t, store.Save(ctx, "r1", nil))
}

func TestRedisStore_SaveLoad(t *testing.T) {
	addr := os.Getenv("SCRIPTCORE_TEST_REDIS")
	if addr == "" {
		t.Skip("SCRIPTCORE_TEST_REDIS не задан")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, &RedisConfig{Addr: addr, KeyPrefix: "scriptcore:test:", TTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "r1", []byte("payload")))
	data, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}
