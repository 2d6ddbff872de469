package host

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/script-core/internal/vec"
)

type inboundCall struct {
	op   string
	args []any
}

type recordingInbound struct {
	calls  []inboundCall
	err    error
	loc    vec.Vec3
	lookAt vec.Vec3
	locErr error
}

func (r *recordingInbound) PublishEvent(kind string, args ...any) error {
	r.calls = append(r.calls, inboundCall{op: kind, args: args})
	return r.err
}

func (r *recordingInbound) CreateEntity(id, class, tag string) error {
	r.calls = append(r.calls, inboundCall{op: "create", args: []any{id, class, tag}})
	return r.err
}

func (r *recordingInbound) AvatarStartLocation() (vec.Vec3, vec.Vec3, error) {
	return r.loc, r.lookAt, r.locErr
}

func TestMemory_Properties(t *testing.T) {
	m := NewMemory()

	rot, err := m.Rotation("box")
	require.NoError(t, err)
	assert.Equal(t, vec.IdentityQuat, rot)

	require.NoError(t, m.SetPosition("box", vec.Vec3{X: 1}))
	require.NoError(t, m.SetPhysics("box", true))
	pos, _ := m.Position("box")
	on, _ := m.Physics("box")
	assert.Equal(t, vec.Vec3{X: 1}, pos)
	assert.True(t, on)

	assert.Error(t, m.SetMass("box", -1))
	mass, _ := m.Mass("box")
	assert.Equal(t, 1.0, mass)

	ops := []string{}
	for _, c := range m.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"set_position", "set_physics"}, ops)
}

func TestMemory_SpawnAndDestroy(t *testing.T) {
	m := NewMemory()
	in := &recordingInbound{}
	m.Attach(in)

	id, err := m.SpawnActor(vec.Vec3{Y: 2}, "tree", true)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Len(t, in.calls, 1)
	assert.Equal(t, []any{id, "tree", ""}, in.calls[0].args)

	require.NoError(t, m.DestroyActor(id))
	require.Len(t, in.calls, 2)
	assert.Equal(t, "remove_entity", in.calls[1].op)
	assert.Equal(t, []any{id}, in.calls[1].args)

	// Повторное удаление и объекты без свойств на стороне хоста не ошибка
	require.NoError(t, m.DestroyActor(id))
	require.NoError(t, m.DestroyActor("created-by-core"))
	require.Len(t, in.calls, 4)
	assert.Equal(t, []any{"created-by-core"}, in.calls[3].args)

	assert.ErrorIs(t, m.DestroyActor(""), ErrUnknownEntity)
}

func TestMemory_SpawnRollsBackOnCreateError(t *testing.T) {
	m := NewMemory()
	m.Attach(&recordingInbound{err: errors.New("unknown class")})

	_, err := m.SpawnActor(vec.Vec3{X: 1}, "nope", false)
	assert.Error(t, err)

	ids, err := m.RadiusActors("anchor", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"anchor"}, ids, "откаченный объект не остаётся в индексе")
}

func TestMemory_CallLogIsBounded(t *testing.T) {
	m := NewMemory(WithCallLog(3))
	for i := 0; i < 5; i++ {
		require.NoError(t, m.SetPosition("box", vec.Vec3{X: float64(i)}))
	}

	calls := m.Calls()
	require.Len(t, calls, 3)
	for i, c := range calls {
		assert.Equal(t, []any{vec.Vec3{X: float64(i + 2)}}, c.Args)
	}
	assert.Equal(t, 2, m.DroppedCalls())

	def := NewMemory()
	for i := 0; i < DefaultCallLogSize+10; i++ {
		require.NoError(t, def.SetPhysics("box", i%2 == 0))
	}
	assert.Len(t, def.Calls(), DefaultCallLogSize)
	assert.Equal(t, 10, def.DroppedCalls())

	off := NewMemory(WithCallLog(0))
	require.NoError(t, off.SetPhysics("box", true))
	assert.Empty(t, off.Calls())
	assert.Equal(t, 1, off.DroppedCalls())
}

func TestMemory_RadiusQueries(t *testing.T) {
	m := NewMemory(WithCellSize(4))
	require.NoError(t, m.SetPosition("src", vec.Vec3{}))
	require.NoError(t, m.SetPosition("near", vec.Vec3{X: -3, Y: -3}))
	require.NoError(t, m.SetPosition("edge", vec.Vec3{X: 5}))
	require.NoError(t, m.SetPosition("high", vec.Vec3{Z: 7}))
	m.AddAvatar("av-1", "agent-1", "Jane Doe", vec.Vec3{Y: 20})

	ids, err := m.RadiusActors("src", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "src"}, ids, "граница радиуса не входит, высота учитывается")

	avatars, err := m.RadiusAvatars("src", 5)
	require.NoError(t, err)
	assert.Empty(t, avatars)

	require.NoError(t, m.Teleport("agent-1", vec.Vec3{X: 1, Y: 1}))
	avatars, err = m.RadiusAvatars("src", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"av-1"}, avatars)

	m.RemoveAvatar("agent-1")
	avatars, _ = m.RadiusAvatars("src", 5)
	assert.Empty(t, avatars)

	require.NoError(t, m.DestroyActor("near"))
	ids, _ = m.RadiusActors("src", 5)
	assert.Equal(t, []string{"src"}, ids)
}

func TestMemory_AgentFullName(t *testing.T) {
	m := NewMemory()
	m.AddAgent("a1", "Jane Doe")

	name, err := m.AgentFullName("a1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", name)

	_, err = m.AgentFullName("a2")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

// fakeConn имитирует соединение NATS без сервера
type fakeConn struct {
	published map[string][][]byte
	replies   map[string]Reply
	requests  []string
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{published: map[string][][]byte{}, replies: map[string]Reply{}}
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.published[subj] = append(f.published[subj], data)
	return nil
}

func (f *fakeConn) Request(subj string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	f.requests = append(f.requests, subj)
	r, ok := f.replies[subj]
	if !ok {
		return nil, nats.ErrTimeout
	}
	out, _ := json.Marshal(r)
	return &nats.Msg{Subject: subj, Data: out}, nil
}

func (f *fakeConn) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return nil, nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestNATSBridge_SendsCommands(t *testing.T) {
	conn := newFakeConn()
	b := NewNATSBridge(conn, "region1", time.Second)

	require.NoError(t, b.Say("obj-1", 0, "hello"))
	require.NoError(t, b.CommandToClient("agent-1", "client", "mousebtns", "1"))

	require.Len(t, conn.published["region1.cmd.say"], 1)
	var cmd Command
	require.NoError(t, json.Unmarshal(conn.published["region1.cmd.say"][0], &cmd))
	assert.Equal(t, "say", cmd.Op)
	assert.Equal(t, "obj-1", cmd.ID)
	assert.Equal(t, []any{float64(0), "hello"}, cmd.Args)

	assert.Len(t, conn.published["region1.cmd.command_to_client"], 1)
	assert.Equal(t, int64(2), b.Metrics()["published"])
}

func TestNATSBridge_Getters(t *testing.T) {
	conn := newFakeConn()
	conn.replies["scriptcore.cmd.get_position"] = Reply{Value: json.RawMessage(`{"x":1,"y":2,"z":3}`)}
	conn.replies["scriptcore.cmd.agent_full_name"] = Reply{Error: "no such agent"}
	b := NewNATSBridge(conn, "", 0)

	pos, err := b.Position("obj-1")
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: 1, Y: 2, Z: 3}, pos)

	_, err = b.AgentFullName("ghost")
	assert.ErrorContains(t, err, "no such agent")

	_, err = b.Mass("obj-1")
	assert.ErrorIs(t, err, nats.ErrTimeout)

	require.NoError(t, b.Close())
	assert.True(t, conn.closed)
}

func TestNATSBridge_Inbound(t *testing.T) {
	b := NewNATSBridge(newFakeConn(), "", 0)
	in := &recordingInbound{}

	b.handleEvent(in, []byte(`{"kind":"touch_start","args":["obj-1","agent-1"]}`))
	b.handleCreate(in, []byte(`{"id":"obj-2","class":"tree","tag":"forest"}`))
	b.handleEvent(in, []byte(`not json`))

	require.Len(t, in.calls, 2)
	assert.Equal(t, "touch_start", in.calls[0].op)
	assert.Equal(t, []any{"obj-1", "agent-1"}, in.calls[0].args)
	assert.Equal(t, []any{"obj-2", "tree", "forest"}, in.calls[1].args)
	assert.Equal(t, int64(1), b.Metrics()["errors"])
	assert.Equal(t, int64(3), b.Metrics()["received"])
}

func TestNATSBridge_RadiusQueries(t *testing.T) {
	conn := newFakeConn()
	conn.replies["scriptcore.cmd.radius_actors"] = Reply{Value: json.RawMessage(`["obj-1","obj-2"]`)}
	conn.replies["scriptcore.cmd.radius_avatars"] = Reply{Value: json.RawMessage(`[]`)}
	b := NewNATSBridge(conn, "", 0)

	ids, err := b.RadiusActors("obj-1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj-1", "obj-2"}, ids)

	avatars, err := b.RadiusAvatars("obj-1", 10)
	require.NoError(t, err)
	assert.Empty(t, avatars)
	assert.Equal(t, []string{"scriptcore.cmd.radius_actors", "scriptcore.cmd.radius_avatars"}, conn.requests)
}

func TestNATSBridge_StartLocation(t *testing.T) {
	conn := newFakeConn()
	b := NewNATSBridge(conn, "", 0)
	in := &recordingInbound{locErr: errors.New("actor not found: no start location actor")}

	b.handleStartLocation(in, &nats.Msg{Subject: "scriptcore.start_location", Reply: "inbox.1"})
	require.Len(t, conn.published["inbox.1"], 1)
	var miss Reply
	require.NoError(t, json.Unmarshal(conn.published["inbox.1"][0], &miss))
	assert.Contains(t, miss.Error, "no start location actor")
	assert.Empty(t, miss.Value)

	in.locErr = nil
	in.loc = vec.Vec3{X: 128, Y: 128, Z: 25}
	in.lookAt = vec.Vec3{X: 1}
	b.handleStartLocation(in, &nats.Msg{Subject: "scriptcore.start_location", Reply: "inbox.2"})
	require.Len(t, conn.published["inbox.2"], 1)
	var hit Reply
	require.NoError(t, json.Unmarshal(conn.published["inbox.2"][0], &hit))
	assert.Empty(t, hit.Error)
	var sl StartLocation
	require.NoError(t, json.Unmarshal(hit.Value, &sl))
	assert.Equal(t, StartLocation{Location: in.loc, LookAt: in.lookAt}, sl)

	// Без адреса ответа сообщение только учитывается
	b.handleStartLocation(in, &nats.Msg{Subject: "scriptcore.start_location"})
	assert.Equal(t, int64(3), b.Metrics()["received"])
}
