package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/script-core/internal/logging"
	"github.com/annel0/script-core/internal/vec"
)

// natsConn подмножество *nats.Conn, которым пользуется мост
type natsConn interface {
	Publish(subj string, data []byte) error
	Request(subj string, data []byte, timeout time.Duration) (*nats.Msg, error)
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// Command исходящая команда хосту, публикуется в <prefix>.cmd.<op>
type Command struct {
	Op   string `json:"op"`
	ID   string `json:"id"`
	Args []any  `json:"args,omitempty"`
}

// Reply ответ хоста на запрос-геттер
type Reply struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// InboundEvent сообщение <prefix>.event
type InboundEvent struct {
	Kind string `json:"kind"`
	Args []any  `json:"args"`
}

// InboundCreate сообщение <prefix>.create
type InboundCreate struct {
	ID    string `json:"id"`
	Class string `json:"class"`
	Tag   string `json:"tag"`
}

// NATSBridge связывает ядро с движком, живущим в другом процессе.
//
// Исходящие вызовы Host превращаются в JSON-команды, геттеры и SpawnActor
// выполняются через request/reply. Входящие события хоста приходят
// в <prefix>.event и <prefix>.create и передаются в Inbound.
type NATSBridge struct {
	conn    natsConn
	prefix  string
	timeout time.Duration

	mu   sync.Mutex
	subs []*nats.Subscription

	published int64
	received  int64
	errors    int64

	log *logging.Logger
}

// ConnectNATS подключается к серверу NATS и создаёт мост
func ConnectNATS(url, prefix string, timeout time.Duration) (*NATSBridge, error) {
	opts := []nats.Option{
		nats.Name("script-core"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATSBridge(nc, prefix, timeout), nil
}

// NewNATSBridge создаёт мост поверх готового соединения
func NewNATSBridge(conn natsConn, prefix string, timeout time.Duration) *NATSBridge {
	if prefix == "" {
		prefix = "scriptcore"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NATSBridge{
		conn:    conn,
		prefix:  prefix,
		timeout: timeout,
		log:     logging.GetHostLogger(),
	}
}

func (b *NATSBridge) subject(parts ...string) string {
	s := b.prefix
	for _, p := range parts {
		s += "." + p
	}
	return s
}

// Serve подписывается на входящие события хоста и передаёт их в in
func (b *NATSBridge) Serve(in Inbound) error {
	evSub, err := b.conn.Subscribe(b.subject("event"), func(msg *nats.Msg) {
		b.handleEvent(in, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject("event"), err)
	}
	crSub, err := b.conn.Subscribe(b.subject("create"), func(msg *nats.Msg) {
		b.handleCreate(in, msg.Data)
	})
	if err != nil {
		if evSub != nil {
			_ = evSub.Unsubscribe()
		}
		return fmt.Errorf("subscribe %s: %w", b.subject("create"), err)
	}

	locSub, err := b.conn.Subscribe(b.subject("start_location"), func(msg *nats.Msg) {
		b.handleStartLocation(in, msg)
	})
	if err != nil {
		for _, s := range []*nats.Subscription{evSub, crSub} {
			if s != nil {
				_ = s.Unsubscribe()
			}
		}
		return fmt.Errorf("subscribe %s: %w", b.subject("start_location"), err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, evSub, crSub, locSub)
	b.mu.Unlock()

	b.log.Info("📡 Мост NATS слушает %s.{event,create,start_location}", b.prefix)
	return nil
}

func (b *NATSBridge) handleEvent(in Inbound, data []byte) {
	atomic.AddInt64(&b.received, 1)

	var msg InboundEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		atomic.AddInt64(&b.errors, 1)
		b.log.Error("Некорректное событие от хоста: %v", err)
		return
	}
	if err := in.PublishEvent(msg.Kind, msg.Args...); err != nil {
		atomic.AddInt64(&b.errors, 1)
		b.log.Warn("Событие %s не принято: %v", msg.Kind, err)
	}
}

func (b *NATSBridge) handleCreate(in Inbound, data []byte) {
	atomic.AddInt64(&b.received, 1)

	var msg InboundCreate
	if err := json.Unmarshal(data, &msg); err != nil {
		atomic.AddInt64(&b.errors, 1)
		b.log.Error("Некорректный запрос создания от хоста: %v", err)
		return
	}
	if err := in.CreateEntity(msg.ID, msg.Class, msg.Tag); err != nil {
		atomic.AddInt64(&b.errors, 1)
		b.log.Warn("Не удалось создать %s (%s): %v", msg.ID, msg.Class, err)
	}
}

// StartLocation ответ на <prefix>.start_location
type StartLocation struct {
	Location vec.Vec3 `json:"location"`
	LookAt   vec.Vec3 `json:"look_at"`
}

// handleStartLocation отвечает движку точкой появления аватаров
func (b *NATSBridge) handleStartLocation(in Inbound, msg *nats.Msg) {
	atomic.AddInt64(&b.received, 1)
	if msg.Reply == "" {
		return
	}

	var reply Reply
	loc, lookAt, err := in.AvatarStartLocation()
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Value, err = json.Marshal(StartLocation{Location: loc, LookAt: lookAt})
		if err != nil {
			reply.Error = err.Error()
		}
	}
	data, err := json.Marshal(reply)
	if err != nil {
		atomic.AddInt64(&b.errors, 1)
		return
	}
	if err := b.conn.Publish(msg.Reply, data); err != nil {
		atomic.AddInt64(&b.errors, 1)
		b.log.Warn("Не удалось ответить на %s: %v", msg.Subject, err)
	}
}

// Close снимает подписки и закрывает соединение
func (b *NATSBridge) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		if s != nil {
			_ = s.Unsubscribe()
		}
	}
	b.conn.Close()
	return nil
}

// Metrics счётчики моста
func (b *NATSBridge) Metrics() map[string]int64 {
	return map[string]int64{
		"published": atomic.LoadInt64(&b.published),
		"received":  atomic.LoadInt64(&b.received),
		"errors":    atomic.LoadInt64(&b.errors),
	}
}

// send публикует команду без ожидания ответа
func (b *NATSBridge) send(op, id string, args ...any) error {
	data, err := json.Marshal(Command{Op: op, ID: id, Args: args})
	if err != nil {
		atomic.AddInt64(&b.errors, 1)
		return fmt.Errorf("marshal %s: %w", op, err)
	}
	if err := b.conn.Publish(b.subject("cmd", op), data); err != nil {
		atomic.AddInt64(&b.errors, 1)
		return fmt.Errorf("publish %s: %w", op, err)
	}
	atomic.AddInt64(&b.published, 1)
	return nil
}

// request выполняет команду с ответом и раскладывает значение в out
func (b *NATSBridge) request(op, id string, out any, args ...any) error {
	data, err := json.Marshal(Command{Op: op, ID: id, Args: args})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}
	msg, err := b.conn.Request(b.subject("cmd", op), data, b.timeout)
	if err != nil {
		atomic.AddInt64(&b.errors, 1)
		return fmt.Errorf("request %s: %w", op, err)
	}
	atomic.AddInt64(&b.published, 1)

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("decode %s reply: %w", op, err)
	}
	if reply.Error != "" {
		return fmt.Errorf("%s %s: %w", op, id, errors.New(reply.Error))
	}
	if out == nil || len(reply.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Value, out); err != nil {
		return fmt.Errorf("decode %s value: %w", op, err)
	}
	return nil
}

func (b *NATSBridge) Position(id string) (pos vec.Vec3, err error) {
	err = b.request("get_position", id, &pos)
	return pos, err
}

func (b *NATSBridge) SetPosition(id string, pos vec.Vec3) error {
	return b.send("set_position", id, pos)
}

func (b *NATSBridge) Rotation(id string) (rot vec.Quat, err error) {
	err = b.request("get_rotation", id, &rot)
	return rot, err
}

func (b *NATSBridge) SetRotation(id string, rot vec.Quat) error {
	return b.send("set_rotation", id, rot)
}

func (b *NATSBridge) Velocity(id string) (v vec.Vec3, err error) {
	err = b.request("get_velocity", id, &v)
	return v, err
}

func (b *NATSBridge) SetVelocity(id string, v vec.Vec3) error {
	return b.send("set_velocity", id, v)
}

func (b *NATSBridge) Scale(id string) (s vec.Vec3, err error) {
	err = b.request("get_scale", id, &s)
	return s, err
}

func (b *NATSBridge) SetScale(id string, s vec.Vec3) error {
	return b.send("set_scale", id, s)
}

func (b *NATSBridge) Physics(id string) (on bool, err error) {
	err = b.request("get_physics", id, &on)
	return on, err
}

func (b *NATSBridge) SetPhysics(id string, enabled bool) error {
	return b.send("set_physics", id, enabled)
}

func (b *NATSBridge) Mass(id string) (mass float64, err error) {
	err = b.request("get_mass", id, &mass)
	return mass, err
}

func (b *NATSBridge) SetMass(id string, mass float64) error {
	return b.send("set_mass", id, mass)
}

func (b *NATSBridge) SetMesh(id string, mesh string) error {
	return b.send("set_mesh", id, mesh)
}

func (b *NATSBridge) SetMaterial(id string, index int, material string) error {
	return b.send("set_material", id, index, material)
}

func (b *NATSBridge) SetUsePrimVolumeCollision(id string, enabled bool) error {
	return b.send("set_prim_volume_collision", id, enabled)
}

func (b *NATSBridge) Say(id string, channel int, text string) error {
	return b.send("say", id, channel, text)
}

func (b *NATSBridge) Shout(id string, channel int, text string) error {
	return b.send("shout", id, channel, text)
}

func (b *NATSBridge) Whisper(id string, channel int, text string) error {
	return b.send("whisper", id, channel, text)
}

func (b *NATSBridge) SendGeneralAlertAll(id string, text string) error {
	return b.send("alert_all", id, text)
}

func (b *NATSBridge) SendAlertToAvatar(id, agentID, text string, modal bool) error {
	return b.send("alert_avatar", id, agentID, text, modal)
}

// SpawnActor создание объекта на стороне движка; движок сам пришлёт <prefix>.create
func (b *NATSBridge) SpawnActor(pos vec.Vec3, class string, temporary bool) (id string, err error) {
	err = b.request("spawn", "", &id, pos, class, temporary)
	return id, err
}

func (b *NATSBridge) DestroyActor(id string) error {
	return b.send("destroy", id)
}

func (b *NATSBridge) RadiusActors(id string, radius float64) (ids []string, err error) {
	err = b.request("radius_actors", id, &ids, radius)
	return ids, err
}

func (b *NATSBridge) RadiusAvatars(id string, radius float64) (ids []string, err error) {
	err = b.request("radius_avatars", id, &ids, radius)
	return ids, err
}

func (b *NATSBridge) AgentFullName(agentID string) (name string, err error) {
	err = b.request("agent_full_name", agentID, &name)
	return name, err
}

func (b *NATSBridge) Teleport(agentID string, pos vec.Vec3) error {
	return b.send("teleport", agentID, pos)
}

func (b *NATSBridge) SetMovementModifier(agentID string, modifier float64) error {
	return b.send("movement_modifier", agentID, modifier)
}

func (b *NATSBridge) CommandToClient(agentID, unit, command, params string) error {
	return b.send("command_to_client", agentID, unit, command, params)
}
