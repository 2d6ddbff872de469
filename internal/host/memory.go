package host

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/script-core/internal/logging"
	"github.com/annel0/script-core/internal/vec"
)

// Call запись исходящего вызова, принятого Memory-хостом
type Call struct {
	Op   string
	ID   string
	Args []any
}

// DefaultCallLogSize сколько последних исходящих вызовов помнит Memory-хост
const DefaultCallLogSize = 1024

type props struct {
	pos      vec.Vec3
	rot      vec.Quat
	vel      vec.Vec3
	scale    vec.Vec3
	physics  bool
	mass     float64
	mesh     string
	volCol   bool
	avatar   bool
	material map[int]string
}

// Memory хост внутри процесса: хранит свойства объектов в памяти и журналирует
// последние исходящие вызовы. Используется для локального запуска и в тестах.
type Memory struct {
	mu       sync.Mutex
	entities map[string]*props
	agents   map[string]string // agentID -> полное имя
	presence map[string]string // agentID -> id объекта аватара
	index    *SpatialIndex

	// журнал вызовов - кольцевой буфер на callLimit записей
	calls     []Call
	callHead  int
	callLimit int
	dropped   int

	inbound Inbound
	log     *logging.Logger
}

// MemoryOption настройка Memory-хоста
type MemoryOption func(*Memory)

// WithCallLog задаёт размер журнала вызовов; 0 отключает журнал
func WithCallLog(size int) MemoryOption {
	return func(m *Memory) {
		if size < 0 {
			size = 0
		}
		m.callLimit = size
	}
}

// WithCellSize задаёт размер ячейки пространственного индекса
func WithCellSize(size float64) MemoryOption {
	return func(m *Memory) { m.index = NewSpatialIndex(size) }
}

// NewMemory создаёт пустой хост
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entities:  make(map[string]*props),
		agents:    make(map[string]string),
		presence:  make(map[string]string),
		index:     NewSpatialIndex(0),
		callLimit: DefaultCallLogSize,
		log:       logging.GetHostLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach связывает хост с ядром: SpawnActor/DestroyActor будут вызывать его точки входа
func (m *Memory) Attach(in Inbound) {
	m.mu.Lock()
	m.inbound = in
	m.mu.Unlock()
}

// AddAgent регистрирует имя пользователя
func (m *Memory) AddAgent(agentID, fullName string) {
	m.mu.Lock()
	m.agents[agentID] = fullName
	m.mu.Unlock()
}

// AddAvatar помещает аватар агента в сцену: объект objectID в точке pos
func (m *Memory) AddAvatar(objectID, agentID, fullName string, pos vec.Vec3) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agents[agentID] = fullName
	m.presence[agentID] = objectID
	p := m.entity(objectID)
	p.avatar = true
	p.pos = pos
	m.index.Upsert(objectID, pos, true)
}

// RemoveAvatar убирает аватар агента из сцены
func (m *Memory) RemoveAvatar(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	objectID, ok := m.presence[agentID]
	if !ok {
		return
	}
	delete(m.presence, agentID)
	delete(m.entities, objectID)
	m.index.Remove(objectID)
}

// Calls возвращает копию журнала вызовов, от старых к новым
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderedCalls()
}

// CallsOf возвращает вызовы с указанной операцией
func (m *Memory) CallsOf(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.orderedCalls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// DroppedCalls сколько вызовов вытеснено из журнала
func (m *Memory) DroppedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *Memory) orderedCalls() []Call {
	out := make([]Call, 0, len(m.calls))
	out = append(out, m.calls[m.callHead:]...)
	return append(out, m.calls[:m.callHead]...)
}

func (m *Memory) record(op, id string, args ...any) {
	if m.callLimit == 0 {
		m.dropped++
		return
	}
	c := Call{Op: op, ID: id, Args: args}
	if len(m.calls) < m.callLimit {
		m.calls = append(m.calls, c)
		return
	}
	m.calls[m.callHead] = c
	m.callHead = (m.callHead + 1) % m.callLimit
	m.dropped++
}

// entity возвращает свойства объекта, заводя их при первом обращении
func (m *Memory) entity(id string) *props {
	p, ok := m.entities[id]
	if !ok {
		p = &props{rot: vec.IdentityQuat, scale: vec.Vec3{X: 1, Y: 1, Z: 1}, mass: 1, material: map[int]string{}}
		m.entities[id] = p
		m.index.Upsert(id, p.pos, false)
	}
	return p
}

func (m *Memory) Position(id string) (vec.Vec3, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity(id).pos, nil
}

func (m *Memory) SetPosition(id string, pos vec.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.entity(id)
	p.pos = pos
	m.index.Upsert(id, pos, p.avatar)
	m.record("set_position", id, pos)
	return nil
}

func (m *Memory) Rotation(id string) (vec.Quat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity(id).rot, nil
}

func (m *Memory) SetRotation(id string, rot vec.Quat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).rot = rot
	m.record("set_rotation", id, rot)
	return nil
}

func (m *Memory) Velocity(id string) (vec.Vec3, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity(id).vel, nil
}

func (m *Memory) SetVelocity(id string, v vec.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).vel = v
	m.record("set_velocity", id, v)
	return nil
}

func (m *Memory) Scale(id string) (vec.Vec3, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity(id).scale, nil
}

func (m *Memory) SetScale(id string, s vec.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).scale = s
	m.record("set_scale", id, s)
	return nil
}

func (m *Memory) Physics(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity(id).physics, nil
}

func (m *Memory) SetPhysics(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).physics = enabled
	m.record("set_physics", id, enabled)
	return nil
}

func (m *Memory) Mass(id string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entity(id).mass, nil
}

func (m *Memory) SetMass(id string, mass float64) error {
	if mass < 0 {
		return fmt.Errorf("negative mass %.2f for %s", mass, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).mass = mass
	m.record("set_mass", id, mass)
	return nil
}

func (m *Memory) SetMesh(id string, mesh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).mesh = mesh
	m.record("set_mesh", id, mesh)
	return nil
}

func (m *Memory) SetMaterial(id string, index int, material string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).material[index] = material
	m.record("set_material", id, index, material)
	return nil
}

func (m *Memory) SetUsePrimVolumeCollision(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entity(id).volCol = enabled
	m.record("set_prim_volume_collision", id, enabled)
	return nil
}

func (m *Memory) Say(id string, channel int, text string) error {
	return m.message("say", id, channel, text)
}

func (m *Memory) Shout(id string, channel int, text string) error {
	return m.message("shout", id, channel, text)
}

func (m *Memory) Whisper(id string, channel int, text string) error {
	return m.message("whisper", id, channel, text)
}

func (m *Memory) message(op, id string, channel int, text string) error {
	m.mu.Lock()
	m.record(op, id, channel, text)
	m.mu.Unlock()
	m.log.Debug("%s [%s] ch=%d: %s", op, id, channel, text)
	return nil
}

func (m *Memory) SendGeneralAlertAll(id string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("alert_all", id, text)
	return nil
}

func (m *Memory) SendAlertToAvatar(id, agentID, text string, modal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("alert_avatar", id, agentID, text, modal)
	return nil
}

// SpawnActor заводит новый объект и создаёт для него актора класса class
func (m *Memory) SpawnActor(pos vec.Vec3, class string, temporary bool) (string, error) {
	id := uuid.NewString()

	m.mu.Lock()
	m.entity(id).pos = pos
	m.index.Upsert(id, pos, false)
	m.record("spawn", id, pos, class, temporary)
	in := m.inbound
	m.mu.Unlock()

	if in != nil {
		if err := in.CreateEntity(id, class, ""); err != nil {
			m.mu.Lock()
			delete(m.entities, id)
			m.index.Remove(id)
			m.mu.Unlock()
			return "", err
		}
	}
	return id, nil
}

// DestroyActor удаляет объект и сообщает ядру событием remove_entity.
// Объект без свойств на стороне хоста (создан через ядро напрямую) тоже удаляется.
func (m *Memory) DestroyActor(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownEntity)
	}
	m.mu.Lock()
	delete(m.entities, id)
	m.index.Remove(id)
	m.record("destroy", id)
	in := m.inbound
	m.mu.Unlock()

	if in != nil {
		return in.PublishEvent("remove_entity", id)
	}
	return nil
}

func (m *Memory) AgentFullName(agentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.agents[agentID]
	if !ok {
		return "", fmt.Errorf("%w: agent %s", ErrUnknownEntity, agentID)
	}
	return name, nil
}

// RadiusActors объекты и аватары строго ближе radius к объекту id
func (m *Memory) RadiusActors(id string, radius float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.QueryRange(m.entity(id).pos, radius, false), nil
}

// RadiusAvatars только аватары строго ближе radius к объекту id
func (m *Memory) RadiusAvatars(id string, radius float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.QueryRange(m.entity(id).pos, radius, true), nil
}

func (m *Memory) Teleport(agentID string, pos vec.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if objectID, ok := m.presence[agentID]; ok {
		m.entity(objectID).pos = pos
		m.index.Upsert(objectID, pos, true)
	}
	m.record("teleport", agentID, pos)
	return nil
}

func (m *Memory) SetMovementModifier(agentID string, modifier float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("movement_modifier", agentID, modifier)
	return nil
}

func (m *Memory) CommandToClient(agentID, unit, command, params string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("command_to_client", agentID, unit, command, params)
	return nil
}
