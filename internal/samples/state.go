package samples

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/script-core/internal/vec"
)

// Поля демо-классов, переживающие перезапуск региона через снимок.
// RestoreState вызывается уже после OnCreated.

type clientScriptingState struct {
	Step int `json:"step"`
}

// SnapshotState сохраняет текущий шаг, чтобы после перезапуска показ продолжился
func (c *ClientScripting) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(clientScriptingState{Step: c.step})
}

func (c *ClientScripting) RestoreState(data json.RawMessage) error {
	var st clientScriptingState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Step < 0 || st.Step >= clientScriptingSteps {
		return fmt.Errorf("client scripting step %d out of range", st.Step)
	}
	c.step = st.Step
	return nil
}

type treeState struct {
	Grow int `json:"grow"`
}

func (t *Tree) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(treeState{Grow: t.grow})
}

// RestoreState возвращает стадию роста и масштаб; таймер роста восстанавливает снимок
func (t *Tree) RestoreState(data json.RawMessage) error {
	var st treeState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Grow < 1 {
		return fmt.Errorf("tree grow %d out of range", st.Grow)
	}
	t.grow = st.Grow
	g := float64(min(t.grow, treeGrowSteps))
	return t.SetScale(vec.Vec3{X: 0.0175 * g, Y: 0.03125 * g, Z: 0.0375 * g})
}

type moverState struct {
	Active bool `json:"active"`
	Leg    int  `json:"leg"`
}

func (m *Mover) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(moverState{Active: m.active, Leg: m.leg})
}

func (m *Mover) RestoreState(data json.RawMessage) error {
	var st moverState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Leg < 0 || st.Leg >= len(moverLegs) {
		return fmt.Errorf("mover leg %d out of range", st.Leg)
	}
	m.active, m.leg = st.Active, st.Leg
	if m.active {
		return m.SetPhysics(true)
	}
	return nil
}
