package actor

import (
	"fmt"
	"time"

	"github.com/annel0/script-core/internal/host"
	"github.com/annel0/script-core/internal/vec"
)

// AvatarClass ключ класса, под которым аватары видны в реестре и снимках
const AvatarClass = "avatar"

// Avatar представление пользователя в регионе. Помимо идентификатора объекта
// несёт идентификатор агента, по которому его находит индекс аватаров.
type Avatar struct {
	Base
	AgentID string
}

// NewAvatar создаёт аватар для объекта objectID и агента agentID
func NewAvatar(objectID, agentID string) *Avatar {
	av := &Avatar{AgentID: agentID}
	Init(av, objectID, "")
	av.class = AvatarClass
	return av
}

// FullName имя пользователя, как его знает хост
func (a *Avatar) FullName() (string, error) {
	var name string
	err := a.hostCall(func(h host.Host) (err error) {
		name, err = h.AgentFullName(a.AgentID)
		return err
	})
	return name, err
}

// Teleport локальный телепорт аватара внутри региона
func (a *Avatar) Teleport(pos vec.Vec3) error {
	return a.hostCall(func(h host.Host) error { return h.Teleport(a.AgentID, pos) })
}

// SetPosition для аватара это локальный телепорт
func (a *Avatar) SetPosition(pos vec.Vec3) error {
	return a.Teleport(pos)
}

// SetMovementModifier множитель скорости передвижения
func (a *Avatar) SetMovementModifier(modifier float64) error {
	return a.hostCall(func(h host.Host) error { return h.SetMovementModifier(a.AgentID, modifier) })
}

// HUD

func (a *Avatar) ShowInventoryMessage(msg string) error {
	return a.CommandToClient(a.AgentID, "hud", fmt.Sprintf("ShowInventoryMessage(%q)", msg), "")
}

func (a *Avatar) ShowScrollMessage(msg string, d time.Duration) error {
	return a.CommandToClient(a.AgentID, "hud", fmt.Sprintf("ShowScrollMessage(%q,%g)", msg, d.Seconds()), "")
}

func (a *Avatar) ShowTutorialBox(msg string, d time.Duration) error {
	return a.CommandToClient(a.AgentID, "hud", fmt.Sprintf("ShowTutorialBox(%q,%g)", msg, d.Seconds()), "")
}

// DoFadeInOut затемнение экрана: fade in, пауза, fade out
func (a *Avatar) DoFadeInOut(in, between, out time.Duration) error {
	cmd := fmt.Sprintf("DoFadeInOut(%g,%g,%g)", in.Seconds(), between.Seconds(), out.Seconds())
	return a.CommandToClient(a.AgentID, "hud", cmd, "")
}

// SetSendMouseClickEvents включает отправку кликов клиентом (события lmb/rmb)
func (a *Avatar) SetSendMouseClickEvents(enabled bool) error {
	return a.CommandToClient(a.AgentID, "client", "mousebtns", flag(enabled))
}

// SetSendMouseWheelEvents включает отправку колеса мыши (событие mw)
func (a *Avatar) SetSendMouseWheelEvents(enabled bool) error {
	return a.CommandToClient(a.AgentID, "client", "mousewheel", flag(enabled))
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
