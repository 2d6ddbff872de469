package samples

import (
	"time"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/event"
)

// ClientScripting по очереди показывает все клиентские команды: сообщения
// HUD, затемнение, включение и выключение событий мыши. Каждое касание
// переходит к следующему шагу.
type ClientScripting struct {
	actor.Base
	step int
}

const clientScriptingSteps = 8

func (c *ClientScripting) OnTouch(av *actor.Avatar) {
	var sent string
	switch c.step {
	case 0:
		check(c, "hud", av.ShowInventoryMessage("This is a message from server"))
		sent = "ShowInventoryMessage command"
	case 1:
		check(c, "hud", av.ShowScrollMessage("This is a scrolling message from server lasting 10 seconds", 10*time.Second))
		sent = "ShowScrollMessage command"
	case 2:
		check(c, "hud", av.ShowTutorialBox("This is a tutorial message box from server lasting 10 seconds", 10*time.Second))
		sent = "ShowTutorialBox command"
	case 3:
		check(c, "hud", av.DoFadeInOut(3*time.Second, 3*time.Second, 3*time.Second))
		sent = "DoFadeInOut command"
	case 4:
		check(c, "subscribe", c.Subscribe(event.CommandLeftMouse))
		check(c, "subscribe", c.Subscribe(event.CommandRightMouse))
		check(c, "client", av.SetSendMouseClickEvents(true))
		sent = "client-enablesendmousebtns"
	case 5:
		check(c, "unsubscribe", c.Unsubscribe(event.CommandLeftMouse))
		check(c, "unsubscribe", c.Unsubscribe(event.CommandRightMouse))
		check(c, "client", av.SetSendMouseClickEvents(false))
		sent = "client-disablesendmousebtns"
	case 6:
		check(c, "subscribe", c.Subscribe(event.CommandMouseWheel))
		check(c, "client", av.SetSendMouseWheelEvents(true))
		sent = "client-enablesendmousewheel"
	case 7:
		check(c, "unsubscribe", c.Unsubscribe(event.CommandMouseWheel))
		check(c, "client", av.SetSendMouseWheelEvents(false))
		sent = "client-disablesendmousewheel"
	}
	check(c, "shout", c.Shout(0, c.ID()+" sent "+sent+" to client "+fullName(av)))

	c.step = (c.step + 1) % clientScriptingSteps
}

func (c *ClientScripting) OnLeftMouseButton(av *actor.Avatar) {
	check(c, "shout", c.Shout(0, "Left mouse button was pressed by "+fullName(av)))
}

func (c *ClientScripting) OnRightMouseButton(av *actor.Avatar) {
	check(c, "shout", c.Shout(0, "Right mouse button was pressed by "+fullName(av)))
}

// OnMouseWheel action "-1" - вверх, остальное - вниз
func (c *ClientScripting) OnMouseWheel(av *actor.Avatar, action string) {
	dir := "down"
	if action == "-1" {
		dir = "up"
	}
	check(c, "shout", c.Shout(0, "Mouse wheel "+dir+" by "+fullName(av)))
}

// ArmChair витрина: первое касание - короткая подсказка, второе - описание
type ArmChair struct {
	actor.Base
	detailed bool
}

func (a *ArmChair) OnTouch(av *actor.Avatar) {
	if !a.detailed {
		check(a, "hud", av.ShowTutorialBox("RXR armchair for sale by rexuser, click again for more info", 6*time.Second))
	} else {
		check(a, "hud", av.ShowScrollMessage("RXR chair is very comfy to sit on. It features ultra modern fibers making sitting in it a comfortable experience.", 30*time.Second))
	}
	a.detailed = !a.detailed
}
