package samples

import (
	"time"

	"github.com/annel0/script-core/internal/actor"
)

const (
	helloRepeat   = 6 * time.Second
	helloDuration = 9 * time.Second
)

// SayHello объёмный триггер: аватар, стоящий внутри, получает подсказку
// не чаще раза в шесть секунд. Хост присылает столкновение примерно раз в секунду.
type SayHello struct {
	actor.Base
	next map[string]time.Duration // agentID -> когда можно показать снова
}

func (s *SayHello) OnCreated() {
	s.next = make(map[string]time.Duration)
	check(s, "volume collision", s.SetUsePrimVolumeCollision(true))
}

func (s *SayHello) OnPrimVolumeCollision(other actor.Actor) {
	av, ok := other.(*actor.Avatar)
	if !ok {
		return
	}
	if s.next == nil {
		s.next = make(map[string]time.Duration)
	}
	now := s.Now()
	if at, seen := s.next[av.AgentID]; seen && now <= at {
		return
	}
	// Истёкшие записи ушедших аватаров больше не нужны
	for agentID, at := range s.next {
		if at < now {
			delete(s.next, agentID)
		}
	}
	s.next[av.AgentID] = now + helloRepeat
	check(s, "tutorial box", av.ShowTutorialBox("This is a nice place to stand for a while", helloDuration))
}
