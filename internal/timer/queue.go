package timer

import (
	"sync"
	"time"

	"github.com/annel0/script-core/internal/event"
)

// FireFunc вызывается для каждого сработавшего таймера. Возвращает параметры
// повторного взвода, прочитанные с актора уже после его колбэка.
type FireFunc func(entry event.Timer) (again time.Duration, loop bool)

// Queue отсортированный по времени срабатывания список таймеров.
// На каждого актора приходится не более одной записи. Список обычно короткий,
// поэтому вставка и удаление - линейный проход.
type Queue struct {
	mu      sync.Mutex
	entries []event.Timer
}

// NewQueue создаёт пустую очередь
func NewQueue() *Queue {
	return &Queue{}
}

// Set снимает прежний таймер актора и, если d > 0, ставит новый на now+d.
// Возвращает true, если запись поставлена.
func (q *Queue) Set(actorID string, d time.Duration, loop bool, now time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(actorID)
	if d <= 0 {
		return false
	}
	q.insertLocked(event.NewTimer(actorID, now+d, loop))
	return true
}

// Cancel снимает таймер актора, если он есть
func (q *Queue) Cancel(actorID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(actorID)
}

func (q *Queue) removeLocked(actorID string) bool {
	for i, e := range q.entries {
		if e.ObjectID == actorID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// insertLocked вставляет перед первой записью с большим временем, иначе в хвост
func (q *Queue) insertLocked(t event.Timer) {
	for i, e := range q.entries {
		if t.FireAt < e.FireAt {
			q.entries = append(q.entries, event.Timer{})
			copy(q.entries[i+1:], q.entries[i:])
			q.entries[i] = t
			return
		}
	}
	q.entries = append(q.entries, t)
}

// popDue снимает голову, если она уже должна сработать
func (q *Queue) popDue(now time.Duration) (event.Timer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 || q.entries[0].FireAt > now {
		return event.Timer{}, false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}

// PopDue снимает и отдаёт в fire все записи с FireAt <= now в порядке времени.
// Зацикленный таймер взводится заново от now (а не от исходного расписания),
// так что под нагрузкой интервал «плывёт».
func (q *Queue) PopDue(now time.Duration, fire FireFunc) int {
	fired := 0
	for {
		entry, ok := q.popDue(now)
		if !ok {
			return fired
		}
		fired++
		again, loop := fire(entry)
		if loop && again > 0 {
			q.Set(entry.ObjectID, again, true, now)
		}
	}
}

// Pending возвращает запись таймера актора
func (q *Queue) Pending(actorID string) (event.Timer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.ObjectID == actorID {
			return e, true
		}
	}
	return event.Timer{}, false
}

// Entries возвращает копию очереди
func (q *Queue) Entries() []event.Timer {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]event.Timer, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len количество ожидающих таймеров
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear отбрасывает все таймеры, возвращает их количество
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	q.entries = nil
	return n
}
