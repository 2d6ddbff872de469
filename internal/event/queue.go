package event

import (
	"fmt"
	"sync"

	"github.com/annel0/script-core/internal/logging"
)

// HandlerPanic ошибка-обёртка для паники внутри обработчика события
type HandlerPanic struct {
	Value any
}

func (p *HandlerPanic) Error() string {
	return fmt.Sprintf("handler panic: %v", p.Value)
}

func (p *HandlerPanic) Unwrap() error { return ErrHandlerPanic }

// Queue двойной буфер событий.
//
// Продюсеры (в том числе из чужих горутин) пишут в неактивный буфер,
// диспетчер раз в тик переключает буферы и вычитывает активный. События,
// опубликованные во время Drain, видны только после следующего Switch.
type Queue struct {
	mu        sync.Mutex
	buffers   [2][]Event
	active    int
	closed    bool
	factories Factories
	log       *logging.Logger
}

// NewQueue создаёт очередь с указанными фабриками (nil - DefaultFactories)
func NewQueue(factories Factories) *Queue {
	if factories == nil {
		factories = DefaultFactories()
	}
	return &Queue{
		factories: factories,
		log:       logging.GetComponentLogger("events"),
	}
}

// Publish строит событие по имени и кладёт его в неактивный буфер.
// Неизвестное имя или плохие аргументы: событие отбрасывается с записью в лог.
func (q *Queue) Publish(kind Kind, args ...any) error {
	ev, err := q.factories.Build(kind, args...)
	if err != nil {
		q.log.Error("Событие %q отброшено: %v", kind, err)
		return err
	}
	if !q.Push(ev) {
		return ErrClosed
	}
	return nil
}

// Push кладёт готовое событие в неактивный буфер. Возвращает false после Close.
func (q *Queue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	inactive := 1 - q.active
	q.buffers[inactive] = append(q.buffers[inactive], ev)
	return true
}

// Switch меняет активный и неактивный буферы; вызывается один раз за тик до Drain
func (q *Queue) Switch() {
	q.mu.Lock()
	q.active = 1 - q.active
	q.mu.Unlock()
}

// pop снимает голову активного буфера
func (q *Queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf := q.buffers[q.active]
	if len(buf) == 0 {
		return nil, false
	}
	ev := buf[0]
	buf[0] = nil
	q.buffers[q.active] = buf[1:]
	if len(q.buffers[q.active]) == 0 {
		q.buffers[q.active] = nil
	}
	return ev, true
}

// Drain вычитывает активный буфер в порядке FIFO. Каждое событие обрабатывается
// изолированно: ошибка или паника обработчика передаётся в report (или в лог,
// если report == nil) и не прерывает остальные события.
func (q *Queue) Drain(handle func(Event) error, report func(Event, error)) (handled, failed int) {
	for {
		ev, ok := q.pop()
		if !ok {
			return handled, failed
		}
		handled++
		if err := q.handleOne(ev, handle); err != nil {
			failed++
			if report != nil {
				report(ev, err)
			} else {
				q.log.Error("Ошибка обработки события %s (%s): %v", ev.Kind(), ev.ID(), err)
			}
		}
	}
}

func (q *Queue) handleOne(ev Event, handle func(Event) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerPanic{Value: r}
		}
	}()
	return handle(ev)
}

// Pending возвращает размеры активного и неактивного буферов
func (q *Queue) Pending() (active, inactive int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffers[q.active]), len(q.buffers[1-q.active])
}

// Close отбрасывает содержимое обоих буферов и запрещает дальнейшую публикацию.
// Возвращает число отброшенных событий.
func (q *Queue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	discarded := len(q.buffers[0]) + len(q.buffers[1])
	q.buffers[0] = nil
	q.buffers[1] = nil
	q.closed = true
	return discarded
}
