package subscription

import (
	"sort"
	"sync"

	"github.com/annel0/script-core/internal/logging"
)

// Table именованные топики со списками подписчиков.
// Один подписчик может быть в нескольких топиках; повторная подписка
// даёт повторный вызов - следить за этим должен вызывающий.
type Table[T comparable] struct {
	mu     sync.Mutex
	topics map[string][]T
	log    *logging.Logger
}

// NewTable создаёт пустую таблицу
func NewTable[T comparable]() *Table[T] {
	return &Table[T]{
		topics: make(map[string][]T),
		log:    logging.GetComponentLogger("subscriptions"),
	}
}

// Subscribe добавляет подписчика в конец списка топика
func (t *Table[T]) Subscribe(topic string, s T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics[topic] = append(t.topics[topic], s)
}

// Unsubscribe удаляет одно вхождение подписчика. Неизвестный топик - запись в лог,
// отсутствующий подписчик - ничего не делает.
func (t *Table[T]) Unsubscribe(topic string, s T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	list, ok := t.topics[topic]
	if !ok {
		t.log.Warn("Отписка от несуществующего топика %q", topic)
		return false
	}
	for i, cur := range list {
		if cur == s {
			t.topics[topic] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// UnsubscribeAll удаляет подписчика из всех топиков
func (t *Table[T]) UnsubscribeAll(s T) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for topic, list := range t.topics {
		kept := list[:0:0]
		for _, cur := range list {
			if cur == s {
				removed++
				continue
			}
			kept = append(kept, cur)
		}
		t.topics[topic] = kept
	}
	return removed
}

// Subscribers возвращает копию списка подписчиков топика в порядке подписки
func (t *Table[T]) Subscribers(topic string) []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.topics[topic]
	out := make([]T, len(list))
	copy(out, list)
	return out
}

// Topics возвращает отсортированный список топиков с подписчиками
func (t *Table[T]) Topics() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.topics))
	for topic, list := range t.topics {
		if len(list) > 0 {
			out = append(out, topic)
		}
	}
	sort.Strings(out)
	return out
}

// Contains проверяет, подписан ли s хотя бы на один топик
func (t *Table[T]) Contains(s T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, list := range t.topics {
		for _, cur := range list {
			if cur == s {
				return true
			}
		}
	}
	return false
}

// Clear очищает таблицу
func (t *Table[T]) Clear() {
	t.mu.Lock()
	t.topics = make(map[string][]T)
	t.mu.Unlock()
}
