package actor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownClass нет фабрики для ключа класса
	ErrUnknownClass = errors.New("unknown actor class")
	// ErrDuplicateClass ключ класса уже занят
	ErrDuplicateClass = errors.New("actor class already registered")
)

// Factory создаёт новый экземпляр класса. Идентичность задаёт Registry.New.
type Factory func() Actor

// Registry каталог классов акторов: стабильный строковый ключ -> фабрика
type Registry struct {
	mu      sync.RWMutex
	classes map[string]Factory
}

// NewRegistry создаёт пустой каталог
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]Factory)}
}

// Register добавляет класс под ключом key
func (r *Registry) Register(key string, f Factory) error {
	if key == "" || f == nil {
		return fmt.Errorf("register class %q: empty key or factory", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, key)
	}
	r.classes[key] = f
	return nil
}

// MustRegister как Register, но паникует при ошибке. Для регистрации при старте.
func (r *Registry) MustRegister(key string, f Factory) {
	if err := r.Register(key, f); err != nil {
		panic(err)
	}
}

// New создаёт актора класса key с идентификатором id и тегом tag
func (r *Registry) New(key, id, tag string) (Actor, error) {
	r.mu.RLock()
	f, ok := r.classes[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, key)
	}

	a := f()
	if a == nil {
		return nil, fmt.Errorf("class %s: factory returned nil", key)
	}
	Init(a, id, tag)
	a.base().class = key
	return a, nil
}

// Has проверяет наличие класса
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[key]
	return ok
}

// Classes возвращает отсортированный список ключей
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classes))
	for k := range r.classes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
