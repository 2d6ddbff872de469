package world

import (
	"errors"

	"github.com/annel0/script-core/internal/event"
)

var (
	// ErrActorNotFound событие или таймер ссылается на отсутствующего актора
	ErrActorNotFound = errors.New("actor not found")
	// ErrAvatarNotFound нет аватара для агента
	ErrAvatarNotFound = errors.New("avatar not found")
	// ErrDuplicateActor актор с таким идентификатором уже есть в мире
	ErrDuplicateActor = errors.New("duplicate actor")
	// ErrStopping мир проходит завершение и не принимает новых акторов
	ErrStopping = errors.New("world is shutting down")
	// ErrHandlerPanic паника в колбэке актора
	ErrHandlerPanic = event.ErrHandlerPanic
)

// IsLookupMiss ошибка из семейства «не найдено»: пишется в лог как предупреждение
func IsLookupMiss(err error) bool {
	return errors.Is(err, ErrActorNotFound) || errors.Is(err, ErrAvatarNotFound)
}
