package event

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownKind для имени события нет фабрики
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrBadArgs аргументы не подходят под схему события
	ErrBadArgs = errors.New("bad event arguments")
	// ErrClosed очередь остановлена, события больше не принимаются
	ErrClosed = errors.New("event queue closed")
	// ErrHandlerPanic колбэк актора запаниковал; конкретное значение в HandlerPanic
	ErrHandlerPanic = errors.New("handler panic")
)

// Factory строит событие из аргументов в том виде, в каком их передаёт хост
type Factory func(args []any) (Event, error)

// Factories реестр фабрик по имени события
type Factories map[Kind]Factory

// DefaultFactories возвращает фабрики для всех публикуемых событий.
// timer не публикуется извне: такие записи живут только в очереди таймеров.
func DefaultFactories() Factories {
	return Factories{
		KindTouchStart: func(args []any) (Event, error) {
			if err := need(KindTouchStart, args, 2); err != nil {
				return nil, err
			}
			return NewTouchStart(asString(args[0]), asString(args[1])), nil
		},
		KindSetTimer: func(args []any) (Event, error) {
			if err := need(KindSetTimer, args, 3); err != nil {
				return nil, err
			}
			d, err := asDuration(args[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", KindSetTimer, err)
			}
			loop, err := asBool(args[2])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", KindSetTimer, err)
			}
			return NewSetTimer(asString(args[0]), d, loop), nil
		},
		KindSetTick: func(args []any) (Event, error) {
			if err := need(KindSetTick, args, 2); err != nil {
				return nil, err
			}
			enabled, err := asBool(args[1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", KindSetTick, err)
			}
			return NewSetTick(asString(args[0]), enabled), nil
		},
		KindAddEntity: func(args []any) (Event, error) {
			if err := need(KindAddEntity, args, 1); err != nil {
				return nil, err
			}
			return NewAddEntity(asString(args[0])), nil
		},
		KindRemoveEntity: func(args []any) (Event, error) {
			if err := need(KindRemoveEntity, args, 1); err != nil {
				return nil, err
			}
			return NewRemoveEntity(asString(args[0])), nil
		},
		KindAddPresence: func(args []any) (Event, error) {
			if err := need(KindAddPresence, args, 2); err != nil {
				return nil, err
			}
			return NewAddPresence(asString(args[0]), asString(args[1])), nil
		},
		KindRemovePresence: func(args []any) (Event, error) {
			if err := need(KindRemovePresence, args, 1); err != nil {
				return nil, err
			}
			return NewRemovePresence(asString(args[0])), nil
		},
		KindClientEvent: func(args []any) (Event, error) {
			if err := need(KindClientEvent, args, 2); err != nil {
				return nil, err
			}
			params := make([]string, 0, len(args)-1)
			for _, a := range args[1:] {
				params = append(params, asString(a))
			}
			return NewClientEvent(asString(args[0]), params...), nil
		},
		KindPrimVolumeCollision: func(args []any) (Event, error) {
			if err := need(KindPrimVolumeCollision, args, 2); err != nil {
				return nil, err
			}
			return NewPrimVolumeCollision(asString(args[0]), asString(args[1])), nil
		},
	}
}

// Build создаёт событие по имени
func (f Factories) Build(kind Kind, args ...any) (Event, error) {
	factory, ok := f[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return factory(args)
}

func need(kind Kind, args []any, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s wants %d args, got %d", ErrBadArgs, kind, n, len(args))
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a bool", ErrBadArgs, t)
		}
		return b, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	default:
		return false, fmt.Errorf("%w: %T is not a bool", ErrBadArgs, v)
	}
}

// asDuration принимает time.Duration либо число секунд (как у скриптов хоста).
// Отрицательные, NaN и не влезающие в time.Duration значения отклоняются.
func asDuration(v any) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		if t < 0 {
			return 0, fmt.Errorf("%w: negative duration %v", ErrBadArgs, t)
		}
		return t, nil
	case float64:
		return seconds(t)
	case float32:
		return seconds(float64(t))
	case int:
		return seconds(float64(t))
	case int64:
		return seconds(float64(t))
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return seconds(f)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a duration", ErrBadArgs, t)
		}
		if d < 0 {
			return 0, fmt.Errorf("%w: negative duration %v", ErrBadArgs, d)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a duration", ErrBadArgs, v)
	}
}

// maxSeconds предел, после которого секунды не помещаются в time.Duration
var maxSeconds = float64(math.MaxInt64) / float64(time.Second)

func seconds(f float64) (time.Duration, error) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0, fmt.Errorf("%w: %v is not a duration", ErrBadArgs, f)
	case f < 0:
		return 0, fmt.Errorf("%w: negative duration %vs", ErrBadArgs, f)
	case f >= maxSeconds:
		return 0, fmt.Errorf("%w: duration %vs overflows", ErrBadArgs, f)
	}
	return time.Duration(f * float64(time.Second)), nil
}
