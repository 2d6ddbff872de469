// Package snapshot сохраняет и восстанавливает состояние акторов региона:
// идентификатор, класс, тег, таймер, флаг тика и собственные поля акторов,
// реализующих Stateful. Аватары не сохраняются, они возвращаются в регион
// через presence-события хоста.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/script-core/internal/actor"
	"github.com/annel0/script-core/internal/logging"
	"github.com/annel0/script-core/internal/world"
)

// ErrNotFound снимок региона отсутствует в хранилище
var ErrNotFound = errors.New("snapshot not found")

// Stateful актор с собственным состоянием, переживающим перезапуск региона.
// RestoreState вызывается после OnCreated, поэтому перекрывает значения из хука.
type Stateful interface {
	SnapshotState() (json.RawMessage, error)
	RestoreState(data json.RawMessage) error
}

// ActorState сохранённое состояние одного актора
type ActorState struct {
	ID             string          `json:"id"`
	Class          string          `json:"class"`
	Tag            string          `json:"tag,omitempty"`
	TimerRemaining time.Duration   `json:"timer_remaining,omitempty"`
	TimerDuration  time.Duration   `json:"timer_duration,omitempty"`
	TimerLoop      bool            `json:"timer_loop,omitempty"`
	Ticked         bool            `json:"ticked,omitempty"`
	State          json.RawMessage `json:"state,omitempty"`
}

// Snapshot состояние региона на момент TakenAt
type Snapshot struct {
	Region  string        `json:"region"`
	TakenAt time.Time     `json:"taken_at"`
	Now     time.Duration `json:"now"`
	Actors  []ActorState  `json:"actors"`
}

// Store хранилище сжатых снимков
type Store interface {
	Save(ctx context.Context, region string, data []byte) error
	// Load возвращает ErrNotFound, если снимка нет
	Load(ctx context.Context, region string) ([]byte, error)
	Close() error
}

// Capture снимает состояние всех акторов мира, кроме аватаров.
// Ошибка SnapshotState актора только логируется, актор сохраняется без полей.
func Capture(w *world.World, region string) *Snapshot {
	log := logging.GetSnapshotLogger()
	snap := &Snapshot{
		Region:  region,
		TakenAt: time.Now().UTC(),
		Now:     w.Now(),
	}
	for _, info := range w.Inspect() {
		if info.Class == actor.AvatarClass {
			continue
		}
		st := ActorState{
			ID:     info.ID,
			Class:  info.Class,
			Tag:    info.Tag,
			Ticked: info.Ticked,
		}
		if info.TimerPending {
			st.TimerRemaining = info.TimerRemaining
			st.TimerDuration = info.TimerDuration
			st.TimerLoop = info.TimerLoop
		}
		if a, ok := w.Lookup(info.ID); ok {
			if sf, ok := a.(Stateful); ok {
				err := safely(func() (err error) {
					st.State, err = sf.SnapshotState()
					return err
				})
				if err != nil {
					log.Warn("Состояние актора %s не сохранено: %v", info.ID, err)
					st.State = nil
				}
			}
		}
		snap.Actors = append(snap.Actors, st)
	}
	return snap
}

// Restore пересоздаёт акторов снимка и запускает мир. Хуки создания
// срабатывают первыми вместе с событиями, которые они опубликовали, затем
// поверх применяются сохранённые поля, таймеры и флаги тика. Ошибки по
// отдельным акторам не прерывают восстановление остальных.
func Restore(w *world.World, snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	log := logging.GetSnapshotLogger()

	var errs []error
	var created []ActorState
	for _, st := range snap.Actors {
		if err := w.CreateEntity(st.ID, st.Class, st.Tag); err != nil {
			errs = append(errs, fmt.Errorf("actor %s: %w", st.ID, err))
			continue
		}
		created = append(created, st)
	}

	// Второй проход нужен работающему миру: хуки сработают на add_entity,
	// а их события попадут в следующий буфер
	w.Start()
	w.DrainEvents()
	w.DrainEvents()

	for _, st := range created {
		a, ok := w.Lookup(st.ID)
		if !ok {
			errs = append(errs, fmt.Errorf("actor %s: %w", st.ID, world.ErrActorNotFound))
			continue
		}
		if len(st.State) > 0 {
			if sf, ok := a.(Stateful); ok {
				if err := safely(func() error { return sf.RestoreState(st.State) }); err != nil {
					errs = append(errs, fmt.Errorf("actor %s state: %w", st.ID, err))
				}
			}
		}

		w.CancelTimer(st.ID)
		if st.TimerRemaining > 0 {
			if err := w.SetTimer(st.ID, st.TimerRemaining, st.TimerLoop); err != nil {
				errs = append(errs, fmt.Errorf("actor %s timer: %w", st.ID, err))
			} else {
				// первое срабатывание через остаток, дальше с полным периодом
				actor.BaseOf(a).StoreTimerSettings(st.TimerDuration, st.TimerLoop)
			}
		}

		if st.Ticked {
			if err := w.EnableTick(st.ID); err != nil {
				errs = append(errs, fmt.Errorf("actor %s tick: %w", st.ID, err))
			}
		} else {
			w.DisableTick(st.ID)
		}
	}

	log.Info("📦 Восстановлено %d из %d акторов региона %s", len(created), len(snap.Actors), snap.Region)
	return errors.Join(errs...)
}

// safely превращает панику в коде актора в ошибку
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Save снимает мир, кодирует и кладёт снимок в хранилище
func Save(ctx context.Context, store Store, w *world.World, region string) (*Snapshot, error) {
	snap := Capture(w, region)
	data, err := Encode(snap)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, region, data); err != nil {
		return nil, fmt.Errorf("save snapshot %s: %w", region, err)
	}
	logging.GetSnapshotLogger().Info("💾 Снимок региона %s: %d акторов, %d байт", region, len(snap.Actors), len(data))
	return snap, nil
}

// Load читает снимок региона из хранилища
func Load(ctx context.Context, store Store, region string) (*Snapshot, error) {
	data, err := store.Load(ctx, region)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
