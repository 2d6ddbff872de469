package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/script-core/internal/logging"
	"github.com/annel0/script-core/internal/world"
)

// ErrShutdownTimeout диспетчер не остановился за отведённое время
var ErrShutdownTimeout = errors.New("dispatcher did not stop in time")

// DefaultTickRate частота тиков по умолчанию, Гц
const DefaultTickRate = 25

// State состояние цикла
type State int32

const (
	Running State = iota
	StopRequested
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Clock источник времени. В тестах подменяется фиктивными часами.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Options параметры диспетчера
type Options struct {
	// TickRate целевая частота тиков, Гц (0 - DefaultTickRate)
	TickRate int
	Clock    Clock
	// Metrics необязательные метрики; подключаются к миру как Observer
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Dispatcher цикл тиков одного региона.
//
// Каждый тик: продвинуть время, выдержать темп, переключить буферы и
// обработать события, вызвать OnTick у тикаемых акторов, отработать таймеры.
// Запрос остановки проверяется только в начале итерации, так что тик
// всегда выполняется целиком.
type Dispatcher struct {
	world   *world.World
	clock   Clock
	period  time.Duration
	metrics *Metrics
	tracer  trace.Tracer

	state   atomic.Int32
	started atomic.Bool
	ticks   atomic.Uint64

	origin time.Time
	last   time.Duration

	stopped  chan struct{}
	stopOnce sync.Once

	log *logging.Logger
}

// New создаёт диспетчер для мира w
func New(w *world.World, opts Options) *Dispatcher {
	rate := opts.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/annel0/script-core/dispatcher")
	}

	d := &Dispatcher{
		world:   w,
		clock:   clock,
		period:  time.Second / time.Duration(rate),
		metrics: opts.Metrics,
		tracer:  tracer,
		origin:  clock.Now(),
		stopped: make(chan struct{}),
		log:     logging.GetDispatcherLogger(),
	}
	if d.metrics != nil {
		w.SetObserver(d.metrics)
	}
	d.state.Store(int32(Running))
	return d
}

// Period длительность тика при целевой частоте
func (d *Dispatcher) Period() time.Duration { return d.period }

// State текущее состояние
func (d *Dispatcher) State() State { return State(d.state.Load()) }

// Ticks число выполненных тиков
func (d *Dispatcher) Ticks() uint64 { return d.ticks.Load() }

// Done закрывается при переходе в Stopped
func (d *Dispatcher) Done() <-chan struct{} { return d.stopped }

// World мир, которым управляет диспетчер
func (d *Dispatcher) World() *world.World { return d.world }

// elapsed время от создания диспетчера по его часам
func (d *Dispatcher) elapsed() time.Duration {
	return d.clock.Now().Sub(d.origin)
}

// Run запускает мир и крутит цикл до запроса остановки или отмены ctx,
// затем выполняет проход завершения. Блокирует вызывающего.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already started")
	}
	defer d.finish()

	d.world.Start()
	d.log.Info("⏱️ Диспетчер запущен: %d Гц (период %v)", time.Second/d.period, d.period)

	for d.State() == Running {
		if ctx.Err() != nil {
			d.RequestStop()
			break
		}

		now := d.elapsed()
		dt := now - d.last
		if dt < d.period {
			d.clock.Sleep(d.period - dt)
			now = d.elapsed()
			dt = now - d.last
		}
		if dt < 0 {
			dt = 0
		}
		d.last = now
		d.runTick(ctx, now, dt)
	}
	return nil
}

// Step выполняет ровно один тик для времени now без выдержки темпа
func (d *Dispatcher) Step(now time.Duration) {
	if d.State() != Running {
		return
	}
	if d.started.CompareAndSwap(false, true) {
		d.world.Start()
	}
	dt := now - d.last
	if dt < 0 {
		dt = 0
	}
	d.last = now
	d.runTick(context.Background(), now, dt)
}

// runTick один тик. Паника здесь - последний рубеж: тик теряется, цикл продолжается.
func (d *Dispatcher) runTick(ctx context.Context, now, dt time.Duration) {
	n := d.ticks.Add(1)
	_, span := d.tracer.Start(ctx, "dispatcher.tick",
		trace.WithAttributes(attribute.Int64("tick", int64(n))))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("💥 Сбой тика %d: %v", n, r)
			span.RecordError(fmt.Errorf("tick panic: %v", r))
			if d.metrics != nil {
				d.metrics.CallbackFailed("loop")
			}
		}
	}()

	d.world.Advance(now)
	handled, failed := d.world.DrainEvents()
	ticked := d.world.RunTicks(dt)
	fired := d.world.FireTimers(now)

	span.SetAttributes(
		attribute.Int("events.handled", handled),
		attribute.Int("events.failed", failed),
		attribute.Int("actors.ticked", ticked),
		attribute.Int("timers.fired", fired),
	)
	if d.metrics != nil {
		d.metrics.observeTick(time.Since(start), d.world.Stats())
	}
	if failed > 0 {
		d.log.Debug("Тик %d: %d из %d событий с ошибкой", n, failed, handled)
	}
}

// RequestStop просит цикл остановиться в начале следующей итерации
func (d *Dispatcher) RequestStop() {
	if d.state.CompareAndSwap(int32(Running), int32(StopRequested)) {
		d.log.Info("Запрошена остановка диспетчера")
	}
}

// Stop запрашивает остановку и ждёт Stopped не дольше timeout.
// Если цикл так и не запускался, проход завершения выполняется здесь же.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.RequestStop()
	if d.started.CompareAndSwap(false, true) {
		d.finish()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-d.stopped:
		return nil
	case <-timer.C:
		d.log.Error("❌ Диспетчер не остановился за %v", timeout)
		return fmt.Errorf("%w (waited %v)", ErrShutdownTimeout, timeout)
	}
}

// finish проход завершения и переход в Stopped
func (d *Dispatcher) finish() {
	d.stopOnce.Do(func() {
		d.state.Store(int32(StopRequested))
		d.world.Shutdown()
		d.state.Store(int32(Stopped))
		close(d.stopped)
		d.log.Info("✅ Диспетчер остановлен после %d тиков", d.Ticks())
	})
}
