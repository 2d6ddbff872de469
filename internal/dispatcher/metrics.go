package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/script-core/internal/event"
	"github.com/annel0/script-core/internal/world"
)

// Metrics Prometheus-метрики цикла диспетчера.
// Реализует world.Observer, поэтому подключается к миру напрямую.
type Metrics struct {
	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	events       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	timersFired  prometheus.Counter

	actors  prometheus.Gauge
	avatars prometheus.Gauge
	ticked  prometheus.Gauge
	timers  prometheus.Gauge
	pending prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil - глобальный регистр)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scriptcore",
			Name:      "ticks_total",
			Help:      "Число выполненных тиков диспетчера.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scriptcore",
			Name:      "tick_duration_seconds",
			Help:      "Время работы одного тика без учёта сна.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.04, 0.08, 0.16},
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scriptcore",
			Name:      "events_dispatched_total",
			Help:      "Обработанные события по типу и результату (ok, miss, error).",
		}, []string{"kind", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scriptcore",
			Name:      "callback_failures_total",
			Help:      "Сбои колбэков акторов по области изоляции.",
		}, []string{"scope"}),
		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scriptcore",
			Name:      "timers_fired_total",
			Help:      "Сработавшие таймеры.",
		}),
		actors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scriptcore",
			Name:      "actors",
			Help:      "Акторы в реестре, включая аватары.",
		}),
		avatars: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scriptcore",
			Name:      "avatars",
			Help:      "Аватары в регионе.",
		}),
		ticked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scriptcore",
			Name:      "ticked_actors",
			Help:      "Акторы с включённым OnTick.",
		}),
		timers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scriptcore",
			Name:      "pending_timers",
			Help:      "Таймеры в очереди.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scriptcore",
			Name:      "pending_events",
			Help:      "События, ждущие следующего тика.",
		}),
	}

	reg.MustRegister(m.ticks, m.tickDuration, m.events, m.failures, m.timersFired,
		m.actors, m.avatars, m.ticked, m.timers, m.pending)
	return m
}

// EventDispatched учитывает результат обработки события
func (m *Metrics) EventDispatched(kind event.Kind, err error) {
	result := "ok"
	switch {
	case err == nil:
	case world.IsLookupMiss(err):
		result = "miss"
	default:
		result = "error"
	}
	m.events.WithLabelValues(string(kind), result).Inc()
}

// CallbackFailed учитывает сбой колбэка
func (m *Metrics) CallbackFailed(scope string) {
	m.failures.WithLabelValues(scope).Inc()
}

// TimerFired учитывает срабатывание таймера
func (m *Metrics) TimerFired() {
	m.timersFired.Inc()
}

// observeTick фиксирует длительность тика и состояние мира после него
func (m *Metrics) observeTick(took time.Duration, st world.Stats) {
	m.ticks.Inc()
	m.tickDuration.Observe(took.Seconds())
	m.actors.Set(float64(st.Actors))
	m.avatars.Set(float64(st.Avatars))
	m.ticked.Set(float64(st.Ticked))
	m.timers.Set(float64(st.Timers))
	m.pending.Set(float64(st.PendingInactive))
}
