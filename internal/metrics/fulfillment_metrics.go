package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics — метрики оформления и сопровождения заказов.
// Все методы безопасны для nil-получателя: сервис может работать без метрик.
type FulfillmentMetrics struct {
	ordersCreated   prometheus.Counter
	statusChanges   *prometheus.CounterVec
	failures        *prometheus.CounterVec
	stockConflicts  prometheus.Counter
	partialFailures *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewFulfillmentMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return NewFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewFulfillmentMetricsWithRegisterer регистрирует метрики в заданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		ordersCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retail_orders_created_total",
			Help: "Total number of orders created",
		})),
		statusChanges: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retail_order_status_changes_total",
			Help: "Total number of order status transitions",
		}, []string{"from", "to"})),
		failures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retail_order_failures_total",
			Help: "Total number of failed order operations by error kind",
		}, []string{"kind"})),
		stockConflicts: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retail_stock_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on product stock",
		})),
		partialFailures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retail_partial_failures_total",
			Help: "Total number of operations left partially applied",
		}, []string{"step"})),
		notifications: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retail_notifications_total",
			Help: "Total number of notification publish attempts by result",
		}, []string{"channel", "result"})),
		stepDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "retail_step_duration_seconds",
			Help:    "Duration of fulfillment steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retail_orders_in_flight",
			Help: "Number of order operations currently in progress",
		})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			panic(fmt.Sprintf("collector already registered with unexpected type %T", already.ExistingCollector))
		}
		return existing
	}
	panic(fmt.Sprintf("register collector: %v", err))
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *FulfillmentMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordStatusChange учитывает переход статуса.
func (m *FulfillmentMetrics) RecordStatusChange(from, to string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(from, to).Inc()
}

// RecordFailure учитывает ошибку операции по виду.
func (m *FulfillmentMetrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// RecordStockConflict учитывает проигранную гонку за остаток.
func (m *FulfillmentMetrics) RecordStockConflict() {
	if m == nil {
		return
	}
	m.stockConflicts.Inc()
}

// RecordPartialFailure учитывает частичный сбой на шаге step.
func (m *FulfillmentMetrics) RecordPartialFailure(step string) {
	if m == nil {
		return
	}
	m.partialFailures.WithLabelValues(step).Inc()
}

// RecordNotification учитывает попытку публикации; result — "ok" или "error".
func (m *FulfillmentMetrics) RecordNotification(channel, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

// RecordStepDuration записывает длительность шага.
func (m *FulfillmentMetrics) RecordStepDuration(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// TrackInFlight увеличивает gauge и возвращает функцию, которая его уменьшит.
func (m *FulfillmentMetrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}
