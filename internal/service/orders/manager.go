package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/mapper"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
)

// Service — операции над заказами, доступные транспортному слою.
type Service interface {
	CreateOrder(ctx context.Context, customerID, productID string, quantity int) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// Названия шагов для метрик длительности.
const (
	stepResolve = "resolve_references"
	stepReserve = "reserve_stock"
	stepPersist = "persist_order"
	stepNotify  = "notify"
	stepStatus  = "update_status"
)

// Manager ведёт жизненный цикл заказа: проверка, поиск ссылок, резерв склада,
// сохранение заказа и рассылка уведомлений. Общей транзакции между хранилищем
// и каналом уведомлений нет, поэтому шаги идут строго по очереди.
type Manager struct {
	calls     storeCalls
	publisher domain.Publisher
	resolver  *Resolver
	reserver  *StockReserver
	retry     retrier
	cfg       Config
	metrics   *metrics.FulfillmentMetrics
	logger    *log.Entry
}

// NewManager собирает менеджер. metrics и logger могут быть nil.
func NewManager(store domain.EntityStore, publisher domain.Publisher, cfg Config, m *metrics.FulfillmentMetrics, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.WithField("component", "order-manager")
	}
	cfg = cfg.withDefaults()

	calls := storeCalls{store: store, timeout: cfg.CallTimeout}
	retry := retrier{attempts: cfg.MaxAttempts, baseDelay: cfg.BaseDelay, maxDelay: cfg.MaxDelay, logger: logger}

	return &Manager{
		calls:     calls,
		publisher: publisher,
		resolver:  &Resolver{calls: calls, retry: retry},
		reserver:  &StockReserver{calls: calls, retry: retry, metrics: m, newID: cfg.NewID},
		retry:     retry,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// CreateOrder оформляет заказ. Склад резервируется до сохранения заказа,
// поэтому заказ без списанного остатка появиться не может.
func (m *Manager) CreateOrder(ctx context.Context, customerID, productID string, quantity int) (order domain.Order, err error) {
	defer m.trackFailure(&err)()

	switch {
	case customerID == "":
		return domain.Order{}, domain.ErrCustomerIDRequired
	case productID == "":
		return domain.Order{}, domain.ErrProductIDRequired
	case quantity < 1:
		return domain.Order{}, domain.ErrQuantityInvalid
	}

	logger := m.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"product_id":  productID,
		"quantity":    quantity,
	})

	started := time.Now()
	customer, product, err := m.resolver.Resolve(ctx, customerID, productID)
	m.metrics.RecordStepDuration(stepResolve, time.Since(started))
	if err != nil {
		logger.WithError(err).Info("order references not resolved")
		return domain.Order{}, err
	}

	started = time.Now()
	reservation, err := m.reserver.Reserve(ctx, product, quantity)
	m.metrics.RecordStepDuration(stepReserve, time.Since(started))
	if err != nil {
		logger.WithError(err).Info("stock not reserved")
		return domain.Order{}, err
	}

	// Остаток уже списан: отмена запроса не должна оборвать оставшиеся шаги.
	ctx = context.WithoutCancel(ctx)

	token := m.cfg.NewID()
	order = domain.Order{
		ID:          m.cfg.NewID(),
		CustomerID:  customer.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		OrderDate:   m.cfg.Now().UTC(),
		Status:      domain.OrderStatusSubmitted,
		Writes:      domain.WriteLog{token},
	}

	started = time.Now()
	order, err = m.persistNew(ctx, order)
	m.metrics.RecordStepDuration(stepPersist, time.Since(started))
	if err != nil {
		stored, outcome := m.verifyInsert(ctx, order)
		if outcome != insertLanded {
			return domain.Order{}, m.compensate(ctx, logger, order, reservation, err, outcome == insertAbsent)
		}
		logger.WithError(err).WithField("order_id", order.ID).Warn("order insert confirmed by re-read")
		order = stored
	}

	m.metrics.RecordOrderCreated()
	logger.WithField("order_id", order.ID).Info("order created")

	started = time.Now()
	updatedAt := m.cfg.Now()
	m.publish(ctx, m.cfg.OrderChannel, order.ID, domain.NewOrderCreated(order, customer), order.ID)
	m.publish(ctx, m.cfg.StockChannel, product.ID,
		domain.NewStockUpdated(reservation.Product, reservation.PreviousStock, updatedAt, m.cfg.StockUpdatedBy), order.ID)
	m.metrics.RecordStepDuration(stepNotify, time.Since(started))

	return order, nil
}

func (m *Manager) persistNew(ctx context.Context, order domain.Order) (domain.Order, error) {
	var stored domain.Record
	err := m.retry.do(ctx, stepPersist, log.Fields{"order_id": order.ID}, func(int) error {
		var err error
		stored, err = m.calls.insert(ctx, mapper.OrderToRecord(order))
		return err
	})
	if err != nil {
		return order, err
	}
	order.Version = stored.Version
	return order, nil
}

// Итог вставки заказа, выясненный повторным чтением.
type insertOutcome int

const (
	insertAbsent insertOutcome = iota
	insertLanded
	insertUnknown
)

// verifyInsert перечитывает строку заказа после неудачной вставки.
// Строка с нашим токеном записи означает, что вставка всё же прошла.
func (m *Manager) verifyInsert(ctx context.Context, order domain.Order) (domain.Order, insertOutcome) {
	var rec domain.Record
	err := m.retry.do(ctx, "verify_order", log.Fields{"order_id": order.ID}, func(int) error {
		var err error
		rec, err = m.calls.get(ctx, domain.PartitionOrder, order.ID)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return order, insertAbsent
	case err != nil:
		return order, insertUnknown
	case !mapper.WriteLogOf(rec).Contains(order.Writes.Last()):
		return order, insertUnknown
	}

	stored, err := mapper.OrderFromRecord(rec)
	if err != nil {
		return order, insertUnknown
	}
	return stored, insertLanded
}

// compensate вызывается, когда заказ не сохранился после списания остатка.
// Остаток возвращается только если строки заказа точно нет (absent); при неизвестном
// исходе вставки остаток не трогается. Итог попадает в PartialFailureError.
func (m *Manager) compensate(ctx context.Context, logger *log.Entry, order domain.Order, reservation Reservation, cause error, absent bool) error {
	failure := &domain.PartialFailureError{
		Step:      domain.StepPersistOrder,
		OrderID:   order.ID,
		ProductID: order.ProductID,
		Quantity:  order.Quantity,
		Err:       cause,
	}

	switch {
	case m.cfg.Compensate && !absent:
		logger.WithFields(log.Fields{
			"kind":     domain.KindPartialFailure,
			"step":     domain.StepCompensate,
			"order_id": order.ID,
		}).Error("order insert outcome unknown, stock left reserved for manual reconciliation")
	case m.cfg.Compensate:
		if _, err := m.reserver.Release(ctx, order.ProductID, order.Quantity); err != nil {
			m.metrics.RecordPartialFailure(string(domain.StepCompensate))
			logger.WithError(err).WithFields(log.Fields{
				"kind":     domain.KindPartialFailure,
				"step":     domain.StepCompensate,
				"order_id": order.ID,
			}).Error("stock compensation failed, manual reconciliation required")
		} else {
			failure.Compensated = true
		}
	}

	m.metrics.RecordPartialFailure(string(domain.StepPersistOrder))
	logger.WithError(cause).WithFields(log.Fields{
		"kind":           domain.KindPartialFailure,
		"step":           domain.StepPersistOrder,
		"order_id":       order.ID,
		"previous_stock": reservation.PreviousStock,
		"reserved_stock": reservation.Product.AvailableStock,
		"compensated":    failure.Compensated,
	}).Error("order not persisted after stock reservation")

	return failure
}

// publish отправляет уведомление с ограниченным числом повторов. Неудача не откатывает
// уже сохранённые данные: она логируется как частичный сбой и учитывается в метриках.
func (m *Manager) publish(ctx context.Context, channel, key string, payload any, orderID string) {
	fields := log.Fields{"channel": channel, "order_id": orderID}
	err := m.retry.do(ctx, stepNotify, fields, func(int) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		defer cancel()
		return m.publisher.Publish(callCtx, channel, key, payload)
	})
	if err != nil {
		m.metrics.RecordNotification(channel, "error")
		m.metrics.RecordPartialFailure(string(domain.StepNotify))
		m.logger.WithError(err).WithFields(fields).WithFields(log.Fields{
			"kind": domain.KindPartialFailure,
			"step": domain.StepNotify,
			"key":  key,
		}).Error("notification not published")
		return
	}
	m.metrics.RecordNotification(channel, "ok")
}

// UpdateOrderStatus переводит заказ в новый статус условной записью.
// При конфликте заказ перечитывается и переход проверяется заново.
func (m *Manager) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (order domain.Order, err error) {
	defer m.trackFailure(&err)()

	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrStatusUnknown, status)
	}

	started := time.Now()
	var previous domain.OrderStatus
	err = m.retry.do(ctx, stepStatus, log.Fields{"order_id": orderID}, func(int) error {
		current, err := m.load(ctx, orderID)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
		}

		next := current
		next.Status = status
		next.Writes = current.Writes.With(m.cfg.NewID())
		version, err := m.calls.put(ctx, mapper.OrderToRecord(next), current.Version)
		if err != nil {
			return err
		}
		next.Version = version
		previous, order = current.Status, next
		return nil
	})
	m.metrics.RecordStepDuration(stepStatus, time.Since(started))
	if err != nil {
		return domain.Order{}, err
	}

	m.metrics.RecordStatusChange(string(previous), string(status))
	m.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     previous,
		"to":       status,
	}).Info("order status updated")

	m.publish(context.WithoutCancel(ctx), m.cfg.OrderChannel, orderID,
		domain.NewOrderStatusUpdated(orderID, previous, status, m.cfg.Now(), m.cfg.StatusUpdatedBy), orderID)

	return order, nil
}

// GetOrder читает заказ без побочных эффектов.
func (m *Manager) GetOrder(ctx context.Context, orderID string) (order domain.Order, err error) {
	defer m.trackFailure(&err)()

	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	err = m.retry.do(ctx, "get_order", log.Fields{"order_id": orderID}, func(int) error {
		var err error
		order, err = m.load(ctx, orderID)
		return err
	})
	return order, err
}

// ListOrders возвращает все заказы, новые первыми.
func (m *Manager) ListOrders(ctx context.Context) (orders []domain.Order, err error) {
	defer m.trackFailure(&err)()

	var records []domain.Record
	err = m.retry.do(ctx, "list_orders", nil, func(int) error {
		var err error
		records, err = m.calls.list(ctx, domain.PartitionOrder)
		return err
	})
	if err != nil {
		return nil, err
	}

	orders = make([]domain.Order, 0, len(records))
	for _, rec := range records {
		o, err := mapper.OrderFromRecord(rec)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
	return orders, nil
}

// DeleteOrder удаляет строку заказа. Склад и уведомления не затрагиваются.
func (m *Manager) DeleteOrder(ctx context.Context, orderID string) (err error) {
	defer m.trackFailure(&err)()

	if orderID == "" {
		return domain.ErrOrderIDRequired
	}
	err = m.retry.do(ctx, "delete_order", log.Fields{"order_id": orderID}, func(int) error {
		return m.calls.delete(ctx, domain.PartitionOrder, orderID)
	})
	if errors.Is(err, domain.ErrRecordNotFound) {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if err == nil {
		m.logger.WithField("order_id", orderID).Info("order deleted")
	}
	return err
}

func (m *Manager) load(ctx context.Context, orderID string) (domain.Order, error) {
	rec, err := m.calls.get(ctx, domain.PartitionOrder, orderID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return domain.Order{}, err
	}
	return mapper.OrderFromRecord(rec)
}

// trackFailure учитывает ошибку операции по виду и держит gauge активных операций.
func (m *Manager) trackFailure(errp *error) func() {
	done := m.metrics.TrackInFlight()
	return func() {
		done()
		if *errp != nil {
			m.metrics.RecordFailure(string(domain.KindOf(*errp)))
		}
	}
}

var _ Service = (*Manager)(nil)
