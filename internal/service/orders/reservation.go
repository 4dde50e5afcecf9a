package orders

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/mapper"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
)

// Reservation — результат списания остатка.
type Reservation struct {
	// Product — товар после списания, с новой версией.
	Product       domain.Product
	PreviousStock int
	Quantity      int
}

// StockReserver списывает остаток условной записью. Блокировок нет:
// при конфликте товар перечитывается и проверка остатка повторяется.
type StockReserver struct {
	calls   storeCalls
	retry   retrier
	metrics *metrics.FulfillmentMetrics
	newID   func() string
}

// Reserve списывает quantity единиц. product — уже прочитанный товар,
// его версия используется для первой попытки.
func (s *StockReserver) Reserve(ctx context.Context, product domain.Product, quantity int) (Reservation, error) {
	if quantity < 1 {
		return Reservation{}, domain.ErrQuantityInvalid
	}

	var result Reservation
	current := product
	fields := log.Fields{"product_id": product.ID, "quantity": quantity}

	err := s.retry.do(ctx, "reserve_stock", fields, func(attempt int) error {
		if attempt > 0 {
			fresh, err := s.reload(ctx, product.ID)
			if err != nil {
				return err
			}
			current = fresh
		}

		if current.AvailableStock < quantity {
			return &domain.InsufficientStockError{
				ProductID: current.ID,
				Requested: quantity,
				Available: current.AvailableStock,
			}
		}

		next, err := s.write(ctx, current, current.AvailableStock-quantity)
		if err != nil {
			return err
		}
		result = Reservation{Product: next, PreviousStock: current.AvailableStock, Quantity: quantity}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

// Release возвращает quantity единиц на склад. Используется только для компенсации.
func (s *StockReserver) Release(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	var released domain.Product
	err := s.retry.do(ctx, "release_stock", log.Fields{"product_id": productID, "quantity": quantity}, func(int) error {
		current, err := s.reload(ctx, productID)
		if err != nil {
			return err
		}
		released, err = s.write(ctx, current, current.AvailableStock+quantity)
		return err
	})
	return released, err
}

func (s *StockReserver) reload(ctx context.Context, productID string) (domain.Product, error) {
	rec, err := s.calls.get(ctx, domain.PartitionProduct, productID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return domain.Product{}, err
	}
	return mapper.ProductFromRecord(rec)
}

func (s *StockReserver) write(ctx context.Context, current domain.Product, stock int) (domain.Product, error) {
	next := current
	next.AvailableStock = stock
	next.Writes = current.Writes.With(s.newID())

	version, err := s.calls.put(ctx, mapper.ProductToRecord(next), current.Version)
	if err != nil {
		if domain.IsVersionConflict(err) {
			s.metrics.RecordStockConflict()
		}
		return domain.Product{}, err
	}
	next.Version = version
	return next, nil
}
