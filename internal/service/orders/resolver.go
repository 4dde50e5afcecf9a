package orders

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/mapper"
)

// Resolver загружает покупателя и товар перед оформлением заказа.
type Resolver struct {
	calls storeCalls
	retry retrier
}

// Resolve читает обе сущности параллельно. Отсутствие любой из них — ErrNotFound,
// повторять такую ошибку бессмысленно.
func (r *Resolver) Resolve(ctx context.Context, customerID, productID string) (domain.Customer, domain.Product, error) {
	if customerID == "" {
		return domain.Customer{}, domain.Product{}, domain.ErrCustomerIDRequired
	}
	if productID == "" {
		return domain.Customer{}, domain.Product{}, domain.ErrProductIDRequired
	}

	var (
		customer domain.Customer
		product  domain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := r.load(gctx, domain.PartitionCustomer, customerID)
		if err != nil {
			return err
		}
		customer, err = mapper.CustomerFromRecord(rec)
		return err
	})
	g.Go(func() error {
		rec, err := r.load(gctx, domain.PartitionProduct, productID)
		if err != nil {
			return err
		}
		product, err = mapper.ProductFromRecord(rec)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Customer{}, domain.Product{}, err
	}
	return customer, product, nil
}

func (r *Resolver) load(ctx context.Context, partition domain.Partition, id string) (domain.Record, error) {
	var rec domain.Record
	err := r.retry.do(ctx, "resolve", log.Fields{"partition": partition, "id": id}, func(int) error {
		var err error
		rec, err = r.calls.get(ctx, partition, id)
		return err
	})
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Record{}, fmt.Errorf("%w: %s %s", domain.ErrNotFound, partition, id)
	}
	return rec, err
}
