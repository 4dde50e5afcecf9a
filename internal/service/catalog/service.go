// Package catalog администрирует покупателей и товары: заведение, чтение,
// правка и удаление. Остаток товара здесь задаётся напрямую,
// списание под заказ делает только orders.StockReserver.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/mapper"
	"github.com/vladislavdragonenkov/retail/internal/service/orders"
)

const defaultCallTimeout = 5 * time.Second

// Service — операции каталога.
type Service struct {
	store   domain.EntityStore
	timeout time.Duration
	newID   func() string
	logger  *log.Entry
}

// NewService создаёт сервис каталога. logger может быть nil.
func NewService(store domain.EntityStore, timeout time.Duration, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Service{store: store, timeout: timeout, newID: orders.NewRowID, logger: logger}
}

// CreateCustomer заводит покупателя. Пустой ID генерируется.
func (s *Service) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	if errs := c.Validate(); len(errs) > 0 {
		return domain.Customer{}, errors.Join(errs...)
	}
	if c.ID == "" {
		c.ID = s.newID()
	}
	c.Version = 0

	rec, err := s.insert(ctx, mapper.CustomerToRecord(c))
	if err != nil {
		return domain.Customer{}, err
	}
	s.logger.WithField("customer_id", c.ID).Info("customer created")
	return mapper.CustomerFromRecord(rec)
}

// GetCustomer читает покупателя.
func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if id == "" {
		return domain.Customer{}, domain.ErrCustomerIDRequired
	}
	rec, err := s.get(ctx, domain.PartitionCustomer, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return mapper.CustomerFromRecord(rec)
}

// ListCustomers возвращает покупателей, упорядоченных по ID.
func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	records, err := s.list(ctx, domain.PartitionCustomer)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Customer, 0, len(records))
	for _, rec := range records {
		c, err := mapper.CustomerFromRecord(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// UpdateCustomer заменяет поля покупателя, если его версия совпадает с c.Version.
// Уже оформленные заказы ссылаются на покупателя по ID и не меняются.
func (s *Service) UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if c.ID == "" {
		return domain.Customer{}, domain.ErrCustomerIDRequired
	}
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	if errs := c.Validate(); len(errs) > 0 {
		return domain.Customer{}, errors.Join(errs...)
	}

	current, err := s.GetCustomer(ctx, c.ID)
	if err != nil {
		return domain.Customer{}, err
	}
	if current.Version != c.Version {
		return domain.Customer{}, fmt.Errorf("%w: customer %s has version %d, caller has %d",
			domain.ErrConflict, c.ID, current.Version, c.Version)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	version, err := s.store.PutConditional(callCtx, mapper.CustomerToRecord(c), c.Version)
	if err != nil {
		return domain.Customer{}, translate(err, domain.PartitionCustomer, c.ID)
	}
	c.Version = version

	s.logger.WithFields(log.Fields{
		"customer_id": c.ID,
		"version":     version,
	}).Info("customer updated")
	return c, nil
}

// DeleteCustomer удаляет покупателя. Его заказы остаются, но новые оформить нельзя.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrCustomerIDRequired
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Delete(callCtx, domain.PartitionCustomer, id); err != nil {
		return translate(err, domain.PartitionCustomer, id)
	}
	s.logger.WithField("customer_id", id).Info("customer deleted")
	return nil
}

// CreateProduct заводит товар с начальным остатком.
func (s *Service) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if errs := p.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	if p.ID == "" {
		p.ID = s.newID()
	}
	p.Version = 0
	p.Writes = domain.WriteLog{s.newID()}

	rec, err := s.insert(ctx, mapper.ProductToRecord(p))
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": p.ID,
		"stock":      p.AvailableStock,
	}).Info("product created")
	return mapper.ProductFromRecord(rec)
}

// GetProduct читает товар.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, domain.ErrProductIDRequired
	}
	rec, err := s.get(ctx, domain.PartitionProduct, id)
	if err != nil {
		return domain.Product{}, err
	}
	return mapper.ProductFromRecord(rec)
}

// ListProducts возвращает товары, упорядоченные по ID.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	records, err := s.list(ctx, domain.PartitionProduct)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		p, err := mapper.ProductFromRecord(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// UpdateProduct заменяет поля товара, если его версия совпадает с p.Version.
// Существующие заказы не меняются: в них зафиксированы название и цена на момент оформления.
func (s *Service) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		return domain.Product{}, domain.ErrProductIDRequired
	}
	p.Name = strings.TrimSpace(p.Name)
	if errs := p.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	current, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if current.Version != p.Version {
		return domain.Product{}, fmt.Errorf("%w: product %s has version %d, caller has %d",
			domain.ErrConflict, p.ID, current.Version, p.Version)
	}

	next := p
	next.Writes = current.Writes.With(s.newID())

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	version, err := s.store.PutConditional(callCtx, mapper.ProductToRecord(next), p.Version)
	if err != nil {
		return domain.Product{}, translate(err, domain.PartitionProduct, p.ID)
	}
	next.Version = version

	s.logger.WithFields(log.Fields{
		"product_id": p.ID,
		"version":    version,
	}).Info("product updated")
	return next, nil
}

// DeleteProduct удаляет товар. Заказы с этим товаром остаются как есть.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrProductIDRequired
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Delete(callCtx, domain.PartitionProduct, id); err != nil {
		return translate(err, domain.PartitionProduct, id)
	}
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

func (s *Service) insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stored, err := s.store.Insert(callCtx, rec)
	if err != nil {
		return domain.Record{}, translate(err, rec.Partition, rec.ID)
	}
	return stored, nil
}

func (s *Service) get(ctx context.Context, partition domain.Partition, id string) (domain.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.store.Get(callCtx, partition, id)
	if err != nil {
		return domain.Record{}, translate(err, partition, id)
	}
	return rec, nil
}

func (s *Service) list(ctx context.Context, partition domain.Partition) ([]domain.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	records, err := s.store.List(callCtx, partition)
	if err != nil {
		return nil, translate(err, partition, "")
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// translate переводит ошибки хранилища в виды ошибок сервиса.
func translate(err error, partition domain.Partition, id string) error {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, partition, id)
	case errors.Is(err, domain.ErrRecordExists):
		return fmt.Errorf("%w: %s %s already exists", domain.ErrConflict, partition, id)
	case domain.IsVersionConflict(err):
		return fmt.Errorf("%w: %s %s: %w", domain.ErrConflict, partition, id, err)
	case domain.IsTransient(err):
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	default:
		return err
	}
}
