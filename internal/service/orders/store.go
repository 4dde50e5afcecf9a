package orders

import (
	"context"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/mapper"
)

// storeCalls ограничивает каждое обращение к хранилищу таймаутом
// и разбирает записи, исход которых неизвестен.
type storeCalls struct {
	store   domain.EntityStore
	timeout time.Duration
}

func (s storeCalls) get(ctx context.Context, partition domain.Partition, id string) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Get(ctx, partition, id)
}

func (s storeCalls) list(ctx context.Context, partition domain.Partition) ([]domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.List(ctx, partition)
}

func (s storeCalls) delete(ctx context.Context, partition domain.Partition, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Delete(ctx, partition, id)
}

// insert вставляет строку. Если ответ потерян или строка уже есть,
// перечитывает её и проверяет, чей токен записи в ней лежит.
func (s storeCalls) insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	stored, err := s.store.Insert(callCtx, rec)
	cancel()
	if err == nil {
		return stored, nil
	}
	if !domain.IsTransient(err) && !errors.Is(err, domain.ErrRecordExists) {
		return domain.Record{}, err
	}

	current, getErr := s.get(ctx, rec.Partition, rec.ID)
	switch {
	case getErr == nil && mapper.WriteLogOf(current).Contains(rec.WriteID):
		return current, nil
	case getErr == nil:
		return domain.Record{}, domain.ErrRecordExists
	case errors.Is(getErr, domain.ErrRecordNotFound) && errors.Is(err, domain.ErrRecordExists):
		// строку успели удалить между вставкой и чтением
		return domain.Record{}, domain.ErrRecordExists
	default:
		return domain.Record{}, err
	}
}

// put выполняет условную запись. При неизвестном исходе перечитывает строку:
// если наш токен уже в журнале, запись состоялась и повторять её нельзя.
func (s storeCalls) put(ctx context.Context, rec domain.Record, expected domain.Version) (domain.Version, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	version, err := s.store.PutConditional(callCtx, rec, expected)
	cancel()
	if err == nil || !domain.IsTransient(err) {
		return version, err
	}

	current, getErr := s.get(ctx, rec.Partition, rec.ID)
	switch {
	case getErr != nil:
		return 0, err
	case mapper.WriteLogOf(current).Contains(rec.WriteID):
		return current.Version, nil
	case current.Version != expected:
		return 0, domain.ErrVersionConflict
	default:
		return 0, err
	}
}
