package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type rowKey struct {
	partition domain.Partition
	id        string
}

// entityStoreInMemory — in-memory реализация EntityStore с optimistic locking.
type entityStoreInMemory struct {
	mu    sync.RWMutex
	items map[rowKey]domain.Record
	now   func() time.Time
}

// NewEntityStore возвращает in-memory хранилище для локальной разработки и тестов.
func NewEntityStore() domain.EntityStore {
	return &entityStoreInMemory{
		items: make(map[rowKey]domain.Record),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает копию строки или ErrRecordNotFound.
func (s *entityStoreInMemory) Get(ctx context.Context, partition domain.Partition, id string) (domain.Record, error) {
	if err := interrupted(ctx); err != nil {
		return domain.Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[rowKey{partition, id}]
	if !ok {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// List возвращает строки партиции в стабильном порядке по id.
func (s *entityStoreInMemory) List(ctx context.Context, partition domain.Partition) ([]domain.Record, error) {
	if err := interrupted(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Record, 0)
	for key, rec := range s.items {
		if key.partition != partition {
			continue
		}
		result = append(result, rec.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Insert сохраняет новую строку, если id ещё не занят.
func (s *entityStoreInMemory) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := interrupted(ctx); err != nil {
		return domain.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey{rec.Partition, rec.ID}
	if _, exists := s.items[key]; exists {
		return domain.Record{}, domain.ErrRecordExists
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	stored := rec.Clone()
	stored.Version = 1
	stored.UpdatedAt = s.now()
	s.items[key] = stored
	return stored.Clone(), nil
}

// PutConditional перезаписывает строку, проверяя версию (optimistic locking).
func (s *entityStoreInMemory) PutConditional(ctx context.Context, rec domain.Record, expected domain.Version) (domain.Version, error) {
	if err := interrupted(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey{rec.Partition, rec.ID}
	current, ok := s.items[key]
	if !ok {
		return 0, domain.ErrRecordNotFound
	}
	if current.Version != expected {
		return 0, domain.ErrVersionConflict
	}
	stored := rec.Clone()
	stored.Version = current.Version + 1
	stored.UpdatedAt = s.now()
	s.items[key] = stored
	return stored.Version, nil
}

// Delete удаляет строку.
func (s *entityStoreInMemory) Delete(ctx context.Context, partition domain.Partition, id string) error {
	if err := interrupted(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey{partition, id}
	if _, ok := s.items[key]; !ok {
		return domain.ErrRecordNotFound
	}
	delete(s.items, key)
	return nil
}

// Ping всегда успешен.
func (s *entityStoreInMemory) Ping(context.Context) error {
	return nil
}

var _ domain.EntityStore = (*entityStoreInMemory)(nil)

// interrupted переводит отмену или истечение ctx во временную ошибку хранилища,
// как это делают внешние драйверы.
func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
