package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Служебные поля хэша; свойства сущности лежат рядом под своими именами.
const (
	fieldVersion   = "_version"
	fieldWriteID   = "_write_id"
	fieldUpdatedAt = "_updated_at"

	defaultPrefix = "retail"
)

// EntityStore хранит каждую строку в отдельном хэше и индекс партиции в множестве.
// Условная запись сделана через WATCH/MULTI: при гонке транзакция отменяется.
type EntityStore struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewEntityStore создаёт хранилище. Пустой prefix заменяется на "retail".
func NewEntityStore(client goredis.UniversalClient, prefix string) *EntityStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &EntityStore{client: client, prefix: prefix, now: time.Now}
}

func (s *EntityStore) rowKey(partition domain.Partition, id string) string {
	return fmt.Sprintf("%s:entity:%s:%s", s.prefix, partition, id)
}

func (s *EntityStore) indexKey(partition domain.Partition) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, partition)
}

func (s *EntityStore) Get(ctx context.Context, partition domain.Partition, id string) (domain.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.rowKey(partition, id)).Result()
	if err != nil {
		return domain.Record{}, fmt.Errorf("hgetall %s/%s: %w", partition, id, classify(err))
	}
	if len(fields) == 0 {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return decodeRecord(partition, id, fields)
}

func (s *EntityStore) List(ctx context.Context, partition domain.Partition) ([]domain.Record, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", partition, classify(err))
	}
	sort.Strings(ids)

	result := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, partition, id)
		if errors.Is(err, domain.ErrRecordNotFound) {
			// индекс мог отстать от удаления
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

func (s *EntityStore) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	key := s.rowKey(rec.Partition, rec.ID)
	out := rec.Clone()
	out.Version = 1
	out.UpdatedAt = s.now().UTC()

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return domain.ErrRecordExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeRecord(out))
			pipe.SAdd(ctx, s.indexKey(out.Partition), out.ID)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, domain.ErrRecordExists), errors.Is(err, goredis.TxFailedErr):
		return domain.Record{}, domain.ErrRecordExists
	default:
		return domain.Record{}, fmt.Errorf("insert %s/%s: %w", rec.Partition, rec.ID, classify(err))
	}
}

func (s *EntityStore) PutConditional(ctx context.Context, rec domain.Record, expected domain.Version) (domain.Version, error) {
	key := s.rowKey(rec.Partition, rec.ID)
	next := expected + 1

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, key, fieldVersion).Result()
		if errors.Is(err, goredis.Nil) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		current, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse version of %s: %w", key, err)
		}
		if domain.Version(current) != expected {
			return domain.ErrVersionConflict
		}

		out := rec.Clone()
		out.Version = next
		out.UpdatedAt = s.now().UTC()
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, encodeRecord(out))
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrVersionConflict):
		return 0, err
	case errors.Is(err, goredis.TxFailedErr):
		return 0, domain.ErrVersionConflict
	default:
		return 0, fmt.Errorf("put %s/%s: %w", rec.Partition, rec.ID, classify(err))
	}
}

func (s *EntityStore) Delete(ctx context.Context, partition domain.Partition, id string) error {
	var del *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, s.rowKey(partition, id))
		pipe.SRem(ctx, s.indexKey(partition), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", partition, id, classify(err))
	}
	if del.Val() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (s *EntityStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", classify(err))
	}
	return nil
}

func encodeRecord(rec domain.Record) map[string]any {
	fields := make(map[string]any, len(rec.Properties)+3)
	for k, v := range rec.Properties {
		fields[k] = v
	}
	fields[fieldVersion] = strconv.FormatInt(int64(rec.Version), 10)
	fields[fieldWriteID] = rec.WriteID
	fields[fieldUpdatedAt] = rec.UpdatedAt.Format(time.RFC3339Nano)
	return fields
}

func decodeRecord(partition domain.Partition, id string, fields map[string]string) (domain.Record, error) {
	rec := domain.Record{
		Partition:  partition,
		ID:         id,
		WriteID:    fields[fieldWriteID],
		Properties: make(map[string]string, len(fields)),
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return domain.Record{}, fmt.Errorf("parse version of %s/%s: %w", partition, id, err)
	}
	rec.Version = domain.Version(version)

	if raw := fields[fieldUpdatedAt]; raw != "" {
		if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return domain.Record{}, fmt.Errorf("parse updated_at of %s/%s: %w", partition, id, err)
		}
	}

	for k, v := range fields {
		if strings.HasPrefix(k, "_") {
			continue
		}
		rec.Properties[k] = v
	}
	return rec, nil
}

// classify считает любую ошибку клиента, кроме redis.Nil, временной недоступностью.
func classify(err error) error {
	if err == nil || errors.Is(err, goredis.Nil) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

var _ domain.EntityStore = (*EntityStore)(nil)
