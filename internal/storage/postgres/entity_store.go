package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const opTimeout = 5 * time.Second

type entityStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewEntityStore создаёт PostgreSQL-реализацию EntityStore поверх таблицы entities.
func NewEntityStore(store *Store) domain.EntityStore {
	return &entityStore{db: store.DB(), now: time.Now}
}

func (s *entityStore) Get(ctx context.Context, partition domain.Partition, id string) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT partition, row_key, version, write_id, properties, updated_at
		FROM entities
		WHERE partition = $1 AND row_key = $2
	`, string(partition), id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, domain.ErrRecordNotFound
		}
		return domain.Record{}, fmt.Errorf("select entity %s/%s: %w", partition, id, classify(err))
	}
	return rec, nil
}

func (s *entityStore) List(ctx context.Context, partition domain.Partition) ([]domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT partition, row_key, version, write_id, properties, updated_at
		FROM entities
		WHERE partition = $1
		ORDER BY row_key ASC
	`, string(partition))
	if err != nil {
		return nil, fmt.Errorf("list entities %s: %w", partition, classify(err))
	}
	defer rows.Close()

	result := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity row: %w", classify(err))
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity rows: %w", classify(err))
	}
	return result, nil
}

func (s *entityStore) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	props, err := encodeProperties(rec.Properties)
	if err != nil {
		return domain.Record{}, err
	}

	out := rec.Clone()
	out.Version = 1
	out.UpdatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (partition, row_key, version, write_id, properties, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(out.Partition), out.ID, int64(out.Version), out.WriteID, props, out.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Record{}, domain.ErrRecordExists
		}
		return domain.Record{}, fmt.Errorf("insert entity %s/%s: %w", out.Partition, out.ID, classify(err))
	}
	return out, nil
}

func (s *entityStore) PutConditional(ctx context.Context, rec domain.Record, expected domain.Version) (domain.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	props, err := encodeProperties(rec.Properties)
	if err != nil {
		return 0, err
	}

	var next int64
	err = s.db.QueryRowContext(ctx, `
		UPDATE entities
		SET version = version + 1,
		    write_id = $1,
		    properties = $2,
		    updated_at = $3
		WHERE partition = $4
		  AND row_key = $5
		  AND version = $6
		RETURNING version
	`, rec.WriteID, props, s.now().UTC(), string(rec.Partition), rec.ID, int64(expected)).Scan(&next)
	if err == nil {
		return domain.Version(next), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("update entity %s/%s: %w", rec.Partition, rec.ID, classify(err))
	}

	exists, err := s.exists(ctx, rec.Partition, rec.ID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, domain.ErrRecordNotFound
	}
	return 0, domain.ErrVersionConflict
}

func (s *entityStore) Delete(ctx context.Context, partition domain.Partition, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE partition = $1 AND row_key = $2`, string(partition), id)
	if err != nil {
		return fmt.Errorf("delete entity %s/%s: %w", partition, id, classify(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (s *entityStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", classify(err))
	}
	return nil
}

func (s *entityStore) exists(ctx context.Context, partition domain.Partition, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE partition = $1 AND row_key = $2`,
		string(partition), id).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check entity exists: %w", classify(err))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		rec       domain.Record
		partition string
		version   int64
		props     []byte
	)
	if err := row.Scan(&partition, &rec.ID, &version, &rec.WriteID, &props, &rec.UpdatedAt); err != nil {
		return domain.Record{}, err
	}
	rec.Partition = domain.Partition(partition)
	rec.Version = domain.Version(version)
	rec.Properties = map[string]string{}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &rec.Properties); err != nil {
			return domain.Record{}, fmt.Errorf("decode properties of %s/%s: %w", partition, rec.ID, err)
		}
	}
	return rec, nil
}

func encodeProperties(props map[string]string) (string, error) {
	if props == nil {
		props = map[string]string{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(raw), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// classify помечает сетевые сбои и таймауты как ErrStoreUnavailable, чтобы верхний слой мог повторить.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		pgconn.Timeout(err),
		pgconn.SafeToRetry(err),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	default:
		return err
	}
}

var _ domain.EntityStore = (*entityStore)(nil)
