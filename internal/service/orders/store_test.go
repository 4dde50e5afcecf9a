package orders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/mapper"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

func testOrderRecord(id, token string) domain.Record {
	return mapper.OrderToRecord(domain.Order{
		ID:         id,
		CustomerID: "C1",
		ProductID:  "P1",
		Quantity:   1,
		UnitPrice:  domain.MustMoney("1.00"),
		OrderDate:  testStart,
		Status:     domain.OrderStatusSubmitted,
		Writes:     domain.WriteLog{token},
	})
}

func TestStoreCalls_InsertRecognisesOwnRow(t *testing.T) {
	store := memory.NewEntityStore()
	calls := storeCalls{store: store, timeout: time.Second}
	ctx := context.Background()

	first, err := calls.insert(ctx, testOrderRecord("O1", "w-1"))
	require.NoError(t, err)

	again, err := calls.insert(ctx, testOrderRecord("O1", "w-1"))
	require.NoError(t, err)
	assert.Equal(t, first.Version, again.Version)

	_, err = calls.insert(ctx, testOrderRecord("O1", "w-2"))
	assert.True(t, errors.Is(err, domain.ErrRecordExists))
}

func TestStoreCalls_PutResolvesLostResponse(t *testing.T) {
	faulty := newFaultyStore(memory.NewEntityStore())
	calls := storeCalls{store: faulty, timeout: time.Second}
	ctx := context.Background()

	stored, err := calls.insert(ctx, testOrderRecord("O1", "w-1"))
	require.NoError(t, err)

	faulty.putAppliedThenTimeout[domain.PartitionOrder] = 1
	version, err := calls.put(ctx, testOrderRecord("O1", "w-2"), stored.Version)
	require.NoError(t, err)
	assert.Equal(t, stored.Version+1, version)
}

// overtakenStore применяет запись, следом пропускает чужую и теряет ответ.
type overtakenStore struct {
	domain.EntityStore
}

func (s overtakenStore) PutConditional(ctx context.Context, rec domain.Record, expected domain.Version) (domain.Version, error) {
	version, err := s.EntityStore.PutConditional(ctx, rec, expected)
	if err != nil {
		return 0, err
	}
	foreign := rec.Clone()
	foreign.WriteID = "w-foreign"
	foreign.Properties["WriteLog"] = strings.Join(mapper.WriteLogOf(rec).With("w-foreign"), ",")
	if _, err := s.EntityStore.PutConditional(ctx, foreign, version); err != nil {
		return 0, err
	}
	return 0, domain.ErrStoreUnavailable
}

func TestStoreCalls_PutOvertakenByAnotherWriter(t *testing.T) {
	inner := memory.NewEntityStore()
	ctx := context.Background()
	stored, err := inner.Insert(ctx, testOrderRecord("O1", "w-1"))
	require.NoError(t, err)

	calls := storeCalls{store: overtakenStore{EntityStore: inner}, timeout: time.Second}
	version, err := calls.put(ctx, testOrderRecord("O1", "w-2"), stored.Version)
	require.NoError(t, err)
	assert.Equal(t, stored.Version+2, version)
}

func TestStoreCalls_PutTransientWithoutEffect(t *testing.T) {
	faulty := newFaultyStore(memory.NewEntityStore())
	calls := storeCalls{store: faulty, timeout: time.Second}
	ctx := context.Background()

	stored, err := calls.insert(ctx, testOrderRecord("O1", "w-1"))
	require.NoError(t, err)

	faulty.putFailures[domain.PartitionOrder] = 1
	_, err = calls.put(ctx, testOrderRecord("O1", "w-2"), stored.Version)
	assert.True(t, domain.IsTransient(err))

	_, err = faulty.EntityStore.PutConditional(ctx, testOrderRecord("O1", "w-x"), stored.Version)
	require.NoError(t, err)

	faulty.putFailures[domain.PartitionOrder] = 1
	_, err = calls.put(ctx, testOrderRecord("O1", "w-3"), stored.Version)
	assert.True(t, domain.IsVersionConflict(err), "row moved on, caller must reread: %v", err)
}
