package orders

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/mapper"
	msgmemory "github.com/vladislavdragonenkov/retail/internal/messaging/memory"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

var testStart = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// faultyStore оборачивает EntityStore и внедряет сбои по счётчикам.
type faultyStore struct {
	domain.EntityStore

	mu sync.Mutex
	// putAppliedThenTimeout — запись применяется, но вызывающий получает временную ошибку.
	putAppliedThenTimeout map[domain.Partition]int
	// putConflicts — запись отклоняется конфликтом версий без изменений.
	putConflicts map[domain.Partition]int
	// putFailures — запись отклоняется временной ошибкой без изменений.
	putFailures map[domain.Partition]int
	// competing — перед отказом с конфликтом версий применяется запись другого писателя.
	competing map[domain.Partition][]func(domain.Record) domain.Record
	// insertAppliedThenTimeout — вставка применяется, но вызывающий получает временную ошибку.
	insertAppliedThenTimeout map[domain.Partition]int
	// getFailuresIn — чтения партиции отклоняются временной ошибкой.
	getFailuresIn map[domain.Partition]int
	insertErr     error
	insertFails   int
	getFails      int
}

func newFaultyStore(inner domain.EntityStore) *faultyStore {
	return &faultyStore{
		EntityStore:           inner,
		putAppliedThenTimeout: map[domain.Partition]int{},
		putConflicts:          map[domain.Partition]int{},
		putFailures:           map[domain.Partition]int{},
		competing:             map[domain.Partition][]func(domain.Record) domain.Record{},

		insertAppliedThenTimeout: map[domain.Partition]int{},
		getFailuresIn:            map[domain.Partition]int{},
	}
}

func take(counter map[domain.Partition]int, p domain.Partition) bool {
	if counter[p] > 0 {
		counter[p]--
		return true
	}
	return false
}

func (s *faultyStore) Get(ctx context.Context, partition domain.Partition, id string) (domain.Record, error) {
	s.mu.Lock()
	fail := s.getFails > 0
	if fail {
		s.getFails--
	}
	fail = take(s.getFailuresIn, partition) || fail
	s.mu.Unlock()
	if fail {
		return domain.Record{}, fmt.Errorf("%w: injected read timeout", domain.ErrStoreUnavailable)
	}
	return s.EntityStore.Get(ctx, partition, id)
}

func (s *faultyStore) PutConditional(ctx context.Context, rec domain.Record, expected domain.Version) (domain.Version, error) {
	s.mu.Lock()
	conflict := take(s.putConflicts, rec.Partition)
	failure := !conflict && take(s.putFailures, rec.Partition)
	lost := !conflict && !failure && take(s.putAppliedThenTimeout, rec.Partition)
	var rival func(domain.Record) domain.Record
	if !conflict && !failure && !lost && len(s.competing[rec.Partition]) > 0 {
		rival = s.competing[rec.Partition][0]
		s.competing[rec.Partition] = s.competing[rec.Partition][1:]
	}
	s.mu.Unlock()

	switch {
	case rival != nil:
		current, err := s.EntityStore.Get(ctx, rec.Partition, rec.ID)
		if err != nil {
			return 0, err
		}
		if _, err := s.EntityStore.PutConditional(ctx, rival(current), current.Version); err != nil {
			return 0, err
		}
		return 0, domain.ErrVersionConflict
	case conflict:
		return 0, domain.ErrVersionConflict
	case failure:
		return 0, fmt.Errorf("%w: injected write timeout", domain.ErrStoreUnavailable)
	case lost:
		if _, err := s.EntityStore.PutConditional(ctx, rec, expected); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: response lost", domain.ErrStoreUnavailable)
	}
	return s.EntityStore.PutConditional(ctx, rec, expected)
}

func (s *faultyStore) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	s.mu.Lock()
	fail := s.insertFails > 0 && s.insertErr != nil
	if fail {
		s.insertFails--
	}
	err := s.insertErr
	lost := !fail && take(s.insertAppliedThenTimeout, rec.Partition)
	s.mu.Unlock()
	if fail {
		return domain.Record{}, err
	}
	if lost {
		if _, err := s.EntityStore.Insert(ctx, rec); err != nil {
			return domain.Record{}, err
		}
		return domain.Record{}, fmt.Errorf("%w: response lost", domain.ErrStoreUnavailable)
	}
	return s.EntityStore.Insert(ctx, rec)
}

// sequence выдаёт детерминированные идентификаторы и монотонное время.
type sequence struct {
	ids   atomic.Int64
	ticks atomic.Int64
}

func (s *sequence) NewID() string {
	return fmt.Sprintf("id-%04d", s.ids.Add(1))
}

func (s *sequence) Now() time.Time {
	return testStart.Add(time.Duration(s.ticks.Add(1)) * time.Second)
}

type fixture struct {
	store     domain.EntityStore
	faulty    *faultyStore
	publisher *msgmemory.Publisher
	registry  *prometheus.Registry
	metrics   *metrics.FulfillmentMetrics
	manager   *Manager
	cfg       Config
}

func testConfig(seq *sequence) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.BaseDelay = time.Millisecond
	cfg.CallTimeout = time.Second
	cfg.Now = seq.Now
	cfg.NewID = seq.NewID
	return cfg
}

func newFixture(t *testing.T, tune ...func(*Config)) *fixture {
	t.Helper()

	seq := &sequence{}
	cfg := testConfig(seq)
	for _, fn := range tune {
		fn(&cfg)
	}

	inner := memory.NewEntityStore()
	faulty := newFaultyStore(inner)
	reg := prometheus.NewRegistry()
	m := metrics.NewFulfillmentMetricsWithRegisterer(reg)
	pub := msgmemory.NewPublisher()

	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	return &fixture{
		store:     inner,
		faulty:    faulty,
		publisher: pub,
		registry:  reg,
		metrics:   m,
		manager:   NewManager(faulty, pub, cfg, m, log.NewEntry(logger)),
		cfg:       cfg,
	}
}

func (f *fixture) seedCustomer(t *testing.T, id, first, last string) {
	t.Helper()
	_, err := f.store.Insert(context.Background(), mapper.CustomerToRecord(domain.Customer{
		ID:        id,
		FirstName: first,
		LastName:  last,
		Email:     first + "@example.com",
	}))
	require.NoError(t, err)
}

func (f *fixture) seedProduct(t *testing.T, id, name, price string, stock int) {
	t.Helper()
	_, err := f.store.Insert(context.Background(), mapper.ProductToRecord(domain.Product{
		ID:             id,
		Name:           name,
		Price:          domain.MustMoney(price),
		AvailableStock: stock,
	}))
	require.NoError(t, err)
}

func (f *fixture) product(t *testing.T, id string) domain.Product {
	t.Helper()
	rec, err := f.store.Get(context.Background(), domain.PartitionProduct, id)
	require.NoError(t, err)
	p, err := mapper.ProductFromRecord(rec)
	require.NoError(t, err)
	return p
}

func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, metric := range family.GetMetric() {
			for k, v := range labels {
				found := false
				for _, pair := range metric.GetLabel() {
					if pair.GetName() == k && pair.GetValue() == v {
						found = true
					}
				}
				if !found {
					continue next
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
