package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

func newTestRetrier(attempts int) retrier {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return retrier{attempts: attempts, baseDelay: time.Millisecond, logger: log.NewEntry(logger)}
}

func TestRetrier_SucceedsAfterConflicts(t *testing.T) {
	r := newTestRetrier(3)

	var seen []int
	err := r.do(context.Background(), "op", nil, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 2 {
			return domain.ErrVersionConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestRetrier_NonRetryableReturnedImmediately(t *testing.T) {
	r := newTestRetrier(5)

	calls := 0
	err := r.do(context.Background(), "op", nil, func(int) error {
		calls++
		return domain.ErrQuantityInvalid
	})
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRetrier_Exhausted(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  error
		calls int
	}{
		{name: "conflict", err: domain.ErrVersionConflict, want: domain.ErrConflict, calls: 3},
		{name: "store timeout", err: fmt.Errorf("%w: timeout", domain.ErrStoreUnavailable), want: domain.ErrUnavailable, calls: 3},
		{name: "publish failure", err: fmt.Errorf("%w: broker down", domain.ErrPublishTransient), want: domain.ErrUnavailable, calls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRetrier(3)
			calls := 0
			err := r.do(context.Background(), "op", log.Fields{"case": tt.name}, func(int) error {
				calls++
				return tt.err
			})
			assert.Equal(t, tt.calls, calls)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, tt.err), "cause must be kept: %v", err)
		})
	}
}

func TestRetrier_StopsOnCancelledContext(t *testing.T) {
	r := retrier{attempts: 5, baseDelay: time.Hour, logger: log.NewEntry(log.New())}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.do(ctx, "op", nil, func(int) error {
		calls++
		cancel()
		return domain.ErrVersionConflict
	})
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetrier_BackoffIsCapped(t *testing.T) {
	r := retrier{attempts: 100, baseDelay: 10 * time.Millisecond, maxDelay: time.Second}

	assert.Equal(t, 10*time.Millisecond, r.backoff(1))
	assert.Equal(t, 20*time.Millisecond, r.backoff(2))
	assert.Equal(t, 640*time.Millisecond, r.backoff(7))
	assert.Equal(t, time.Second, r.backoff(8))
	// Без ограничения сдвиг на 63 и больше переполнил бы Duration.
	for _, attempt := range []int{31, 40, 63, 64, 99} {
		d := r.backoff(attempt)
		assert.Equal(t, time.Second, d, "attempt %d", attempt)
	}

	huge := retrier{baseDelay: time.Hour, maxDelay: 2 * time.Hour}
	assert.Equal(t, 2*time.Hour, huge.backoff(40))
}

func TestConfig_MaxDelayNotBelowBaseDelay(t *testing.T) {
	cfg := Config{BaseDelay: 5 * time.Second, MaxDelay: time.Second}.withDefaults()
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{BaseDelay: -time.Second}.withDefaults()
	def := DefaultConfig()

	assert.Equal(t, def.OrderChannel, cfg.OrderChannel)
	assert.Equal(t, def.StockChannel, cfg.StockChannel)
	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.BaseDelay)
	assert.Equal(t, def.MaxDelay, cfg.MaxDelay)
	assert.Equal(t, def.CallTimeout, cfg.CallTimeout)
	assert.False(t, cfg.Compensate)
	assert.NotNil(t, cfg.Now)
	assert.NotNil(t, cfg.NewID)

	assert.True(t, DefaultConfig().Compensate)
	id := NewRowID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
}
