package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// retrier повторяет операцию при конфликте версий или временном сбое.
// Остальные ошибки возвращаются сразу.
type retrier struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	logger    *log.Entry
}

// maxBackoffShift не даёт сдвигу переполнить time.Duration.
const maxBackoffShift = 30

func retryable(err error) bool {
	return domain.IsVersionConflict(err) || domain.IsTransient(err)
}

// backoff возвращает паузу перед попыткой attempt (с единицы): baseDelay*2^(attempt-1),
// но не больше maxDelay.
func (r retrier) backoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	if r.maxDelay > 0 && r.baseDelay > r.maxDelay>>shift {
		return r.maxDelay
	}
	return r.baseDelay << shift
}

// do вызывает fn не более attempts раз с экспоненциальной паузой, ограниченной maxDelay.
// После исчерпания попыток конфликт превращается в ErrConflict, временный сбой — в ErrUnavailable.
func (r retrier) do(ctx context.Context, op string, fields log.Fields, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s interrupted: %w", domain.ErrUnavailable, op, ctx.Err())
			case <-time.After(delay):
			}
		}

		err = fn(attempt)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt+1 == r.attempts {
			break
		}

		r.logger.WithError(err).WithFields(fields).WithFields(log.Fields{
			"operation": op,
			"attempt":   attempt + 1,
		}).Warn("operation failed, retrying")
	}

	if domain.IsVersionConflict(err) {
		return fmt.Errorf("%w: %s gave up after %d attempts: %w", domain.ErrConflict, op, r.attempts, err)
	}
	return fmt.Errorf("%w: %s gave up after %d attempts: %w", domain.ErrUnavailable, op, r.attempts, err)
}
