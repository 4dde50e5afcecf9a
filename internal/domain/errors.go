package domain

import (
	"context"
	"errors"
	"fmt"
)

// Виды ошибок, которые видит вызывающая сторона.
var (
	// ErrBadRequest — некорректный ввод, пользователь должен исправить запрос.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound — клиент, товар или заказ не найден.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock — на складе меньше единиц, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict — конфликт optimistic concurrency после исчерпания повторов.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition — недопустимая смена статуса заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnavailable — хранилище или канал уведомлений недоступны после всех повторов.
	ErrUnavailable = errors.New("unavailable")
	// ErrPartialFailure — часть шагов выполнена, требуется ручная сверка.
	ErrPartialFailure = errors.New("partial failure")
)

// Ошибки уровня хранилища сущностей.
var (
	// ErrRecordNotFound возвращается, если строки нет в партиции.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists возвращается при вставке строки с занятым идентификатором.
	ErrRecordExists = errors.New("record already exists")
	// ErrVersionConflict сигнализирует, что строка изменена после чтения.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrStoreUnavailable — временная ошибка хранилища (сеть, таймаут).
	ErrStoreUnavailable = errors.New("entity store unavailable")
	// ErrPublishTransient — временная ошибка канала уведомлений, можно повторить.
	ErrPublishTransient = errors.New("notification publish transient error")
)

// Ошибки валидации входных данных.
var (
	ErrCustomerIDRequired = fmt.Errorf("%w: customer id is required", ErrBadRequest)
	ErrProductIDRequired  = fmt.Errorf("%w: product id is required", ErrBadRequest)
	ErrOrderIDRequired    = fmt.Errorf("%w: order id is required", ErrBadRequest)
	ErrQuantityInvalid    = fmt.Errorf("%w: quantity must be at least 1", ErrBadRequest)
	ErrStatusUnknown      = fmt.Errorf("%w: unknown order status", ErrBadRequest)
	ErrNameRequired       = fmt.Errorf("%w: name is required", ErrBadRequest)
	ErrPriceNegative      = fmt.Errorf("%w: price must be non-negative", ErrBadRequest)
	ErrStockNegative      = fmt.Errorf("%w: available stock must be non-negative", ErrBadRequest)
)

// ErrorKind классифицирует ошибку по таксономии сервиса.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindBadRequest        ErrorKind = "bad_request"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindConflict          ErrorKind = "conflict"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindUnavailable       ErrorKind = "unavailable"
	KindPartialFailure    ErrorKind = "partial_failure"
	KindInternal          ErrorKind = "internal"
)

// InsufficientStockError несёт остаток для показа пользователю.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Is позволяет сравнивать через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// FailureStep — шаг, на котором произошёл частичный сбой.
type FailureStep string

const (
	StepPersistOrder FailureStep = "persist_order"
	StepNotify       FailureStep = "notify"
	StepCompensate   FailureStep = "compensate"
)

// PartialFailureError описывает сбой после того, как часть изменений уже применена.
type PartialFailureError struct {
	Step        FailureStep
	OrderID     string
	ProductID   string
	Quantity    int
	Compensated bool
	Err         error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure at %s (order=%s product=%s qty=%d compensated=%t): %v",
		e.Step, e.OrderID, e.ProductID, e.Quantity, e.Compensated, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsTransient сообщает, что операцию можно повторить: таймаут или временная недоступность.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrPublishTransient) ||
		errors.Is(err, context.DeadlineExceeded)
}

// KindOf сводит произвольную ошибку к виду из таксономии.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPartialFailure):
		return KindPartialFailure
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrConflict), errors.Is(err, ErrVersionConflict), errors.Is(err, ErrRecordExists):
		return KindConflict
	case errors.Is(err, ErrUnavailable), IsTransient(err):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// UserMessage возвращает человекочитаемое сообщение для каждого вида ошибки.
func UserMessage(err error) string {
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return fmt.Sprintf("Insufficient stock. Available: %d", stockErr.Available)
	}

	switch KindOf(err) {
	case KindNone:
		return ""
	case KindBadRequest:
		return "The request is invalid: " + err.Error()
	case KindNotFound:
		return "The requested customer, product or order was not found."
	case KindInsufficientStock:
		return "Insufficient stock for the requested quantity."
	case KindConflict:
		return "The item was changed by someone else at the same time. Please try again."
	case KindInvalidTransition:
		return "The order cannot be moved to the requested status."
	case KindUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	case KindPartialFailure:
		return "The order could not be completed and needs manual review."
	default:
		return "An unexpected error occurred."
	}
}
