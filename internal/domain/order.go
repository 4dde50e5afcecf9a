package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusSubmitted — заказ создан, склад уже зарезервирован.
	OrderStatusSubmitted OrderStatus = "Submitted"
	// OrderStatusProcessing — заказ взят в работу.
	OrderStatusProcessing OrderStatus = "Processing"
	// OrderStatusCompleted — заказ выполнен (конечный статус).
	OrderStatusCompleted OrderStatus = "Completed"
	// OrderStatusCancelled — заказ отменён (конечный статус).
	OrderStatusCancelled OrderStatus = "Cancelled"
)

// allowedTransitions задаёт конечный автомат статусов.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusSubmitted:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

// ParseOrderStatus разбирает статус без учёта регистра; "Canceled" принимается как синоним.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "submitted":
		return OrderStatusSubmitted, nil
	case "processing":
		return OrderStatusProcessing, nil
	case "completed":
		return OrderStatusCompleted, nil
	case "cancelled", "canceled":
		return OrderStatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrStatusUnknown, s)
	}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusSubmitted, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса выйти нельзя.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo проверяет переход по автомату. Переход в тот же статус не допускается.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Customer — покупатель. В рамках оформления заказа только читается.
type Customer struct {
	ID          string
	FirstName   string
	LastName    string
	Username    string
	Email       string
	ShipAddress string
	Version     Version
}

// FullName возвращает имя для уведомлений.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Validate проверяет обязательные поля покупателя.
func (c *Customer) Validate() []error {
	var errs []error
	if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.LastName) == "" {
		errs = append(errs, ErrNameRequired)
	}
	return errs
}

// Product — товар. Остаток меняется только резервированием.
type Product struct {
	ID             string
	Name           string
	Description    string
	Price          Money
	AvailableStock int
	ImageURL       string
	Version        Version
	// Writes — последние токены записей, нужны для разбора записей с неизвестным исходом.
	Writes WriteLog
}

// Validate проверяет инварианты товара.
func (p *Product) Validate() []error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if p.Price < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if p.AvailableStock < 0 {
		errs = append(errs, ErrStockNegative)
	}
	return errs
}

// Order — заказ. Название и цена товара фиксируются при создании.
type Order struct {
	ID          string
	CustomerID  string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   Money
	OrderDate   time.Time
	Status      OrderStatus
	Version     Version
	Writes      WriteLog
}

// TotalPrice всегда вычисляется из снимка цены.
func (o Order) TotalPrice() Money {
	return o.UnitPrice.Times(o.Quantity)
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerIDRequired)
	}
	if o.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if o.Quantity < 1 {
		errs = append(errs, ErrQuantityInvalid)
	}
	if o.UnitPrice < 0 {
		errs = append(errs, ErrPriceNegative)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	}

	return errs
}
