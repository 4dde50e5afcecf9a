package domain

import "time"

// Типы уведомлений.
const (
	NotificationOrderCreated       = "OrderCreated"
	NotificationStockUpdated       = "StockUpdated"
	NotificationOrderStatusUpdated = "OrderStatusUpdated"
)

// OrderCreatedNotification публикуется после сохранения нового заказа.
type OrderCreatedNotification struct {
	Type         string      `json:"type"`
	OrderID      string      `json:"orderId"`
	CustomerID   string      `json:"customerId"`
	CustomerName string      `json:"customerName"`
	ProductID    string      `json:"productId"`
	ProductName  string      `json:"productName"`
	Quantity     int         `json:"quantity"`
	UnitPrice    Money       `json:"unitPrice"`
	TotalPrice   Money       `json:"totalPrice"`
	OrderDateUTC time.Time   `json:"orderDateUtc"`
	Status       OrderStatus `json:"status"`
}

// StockUpdatedNotification публикуется после списания остатка.
type StockUpdatedNotification struct {
	Type          string    `json:"type"`
	ProductID     string    `json:"productId"`
	ProductName   string    `json:"productName"`
	PreviousStock int       `json:"previousStock"`
	NewStock      int       `json:"newStock"`
	UpdatedAtUTC  time.Time `json:"updatedAtUtc"`
	UpdatedBy     string    `json:"updatedBy"`
}

// OrderStatusUpdatedNotification публикуется после смены статуса.
type OrderStatusUpdatedNotification struct {
	Type           string      `json:"type"`
	OrderID        string      `json:"orderId"`
	PreviousStatus OrderStatus `json:"previousStatus"`
	NewStatus      OrderStatus `json:"newStatus"`
	UpdatedAtUTC   time.Time   `json:"updatedAtUtc"`
	UpdatedBy      string      `json:"updatedBy"`
}

// NewOrderCreated собирает уведомление из сохранённого заказа и покупателя.
func NewOrderCreated(order Order, customer Customer) OrderCreatedNotification {
	return OrderCreatedNotification{
		Type:         NotificationOrderCreated,
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		CustomerName: customer.FullName(),
		ProductID:    order.ProductID,
		ProductName:  order.ProductName,
		Quantity:     order.Quantity,
		UnitPrice:    order.UnitPrice,
		TotalPrice:   order.TotalPrice(),
		OrderDateUTC: order.OrderDate.UTC(),
		Status:       order.Status,
	}
}

// NewStockUpdated собирает уведомление об изменении остатка.
func NewStockUpdated(product Product, previousStock int, at time.Time, by string) StockUpdatedNotification {
	return StockUpdatedNotification{
		Type:          NotificationStockUpdated,
		ProductID:     product.ID,
		ProductName:   product.Name,
		PreviousStock: previousStock,
		NewStock:      product.AvailableStock,
		UpdatedAtUTC:  at.UTC(),
		UpdatedBy:     by,
	}
}

// NewOrderStatusUpdated собирает уведомление о смене статуса.
func NewOrderStatusUpdated(orderID string, previous, next OrderStatus, at time.Time, by string) OrderStatusUpdatedNotification {
	return OrderStatusUpdatedNotification{
		Type:           NotificationOrderStatusUpdated,
		OrderID:        orderID,
		PreviousStatus: previous,
		NewStatus:      next,
		UpdatedAtUTC:   at.UTC(),
		UpdatedBy:      by,
	}
}
