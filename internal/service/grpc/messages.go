package grpcsvc

import (
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Order — заказ в ответах API.
type Order struct {
	ID          string       `json:"id"`
	CustomerID  string       `json:"customerId"`
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Quantity    int          `json:"quantity"`
	UnitPrice   domain.Money `json:"unitPrice"`
	TotalPrice  domain.Money `json:"totalPrice"`
	OrderDate   time.Time    `json:"orderDate"`
	Status      string       `json:"status"`
	Version     int64        `json:"version"`
}

type CreateOrderRequest struct {
	CustomerID string `json:"customerId"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

type DeleteOrderRequest struct {
	OrderID string `json:"orderId"`
}

type ListOrdersRequest struct{}

type OrderResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

// Empty — пустой ответ для операций без результата.
type Empty struct{}

// Customer — покупатель в запросах и ответах каталога.
type Customer struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	ShipAddress string `json:"shipAddress"`
	Version     int64  `json:"version"`
}

// Product — товар в запросах и ответах каталога.
type Product struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Price          domain.Money `json:"price"`
	AvailableStock int          `json:"availableStock"`
	ImageURL       string       `json:"imageUrl"`
	Version        int64        `json:"version"`
}

type GetByIDRequest struct {
	ID string `json:"id"`
}

type CustomerResponse struct {
	Customer *Customer `json:"customer"`
}

type ListCustomersResponse struct {
	Customers []*Customer `json:"customers"`
}

type ProductResponse struct {
	Product *Product `json:"product"`
}

type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

func toOrder(o domain.Order) *Order {
	return &Order{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Quantity:    o.Quantity,
		UnitPrice:   o.UnitPrice,
		TotalPrice:  o.TotalPrice(),
		OrderDate:   o.OrderDate.UTC(),
		Status:      string(o.Status),
		Version:     int64(o.Version),
	}
}

func toCustomer(c domain.Customer) *Customer {
	return &Customer{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Username:    c.Username,
		Email:       c.Email,
		ShipAddress: c.ShipAddress,
		Version:     int64(c.Version),
	}
}

func fromCustomer(c *Customer) domain.Customer {
	return domain.Customer{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Username:    c.Username,
		Email:       c.Email,
		ShipAddress: c.ShipAddress,
		Version:     domain.Version(c.Version),
	}
}

func toProduct(p domain.Product) *Product {
	return &Product{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		AvailableStock: p.AvailableStock,
		ImageURL:       p.ImageURL,
		Version:        int64(p.Version),
	}
}

func fromProduct(p *Product) domain.Product {
	return domain.Product{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		AvailableStock: p.AvailableStock,
		ImageURL:       p.ImageURL,
		Version:        domain.Version(p.Version),
	}
}
