// Package mapper явно переводит строки хранилища в доменные сущности и обратно.
// Каждое свойство читается и пишется по имени, без рефлексии.
package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Имена свойств в хранилище.
const (
	propFirstName      = "FirstName"
	propLastName       = "LastName"
	propUsername       = "Username"
	propEmail          = "Email"
	propShipAddress    = "ShipAddress"
	propProductName    = "ProductName"
	propDescription    = "Description"
	propPrice          = "Price"
	propAvailableStock = "AvailableStock"
	propImageURL       = "ImageURL"
	propCustomerID     = "CustomerID"
	propProductID      = "ProductID"
	propQuantity       = "Quantity"
	propUnitPrice      = "UnitPrice"
	propOrderDate      = "OrderDate"
	propStatus         = "Status"
	propWriteLog       = "WriteLog"
)

// CustomerToRecord переводит покупателя в строку партиции Customer.
func CustomerToRecord(c domain.Customer) domain.Record {
	return domain.Record{
		Partition: domain.PartitionCustomer,
		ID:        c.ID,
		Version:   c.Version,
		Properties: map[string]string{
			propFirstName:   c.FirstName,
			propLastName:    c.LastName,
			propUsername:    c.Username,
			propEmail:       c.Email,
			propShipAddress: c.ShipAddress,
		},
	}
}

// CustomerFromRecord восстанавливает покупателя из строки.
func CustomerFromRecord(rec domain.Record) (domain.Customer, error) {
	if err := expectPartition(rec, domain.PartitionCustomer); err != nil {
		return domain.Customer{}, err
	}
	return domain.Customer{
		ID:          rec.ID,
		FirstName:   rec.Properties[propFirstName],
		LastName:    rec.Properties[propLastName],
		Username:    rec.Properties[propUsername],
		Email:       rec.Properties[propEmail],
		ShipAddress: rec.Properties[propShipAddress],
		Version:     rec.Version,
	}, nil
}

// ProductToRecord переводит товар в строку партиции Product.
func ProductToRecord(p domain.Product) domain.Record {
	return domain.Record{
		Partition: domain.PartitionProduct,
		ID:        p.ID,
		Version:   p.Version,
		WriteID:   p.Writes.Last(),
		Properties: map[string]string{
			propWriteLog:       strings.Join(p.Writes, ","),
			propProductName:    p.Name,
			propDescription:    p.Description,
			propPrice:          p.Price.String(),
			propAvailableStock: strconv.Itoa(p.AvailableStock),
			propImageURL:       p.ImageURL,
		},
	}
}

// ProductFromRecord восстанавливает товар из строки.
func ProductFromRecord(rec domain.Record) (domain.Product, error) {
	if err := expectPartition(rec, domain.PartitionProduct); err != nil {
		return domain.Product{}, err
	}
	price, err := moneyProp(rec, propPrice)
	if err != nil {
		return domain.Product{}, err
	}
	stock, err := intProp(rec, propAvailableStock)
	if err != nil {
		return domain.Product{}, err
	}
	return domain.Product{
		ID:             rec.ID,
		Name:           rec.Properties[propProductName],
		Description:    rec.Properties[propDescription],
		Price:          price,
		AvailableStock: stock,
		ImageURL:       rec.Properties[propImageURL],
		Version:        rec.Version,
		Writes:         WriteLogOf(rec),
	}, nil
}

// OrderToRecord переводит заказ в строку партиции Order.
// Итоговая сумма не хранится: она всегда выводится из цены и количества.
func OrderToRecord(o domain.Order) domain.Record {
	return domain.Record{
		Partition: domain.PartitionOrder,
		ID:        o.ID,
		Version:   o.Version,
		WriteID:   o.Writes.Last(),
		Properties: map[string]string{
			propWriteLog:    strings.Join(o.Writes, ","),
			propCustomerID:  o.CustomerID,
			propProductID:   o.ProductID,
			propProductName: o.ProductName,
			propQuantity:    strconv.Itoa(o.Quantity),
			propUnitPrice:   o.UnitPrice.String(),
			propOrderDate:   o.OrderDate.UTC().Format(time.RFC3339Nano),
			propStatus:      string(o.Status),
		},
	}
}

// OrderFromRecord восстанавливает заказ из строки.
func OrderFromRecord(rec domain.Record) (domain.Order, error) {
	if err := expectPartition(rec, domain.PartitionOrder); err != nil {
		return domain.Order{}, err
	}
	qty, err := intProp(rec, propQuantity)
	if err != nil {
		return domain.Order{}, err
	}
	price, err := moneyProp(rec, propUnitPrice)
	if err != nil {
		return domain.Order{}, err
	}
	orderDate, err := time.Parse(time.RFC3339Nano, rec.Properties[propOrderDate])
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: parse %s: %w", rec.ID, propOrderDate, err)
	}
	status := domain.OrderStatus(rec.Properties[propStatus])
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("order %s: unknown status %q", rec.ID, status)
	}
	return domain.Order{
		ID:          rec.ID,
		CustomerID:  rec.Properties[propCustomerID],
		ProductID:   rec.Properties[propProductID],
		ProductName: rec.Properties[propProductName],
		Quantity:    qty,
		UnitPrice:   price,
		OrderDate:   orderDate.UTC(),
		Status:      status,
		Version:     rec.Version,
		Writes:      WriteLogOf(rec),
	}, nil
}

// WriteLogOf читает журнал токенов записи из строки.
// Для строк без журнала используется WriteID последней записи.
func WriteLogOf(rec domain.Record) domain.WriteLog {
	if raw := rec.Properties[propWriteLog]; raw != "" {
		return domain.WriteLog(strings.Split(raw, ","))
	}
	if rec.WriteID != "" {
		return domain.WriteLog{rec.WriteID}
	}
	return nil
}

func expectPartition(rec domain.Record, want domain.Partition) error {
	if rec.Partition != want {
		return fmt.Errorf("record %s: expected partition %s, got %s", rec.ID, want, rec.Partition)
	}
	return nil
}

func intProp(rec domain.Record, name string) (int, error) {
	v, err := strconv.Atoi(rec.Properties[name])
	if err != nil {
		return 0, fmt.Errorf("%s %s: parse %s: %w", rec.Partition, rec.ID, name, err)
	}
	return v, nil
}

func moneyProp(rec domain.Record, name string) (domain.Money, error) {
	m, err := domain.ParseMoney(rec.Properties[name])
	if err != nil {
		return 0, fmt.Errorf("%s %s: parse %s: %w", rec.Partition, rec.ID, name, err)
	}
	return m, nil
}
