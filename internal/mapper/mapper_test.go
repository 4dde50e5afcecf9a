package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

func TestProductRecordRoundTrip(t *testing.T) {
	p := domain.Product{
		ID:             "p1",
		Name:           "Mug",
		Description:    "Blue",
		Price:          domain.MustMoney("19.99"),
		AvailableStock: 5,
		ImageURL:       "https://img/mug.png",
		Version:        7,
		Writes:         domain.WriteLog{"w-0", "w-1"},
	}

	rec := ProductToRecord(p)
	require.Equal(t, domain.PartitionProduct, rec.Partition)
	require.Equal(t, "19.99", rec.Properties["Price"])
	require.Equal(t, "5", rec.Properties["AvailableStock"])
	require.Equal(t, "w-1", rec.WriteID)

	got, err := ProductFromRecord(rec)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestOrderRecordRoundTrip(t *testing.T) {
	o := domain.Order{
		ID:          "o1",
		CustomerID:  "c1",
		ProductID:   "p1",
		ProductName: "Mug",
		Quantity:    3,
		UnitPrice:   domain.MustMoney("19.99"),
		OrderDate:   time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC),
		Status:      domain.OrderStatusProcessing,
		Version:     2,
	}

	got, err := OrderFromRecord(OrderToRecord(o))
	require.NoError(t, err)
	require.Equal(t, o, got)
	require.Equal(t, "59.97", got.TotalPrice().String())
}

func TestCustomerRecordRoundTrip(t *testing.T) {
	c := domain.Customer{ID: "c1", FirstName: "Ada", LastName: "Lovelace", Username: "ada", Email: "ada@example.com", ShipAddress: "London", Version: 1}

	got, err := CustomerFromRecord(CustomerToRecord(c))
	require.NoError(t, err)
	require.Equal(t, c, got)
	require.Equal(t, "Ada Lovelace", got.FullName())
}

func TestFromRecord_WrongPartition(t *testing.T) {
	rec := CustomerToRecord(domain.Customer{ID: "c1", FirstName: "Ada"})

	_, err := ProductFromRecord(rec)
	require.Error(t, err)

	_, err = OrderFromRecord(rec)
	require.Error(t, err)
}

func TestFromRecord_CorruptProperties(t *testing.T) {
	rec := ProductToRecord(domain.Product{ID: "p1", Name: "Mug", Price: 100, AvailableStock: 1})
	rec.Properties["AvailableStock"] = "many"

	_, err := ProductFromRecord(rec)
	require.Error(t, err)

	order := OrderToRecord(domain.Order{ID: "o1", Quantity: 1, Status: domain.OrderStatusSubmitted, OrderDate: time.Now()})
	order.Properties["Status"] = "Shipped"
	_, err = OrderFromRecord(order)
	require.Error(t, err)
}

func TestWriteLogOf(t *testing.T) {
	require.Nil(t, WriteLogOf(domain.Record{}))
	require.Equal(t, domain.WriteLog{"w"}, WriteLogOf(domain.Record{WriteID: "w"}))
	require.Equal(t, domain.WriteLog{"a", "b"}, WriteLogOf(domain.Record{
		WriteID:    "b",
		Properties: map[string]string{"WriteLog": "a,b"},
	}))
}
