package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	msgmemory "github.com/vladislavdragonenkov/retail/internal/messaging/memory"
	"github.com/vladislavdragonenkov/retail/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/retail/internal/service/grpc"
	"github.com/vladislavdragonenkov/retail/internal/service/orders"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

const bufSize = 1024 * 1024

type testEnv struct {
	orders    *grpcsvc.OrderClient
	catalog   *grpcsvc.CatalogClient
	publisher *msgmemory.Publisher
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	logger := loggerForTests()
	store := memory.NewEntityStore()
	publisher := msgmemory.NewPublisher()

	cfg := orders.DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	manager := orders.NewManager(store, publisher, cfg, nil, logger.WithField("layer", "orders"))

	server := grpc.NewServer()
	grpcsvc.RegisterOrderServiceServer(server, grpcsvc.NewOrderService(manager, logger))
	grpcsvc.RegisterCatalogServiceServer(server, grpcsvc.NewCatalogService(catalog.NewService(store, 0, logger), logger))

	go func() {
		if err := server.Serve(listener); err != nil {
			logger.WithError(err).Error("grpc serve failed")
		}
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	//nolint:staticcheck // grpc.Dial is required for bufconn testing
	conn, err := grpc.Dial("bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return &testEnv{
		orders:    grpcsvc.NewOrderClient(conn),
		catalog:   grpcsvc.NewCatalogClient(conn),
		publisher: publisher,
	}
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	return logger.WithField("component", "test")
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func seed(t *testing.T, env *testEnv, stock int) {
	t.Helper()
	ctx := testContext(t)

	_, err := env.catalog.CreateCustomer(ctx, &grpcsvc.Customer{ID: "C1", FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)
	_, err = env.catalog.CreateProduct(ctx, &grpcsvc.Product{ID: "P1", Name: "Widget", Price: domain.MustMoney("19.99"), AvailableStock: stock})
	require.NoError(t, err)
}

func TestOrderService_CreateAndGet(t *testing.T) {
	env := newTestServer(t)
	seed(t, env, 5)
	ctx := testContext(t)

	resp, err := env.orders.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{CustomerID: "C1", ProductID: "P1", Quantity: 3})
	require.NoError(t, err)
	require.NotNil(t, resp.Order)
	assert.Equal(t, "Submitted", resp.Order.Status)
	assert.Equal(t, domain.MustMoney("59.97"), resp.Order.TotalPrice)
	assert.Equal(t, "Widget", resp.Order.ProductName)

	got, err := env.orders.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: resp.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, resp.Order.ID, got.Order.ID)
	assert.Equal(t, resp.Order.TotalPrice, got.Order.TotalPrice)

	product, err := env.catalog.GetProduct(ctx, &grpcsvc.GetByIDRequest{ID: "P1"})
	require.NoError(t, err)
	assert.Equal(t, 2, product.Product.AvailableStock)

	assert.Equal(t, []string{domain.NotificationOrderCreated}, env.publisher.Types("order-notifications"))
	assert.Equal(t, []string{domain.NotificationStockUpdated}, env.publisher.Types("stock-updates"))
}

func TestOrderService_ErrorCodes(t *testing.T) {
	env := newTestServer(t)
	seed(t, env, 2)
	ctx := testContext(t)

	created, err := env.orders.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{CustomerID: "C1", ProductID: "P1", Quantity: 1})
	require.NoError(t, err)

	tests := []struct {
		name    string
		call    func() error
		code    codes.Code
		message string
	}{
		{
			name: "bad quantity",
			call: func() error {
				_, err := env.orders.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{CustomerID: "C1", ProductID: "P1"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "unknown customer",
			call: func() error {
				_, err := env.orders.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{CustomerID: "nobody", ProductID: "P1", Quantity: 1})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "insufficient stock",
			call: func() error {
				_, err := env.orders.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{CustomerID: "C1", ProductID: "P1", Quantity: 5})
				return err
			},
			code:    codes.FailedPrecondition,
			message: "Insufficient stock. Available: 1",
		},
		{
			name: "unknown status",
			call: func() error {
				_, err := env.orders.UpdateOrderStatus(ctx, &grpcsvc.UpdateOrderStatusRequest{OrderID: created.Order.ID, Status: "Shipped"})
				return err
			},
			code: codes.InvalidArgument,
		},
		{
			name: "missing order",
			call: func() error {
				_, err := env.orders.GetOrder(ctx, &grpcsvc.GetOrderRequest{OrderID: "missing"})
				return err
			},
			code: codes.NotFound,
		},
		{
			name: "stale product update",
			call: func() error {
				_, err := env.catalog.UpdateProduct(ctx, &grpcsvc.Product{ID: "P1", Name: "Widget", Version: 1})
				return err
			},
			code: codes.Aborted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			if tt.message != "" {
				assert.Equal(t, tt.message, st.Message())
			}
		})
	}
}

func TestOrderService_StatusLifecycle(t *testing.T) {
	env := newTestServer(t)
	seed(t, env, 5)
	ctx := testContext(t)

	created, err := env.orders.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{CustomerID: "C1", ProductID: "P1", Quantity: 1})
	require.NoError(t, err)

	cancelled, err := env.orders.UpdateOrderStatus(ctx, &grpcsvc.UpdateOrderStatusRequest{OrderID: created.Order.ID, Status: "canceled"})
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", cancelled.Order.Status)

	_, err = env.orders.UpdateOrderStatus(ctx, &grpcsvc.UpdateOrderStatusRequest{OrderID: created.Order.ID, Status: "Processing"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	list, err := env.orders.ListOrders(ctx, &grpcsvc.ListOrdersRequest{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)

	_, err = env.orders.DeleteOrder(ctx, &grpcsvc.DeleteOrderRequest{OrderID: created.Order.ID})
	require.NoError(t, err)
	_, err = env.orders.DeleteOrder(ctx, &grpcsvc.DeleteOrderRequest{OrderID: created.Order.ID})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCatalogService_Flow(t *testing.T) {
	env := newTestServer(t)
	seed(t, env, 5)
	ctx := testContext(t)

	customers, err := env.catalog.ListCustomers(ctx, &grpcsvc.Empty{})
	require.NoError(t, err)
	require.Len(t, customers.Customers, 1)
	assert.Equal(t, "Jane", customers.Customers[0].FirstName)

	got, err := env.catalog.GetCustomer(ctx, &grpcsvc.GetByIDRequest{ID: "C1"})
	require.NoError(t, err)
	assert.Equal(t, "Doe", got.Customer.LastName)

	customer := *got.Customer
	customer.Email = "jane.doe@example.com"
	renamed, err := env.catalog.UpdateCustomer(ctx, &customer)
	require.NoError(t, err)
	assert.Equal(t, got.Customer.Version+1, renamed.Customer.Version)
	assert.Equal(t, "jane.doe@example.com", renamed.Customer.Email)

	// Повтор с устаревшей версией отклоняется.
	_, err = env.catalog.UpdateCustomer(ctx, &customer)
	assert.Equal(t, codes.Aborted, status.Code(err))

	product, err := env.catalog.GetProduct(ctx, &grpcsvc.GetByIDRequest{ID: "P1"})
	require.NoError(t, err)

	edit := *product.Product
	edit.Price = domain.MustMoney("21.00")
	updated, err := env.catalog.UpdateProduct(ctx, &edit)
	require.NoError(t, err)
	assert.Equal(t, product.Product.Version+1, updated.Product.Version)

	products, err := env.catalog.ListProducts(ctx, &grpcsvc.Empty{})
	require.NoError(t, err)
	require.Len(t, products.Products, 1)
	assert.Equal(t, domain.MustMoney("21.00"), products.Products[0].Price)

	_, err = env.catalog.CreateProduct(ctx, &grpcsvc.Product{Name: "Broken", Price: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.catalog.DeleteProduct(ctx, &grpcsvc.GetByIDRequest{ID: "P1"})
	require.NoError(t, err)
	_, err = env.catalog.GetProduct(ctx, &grpcsvc.GetByIDRequest{ID: "P1"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = env.catalog.DeleteCustomer(ctx, &grpcsvc.GetByIDRequest{ID: "C1"})
	require.NoError(t, err)
	_, err = env.catalog.GetCustomer(ctx, &grpcsvc.GetByIDRequest{ID: "C1"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = env.catalog.DeleteCustomer(ctx, &grpcsvc.GetByIDRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// Покупателя больше нет: новый заказ на него не оформить.
	_, err = env.orders.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{CustomerID: "C1", ProductID: "P1", Quantity: 1})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
