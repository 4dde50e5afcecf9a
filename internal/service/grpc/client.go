package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// OrderClient — клиент API заказов.
type OrderClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderClient(cc grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, orderServiceName, "CreateOrder", in, opts)
}

func (c *OrderClient) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, orderServiceName, "UpdateOrderStatus", in, opts)
}

func (c *OrderClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	return invoke[OrderResponse](ctx, c.cc, orderServiceName, "GetOrder", in, opts)
}

func (c *OrderClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, orderServiceName, "ListOrders", in, opts)
}

func (c *OrderClient) DeleteOrder(ctx context.Context, in *DeleteOrderRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, orderServiceName, "DeleteOrder", in, opts)
}

// CatalogClient — клиент API каталога.
type CatalogClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{cc: cc}
}

func (c *CatalogClient) CreateCustomer(ctx context.Context, in *Customer, opts ...grpc.CallOption) (*CustomerResponse, error) {
	return invoke[CustomerResponse](ctx, c.cc, catalogServiceName, "CreateCustomer", in, opts)
}

func (c *CatalogClient) GetCustomer(ctx context.Context, in *GetByIDRequest, opts ...grpc.CallOption) (*CustomerResponse, error) {
	return invoke[CustomerResponse](ctx, c.cc, catalogServiceName, "GetCustomer", in, opts)
}

func (c *CatalogClient) ListCustomers(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListCustomersResponse, error) {
	return invoke[ListCustomersResponse](ctx, c.cc, catalogServiceName, "ListCustomers", in, opts)
}

func (c *CatalogClient) UpdateCustomer(ctx context.Context, in *Customer, opts ...grpc.CallOption) (*CustomerResponse, error) {
	return invoke[CustomerResponse](ctx, c.cc, catalogServiceName, "UpdateCustomer", in, opts)
}

func (c *CatalogClient) DeleteCustomer(ctx context.Context, in *GetByIDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, catalogServiceName, "DeleteCustomer", in, opts)
}

func (c *CatalogClient) CreateProduct(ctx context.Context, in *Product, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, catalogServiceName, "CreateProduct", in, opts)
}

func (c *CatalogClient) GetProduct(ctx context.Context, in *GetByIDRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, catalogServiceName, "GetProduct", in, opts)
}

func (c *CatalogClient) ListProducts(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, catalogServiceName, "ListProducts", in, opts)
}

func (c *CatalogClient) UpdateProduct(ctx context.Context, in *Product, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, catalogServiceName, "UpdateProduct", in, opts)
}

func (c *CatalogClient) DeleteProduct(ctx context.Context, in *GetByIDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, catalogServiceName, "DeleteProduct", in, opts)
}
