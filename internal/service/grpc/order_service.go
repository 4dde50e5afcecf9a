// Package grpcsvc — gRPC API сервиса заказов и каталога.
// Сообщения — Go-структуры, передаются JSON-кодеком; дескрипторы сервисов описаны вручную.
package grpcsvc

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/orders"
)

const orderServiceName = "retail.v1.OrderService"

// OrderServiceServer — серверная сторона API заказов.
type OrderServiceServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*OrderResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	DeleteOrder(context.Context, *DeleteOrderRequest) (*Empty, error)
}

// OrderService реализует gRPC API поверх менеджера заказов.
type OrderService struct {
	svc    orders.Service
	logger *log.Entry
}

// NewOrderService конструирует сервис. logger может быть nil.
func NewOrderService(svc orders.Service, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &OrderService{svc: svc, logger: logger}
}

// CreateOrder оформляет заказ.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	if req == nil {
		return nil, toStatus(s.logger, "CreateOrder", fmt.Errorf("%w: request is required", domain.ErrBadRequest))
	}
	order, err := s.svc.CreateOrder(ctx, strings.TrimSpace(req.CustomerID), strings.TrimSpace(req.ProductID), req.Quantity)
	if err != nil {
		return nil, toStatus(s.logger, "CreateOrder", err)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

// UpdateOrderStatus меняет статус заказа. Статус разбирается без учёта регистра.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	if req == nil {
		return nil, toStatus(s.logger, "UpdateOrderStatus", fmt.Errorf("%w: request is required", domain.ErrBadRequest))
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, toStatus(s.logger, "UpdateOrderStatus", err)
	}
	order, err := s.svc.UpdateOrderStatus(ctx, strings.TrimSpace(req.OrderID), next)
	if err != nil {
		return nil, toStatus(s.logger, "UpdateOrderStatus", err)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	if req == nil {
		req = &GetOrderRequest{}
	}
	order, err := s.svc.GetOrder(ctx, strings.TrimSpace(req.OrderID))
	if err != nil {
		return nil, toStatus(s.logger, "GetOrder", err)
	}
	return &OrderResponse{Order: toOrder(order)}, nil
}

func (s *OrderService) ListOrders(ctx context.Context, _ *ListOrdersRequest) (*ListOrdersResponse, error) {
	list, err := s.svc.ListOrders(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "ListOrders", err)
	}
	resp := &ListOrdersResponse{Orders: make([]*Order, 0, len(list))}
	for _, o := range list {
		resp.Orders = append(resp.Orders, toOrder(o))
	}
	return resp, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, req *DeleteOrderRequest) (*Empty, error) {
	if req == nil {
		req = &DeleteOrderRequest{}
	}
	if err := s.svc.DeleteOrder(ctx, strings.TrimSpace(req.OrderID)); err != nil {
		return nil, toStatus(s.logger, "DeleteOrder", err)
	}
	return &Empty{}, nil
}

// OrderServiceDesc описывает методы API заказов для grpc.Server.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(orderServiceName, "CreateOrder", OrderServiceServer.CreateOrder),
		unary(orderServiceName, "UpdateOrderStatus", OrderServiceServer.UpdateOrderStatus),
		unary(orderServiceName, "GetOrder", OrderServiceServer.GetOrder),
		unary(orderServiceName, "ListOrders", OrderServiceServer.ListOrders),
		unary(orderServiceName, "DeleteOrder", OrderServiceServer.DeleteOrder),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "retail/v1/order_service",
}

// RegisterOrderServiceServer регистрирует реализацию API заказов.
func RegisterOrderServiceServer(r grpc.ServiceRegistrar, srv OrderServiceServer) {
	r.RegisterService(&OrderServiceDesc, srv)
}

// unary строит описание унарного метода для сервера типа S.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var _ OrderServiceServer = (*OrderService)(nil)
