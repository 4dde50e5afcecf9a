package orders

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const tracerName = "github.com/vladislavdragonenkov/retail/internal/service/orders"

// tracedService оборачивает Service спанами OpenTelemetry.
type tracedService struct {
	next   Service
	tracer trace.Tracer
}

// WithTracing добавляет трассировку к next. При nil-провайдере используется noop.
func WithTracing(next Service, provider trace.TracerProvider) Service {
	if provider == nil {
		provider = nooptrace.NewTracerProvider()
	}
	return &tracedService{next: next, tracer: provider.Tracer(tracerName)}
}

func (s *tracedService) CreateOrder(ctx context.Context, customerID, productID string, quantity int) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("customer.id", customerID),
		attribute.String("product.id", productID),
		attribute.Int("order.quantity", quantity),
	))
	defer span.End()

	order, err := s.next.CreateOrder(ctx, customerID, productID, quantity)
	if err != nil {
		return order, fail(span, err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	return order, nil
}

func (s *tracedService) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	order, err := s.next.UpdateOrderStatus(ctx, orderID, status)
	return order, fail(span, err)
}

func (s *tracedService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.next.GetOrder(ctx, orderID)
	return order, fail(span, err)
}

func (s *tracedService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.next.ListOrders(ctx)
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, fail(span, err)
}

func (s *tracedService) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeleteOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	return fail(span, s.next.DeleteOrder(ctx, orderID))
}

// fail помечает спан ошибкой и возвращает её без изменений.
func fail(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.kind", string(domain.KindOf(err))))
	span.SetStatus(codes.Error, err.Error())
	return err
}
