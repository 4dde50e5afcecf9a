package grpcsvc

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/catalog"
)

const catalogServiceName = "retail.v1.CatalogService"

// CatalogServiceServer — серверная сторона API каталога.
type CatalogServiceServer interface {
	CreateCustomer(context.Context, *Customer) (*CustomerResponse, error)
	GetCustomer(context.Context, *GetByIDRequest) (*CustomerResponse, error)
	ListCustomers(context.Context, *Empty) (*ListCustomersResponse, error)
	UpdateCustomer(context.Context, *Customer) (*CustomerResponse, error)
	DeleteCustomer(context.Context, *GetByIDRequest) (*Empty, error)
	CreateProduct(context.Context, *Product) (*ProductResponse, error)
	GetProduct(context.Context, *GetByIDRequest) (*ProductResponse, error)
	ListProducts(context.Context, *Empty) (*ListProductsResponse, error)
	UpdateProduct(context.Context, *Product) (*ProductResponse, error)
	DeleteProduct(context.Context, *GetByIDRequest) (*Empty, error)
}

// CatalogService реализует gRPC API каталога.
type CatalogService struct {
	svc    *catalog.Service
	logger *log.Entry
}

func NewCatalogService(svc *catalog.Service, logger *log.Entry) *CatalogService {
	if logger == nil {
		logger = log.WithField("component", "catalog-service")
	}
	return &CatalogService{svc: svc, logger: logger}
}

func errRequestRequired() error {
	return fmt.Errorf("%w: request is required", domain.ErrBadRequest)
}

func (s *CatalogService) CreateCustomer(ctx context.Context, req *Customer) (*CustomerResponse, error) {
	if req == nil {
		return nil, toStatus(s.logger, "CreateCustomer", errRequestRequired())
	}
	c, err := s.svc.CreateCustomer(ctx, fromCustomer(req))
	if err != nil {
		return nil, toStatus(s.logger, "CreateCustomer", err)
	}
	return &CustomerResponse{Customer: toCustomer(c)}, nil
}

func (s *CatalogService) GetCustomer(ctx context.Context, req *GetByIDRequest) (*CustomerResponse, error) {
	if req == nil {
		req = &GetByIDRequest{}
	}
	c, err := s.svc.GetCustomer(ctx, strings.TrimSpace(req.ID))
	if err != nil {
		return nil, toStatus(s.logger, "GetCustomer", err)
	}
	return &CustomerResponse{Customer: toCustomer(c)}, nil
}

func (s *CatalogService) ListCustomers(ctx context.Context, _ *Empty) (*ListCustomersResponse, error) {
	list, err := s.svc.ListCustomers(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "ListCustomers", err)
	}
	resp := &ListCustomersResponse{Customers: make([]*Customer, 0, len(list))}
	for _, c := range list {
		resp.Customers = append(resp.Customers, toCustomer(c))
	}
	return resp, nil
}

// UpdateCustomer применяет правку, только если req.Version совпадает с текущей версией покупателя.
func (s *CatalogService) UpdateCustomer(ctx context.Context, req *Customer) (*CustomerResponse, error) {
	if req == nil {
		return nil, toStatus(s.logger, "UpdateCustomer", errRequestRequired())
	}
	c, err := s.svc.UpdateCustomer(ctx, fromCustomer(req))
	if err != nil {
		return nil, toStatus(s.logger, "UpdateCustomer", err)
	}
	return &CustomerResponse{Customer: toCustomer(c)}, nil
}

func (s *CatalogService) DeleteCustomer(ctx context.Context, req *GetByIDRequest) (*Empty, error) {
	if req == nil {
		req = &GetByIDRequest{}
	}
	if err := s.svc.DeleteCustomer(ctx, strings.TrimSpace(req.ID)); err != nil {
		return nil, toStatus(s.logger, "DeleteCustomer", err)
	}
	return &Empty{}, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *Product) (*ProductResponse, error) {
	if req == nil {
		return nil, toStatus(s.logger, "CreateProduct", errRequestRequired())
	}
	p, err := s.svc.CreateProduct(ctx, fromProduct(req))
	if err != nil {
		return nil, toStatus(s.logger, "CreateProduct", err)
	}
	return &ProductResponse{Product: toProduct(p)}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, req *GetByIDRequest) (*ProductResponse, error) {
	if req == nil {
		req = &GetByIDRequest{}
	}
	p, err := s.svc.GetProduct(ctx, strings.TrimSpace(req.ID))
	if err != nil {
		return nil, toStatus(s.logger, "GetProduct", err)
	}
	return &ProductResponse{Product: toProduct(p)}, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, _ *Empty) (*ListProductsResponse, error) {
	list, err := s.svc.ListProducts(ctx)
	if err != nil {
		return nil, toStatus(s.logger, "ListProducts", err)
	}
	resp := &ListProductsResponse{Products: make([]*Product, 0, len(list))}
	for _, p := range list {
		resp.Products = append(resp.Products, toProduct(p))
	}
	return resp, nil
}

// UpdateProduct применяет правку, только если req.Version совпадает с текущей версией товара.
func (s *CatalogService) UpdateProduct(ctx context.Context, req *Product) (*ProductResponse, error) {
	if req == nil {
		return nil, toStatus(s.logger, "UpdateProduct", errRequestRequired())
	}
	p, err := s.svc.UpdateProduct(ctx, fromProduct(req))
	if err != nil {
		return nil, toStatus(s.logger, "UpdateProduct", err)
	}
	return &ProductResponse{Product: toProduct(p)}, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, req *GetByIDRequest) (*Empty, error) {
	if req == nil {
		req = &GetByIDRequest{}
	}
	if err := s.svc.DeleteProduct(ctx, strings.TrimSpace(req.ID)); err != nil {
		return nil, toStatus(s.logger, "DeleteProduct", err)
	}
	return &Empty{}, nil
}

// CatalogServiceDesc описывает методы API каталога.
var CatalogServiceDesc = grpc.ServiceDesc{
	ServiceName: catalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(catalogServiceName, "CreateCustomer", CatalogServiceServer.CreateCustomer),
		unary(catalogServiceName, "GetCustomer", CatalogServiceServer.GetCustomer),
		unary(catalogServiceName, "ListCustomers", CatalogServiceServer.ListCustomers),
		unary(catalogServiceName, "UpdateCustomer", CatalogServiceServer.UpdateCustomer),
		unary(catalogServiceName, "DeleteCustomer", CatalogServiceServer.DeleteCustomer),
		unary(catalogServiceName, "CreateProduct", CatalogServiceServer.CreateProduct),
		unary(catalogServiceName, "GetProduct", CatalogServiceServer.GetProduct),
		unary(catalogServiceName, "ListProducts", CatalogServiceServer.ListProducts),
		unary(catalogServiceName, "UpdateProduct", CatalogServiceServer.UpdateProduct),
		unary(catalogServiceName, "DeleteProduct", CatalogServiceServer.DeleteProduct),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "retail/v1/catalog_service",
}

// RegisterCatalogServiceServer регистрирует реализацию API каталога.
func RegisterCatalogServiceServer(r grpc.ServiceRegistrar, srv CatalogServiceServer) {
	r.RegisterService(&CatalogServiceDesc, srv)
}

var _ CatalogServiceServer = (*CatalogService)(nil)
