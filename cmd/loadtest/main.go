// Команда loadtest оформляет заказы на один товар из многих потоков и проверяет,
// что склад не ушёл в минус: итоговый остаток должен равняться начальному
// за вычетом количества в успешно оформленных заказах.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/retail/internal/service/grpc"
)

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateProcess loadMode = "create-process"
	modeCreateCancel  loadMode = "create-cancel"
)

type config struct {
	addr        string
	total       int
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	stock       int
	quantity    int
	price       string
	customerTag string
	outputPath  string
}

// orderAPI — подмножество клиентов заказов и каталога, нужное сценарию.
type orderAPI interface {
	CreateOrder(ctx context.Context, in *grpcsvc.CreateOrderRequest, opts ...grpc.CallOption) (*grpcsvc.OrderResponse, error)
	UpdateOrderStatus(ctx context.Context, in *grpcsvc.UpdateOrderStatusRequest, opts ...grpc.CallOption) (*grpcsvc.OrderResponse, error)
}

type catalogAPI interface {
	CreateCustomer(ctx context.Context, in *grpcsvc.Customer, opts ...grpc.CallOption) (*grpcsvc.CustomerResponse, error)
	CreateProduct(ctx context.Context, in *grpcsvc.Product, opts ...grpc.CallOption) (*grpcsvc.ProductResponse, error)
	GetProduct(ctx context.Context, in *grpcsvc.GetByIDRequest, opts ...grpc.CallOption) (*grpcsvc.ProductResponse, error)
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 400, "total order attempts")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-process | create-cancel")
	flag.IntVar(&cfg.stock, "stock", 100, "initial stock of the contended product")
	flag.IntVar(&cfg.quantity, "quantity", 1, "quantity per order")
	flag.StringVar(&cfg.price, "price", "19.99", "product price")
	flag.StringVar(&cfg.customerTag, "customer-tag", "load", "customer id prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if cfg.total <= 0 {
		return cfg, errors.New("total must be > 0")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.connections <= 0 {
		return cfg, errors.New("connections must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.stock < 0 {
		return cfg, errors.New("stock must be >= 0")
	}
	if cfg.quantity <= 0 {
		return cfg, errors.New("quantity must be > 0")
	}
	if _, err := domain.ParseMoney(cfg.price); err != nil {
		return cfg, fmt.Errorf("price: %w", err)
	}
	if strings.TrimSpace(cfg.customerTag) == "" {
		return cfg, errors.New("customer-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreateProcess:
		return modeCreateProcess, nil
	case modeCreateCancel:
		return modeCreateCancel, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]orderAPI, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewOrderClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := runLoad(context.Background(), cfg, grpcsvc.NewCatalogClient(conns[0]), clients)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.failed() {
		os.Exit(1)
	}
}

// seedTarget заводит покупателя и товар, за остаток которого соревнуются воркеры.
func seedTarget(ctx context.Context, catalog catalogAPI, cfg config, runID string) (customerID, productID string, err error) {
	customer, err := catalog.CreateCustomer(ctx, &grpcsvc.Customer{
		ID:        fmt.Sprintf("%s-customer-%s", cfg.customerTag, runID),
		FirstName: "Load",
		LastName:  "Test",
	})
	if err != nil {
		return "", "", fmt.Errorf("create customer: %w", err)
	}

	price, err := domain.ParseMoney(cfg.price)
	if err != nil {
		return "", "", err
	}
	product, err := catalog.CreateProduct(ctx, &grpcsvc.Product{
		ID:             fmt.Sprintf("%s-product-%s", cfg.customerTag, runID),
		Name:           "Load test product",
		Price:          price,
		AvailableStock: cfg.stock,
	})
	if err != nil {
		return "", "", fmt.Errorf("create product: %w", err)
	}
	return customer.Customer.ID, product.Product.ID, nil
}

func runLoad(ctx context.Context, cfg config, catalog catalogAPI, clients []orderAPI) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("at least one order client is required")
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	seedCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	customerID, productID, err := seedTarget(seedCtx, catalog, cfg, runID)
	cancel()
	if err != nil {
		return report{}, err
	}

	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli orderAPI) {
			defer wg.Done()
			for range jobs {
				runScenario(ctx, cli, cfg, customerID, productID, col)
			}
		}(clients[workerID%len(clients)])
	}

	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))

	checkCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	final, err := catalog.GetProduct(checkCtx, &grpcsvc.GetByIDRequest{ID: productID})
	if err != nil {
		return result, fmt.Errorf("read final stock: %w", err)
	}

	result.checkStock(productID, cfg.stock, final.Product.AvailableStock, cfg.quantity)
	return result, nil
}

// runScenario оформляет один заказ и, в зависимости от режима, двигает его статус.
// Отказ по остатку и конфликт — отдельные исходы, а не ошибки сценария.
func runScenario(ctx context.Context, client orderAPI, cfg config, customerID, productID string, col *collector) outcome {
	started := time.Now()
	result, created := outcomeFailed, false
	defer func() {
		col.scenario(result, created, time.Since(started))
	}()

	resp, err := callRPC(ctx, cfg.timeout, "CreateOrder", col, func(ctx context.Context) (*grpcsvc.OrderResponse, error) {
		return client.CreateOrder(ctx, &grpcsvc.CreateOrderRequest{
			CustomerID: customerID,
			ProductID:  productID,
			Quantity:   cfg.quantity,
		})
	})
	if result = outcomeOf(err); err != nil {
		return result
	}
	created = true

	var next []domain.OrderStatus
	switch cfg.mode {
	case modeCreateProcess:
		next = []domain.OrderStatus{domain.OrderStatusProcessing, domain.OrderStatusCompleted}
	case modeCreateCancel:
		next = []domain.OrderStatus{domain.OrderStatusCancelled}
	}
	for _, status := range next {
		_, err := callRPC(ctx, cfg.timeout, "UpdateOrderStatus", col, func(ctx context.Context) (*grpcsvc.OrderResponse, error) {
			return client.UpdateOrderStatus(ctx, &grpcsvc.UpdateOrderStatusRequest{
				OrderID: resp.Order.ID,
				Status:  string(status),
			})
		})
		if err != nil {
			result = outcomeFailed
			break
		}
	}
	return result
}

func callRPC(
	ctx context.Context,
	timeout time.Duration,
	method string,
	col *collector,
	call func(context.Context) (*grpcsvc.OrderResponse, error),
) (*grpcsvc.OrderResponse, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := call(callCtx)
	col.call(method, time.Since(start), grpcCode(err))
	return resp, err
}
