package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// outcome — чем закончился один сценарий заказа.
type outcome string

const (
	// outcomePlaced — заказ создан, и все смены статуса прошли.
	outcomePlaced outcome = "placed"
	// outcomeInsufficientStock — склад отказал; под нагрузкой это ожидаемо.
	outcomeInsufficientStock outcome = "insufficient_stock"
	// outcomeConflict — сервис исчерпал повторы при конфликте версий.
	outcomeConflict outcome = "conflict"
	// outcomeFailed — любая другая ошибка, включая сбой смены статуса уже созданного заказа.
	outcomeFailed outcome = "failed"
)

// outcomeOf раскладывает ответ CreateOrder по исходам сценария.
func outcomeOf(err error) outcome {
	switch grpcCode(err) {
	case codes.OK:
		return outcomePlaced
	case codes.FailedPrecondition:
		return outcomeInsufficientStock
	case codes.Aborted:
		return outcomeConflict
	default:
		return outcomeFailed
	}
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type scenarioReport struct {
	Total             int64          `json:"total"`
	Placed            int64          `json:"placed"`
	InsufficientStock int64          `json:"insufficient_stock"`
	Conflict          int64          `json:"conflict"`
	Failed            int64          `json:"failed"`
	LatencyMs         latencySummary `json:"latency_ms"`
}

// stockReport — проверка на перепродажу: остаток должен сойтись с числом созданных заказов.
type stockReport struct {
	ProductID     string `json:"product_id"`
	Initial       int    `json:"initial"`
	Final         int    `json:"final"`
	Expected      int64  `json:"expected"`
	OrdersCreated int64  `json:"orders_created"`
	Oversold      bool   `json:"oversold"`
}

type report struct {
	StartedAt       time.Time               `json:"started_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	RPS             float64                 `json:"rps"`
	Scenarios       scenarioReport          `json:"scenarios"`
	Stock           stockReport             `json:"stock"`
	Methods         map[string]methodReport `json:"methods"`
}

// checkStock заполняет stock по итоговому остатку товара.
func (r *report) checkStock(productID string, initial, final, quantity int) {
	expected := int64(initial) - r.Stock.OrdersCreated*int64(quantity)
	r.Stock.ProductID = productID
	r.Stock.Initial = initial
	r.Stock.Final = final
	r.Stock.Expected = expected
	r.Stock.Oversold = final < 0 || int64(final) != expected
}

// failed — итог, при котором прогон завершается с ненулевым кодом.
func (r report) failed() bool {
	return r.Stock.Oversold || r.Scenarios.Failed > 0
}

type methodStats struct {
	codes     map[string]int64
	latencies []float64
}

// collector копит вызовы RPC и исходы сценариев из многих воркеров.
type collector struct {
	mu        sync.Mutex
	methods   map[string]*methodStats
	outcomes  map[outcome]int64
	created   int64
	scenarios []float64
}

func newCollector() *collector {
	return &collector{
		methods:  make(map[string]*methodStats),
		outcomes: make(map[outcome]int64),
	}
}

func (c *collector) call(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, millis(latency))
}

// scenario учитывает завершённый сценарий. created — заказ успел сохраниться,
// даже если дальше смена статуса не прошла.
func (c *collector) scenario(result outcome, created bool, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes[result]++
	if created {
		c.created++
	}
	c.scenarios = append(c.scenarios, millis(latency))
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Scenarios: scenarioReport{
			Total:             int64(len(c.scenarios)),
			Placed:            c.outcomes[outcomePlaced],
			InsufficientStock: c.outcomes[outcomeInsufficientStock],
			Conflict:          c.outcomes[outcomeConflict],
			Failed:            c.outcomes[outcomeFailed],
			LatencyMs:         buildLatencySummary(c.scenarios),
		},
		Stock:   stockReport{OrdersCreated: c.created},
		Methods: make(map[string]methodReport, len(c.methods)),
	}
	if duration > 0 {
		result.RPS = float64(result.Scenarios.Total) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     int64(len(stats.latencies)),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}
	return result
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	s := result.Scenarios
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s duration=%.2fs rps=%.2f\n", cfg.mode, runTarget(cfg), result.DurationSeconds, result.RPS)
	fmt.Printf("scenarios: total=%d placed=%d insufficient_stock=%d conflict=%d failed=%d\n",
		s.Total, s.Placed, s.InsufficientStock, s.Conflict, s.Failed)
	fmt.Printf("stock: product=%s initial=%d final=%d expected=%d created=%d oversold=%t\n",
		result.Stock.ProductID, result.Stock.Initial, result.Stock.Final,
		result.Stock.Expected, result.Stock.OrdersCreated, result.Stock.Oversold)
	fmt.Printf("scenario latency ms: p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		s.LatencyMs.P50, s.LatencyMs.P95, s.LatencyMs.P99, s.LatencyMs.Max)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := result.Methods[name]
		fmt.Printf("%s: calls=%d codes=%s p95=%.2fms\n", name, m.Calls, formatCodes(m.Codes), m.LatencyMs.P95)
	}
}

// formatCodes печатает коды в стабильном порядке: OK=3,Aborted=1.
func formatCodes(counts map[string]int64) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ",")
}

func runTarget(cfg config) string {
	return fmt.Sprintf("count:%d,concurrency:%d,quantity:%d", cfg.total, cfg.concurrency, cfg.quantity)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует между соседними значениями отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
