// Команда loadtest создаёт заказы через HTTP API параллельными воркерами
// и проверяет, что остаток товара не уходит в минус.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const scenarioName = "scenario"

type loadMode string

const (
	modeCreate       loadMode = "create"
	modeCreateGet    loadMode = "create-get"
	modeCreateDelete loadMode = "create-delete"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	deleteRate  int
	customerID  string
	productID   string
	quantity    int
	seedStock   int
	seedPrice   string
	outputPath  string
}

func parseConfig(args []string, stderr io.Writer) (config, error) {
	var cfg config
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 1m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-get | create-delete")
	fs.IntVar(&cfg.deleteRate, "delete-rate", 0, "percent of created orders deleted in create mode (0..100)")
	fs.StringVar(&cfg.customerID, "customer", "", "existing customer id (required unless -seed-stock is set)")
	fs.StringVar(&cfg.productID, "product", "", "existing product id (required unless -seed-stock is set)")
	fs.IntVar(&cfg.quantity, "qty", 1, "quantity per order")
	fs.IntVar(&cfg.seedStock, "seed-stock", 0, "create a fresh customer and product with this stock before the run")
	fs.StringVar(&cfg.seedPrice, "seed-price", "9.99", "unit price of the seeded product")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	return cfg, cfg.validate()
}

func (cfg config) validate() error {
	switch {
	case strings.TrimSpace(cfg.baseURL) == "":
		return errors.New("url is required")
	case cfg.duration < 0:
		return errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return errors.New("qty must be > 0")
	case cfg.deleteRate < 0 || cfg.deleteRate > 100:
		return errors.New("delete-rate must be between 0 and 100")
	case cfg.seedStock < 0:
		return errors.New("seed-stock must be >= 0")
	}
	if cfg.seedStock == 0 && (strings.TrimSpace(cfg.customerID) == "" || strings.TrimSpace(cfg.productID) == "") {
		return errors.New("customer and product are required unless seed-stock is set")
	}
	if cfg.seedStock > 0 {
		price, err := decimal.NewFromString(cfg.seedPrice)
		if err != nil || price.IsNegative() {
			return fmt.Errorf("seed-price must be a non-negative decimal: %q", cfg.seedPrice)
		}
	}
	return nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCreate, modeCreateGet, modeCreateDelete:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx, cfg)
	if err != nil {
		stop()
		log.WithError(err).Fatal("load test failed")
	}

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			stop()
			log.WithError(err).Fatal("failed to write report")
		}
	}
	if result.FailedScenarios > 0 {
		stop()
		os.Exit(1)
	}
}

// run выполняет сценарии и, если товар засеян, сверяет итоговый остаток.
func run(ctx context.Context, cfg config) (report, error) {
	client := newAPIClient(cfg.baseURL, cfg.timeout)
	if cfg.seedStock > 0 {
		customerID, productID, err := client.seed(ctx, int32(cfg.seedStock), cfg.seedPrice)
		if err != nil {
			return report{}, err
		}
		cfg.customerID, cfg.productID = customerID, productID
		log.WithFields(log.Fields{
			"customer_id": customerID,
			"product_id":  productID,
			"stock":       cfg.seedStock,
		}).Info("seeded load test data")
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(ctx, client, cfg, id, runID, col)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if cfg.seedStock > 0 {
		stock, err := client.stock(context.WithoutCancel(ctx), cfg.productID)
		if err != nil {
			return result, err
		}
		result.FinalStock = &stock
		if stock < 0 {
			return result, fmt.Errorf("stock went negative: %d", stock)
		}
	}
	return result, nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

// runScenario создаёт заказ и, в зависимости от режима, читает или удаляет его.
// Отказ по нехватке остатка ожидаем и сценарий не проваливает.
func runScenario(ctx context.Context, client *apiClient, cfg config, index int, runID string, col *collector) (err error) {
	start := time.Now()
	defer func() {
		out := outcome{code: "ok", ok: true}
		if err != nil {
			out = outcome{code: "failed"}
		}
		col.record(scenarioName, time.Since(start), out)
	}()

	var orderID string
	status, err := timed(col, "CreateOrder", func() (int, error) {
		id, status, err := client.createOrder(ctx, cfg.customerID, cfg.productID, int32(cfg.quantity),
			fmt.Sprintf("lt-%s-%d", runID, index))
		orderID = id
		return status, err
	}, http.StatusCreated, http.StatusConflict)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		col.reject()
		return nil
	}
	if orderID == "" {
		return errors.New("create response returned empty order id")
	}

	if cfg.mode == modeCreateGet {
		_, err = timed(col, "GetOrder", func() (int, error) {
			return client.getOrder(ctx, orderID)
		}, http.StatusOK)
		return err
	}
	if cfg.mode == modeCreateDelete || (cfg.mode == modeCreate && shouldDelete(index, cfg.deleteRate)) {
		_, err = timed(col, "DeleteOrder", func() (int, error) {
			return client.deleteOrder(ctx, orderID)
		}, http.StatusOK)
		return err
	}
	return nil
}

// timed записывает латентность и исход вызова; неожиданный статус становится ошибкой.
func timed(col *collector, name string, call func() (int, error), expected ...int) (int, error) {
	start := time.Now()
	status, err := call()
	if err != nil {
		col.record(name, time.Since(start), transportError)
		return status, err
	}
	out := statusOutcome(status, expected...)
	col.record(name, time.Since(start), out)
	if !out.ok {
		return status, fmt.Errorf("%s: unexpected status %d", name, status)
	}
	return status, nil
}

func shouldDelete(index, rate int) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 100 {
		return true
	}
	return index%100 < rate
}
