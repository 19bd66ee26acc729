package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const idempotencyHeader = "Idempotency-Key"

// apiClient — тонкий клиент HTTP API бэк-офиса, достаточный для нагрузочных сценариев.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        256,
				MaxIdleConnsPerHost: 256,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type orderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type createOrderBody struct {
	CustomerID string      `json:"customer_id"`
	Items      []orderLine `json:"items"`
}

type idResponse struct {
	ID string `json:"id"`
}

type productStock struct {
	Stock int32 `json:"stock"`
}

// do отправляет JSON запрос и декодирует ответ в out при статусе < 300.
func (c *apiClient) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *apiClient) createOrder(ctx context.Context, customerID, productID string, qty int32, key string) (string, int, error) {
	var created idResponse
	status, err := c.do(ctx, http.MethodPost, "/api/orders", createOrderBody{
		CustomerID: customerID,
		Items:      []orderLine{{ProductID: productID, Quantity: qty}},
	}, map[string]string{idempotencyHeader: key}, &created)
	return created.ID, status, err
}

func (c *apiClient) getOrder(ctx context.Context, id string) (int, error) {
	return c.do(ctx, http.MethodGet, "/api/orders/"+id, nil, nil, nil)
}

func (c *apiClient) deleteOrder(ctx context.Context, id string) (int, error) {
	return c.do(ctx, http.MethodDelete, "/api/orders/"+id, nil, nil, nil)
}

// seed создаёт клиента и товар с заданным остатком и возвращает их id.
func (c *apiClient) seed(ctx context.Context, stock int32, price string) (customerID, productID string, err error) {
	var customer idResponse
	status, err := c.do(ctx, http.MethodPost, "/api/customers", map[string]string{
		"first_name": "Load",
		"last_name":  "Test",
		"email":      "load-" + uuid.NewString()[:8] + "@example.com",
	}, nil, &customer)
	if err != nil {
		return "", "", fmt.Errorf("seed customer: %w", err)
	}
	if status != http.StatusCreated {
		return "", "", fmt.Errorf("seed customer: unexpected status %d", status)
	}

	var product idResponse
	status, err = c.do(ctx, http.MethodPost, "/api/products", map[string]any{
		"name":  "load-test-" + uuid.NewString()[:8],
		"price": json.Number(price),
		"stock": stock,
	}, nil, &product)
	if err != nil {
		return "", "", fmt.Errorf("seed product: %w", err)
	}
	if status != http.StatusCreated {
		return "", "", fmt.Errorf("seed product: unexpected status %d", status)
	}
	return customer.ID, product.ID, nil
}

func (c *apiClient) stock(ctx context.Context, productID string) (int32, error) {
	var p productStock
	status, err := c.do(ctx, http.MethodGet, "/api/products/"+productID, nil, nil, &p)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("get product %s: unexpected status %d", productID, status)
	}
	return p.Stock, nil
}
