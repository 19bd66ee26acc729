package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/storage/memory"
)

func TestIdempotency_ReplaysCreatedOrder(t *testing.T) {
	api := newAPI(t, memory.NewIdempotencyRepository())

	first := api.do(t, http.MethodPost, "/api/orders", createBody, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := api.do(t, http.MethodPost, "/api/orders", createBody, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	assert.Equal(t, int32(6), api.stock(t, "P1"), "replay must not reserve stock again")
}

func TestIdempotency_ReplaysFailure(t *testing.T) {
	api := newAPI(t, memory.NewIdempotencyRepository())
	body := `{"customer_id":"C1","items":[{"product_id":"P1","quantity":50}]}`

	first := api.do(t, http.MethodPost, "/api/orders", body, "Idempotency-Key", "key-2")
	require.Equal(t, http.StatusConflict, first.Code)

	second := api.do(t, http.MethodPost, "/api/orders", body, "Idempotency-Key", "key-2")
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replay"))
}

func TestIdempotency_DifferentBodyRejected(t *testing.T) {
	api := newAPI(t, memory.NewIdempotencyRepository())

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/orders", createBody, "Idempotency-Key", "key-3").Code)

	other := `{"customer_id":"C1","items":[{"product_id":"P1","quantity":1}]}`
	rec := api.do(t, http.MethodPost, "/api/orders", other, "Idempotency-Key", "key-3")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "idempotency_key_reused", decode[errorJSON](t, rec).Error.Code)
	assert.Equal(t, int32(6), api.stock(t, "P1"))
}

func TestIdempotency_WithoutKeyPassesThrough(t *testing.T) {
	api := newAPI(t, memory.NewIdempotencyRepository())

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/orders", createBody).Code)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/orders", createBody).Code)
	assert.Equal(t, int32(2), api.stock(t, "P1"))
}
