package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const maxBodyBytes = 1 << 20

const (
	codeInvalidRequest    = "invalid_request"
	codeValidation        = "validation_failed"
	codeNotFound          = "not_found"
	codeCustomerNotFound  = "customer_not_found"
	codeProductNotFound   = "product_not_found"
	codeInsufficientStock = "insufficient_stock"
	codeUnavailable       = "request_canceled"
	codeInternal          = "internal_error"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Warn("write response failed")
	}
}

func respondError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, errorResponse{Error: body})
}

// decodeJSON читает тело запроса; неизвестные поля допускаются.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		msg := "malformed JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		respondError(w, http.StatusBadRequest, errorBody{Code: codeInvalidRequest, Message: msg})
		return false
	}
	return true
}

// errorStatus сопоставляет доменную ошибку с HTTP ответом.
// Сообщения о сбоях хранилища наружу не отдаются.
func errorStatus(err error) (int, errorBody) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()}
	case errors.Is(err, domain.ErrInsufficientStock):
		productID, _ := domain.InsufficientStockProduct(err)
		return http.StatusConflict, errorBody{Code: codeInsufficientStock, Message: err.Error(), ProductID: productID}
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, errorBody{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrCustomerNotFound):
		return http.StatusNotFound, errorBody{Code: codeCustomerNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, errorBody{Code: codeProductNotFound, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorBody{Code: codeUnavailable, Message: "request canceled before completion"}
	default:
		return http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal error"}
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	h.logFailure(r, status, err)
	respondError(w, status, body)
}

// failCreate отличается от fail тем, что ссылка на несуществующего клиента
// или товар в теле заказа — ошибка содержимого запроса, а не отсутствующий ресурс.
func (h *handler) failCreate(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if errors.Is(err, domain.ErrCustomerNotFound) || errors.Is(err, domain.ErrProductNotFound) {
		status = http.StatusUnprocessableEntity
	}
	h.logFailure(r, status, err)
	respondError(w, status, body)
}

func (h *handler) logFailure(r *http.Request, status int, err error) {
	entry := requestLogger(r.Context(), h.logger).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Debug("request rejected")
}
