package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "X-Idempotent-Replay"

	// DefaultIdempotencyTTL — срок хранения ответа по ключу.
	DefaultIdempotencyTTL = 24 * time.Hour
)

// idempotent сохраняет ответ на запрос с заголовком Idempotency-Key
// и воспроизводит его на повторах. Запросы без заголовка проходят как есть.
//
// Повтор с тем же ключом и другим телом получает 422, повтор во время
// обработки первого запроса получает 409. Ответы 5xx не сохраняются:
// ключ освобождается, и повтор выполняется заново.
func idempotent(repo domain.IdempotencyRepository, ttl time.Duration, now func() time.Time, logger *log.Entry) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if repo == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			entry := requestLogger(r.Context(), logger).WithField("idempotency_key", key)

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				respondError(w, http.StatusBadRequest, errorBody{Code: codeInvalidRequest, Message: "unable to read request body"})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			record, err := repo.CreateProcessing(r.Context(), key, requestHash(r, body), now().Add(ttl))
			if err != nil {
				replay(w, entry, err, record)
				return
			}

			rec := newBufferedResponse()
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			// Ответ сохраняется, даже если запрос уже отменён клиентом.
			storeCtx := context.WithoutCancel(r.Context())
			switch {
			case rec.status < http.StatusBadRequest:
				err = repo.MarkDone(storeCtx, key, rec.body.Bytes(), rec.status)
			case rec.status < http.StatusInternalServerError:
				err = repo.MarkFailed(storeCtx, key, rec.body.Bytes(), rec.status)
			default:
				err = repo.Release(storeCtx, key)
			}
			if err != nil {
				entry.WithError(err).Warn("failed to store idempotent response")
			}

			rec.flush(w)
		})
	}
}

func replay(w http.ResponseWriter, entry *log.Entry, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		respondError(w, http.StatusUnprocessableEntity, errorBody{
			Code:    "idempotency_key_reused",
			Message: "idempotency key is already used with a different request",
		})
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		if !record.Finished() {
			respondError(w, http.StatusConflict, errorBody{
				Code:    "idempotency_in_progress",
				Message: "request with the same idempotency key is still processing",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(replayHeader, "true")
		w.WriteHeader(record.HTTPStatus)
		if len(record.ResponseBody) > 0 {
			_, _ = w.Write(record.ResponseBody)
		}
	default:
		entry.WithError(createErr).Error("failed to create idempotency record")
		respondError(w, http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "unable to process idempotency key"})
	}
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{':'})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{':'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bufferedResponse задерживает ответ обработчика, пока он не сохранён по ключу.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for k, values := range b.header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
