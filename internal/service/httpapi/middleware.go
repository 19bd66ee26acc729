package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/metrics"
)

type loggerKey struct{}

// requestLogger возвращает логгер запроса, положенный accessLog, или fallback.
func requestLogger(ctx context.Context, fallback *log.Entry) *log.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*log.Entry); ok && entry != nil {
		return entry
	}
	return fallback
}

// accessLog пишет одну запись на запрос и обновляет HTTP метрики.
// Метка route — шаблон chi, поэтому идентификаторы в пути не раздувают кардинальность.
func accessLog(logger *log.Entry, m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(log.Fields{
				"request_id": chimw.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(context.WithValue(r.Context(), loggerKey{}, entry))

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := ""
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					route = rctx.RoutePattern()
				}
				elapsed := time.Since(start)
				m.Observe(r.Method, route, status, elapsed)

				fields := entry.WithFields(log.Fields{
					"route":   route,
					"status":  status,
					"latency": elapsed.String(),
					"bytes":   ww.BytesWritten(),
				})
				switch {
				case status >= http.StatusInternalServerError:
					fields.Error("request completed")
				case status >= http.StatusBadRequest:
					fields.Warn("request completed")
				default:
					fields.Info("request completed")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
