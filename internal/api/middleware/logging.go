// logging.go — slog-логирование входящих HTTP-запросов Pinstore.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusRecorder перехватывает статус-код и объём записанного ответа.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// RequestLogger возвращает middleware, логирующий завершение каждого
// HTTP-запроса. Уровень зависит от результата: 5xx — ERROR, 4xx — WARN,
// остальное — INFO. Запросы probes (/health/*, /metrics) логируются
// на DEBUG: Kubernetes опрашивает их постоянно, в обычном режиме это шум.
//
// Query string пишется отдельным атрибутом: для list/delete именно там
// приходят walletAddress и cid.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			case isProbePath(r.URL.Path):
				level = slog.LevelDebug
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", r.URL.RawQuery))
			}

			log.LogAttrs(r.Context(), level, "Запрос обработан", attrs...)
		})
	}
}

// isProbePath сообщает, относится ли путь к probe/metrics endpoints.
func isProbePath(path string) bool {
	return strings.HasPrefix(path, "/health/") || path == "/metrics"
}
